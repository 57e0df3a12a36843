/*
 * Copyright (c) 2026 Hardiyanto Y -Ebiet.
 * This software is part of the FMX (Famix Tracker) project.
 * This code is provided "as is", without warranty of any kind.
 */

package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"famix/internal/wave"
	"famix/pkg/song"
	"famix/pkg/sound"
)

const (
	version_major      = 1
	version_minor      = 0
	app_name           = "FMX-Render"
	developer_title    = "Developer Hardiyanto"
	developer_subtitle = "Build 24/08/2026 -Ebiet Version"
	usage_text         = "Usage: fmx-render -out (prefix) -tracks 0,1 [-format wav|opus] [-seconds 30]"
)

func main() {
	out := flag.String("out", "", "Prefix file output")
	tracks := flag.String("tracks", "", "Daftar track, dipisah koma")
	format := flag.String("format", "wav", "Format output: wav atau opus")
	seconds := flag.Int("seconds", 30, "Durasi per track")
	rate := flag.Int("rate", 48000, "Sample rate output")
	flag.Parse()

	if *out == "" || *tracks == "" {
		fmt.Printf("%s version %d.%d\n", app_name, version_major, version_minor)
		fmt.Printf("%s - %s\n", developer_title, developer_subtitle)
		fmt.Printf("%s\n", usage_text)
		return
	}

	doc := song.Demo()

	var jobs []sound.RenderJob
	for _, part := range strings.Split(*tracks, ",") {
		t, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || t < 0 || t >= doc.TrackCount() {
			fmt.Printf("[Render] track tidak valid: %q\n", part)
			os.Exit(1)
		}
		frameRate := doc.FrameRate()
		if frameRate == 0 {
			frameRate = 60
		}
		jobs = append(jobs, sound.RenderJob{Track: t, Ticks: *seconds * frameRate})
	}

	ext := *format
	open := func(track int) (sound.RenderSink, error) {
		path := fmt.Sprintf("%s-%02d.%s", *out, track, ext)
		fmt.Printf("[Render] Track %d -> %s\n", track, path)
		if ext == "opus" {
			return wave.NewOpusSink(path, *rate)
		}
		return wave.NewWAVSink(path, *rate)
	}
	if ext != "wav" && ext != "opus" {
		fmt.Printf("[Render] format tidak dikenal: %s\n", ext)
		os.Exit(1)
	}

	renderer, err := sound.NewWaveRenderer(jobs, open)
	if err != nil {
		fmt.Printf("[Render] %v\n", err)
		os.Exit(1)
	}

	cfg := sound.DefaultConfig()
	cfg.SampleRate = *rate
	engine := sound.NewEngine(cfg)
	engine.UseDevice(sound.NewNullDevice()) // offline, tanpa hardware audio
	engine.AssignDocument(doc)

	if err := engine.InitializeSound(); err != nil {
		fmt.Printf("[Render] engine start failed: %v\n", err)
		os.Exit(1)
	}

	if err := engine.RenderToFile(renderer); err != nil {
		fmt.Printf("[Render] %v\n", err)
		engine.Shutdown()
		os.Exit(1)
	}

	// Tunggu sampai sesi benar-benar mulai, lalu sampai chain selesai;
	// render berjalan lebih cepat dari real-time.
	for i := 0; i < 50 && !engine.IsRendering(); i++ {
		time.Sleep(100 * time.Millisecond)
	}
	for engine.IsRendering() || engine.IsPlaying() {
		time.Sleep(100 * time.Millisecond)
	}

	engine.Shutdown()
	fmt.Println("[Success] Semua render selesai.")
}
