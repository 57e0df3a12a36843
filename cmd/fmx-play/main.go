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
	"os/signal"
	"syscall"
	"time"

	"famix/internal/visual"
	"famix/pkg/song"
	"famix/pkg/sound"
)

const (
	version_major      = 1
	version_minor      = 0
	app_name           = "FMX-Play"
	developer_title    = "Developer Hardiyanto"
	developer_subtitle = "Build 24/08/2026 -Ebiet Version"
)

func main() {
	track := flag.Int("track", 0, "Track index dari demo song")
	seconds := flag.Int("seconds", 0, "Durasi playback (0 = sampai Ctrl+C)")
	flag.Parse()

	fmt.Printf("\n%s V.%d.%d\n", app_name, version_major, version_minor)
	fmt.Printf("%s %s\n", developer_title, developer_subtitle)

	doc := song.Demo()
	if *track < 0 || *track >= doc.TrackCount() {
		fmt.Printf("[Play] track %d di luar jangkauan (0-%d)\n", *track, doc.TrackCount()-1)
		os.Exit(1)
	}

	cfg := sound.DefaultConfig()
	cfg.AverageBPM = true
	engine := sound.NewEngine(cfg)
	monitor := visual.NewMonitor()
	engine.SetVisualizer(monitor)
	engine.AssignDocument(doc)

	if err := engine.InitializeSound(); err != nil {
		fmt.Printf("[Play] engine start failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("[Play] Track %d: %s\n", *track, doc.TrackName(*track))
	engine.Play(*track)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	var deadline <-chan time.Time
	if *seconds > 0 {
		deadline = time.After(time.Duration(*seconds) * time.Second)
	}

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			frame, row := engine.PlayerPos()
			fmt.Printf("\r[Play] frame %02d row %02d  %.1f BPM   ", frame, row, engine.CurrentBPM())
			if monitor.AudioProblem() {
				fmt.Println("\n[Play] audio device problem, berhenti")
				engine.Shutdown()
				os.Exit(1)
			}
		case <-sig:
			fmt.Println("\n[Play] stop")
			shutdown(engine)
			return
		case <-deadline:
			fmt.Println("\n[Play] selesai")
			shutdown(engine)
			return
		}
	}
}

func shutdown(engine *sound.Engine) {
	engine.StopPlayer()
	engine.WaitForStop()
	if !engine.Shutdown() {
		fmt.Println("[Play] engine tidak berhenti dengan bersih")
	}
}
