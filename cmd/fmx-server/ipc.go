/*
 * Copyright (c) 2026 Hardiyanto Y -Ebiet.
 * This software is part of the FMX (Famix Tracker) project.
 * This code is provided "as is", without warranty of any kind.
 */

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"famix/internal/wave"
	"famix/pkg/chip"
	"famix/pkg/sound"
)

// ===============================
// Globals
// ===============================

var (
	controlOwner net.Conn
	controlMu    sync.Mutex
)

func isOwner(c net.Conn) bool {
	controlMu.Lock()
	defer controlMu.Unlock()
	return controlOwner == c
}

func claimOwner(c net.Conn) bool {
	controlMu.Lock()
	defer controlMu.Unlock()
	if controlOwner == nil {
		controlOwner = c
		return true
	}
	return controlOwner == c
}

func releaseOwner(c net.Conn) {
	controlMu.Lock()
	defer controlMu.Unlock()
	if controlOwner == c {
		controlOwner = nil
		engine.StopPlayer()
	}
}

// ===============================
// IPC Server
// ===============================

func startIPC() {
	_ = os.Remove(socket_file)
	ln, err := net.Listen("unix", socket_file)
	if err != nil {
		panic(err)
	}

	for {
		c, err := ln.Accept()
		if err != nil {
			continue
		}
		go handleConn(c)
	}
}

func argInt(parts []string, idx int) (int, bool) {
	if len(parts) <= idx {
		return 0, false
	}
	v, err := strconv.Atoi(parts[idx])
	if err != nil {
		return 0, false
	}
	return v, true
}

func handleConn(c net.Conn) {
	defer func() {
		releaseOwner(c)
		c.Close()
	}()

	sc := bufio.NewScanner(c)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToUpper(parts[0])

		// ==================================================
		// READ-ONLY COMMANDS (TIDAK BUTUH OWNER)
		// ==================================================
		switch cmd {

		case "ABOUT":
			c.Write([]byte(fmt.Sprintf("%s V.%d.%d\n", server_name, version_major, version_minor)))
			continue

		case "PING":
			c.Write([]byte("Pong\n"))
			continue

		case "WHOAMI":
			if isOwner(c) {
				c.Write([]byte("OWNER\n"))
			} else {
				c.Write([]byte("OBSERVER\n"))
			}
			continue

		case "STATUS":
			frame, row := engine.PlayerPos()
			resp := map[string]interface{}{
				"state":     engine.State().String(),
				"playing":   engine.IsPlaying(),
				"rendering": engine.IsRendering(),
				"track":     engine.PlayerTrack(),
				"frame":     frame,
				"row":       row,
				"bpm":       engine.CurrentBPM(),
			}
			j, _ := json.Marshal(resp)
			c.Write(append(j, '\n'))
			continue

		case "POS":
			frame, row := engine.PlayerPos()
			c.Write([]byte(fmt.Sprintf("%d %d %d\n", engine.PlayerTrack(), frame, row)))
			continue

		case "BPM":
			c.Write([]byte(fmt.Sprintf("%.2f\n", engine.CurrentBPM())))
			continue

		case "CHANSTATE":
			ch, ok := argInt(parts, 1)
			if !ok {
				c.Write([]byte("ERR ARG\n"))
				continue
			}
			c.Write([]byte(engine.RecallChannelState(ch) + "\n"))
			continue

		case "REG":
			v, ok := argInt(parts, 1)
			if !ok {
				c.Write([]byte("ERR ARG\n"))
				continue
			}
			val, written := engine.RegisterSnapshot(uint16(v))
			if !written {
				c.Write([]byte("NEVER WRITTEN\n"))
			} else {
				c.Write([]byte(fmt.Sprintf("$%04X = $%02X\n", v, val)))
			}
			continue
		}

		// ==================================================
		// CONTROL COMMANDS (BUTUH OWNER)
		// ==================================================
		if !claimOwner(c) {
			c.Write([]byte("ERR CONTROL_LOCKED\n"))
			continue
		}

		switch cmd {

		case "PLAY":
			track, ok := argInt(parts, 1)
			if !ok {
				track = engine.PlayerTrack()
			}
			engine.Play(track)
			c.Write([]byte("Playing\n"))

		case "STOP":
			engine.StopPlayer()
			c.Write([]byte("Stopped\n"))

		case "RESET":
			track, ok := argInt(parts, 1)
			if !ok {
				c.Write([]byte("ERR ARG\n"))
				continue
			}
			engine.ResetPlayer(track)
			c.Write([]byte("Reset\n"))

		case "FRAME":
			frame, ok := argInt(parts, 1)
			if !ok {
				c.Write([]byte("ERR ARG\n"))
				continue
			}
			engine.SetQueueFrame(frame)
			c.Write([]byte("Queued\n"))

		case "MUTE", "UNMUTE":
			ch, ok := argInt(parts, 1)
			if !ok {
				c.Write([]byte("ERR ARG\n"))
				continue
			}
			engine.SetChannelMute(ch, cmd == "MUTE")
			c.Write([]byte("OK\n"))

		case "RECORD":
			ch, ok := argInt(parts, 1)
			if !ok {
				c.Write([]byte("ERR ARG\n"))
				continue
			}
			engine.SetRecordChannel(ch)
			c.Write([]byte("Armed\n"))

		case "RECORD-OFF":
			engine.SetRecordChannel(sound.NoRecordChannel)
			c.Write([]byte("Disarmed\n"))

		case "RECORD-RESULT":
			inst := engine.RecordInstrumentResult()
			if inst == nil {
				c.Write([]byte("NO CAPTURE\n"))
			} else {
				j, _ := json.Marshal(inst)
				c.Write(append(j, '\n'))
			}

		case "PREVIEW":
			pitch, ok := argInt(parts, 1)
			if !ok || pitch < 0 || pitch > 15 {
				c.Write([]byte("ERR ARG\n"))
				continue
			}
			engine.PreviewSample(demoSample(), 0, pitch)
			c.Write([]byte("Previewing\n"))

		case "RENDER":
			if len(parts) < 3 {
				c.Write([]byte("ERR ARG: RENDER <path-prefix> <track> [track...]\n"))
				continue
			}
			prefix := parts[1]
			var jobs []sound.RenderJob
			bad := false
			for _, a := range parts[2:] {
				t, err := strconv.Atoi(a)
				if err != nil {
					bad = true
					break
				}
				jobs = append(jobs, sound.RenderJob{Track: t, Ticks: 60 * 30}) // 30s per track
			}
			if bad {
				c.Write([]byte("ERR ARG\n"))
				continue
			}
			r, err := sound.NewWaveRenderer(jobs, func(track int) (sound.RenderSink, error) {
				return wave.NewWAVSink(fmt.Sprintf("%s-%02d.wav", prefix, track), 44100)
			})
			if err != nil {
				c.Write([]byte("ERR " + err.Error() + "\n"))
				continue
			}
			if err := engine.RenderToFile(r); err != nil {
				c.Write([]byte("ERR " + err.Error() + "\n"))
				continue
			}
			c.Write([]byte("Rendering\n"))

		case "RENDER-STOP":
			engine.StopRendering()
			c.Write([]byte("Render Stopped\n"))

		case "CHIP":
			mask, ok := argInt(parts, 1)
			if !ok {
				c.Write([]byte("ERR ARG\n"))
				continue
			}
			engine.SelectChip(chip.Mask(mask))
			c.Write([]byte("Chip Selected\n"))

		case "QUIT":
			c.Write([]byte("Bye\n"))
			engine.Shutdown()
			os.Remove(socket_file)
			os.Exit(0)

		default:
			c.Write([]byte("ERR UNKNOWN\n"))
		}
	}
}

// demoSample is a short triangle-ish DPCM blob for PREVIEW.
func demoSample() *chip.DPCMSample {
	data := make([]byte, 256)
	for i := range data {
		if i%2 == 0 {
			data[i] = 0xAA
		} else {
			data[i] = 0x55
		}
	}
	return &chip.DPCMSample{Name: "preview", Data: data}
}
