/*
 * Copyright (c) 2026 Hardiyanto Y -Ebiet.
 * This software is part of the FMX (Famix Tracker) project.
 * This code is provided "as is", without warranty of any kind.
 */

package main

import (
	"fmt"
	"os"

	"famix/internal/visual"
	"famix/pkg/song"
	"famix/pkg/sound"
)

const (
	socket_file   = "/tmp/fmx-server.sock"
	version_major = 1
	version_minor = 0
	server_name   = "FMX-Server"
)

var (
	engine  *sound.Engine
	monitor *visual.Monitor
)

func main() {
	engine = sound.NewEngine(sound.DefaultConfig())
	monitor = visual.NewMonitor()
	engine.SetVisualizer(monitor)
	engine.AssignDocument(song.Demo())

	if err := engine.InitializeSound(); err != nil {
		fmt.Printf("[Server] engine start failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("[Server] %s V.%d.%d listening on %s\n",
		server_name, version_major, version_minor, socket_file)
	startIPC()
}
