/*
 * Copyright (c) 2026 Hardiyanto Y -Ebiet.
 * This software is part of the FMX (Famix Tracker) project.
 * This code is provided "as is", without warranty of any kind.
 */

package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/chzyer/readline"
)

const (
	socket_file        = "/tmp/fmx-server.sock"
	version_major      = 1
	version_minor      = 0
	app_name           = "FMX-Client"
	developer_title    = "Developer Hardiyanto"
	developer_subtitle = "Build 24/08/2026 -Ebiet Version"
)

func main() {
	fmt.Printf("\n%s V.%d.%d\n", app_name, version_major, version_minor)
	fmt.Printf("%s %s\n", developer_title, developer_subtitle)

	conn, err := net.Dial("unix", socket_file)
	if err != nil {
		panic(err)
	}
	defer conn.Close()

	fmt.Println("CONNECTED")
	fmt.Println("Type IPC command, press Enter")
	fmt.Println(`Type "QUIT" to exit`)
	fmt.Println()

	// ============================
	// IPC → STDOUT
	// ============================
	go func() {
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			fmt.Println("RECV:", sc.Text())
		}
		fmt.Println("SOCKET CLOSED")
		os.Exit(0)
	}()

	// ============================
	// STDIN → IPC (interactive)
	// ============================
	rl, err := readline.NewEx(&readline.Config{Prompt: "fmx> "})
	if err != nil {
		panic(err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			fmt.Println("Bye.")
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "QUIT") {
			conn.Write([]byte("QUIT\n"))
			fmt.Println("Bye.")
			return
		}
		if _, err := conn.Write([]byte(line + "\n")); err != nil {
			fmt.Println("WRITE ERROR:", err)
			return
		}
	}
}
