package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/alxayo/vidstream/internal/logger"
	"github.com/alxayo/vidstream/internal/streaming/streamclient"
)

func main() {
	args := os.Args[1:]
	if len(args) != 4 {
		fmt.Println("usage: vidstream-client <server-ip> <port> <resolution: 480p|720p|1080p> <transport: TCP|UDP>")
		os.Exit(2)
	}

	serverIP := args[0]
	port, err := strconv.Atoi(args[1])
	if err != nil || port < 1 || port > 65535 {
		fmt.Printf("invalid port %q\n", args[1])
		os.Exit(2)
	}
	resolution := args[2]
	transport := args[3]

	if err := streamclient.ValidateResolution(resolution); err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	if err := streamclient.ValidateTransport(transport); err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	logger.Init()
	log := logger.Logger().With("component", "cli-client")

	session, err := streamclient.Negotiate(serverIP, port, resolution, transport)
	if err != nil {
		log.Error("negotiation failed", "error", err)
		os.Exit(1)
	}
	log.Info("negotiated session", "client_id", session.ClientID, "resolution", session.Resolution,
		"bandwidth_kbps", session.Bandwidth, "transport", session.Transport)

	onChunk := func(n int) {
		log.Debug("chunk received", "bytes", n)
	}

	var stats streamclient.Stats
	if transport == "TCP" {
		stats, err = streamclient.ReceiveTCP(serverIP, session, 0, onChunk)
	} else {
		stats, err = streamclient.ReceiveUDP(serverIP, session, 0, onChunk)
	}
	if err != nil {
		log.Error("delivery failed", "error", err)
		os.Exit(1)
	}

	log.Info("stream finished", "total_bytes", stats.TotalBytes, "chunks", stats.ChunksReached,
		"elapsed_s", stats.ElapsedSec)
}
