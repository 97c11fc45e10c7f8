/*
Gateway server entry point.

=== Startup sequence ===

	1. Load server.yaml and partner_keys.yaml from the working directory.
	2. Build the immutable per-worker Context (partner directory + upstream
	   translator + timeout).
	3. Start the TCP acceptor.
	4. Wait for SIGINT/SIGTERM and shut down gracefully.
*/
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"elg-gateway/config"
	"elg-gateway/partner"
	"elg-gateway/pkg/upstreamhttp"
	"elg-gateway/server"
	"elg-gateway/upstream"
)

func main() {
	cfg, err := config.Load("server.yaml")
	if err != nil {
		log.Fatalf("load server.yaml: %v", err)
	}

	partners, err := partner.Load("partner_keys.yaml")
	if err != nil {
		log.Fatalf("load partner_keys.yaml: %v", err)
	}

	httpClient := upstreamhttp.New(upstreamhttp.Config{
		Timeout:             cfg.UpstreamTimeout(),
		MaxIdleConnsPerHost: cfg.Upstream.MaxIdleConnsPerHost,
	})
	translator := upstream.NewTranslator(httpClient, cfg.APIURL)

	ctx := &server.Context{
		Partners:    partners,
		Translator:  translator,
		ConnTimeout: cfg.ConnTimeout(),
	}

	tcpServer := server.NewTCPServer(cfg.ListenAddr, ctx)
	if err := tcpServer.Start(); err != nil {
		log.Fatalf("start server: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	tcpServer.Stop()
}
