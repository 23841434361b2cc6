package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"sheetsdb/pkg/api"
	"sheetsdb/pkg/config"
	"sheetsdb/pkg/db"
	"sheetsdb/pkg/logging"

	log "github.com/sirupsen/logrus"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose logging")
	configFile := flag.String("config", "sheetsdb.toml", "Config file path")
	listenAddress := flag.String("listen", "", "HTTP listen address, overrides the config file")

	flag.Parse()
	logging.Setup(os.Stderr, *verbose)

	cfg, err := config.New(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *listenAddress != "" {
		cfg.Store.ListenAddress = *listenAddress
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, err := db.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer d.Close()
	if err := d.CreateAll(ctx); err != nil {
		log.Fatalf("Failed to create sheets: %v", err)
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- api.Serve(ctx, cfg.Store.ListenAddress, api.GetRouter(d))
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

mainloop:
	for {
		select {
		case <-signalChan:
			log.Info("Signalled, breaking main loop")
			cancel()
		case err := <-serverDone:
			if err != nil {
				log.Errorf("HTTP server stopped: %v", err)
			}
			break mainloop
		}
	}
}
