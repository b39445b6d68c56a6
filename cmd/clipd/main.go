package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/clipdot/clipd/internal/common"
	"github.com/clipdot/clipd/internal/config"
	"github.com/clipdot/clipd/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := common.NewLogger(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync() //nolint:errcheck

	daemon, err := server.New(cfg, logger, server.NopClipboard{})
	if err != nil {
		if errors.Is(err, server.ErrAlreadyRunning) {
			// the live instance was already pinged awake
			fmt.Fprintln(os.Stderr, "clipd is already running")
			return
		}
		log.Fatal(err)
	}

	daemon.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	daemon.Stop()
}
