// Command qposd is the node process entry point: parse flags, stand up
// logging, build a node.Node, and run it until interrupted.
//
// Grounded on the teacher's apiserver/main.go (defer panics.HandlePanic,
// config.Parse-then-die-on-error shape) combined with kaspad.go's
// newKaspad/start/stop lifecycle, now implemented by node.New/Start/Stop;
// the teacher's own root-level main() was not retrieved into the pack, so
// interrupt handling here is the plain os/signal idiom rather than a
// ported signal package.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/junaeth-project/qposd/config"
	"github.com/junaeth-project/qposd/logger"
	"github.com/junaeth-project/qposd/node"
	"github.com/junaeth-project/qposd/util/panics"
)

var log = logger.GetLogger("QPOSD")

func main() {
	defer panics.HandlePanic(log, nil)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error parsing command-line arguments: %s\n", err)
		os.Exit(1)
	}

	if err := logger.InitLogRotator(cfg.LogFile()); err != nil {
		fmt.Fprintf(os.Stderr, "error initializing logger: %s\n", err)
		os.Exit(1)
	}
	logger.SetLogLevel(log, cfg.DebugLevel)
	log.Infof("qposd starting: %s", cfg)

	n, err := node.New(cfg)
	if err != nil {
		log.Criticalf("error initializing node: %s", err)
		os.Exit(1)
	}

	if err := n.Start(); err != nil {
		log.Criticalf("error starting node: %s", err)
		os.Exit(1)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	log.Info("received interrupt, shutting down")
	if err := n.Stop(); err != nil {
		log.Errorf("error during shutdown: %s", err)
	}
}
