// cmd/cam-events/main.go
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/sua-org/cam-events/internal/config"
	"github.com/sua-org/cam-events/internal/supervisor"
)

func main() {
	configPath := flag.String("config", os.Getenv("CAM_EVENTS_CONFIG"), "path to the YAML configuration")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log := logrus.WithField("component", "main")

	// .env in the working directory is optional
	if err := godotenv.Load(); err != nil {
		log.Debugf("no .env loaded: %v", err)
	} else {
		log.Info(".env loaded")
	}

	if lvl, err := logrus.ParseLevel(strings.TrimSpace(os.Getenv("LOG_LEVEL"))); err == nil {
		logrus.SetLevel(lvl)
	}

	conf, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dc, sinks, err := supervisor.Setup(ctx, conf)
	if err != nil {
		log.Fatalf("setup: %v", err)
	}
	defer sinks.Close()

	var sub supervisor.Subscriber
	if sinks.MQTT != nil {
		sub = sinks.MQTT
	} else {
		log.Warn("mqtt disabled, no control messages will be received")
	}
	sup := supervisor.New(dc, sub)
	if sinks.VideoPipe != nil {
		sup.VideoPipe = sinks.VideoPipe
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := sup.Run(ctx); err != nil {
			log.Errorf("supervisor stopped with error: %v", err)
		}
	}()

	select {
	case s := <-sig:
		log.Infof("signal %s received, shutting down", s)
		cancel()
		<-done
	case <-done:
	}
}
