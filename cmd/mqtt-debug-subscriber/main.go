package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/sua-org/cam-events/internal/config"
	"github.com/sua-org/cam-events/internal/mqttclient"
	"github.com/sua-org/cam-events/internal/notify"
)

var log = logrus.WithField("component", "debug")

// Prints the notifications of every camera and, with -send, pushes one
// control action (payload read from -file) before listening.
func main() {
	send := flag.String("send", "", "control action to publish (event_start, snapshot, ...)")
	camera := flag.Int("camera", 1, "camera id for -send")
	file := flag.String("file", "", "payload file for -send")
	flag.Parse()

	_ = godotenv.Load()

	conf, err := config.Load(os.Getenv("CAM_EVENTS_CONFIG"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	conf.MQTT.ClientID = conf.MQTT.ClientID + "-debug"

	subscribeTopic := getenv("MQTT_DEBUG_TOPIC", conf.MQTT.BaseTopic+"/+/events/+")

	mqttCli, err := mqttclient.NewClient(conf.MQTT, nil)
	if err != nil {
		log.Fatalf("connect to mqtt: %v", err)
	}
	defer mqttCli.Close()

	if *send != "" {
		var payload []byte
		if *file != "" {
			if payload, err = os.ReadFile(*file); err != nil {
				log.Fatalf("read %s: %v", *file, err)
			}
		}
		topic := fmt.Sprintf("%s/cam%d/control/%s", conf.MQTT.BaseTopic, *camera, *send)
		if err := mqttCli.Publish(topic, 1, false, payload); err != nil {
			log.Fatalf("publish %s: %v", topic, err)
		}
		log.Infof("sent %s (%d bytes)", topic, len(payload))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	if err := mqttCli.Subscribe(subscribeTopic, 1, handleMessage); err != nil {
		log.Fatalf("subscribe %s: %v", subscribeTopic, err)
	}
	log.Infof("subscribed to topic: %s", subscribeTopic)

	go func() {
		<-sig
		log.Info("signal received, stopping subscriber")
		cancel()
	}()

	<-ctx.Done()
	time.Sleep(500 * time.Millisecond)
}

func handleMessage(topic string, payload []byte) {
	var n notify.Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		log.Warnf("%s: not a notification (%v): %s", topic, err, payload)
		return
	}

	entry := log.WithFields(logrus.Fields{
		"camera": n.CameraID,
		"event":  n.Event,
		"nr":     n.EventNumber,
	})
	if n.Filename != "" {
		entry = entry.WithField("file", n.Filename).WithField("type", n.FileType)
	}
	entry.Infof("%s at %s", topic, n.Timestamp.Local().Format(time.RFC3339))
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
