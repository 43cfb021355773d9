package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sua-org/cam-events/internal/config"
	"github.com/sua-org/cam-events/internal/database"
	"github.com/sua-org/cam-events/internal/events"
	"github.com/sua-org/cam-events/internal/mqttclient"
	"github.com/sua-org/cam-events/internal/notify"
	"github.com/sua-org/cam-events/internal/storage"
)

// Sinks holds what Setup connected, so the caller can release it.
type Sinks struct {
	MQTT      *mqttclient.Client
	VideoPipe io.WriteCloser
}

// Close releases the sinks not owned by the event context.
func (k *Sinks) Close() {
	if k.VideoPipe != nil {
		if err := k.VideoPipe.Close(); err != nil {
			log.Warnf("close video pipe: %v", err)
		}
	}
	if k.MQTT != nil {
		k.MQTT.Close()
	}
}

// Setup builds the camera context for conf on the default handler table and
// connects the optional sinks. A database that cannot be reached is kept:
// the next query reconnects. Object storage failures disable uploads.
func Setup(ctx context.Context, conf *config.Config) (*events.Context, *Sinks, error) {
	dc := events.NewContext(conf, events.NewDefaultBus())
	sinks := &Sinks{}

	if conf.Database.Type != "" {
		backend, err := database.NewBackend(conf.Database.Type, database.Params{
			Host:       conf.Database.Host,
			Port:       conf.Database.Port,
			User:       conf.Database.User,
			Password:   conf.Database.Password,
			DBName:     conf.Database.Name,
			SQLitePath: conf.Database.SQLitePath,
		})
		if err != nil {
			return nil, nil, err
		}
		conn, err := database.Open(ctx, backend)
		if err != nil {
			log.Errorf("%v (will retry on next query)", err)
		} else {
			log.Infof("%s database connected", backend.Name())
		}
		dc.DB = conn
	}

	if conf.MQTT.Enabled {
		will, err := offlineWill(conf)
		if err != nil {
			return nil, nil, err
		}
		cli, err := mqttclient.NewClient(conf.MQTT, will)
		if err != nil {
			dc.Close()
			return nil, nil, fmt.Errorf("connect to mqtt: %w", err)
		}
		dc.Publisher = cli
		sinks.MQTT = cli
	}

	if conf.Storage.Enabled {
		store, err := storage.NewMinioStore(conf.Storage)
		if err != nil {
			log.Warnf("object storage not initialized: %v", err)
		} else {
			dc.Store = store
		}
	}

	if conf.VideoPipe.Device != "" {
		f, err := os.OpenFile(conf.VideoPipe.Device, os.O_WRONLY, 0)
		if err != nil {
			log.Errorf("open video pipe %s: %v", conf.VideoPipe.Device, err)
		} else {
			sinks.VideoPipe = f
		}
	}

	if conf.Stream.Port != 0 {
		log.Warnf("stream port %d configured but no live view server is linked", conf.Stream.Port)
	}

	return dc, sinks, nil
}

func offlineWill(conf *config.Config) (*mqttclient.Will, error) {
	b, err := json.Marshal(map[string]interface{}{
		"collector": "cam-events",
		"status":    "offline",
		"camera_id": conf.CameraID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal will: %w", err)
	}
	return &mqttclient.Will{
		Topic:   notify.StatusTopic(conf.MQTT.BaseTopic, conf.CameraID),
		Payload: b,
	}, nil
}
