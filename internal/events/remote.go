package events

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/sua-org/cam-events/internal/core"
	"github.com/sua-org/cam-events/internal/notify"
	"github.com/sua-org/cam-events/internal/storage"
)

const uploadTimeout = 15 * time.Second

// publishNotification mirrors the event on MQTT.
func publishNotification(dc *Context, ev core.Event) {
	if dc.Publisher == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = dc.when(ev)
	}
	n := notify.New(dc.Conf.CameraID, dc.Conf.CameraName, dc.EventNr, ev)
	payload, err := n.Marshal()
	if err != nil {
		dc.log.Errorf("notification for %s: %v", ev.Kind, err)
		return
	}
	topic := notify.EventTopic(dc.Conf.MQTT.BaseTopic, dc.Conf.CameraID, ev.Kind)
	if err := dc.Publisher.Publish(topic, 1, false, payload); err != nil {
		dc.log.Errorf("publish %s: %v", topic, err)
	}
}

// uploadPicture copies a freshly written picture to the object store.
// Movies are still being encoded at file create time and are skipped.
func uploadPicture(dc *Context, ev core.Event) {
	if dc.Store == nil || !ev.FileType().IsImage() {
		return
	}
	data, err := os.ReadFile(ev.Filename)
	if err != nil {
		dc.log.Errorf("read %s for upload: %v", ev.Filename, err)
		return
	}

	key := storage.KeyFor(dc.Conf.Storage.Prefix, dc.Conf.CameraID, ev.Filename, dc.when(ev))

	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()
	url, err := dc.Store.Put(ctx, key, data, core.ContentType(filepath.Ext(ev.Filename)))
	if err != nil {
		dc.log.Errorf("upload %s: %v", ev.Filename, err)
		return
	}
	dc.log.Debugf("uploaded %s to %s", ev.Filename, url)
}
