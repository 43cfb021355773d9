package events

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sua-org/cam-events/internal/config"
	"github.com/sua-org/cam-events/internal/core"
	"github.com/sua-org/cam-events/internal/database"
	"github.com/sua-org/cam-events/internal/extcmd"
	"github.com/sua-org/cam-events/internal/extpipe"
	"github.com/sua-org/cam-events/internal/format"
	"github.com/sua-org/cam-events/internal/mqttclient"
	"github.com/sua-org/cam-events/internal/storage"
)

// Context is the per-camera state the handlers read and mutate. It is owned
// by the camera's processing loop; handlers run on that goroutine only.
type Context struct {
	Conf *config.Config

	// Optional sinks. A nil sink disables the handlers that use it.
	DB        *database.Connection
	Stream    LiveView
	Store     storage.ObjectStore
	Publisher mqttclient.Publisher

	Pipe     *extpipe.Session
	Launcher extcmd.Launcher
	Pictures PictureWriter
	Console  io.Writer

	Geometry core.ImageGeometry
	Host     string

	// Capture side bookkeeping.
	EventNr   int
	Shot      int
	FrameTime time.Time
	LastRate  int

	// Movie bookkeeping, reset on every first motion.
	MovieFPS      int
	MovieLastShot int

	// Snapshot is set when a snapshot was requested and cleared once written.
	Snapshot bool

	bus *Bus
	log *logrus.Entry
}

// NewContext wires a context for conf on bus with the process defaults:
// /bin/sh launcher, file picture writer and stdout console.
func NewContext(conf *config.Config, bus *Bus) *Context {
	host, _ := os.Hostname()
	return &Context{
		Conf:          conf,
		Pipe:          extpipe.New(),
		Launcher:      extcmd.NewShellLauncher(),
		Pictures:      FileWriter{},
		Console:       os.Stdout,
		Host:          host,
		MovieLastShot: -1,
		bus:           bus,
		log:           log.WithField("camera", conf.CameraID),
	}
}

// Dispatch sends an event through the context's bus.
func (dc *Context) Dispatch(kind core.EventKind, image []byte, filename string, payload core.Payload, ts time.Time) {
	dc.bus.Dispatch(dc, kind, image, filename, payload, ts)
}

// Bus returns the bus the context dispatches on.
func (dc *Context) Bus() *Bus { return dc.bus }

// when picks the time used to expand templates for ev: the event's own
// stamp, then the current frame's, then the wall clock.
func (dc *Context) when(ev core.Event) time.Time {
	if !ev.Timestamp.IsZero() {
		return ev.Timestamp
	}
	if !dc.FrameTime.IsZero() {
		return dc.FrameTime
	}
	return time.Now()
}

func (dc *Context) expand(tmpl string, ts time.Time, filename string, ft core.FileType) string {
	return format.Expand(tmpl, format.Vars{
		Time:     ts,
		Filename: filename,
		FileType: ft,
		EventNr:  dc.EventNr,
		Shot:     dc.Shot,
		CameraID: dc.Conf.CameraID,
		Width:    dc.Geometry.Width,
		Height:   dc.Geometry.Height,
		FPS:      dc.MovieFPS,
		Host:     dc.Host,
	})
}

// execCommand expands tmpl and starts it detached. An empty template is a
// no-op.
func (dc *Context) execCommand(tmpl string, ts time.Time, filename string, ft core.FileType) {
	if tmpl == "" || dc.Launcher == nil {
		return
	}
	cmd := dc.expand(tmpl, ts, filename, ft)
	if err := dc.Launcher.Launch(cmd); err != nil {
		dc.log.Errorf("unable to start external command %q: %v", cmd, err)
	}
}

// Close ends an open pipe session through the bus, so the close handlers
// run, and releases the database connection.
func (dc *Context) Close() {
	if dc.Pipe != nil && dc.Pipe.IsOpen() {
		dc.Dispatch(core.EventEndMotion, nil, "", nil, time.Now())
	}
	if dc.DB != nil {
		if err := dc.DB.Close(); err != nil {
			dc.log.Warnf("close database: %v", err)
		}
	}
}
