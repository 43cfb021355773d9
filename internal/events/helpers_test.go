package events

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sua-org/cam-events/internal/config"
	"github.com/sua-org/cam-events/internal/core"
	"github.com/sua-org/cam-events/internal/database"
)

var testTime = time.Date(2024, 3, 7, 9, 5, 3, 0, time.UTC)

type recordedEvent struct {
	Kind     core.EventKind
	Filename string
	FileType core.FileType
}

// recorder collects every event of the kinds it is bound to.
type recorder struct {
	events []recordedEvent
}

func (r *recorder) handler(_ *Context, ev core.Event) {
	r.events = append(r.events, recordedEvent{ev.Kind, ev.Filename, ev.FileType()})
}

func (r *recorder) of(kind core.EventKind) []recordedEvent {
	var out []recordedEvent
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

type recordLauncher struct {
	mu       sync.Mutex
	commands []string
}

func (l *recordLauncher) Launch(command string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.commands = append(l.commands, command)
	return nil
}

// newTestContext returns a context on the default table plus a recorder for
// the file events, writing under a temporary target dir.
func newTestContext(t *testing.T, mutate func(*config.Config)) (*Context, *recorder, *recordLauncher) {
	t.Helper()
	conf := config.Default()
	conf.Output.TargetDir = t.TempDir()
	if mutate != nil {
		mutate(conf)
	}

	rec := &recorder{}
	bus := NewDefaultBus()
	bus.Register(core.EventFileCreate, "record", rec.handler)
	bus.Register(core.EventFileClose, "record", rec.handler)

	launcher := &recordLauncher{}
	dc := NewContext(conf, bus)
	dc.Launcher = launcher
	dc.Console = &bytes.Buffer{}
	dc.Host = "cam-host"
	t.Cleanup(dc.Close)
	return dc, rec, launcher
}

var errLost = errors.New("server has gone away")

type fakeConn struct {
	backend *fakeBackend
}

func (c *fakeConn) Exec(_ context.Context, query string) error {
	b := c.backend
	b.attempts++
	if b.failNext > 0 {
		b.failNext--
		return errLost
	}
	b.queries = append(b.queries, query)
	return nil
}

func (c *fakeConn) Close() error { return nil }

type fakeBackend struct {
	opens    int
	attempts int
	failNext int
	queries  []string
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Open(context.Context) (database.Conn, error) {
	b.opens++
	return &fakeConn{backend: b}, nil
}

func (b *fakeBackend) ConnectionLost(err error) bool { return errors.Is(err, errLost) }

type frame struct {
	img           []byte
	width, height int
	size          int
	encoded       bool
}

type fakeLiveView struct {
	frames  []frame
	running bool
	stops   int
}

func (v *fakeLiveView) Put(img []byte, width, height, size int) {
	v.frames = append(v.frames, frame{img, width, height, size, false})
}

func (v *fakeLiveView) PutEncoded(img []byte, width, height, size int) {
	v.frames = append(v.frames, frame{img, width, height, size, true})
}

func (v *fakeLiveView) Running() bool { return v.running }

func (v *fakeLiveView) Stop() {
	v.stops++
	v.running = false
}

type published struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	msgs []published
}

func (p *fakePublisher) Publish(topic string, _ byte, _ bool, payload []byte) error {
	p.msgs = append(p.msgs, published{topic, payload})
	return nil
}

type fakeStore struct {
	keys         []string
	data         [][]byte
	contentTypes []string
}

func (s *fakeStore) Put(_ context.Context, key string, data []byte, contentType string) (string, error) {
	s.keys = append(s.keys, key)
	s.data = append(s.data, data)
	s.contentTypes = append(s.contentTypes, contentType)
	return "http://store/" + key, nil
}
