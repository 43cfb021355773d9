package supervisor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sua-org/cam-events/internal/config"
	"github.com/sua-org/cam-events/internal/core"
	"github.com/sua-org/cam-events/internal/events"
)

type publishedMsg struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeMQTT struct {
	mu         sync.Mutex
	handlers   map[string]func(string, []byte)
	published  []publishedMsg
	subscribed chan string
}

func newFakeMQTT() *fakeMQTT {
	return &fakeMQTT{handlers: map[string]func(string, []byte){}, subscribed: make(chan string, 1)}
}

func (f *fakeMQTT) Publish(topic string, _ byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedMsg{topic, retained, payload})
	return nil
}

func (f *fakeMQTT) Subscribe(topic string, _ byte, handler func(string, []byte)) error {
	f.mu.Lock()
	f.handlers[topic] = handler
	f.mu.Unlock()
	f.subscribed <- topic
	return nil
}

func (f *fakeMQTT) handler(topic string) func(string, []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers[topic]
}

// newTestSupervisor runs the given kinds into seen instead of the real
// handler table.
func newTestSupervisor(t *testing.T, mqtt Subscriber, kinds ...core.EventKind) (*Supervisor, chan core.EventKind) {
	t.Helper()
	conf := config.Default()
	conf.Output.TargetDir = t.TempDir()
	conf.StatusIntervalSeconds = 0
	conf.MQTT.BaseTopic = "site"

	seen := make(chan core.EventKind, 32)
	bus := events.NewBus()
	for _, k := range kinds {
		bus.Register(k, "seen", func(_ *events.Context, ev core.Event) { seen <- ev.Kind })
	}
	return New(events.NewContext(conf, bus), mqtt), seen
}

func drain(ch chan core.EventKind) []core.EventKind {
	var out []core.EventKind
	for {
		select {
		case k := <-ch:
			out = append(out, k)
		default:
			return out
		}
	}
}

func TestEventStartAndEnd(t *testing.T) {
	s, seen := newTestSupervisor(t, nil, core.EventFirstMotion, core.EventEndMotion)

	s.handle(controlMsg{action: ActionEventStart})
	s.handle(controlMsg{action: ActionEventStart})
	s.handle(controlMsg{action: ActionEventEnd})
	s.handle(controlMsg{action: ActionEventEnd})

	got := drain(seen)
	if len(got) != 2 || got[0] != core.EventFirstMotion || got[1] != core.EventEndMotion {
		t.Fatalf("events = %v", got)
	}
	if s.dc.EventNr != 1 {
		t.Fatalf("event number = %d", s.dc.EventNr)
	}

	s.handle(controlMsg{action: ActionEventStart})
	if s.dc.EventNr != 2 {
		t.Fatalf("event number = %d after second event", s.dc.EventNr)
	}
}

func TestPictureAndSnapshotActions(t *testing.T) {
	s, seen := newTestSupervisor(t, nil,
		core.EventImageDetected, core.EventStream, core.EventImageSnapshot, core.EventImage)

	s.handle(controlMsg{action: ActionPicture})
	if got := drain(seen); len(got) != 0 {
		t.Fatalf("picture without data dispatched %v", got)
	}

	s.handle(controlMsg{action: ActionPicture, payload: []byte("jpeg")})
	s.handle(controlMsg{action: ActionSnapshot, payload: []byte("jpeg")})

	got := drain(seen)
	want := []core.EventKind{core.EventImageDetected, core.EventStream, core.EventImageSnapshot}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestMotionPictureAction(t *testing.T) {
	conf := config.Default()
	conf.Output.TargetDir = t.TempDir()
	conf.Output.MotionImages = true
	s := New(events.NewContext(conf, events.NewDefaultBus()), nil)
	s.dc.EventNr = 4

	s.handle(controlMsg{action: ActionMotionPic})
	s.handle(controlMsg{action: ActionMotionPic, payload: []byte("overlay")})

	matches, err := filepath.Glob(filepath.Join(conf.Output.TargetDir, "04-*m.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("motion pictures = %q", matches)
	}
	if data, err := os.ReadFile(matches[0]); err != nil || string(data) != "overlay" {
		t.Fatalf("content = %q, %v", data, err)
	}
}

func TestUnknownActionIgnored(t *testing.T) {
	s, seen := newTestSupervisor(t, nil, core.EventStop)
	s.handle(controlMsg{action: "reboot"})
	if got := drain(seen); len(got) != 0 {
		t.Fatalf("events = %v", got)
	}
}

func TestEnqueueUsesLastTopicLevel(t *testing.T) {
	s, _ := newTestSupervisor(t, nil)
	s.enqueue("site/cam1/control/snapshot", []byte("x"))

	msg := <-s.control
	if msg.action != ActionSnapshot || string(msg.payload) != "x" {
		t.Fatalf("msg = %+v", msg)
	}
}

func TestRunAppliesControlAndShutsDown(t *testing.T) {
	mq := newFakeMQTT()
	s, seen := newTestSupervisor(t, mq, core.EventFirstMotion, core.EventEndMotion, core.EventStop)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	var topic string
	select {
	case topic = <-mq.subscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("control topic not subscribed")
	}
	if topic != "site/cam1/control/+" {
		t.Fatalf("topic = %q", topic)
	}

	mq.handler(topic)("site/cam1/control/event_start", nil)
	select {
	case k := <-seen:
		if k != core.EventFirstMotion {
			t.Fatalf("first event = %v", k)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event_start not applied")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	got := drain(seen)
	if len(got) != 2 || got[0] != core.EventEndMotion || got[1] != core.EventStop {
		t.Fatalf("shutdown events = %v", got)
	}

	mq.mu.Lock()
	defer mq.mu.Unlock()
	if len(mq.published) != 1 {
		t.Fatalf("published = %d", len(mq.published))
	}
	last := mq.published[0]
	if last.topic != "site/cam1/status" || !last.retained {
		t.Fatalf("status message = %+v", last)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(last.payload, &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "offline" || body["event_number"] != float64(1) {
		t.Fatalf("status = %s", last.payload)
	}
}

func TestStatusPayload(t *testing.T) {
	s, _ := newTestSupervisor(t, nil, core.EventMotion)
	s.handle(controlMsg{action: ActionMotion})
	s.handle(controlMsg{action: ActionMotion})

	p := s.statusPayload("online", time.Now())
	counts, ok := p["events"].(map[string]uint64)
	if !ok || counts["motion"] != 2 {
		t.Fatalf("events = %#v", p["events"])
	}
	if p["status"] != "online" || p["camera_id"] != 1 {
		t.Fatalf("payload = %#v", p)
	}
	if _, ok := p["last_event_at"]; !ok {
		t.Fatalf("last_event_at missing")
	}
}
