// internal/supervisor/supervisor.go
package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"

	"github.com/sua-org/cam-events/internal/core"
	"github.com/sua-org/cam-events/internal/events"
	"github.com/sua-org/cam-events/internal/mqttclient"
	"github.com/sua-org/cam-events/internal/notify"
)

var log = logrus.WithField("component", "supervisor")

// Control actions accepted on base/camN/control/<action>.
const (
	ActionEventStart   = "event_start"
	ActionEventEnd     = "event_end"
	ActionMotion       = "motion"
	ActionPicture      = "picture"
	ActionMotionPic    = "motion_picture"
	ActionFrame        = "frame"
	ActionSnapshot     = "snapshot"
	ActionAreaDetected = "area_detected"
	ActionCameraLost   = "camera_lost"
	ActionStop         = "stop"
)

type controlMsg struct {
	action  string
	payload []byte
}

// Subscriber is the part of the MQTT client the supervisor drives.
type Subscriber interface {
	mqttclient.Publisher
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
}

// Supervisor owns one camera context. Control messages are queued and
// applied on a single goroutine, the only one touching the context.
type Supervisor struct {
	dc   *events.Context
	mqtt Subscriber

	// VideoPipe, when set, receives every picture through the bus.
	VideoPipe io.Writer

	statusInterval time.Duration
	proc           *process.Process
	started        time.Time

	control chan controlMsg

	mu          sync.Mutex
	inEvent     bool
	eventNr     int
	lastEventAt time.Time
	dispatched  map[core.EventKind]uint64
}

// New builds a supervisor around dc. mqtt may be nil: the supervisor then
// only waits for cancellation.
func New(dc *events.Context, mqtt Subscriber) *Supervisor {
	s := &Supervisor{
		dc:             dc,
		mqtt:           mqtt,
		statusInterval: time.Duration(dc.Conf.StatusIntervalSeconds) * time.Second,
		started:        time.Now().UTC(),
		control:        make(chan controlMsg, 64),
		dispatched:     make(map[core.EventKind]uint64),
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		s.proc = p
	}
	return s
}

// Run subscribes to the control topic and applies messages until ctx is
// canceled. On the way out an open event is ended and the stream stopped.
func (s *Supervisor) Run(ctx context.Context) error {
	conf := s.dc.Conf
	if s.mqtt != nil {
		topic := notify.ControlTopic(conf.MQTT.BaseTopic, conf.CameraID)
		log.Infof("subscribing to control topic: %s", topic)
		if err := s.mqtt.Subscribe(topic, 1, s.enqueue); err != nil {
			return fmt.Errorf("subscribe error: %w", err)
		}
		if s.statusInterval > 0 {
			go s.runStatusLoop(ctx)
		}
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("context canceled, shutting down camera")
			s.shutdown()
			return nil
		case msg := <-s.control:
			s.handle(msg)
		}
	}
}

func (s *Supervisor) enqueue(topic string, payload []byte) {
	msg := controlMsg{action: path.Base(topic), payload: payload}
	select {
	case s.control <- msg:
	default:
		log.Warnf("control queue full, dropping %s", msg.action)
	}
}

func (s *Supervisor) handle(msg controlMsg) {
	now := time.Now()
	dc := s.dc
	dc.FrameTime = now

	switch msg.action {
	case ActionEventStart:
		if s.isInEvent() {
			log.Debug("event already in progress")
			return
		}
		dc.EventNr++
		s.setEvent(true, dc.EventNr)
		s.dispatch(core.EventFirstMotion, nil, nil, now)
	case ActionEventEnd:
		if !s.isInEvent() {
			log.Debug("no event in progress")
			return
		}
		s.dispatch(core.EventEndMotion, nil, nil, now)
		s.setEvent(false, dc.EventNr)
	case ActionMotion:
		s.dispatch(core.EventMotion, nil, nil, now)
	case ActionPicture:
		if len(msg.payload) == 0 {
			log.Warn("picture without image data")
			return
		}
		d := &core.ImageData{Image: msg.payload, Timestamp: now, Shot: dc.Shot}
		s.dispatch(core.EventImageDetected, nil, d, now)
		s.dispatch(core.EventStream, nil, d, now)
		if s.VideoPipe != nil {
			s.dispatch(core.EventImage, msg.payload, core.DeviceHandle{W: s.VideoPipe}, now)
		}
	case ActionMotionPic:
		if len(msg.payload) == 0 {
			log.Warn("motion picture without image data")
			return
		}
		s.dispatch(core.EventImagemDetected, msg.payload, &core.ImageData{Timestamp: now, Shot: dc.Shot}, now)
	case ActionFrame:
		if len(msg.payload) == 0 {
			return
		}
		s.dispatch(core.EventMoviePut, nil, &core.ImageData{Image: msg.payload, Timestamp: now}, now)
	case ActionSnapshot:
		if len(msg.payload) == 0 {
			log.Warn("snapshot without image data")
			return
		}
		dc.Snapshot = true
		s.dispatch(core.EventImageSnapshot, nil, &core.ImageData{Image: msg.payload, Timestamp: now}, now)
	case ActionAreaDetected:
		s.dispatch(core.EventAreaDetected, nil, nil, now)
	case ActionCameraLost:
		s.dispatch(core.EventCameraLost, nil, nil, now)
	case ActionStop:
		s.dispatch(core.EventStop, nil, nil, now)
	default:
		log.Warnf("unknown control action %q", msg.action)
	}
}

func (s *Supervisor) dispatch(kind core.EventKind, image []byte, payload core.Payload, ts time.Time) {
	s.dc.Dispatch(kind, image, "", payload, ts)

	s.mu.Lock()
	s.dispatched[kind]++
	s.lastEventAt = ts.UTC()
	s.mu.Unlock()
}

func (s *Supervisor) isInEvent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inEvent
}

func (s *Supervisor) setEvent(in bool, nr int) {
	s.mu.Lock()
	s.inEvent = in
	s.eventNr = nr
	s.mu.Unlock()
}

func (s *Supervisor) shutdown() {
	now := time.Now()
	if s.isInEvent() {
		s.dispatch(core.EventEndMotion, nil, nil, now)
		s.setEvent(false, s.dc.EventNr)
	}
	s.dispatch(core.EventStop, nil, nil, now)
	s.dc.Close()

	if s.mqtt != nil {
		if err := s.publishStatus("offline", now); err != nil {
			log.Warnf("publish offline status: %v", err)
		}
	}
}

func (s *Supervisor) runStatusLoop(ctx context.Context) {
	ticker := time.NewTicker(s.statusInterval)
	defer ticker.Stop()

	log.Infof("status loop started (interval=%s)", s.statusInterval)
	if err := s.publishStatus("online", time.Now()); err != nil {
		log.Warnf("publish status: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Debug("status loop stopped")
			return
		case t := <-ticker.C:
			if err := s.publishStatus("online", t); err != nil {
				log.Warnf("publish status: %v", err)
			}
		}
	}
}

func (s *Supervisor) statusPayload(status string, now time.Time) map[string]interface{} {
	conf := s.dc.Conf
	hostname, _ := os.Hostname()

	s.mu.Lock()
	counts := make(map[string]uint64, len(s.dispatched))
	for k, n := range s.dispatched {
		counts[k.String()] = n
	}
	payload := map[string]interface{}{
		"collector":      "cam-events",
		"status":         status,
		"camera_id":      conf.CameraID,
		"timestamp":      now.UTC().Format(time.RFC3339),
		"hostname":       hostname,
		"uptime_seconds": int64(now.Sub(s.started).Seconds()),
		"in_event":       s.inEvent,
		"event_number":   s.eventNr,
		"events":         counts,
	}
	if !s.lastEventAt.IsZero() {
		payload["last_event_at"] = s.lastEventAt.Format(time.RFC3339)
	}
	s.mu.Unlock()

	if conf.CameraName != "" {
		payload["camera_name"] = conf.CameraName
	}

	if s.proc != nil {
		if cpu, err := s.proc.CPUPercent(); err == nil {
			payload["cpu_percent"] = cpu
		}
		if memInfo, err := s.proc.MemoryInfo(); err == nil {
			payload["memory_rss_bytes"] = memInfo.RSS
		}
		if memP, err := s.proc.MemoryPercent(); err == nil {
			payload["memory_percent"] = float64(memP)
		}
	}
	return payload
}

func (s *Supervisor) publishStatus(status string, now time.Time) error {
	b, err := json.Marshal(s.statusPayload(status, now))
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	topic := notify.StatusTopic(s.dc.Conf.MQTT.BaseTopic, s.dc.Conf.CameraID)
	if err := s.mqtt.Publish(topic, 1, true, b); err != nil {
		return fmt.Errorf("publish status to %s: %w", topic, err)
	}
	log.Debugf("status %s published -> %s", status, topic)
	return nil
}
