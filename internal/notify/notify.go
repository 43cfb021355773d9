// Package notify turns bus events into MQTT messages.
package notify

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sua-org/cam-events/internal/core"
)

// Notification is the JSON body published for each event.
type Notification struct {
	ID           string    `json:"id"`
	CameraID     int       `json:"camera_id"`
	CameraName   string    `json:"camera_name,omitempty"`
	Event        string    `json:"event"`
	EventNumber  int       `json:"event_number"`
	Filename     string    `json:"filename,omitempty"`
	FileType     string    `json:"file_type,omitempty"`
	FileTypeCode int       `json:"file_type_code,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Notified lists the kinds that are published. Frame level events stay local.
var Notified = []core.EventKind{
	core.EventFirstMotion,
	core.EventEndMotion,
	core.EventFileCreate,
	core.EventFileClose,
	core.EventAreaDetected,
	core.EventCameraLost,
}

// New builds the notification for ev.
func New(cameraID int, cameraName string, eventNr int, ev core.Event) Notification {
	n := Notification{
		ID:          uuid.NewString(),
		CameraID:    cameraID,
		CameraName:  cameraName,
		Event:       ev.Kind.String(),
		EventNumber: eventNr,
		Filename:    ev.Filename,
		Timestamp:   ev.Timestamp.UTC(),
	}
	if ft := ev.FileType(); ft != 0 {
		n.FileType = ft.Name()
		n.FileTypeCode = int(ft)
	}
	return n
}

// Marshal encodes n.
func (n Notification) Marshal() ([]byte, error) {
	b, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}
	return b, nil
}

// EventTopic is base/camN/events/<kind>.
func EventTopic(base string, cameraID int, kind core.EventKind) string {
	return fmt.Sprintf("%s/cam%d/events/%s", strings.TrimSuffix(base, "/"), cameraID, kind)
}

// ControlTopic is base/camN/control/+ ; the last level is the action.
func ControlTopic(base string, cameraID int) string {
	return fmt.Sprintf("%s/cam%d/control/+", strings.TrimSuffix(base, "/"), cameraID)
}

// StatusTopic is base/camN/status (retained).
func StatusTopic(base string, cameraID int) string {
	return fmt.Sprintf("%s/cam%d/status", strings.TrimSuffix(base, "/"), cameraID)
}
