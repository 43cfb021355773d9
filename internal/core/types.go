// internal/core/types.go
package core

import (
	"io"
	"time"
)

// EventKind identifies the type of event dispatched on the bus.
type EventKind int

const (
	EventFileCreate EventKind = iota + 1
	EventMotion
	EventFirstMotion
	EventEndMotion
	EventTimelapse
	EventTimelapseEnd
	EventStream
	EventImageDetected
	EventImagemDetected
	EventImageSnapshot
	EventImage
	EventImagem
	EventFileClose
	EventDebug
	EventCritical
	EventAreaDetected
	EventCameraLost
	EventMoviePut
	EventStop
)

var eventKindNames = map[EventKind]string{
	EventFileCreate:     "file_create",
	EventMotion:         "motion",
	EventFirstMotion:    "first_motion",
	EventEndMotion:      "end_motion",
	EventTimelapse:      "timelapse",
	EventTimelapseEnd:   "timelapse_end",
	EventStream:         "stream",
	EventImageDetected:  "image_detected",
	EventImagemDetected: "imagem_detected",
	EventImageSnapshot:  "image_snapshot",
	EventImage:          "image",
	EventImagem:         "imagem",
	EventFileClose:      "file_close",
	EventDebug:          "debug",
	EventCritical:       "critical",
	EventAreaDetected:   "area_detected",
	EventCameraLost:     "camera_lost",
	EventMoviePut:       "movie_put",
	EventStop:           "stop",
}

func (k EventKind) String() string {
	if n, ok := eventKindNames[k]; ok {
		return n
	}
	return "unknown"
}

// Payload is the tagged value carried by an Event. The concrete type depends
// on the kind: FileType for file events, *ImageData for frame events and
// DeviceHandle for loopback writes.
type Payload interface {
	isPayload()
}

// Event is built by the caller, consumed synchronously and never stored.
type Event struct {
	Kind      EventKind
	Image     []byte
	Filename  string
	Payload   Payload
	Timestamp time.Time
}

// FileType returns the subtype bitmask when the payload carries one.
func (e Event) FileType() FileType {
	if ft, ok := e.Payload.(FileType); ok {
		return ft
	}
	return 0
}

// ImageData returns the image record when the payload carries one.
func (e Event) ImageData() *ImageData {
	if d, ok := e.Payload.(*ImageData); ok {
		return d
	}
	return nil
}

// ImageData is a captured frame plus an optional secondary rendition
// (lower resolution raw or pre-encoded jpeg).
type ImageData struct {
	Image         []byte
	Secondary     []byte
	SecondarySize int
	Timestamp     time.Time
	Shot          int
}

func (*ImageData) isPayload() {}

// DeviceHandle wraps a writable output device (v4l2 loopback, fifo, ...).
type DeviceHandle struct {
	W io.Writer
}

func (DeviceHandle) isPayload() {}

// SecondaryType describes how the secondary buffer is laid out.
type SecondaryType int

const (
	SecondaryNone SecondaryType = iota
	SecondaryRaw
	SecondaryJPEG
)

// ImageGeometry holds the sizes of the buffers produced by the capture side.
type ImageGeometry struct {
	Width  int
	Height int
	Size   int

	SecondaryWidth  int
	SecondaryHeight int
	SecondarySize   int
	SecondaryType   SecondaryType
}
