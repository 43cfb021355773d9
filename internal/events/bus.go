// Package events dispatches daemon events to the registered side effects.
package events

import (
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sua-org/cam-events/internal/core"
)

var log = logrus.WithField("component", "events")

// Handler reacts to one event. Handlers report failures through the log and
// never return them to the caller.
type Handler func(dc *Context, ev core.Event)

// Binding associates a handler with the kind it reacts to.
type Binding struct {
	Kind    core.EventKind
	Name    string
	Handler Handler
}

// Bus is an ordered table of bindings. The table is built at startup and
// read only afterwards.
type Bus struct {
	bindings []Binding
}

// NewBus returns a bus loaded with bindings, in the given order.
func NewBus(bindings ...Binding) *Bus {
	b := &Bus{bindings: make([]Binding, 0, len(bindings))}
	for _, bnd := range bindings {
		b.Register(bnd.Kind, bnd.Name, bnd.Handler)
	}
	return b
}

// Register appends h to the table. Registration order is invocation order.
func (b *Bus) Register(kind core.EventKind, name string, h Handler) {
	if h == nil {
		return
	}
	b.bindings = append(b.bindings, Binding{Kind: kind, Name: name, Handler: h})
}

// Bindings returns a copy of the table.
func (b *Bus) Bindings() []Binding {
	out := make([]Binding, len(b.bindings))
	copy(out, b.bindings)
	return out
}

// Names lists the handlers bound to kind, in invocation order.
func (b *Bus) Names(kind core.EventKind) []string {
	var out []string
	for _, bnd := range b.bindings {
		if bnd.Kind == kind {
			out = append(out, bnd.Name)
		}
	}
	return out
}

// Dispatch runs, synchronously and in table order, every handler bound to
// kind. A kind with no binding is a no-op. Handlers may dispatch further
// events through dc; those run to completion before the outer dispatch
// moves to the next handler.
func (b *Bus) Dispatch(dc *Context, kind core.EventKind, image []byte, filename string, payload core.Payload, ts time.Time) {
	ev := core.Event{
		Kind:      kind,
		Image:     image,
		Filename:  filename,
		Payload:   payload,
		Timestamp: ts,
	}
	for _, bnd := range b.bindings {
		if bnd.Kind != kind {
			continue
		}
		b.invoke(dc, bnd, ev)
	}
}

func (b *Bus) invoke(dc *Context, bnd Binding, ev core.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("handler", bnd.Name).Errorf("panic handling %s: %v\n%s", ev.Kind, r, debug.Stack())
		}
	}()
	bnd.Handler(dc, ev)
}
