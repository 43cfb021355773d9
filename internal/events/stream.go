package events

import "github.com/sua-org/cam-events/internal/core"

// LiveView is the live stream server fed by the stream handlers.
type LiveView interface {
	// Put hands over a raw frame that still needs encoding.
	Put(img []byte, width, height, size int)
	// PutEncoded hands over a frame that is already jpeg.
	PutEncoded(img []byte, width, height, size int)
	Running() bool
	Stop()
}

// streamPut feeds the live view. With frame data and no explicit image the
// secondary rendition is preferred when configured; otherwise the primary
// image goes out at full geometry.
func streamPut(dc *Context, ev core.Event) {
	if dc.Conf.Stream.Port == 0 || dc.Stream == nil {
		return
	}
	g := dc.Geometry
	img := ev.Image

	if d := ev.ImageData(); d != nil && img == nil {
		if d.Secondary != nil && dc.Conf.Stream.Secondary {
			switch g.SecondaryType {
			case core.SecondaryRaw:
				dc.Stream.Put(d.Secondary, g.SecondaryWidth, g.SecondaryHeight, g.SecondarySize)
			case core.SecondaryJPEG:
				dc.Stream.PutEncoded(d.Secondary, g.SecondaryWidth, g.SecondaryHeight, d.SecondarySize)
			}
		} else {
			img = d.Image
		}
	}

	if img != nil {
		dc.Stream.Put(img, g.Width, g.Height, g.Size)
	}
}

func stopStream(dc *Context, _ core.Event) {
	if dc.Conf.Stream.Port == 0 || dc.Stream == nil {
		return
	}
	if dc.Stream.Running() {
		dc.Stream.Stop()
	}
}
