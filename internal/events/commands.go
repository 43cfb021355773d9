package events

import (
	"fmt"

	"github.com/sua-org/cam-events/internal/core"
)

func onPictureSaveCommand(dc *Context, ev core.Event) {
	ft := ev.FileType()
	ts := dc.when(ev)
	if ft.IsImage() {
		dc.execCommand(dc.Conf.Commands.OnPictureSave, ts, ev.Filename, ft)
	}
	if ft.IsMovie() {
		dc.execCommand(dc.Conf.Commands.OnMovieStart, ts, ev.Filename, ft)
	}
}

func onMotionDetectedCommand(dc *Context, ev core.Event) {
	dc.execCommand(dc.Conf.Commands.OnMotionDetected, dc.when(ev), "", 0)
}

func onAreaCommand(dc *Context, ev core.Event) {
	dc.execCommand(dc.Conf.Commands.OnAreaDetected, dc.when(ev), "", 0)
}

func onEventStartCommand(dc *Context, ev core.Event) {
	dc.execCommand(dc.Conf.Commands.OnEventStart, dc.when(ev), "", 0)
}

func onEventEndCommand(dc *Context, ev core.Event) {
	dc.execCommand(dc.Conf.Commands.OnEventEnd, dc.when(ev), "", 0)
}

func onMovieEndCommand(dc *Context, ev core.Event) {
	ft := ev.FileType()
	if ft.IsMovie() {
		dc.execCommand(dc.Conf.Commands.OnMovieEnd, dc.when(ev), ev.Filename, ft)
	}
}

func onCameraLostCommand(dc *Context, ev core.Event) {
	dc.execCommand(dc.Conf.Commands.OnCameraLost, dc.when(ev), "", 0)
}

// newFileLogged records every file the daemon produced.
func newFileLogged(dc *Context, ev core.Event) {
	dc.log.WithField("file_type", ev.FileType().Name()).
		Infof("file of type %d saved to: %s", ev.FileType(), ev.Filename)
}

func beep(dc *Context, _ core.Event) {
	if dc.Conf.Output.Quiet || dc.Console == nil {
		return
	}
	fmt.Fprint(dc.Console, "\a")
}

// newVideo resets the movie bookkeeping at the start of an event. The frame
// rate is the capture rate clamped to what encoders accept.
func newVideo(dc *Context, _ core.Event) {
	dc.MovieLastShot = -1
	fps := dc.LastRate
	if fps < 2 {
		fps = 2
	}
	if fps > 30 {
		fps = 30
	}
	dc.MovieFPS = fps
	dc.log.Debugf("movie fps set to %d", fps)
}
