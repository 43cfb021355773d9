package events

import (
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/sua-org/cam-events/internal/config"
	"github.com/sua-org/cam-events/internal/core"
	"github.com/sua-org/cam-events/internal/extpipe"
)

// createExtpipe starts the external encoder for a new event. The movie is
// announced before the process starts, so on_movie_start runs first.
func createExtpipe(dc *Context, ev core.Event) {
	pc := dc.Conf.Pipe
	if !pc.Enabled || pc.Command == "" {
		return
	}
	if dc.Pipe.IsOpen() {
		dc.log.Warnf("pipe for %s still open, not starting another", dc.Pipe.Filename())
		return
	}

	ts := dc.when(ev)
	tmpl := dc.Conf.Output.MovieFilename
	if tmpl == "" {
		tmpl = config.DefaultMovieFilename
	}
	filename := filepath.Join(dc.Conf.Output.TargetDir, dc.expand(tmpl, ts, "", 0))

	if err := extpipe.CheckWritable(filename); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			dc.log.Errorf("can't create %s, check access rights to target directory: %v", filename, err)
		} else {
			dc.log.Errorf("can't create %s: %v", filename, err)
		}
		return
	}

	cmd := dc.expand(pc.Command, ts, filename, 0)
	dc.log.Infof("pipe command: %s", cmd)

	dc.Dispatch(core.EventFileCreate, nil, filename, core.FileMovie, ts)

	if err := dc.Pipe.Start(cmd, filename); err != nil {
		dc.log.Errorf("could not start pipe %q: %v", cmd, err)
		return
	}
	dc.log.WithField("pid", dc.Pipe.PID()).Debugf("pipe started for %s", filename)
}

// extpipePut feeds one frame, the secondary rendition when configured and
// present.
func extpipePut(dc *Context, ev core.Event) {
	if !dc.Conf.Pipe.Enabled {
		return
	}
	d := ev.ImageData()
	if d == nil {
		return
	}
	if !dc.Pipe.IsOpen() {
		dc.log.Debug("pipe not created or closed already, dropping frame")
		return
	}

	frame := d.Image
	if d.Secondary != nil && dc.Conf.Pipe.Secondary {
		frame = d.Secondary
	}
	if frame == nil {
		return
	}
	if err := dc.Pipe.Write(frame); err != nil {
		dc.log.Errorf("failed to write frame to pipe: %v", err)
	}
}

// extpipeEnd closes an open session and announces the finished movie.
// Without an open session it does nothing.
func extpipeEnd(dc *Context, ev core.Event) {
	if !dc.Pipe.IsOpen() {
		return
	}
	filename := dc.Pipe.Filename()

	if u, err := dc.Pipe.Usage(); err == nil {
		dc.log.WithFields(logrus.Fields{
			"pid":   u.PID,
			"cpu":   u.CPUPercent,
			"rss":   u.RSSBytes,
			"movie": filename,
		}).Debug("pipe usage before close")
	}

	code, err := dc.Pipe.Close()
	if err != nil {
		dc.log.Errorf("closing pipe for %s: %v", filename, err)
	} else {
		dc.log.Infof("pipe for %s closed, exit status %d", filename, code)
	}

	dc.Dispatch(core.EventFileClose, nil, filename, core.FileMovie, dc.when(ev))
}
