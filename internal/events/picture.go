package events

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/sua-org/cam-events/internal/config"
	"github.com/sua-org/cam-events/internal/core"
)

// PictureWriter stores an already encoded frame at path.
type PictureWriter interface {
	WritePicture(path string, img []byte) error
}

// FileWriter writes pictures to the local filesystem, creating missing
// directories on the way. An existing file is replaced in one rename.
type FileWriter struct {
	Perm fs.FileMode
}

func (w FileWriter) WritePicture(path string, img []byte) error {
	perm := w.Perm
	if perm == 0 {
		perm = 0o644
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	// write aside and rename, so readers of path never see a partial frame
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	tmp := f.Name()
	_, err = f.Write(img)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmp, perm)
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// putPicture writes img and announces the new file on the bus.
func (dc *Context) putPicture(path string, img []byte, ft core.FileType, ts time.Time) error {
	if err := dc.Pictures.WritePicture(path, img); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			dc.log.Errorf("can't write picture to %s, check access rights to target directory: %v", path, err)
		} else {
			dc.log.Errorf("can't write picture to %s: %v", path, err)
		}
		return err
	}
	dc.Dispatch(core.EventFileCreate, nil, path, ft, ts)
	return nil
}

// frameTime prefers the capture stamp of the frame over the event stamp.
func (dc *Context) frameTime(ev core.Event, d *core.ImageData) time.Time {
	if d != nil && !d.Timestamp.IsZero() {
		return d.Timestamp
	}
	return dc.when(ev)
}

func (dc *Context) picturePath(tmpl, suffix string, ts time.Time) string {
	name := dc.expand(tmpl, ts, "", 0) + suffix + "." + dc.Conf.ImageExt()
	return filepath.Join(dc.Conf.Output.TargetDir, name)
}

func imageDetect(dc *Context, ev core.Event) {
	if !dc.Conf.Output.PictureOutput {
		return
	}
	d := ev.ImageData()
	if d == nil || d.Image == nil {
		return
	}
	ts := dc.frameTime(ev, d)
	_ = dc.putPicture(dc.picturePath(dc.Conf.Output.PictureFilename, "", ts), d.Image, core.FileImage, ts)
}

// imagemDetect saves the motion overlay that travels in the event image.
func imagemDetect(dc *Context, ev core.Event) {
	if !dc.Conf.Output.MotionImages || ev.Image == nil {
		return
	}
	ts := dc.frameTime(ev, ev.ImageData())
	_ = dc.putPicture(dc.picturePath(dc.Conf.Output.PictureFilename, "m", ts), ev.Image, core.FileImageMotion, ts)
}

// imageSnapshot writes a timestamped snapshot and points lastsnap.<ext> at
// it. With the stable name configured the file is written directly.
func imageSnapshot(dc *Context, ev core.Event) {
	defer func() { dc.Snapshot = false }()

	d := ev.ImageData()
	if d == nil || d.Image == nil {
		return
	}
	ts := dc.frameTime(ev, d)
	ext := dc.Conf.ImageExt()
	dir := dc.Conf.Output.TargetDir

	tmpl := dc.Conf.Output.SnapshotFilename
	if tmpl == "" {
		tmpl = config.DefaultSnapshotFilename
	}

	if tmpl == config.LastSnapName {
		full := filepath.Join(dir, config.LastSnapName+"."+ext)
		_ = os.Remove(full)
		_ = dc.putPicture(full, d.Image, core.FileImageSnapshot, ts)
		return
	}

	name := dc.expand(tmpl, ts, "", 0) + "." + ext
	if err := dc.putPicture(filepath.Join(dir, name), d.Image, core.FileImageSnapshot, ts); err != nil {
		return
	}

	// remove then link: readers may briefly see no link at all
	link := filepath.Join(dir, config.LastSnapName+"."+ext)
	if err := os.Remove(link); err != nil && !errors.Is(err, fs.ErrNotExist) {
		dc.log.Warnf("remove %s: %v", link, err)
	}
	if err := os.Symlink(name, link); err != nil {
		dc.log.Errorf("could not create symbolic link %s: %v", link, err)
	}
}

// vidPutPipe copies the frame to a loopback output device.
func vidPutPipe(dc *Context, ev core.Event) {
	h, ok := ev.Payload.(core.DeviceHandle)
	if !ok || h.W == nil || ev.Image == nil {
		return
	}
	img := ev.Image
	if size := dc.Geometry.Size; size > 0 && size < len(img) {
		img = img[:size]
	}
	if _, err := h.W.Write(img); err != nil {
		dc.log.Errorf("failed to put image into video pipe: %v", err)
	}
}
