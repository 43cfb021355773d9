package events

import (
	"github.com/sua-org/cam-events/internal/core"
	"github.com/sua-org/cam-events/internal/notify"
)

// DefaultBindings is the handler table of the daemon. Order matters: for a
// given kind, handlers run top to bottom.
func DefaultBindings() []Binding {
	b := []Binding{
		{core.EventFileCreate, "sql_new_file", sqlNewFile},
		{core.EventFileCreate, "on_picture_save_command", onPictureSaveCommand},
		{core.EventFileCreate, "new_file_logged", newFileLogged},
		{core.EventFileCreate, "upload_picture", uploadPicture},
		{core.EventMotion, "beep", beep},
		{core.EventMotion, "on_motion_detected_command", onMotionDetectedCommand},
		{core.EventAreaDetected, "on_area_command", onAreaCommand},
		{core.EventFirstMotion, "on_event_start_command", onEventStartCommand},
		{core.EventEndMotion, "on_event_end_command", onEventEndCommand},
		{core.EventImageDetected, "image_detect", imageDetect},
		{core.EventImagemDetected, "imagem_detect", imagemDetect},
		{core.EventImageSnapshot, "image_snapshot", imageSnapshot},
		{core.EventImage, "vid_put_pipe", vidPutPipe},
		{core.EventImagem, "vid_put_pipe", vidPutPipe},
		{core.EventStream, "stream_put", streamPut},
		{core.EventFirstMotion, "new_video", newVideo},
		{core.EventFileClose, "on_movie_end_command", onMovieEndCommand},
		{core.EventFirstMotion, "create_extpipe", createExtpipe},
		{core.EventImageDetected, "extpipe_put", extpipePut},
		{core.EventMoviePut, "extpipe_put", extpipePut},
		{core.EventEndMotion, "extpipe_end", extpipeEnd},
		{core.EventCameraLost, "on_camera_lost_command", onCameraLostCommand},
		{core.EventStop, "stop_stream", stopStream},
	}
	for _, k := range notify.Notified {
		b = append(b, Binding{k, "publish_notification", publishNotification})
	}
	return b
}

// NewDefaultBus returns a bus loaded with DefaultBindings.
func NewDefaultBus() *Bus {
	return NewBus(DefaultBindings()...)
}
