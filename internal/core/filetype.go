package core

import "strings"

// FileType is the subtype bitmask carried by file events.
type FileType uint

const (
	FileImage          FileType = 1
	FileImageSnapshot  FileType = 2
	FileImageMotion    FileType = 4
	FileMovie          FileType = 8
	FileMovieMotion    FileType = 16
	FileMovieTimelapse FileType = 32

	FileImageAny = FileImage | FileImageSnapshot | FileImageMotion
	FileMovieAny = FileMovie | FileMovieMotion | FileMovieTimelapse
)

func (FileType) isPayload() {}

var fileTypeNames = []struct {
	flag FileType
	name string
}{
	{FileImage, "image"},
	{FileImageSnapshot, "snapshot"},
	{FileImageMotion, "motion-image"},
	{FileMovie, "movie"},
	{FileMovieMotion, "motion-movie"},
	{FileMovieTimelapse, "timelapse"},
}

// IsImage reports whether any picture flag is set.
func (f FileType) IsImage() bool { return f&FileImageAny != 0 }

// IsMovie reports whether any movie flag is set.
func (f FileType) IsMovie() bool { return f&FileMovieAny != 0 }

// Name joins the names of the flags set in f with "+", in flag order.
// An empty mask is "none".
func (f FileType) Name() string {
	var parts []string
	for _, n := range fileTypeNames {
		if f&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// ContentType guesses the MIME type for an output file extension.
func ContentType(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "ppm":
		return "image/x-portable-pixmap"
	case "webp":
		return "image/webp"
	case "mp4":
		return "video/mp4"
	case "mkv":
		return "video/x-matroska"
	default:
		return "application/octet-stream"
	}
}
