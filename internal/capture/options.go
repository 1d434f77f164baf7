package capture

import "time"

const (
	DefaultWidth    = 640
	DefaultHeight   = 480
	DefaultMimeType = "video/webm"

	// Timeslice is how often the recorder emits buffered data
	Timeslice = 10 * time.Millisecond
)

// CandidateTypes are the MIME types SupportedTypes probes the host for
var CandidateTypes = []string{
	"video/webm",
	"audio/webm",
	"video/webm;codecs=vp8",
	"video/webm;codecs=vp9",
	"video/webm;codecs=daala",
	"video/webm;codecs=h264",
	"audio/webm;codecs=opus",
	"video/mp4",
	"video/mpeg",
	"audio/wav",
}

// Options is the fixed configuration of one session
type Options struct {
	Selector string
	Width    int
	Height   int
	MimeType string
	Logging  bool
	// AudioOnly drops the video constraint, for hosts without a camera
	AudioOnly bool
}

// OptionsFromSelector returns default options bound to selector
func OptionsFromSelector(selector string) Options {
	return Options{Selector: selector}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.MimeType == "" {
		o.MimeType = DefaultMimeType
	}
	return o
}
