package ffmpeg

// Progress represents ffmpeg progress data
type Progress struct {
	Frame   int
	FPS     float64
	Bitrate string
	Time    string
	Speed   string
}

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args            []string
	ProgressHandler func(*Progress)
	LogHandler      func(line string)
}

// Default encoding settings. mpeg4 ships with every ffmpeg build, unlike
// libx264.
const (
	DefaultVideoCodec = "mpeg4"
	DefaultQuality    = 2
)

// Options configures an Executor.
type Options struct {
	// BinaryPath and ProbePath override PATH lookup of ffmpeg and ffprobe.
	BinaryPath string
	ProbePath  string
	Threads    int

	// VideoCodec and Quality (-q:v) are used for every written stream.
	VideoCodec string
	Quality    int

	// CountFrames makes Probe decode the whole stream and use the decoded
	// frame count in place of the container's.
	CountFrames bool
}
