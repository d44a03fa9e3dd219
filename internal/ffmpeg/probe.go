package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/kikiluvv/shortreel/internal/logging"
	"github.com/kikiluvv/shortreel/internal/video"
	"github.com/kikiluvv/shortreel/pkg/timecode"
)

// errNoFrames marks a stream that declares zero frames and therefore lacks
// usable geometry or rate.
var errNoFrames = errors.New("stream has no frames")

// Probe extracts the metadata of the first video stream of a file. A
// zero-length file or a stream without frames is reported as
// video.ErrEmptySource.
func (e *Executor) Probe(ctx context.Context, filePath string) (video.Info, error) {
	if filePath == "" {
		return video.Info{}, fmt.Errorf("%w: file path is required", video.ErrSourceUnreadable)
	}
	if st, err := os.Stat(filePath); err == nil && st.Mode().IsRegular() && st.Size() == 0 {
		return video.Info{}, fmt.Errorf("%s: %w", filePath, video.ErrEmptySource)
	}

	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-select_streams", "v:0",
		filePath,
	}

	tail := &stderrTail{}
	cmd := e.command(ctx, e.ffprobePath, args...)
	cmd.Stderr = tail
	output, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return video.Info{}, ctxErr
		}
		return video.Info{}, fmt.Errorf("%w: ffprobe %s: %v", video.ErrSourceUnreadable, filePath, exitError(err, tail))
	}

	info, err := parseProbe(output)
	if errors.Is(err, errNoFrames) {
		return video.Info{}, fmt.Errorf("%s: %w", filePath, video.ErrEmptySource)
	}
	if err != nil {
		return video.Info{}, fmt.Errorf("%w: %s: %v", video.ErrSourceUnreadable, filePath, err)
	}

	if e.countFrames {
		n, err := e.CountFrames(ctx, filePath)
		if err != nil {
			return video.Info{}, fmt.Errorf("%w: %v", video.ErrSourceUnreadable, err)
		}
		info.FrameCount = n
	}

	e.logger.Debug().
		Str(logging.FieldPath, filePath).
		Str(logging.FieldResolution, fmt.Sprintf("%dx%d", info.Width, info.Height)).
		Str(logging.FieldFPS, info.Rate.String()).
		Int(logging.FieldFrames, info.FrameCount).
		Str(logging.FieldCodec, info.Codec).
		Msg("probed video")

	return info, nil
}

// parseProbe converts ffprobe JSON into stream metadata. The frame count is
// nb_frames when the container records it, otherwise duration × fps.
func parseProbe(data []byte) (video.Info, error) {
	var probe probeResult
	if err := json.Unmarshal(data, &probe); err != nil {
		return video.Info{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	for _, stream := range probe.Streams {
		if stream.CodecType != "video" {
			continue
		}

		info := video.Info{
			Width:  stream.Width,
			Height: stream.Height,
			Codec:  stream.CodecName,
		}

		rate, rateErr := timecode.ParseRate(stream.AvgFrameRate)
		if rateErr != nil || !rate.Valid() {
			rate, rateErr = timecode.ParseRate(stream.RFrameRate)
		}
		if rateErr == nil {
			info.Rate = rate
		}

		dur := stream.Duration
		if dur == "" {
			dur = probe.Format.Duration
		}
		seconds, _ := strconv.ParseFloat(dur, 64)

		declared := false
		if n, err := strconv.Atoi(stream.NbFrames); err == nil && n >= 0 {
			info.FrameCount = n
			declared = true
		} else if seconds > 0 && info.Rate.Valid() {
			info.FrameCount = int(math.Round(seconds * info.Rate.Float()))
		}

		if err := info.Validate(); err != nil {
			if info.FrameCount == 0 && (declared || seconds <= 0) {
				return video.Info{}, errNoFrames
			}
			if rateErr != nil {
				return video.Info{}, fmt.Errorf("frame rate: %w", rateErr)
			}
			return video.Info{}, err
		}
		return info, nil
	}

	return video.Info{}, fmt.Errorf("no video stream")
}

// probeResult matches ffprobe JSON output structure
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		NbFrames     string `json:"nb_frames"`
		Duration     string `json:"duration"`
	} `json:"streams"`
}
