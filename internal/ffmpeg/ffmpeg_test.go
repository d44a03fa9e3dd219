package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/shortreel/internal/frame"
	"github.com/kikiluvv/shortreel/internal/scene"
	"github.com/kikiluvv/shortreel/internal/video"
	"github.com/kikiluvv/shortreel/pkg/timecode"
)

// skipIfNoFFmpeg skips the test if ffmpeg is not available
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH - install with: brew install ffmpeg")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH - install with: brew install ffmpeg")
	}
}

// testVideo renders a lavfi testsrc clip of 20 frames at 10 fps.
func testVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "testsrc.mp4")
	cmd := exec.Command("ffmpeg", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "testsrc=duration=2:size=320x240:rate=10",
		"-c:v", "mpeg4", "-q:v", "2", "-pix_fmt", "yuv420p", "-y", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("could not generate test video: %v: %s", err, out)
	}
	return path
}

func newExecutor(t *testing.T, opts Options) *Executor {
	t.Helper()
	e, err := New(zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}), opts)
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}
	return e
}

func readAll(t *testing.T, r video.Reader) []*frame.Frame {
	t.Helper()
	var frames []*frame.Frame
	for {
		f, err := r.Read()
		if errors.Is(err, io.EOF) {
			return frames
		}
		if err != nil {
			t.Fatalf("Read failed after %d frames: %v", len(frames), err)
		}
		frames = append(frames, f)
	}
}

func TestFilterBuilder(t *testing.T) {
	filter := NewFilterBuilder().Scale(256, 144).Build()

	expected := "scale=256:144:flags=area"
	if filter != expected {
		t.Errorf("expected %q, got %q", expected, filter)
	}
}

func TestFilterBuilderEmpty(t *testing.T) {
	filter := NewFilterBuilder().Scale(0, 100).Build()

	if filter != "" {
		t.Errorf("expected empty string, got %q", filter)
	}
}

func TestScaledSize(t *testing.T) {
	cases := []struct {
		w, h, width int
		ww, wh      int
	}{
		{1920, 1080, 256, 256, 144},
		{320, 240, 0, 320, 240},
		{320, 240, 640, 320, 240},
		{1000, 1, 10, 10, 1},
	}
	for _, c := range cases {
		gw, gh := scaledSize(c.w, c.h, c.width)
		if gw != c.ww || gh != c.wh {
			t.Errorf("scaledSize(%d, %d, %d) = %dx%d, want %dx%d", c.w, c.h, c.width, gw, gh, c.ww, c.wh)
		}
	}
}

func TestParseProbe(t *testing.T) {
	data := []byte(`{
		"streams": [{"codec_type": "video", "codec_name": "h264", "width": 640, "height": 360,
			"r_frame_rate": "30000/1001", "avg_frame_rate": "30000/1001", "nb_frames": "300"}],
		"format": {"duration": "10.010000"}
	}`)
	info, err := parseProbe(data)
	if err != nil {
		t.Fatalf("parseProbe failed: %v", err)
	}
	if info.Width != 640 || info.Height != 360 {
		t.Errorf("expected 640x360, got %dx%d", info.Width, info.Height)
	}
	if info.Rate != (timecode.Rate{Num: 30000, Den: 1001}) {
		t.Errorf("unexpected rate %s", info.Rate)
	}
	if info.FrameCount != 300 {
		t.Errorf("expected 300 frames, got %d", info.FrameCount)
	}
	if info.Codec != "h264" {
		t.Errorf("expected codec h264, got %q", info.Codec)
	}
}

func TestParseProbeDurationFallback(t *testing.T) {
	data := []byte(`{
		"streams": [{"codec_type": "video", "codec_name": "vp9", "width": 64, "height": 48,
			"r_frame_rate": "25/1", "avg_frame_rate": "0/0"}],
		"format": {"duration": "2.000000"}
	}`)
	info, err := parseProbe(data)
	if err != nil {
		t.Fatalf("parseProbe failed: %v", err)
	}
	if info.Rate != timecode.FPS(25) {
		t.Errorf("expected 25/1, got %s", info.Rate)
	}
	if info.FrameCount != 50 {
		t.Errorf("expected 50 frames, got %d", info.FrameCount)
	}
}

func TestParseProbeNoVideo(t *testing.T) {
	data := []byte(`{"streams": [{"codec_type": "audio", "codec_name": "aac"}], "format": {}}`)
	if _, err := parseProbe(data); err == nil {
		t.Error("expected error for audio-only input")
	}
}

func TestParseProbeNoFrames(t *testing.T) {
	data := []byte(`{
		"streams": [{"codec_type": "video", "codec_name": "mpeg4", "width": 0, "height": 0,
			"r_frame_rate": "0/0", "avg_frame_rate": "0/0", "nb_frames": "0"}],
		"format": {}
	}`)
	if _, err := parseProbe(data); !errors.Is(err, errNoFrames) {
		t.Errorf("expected errNoFrames, got %v", err)
	}
}

func TestStreamOutputProgress(t *testing.T) {
	e := &Executor{logger: zerolog.Nop()}
	input := "frame=12\nfps=24.0\nbitrate=N/A\nout_time=00:00:00.500000\nspeed=2x\nprogress=continue\n" +
		"frame=20\nprogress=end\n"

	var got []Progress
	var lines int
	e.streamOutput(bytes.NewBufferString(input), func(p *Progress) { got = append(got, *p) }, func(string) { lines++ })

	if len(got) != 2 {
		t.Fatalf("expected 2 progress blocks, got %d", len(got))
	}
	if got[0].Frame != 12 || got[0].FPS != 24 || got[0].Speed != "2x" || got[0].Time != "00:00:00.500000" {
		t.Errorf("unexpected first block %+v", got[0])
	}
	if got[1].Frame != 20 {
		t.Errorf("expected frame 20, got %d", got[1].Frame)
	}
	if lines != 8 {
		t.Errorf("expected 8 log lines, got %d", lines)
	}
}

func TestStderrTail(t *testing.T) {
	tail := &stderrTail{}
	tail.Write(bytes.Repeat([]byte("a"), stderrTailSize))
	tail.Write([]byte("last error\n"))
	s := tail.String()
	if len(s) > stderrTailSize {
		t.Errorf("tail grew to %d bytes", len(s))
	}
	if !bytes.HasSuffix([]byte(s), []byte("last error")) {
		t.Errorf("tail lost the most recent output: %q", s[len(s)-20:])
	}
}

func TestExecutorCreation(t *testing.T) {
	skipIfNoFFmpeg(t)

	e := newExecutor(t, Options{Threads: 2})
	if e.ffmpegPath == "" {
		t.Error("ffmpeg path is empty")
	}
	if e.ffprobePath == "" {
		t.Error("ffprobe path is empty")
	}
	if e.codec != DefaultVideoCodec {
		t.Errorf("expected default codec %q, got %q", DefaultVideoCodec, e.codec)
	}
}

func TestExecutorMissingBinary(t *testing.T) {
	_, err := New(zerolog.Nop(), Options{BinaryPath: "/nonexistent/ffmpeg"})
	if err == nil {
		t.Error("expected error for missing ffmpeg binary")
	}
}

func TestProbeVideo(t *testing.T) {
	skipIfNoFFmpeg(t)
	path := testVideo(t)

	e := newExecutor(t, Options{})
	info, err := e.Probe(context.Background(), path)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}

	if info.Width != 320 || info.Height != 240 {
		t.Errorf("expected 320x240, got %dx%d", info.Width, info.Height)
	}
	if info.Rate != timecode.FPS(10) {
		t.Errorf("expected 10/1, got %s", info.Rate)
	}
	if info.FrameCount != 20 {
		t.Errorf("expected 20 frames, got %d", info.FrameCount)
	}
	t.Logf("Video info: %dx%d @ %s, %d frames, codec %s", info.Width, info.Height, info.Rate, info.FrameCount, info.Codec)
}

func TestProbeCountFrames(t *testing.T) {
	skipIfNoFFmpeg(t)
	path := testVideo(t)

	e := newExecutor(t, Options{CountFrames: true})
	info, err := e.Probe(context.Background(), path)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if info.FrameCount != 20 {
		t.Errorf("expected 20 decoded frames, got %d", info.FrameCount)
	}
}

func TestProbeVideoInvalidFile(t *testing.T) {
	skipIfNoFFmpeg(t)

	e := newExecutor(t, Options{})
	ctx := context.Background()

	_, err := e.Probe(ctx, "nonexistent.mp4")
	if !errors.Is(err, video.ErrSourceUnreadable) {
		t.Errorf("expected ErrSourceUnreadable, got %v", err)
	}

	invalidPath := filepath.Join(t.TempDir(), "invalid.txt")
	os.WriteFile(invalidPath, []byte("not a video"), 0644)

	_, err = e.Open(ctx, invalidPath, video.ReadOptions{})
	if !errors.Is(err, video.ErrSourceUnreadable) {
		t.Errorf("expected ErrSourceUnreadable, got %v", err)
	}
}

func TestReadFrames(t *testing.T) {
	skipIfNoFFmpeg(t)
	path := testVideo(t)

	e := newExecutor(t, Options{})
	r, err := e.Open(context.Background(), path, video.ReadOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	frames := readAll(t, r)
	if len(frames) != 20 {
		t.Fatalf("expected 20 frames, got %d", len(frames))
	}
	if frames[0].Width != 320 || frames[0].Height != 240 {
		t.Errorf("unexpected frame size %dx%d", frames[0].Width, frames[0].Height)
	}
	if r.Position() != 20 {
		t.Errorf("expected position 20, got %d", r.Position())
	}
	if _, err := r.Read(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after the last frame, got %v", err)
	}
}

func TestReadScaled(t *testing.T) {
	skipIfNoFFmpeg(t)
	path := testVideo(t)

	e := newExecutor(t, Options{})
	r, err := e.Open(context.Background(), path, video.ReadOptions{ScaleWidth: 160})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	if info := r.Info(); info.Width != 160 || info.Height != 120 {
		t.Errorf("expected 160x120 info, got %dx%d", info.Width, info.Height)
	}
	f, err := r.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(f.Pix) != frame.Size(160, 120) {
		t.Errorf("expected %d bytes, got %d", frame.Size(160, 120), len(f.Pix))
	}
}

func TestSeek(t *testing.T) {
	skipIfNoFFmpeg(t)
	path := testVideo(t)
	ctx := context.Background()

	e := newExecutor(t, Options{})
	ref, err := e.Open(ctx, path, video.ReadOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	want := readAll(t, ref)
	ref.Close()

	r, err := e.Open(ctx, path, video.ReadOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	check := func(index int) {
		t.Helper()
		if err := r.Seek(index); err != nil {
			t.Fatalf("Seek(%d) failed: %v", index, err)
		}
		f, err := r.Read()
		if err != nil {
			t.Fatalf("Read after Seek(%d) failed: %v", index, err)
		}
		if !bytes.Equal(f.Pix, want[index].Pix) {
			t.Errorf("frame after Seek(%d) does not match sequential decode", index)
		}
	}

	check(5)  // forward skip
	check(5)  // back one frame
	check(12) // forward again
	check(3)  // backward restart

	if err := r.Seek(100); err != nil {
		t.Fatalf("Seek past end failed: %v", err)
	}
	if _, err := r.Read(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF past the end, got %v", err)
	}
	if err := r.Seek(-1); !errors.Is(err, video.ErrInvalidOptions) {
		t.Errorf("expected ErrInvalidOptions for negative seek, got %v", err)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	skipIfNoFFmpeg(t)
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "out.mp4")

	e := newExecutor(t, Options{})
	w, err := e.Create(ctx, out, video.Info{Width: 64, Height: 48, Rate: timecode.FPS(4)})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	for i := 0; i < 12; i++ {
		f := frame.New(64, 48)
		f.Fill(200, 200, 200)
		if err := w.Write(f); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}
	if err := w.Write(frame.New(32, 32)); !errors.Is(err, video.ErrFrameSize) {
		t.Errorf("expected ErrFrameSize, got %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
	if w.Frames() != 12 {
		t.Errorf("expected 12 frames written, got %d", w.Frames())
	}

	r, err := e.Open(ctx, out, video.ReadOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	info := r.Info()
	if info.Width != 64 || info.Height != 48 || info.Rate != timecode.FPS(4) {
		t.Errorf("unexpected info %+v", info)
	}
	frames := readAll(t, r)
	if len(frames) != 12 {
		t.Fatalf("expected 12 frames, got %d", len(frames))
	}
	if m := frames[6].Mean(); m < 190 || m > 210 {
		t.Errorf("expected mean near 200, got %.1f", m)
	}
}

func TestWriterZeroFrames(t *testing.T) {
	skipIfNoFFmpeg(t)
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "empty.mp4")

	e := newExecutor(t, Options{})
	w, err := e.Create(ctx, out, video.Info{Width: 64, Height: 48, Rate: timecode.FPS(4)})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output file was not created: %v", err)
	}

	// Reopening yields either an empty-source error or a stream with no frames.
	r, err := e.Open(ctx, out, video.ReadOptions{})
	if err != nil {
		if !errors.Is(err, video.ErrEmptySource) {
			t.Fatalf("expected ErrEmptySource, got %v", err)
		}
		return
	}
	defer r.Close()
	if _, err := r.Read(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF from an empty stream, got %v", err)
	}
}

func TestZeroFrameOutputIsEmptySource(t *testing.T) {
	skipIfNoFFmpeg(t)
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "filtered.mp4")

	e := newExecutor(t, Options{})
	w, err := e.Create(ctx, out, video.Info{Width: 64, Height: 48, Rate: timecode.FPS(10)})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	_, err = scene.New(zerolog.Nop(), e).Detect(ctx, out)
	if !errors.Is(err, video.ErrEmptySource) {
		t.Errorf("expected ErrEmptySource, got %v", err)
	}
}

func TestProbeZeroLengthFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.mp4")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	e := &Executor{logger: zerolog.Nop()}
	if _, err := e.Probe(context.Background(), path); !errors.Is(err, video.ErrEmptySource) {
		t.Errorf("expected ErrEmptySource, got %v", err)
	}
}

func TestWriterCloseFromOtherGoroutine(t *testing.T) {
	skipIfNoFFmpeg(t)
	out := filepath.Join(t.TempDir(), "out.mp4")

	e := newExecutor(t, Options{})
	w, err := e.Create(context.Background(), out, video.Info{Width: 320, Height: 240, Rate: timecode.FPS(25)})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		f := frame.New(320, 240)
		f.Fill(90, 90, 90)
		for i := 0; ; i++ {
			if err := w.Write(f); err != nil {
				done <- err
				return
			}
			if i == 0 {
				close(started)
			}
		}
	}()
	<-started
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := <-done; !errors.Is(err, video.ErrClosed) {
		t.Errorf("expected ErrClosed from the pending Write, got %v", err)
	}
	if w.Frames() == 0 {
		t.Error("expected frames written before Close")
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}

func TestCreateInvalidInfo(t *testing.T) {
	e := &Executor{logger: zerolog.Nop()}
	_, err := e.Create(context.Background(), "out.mp4", video.Info{Width: 0, Height: 48, Rate: timecode.FPS(4)})
	if !errors.Is(err, video.ErrInvalidOptions) {
		t.Errorf("expected ErrInvalidOptions, got %v", err)
	}
}

func TestCloseAbortsRead(t *testing.T) {
	skipIfNoFFmpeg(t)
	path := testVideo(t)

	e := newExecutor(t, Options{})
	r, err := e.Open(context.Background(), path, video.ReadOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := r.Read(); err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		for {
			if _, err := r.Read(); err != nil {
				done <- err
				return
			}
		}
	}()
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	err = <-done
	if !errors.Is(err, video.ErrClosed) && !errors.Is(err, io.EOF) {
		t.Errorf("expected ErrClosed (or EOF if decoding finished first), got %v", err)
	}
	if _, err := r.Read(); !errors.Is(err, video.ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}
