package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kikiluvv/shortreel/internal/category"
	"github.com/kikiluvv/shortreel/internal/clips"
	"github.com/kikiluvv/shortreel/internal/config"
	"github.com/kikiluvv/shortreel/internal/ffmpeg"
	"github.com/kikiluvv/shortreel/internal/filter"
	"github.com/kikiluvv/shortreel/internal/logging"
	"github.com/kikiluvv/shortreel/internal/metrics"
	"github.com/kikiluvv/shortreel/internal/scene"
	"github.com/kikiluvv/shortreel/internal/store"
	"github.com/kikiluvv/shortreel/internal/timeline"
	"github.com/kikiluvv/shortreel/internal/video"
	"github.com/kikiluvv/shortreel/pkg/util"
)

// Pipeline orchestrates the entire video processing workflow
type Pipeline struct {
	base       zerolog.Logger
	logger     zerolog.Logger
	config     *config.Config
	opener     video.Opener
	classifier category.Classifier
	store      *store.Store

	// closers release what New built itself.
	closers []func() error
}

// New creates a pipeline. Collaborators missing from deps are built from
// cfg: an ffmpeg Executor, the ONNX classifier when category detection is
// enabled, and the run store when it is enabled.
func New(logger zerolog.Logger, cfg *config.Config, deps Deps) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		base:       logger,
		logger:     logging.Component(logger, "pipeline"),
		config:     cfg,
		opener:     deps.Opener,
		classifier: deps.Classifier,
		store:      deps.Store,
	}

	if p.opener == nil {
		ffx, err := ffmpeg.New(logger, cfg.FFmpegOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ffmpeg: %w", err)
		}
		p.opener = ffx
	}

	if p.classifier == nil && cfg.Category.Enabled {
		c, err := category.NewONNXClassifier(logger, cfg.ONNXOptions())
		if err != nil {
			p.logger.Warn().Err(err).Msg("category model unavailable, skipping category detection")
		} else {
			p.classifier = c
			p.closers = append(p.closers, c.Close)
		}
	}

	if p.store == nil && cfg.Store.Enabled {
		s, err := store.Open(cfg.StorePath(), logger)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to open run store: %w", err)
		}
		p.store = s
		p.closers = append(p.closers, s.Close)
	}

	return p, nil
}

// Close releases pipeline resources
func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		errs = append(errs, p.closers[i]())
	}
	p.closers = nil
	return errors.Join(errs...)
}

// Run filters input, detects scenes and category in parallel on the filtered
// video, then cuts one clip per selected scene. Artifacts go to
// <work_dir>/<run id>/.
func (p *Pipeline) Run(ctx context.Context, input string, opts RunOptions) (*Project, error) {
	if input == "" {
		return nil, fmt.Errorf("input path cannot be empty")
	}

	id := uuid.NewString()
	dir := filepath.Join(p.config.WorkDir, id)
	project := &Project{
		RunID:     id,
		InputPath: input,
		Dir:       dir,
		Artifacts: Artifacts{
			Log:      filepath.Join(dir, LogFile),
			Filtered: filepath.Join(dir, FilteredFile),
			Scenes:   filepath.Join(dir, ScenesFile),
			ClipsDir: filepath.Join(dir, ClipsDir),
			Report:   filepath.Join(dir, ReportFile),
		},
		CreatedAt: time.Now(),
	}
	base := p.base.With().Str(logging.FieldRunID, id).Logger()
	logger := logging.Component(base, "pipeline")

	if err := util.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}

	if p.store != nil {
		if err := p.store.CreateRun(ctx, &store.Run{ID: id, SourcePath: input, CreatedAt: project.CreatedAt}); err != nil {
			return nil, err
		}
	}

	logger.Info().Str(logging.FieldPath, input).Str(logging.FieldOutput, dir).Msg("starting pipeline")

	err := p.run(ctx, base, project, opts)
	project.FinishedAt = time.Now()
	p.finish(ctx, logger, project, err)
	if err != nil {
		return project, err
	}

	logger.Info().
		Int(logging.FieldFrames, project.Filter.FramesKept).
		Int("scenes", len(project.Scenes)).
		Int("clips", project.Clips.Len()).
		Dur("elapsed", project.FinishedAt.Sub(project.CreatedAt)).
		Msg("pipeline complete")
	return project, nil
}

func (p *Pipeline) run(ctx context.Context, base zerolog.Logger, project *Project, opts RunOptions) error {
	logger := logging.Component(base, "pipeline")

	// Stage 1: frame filter
	res, err := p.filter(ctx, base, project, opts)
	if err != nil {
		return err
	}
	project.Filter = res
	if res.FramesKept == 0 {
		return fmt.Errorf("no frames kept from %s: %w", project.InputPath, video.ErrEmptySource)
	}

	// Stage 2: scenes and category on the filtered video
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer metrics.StageTimer("scenes")()
		ranges, err := scene.New(base, p.opener).Detect(gctx, project.Artifacts.Filtered)
		if err != nil {
			return fmt.Errorf("detect scenes: %w", err)
		}
		project.Scenes = ranges
		return nil
	})
	if p.classifier != nil {
		g.Go(func() error {
			defer metrics.StageTimer("category")()
			det := category.New(base, p.opener, p.classifier, category.Options{
				Samples: p.config.Category.Samples,
				Seed:    p.config.Category.Seed,
			})
			result, err := det.Detect(gctx, project.Artifacts.Filtered)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn().Err(err).Msg("category detection failed")
				project.Category = category.Unknown
				return nil
			}
			project.Category = result.Category
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	metrics.RecordScenes(len(project.Scenes))

	text := scene.Serialize(project.Scenes)
	if err := renameio.WriteFile(project.Artifacts.Scenes, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write scene list: %w", err)
	}

	// Stage 3: timeline
	project.Timeline = timeline.Parse(text)
	for _, m := range project.Timeline.Malformed {
		logger.Warn().Err(m).Msg("skipping malformed timeline line")
	}
	selected := project.Timeline.Scenes
	if len(opts.Scenes) > 0 {
		selected, err = timeline.Select(selected, opts.Scenes)
		if err != nil {
			return err
		}
	}

	// Stage 4: clips
	if err := p.extract(ctx, base, project, selected, opts); err != nil {
		return err
	}

	return p.writeReport(project)
}

func (p *Pipeline) filter(ctx context.Context, base zerolog.Logger, project *Project, opts RunOptions) (*filter.Result, error) {
	defer metrics.StageTimer("filter")()

	logFile, err := os.Create(project.Artifacts.Log)
	if err != nil {
		return nil, fmt.Errorf("create processing log: %w", err)
	}
	defer logFile.Close()

	res, err := filter.New(base, p.opener).Run(ctx, project.InputPath, project.Artifacts.Filtered, logFile, filter.Options{
		Predicates: p.config.Predicates(),
		LogKept:    p.config.Filter.LogKept,
		OnRecord:   opts.OnRecord,
	})
	if err != nil {
		return nil, fmt.Errorf("filter frames: %w", err)
	}
	if err := logFile.Close(); err != nil {
		return nil, fmt.Errorf("close processing log: %w", err)
	}

	dropped := make(map[string]int, len(res.Dropped))
	for reason, n := range res.Dropped {
		dropped[reason.String()] = n
	}
	metrics.RecordFrames(res.FramesIn, dropped)
	return res, nil
}

func (p *Pipeline) extract(ctx context.Context, base zerolog.Logger, project *Project, selected []timeline.Scene, opts RunOptions) error {
	defer metrics.StageTimer("clips")()

	_, err := clips.NewExtractor(base, p.opener).Extract(ctx, project.Artifacts.Filtered, selected, project.Artifacts.ClipsDir, clips.Options{
		Extension:    p.config.Clips.Extension,
		StrictRanges: p.config.Clips.StrictRanges,
		OnClip: func(c *clips.Clip) {
			project.Clips.Add(c)
			if errors.Is(c.Warning, clips.ErrEmptyClipRange) {
				metrics.RecordClip(metrics.ClipEmpty)
			} else {
				metrics.RecordClip(metrics.ClipWritten)
			}
			if opts.OnClip != nil {
				opts.OnClip(c)
			}
		},
	})
	if err != nil {
		metrics.RecordClip(metrics.ClipFailed)
		return fmt.Errorf("extract clips: %w", err)
	}
	return nil
}

func (p *Pipeline) writeReport(project *Project) error {
	project.FinishedAt = time.Now()
	data, err := json.MarshalIndent(NewReport(project), "", "  ")
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(project.Artifacts.Report, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// finish records the outcome in the store. It runs even when ctx is
// cancelled so interrupted runs are not left as running.
func (p *Pipeline) finish(ctx context.Context, logger zerolog.Logger, project *Project, runErr error) {
	if p.store == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	run := &store.Run{
		ID:         project.RunID,
		SourcePath: project.InputPath,
		Status:     store.StatusSucceeded,
		Scenes:     len(project.Scenes),
		Category:   project.Category,
		FinishedAt: project.FinishedAt,
	}
	if project.Filter != nil {
		run.FramesIn = project.Filter.FramesIn
		run.FramesKept = project.Filter.FramesKept
	}
	if runErr != nil {
		run.Status = store.StatusFailed
		run.Error = runErr.Error()
	}

	if project.Clips.Len() > 0 {
		rows := make([]store.Clip, 0, project.Clips.Len())
		for _, c := range project.Clips.All() {
			rows = append(rows, store.Clip{
				Index:      c.Index,
				Path:       c.Path,
				Start:      c.Start,
				End:        c.End,
				StartFrame: c.StartFrame,
				EndFrame:   c.EndFrame,
				Frames:     c.Frames,
			})
		}
		if err := p.store.AddClips(ctx, project.RunID, rows); err != nil {
			logger.Error().Err(err).Msg("failed to record clips")
		}
	}
	if err := p.store.FinishRun(ctx, run); err != nil {
		logger.Error().Err(err).Msg("failed to record run result")
	}
}

// NewReport summarizes project for report.json.
func NewReport(project *Project) Report {
	r := Report{
		RunID:      project.RunID,
		Input:      project.InputPath,
		Category:   project.Category,
		Artifacts:  project.Artifacts,
		CreatedAt:  project.CreatedAt,
		FinishedAt: project.FinishedAt,
		Scenes:     make([]ReportScene, 0, len(project.Scenes)),
		Clips:      make([]ReportClip, 0, project.Clips.Len()),
		Dropped:    map[string]int{},
	}
	if res := project.Filter; res != nil {
		r.Video = ReportVideo{
			Width:      res.Info.Width,
			Height:     res.Info.Height,
			FPS:        res.Info.Rate.Float(),
			FrameCount: res.Info.FrameCount,
			Codec:      res.Info.Codec,
		}
		r.Frames = ReportFrames{In: res.FramesIn, Kept: res.FramesKept, Dropped: res.FramesDropped()}
		for reason, n := range res.Dropped {
			r.Dropped[reason.String()] = n
		}
		if res.Warning != nil {
			r.Warnings = append(r.Warnings, res.Warning.Error())
		}
	}
	for _, s := range project.Scenes {
		r.Scenes = append(r.Scenes, ReportScene{Index: s.Index, Start: s.Start, End: s.End})
	}
	for _, c := range project.Clips.All() {
		rc := ReportClip{Index: c.Index, Path: c.Path, Start: c.Start, End: c.End, Frames: c.Frames}
		if c.Warning != nil {
			rc.Warning = c.Warning.Error()
		}
		r.Clips = append(r.Clips, rc)
	}
	for _, w := range project.Clips.Warnings() {
		r.Warnings = append(r.Warnings, w.Error())
	}
	for _, m := range project.Timeline.Malformed {
		r.Warnings = append(r.Warnings, m.Error())
	}
	return r
}
