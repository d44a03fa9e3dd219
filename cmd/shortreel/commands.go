package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kikiluvv/shortreel/internal/category"
	"github.com/kikiluvv/shortreel/internal/clips"
	"github.com/kikiluvv/shortreel/internal/config"
	"github.com/kikiluvv/shortreel/internal/ffmpeg"
	"github.com/kikiluvv/shortreel/internal/filter"
	"github.com/kikiluvv/shortreel/internal/logging"
	"github.com/kikiluvv/shortreel/internal/metrics"
	"github.com/kikiluvv/shortreel/internal/pipeline"
	"github.com/kikiluvv/shortreel/internal/predicate"
	"github.com/kikiluvv/shortreel/internal/scene"
	"github.com/kikiluvv/shortreel/internal/store"
	"github.com/kikiluvv/shortreel/internal/timeline"
	"github.com/kikiluvv/shortreel/pkg/timecode"
	"github.com/kikiluvv/shortreel/pkg/util"
)

var (
	filterOutput  string
	filterLog     string
	filterLogKept bool

	scenesOutput string

	clipsOutDir    string
	clipsSelection string

	runSelection string

	probeCountFrames bool

	logRate string

	listLimit int
)

func newExecutor(cfg *config.Config) (*ffmpeg.Executor, error) {
	ffx, err := ffmpeg.New(log.Logger, cfg.FFmpegOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ffmpeg: %w", err)
	}
	return ffx, nil
}

// frameTotal probes path for the progress bar. Zero means unknown.
func frameTotal(ctx context.Context, ffx *ffmpeg.Executor, path string) int {
	info, err := ffx.Probe(ctx, path)
	if err != nil {
		log.Debug().Err(err).Msg("probe for progress failed")
		return 0
	}
	return info.FrameCount
}

var filterCmd = &cobra.Command{
	Use:   "filter [input video]",
	Short: "Drop low-quality frames and write the filtered video and exclusion log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromContext(ctx)

		ffx, err := newExecutor(cfg)
		if err != nil {
			return err
		}

		logFile, err := os.Create(filterLog)
		if err != nil {
			return fmt.Errorf("create exclusion log: %w", err)
		}
		defer logFile.Close()

		bar := newProgressBar(frameTotal(ctx, ffx, args[0]), "Filtering", "frames")
		res, err := filter.New(log.Logger, ffx).Run(ctx, args[0], filterOutput, logFile, filter.Options{
			Predicates: cfg.Predicates(),
			LogKept:    cfg.Filter.LogKept || filterLogKept,
			OnRecord:   func(filter.ExclusionRecord) { _ = bar.Add(1) },
		})
		_ = bar.Finish()
		if err != nil {
			return err
		}
		if err := logFile.Close(); err != nil {
			return err
		}

		ev := log.Info().
			Str(logging.FieldOutput, filterOutput).
			Int("frames_in", res.FramesIn).
			Int("frames_kept", res.FramesKept)
		for _, r := range predicate.Reasons {
			if n := res.Dropped[r]; n > 0 {
				ev = ev.Int(r.String(), n)
			}
		}
		ev.Msg("filter complete")
		if res.Warning != nil {
			log.Warn().Err(res.Warning).Msg("decoding stopped early")
		}
		return nil
	},
}

var scenesCmd = &cobra.Command{
	Use:   "scenes [video]",
	Short: "Detect scene cuts and print the scene list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ffx, err := newExecutor(config.FromContext(ctx))
		if err != nil {
			return err
		}

		ranges, err := scene.New(log.Logger, ffx).Detect(ctx, args[0])
		if err != nil {
			return err
		}

		text := scene.Serialize(ranges)
		if scenesOutput == "" || scenesOutput == "-" {
			_, err = fmt.Fprint(cmd.OutOrStdout(), text)
			return err
		}
		if err := renameio.WriteFile(scenesOutput, []byte(text), 0o644); err != nil {
			return err
		}
		log.Info().Str(logging.FieldOutput, scenesOutput).Int("scenes", len(ranges)).Msg("scene list written")
		return nil
	},
}

var clipsCmd = &cobra.Command{
	Use:   "clips [video] [scene list]",
	Short: "Cut one clip per scene listed in a scene list",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromContext(ctx)

		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		tl, err := timeline.ParseReader(f)
		f.Close()
		if err != nil {
			return err
		}
		for _, m := range tl.Malformed {
			log.Warn().Err(m).Msg("skipping malformed timeline line")
		}

		indices, err := timeline.ParseSelection(clipsSelection)
		if err != nil {
			return err
		}
		selected, err := timeline.Select(tl.Scenes, indices)
		if err != nil {
			return err
		}

		ffx, err := newExecutor(cfg)
		if err != nil {
			return err
		}

		bar := newProgressBar(len(selected), "Extracting", "clips")
		out, err := clips.NewExtractor(log.Logger, ffx).Extract(ctx, args[0], selected, clipsOutDir, clips.Options{
			Extension:    cfg.Clips.Extension,
			StrictRanges: cfg.Clips.StrictRanges,
			OnClip:       func(*clips.Clip) { _ = bar.Add(1) },
		})
		_ = bar.Finish()
		if err != nil {
			return err
		}
		for _, c := range out {
			if c.Warning != nil {
				log.Warn().Err(c.Warning).Int(logging.FieldScene, c.Index).Msg("clip is incomplete")
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.Path)
		}
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run [input video]",
	Short: "Filter, detect scenes and cut clips in one go",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromContext(ctx)

		indices, err := timeline.ParseSelection(runSelection)
		if err != nil {
			return err
		}

		ffx, err := newExecutor(cfg)
		if err != nil {
			return err
		}
		pipe, err := pipeline.New(log.Logger, cfg, pipeline.Deps{Opener: ffx})
		if err != nil {
			return err
		}
		defer pipe.Close()

		if cfg.Metrics.Addr != "" {
			mctx, cancel := context.WithCancel(ctx)
			done := make(chan struct{})
			go func() {
				defer close(done)
				if err := metrics.Serve(mctx, cfg.Metrics.Addr, logging.Component(log.Logger, "metrics")); err != nil {
					log.Error().Err(err).Msg("metrics server failed")
				}
			}()
			defer func() {
				cancel()
				<-done
			}()
		}

		bar := newProgressBar(frameTotal(ctx, ffx, args[0]), "Filtering", "frames")
		project, err := pipe.Run(ctx, args[0], pipeline.RunOptions{
			Scenes:   indices,
			OnRecord: func(filter.ExclusionRecord) { _ = bar.Add(1) },
			OnClip: func(c *clips.Clip) {
				log.Debug().Int(logging.FieldScene, c.Index).Str(logging.FieldOutput, c.Path).Msg("clip written")
			},
		})
		_ = bar.Finish()
		if err != nil {
			if project != nil {
				log.Error().Str(logging.FieldRunID, project.RunID).Msg("run failed")
			}
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "run %s\n", project.RunID)
		fmt.Fprintf(cmd.OutOrStdout(), "  frames kept: %d/%d\n", project.Filter.FramesKept, project.Filter.FramesIn)
		fmt.Fprintf(cmd.OutOrStdout(), "  scenes: %d\n", len(project.Scenes))
		if project.Category != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "  category: %s\n", project.Category)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  clips: %s (%d)\n", project.Artifacts.ClipsDir, project.Clips.Len())
		fmt.Fprintf(cmd.OutOrStdout(), "  report: %s\n", project.Artifacts.Report)
		return nil
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe [video]",
	Short: "Print frame count, size, frame rate, duration and codec",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *config.FromContext(cmd.Context())
		if probeCountFrames {
			cfg.FFmpeg.CountFrames = true
		}
		ffx, err := newExecutor(&cfg)
		if err != nil {
			return err
		}

		info, err := ffx.Probe(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "frame_count\t%d\n", info.FrameCount)
		fmt.Fprintf(w, "width\t%d\n", info.Width)
		fmt.Fprintf(w, "height\t%d\n", info.Height)
		fmt.Fprintf(w, "fps\t%.3f (%s)\n", info.Rate.Float(), info.Rate)
		fmt.Fprintf(w, "duration_seconds\t%.3f\n", info.Duration())
		fmt.Fprintf(w, "codec\t%s\n", info.Codec)
		return w.Flush()
	},
}

var categoryCmd = &cobra.Command{
	Use:   "category [video]",
	Short: "Guess the video's category from sampled frames",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromContext(ctx)

		ffx, err := newExecutor(cfg)
		if err != nil {
			return err
		}
		classifier, err := category.NewONNXClassifier(log.Logger, cfg.ONNXOptions())
		if err != nil {
			return err
		}
		defer classifier.Close()

		res, err := category.New(log.Logger, ffx, classifier, category.Options{
			Samples: cfg.Category.Samples,
			Seed:    cfg.Category.Seed,
		}).Detect(ctx, args[0])
		if err != nil {
			return err
		}

		for _, v := range res.Votes {
			log.Debug().Int(logging.FieldFrame, v.Frame).Str("synset", v.Synset).Str("category", v.Category).Msg("vote")
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Category)
		return nil
	},
}

var logCmd = &cobra.Command{
	Use:   "log [exclusion log]",
	Short: "Summarize an exclusion log written by filter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rate, err := timecode.ParseRate(logRate)
		if err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		records, err := filter.ParseLog(f, rate)
		if err != nil {
			return err
		}

		counts := make(map[predicate.Reason]int)
		kept := 0
		for _, rec := range records {
			if rec.Kept {
				kept++
				continue
			}
			for _, r := range rec.Reasons {
				counts[r]++
			}
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "records\t%d\n", len(records))
		fmt.Fprintf(w, "kept\t%d\n", kept)
		fmt.Fprintf(w, "dropped\t%d\n", len(records)-kept)
		for _, r := range predicate.Reasons {
			fmt.Fprintf(w, "%s\t%d\n", r.String(), counts[r])
		}
		return w.Flush()
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(config.FromContext(cmd.Context()))
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration to a file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "shortreel.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if util.FileExists(path) {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		log.Info().Str(logging.FieldPath, path).Msg("config written")
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded resources",
}

var listRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent pipeline runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		s, err := store.Open(cfg.StorePath(), log.Logger)
		if err != nil {
			return err
		}
		defer s.Close()

		runs, err := s.ListRuns(cmd.Context(), listLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tSOURCE\tFRAMES\tSCENES\tCATEGORY\tCREATED\tELAPSED")
		for _, r := range runs {
			elapsed := "-"
			if !r.FinishedAt.IsZero() {
				elapsed = timecode.FormatDuration(r.FinishedAt.Sub(r.CreatedAt))
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%d\t%s\t%s\t%s\n",
				r.ID, r.Status, filepath.Base(r.SourcePath), r.FramesKept, r.FramesIn,
				r.Scenes, r.Category, r.CreatedAt.Format(time.DateTime), elapsed)
		}
		return w.Flush()
	},
}

func init() {
	filterCmd.Flags().StringVarP(&filterOutput, "output", "o", "filtered.mp4", "filtered video path")
	filterCmd.Flags().StringVar(&filterLog, "log", "processing_log.txt", "exclusion log path")
	filterCmd.Flags().BoolVar(&filterLogKept, "log-kept", false, "also log kept frames")

	scenesCmd.Flags().StringVarP(&scenesOutput, "output", "o", "-", "scene list path, - for stdout")

	clipsCmd.Flags().StringVar(&clipsOutDir, "out-dir", "clips", "directory for clip files")
	clipsCmd.Flags().StringVar(&clipsSelection, "scenes", "", "comma-separated scene numbers to extract (default: all)")

	runCmd.Flags().StringVar(&runSelection, "scenes", "", "comma-separated scene numbers to extract (default: all)")

	probeCmd.Flags().BoolVar(&probeCountFrames, "count-frames", false, "decode the stream to count frames exactly")

	logCmd.Flags().StringVar(&logRate, "fps", "30", "frame rate of the filtered video, e.g. 30 or 30000/1001")

	listRunsCmd.Flags().IntVar(&listLimit, "limit", 20, "maximum runs to show")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	listCmd.AddCommand(listRunsCmd)
}
