package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Clip results.
const (
	ClipWritten = "written"
	ClipEmpty   = "empty"
	ClipFailed  = "failed"
)

var (
	FramesProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shortreel_frames_processed_total",
		Help: "Total number of frames decoded by the frame filter",
	})

	FramesDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shortreel_frames_dropped_total",
		Help: "Frames excluded by the frame filter, by failed check",
	}, []string{"reason"})

	ScenesDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shortreel_scenes_detected_total",
		Help: "Total number of scene ranges detected",
	})

	ClipsWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shortreel_clips_written_total",
		Help: "Clips finalized by the extractor, by result",
	}, []string{"result"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shortreel_stage_duration_seconds",
		Help:    "Duration of each pipeline stage",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})
)

// RecordFrames adds one filter run. dropped is keyed by check name; a frame
// failing several checks counts once per check.
func RecordFrames(processed int, dropped map[string]int) {
	FramesProcessedTotal.Add(float64(processed))
	for reason, n := range dropped {
		if n > 0 {
			FramesDroppedTotal.WithLabelValues(reason).Add(float64(n))
		}
	}
}

func RecordScenes(n int) {
	ScenesDetectedTotal.Add(float64(n))
}

// RecordClip counts one clip under result (ClipWritten, ClipEmpty or ClipFailed).
func RecordClip(result string) {
	ClipsWrittenTotal.WithLabelValues(result).Inc()
}

// ObserveStage records how long stage took.
func ObserveStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// StageTimer returns a func that observes the time since StageTimer was called.
//
//	defer metrics.StageTimer("filter")()
func StageTimer(stage string) func() {
	start := time.Now()
	return func() { ObserveStage(stage, time.Since(start)) }
}

// CounterValue reads a counter's current value.
func CounterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
