package pipeline

import (
	"time"

	"github.com/kikiluvv/shortreel/internal/category"
	"github.com/kikiluvv/shortreel/internal/clips"
	"github.com/kikiluvv/shortreel/internal/filter"
	"github.com/kikiluvv/shortreel/internal/scene"
	"github.com/kikiluvv/shortreel/internal/store"
	"github.com/kikiluvv/shortreel/internal/timeline"
	"github.com/kikiluvv/shortreel/internal/video"
)

// Artifact file names inside a run directory.
const (
	LogFile      = "processing_log.txt"
	FilteredFile = "filtered.mp4"
	ScenesFile   = "scenes.txt"
	ClipsDir     = "clips"
	ReportFile   = "report.json"
)

// Project is the outcome of one run.
type Project struct {
	RunID     string
	InputPath string
	Dir       string
	Artifacts Artifacts

	Filter   *filter.Result
	Scenes   []scene.Range
	Timeline timeline.Timeline
	// Category is empty when category detection is disabled.
	Category string
	// Clips holds the clips written so far, in scene order.
	Clips clips.Manager

	CreatedAt  time.Time
	FinishedAt time.Time
}

// Artifacts are the paths written by a run.
type Artifacts struct {
	Log      string `json:"log"`
	Filtered string `json:"filtered"`
	Scenes   string `json:"scenes"`
	ClipsDir string `json:"clips_dir"`
	Report   string `json:"report"`
}

// RunOptions configures a single run.
type RunOptions struct {
	// Scenes selects 1-based scene indices to extract. Empty means all.
	Scenes []int

	OnRecord func(filter.ExclusionRecord)
	OnClip   func(*clips.Clip)
}

// Deps overrides the collaborators New would otherwise build from config.
type Deps struct {
	Opener     video.Opener
	Classifier category.Classifier
	Store      *store.Store
}

// Report is the JSON summary written to report.json.
type Report struct {
	RunID      string         `json:"run_id"`
	Input      string         `json:"input"`
	Video      ReportVideo    `json:"video"`
	Frames     ReportFrames   `json:"frames"`
	Scenes     []ReportScene  `json:"scenes"`
	Category   string         `json:"category,omitempty"`
	Clips      []ReportClip   `json:"clips"`
	Artifacts  Artifacts      `json:"artifacts"`
	Warnings   []string       `json:"warnings,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Dropped    map[string]int `json:"dropped"`
}

type ReportVideo struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FPS        float64 `json:"fps"`
	FrameCount int     `json:"frame_count"`
	Codec      string  `json:"codec,omitempty"`
}

type ReportFrames struct {
	In      int `json:"in"`
	Kept    int `json:"kept"`
	Dropped int `json:"dropped"`
}

type ReportScene struct {
	Index int    `json:"index"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type ReportClip struct {
	Index   int    `json:"index"`
	Path    string `json:"path"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Frames  int    `json:"frames"`
	Warning string `json:"warning,omitempty"`
}
