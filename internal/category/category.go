// Package category guesses what a video is about by classifying a handful of
// sampled frames and taking the most common answer.
package category

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/shortreel/internal/logging"
	"github.com/kikiluvv/shortreel/internal/video"
)

// Unknown is reported when no sampled frame maps to a known category.
const Unknown = "Unknown"

// DefaultSamples is the number of frames classified per video.
const DefaultSamples = 10

// Labels maps ImageNet synsets to the categories shorts are sorted into.
var Labels = map[string]string{
	"n02342885": "Animal",
	"n03814639": "Beauty",
	"n04118538": "Sports",
	"n07697537": "Food",
}

// Label returns the category for a synset, or Unknown.
func Label(synset string) string {
	if l, ok := Labels[synset]; ok {
		return l
	}
	return Unknown
}

// Classifier returns the ImageNet synset that best describes img.
type Classifier interface {
	Classify(ctx context.Context, img image.Image) (string, error)
}

// Options configures a Detector.
type Options struct {
	Samples int
	// Seed drives frame sampling. Zero picks a time-based seed.
	Seed int64
}

// Vote is the classification of one sampled frame.
type Vote struct {
	Frame    int
	Synset   string
	Category string
}

// Result is the outcome of Detect.
type Result struct {
	Category string
	Votes    []Vote
}

// Detector samples frames from a video and classifies them.
type Detector struct {
	opener     video.Opener
	classifier Classifier
	logger     zerolog.Logger
	opts       Options
}

// New creates a Detector.
func New(logger zerolog.Logger, opener video.Opener, classifier Classifier, opts Options) *Detector {
	if opts.Samples <= 0 {
		opts.Samples = DefaultSamples
	}
	return &Detector{
		opener:     opener,
		classifier: classifier,
		logger:     logging.Component(logger, "category"),
		opts:       opts,
	}
}

// Detect classifies up to Samples distinct random frames of path and returns
// the most frequent category. Frames that fail to decode are skipped.
func (d *Detector) Detect(ctx context.Context, path string) (*Result, error) {
	src, err := d.opener.Open(ctx, path, video.ReadOptions{})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close()

	total := src.Info().FrameCount
	if total == 0 {
		return nil, fmt.Errorf("%s: %w", path, video.ErrEmptySource)
	}

	seed := d.opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	indices := Sample(total, d.opts.Samples, seed)

	res := &Result{}
	var categories []string
	for _, idx := range indices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := src.Seek(idx); err != nil {
			return nil, fmt.Errorf("seek to frame %d: %w", idx, err)
		}
		f, err := src.Read()
		if errors.Is(err, io.EOF) || errors.Is(err, video.ErrSourceDecode) {
			d.logger.Debug().Int(logging.FieldFrame, idx).AnErr("reason", err).Msg("skipping sample")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read frame %d: %w", idx, err)
		}

		synset, err := d.classifier.Classify(ctx, f.Image())
		if err != nil {
			return nil, fmt.Errorf("classify frame %d: %w", idx, err)
		}
		v := Vote{Frame: idx, Synset: synset, Category: Label(synset)}
		res.Votes = append(res.Votes, v)
		categories = append(categories, v.Category)

		d.logger.Debug().
			Int(logging.FieldFrame, idx).
			Str("synset", synset).
			Str("category", v.Category).
			Msg("classified frame")
	}

	res.Category = MostFrequent(categories)
	d.logger.Info().
		Str(logging.FieldPath, path).
		Int("samples", len(res.Votes)).
		Str("category", res.Category).
		Msg("category detected")
	return res, nil
}

// Sample returns min(n, total) distinct frame indices in [0, total), drawn
// with the given seed and sorted ascending so they can be read with forward
// seeks.
func Sample(total, n int, seed int64) []int {
	if total <= 0 || n <= 0 {
		return nil
	}
	if n > total {
		n = total
	}
	r := rand.New(rand.NewSource(seed))

	// Partial Fisher-Yates over a sparse permutation.
	swapped := make(map[int]int, n)
	at := func(i int) int {
		if v, ok := swapped[i]; ok {
			return v
		}
		return i
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		j := i + r.Intn(total-i)
		out[i] = at(j)
		swapped[j] = at(i)
	}
	sort.Ints(out)
	return out
}

// MostFrequent returns the most common value. Ties go to the value that
// appeared first; an empty input yields Unknown.
func MostFrequent(values []string) string {
	if len(values) == 0 {
		return Unknown
	}
	counts := make(map[string]int, len(values))
	best, bestCount := "", 0
	for _, v := range values {
		counts[v]++
	}
	for _, v := range values {
		if c := counts[v]; c > bestCount {
			best, bestCount = v, c
		}
	}
	return best
}
