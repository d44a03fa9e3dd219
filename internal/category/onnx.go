package category

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/nfnt/resize"
	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/kikiluvv/shortreel/internal/frame"
	"github.com/kikiluvv/shortreel/internal/logging"
)

// InputSize is the square input edge of InceptionV3.
const InputSize = 299

// ONNXOptions configures an ONNXClassifier.
type ONNXOptions struct {
	ModelPath  string
	LabelsPath string
	// RuntimePath points at the onnxruntime shared library when it is not
	// in the default search path.
	RuntimePath string
}

// ONNXClassifier runs an ImageNet InceptionV3 model exported to ONNX with an
// NHWC float32 input and a 1000-logit output.
type ONNXClassifier struct {
	logger  zerolog.Logger
	labels  []string
	session *ort.DynamicAdvancedSession
	shape   ort.Shape
	mu      sync.Mutex
}

// NewONNXClassifier loads the model and its synset list.
func NewONNXClassifier(logger zerolog.Logger, opts ONNXOptions) (*ONNXClassifier, error) {
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s", opts.ModelPath)
	}

	f, err := os.Open(opts.LabelsPath)
	if err != nil {
		return nil, fmt.Errorf("open labels: %w", err)
	}
	labels, err := ReadSynsets(f)
	f.Close()
	if err != nil {
		return nil, err
	}

	if opts.RuntimePath != "" {
		ort.SetSharedLibraryPath(opts.RuntimePath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("inspect model: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model %s has no inputs or outputs", opts.ModelPath)
	}
	inputNames := []string{inputs[0].Name}
	outputNames := []string{outputs[0].Name}

	sess, err := ort.NewDynamicAdvancedSession(opts.ModelPath, inputNames, outputNames, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	logger = logging.Component(logger, "classifier")
	logger.Info().
		Str("model", opts.ModelPath).
		Strs("inputs", inputNames).
		Strs("outputs", outputNames).
		Int("labels", len(labels)).
		Msg("InceptionV3 model loaded")

	return &ONNXClassifier{
		logger:  logger,
		labels:  labels,
		session: sess,
		shape:   ort.NewShape(1, InputSize, InputSize, 3),
	}, nil
}

// Classify returns the synset of the highest logit.
func (c *ONNXClassifier) Classify(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	input, err := ort.NewTensor(c.shape, Preprocess(img))
	if err != nil {
		return "", fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1000))
	if err != nil {
		return "", fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer output.Destroy()

	c.mu.Lock()
	err = c.session.Run([]ort.Value{input}, []ort.Value{output})
	c.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("inference failed: %w", err)
	}

	idx := Argmax(output.GetData())
	if idx < 0 || idx >= len(c.labels) {
		return "", nil
	}
	return c.labels[idx], nil
}

// Close releases the session and the ONNX environment.
func (c *ONNXClassifier) Close() error {
	c.logger.Debug().Msg("closing model session")
	if c.session != nil {
		if err := c.session.Destroy(); err != nil {
			return err
		}
	}
	return ort.DestroyEnvironment()
}

// Preprocess resizes img to 299x299 and lays it out as NHWC float32 scaled
// to [-1, 1], the InceptionV3 convention.
func Preprocess(img image.Image) []float32 {
	f := frame.FromImage(resize.Resize(InputSize, InputSize, img, resize.Bilinear))

	data := make([]float32, len(f.Pix))
	for i, v := range f.Pix {
		data[i] = float32(v)/127.5 - 1
	}
	return data
}

// Argmax returns the index of the largest value, the first on ties, or -1
// for an empty slice.
func Argmax(values []float32) int {
	best := -1
	for i, v := range values {
		if best < 0 || v > values[best] {
			best = i
		}
	}
	return best
}

// ReadSynsets reads one synset per line, as in the ImageNet
// synset_words.txt file ("n01440764 tench, Tinca tinca"). Only the first
// token of each line is kept; blank lines are ignored.
func ReadSynsets(r io.Reader) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		out = append(out, fields[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("labels file is empty")
	}
	return out, nil
}
