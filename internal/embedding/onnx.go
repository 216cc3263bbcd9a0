//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ArcFace-style models take a 112x112 RGB crop in NCHW layout.
const (
	inputSize     = 112
	inputChannels = 3
)

// ONNXExtractor produces face embeddings with an ArcFace-style ONNX model.
// It requires CGO and the onnxruntime shared library.
type ONNXExtractor struct {
	session    *ort.AdvancedSession
	dimensions int
	cache      *Cache
	// Pre-allocated tensors for Run(); we update input data and read output.
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	mu           sync.Mutex
}

// NewONNXExtractor creates an ONNX extractor for the model at modelPath.
// InitializeEnvironment is called if not already done. The model is expected
// to use the insightface naming convention: input "data", output "fc1".
func NewONNXExtractor(modelPath string, dimensions, cacheSize int) (*ONNXExtractor, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	inputData := make([]float32, inputChannels*inputSize*inputSize)
	inputTensor, err := ort.NewTensor(ort.NewShape(1, inputChannels, inputSize, inputSize), inputData)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	outputData := make([]float32, dimensions)
	outputTensor, err := ort.NewTensor(ort.NewShape(1, int64(dimensions)), outputData)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"data"},
		[]string{"fc1"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXExtractor{
		session:      session,
		dimensions:   dimensions,
		cache:        NewCache(cacheSize),
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Extract decodes the image at path, runs inference, and returns the raw
// embedding. Results are cached keyed by path and modification time, so a
// re-saved file is re-embedded.
func (e *ONNXExtractor) Extract(ctx context.Context, path string) ([]float32, error) {
	key, err := cacheKey(path)
	if err != nil {
		return nil, err
	}
	if cached, ok := e.cache.Get(key); ok {
		return cached, nil
	}

	img, err := decodeImage(path)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	fillInputTensor(e.inputTensor.GetData(), img)
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	outputData := e.outputTensor.GetData()
	emb := make([]float32, e.dimensions)
	copy(emb, outputData[:e.dimensions])

	e.cache.Set(key, emb)
	return emb, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXExtractor) Dimensions() int {
	return e.dimensions
}

// Close destroys the session and tensors.
func (e *ONNXExtractor) Close() error {
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	if e.inputTensor != nil {
		_ = e.inputTensor.Destroy()
		e.inputTensor = nil
	}
	if e.outputTensor != nil {
		_ = e.outputTensor.Destroy()
		e.outputTensor = nil
	}
	return err
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	return img, nil
}

// fillInputTensor resizes img to the model input size (nearest neighbor) and
// writes NCHW channel planes normalized to roughly [-1, 1]: (v - 127.5) / 128.
func fillInputTensor(dst []float32, img image.Image) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	plane := inputSize * inputSize
	for y := 0; y < inputSize; y++ {
		srcY := bounds.Min.Y + y*h/inputSize
		for x := 0; x < inputSize; x++ {
			srcX := bounds.Min.X + x*w/inputSize
			r, g, b, _ := img.At(srcX, srcY).RGBA()
			i := y*inputSize + x
			dst[i] = (float32(r>>8) - 127.5) / 128
			dst[plane+i] = (float32(g>>8) - 127.5) / 128
			dst[2*plane+i] = (float32(b>>8) - 127.5) / 128
		}
	}
}
