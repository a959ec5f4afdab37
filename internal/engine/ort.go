package engine

import (
	"fmt"
	"os"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/fridgely/pantry-scan-service/internal/preprocess"
)

// ORTOptions configures the ONNX Runtime backed loader.
type ORTOptions struct {
	// InputName and OutputName default to the Ultralytics export names.
	InputName  string
	OutputName string
}

// InitRuntime points the ONNX Runtime bindings at the shared library and
// initializes the environment. Call once at startup; pair with
// ort.DestroyEnvironment on shutdown.
func InitRuntime(libraryPath string) error {
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnx environment: %w", err)
	}
	return nil
}

// NewORTLoader returns a LoadFunc that opens ONNX artifacts with a dynamic
// session, letting the model dictate its output shape.
func NewORTLoader(opts ORTOptions) LoadFunc {
	inputName := opts.InputName
	if inputName == "" {
		inputName = "images"
	}
	outputName := opts.OutputName
	if outputName == "" {
		outputName = "output0"
	}

	return func(path string) (Session, error) {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("model artifact: %w", err)
		}
		sess, err := ort.NewDynamicAdvancedSession(
			path,
			[]string{inputName},
			[]string{outputName},
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		return &ortSession{session: sess}, nil
	}
}

type ortSession struct {
	session *ort.DynamicAdvancedSession
}

func (s *ortSession) Run(tensor *preprocess.ImageTensor) (RawOutput, error) {
	input, err := ort.NewTensor(ort.NewShape(tensor.Shape()...), tensor.Data)
	if err != nil {
		return RawOutput{}, fmt.Errorf("create input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{input}, outputs); err != nil {
		return RawOutput{}, fmt.Errorf("session run: %w", err)
	}

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return RawOutput{}, fmt.Errorf("unexpected output value type %T", outputs[0])
	}
	defer out.Destroy()

	shape := out.GetShape()
	dims := make([]int64, len(shape))
	copy(dims, shape)

	src := out.GetData()
	data := make([]float32, len(src))
	copy(data, src)

	return RawOutput{Data: data, Shape: dims}, nil
}

func (s *ortSession) Destroy() error {
	return s.session.Destroy()
}
