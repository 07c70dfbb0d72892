package executors

import (
	"errors"
	"os"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ErrModelMissing is returned by any executor constructor when its
// weights file is absent from the data directory's models/ folder.
// The indexing pipeline logs a warning for it and the stage that needs
// the model does nothing, rather than failing the item or crashing
// startup; /health does not report missing models.
var ErrModelMissing = errors.New("executors: model file missing")

var (
	initOnce  sync.Once
	initErr   error
	destroyed bool
	mu        sync.Mutex
)

// InitRuntime loads the ONNX Runtime shared library exactly once per
// process. libPath may be empty to use the platform default search
// path the runtime falls back to.
func InitRuntime(libPath string) error {
	initOnce.Do(func() {
		if libPath == "" {
			libPath = defaultLibPath()
		}
		ort.SetSharedLibraryPath(libPath)
		initErr = ort.InitializeEnvironment()
	})
	return initErr
}

// ShutdownRuntime tears down the ONNX Runtime environment. Safe to
// call once at process exit.
func ShutdownRuntime() {
	mu.Lock()
	defer mu.Unlock()
	if destroyed {
		return
	}
	destroyed = true
	ort.DestroyEnvironment()
}

// requireModelFile checks a weights file exists before handing its
// path to ONNX Runtime, turning a missing-download into ErrModelMissing
// instead of a less legible runtime session-creation error.
func requireModelFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return ErrModelMissing
	}
	return nil
}

func defaultLibPath() string {
	switch runtime.GOOS {
	case "darwin":
		if runtime.GOARCH == "arm64" {
			return "/opt/homebrew/lib/libonnxruntime.dylib"
		}
		return "/usr/local/lib/libonnxruntime.dylib"
	case "windows":
		return "onnxruntime.dll"
	default:
		return "/usr/lib/libonnxruntime.so"
	}
}
