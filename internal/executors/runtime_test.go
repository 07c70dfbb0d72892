package executors

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequireModelFileMissing(t *testing.T) {
	err := requireModelFile(filepath.Join(t.TempDir(), "missing.onnx"))
	require.True(t, errors.Is(err, ErrModelMissing))
}

func TestRequireModelFilePresent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.onnx")
	require.NoError(t, os.WriteFile(path, []byte("fake weights"), 0o644))
	require.NoError(t, requireModelFile(path))
}
