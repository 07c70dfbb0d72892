package fingerprint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmptyFileSentinel(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "empty.bin")
	require.NoError(t, os.WriteFile(p, nil, 0o644))

	fp, size, err := File(p)
	require.NoError(t, err)
	require.Zero(t, size)
	require.Len(t, fp, Length)

	fp2, _, err := File(p)
	require.NoError(t, err)
	require.Equal(t, fp, fp2)
}

func TestSameContentSameFingerprint(t *testing.T) {
	dir := t.TempDir()
	data := make([]byte, 200*1024)
	for i := range data {
		data[i] = byte(i % 251)
	}
	p1 := filepath.Join(dir, "a.bin")
	p2 := filepath.Join(dir, "b.bin")
	require.NoError(t, os.WriteFile(p1, data, 0o644))
	require.NoError(t, os.WriteFile(p2, data, 0o644))

	fp1, size1, err := File(p1)
	require.NoError(t, err)
	fp2, size2, err := File(p2)
	require.NoError(t, err)

	require.Equal(t, fp1, fp2)
	require.Equal(t, size1, size2)
}

func TestChangedMiddleBytesDoNotAffectFingerprintForLargeFiles(t *testing.T) {
	dir := t.TempDir()
	data := make([]byte, 300*1024)
	p := filepath.Join(dir, "big.bin")
	require.NoError(t, os.WriteFile(p, data, 0o644))
	fp1, _, err := File(p)
	require.NoError(t, err)

	// Flip a byte well inside the untouched middle region.
	data[150*1024] = 0xFF
	require.NoError(t, os.WriteFile(p, data, 0o644))
	fp2, _, err := File(p)
	require.NoError(t, err)

	require.Equal(t, fp1, fp2, "middle-byte changes outside head/tail windows must not change the fingerprint")
}

func TestChangedHeadAffectsFingerprint(t *testing.T) {
	dir := t.TempDir()
	data := make([]byte, 1024)
	p := filepath.Join(dir, "small.bin")
	require.NoError(t, os.WriteFile(p, data, 0o644))
	fp1, _, err := File(p)
	require.NoError(t, err)

	data[0] = 0xFF
	require.NoError(t, os.WriteFile(p, data, 0o644))
	fp2, _, err := File(p)
	require.NoError(t, err)

	require.NotEqual(t, fp1, fp2)
}
