package archive

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestExtractAll(t *testing.T) {
	dir := t.TempDir()
	writeZip(t, filepath.Join(dir, "kernel-1-output.zip"), map[string]string{
		"output_x.mp4": "video bytes",
		"run.log":      "log lines",
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("keep"), 0644))

	n, err := ExtractAll(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Archive removed, contents extracted, unrelated file untouched.
	assert.NoFileExists(t, filepath.Join(dir, "kernel-1-output.zip"))
	assert.FileExists(t, filepath.Join(dir, "output_x.mp4"))
	assert.FileExists(t, filepath.Join(dir, "run.log"))
	assert.FileExists(t, filepath.Join(dir, "keep.txt"))
}

func TestExtractAll_FlattensNestedPaths(t *testing.T) {
	dir := t.TempDir()
	writeZip(t, filepath.Join(dir, "out.zip"), map[string]string{
		"working/output_video.mp4": "nested",
	})

	_, err := ExtractAll(dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "output_video.mp4"))
}

func TestExtractAll_NoArchives(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plain.mp4"), []byte("x"), 0644))

	n, err := ExtractAll(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestLocateOutput(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "output_x.mp4"), []byte("video"), 0644))

	got, err := LocateOutput(dir, "output*", "output.mp4")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "output.mp4"), got)
	assert.FileExists(t, got)
	assert.NoFileExists(t, filepath.Join(dir, "output_x.mp4"))
}

func TestLocateOutput_DeterministicTieBreak(t *testing.T) {
	dir := t.TempDir()
	// Multiple matches: the lexicographically smallest must win,
	// regardless of creation order.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "output_z.mp4"), []byte("z"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "output_a.mp4"), []byte("a"), 0644))

	got, err := LocateOutput(dir, "output*", "output.mp4")
	require.NoError(t, err)

	b, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "a", string(b))
	// The loser is left in place for operator inspection.
	assert.FileExists(t, filepath.Join(dir, "output_z.mp4"))
}

func TestLocateOutput_NoMatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run.log"), []byte("x"), 0644))

	_, err := LocateOutput(dir, "output*", "output.mp4")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoOutput)
}

func TestLocateOutput_CanonicalAlreadyPresent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "output.mp4"), []byte("done"), 0644))

	got, err := LocateOutput(dir, "output*", "output.mp4")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "output.mp4"), got)
}
