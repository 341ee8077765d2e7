package orchestrator

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/offloadhq/offload/pkg/jobstore"
)

// bundleDirName is the staging directory inside a job dir whose contents
// are uploaded as the remote data bundle.
const bundleDirName = "bundle"

// paramsFileName carries the per-job values read by the fixed kernel
// entrypoint.
const paramsFileName = "params.json"

// bundleParams is the params.json document placed in the bundle.
type bundleParams struct {
	InputFile  string         `json:"input_file"`
	Directive  string         `json:"directive"`
	OutputName string         `json:"output_name"`
	Params     map[string]any `json:"params,omitempty"`
}

// stageBundle prepares the upload staging directory for a job: a copy of
// the input payload plus params.json. Returns the staging directory path.
func stageBundle(jobDir, inputPath, directive string, params map[string]any) (string, error) {
	dir := filepath.Join(jobDir, bundleDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create bundle dir: %w", err)
	}

	inputName := filepath.Base(inputPath)
	if err := copyFile(inputPath, filepath.Join(dir, inputName)); err != nil {
		return "", fmt.Errorf("stage input: %w", err)
	}

	bp := bundleParams{
		InputFile:  inputName,
		Directive:  directive,
		OutputName: jobstore.CanonicalOutputName,
		Params:     params,
	}
	data, err := json.MarshalIndent(bp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, paramsFileName), data, 0o644); err != nil {
		return "", fmt.Errorf("write params: %w", err)
	}

	return dir, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
