// Package manifest provides loading and validation of offload submit manifests.
//
// A submit manifest is a YAML or JSON file that describes a single job
// submission: the local input file, the processing directive, and remote
// execution options.
//
// Manifests are validated against a JSON Schema to ensure correctness before
// submission. The schema enforces strict typing and disallows unknown
// properties.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	job:
//	  input: ./clips/session-04.mov
//	  directive: "transcode to h264 720p, strip audio"
//	kernel:
//	  enable_gpu: true
//	result:
//	  output_pattern: "output*"
package manifest

// Manifest represents a validated submit manifest.
//
// Required fields are Version and Job. Kernel and Result are optional with
// sensible defaults.
type Manifest struct {
	// Schema is an optional JSON Schema reference for editor support.
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Job describes the input and processing directive.
	Job JobConfig `json:"job" yaml:"job"`

	// Kernel configures the remote execution session (optional).
	Kernel KernelConfig `json:"kernel,omitempty" yaml:"kernel,omitempty"`

	// Result configures output retrieval (optional).
	Result ResultConfig `json:"result,omitempty" yaml:"result,omitempty"`
}

// JobConfig describes the input file and the processing directive.
type JobConfig struct {
	// Input is the path to the local input file.
	Input string `json:"input" yaml:"input"`

	// Directive is the free-form processing instruction passed to the
	// remote worker.
	Directive string `json:"directive" yaml:"directive"`

	// Filename overrides the filename used for the uploaded input. Optional.
	Filename string `json:"filename,omitempty" yaml:"filename,omitempty"`

	// Params is an optional set of structured parameters injected into the
	// job bundle alongside the input and directive.
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// KernelConfig configures the remote execution session.
type KernelConfig struct {
	// EnableGPU requests a GPU-backed session. Default: false.
	EnableGPU bool `json:"enable_gpu,omitempty" yaml:"enable_gpu,omitempty"`

	// EnableInternet allows the remote worker outbound network access.
	// Default: false.
	EnableInternet bool `json:"enable_internet,omitempty" yaml:"enable_internet,omitempty"`
}

// ResultConfig configures output retrieval.
type ResultConfig struct {
	// OutputPattern is the glob used to locate the produced output inside
	// the retrieved archive. Default: "output*".
	OutputPattern string `json:"output_pattern,omitempty" yaml:"output_pattern,omitempty"`
}

// Default values for optional configuration fields.
const (
	// DefaultVersion is the current manifest schema version.
	DefaultVersion = "1.0"

	// DefaultOutputPattern is the default glob used to locate job output.
	DefaultOutputPattern = "output*"
)

// ApplyDefaults fills in default values for optional fields.
//
// This should be called after loading and validating the manifest so callers
// don't need to reason about empty strings.
func (m *Manifest) ApplyDefaults() {
	if m.Result.OutputPattern == "" {
		m.Result.OutputPattern = DefaultOutputPattern
	}
}
