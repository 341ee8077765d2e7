// Package kaggle implements remote.Platform against the Kaggle datasets
// and kernels API.
//
// The client mirrors the platform's documented flow: files are uploaded
// one at a time for an upload token, then a dataset is created from the
// collected tokens; kernels are pushed as a single JSON document and run
// server-side; outputs are fetched as one compressed archive.
package kaggle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/offloadhq/offload/pkg/remote"
)

// Client is an authenticated platform API client.
//
// Client is safe for concurrent use.
type Client struct {
	http    *http.Client
	baseURL string
	agent   string
	cred    *Credential
}

var _ remote.Platform = (*Client)(nil)

// New creates an authenticated client.
//
// When cfg.Credential is nil the credential is resolved from the
// environment or the local credential file. A missing credential, or one
// that resolves without an account name, fails fast here with an
// actionable message wrapping remote.ErrNotConfigured -
// the orchestrator surfaces that as a job error, never as a crash.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cred := cfg.Credential
	if cred == nil {
		var err error
		cred, err = ResolveCredentials()
		if err != nil {
			if remote.IsNotConfigured(err) {
				return nil, fmt.Errorf("%w: set %s (and %s), or %s + %s, or create the credential file",
					remote.ErrNotConfigured, EnvAPIToken, EnvUsername, EnvUsername, EnvKey)
			}
			return nil, err
		}
	}

	// A bearer token alone authenticates requests but carries no account
	// name, and every bundle and kernel slug is formed as account/name.
	if strings.TrimSpace(cred.Username) == "" {
		return nil, fmt.Errorf("%w: credential has no account name; set %s alongside %s",
			remote.ErrNotConfigured, EnvUsername, EnvAPIToken)
	}

	return &Client{
		http:    &http.Client{Timeout: cfg.httpTimeout()},
		baseURL: cfg.baseURL(),
		agent:   cfg.userAgent(),
		cred:    cred,
	}, nil
}

// Username returns the account name of the authenticated credential.
func (c *Client) Username() string {
	return c.cred.Username
}

// Account returns the account name that owns bundles and kernels created
// through this client.
func (c *Client) Account() string {
	return c.cred.Username
}

// CreateDataset uploads every regular file under localDir and creates a
// new private dataset from the collected upload tokens.
//
// The create call is issued only after every file upload succeeded, so the
// bundle is atomic from the caller's point of view.
func (c *Client) CreateDataset(ctx context.Context, localDir string, spec remote.DatasetSpec) error {
	owner, name, err := splitSlug(spec.Slug)
	if err != nil {
		return &remote.PlatformError{Op: "CreateDataset", Slug: spec.Slug, Err: err}
	}

	entries, err := os.ReadDir(localDir)
	if err != nil {
		return &remote.PlatformError{Op: "CreateDataset", Slug: spec.Slug, Err: fmt.Errorf("read bundle dir: %w", err)}
	}

	var tokens []fileToken
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		tok, err := c.uploadFile(ctx, filepath.Join(localDir, entry.Name()))
		if err != nil {
			return c.wrapError("CreateDataset", spec.Slug, err)
		}
		tokens = append(tokens, fileToken{Token: tok})
	}
	if len(tokens) == 0 {
		return &remote.PlatformError{Op: "CreateDataset", Slug: spec.Slug, Err: fmt.Errorf("bundle dir %s contains no files", localDir)}
	}

	license := spec.License
	if license == "" {
		license = "CC0-1.0"
	}

	body := datasetCreateRequest{
		Title:       spec.Title,
		OwnerSlug:   owner,
		Slug:        name,
		LicenseName: license,
		IsPrivate:   true,
		Files:       tokens,
	}
	if err := c.postJSON(ctx, "/datasets/create/new", body, nil); err != nil {
		return c.wrapError("CreateDataset", spec.Slug, err)
	}
	return nil
}

// PushKernel creates or updates the kernel and triggers a run.
func (c *Client) PushKernel(ctx context.Context, spec remote.KernelSpec) error {
	if len(spec.Source) == 0 {
		return &remote.PlatformError{Op: "PushKernel", Slug: spec.Slug, Err: fmt.Errorf("kernel source is empty")}
	}

	body := kernelPushRequest{
		Slug:               spec.Slug,
		NewTitle:           spec.Title,
		Text:               string(spec.Source),
		Language:           spec.Language,
		KernelType:         "script",
		IsPrivate:          true,
		EnableGPU:          spec.EnableGPU,
		EnableInternet:     spec.EnableInternet,
		DatasetDataSources: spec.DatasetSources,
		CodeFile:           spec.CodeFile,
	}
	if err := c.postJSON(ctx, "/kernels/push", body, nil); err != nil {
		return c.wrapError("PushKernel", spec.Slug, err)
	}
	return nil
}

// KernelStatus fetches the current lifecycle state of a pushed kernel.
//
// Transport and server-side failures are returned as errors classified
// with the remote sentinels; they are distinct from a definitive
// KernelStateError reported by the platform.
func (c *Client) KernelStatus(ctx context.Context, slug string) (remote.KernelState, error) {
	owner, name, err := splitSlug(slug)
	if err != nil {
		return "", &remote.PlatformError{Op: "KernelStatus", Slug: slug, Err: err}
	}

	var resp kernelStatusResponse
	path := fmt.Sprintf("/kernels/status?userName=%s&kernelSlug=%s", owner, name)
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return "", c.wrapError("KernelStatus", slug, err)
	}
	if resp.Status == "" {
		return "", &remote.PlatformError{Op: "KernelStatus", Slug: slug, Err: fmt.Errorf("platform returned empty status")}
	}
	return remote.KernelState(resp.Status), nil
}

// DownloadOutput streams the kernel's output archive into destDir.
//
// The archive is written as "<kernel-name>-output.zip"; extraction and
// canonical-file selection are the caller's concern.
func (c *Client) DownloadOutput(ctx context.Context, slug, destDir string) error {
	owner, name, err := splitSlug(slug)
	if err != nil {
		return &remote.PlatformError{Op: "DownloadOutput", Slug: slug, Err: err}
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return &remote.PlatformError{Op: "DownloadOutput", Slug: slug, Err: fmt.Errorf("create dest dir: %w", err)}
	}

	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/kernels/output/%s/%s", owner, name), nil)
	if err != nil {
		return c.wrapError("DownloadOutput", slug, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.wrapError("DownloadOutput", slug, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return c.wrapError("DownloadOutput", slug, statusError(resp))
	}

	archivePath := filepath.Join(destDir, name+"-output.zip")
	f, err := os.Create(archivePath)
	if err != nil {
		return &remote.PlatformError{Op: "DownloadOutput", Slug: slug, Err: fmt.Errorf("create archive file: %w", err)}
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(archivePath)
		return c.wrapError("DownloadOutput", slug, err)
	}
	if err := f.Close(); err != nil {
		return &remote.PlatformError{Op: "DownloadOutput", Slug: slug, Err: fmt.Errorf("close archive file: %w", err)}
	}
	return nil
}

// Close releases resources held by the client.
// The HTTP client requires no explicit cleanup; this satisfies the interface.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// uploadFile uploads one file and returns its dataset-creation token.
func (c *Client) uploadFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/datasets/upload/file", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp)
	}

	var out fileUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("platform returned empty upload token for %s", filepath.Base(path))
	}
	return out.Token, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.agent)
	if c.cred.BearerToken() {
		req.Header.Set("Authorization", "Bearer "+c.cred.Key)
	} else {
		req.SetBasicAuth(c.cred.Username, c.cred.Key)
	}
	return req, nil
}

// httpStatusError carries the HTTP status so wrapError can classify it.
type httpStatusError struct {
	code int
	body string
}

func (e *httpStatusError) Error() string {
	if e.body != "" {
		return fmt.Sprintf("HTTP %d: %s", e.code, e.body)
	}
	return fmt.Sprintf("HTTP %d", e.code)
}

func statusError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &httpStatusError{code: resp.StatusCode, body: strings.TrimSpace(string(b))}
}

// wrapError converts transport errors into platform errors with the
// appropriate sentinel for errors.Is classification.
func (c *Client) wrapError(op, slug string, err error) error {
	wrapped := &remote.PlatformError{Op: op, Slug: slug, Err: err}

	var se *httpStatusError
	if errors.As(err, &se) {
		switch {
		case se.code == http.StatusUnauthorized || se.code == http.StatusForbidden:
			wrapped.Err = fmt.Errorf("%w: %v", remote.ErrInvalidCredentials, err)
		case se.code == http.StatusNotFound:
			wrapped.Err = fmt.Errorf("%w: %v", remote.ErrNotFound, err)
		case se.code == http.StatusTooManyRequests:
			wrapped.Err = fmt.Errorf("%w: %v", remote.ErrThrottled, err)
		case se.code >= 500:
			wrapped.Err = fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
		}
		return wrapped
	}

	// Context cancellation propagates untouched so callers can tell an
	// aborted job apart from a platform outage.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return wrapped
	}

	// Transport-level failures (DNS, refused connections, timeouts) are
	// soft errors: polls retry them on the next interval.
	var netErr net.Error
	if errors.As(err, &netErr) || isConnectionError(err) {
		wrapped.Err = fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
	}
	return wrapped
}

func isConnectionError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "connection reset")
}

// splitSlug splits "<owner>/<name>" into its parts.
func splitSlug(slug string) (owner, name string, err error) {
	parts := strings.SplitN(slug, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid slug %q: want <owner>/<name>", slug)
	}
	return parts[0], parts[1], nil
}

// Request/response wire shapes.

type fileToken struct {
	Token string `json:"token"`
}

type fileUploadResponse struct {
	Token string `json:"token"`
}

type datasetCreateRequest struct {
	Title       string      `json:"title"`
	OwnerSlug   string      `json:"ownerSlug"`
	Slug        string      `json:"slug"`
	LicenseName string      `json:"licenseName"`
	IsPrivate   bool        `json:"isPrivate"`
	Files       []fileToken `json:"files"`
}

type kernelPushRequest struct {
	Slug               string   `json:"slug"`
	NewTitle           string   `json:"newTitle"`
	Text               string   `json:"text"`
	Language           string   `json:"language"`
	KernelType         string   `json:"kernelType"`
	IsPrivate          bool     `json:"isPrivate"`
	EnableGPU          bool     `json:"enableGpu"`
	EnableInternet     bool     `json:"enableInternet"`
	DatasetDataSources []string `json:"datasetDataSources"`
	CodeFile           string   `json:"codeFile,omitempty"`
}

type kernelStatusResponse struct {
	Status         string `json:"status"`
	FailureMessage string `json:"failureMessage,omitempty"`
}
