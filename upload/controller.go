package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"sync"
	"time"

	"github.com/modaops/retailfetch/observe"
	"github.com/modaops/retailfetch/scope"
)

// Synthetic progress defaults. The indicator advances linearly on a fixed
// timer toward the ceiling and is forced to 100 when the transfer resolves.
const (
	defaultProgressInterval = 150 * time.Millisecond
	progressStep            = 5
	progressCeiling         = 90
)

// State is the controller's position in the upload lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateUploading State = "uploading"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Result is a successful upload response. DatasetID and RecordCounts are
// both required; a response missing either is a failure, not a success.
type Result struct {
	DatasetID    string         `json:"datasetId"`
	RecordCounts map[string]int `json:"recordCounts"`
	Filename     string         `json:"filename,omitempty"`
}

// Poster sends the multipart write request. Implemented by client.Client.
type Poster interface {
	Post(ctx context.Context, path, contentType string, body io.Reader) ([]byte, error)
}

// Controller drives uploads and owns their display state.
//
// Contract:
// - Concurrency: safe for concurrent use; at most one upload runs at a time.
// - Context: Upload honors cancellation through the underlying transport.
// - Errors: every failure surfaces to the caller; nothing is retried.
type Controller struct {
	poster   Poster
	scope    *scope.Scope
	endpoint string
	logger   observe.Logger

	onSuccess        func(Result)
	progressInterval time.Duration

	mu           sync.Mutex
	state        State
	progress     int
	uploadedFile string
	lastErr      error
}

// Option configures a Controller.
type Option func(*Controller)

// WithEndpoint overrides the upload endpoint path (default "upload").
func WithEndpoint(endpoint string) Option {
	return func(c *Controller) { c.endpoint = endpoint }
}

// WithOnSuccess registers a callback fired after a successful upload, once
// the scope has been repointed at the new dataset.
func WithOnSuccess(fn func(Result)) Option {
	return func(c *Controller) { c.onSuccess = fn }
}

// WithLogger attaches a structured logger.
func WithLogger(l observe.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithProgressInterval overrides the synthetic progress tick interval.
func WithProgressInterval(d time.Duration) Option {
	return func(c *Controller) { c.progressInterval = d }
}

// New creates a Controller posting to the given scope's backend.
func New(poster Poster, sc *scope.Scope, opts ...Option) *Controller {
	c := &Controller{
		poster:           poster,
		scope:            sc,
		endpoint:         "upload",
		logger:           observe.NopLogger(),
		progressInterval: defaultProgressInterval,
		state:            StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Progress returns the synthetic progress indicator, 0-100.
func (c *Controller) Progress() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// UploadedFile returns the display name of the currently loaded file, empty
// when no upload has succeeded.
func (c *Controller) UploadedFile() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uploadedFile
}

// Err returns the error from the most recent failed upload, nil otherwise.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Upload posts one file and blocks until the transfer resolves.
//
// On success the scope's dataset id is replaced, its filters are cleared, and
// the success callback fires. On failure the progress indicator and the
// uploaded-file display revert to their pre-upload values; no partial success
// is ever shown.
func (c *Controller) Upload(ctx context.Context, filename string, contents io.Reader) (Result, error) {
	prevFile, err := c.begin(filename)
	if err != nil {
		return Result{}, err
	}

	stop := c.startProgress()

	contentType, body, err := encodeMultipart(filename, contents)
	if err != nil {
		stop()
		c.fail(prevFile, err)
		return Result{}, err
	}

	c.logger.Info(ctx, "upload started", observe.Field{Key: "filename", Value: filename})

	raw, err := c.poster.Post(ctx, c.endpoint, contentType, body)
	stop()
	if err != nil {
		c.fail(prevFile, err)
		c.logger.Error(ctx, "upload failed", observe.Field{Key: "error", Value: err.Error()})
		return Result{}, err
	}

	result, err := decodeResult(raw)
	if err != nil {
		c.fail(prevFile, err)
		c.logger.Error(ctx, "upload failed", observe.Field{Key: "error", Value: err.Error()})
		return Result{}, err
	}
	if result.Filename == "" {
		result.Filename = filename
	}

	c.succeed(result)
	c.logger.Info(ctx, "upload succeeded",
		observe.Field{Key: "dataset_id", Value: result.DatasetID},
		observe.Field{Key: "records", Value: totalRecords(result.RecordCounts)},
	)

	if c.onSuccess != nil {
		c.onSuccess(result)
	}
	return result, nil
}

// begin transitions idle/succeeded/failed -> uploading and clears the prior
// progress and result display. Returns the pre-upload file display so a
// failure can restore it.
func (c *Controller) begin(filename string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateUploading {
		return "", ErrInProgress
	}

	prev := c.uploadedFile
	c.state = StateUploading
	c.progress = 0
	c.lastErr = nil
	c.uploadedFile = filename
	return prev, nil
}

// startProgress launches the synthetic progress ticker. The returned stop
// function is idempotent and waits for the ticker goroutine to exit.
func (c *Controller) startProgress() func() {
	done := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		defer close(exited)
		ticker := time.NewTicker(c.progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.mu.Lock()
				if c.progress < progressCeiling {
					c.progress += progressStep
				}
				c.mu.Unlock()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-exited
		})
	}
}

func (c *Controller) succeed(result Result) {
	c.mu.Lock()
	c.state = StateSucceeded
	c.progress = 100
	c.uploadedFile = result.Filename
	c.mu.Unlock()

	// The scope reset is what redirects every widget to the new dataset.
	c.scope.SetDatasetID(result.DatasetID)
	c.scope.ClearFilters()
}

func (c *Controller) fail(prevFile string, err error) {
	c.mu.Lock()
	c.state = StateFailed
	c.progress = 0
	c.uploadedFile = prevFile
	c.lastErr = err
	c.mu.Unlock()
}

// encodeMultipart assembles the one-file multipart body.
func encodeMultipart(filename string, contents io.Reader) (string, io.Reader, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", nil, fmt.Errorf("upload: build form: %w", err)
	}
	if _, err := io.Copy(part, contents); err != nil {
		return "", nil, fmt.Errorf("upload: read file: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", nil, fmt.Errorf("upload: finish form: %w", err)
	}
	return w.FormDataContentType(), &buf, nil
}

// decodeResult validates the success response. Both required fields must be
// present even though the transport call itself succeeded.
func decodeResult(raw []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return Result{}, fmt.Errorf("upload: response not valid JSON: %w", err)
	}
	if result.DatasetID == "" {
		return Result{}, ErrMissingDatasetID
	}
	if result.RecordCounts == nil {
		return Result{}, ErrMissingRecordCounts
	}
	return result, nil
}

func totalRecords(counts map[string]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}
