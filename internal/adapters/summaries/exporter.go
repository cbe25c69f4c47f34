package summaries

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"agroqc/internal/blob"
	"agroqc/internal/core"

	"github.com/google/uuid"
)

// ExportStatus describes the lifecycle stage of an export request.
type ExportStatus string

const (
	ExportStatusQueued    ExportStatus = "queued"
	ExportStatusRunning   ExportStatus = "running"
	ExportStatusSucceeded ExportStatus = "succeeded"
	ExportStatusFailed    ExportStatus = "failed"
)

// ErrQueueFull is returned by EnqueueExport when the worker is saturated.
var ErrQueueFull = errors.New("export queue full")

// ExportArtifact captures a stored summary rendering.
type ExportArtifact struct {
	Format Format `json:"format"`
	Rows   int    `json:"rows"`
	blob.Info
}

// ExportRecord tracks an export request and its artifacts.
type ExportRecord struct {
	ID          string            `json:"id"`
	Summary     core.Summary      `json:"summary"`
	Params      map[string]string `json:"params,omitempty"`
	Formats     []Format          `json:"formats"`
	Status      ExportStatus      `json:"status"`
	Error       string            `json:"error,omitempty"`
	Artifacts   []ExportArtifact  `json:"artifacts,omitempty"`
	RequestedBy string            `json:"requested_by,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// ExportInput is an enqueue request for the worker.
type ExportInput struct {
	SummaryKey  string
	Params      map[string]string
	Formats     []Format
	RequestedBy string
	Reason      string
}

// Runner computes summaries. *core.Service satisfies it.
type Runner interface {
	Summaries() []core.Summary
	Summary(key string) (core.Summary, bool)
	ValidateSummaryParams(key string, params map[string]string) error
	RunSummary(ctx context.Context, key string, params map[string]string) (core.SummaryResult, error)
}

// Worker renders summaries asynchronously and stores them in a blob store
// under exports/<id>/<summary>.<format>.
type Worker struct {
	runner Runner
	store  blob.Store
	logger core.Logger
	now    func() time.Time

	queue chan string
	mu    sync.RWMutex
	jobs  map[string]*ExportRecord

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// WorkerOption customises a Worker.
type WorkerOption func(*Worker)

// WithLogger routes worker progress to logger.
func WithLogger(logger core.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithQueueSize sets the number of exports that may wait for the worker.
func WithQueueSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.queue = make(chan string, n)
		}
	}
}

// WithNow overrides the clock used to stamp records.
func WithNow(now func() time.Time) WorkerOption {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWorker constructs an export worker. Start must be called before queued
// exports make progress.
func NewWorker(runner Runner, store blob.Store, opts ...WorkerOption) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		runner: runner,
		store:  store,
		logger: nopLogger{},
		now:    func() time.Time { return time.Now().UTC() },
		queue:  make(chan string, 32),
		jobs:   make(map[string]*ExportRecord),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case id := <-w.queue:
			w.process(id)
		}
	}
}

// EnqueueExport validates input, including summary params, and schedules an
// export job. The returned record is a queued snapshot.
func (w *Worker) EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error) {
	if err := ctx.Err(); err != nil {
		return ExportRecord{}, err
	}
	key := strings.TrimSpace(input.SummaryKey)
	if key == "" {
		return ExportRecord{}, validationError("summary", "is required")
	}
	summary, ok := w.runner.Summary(key)
	if !ok {
		return ExportRecord{}, notFound(key)
	}
	if err := w.runner.ValidateSummaryParams(key, input.Params); err != nil {
		return ExportRecord{}, err
	}

	formats := input.Formats
	if len(formats) == 0 {
		formats = []Format{FormatJSON, FormatCSV}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{}, len(formats))
	for _, f := range formats {
		if _, dup := seen[f]; dup {
			continue
		}
		if _, ok := ParseFormat(string(f)); !ok {
			return ExportRecord{}, validationError("formats", fmt.Sprintf("format %q is not supported", f))
		}
		seen[f] = struct{}{}
		uniq = append(uniq, f)
	}

	now := w.now()
	record := &ExportRecord{
		ID:          uuid.NewString(),
		Summary:     summary,
		Params:      cloneParams(input.Params),
		Formats:     uniq,
		Status:      ExportStatusQueued,
		RequestedBy: input.RequestedBy,
		Reason:      input.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[record.ID] = record
	snapshot := record.copy()
	w.mu.Unlock()

	select {
	case w.queue <- record.ID:
	default:
		w.mu.Lock()
		delete(w.jobs, record.ID)
		w.mu.Unlock()
		return ExportRecord{}, ErrQueueFull
	}
	w.logger.Info("export queued", "export_id", record.ID, "summary", key, "requested_by", input.RequestedBy)
	return snapshot, nil
}

// GetExport returns a snapshot of the export record.
func (w *Worker) GetExport(id string) (ExportRecord, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return ExportRecord{}, false
	}
	return record.copy(), true
}

// Artifact returns the stored artifact of export id in format f.
func (w *Worker) Artifact(ctx context.Context, id string, f Format) (ExportArtifact, []byte, error) {
	record, ok := w.GetExport(id)
	if !ok {
		return ExportArtifact{}, nil, fmt.Errorf("export %s: %w", id, blob.ErrNotFound)
	}
	for _, a := range record.Artifacts {
		if a.Format != f {
			continue
		}
		_, rc, err := w.store.Get(ctx, a.Key)
		if err != nil {
			return ExportArtifact{}, nil, err
		}
		defer rc.Close()
		buf := &bytes.Buffer{}
		if _, err := buf.ReadFrom(rc); err != nil {
			return ExportArtifact{}, nil, fmt.Errorf("read artifact: %w", err)
		}
		return a, buf.Bytes(), nil
	}
	return ExportArtifact{}, nil, fmt.Errorf("export %s has no %s artifact: %w", id, f, blob.ErrNotFound)
}

func (w *Worker) process(id string) {
	record, ok := w.GetExport(id)
	if !ok {
		return
	}
	w.setStatus(id, ExportStatusRunning)

	result, err := w.runner.RunSummary(w.ctx, record.Summary.Key, record.Params)
	if err != nil {
		w.fail(id, fmt.Errorf("run summary: %w", err))
		return
	}

	artifacts := make([]ExportArtifact, 0, len(record.Formats))
	for _, f := range record.Formats {
		payload, err := Render(f, result)
		if err != nil {
			w.fail(id, err)
			return
		}
		key := fmt.Sprintf("exports/%s/%s.%s", id, record.Summary.Key, f)
		info, err := w.store.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: f.ContentType(),
			Metadata: map[string]string{
				"summary":   record.Summary.Key,
				"export-id": id,
			},
		})
		if err != nil {
			w.fail(id, fmt.Errorf("store artifact: %w", err))
			return
		}
		if url, err := w.store.PresignURL(w.ctx, key, blob.SignedURLOptions{}); err == nil {
			info.URL = url
		}
		artifacts = append(artifacts, ExportArtifact{Format: f, Rows: len(result.Rows), Info: info})
	}
	w.complete(id, artifacts)
}

func (w *Worker) setStatus(id string, status ExportStatus) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.UpdatedAt = w.now()
	}
}

func (w *Worker) complete(id string, artifacts []ExportArtifact) {
	now := w.now()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = ExportStatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.logger.Info("export succeeded", "export_id", id, "artifacts", len(artifacts))
}

func (w *Worker) fail(id string, err error) {
	now := w.now()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = ExportStatusFailed
		record.Error = err.Error()
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.logger.Error("export failed", "export_id", id, "error", err)
}

func (r ExportRecord) copy() ExportRecord {
	dup := r
	dup.Params = cloneParams(r.Params)
	dup.Formats = append([]Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]ExportArtifact(nil), r.Artifacts...)
	}
	if r.CompletedAt != nil {
		at := *r.CompletedAt
		dup.CompletedAt = &at
	}
	return dup
}

func cloneParams(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
