package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/gateway/pkg/config"
	"mercator-hq/gateway/pkg/policy/snapshot"
	"mercator-hq/gateway/pkg/telemetry/metrics"
)

// Write results reported to metrics.
const (
	ResultStored  = "stored"
	ResultDropped = "dropped"
	ResultError   = "error"
)

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithMetrics reports write results to c.
func WithMetrics(c *metrics.Collector) RecorderOption {
	return func(r *Recorder) {
		r.metrics = c
	}
}

// Recorder writes decision records to storage in the background so the
// decision path never waits on the database.
type Recorder struct {
	storage      Storage
	writeTimeout time.Duration
	logger       *slog.Logger
	metrics      *metrics.Collector

	records chan *Record
	done    chan struct{}
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewRecorder starts a recorder writing to storage. It does not take
// ownership of storage.
func NewRecorder(storage Storage, cfg *config.AuditConfig, logger *slog.Logger, opts ...RecorderOption) *Recorder {
	if cfg == nil {
		cfg = &config.Default().Audit
	}
	if logger == nil {
		logger = slog.Default()
	}
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = config.DefaultAuditBufferSize
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = config.DefaultAuditWriteTimeout
	}

	r := &Recorder{
		storage:      storage,
		writeTimeout: timeout,
		logger:       logger.With("component", "audit.recorder"),
		records:      make(chan *Record, buffer),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Debug("Decision recorder started", "buffer", buffer, "write_timeout", timeout)
	return r
}

// Record enqueues rec for writing and reports whether it was accepted. It
// never blocks: when the buffer is full or the recorder is closed the record
// is dropped. A missing ID or Time is filled in.
func (r *Recorder) Record(rec *Record) bool {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.metrics.RecordAuditWrite(ResultDropped)
		return false
	}
	select {
	case r.records <- rec:
		return true
	default:
		r.logger.Warn("Decision log buffer full, dropping record",
			"record_id", rec.ID,
			"request_id", rec.RequestID,
			"buffer", cap(r.records),
		)
		r.metrics.RecordAuditWrite(ResultDropped)
		return false
	}
}

// Pending returns the number of records waiting to be written.
func (r *Recorder) Pending() int {
	return len(r.records)
}

// Close stops accepting records, writes everything already buffered and
// waits for the writes to finish. It is safe to call more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Debug("Decision recorder stopped")
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case rec := <-r.records:
			r.write(rec)
		case <-r.done:
			for {
				select {
				case rec := <-r.records:
					r.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(rec *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	start := time.Now()
	if err := r.storage.Store(ctx, rec); err != nil {
		r.logger.Error("Failed to store decision record",
			"record_id", rec.ID,
			"request_id", rec.RequestID,
			"error", err,
		)
		r.metrics.RecordAuditWrite(ResultError)
		return
	}
	r.metrics.RecordAuditWrite(ResultStored)

	if d := time.Since(start); d > r.writeTimeout/2 {
		r.logger.Warn("Slow decision log write",
			"record_id", rec.ID,
			"duration_ms", d.Milliseconds(),
		)
	}
}

// FromSnapshot starts a record with the request and llm fields of snap.
func FromSnapshot(snap *snapshot.Snapshot) *Record {
	rec := &Record{}
	if req := snap.Request; req != nil {
		rec.RequestID = req.ID
		rec.Time = req.StartTime
		rec.Method = req.Method
		rec.Host = req.Host
		rec.Path = req.Path
		rec.SourceAddress = req.Source.Address
	}
	if llm := snap.LLM; llm != nil {
		rec.Provider = llm.Provider
		rec.Model = llm.RequestModel
		rec.InputTokens = llm.InputTokens
	}
	return rec
}
