// Package storage persists audit records: an append-only JSONL file on the
// request path and optional MySQL, InfluxDB and Kafka sinks fed off it.
package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"go-loginguard/pkg/logger"
	"go-loginguard/pkg/metrics"
	"go-loginguard/pkg/models"
)

// Sink is one audit destination.
type Sink interface {
	Name() string
	Write(ctx context.Context, rec *models.AuditRecord) error
	Close() error
}

const asyncWriteTimeout = 5 * time.Second

// Recorder writes every record to the primary sink synchronously and hands
// it to the secondary sinks through a bounded queue. It never returns write
// errors to callers; they are logged and counted.
type Recorder struct {
	primary Sink
	async   []Sink
	queue   chan *models.AuditRecord

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewRecorder starts the background worker when async sinks are given.
// primary may be nil.
func NewRecorder(primary Sink, async []Sink, queueSize int) *Recorder {
	r := &Recorder{primary: primary, async: async}
	if len(async) > 0 {
		if queueSize <= 0 {
			queueSize = 1
		}
		r.queue = make(chan *models.AuditRecord, queueSize)
		r.wg.Add(1)
		go r.run()
	}
	return r
}

func (r *Recorder) Record(ctx context.Context, rec *models.AuditRecord) {
	if rec == nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		logger.Log.Warnf("audit recorder closed, dropping event %s", rec.EventID)
		return
	}

	if r.primary != nil {
		if err := r.primary.Write(ctx, rec); err != nil {
			logger.Log.Errorf("audit write failed: sink=%s event=%s err=%v", r.primary.Name(), rec.EventID, err)
			metrics.AuditWriteFailures.WithLabelValues(r.primary.Name()).Inc()
		}
	}

	if r.queue == nil {
		return
	}
	select {
	case r.queue <- rec:
	default:
		logger.Log.Warnf("audit queue full, dropping event %s", rec.EventID)
		metrics.AuditDropped.Inc()
	}
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for rec := range r.queue {
		for _, s := range r.async {
			ctx, cancel := context.WithTimeout(context.Background(), asyncWriteTimeout)
			if err := s.Write(ctx, rec); err != nil {
				logger.Log.Errorf("audit write failed: sink=%s event=%s err=%v", s.Name(), rec.EventID, err)
				metrics.AuditWriteFailures.WithLabelValues(s.Name()).Inc()
			}
			cancel()
		}
	}
}

// Close drains the queue and closes every sink.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	if r.queue != nil {
		close(r.queue)
	}
	r.mu.Unlock()

	r.wg.Wait()

	var errs []error
	if r.primary != nil {
		errs = append(errs, r.primary.Close())
	}
	for _, s := range r.async {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
