package analyzer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"go-loginguard/pkg/features"
	"go-loginguard/pkg/logger"
	"go-loginguard/pkg/metrics"
	"go-loginguard/pkg/models"
)

// Recorder persists audit records. Implementations swallow their own errors.
type Recorder interface {
	Record(ctx context.Context, rec *models.AuditRecord)
}

// Alerter is told about every anomalous login.
type Alerter interface {
	TriggerAlert(ctx context.Context, rec *models.AuditRecord)
}

// LoginAnalyzer runs the assemble, score, record pipeline for one login.
type LoginAnalyzer struct {
	assembler *features.Assembler
	scorer    *Scorer
	recorder  Recorder
	alerter   Alerter
	now       func() time.Time
}

// NewLoginAnalyzer wires the pipeline. recorder and alerter may be nil.
func NewLoginAnalyzer(assembler *features.Assembler, scorer *Scorer, recorder Recorder, alerter Alerter) *LoginAnalyzer {
	return &LoginAnalyzer{
		assembler: assembler,
		scorer:    scorer,
		recorder:  recorder,
		alerter:   alerter,
		now:       time.Now,
	}
}

// WithClock replaces the time source used by ProcessLogin.
func (la *LoginAnalyzer) WithClock(now func() time.Time) *LoginAnalyzer {
	la.now = now
	return la
}

// ProcessLogin classifies one login happening now and records it. source
// labels metrics.
func (la *LoginAnalyzer) ProcessLogin(ctx context.Context, in models.LoginInput, source string) *models.AuditRecord {
	return la.ProcessLoginAt(ctx, in, la.now(), source)
}

// ProcessLoginAt classifies a login that happened at now.
func (la *LoginAnalyzer) ProcessLoginAt(ctx context.Context, in models.LoginInput, now time.Time, source string) *models.AuditRecord {
	start := time.Now()

	vector, enrichment := la.assembler.Assemble(ctx, in, now)
	classification := la.scorer.Score(vector)

	metrics.ScoringDuration.Observe(time.Since(start).Seconds())
	metrics.LoginsClassified.WithLabelValues(string(classification), source).Inc()
	logger.Log.Infof("login classified: ip=%s identity=%s role=%s result=%s source=%s",
		in.IP, in.Identity, in.Role, classification, source)

	rec := &models.AuditRecord{
		EventID:        uuid.NewString(),
		Timestamp:      now,
		Raw:            in,
		Features:       vector,
		Enrichment:     enrichment,
		Classification: classification,
	}

	if la.recorder != nil {
		la.recorder.Record(ctx, rec)
	}
	if classification == models.Anomaly && la.alerter != nil {
		la.alerter.TriggerAlert(ctx, rec)
	}
	return rec
}
