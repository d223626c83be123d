package alerter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go-loginguard/pkg/logger"
	"go-loginguard/pkg/metrics"
	"go-loginguard/pkg/models"
)

// Notifier delivers an alert out of band.
type Notifier interface {
	Notify(ctx context.Context, rec *models.AuditRecord) error
}

// StubNotifier only logs; no delivery channel is wired up yet.
type StubNotifier struct{}

func (StubNotifier) Notify(_ context.Context, rec *models.AuditRecord) error {
	logger.Log.Infof("notification skipped (no channel configured): event=%s identity=%s ip=%s",
		rec.EventID, rec.Raw.Identity, rec.Raw.IP)
	return nil
}

// Alerter rate-limits notifications per identity and IP.
type Alerter struct {
	notifier          Notifier
	alertHistory      map[string]time.Time
	alertHistoryMu    sync.Mutex
	alertCooldownTime time.Duration
	now               func() time.Time
}

func NewAlerter(notifier Notifier, cooldown time.Duration) *Alerter {
	if notifier == nil {
		notifier = StubNotifier{}
	}
	return &Alerter{
		notifier:          notifier,
		alertHistory:      make(map[string]time.Time),
		alertCooldownTime: cooldown,
		now:               time.Now,
	}
}

func fingerprint(rec *models.AuditRecord) string {
	return rec.Raw.Identity + ":" + rec.Raw.IP
}

// TriggerAlert notifies unless the same identity and IP alerted within the
// cooldown window.
func (a *Alerter) TriggerAlert(ctx context.Context, rec *models.AuditRecord) {
	key := fingerprint(rec)
	now := a.now()

	a.alertHistoryMu.Lock()
	last, exists := a.alertHistory[key]
	if exists && now.Sub(last) < a.alertCooldownTime {
		a.alertHistoryMu.Unlock()
		logger.Log.Debugf("alert suppressed, %s in cooldown", key)
		return
	}
	a.alertHistory[key] = now
	a.cleanupLocked(now)
	a.alertHistoryMu.Unlock()

	metrics.AlertsTriggered.Inc()
	if err := a.notifier.Notify(ctx, rec); err != nil {
		logger.Log.Errorf("send alert failed: %v", err)
	}
}

func (a *Alerter) cleanupLocked(now time.Time) {
	for key, last := range a.alertHistory {
		if now.Sub(last) > a.alertCooldownTime {
			delete(a.alertHistory, key)
		}
	}
}

// PrintEvent writes a human-readable summary of one login to w in a single
// Write, so concurrent summaries do not interleave.
func PrintEvent(w io.Writer, rec *models.AuditRecord) {
	var b bytes.Buffer
	line := strings.Repeat("─", 50)
	fmt.Fprintln(&b, line)
	fmt.Fprintf(&b, "Login Event (%s)\n", rec.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "  Result:     %s\n", rec.Classification)
	fmt.Fprintf(&b, "  IP Address: %s\n", orNA(rec.Raw.IP))
	fmt.Fprintf(&b, "  User ID:    %s\n", orNA(rec.Raw.Identity))
	fmt.Fprintf(&b, "  Role:       %s\n", orNA(rec.Raw.Role))
	fmt.Fprintf(&b, "  Location:   %s, %s\n", rec.Enrichment.City, rec.Enrichment.Country)
	fmt.Fprintf(&b, "  ISP:        %s\n", rec.Enrichment.ISP)
	fmt.Fprintf(&b, "  User Agent: %s\n", orNA(rec.Raw.UserAgent))
	fmt.Fprintln(&b, line)

	if _, err := w.Write(b.Bytes()); err != nil {
		logger.Log.Warnf("print login event %s: %v", rec.EventID, err)
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
