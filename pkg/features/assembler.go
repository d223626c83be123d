// Package features turns a raw login context into the model's feature vector.
package features

import (
	"context"
	"time"

	"go-loginguard/pkg/encoder"
	"go-loginguard/pkg/geo"
	"go-loginguard/pkg/metrics"
	"go-loginguard/pkg/models"
)

// Placeholders for signals the login flow does not collect yet.
const (
	loginSuccess    = 1
	sessionDuration = 30
	attemptCount    = 1
)

// Assembler is safe for concurrent use; it only reads its encoders.
type Assembler struct {
	encoders *encoder.Set
	geo      geo.Resolver
	loc      *time.Location
}

// NewAssembler derives hour and weekday in loc (time.Local when nil).
func NewAssembler(encoders *encoder.Set, resolver geo.Resolver, loc *time.Location) *Assembler {
	if resolver == nil {
		resolver = geo.Disabled()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Assembler{encoders: encoders, geo: resolver, loc: loc}
}

// Assemble builds the feature vector for one login at time now, along with
// the decoded values behind it.
func (a *Assembler) Assemble(ctx context.Context, in models.LoginInput, now time.Time) (models.FeatureVector, models.Enrichment) {
	now = now.In(a.loc)
	place := a.geo.Resolve(ctx, in.IP)
	deviceOS, browser := ParseUserAgent(in.UserAgent)

	enrichment := models.Enrichment{
		GeoInfo:    place,
		DeviceOS:   deviceOS,
		Browser:    browser,
		DeviceType: models.DefaultDeviceType,
	}

	enc := a.encoders
	vector := models.FeatureVector{
		Hour:            now.Hour(),
		Weekday:         isoWeekday(now.Weekday()),
		LocationCity:    a.encode(enc.LocationCity, place.City),
		IPCountry:       a.encode(enc.IPCountry, place.Country),
		ISP:             a.encode(enc.ISP, place.ISP),
		Role:            a.encode(enc.Role, in.Role),
		DeviceOS:        a.encode(enc.DeviceOS, enrichment.DeviceOS),
		Browser:         a.encode(enc.Browser, enrichment.Browser),
		DeviceType:      a.encode(enc.DeviceType, enrichment.DeviceType),
		UserID:          a.encode(enc.UserID, in.Identity),
		LoginSuccess:    loginSuccess,
		SessionDuration: sessionDuration,
		AttemptCount:    attemptCount,
	}
	return vector, enrichment
}

func (a *Assembler) encode(v *encoder.Vocabulary, raw string) int {
	code := v.Encode(raw)
	if code == v.UnknownCode() && raw != models.Unknown {
		metrics.UnknownCategories.WithLabelValues(v.Feature()).Inc()
	}
	return code
}

// isoWeekday maps Sunday-first time.Weekday to Monday=0 ... Sunday=6.
func isoWeekday(d time.Weekday) int {
	return (int(d) + 6) % 7
}
