package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Unknown is the sentinel for any value outside a trained vocabulary and for
// every field the geo resolver or user-agent parser could not fill.
const Unknown = "UNKNOWN"

// DefaultDeviceType is sent for every login; the client does not report a
// device type.
const DefaultDeviceType = "Desktop"

// Classification is the scorer's verdict for one login.
type Classification string

const (
	Normal  Classification = "Normal"
	Anomaly Classification = "Anomaly"
)

// FeatureNames is the positional schema the forest was trained on.
var FeatureNames = []string{
	"hour",
	"weekday",
	"location_city",
	"ip_country",
	"isp",
	"role",
	"device_os",
	"browser",
	"device_type",
	"user_id",
	"login_success",
	"session_duration",
	"attempt_count",
}

// SchemaHash fingerprints an ordered feature list.
func SchemaHash(names []string) string {
	sum := sha256.Sum256([]byte(strings.Join(names, ",")))
	return hex.EncodeToString(sum[:])
}

// FeatureVector is one encoded login. Field order matches FeatureNames.
type FeatureVector struct {
	Hour            int `json:"hour"`
	Weekday         int `json:"weekday"`
	LocationCity    int `json:"location_city"`
	IPCountry       int `json:"ip_country"`
	ISP             int `json:"isp"`
	Role            int `json:"role"`
	DeviceOS        int `json:"device_os"`
	Browser         int `json:"browser"`
	DeviceType      int `json:"device_type"`
	UserID          int `json:"user_id"`
	LoginSuccess    int `json:"login_success"`
	SessionDuration int `json:"session_duration"`
	AttemptCount    int `json:"attempt_count"`
}

// Values returns the vector in FeatureNames order.
func (v FeatureVector) Values() []float64 {
	return []float64{
		float64(v.Hour),
		float64(v.Weekday),
		float64(v.LocationCity),
		float64(v.IPCountry),
		float64(v.ISP),
		float64(v.Role),
		float64(v.DeviceOS),
		float64(v.Browser),
		float64(v.DeviceType),
		float64(v.UserID),
		float64(v.LoginSuccess),
		float64(v.SessionDuration),
		float64(v.AttemptCount),
	}
}

// GeoInfo is the best-effort location of an IP address.
type GeoInfo struct {
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
	ISP     string `json:"isp"`
}

func UnknownGeo() GeoInfo {
	return GeoInfo{City: Unknown, Region: Unknown, Country: Unknown, ISP: Unknown}
}

// IsUnknown reports whether no field was resolved.
func (g GeoInfo) IsUnknown() bool {
	return g == UnknownGeo()
}

// LoginInput is the raw request context of one login.
type LoginInput struct {
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
	Identity  string `json:"identity"`
	Role      string `json:"role"`
}

// Enrichment carries the human-readable values behind the encoded fields.
type Enrichment struct {
	GeoInfo
	DeviceOS   string `json:"device_os"`
	Browser    string `json:"browser"`
	DeviceType string `json:"device_type"`
}

// AuditRecord is one line of the audit log.
type AuditRecord struct {
	EventID        string         `json:"event_id"`
	Timestamp      time.Time      `json:"timestamp"`
	Raw            LoginInput     `json:"raw"`
	Features       FeatureVector  `json:"features"`
	Enrichment     Enrichment     `json:"enrichment"`
	Classification Classification `json:"classification"`
}
