package encoder

import (
	"fmt"
	"path/filepath"
)

// Artifact names, one file per categorical feature: <name>_encoder.json.
const (
	LocationCity = "location"
	IPCountry    = "ip_country"
	ISP          = "isp"
	Role         = "role"
	DeviceOS     = "device_os"
	Browser      = "browser"
	DeviceType   = "device_type"
	UserID       = "user_id"
)

// Names lists every categorical feature with a vocabulary artifact.
var Names = []string{LocationCity, IPCountry, ISP, Role, DeviceOS, Browser, DeviceType, UserID}

// Set holds the vocabularies for every categorical feature.
type Set struct {
	LocationCity *Vocabulary
	IPCountry    *Vocabulary
	ISP          *Vocabulary
	Role         *Vocabulary
	DeviceOS     *Vocabulary
	Browser      *Vocabulary
	DeviceType   *Vocabulary
	UserID       *Vocabulary
}

func FileName(name string) string {
	return name + "_encoder.json"
}

// LoadSet loads all vocabularies from dir; any missing or invalid file fails.
func LoadSet(dir string) (*Set, error) {
	s := &Set{}
	for _, name := range Names {
		v, err := Load(filepath.Join(dir, FileName(name)))
		if err != nil {
			return nil, fmt.Errorf("load %s encoder: %w", name, err)
		}
		*s.slot(name) = v
	}
	return s, nil
}

// SaveSet writes every non-nil vocabulary of s into dir.
func SaveSet(dir string, s *Set) error {
	for _, name := range Names {
		v := *s.slot(name)
		if v == nil {
			continue
		}
		if err := Save(filepath.Join(dir, FileName(name)), v); err != nil {
			return fmt.Errorf("save %s encoder: %w", name, err)
		}
	}
	return nil
}

// Put stores v under the given feature name.
func (s *Set) Put(name string, v *Vocabulary) error {
	slot := s.slot(name)
	if slot == nil {
		return fmt.Errorf("unknown encoder %q", name)
	}
	*slot = v
	return nil
}

func (s *Set) slot(name string) **Vocabulary {
	switch name {
	case LocationCity:
		return &s.LocationCity
	case IPCountry:
		return &s.IPCountry
	case ISP:
		return &s.ISP
	case Role:
		return &s.Role
	case DeviceOS:
		return &s.DeviceOS
	case Browser:
		return &s.Browser
	case DeviceType:
		return &s.DeviceType
	case UserID:
		return &s.UserID
	}
	return nil
}
