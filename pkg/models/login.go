package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMissingField = errors.New("missing required field")
	ErrWrongType    = errors.New("field has wrong type")
)

// LoginFields is a login as it arrives on the wire, before validation.
// identity may be a JSON string or number; user_id is accepted in its place.
type LoginFields struct {
	IP        json.RawMessage `json:"ip"`
	UserAgent json.RawMessage `json:"user_agent"`
	Identity  json.RawMessage `json:"identity"`
	UserID    json.RawMessage `json:"user_id"`
	Role      json.RawMessage `json:"role"`
}

// Validate requires string ip, user_agent and role plus a string or numeric
// identity. Empty strings are well formed.
func (f LoginFields) Validate() (LoginInput, error) {
	var in LoginInput
	var err error
	if in.IP, err = stringField("ip", f.IP); err != nil {
		return LoginInput{}, err
	}
	if in.UserAgent, err = stringField("user_agent", f.UserAgent); err != nil {
		return LoginInput{}, err
	}
	if in.Role, err = stringField("role", f.Role); err != nil {
		return LoginInput{}, err
	}

	name, raw := "identity", f.Identity
	if isAbsent(raw) && !isAbsent(f.UserID) {
		name, raw = "user_id", f.UserID
	}
	if in.Identity, err = identityField(name, raw); err != nil {
		return LoginInput{}, err
	}
	return in, nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func stringField(name string, raw json.RawMessage) (string, error) {
	if isAbsent(raw) {
		return "", fmt.Errorf("%w: %s", ErrMissingField, name)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %s must be a string", ErrWrongType, name)
	}
	return s, nil
}

// identityField stringifies a string or number identity; numbers keep their
// literal text.
func identityField(name string, raw json.RawMessage) (string, error) {
	if isAbsent(raw) {
		return "", fmt.Errorf("%w: %s", ErrMissingField, name)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("%w: %s must be a string or number", ErrWrongType, name)
}
