// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package profile // import "go.opentelemetry.io/request-profiler/profile"

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

var (
	// ErrMissingRoot is returned when decoding a profile without a root step.
	ErrMissingRoot = errors.New("profile has no root timing")
	// ErrInvalidRequest is returned for malformed results requests.
	ErrInvalidRequest = errors.New("invalid results request")
)

// MarshalJSON encodes the profile in the wire format understood by the
// MiniProfiler rendering widget.
func (p *Profile) MarshalJSON() ([]byte, error) {
	type plain Profile
	return json.Marshal(struct {
		*plain
		ClientTimings *struct{} `json:"ClientTimings"`
	}{plain: (*plain)(p)})
}

// UnmarshalJSON decodes the wire format and relinks the step tree.
func (p *Profile) UnmarshalJSON(data []byte) error {
	type plain Profile
	if err := json.Unmarshal(data, (*plain)(p)); err != nil {
		return err
	}
	if p.Root == nil {
		return ErrMissingRoot
	}
	p.Root.link(nil, 0)
	return nil
}

// Encode returns the wire format of p.
func Encode(p *Profile) ([]byte, error) {
	return json.Marshal(p)
}

// Decode parses the wire format into a finalized profile.
func Decode(data []byte) (*Profile, error) {
	p := &Profile{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	if p.Root == nil {
		return nil, ErrMissingRoot
	}
	return p, nil
}

// ParseResultsRequest extracts the profile id from a results request body
// such as {"Id":"..."}. Ids wrapped in square brackets are accepted.
func ParseResultsRequest(body []byte) (uuid.UUID, error) {
	if !gjson.ValidBytes(body) {
		return uuid.Nil, fmt.Errorf("%w: not valid JSON", ErrInvalidRequest)
	}
	res := gjson.ParseBytes(body)
	if !res.IsObject() {
		return uuid.Nil, fmt.Errorf("%w: not a JSON object", ErrInvalidRequest)
	}
	idField := res.Get("Id")
	switch {
	case !idField.Exists():
		return uuid.Nil, fmt.Errorf("%w: no Id property", ErrInvalidRequest)
	case idField.Type != gjson.String:
		return uuid.Nil, fmt.Errorf("%w: Id property is not a string", ErrInvalidRequest)
	}

	id := idField.String()
	if strings.HasPrefix(id, "[") && strings.HasSuffix(id, "]") {
		id = id[1 : len(id)-1]
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: Id property is not a UUID: %v", ErrInvalidRequest, err)
	}
	return parsed, nil
}
