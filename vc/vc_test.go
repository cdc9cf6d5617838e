// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinkTimeValuesWin(t *testing.T) {
	origVersion, origRevision, origTimestamp := version, revision, buildTimestamp
	defer func() { version, revision, buildTimestamp = origVersion, origRevision, origTimestamp }()

	version, revision, buildTimestamp = "v1.2.3", "abc123", "2024-03-01T12:00:00Z"
	assert.Equal(t, "v1.2.3", Version())
	assert.Equal(t, "abc123", Revision())
	assert.Equal(t, "2024-03-01T12:00:00Z", BuildTimestamp())

	version = ""
	assert.NotEmpty(t, Version())
}
