// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package profile

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// buildRequestProfile returns the profile of a request that spends 50ms in a
// database step which issues the same query twice.
func buildRequestProfile() *Profile {
	p := New(uuid.MustParse("6f1c5bbd-2f9c-4d3b-9a47-2f5b3e0c1a11"), "/orders", "request", testStart)
	p.MachineName = "web-1"
	db := p.Root.AddChild("db", 10)
	db.AddCustomTiming("sql", &CustomTiming{
		ExecuteType:          "query",
		CommandString:        "SELECT 1",
		StartMilliseconds:    10,
		DurationMilliseconds: 20,
	})
	db.AddCustomTiming("sql", &CustomTiming{
		ExecuteType:          "query",
		CommandString:        "SELECT 1",
		StartMilliseconds:    35,
		DurationMilliseconds: 20,
		Errored:              true,
	})
	db.Close(50)
	p.Finalize(100)
	return p
}

func TestTimingTree(t *testing.T) {
	p := buildRequestProfile()
	db := p.Root.Children[0]

	assert.True(t, p.Root.IsRoot())
	assert.False(t, db.IsRoot())
	assert.Same(t, p.Root, db.Parent())
	assert.Equal(t, 1, db.Depth())
	assert.False(t, db.IsOpen())
	assert.False(t, p.Root.IsOpen())
	assert.InDelta(t, 100.0, p.DurationMilliseconds, 1e-9)
	assert.InDelta(t, 60.0, db.FinishMilliseconds(), 1e-9)
	assert.InDelta(t, 50.0, p.Root.DurationWithoutChildrenMilliseconds(), 1e-9)
	assert.InDelta(t, 50.0, p.Root.DurationOfChildrenMilliseconds(), 1e-9)
	assert.Same(t, db, db.CustomTimings["sql"][1].Parent())
	assert.Equal(t, 2, p.Timings())
	assert.Equal(t, 2, p.CustomTimingCount())
}

func TestCloseIsIdempotent(t *testing.T) {
	p := New(uuid.New(), "x", "root", testStart)
	child := p.Root.AddChild("child", 5)

	assert.True(t, child.Close(10))
	assert.False(t, child.Close(99))
	assert.InDelta(t, 10.0, child.DurationMilliseconds, 1e-9)

	neg := p.Root.AddChild("negative", 20)
	neg.Close(-3)
	assert.Zero(t, neg.DurationMilliseconds)
}

func TestFinalizeClosesOpenSteps(t *testing.T) {
	p := New(uuid.New(), "x", "root", testStart)
	outer := p.Root.AddChild("outer", 10)
	inner := outer.AddChild("inner", 20)

	assert.Equal(t, 3, p.Finalize(50))
	assert.InDelta(t, 50.0, p.DurationMilliseconds, 1e-9)
	assert.InDelta(t, 40.0, outer.DurationMilliseconds, 1e-9)
	assert.InDelta(t, 30.0, inner.DurationMilliseconds, 1e-9)
	assert.Zero(t, p.Finalize(80))
}

func TestWalkPreOrder(t *testing.T) {
	p := New(uuid.New(), "x", "root", testStart)
	a := p.Root.AddChild("a", 0)
	a.AddChild("a1", 0)
	a.AddChild("a2", 0)
	b := p.Root.AddChild("b", 0)
	b.AddChild("b1", 0)

	var names []string
	p.Root.Walk(func(t *Timing) bool {
		names = append(names, t.Name)
		return t.Name != "a"
	})
	assert.Equal(t, []string{"root", "a", "b", "b1"}, names)
}

func TestRoundTrip(t *testing.T) {
	p := buildRequestProfile()
	p.User = "alice"

	data, err := Encode(p)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, p.ID, decoded.ID)
	assert.Equal(t, p.Name, decoded.Name)
	assert.True(t, p.Started.Equal(decoded.Started))
	assert.Equal(t, p.MachineName, decoded.MachineName)
	assert.Equal(t, p.User, decoded.User)
	assert.InDelta(t, p.DurationMilliseconds, decoded.DurationMilliseconds, 1e-9)
	assertSameTree(t, p.Root, decoded.Root)

	db := decoded.Root.Children[0]
	assert.Same(t, decoded.Root, db.Parent())
	assert.Equal(t, 1, db.Depth())
	assert.Same(t, db, db.CustomTimings["sql"][0].Parent())
}

func assertSameTree(t *testing.T, want, got *Timing) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Name, got.Name)
	assert.InDelta(t, want.StartMilliseconds, got.StartMilliseconds, 1e-9)
	assert.InDelta(t, want.DurationMilliseconds, got.DurationMilliseconds, 1e-9)
	assert.Equal(t, want.Depth(), got.Depth())
	require.Len(t, got.Children, len(want.Children))
	require.Len(t, got.CustomTimings, len(want.CustomTimings))
	for callType, cts := range want.CustomTimings {
		require.Len(t, got.CustomTimings[callType], len(cts))
		for i, ct := range cts {
			g := got.CustomTimings[callType][i]
			assert.Equal(t, ct.CommandString, g.CommandString)
			assert.Equal(t, ct.ExecuteType, g.ExecuteType)
			assert.Equal(t, ct.Errored, g.Errored)
			assert.InDelta(t, ct.StartMilliseconds, g.StartMilliseconds, 1e-9)
			assert.InDelta(t, ct.DurationMilliseconds, g.DurationMilliseconds, 1e-9)
		}
	}
	for i := range want.Children {
		assertSameTree(t, want.Children[i], got.Children[i])
	}
}

func TestWireFormat(t *testing.T) {
	data, err := Encode(buildRequestProfile())
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))

	assert.Equal(t, "6f1c5bbd-2f9c-4d3b-9a47-2f5b3e0c1a11", wire["Id"])
	assert.Equal(t, "2024-03-01T12:00:00Z", wire["Started"])
	assert.Contains(t, wire, "ClientTimings")
	assert.Nil(t, wire["ClientTimings"])
	assert.NotContains(t, wire, "User")

	root := wire["Root"].(map[string]any)
	assert.Equal(t, "request", root["Name"])
	assert.NotContains(t, root, "CustomTimings")

	db := root["Children"].([]any)[0].(map[string]any)
	assert.Nil(t, db["Children"])
	sql := db["CustomTimings"].(map[string]any)["sql"].([]any)
	first := sql[0].(map[string]any)
	assert.Equal(t, "SELECT 1", first["CommandString"])
	assert.NotContains(t, first, "Errored")
	assert.Equal(t, true, sql[1].(map[string]any)["Errored"])
}

func TestDecodeErrors(t *testing.T) {
	tests := map[string]string{
		"not json": "{",
		"no root":  `{"Id":"6f1c5bbd-2f9c-4d3b-9a47-2f5b3e0c1a11","Name":"x"}`,
		"null":     "null",
		"bad id":   `{"Id":"nope","Root":{"Name":"r"}}`,
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(input))
			require.Error(t, err)
		})
	}
}

func TestParseResultsRequest(t *testing.T) {
	id := uuid.MustParse("0d6c8d7f-93e5-4df4-8c8f-2f3f7e1f5a20")
	tests := map[string]struct {
		body string
		err  bool
	}{
		"plain id":      {body: `{"Id":"0d6c8d7f-93e5-4df4-8c8f-2f3f7e1f5a20"}`},
		"bracketed id":  {body: `{"Id":"[0d6c8d7f-93e5-4df4-8c8f-2f3f7e1f5a20]","Popup":true}`},
		"invalid json":  {body: `{"Id":`, err: true},
		"array":         {body: `["0d6c8d7f-93e5-4df4-8c8f-2f3f7e1f5a20"]`, err: true},
		"missing id":    {body: `{"Popup":true}`, err: true},
		"numeric id":    {body: `{"Id":42}`, err: true},
		"malformed id":  {body: `{"Id":"not-a-uuid"}`, err: true},
		"bracket only":  {body: `{"Id":"[]"}`, err: true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParseResultsRequest([]byte(tc.body))
			if tc.err {
				require.ErrorIs(t, err, ErrInvalidRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, id, got)
		})
	}
}

func TestPlainText(t *testing.T) {
	p := buildRequestProfile()
	p.Root.AddChild("render", 60).Close(30)

	want := "web-1 at 2024-03-01T12:00:00Z\n" +
		"request = 100ms\n" +
		"> db = 50ms (sql = 40ms in 2 cmds)\n" +
		"> render = 30ms\n"
	assert.Equal(t, want, p.PlainText())
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("Verbose")
	require.NoError(t, err)
	assert.Equal(t, Verbose, l)
	assert.Equal(t, "verbose", l.String())

	l, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, Info, l)

	_, err = ParseLevel("loud")
	require.Error(t, err)
}
