package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeReports(t *testing.T, r io.Reader) map[string]report {
	t.Helper()
	reports := make(map[string]report)
	dec := json.NewDecoder(r)
	for dec.More() {
		var rep report
		require.NoError(t, dec.Decode(&rep))
		reports[rep.Name] = rep
	}
	return reports
}

func TestRun_Catalog(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	nowForArgs = func() time.Time { return fixed }
	t.Cleanup(func() { nowForArgs = time.Now })

	var out bytes.Buffer
	err := run(context.Background(), options{
		catalog:  "testdata/catalog.yaml",
		logLevel: "error",
		args:     `{"text": "Paris", "reference": "paris ", "answer": "42", "expected": "42", "scores": [0.2, 1, 0.6]}`,
		timeout:  time.Second,
		breaker:  3,
	}, &out, prometheus.NewRegistry())
	require.NoError(t, err)

	reports := decodeReports(t, &out)
	require.Len(t, reports, 5)

	greeter := reports["greeter"]
	assert.Equal(t, "hello.world", greeter.Type)
	assert.Equal(t, "A-OK", greeter.Status)
	assert.Empty(t, greeter.Inputs)
	assert.Equal(t, []pinReport{{Name: "hello", Kind: "string"}}, greeter.Outputs)
	assert.Equal(t, "world", greeter.Result["hello"].Payload)

	exact := reports["exact"]
	assert.Empty(t, exact.Error)
	assert.Equal(t, true, exact.Result["equal"].Payload)
	assert.True(t, exact.Result["equal"].Timestamp.Equal(fixed))

	fuzzy := reports["fuzzy"]
	assert.Equal(t, true, fuzzy.Result["match"].Payload)
	assert.InDelta(t, 5.0/6.0, fuzzy.Result["score"].Payload, 1e-9, "trailing space costs one edit")

	pool := reports["pool"]
	assert.Equal(t, "score.aggregate", pool.Type)
	assert.Equal(t, 0.6, pool.Result["aggregate"].Payload)
	assert.Equal(t, 2.0, pool.Result["winner"].Payload, "index of the score closest to the median")

	grade := reports["grade"]
	assert.Equal(t, "call", grade.Type)
	assert.Equal(t, true, grade.Result["correct"].Payload)
}

func TestRun_MissingArgumentsFail(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), options{
		catalog:  "testdata/catalog.yaml",
		logLevel: "error",
		args:     "{}",
	}, &out, prometheus.NewRegistry())
	require.ErrorIs(t, err, errInvocationFailed)

	reports := decodeReports(t, &out)
	assert.Empty(t, reports["greeter"].Error)
	assert.Contains(t, reports["exact"].Error, "text")
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts options
		want string
	}{
		{name: "no catalog", opts: options{args: "{}"}, want: "-catalog is required"},
		{name: "bad args", opts: options{catalog: "testdata/catalog.yaml", args: "[1]"}, want: "invalid -args"},
		{name: "missing file", opts: options{catalog: "testdata/missing.yaml", args: "{}"}, want: "failed to load catalog"},
		{name: "bad log level", opts: options{catalog: "testdata/catalog.yaml", logLevel: "loud", args: "{}"}, want: "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), tt.opts, io.Discard, prometheus.NewRegistry())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseArgs_Numbers(t *testing.T) {
	args, err := parseArgs(`{"n": 3, "f": 1.5, "list": [1, 2.5]}`)
	require.NoError(t, err)

	n, ok := args.Get("n")
	require.True(t, ok)
	assert.Equal(t, int64(3), n.Payload())

	f, ok := args.Get("f")
	require.True(t, ok)
	assert.Equal(t, 1.5, f.Payload())

	list, ok := args.Get("list")
	require.True(t, ok)
	assert.Equal(t, []any{int64(1), 2.5}, list.Payload())
}

func TestParseArgs_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "trailing garbage", raw: `{"a": 1} junk`, want: "trailing data"},
		{name: "second object", raw: `{"a": 1} {"b": 2}`, want: "trailing data"},
		{name: "stray closing brace", raw: `{"a": 1} }`, want: "trailing data"},
		{name: "float overflow", raw: `{"big": 1e400}`, want: `argument "big"`},
		{name: "nested float overflow", raw: `{"list": [1, {"x": -1e400}]}`, want: "out of range"},
		{name: "not an object", raw: `[1]`, want: "invalid -args"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseArgs(tt.raw)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid -args")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseArgs_TrailingWhitespace(t *testing.T) {
	args, err := parseArgs("{\"a\": 1}\n\t ")
	require.NoError(t, err)
	assert.Equal(t, 1, args.Len())
}
