package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleRecord() SessionRecord {
	return SessionRecord{
		SessionID: "0b8f3c21-9a71-4a39-8f1c-2e51d7a40f1b",
		InputManifest: map[string][]string{
			"comfyui-reactor-node": {"insightface==0.7.3", "onnxruntime-gpu"},
			"was-node-suite":       {"numpy", "opencv-python"},
		},
		Trials: []TrialRecord{
			{Strategy: "default", Success: false, Duration: 42.5, LogSnippet: "ERROR: no matching distribution"},
			{Strategy: "modern_stack", Success: true, Duration: 120.25, LogSnippet: "Installed 14 packages"},
		},
		FinalStatus: "success",
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	record := sampleRecord()

	envelope, err := Encode(record)
	require.NoError(t, err)
	assert.Equal(t, LogType, envelope.LogType)
	assert.True(t, envelope.IsCompressed)
	assert.NotEmpty(t, envelope.Body)

	decoded, err := Decode(envelope.Body)
	require.NoError(t, err)
	if diff := cmp.Diff(record, decoded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEnvelopeWireShape(t *testing.T) {
	envelope, err := Encode(sampleRecord())
	require.NoError(t, err)

	raw, err := json.Marshal(envelope)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(raw, &wire))
	assert.Equal(t, "dependency_graph", wire["log_type"])
	assert.Equal(t, true, wire["is_compressed"])
	assert.IsType(t, "", wire["body"])
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode("not base64 at all!!")
	assert.Error(t, err)

	_, err = Decode("aGVsbG8=") // valid base64, not gzip
	assert.Error(t, err)
}

func TestClientPost(t *testing.T) {
	var gotUA, gotContentType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "Takumi-Installer/2.0", time.Second, zap.NewNop())
	require.NoError(t, client.Post(context.Background(), Envelope{LogType: LogType, IsCompressed: true, Body: "Zm9v"}))

	assert.Equal(t, "Takumi-Installer/2.0", gotUA)
	assert.Equal(t, "application/json", gotContentType)

	var wire Envelope
	require.NoError(t, json.Unmarshal(gotBody, &wire))
	assert.Equal(t, "Zm9v", wire.Body)
}

func TestClientPostNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second, zap.NewNop())
	err := client.Post(context.Background(), Envelope{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestReporterDeliversEnvelope(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second, zap.NewNop())
	reporter := NewReporter(client, true, zap.NewNop())
	reporter.Report(context.Background(), sampleRecord())

	var envelope Envelope
	require.NoError(t, json.Unmarshal(gotBody, &envelope))

	decoded, err := Decode(envelope.Body)
	require.NoError(t, err)
	assert.Equal(t, "success", decoded.FinalStatus)
	assert.Len(t, decoded.Trials, 2)
}

func TestReporterDisabled(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second, zap.NewNop())
	reporter := NewReporter(client, false, zap.NewNop())
	reporter.Report(context.Background(), sampleRecord())

	assert.Zero(t, requests)
}

func TestReporterSwallowsTransportFailure(t *testing.T) {
	// Closed server: connection refused.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, "", time.Second, zap.NewNop())
	reporter := NewReporter(client, true, zap.NewNop())

	assert.NotPanics(t, func() {
		reporter.Report(context.Background(), sampleRecord())
	})
}

func TestReporterSwallowsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second, zap.NewNop())
	reporter := NewReporter(client, true, zap.NewNop())

	assert.NotPanics(t, func() {
		reporter.Report(context.Background(), sampleRecord())
	})
}

func TestReportFailurePostsPlainJSON(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second, zap.NewNop())
	// Disabled switch applies to session records only.
	reporter := NewReporter(client, false, zap.NewNop())
	reporter.ReportFailure(context.Background(), map[string]string{"event_type": "install_failure"})

	var got map[string]string
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "install_failure", got["event_type"])
}

func TestReportFailureSwallowsTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, "", time.Second, zap.NewNop())
	reporter := NewReporter(client, true, zap.NewNop())

	assert.NotPanics(t, func() {
		reporter.ReportFailure(context.Background(), map[string]string{"event_type": "install_failure"})
	})
}
