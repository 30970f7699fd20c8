// Package telemetry serializes session outcomes into the collector's
// envelope format and submits them. Reporting is strictly best-effort:
// nothing in this package is allowed to change a session's outcome.
package telemetry

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// LogType tags every envelope submitted by the agent.
const LogType = "dependency_graph"

// TrialRecord is one strategy attempt in the payload. Duration is
// seconds, matching what the collector's aggregation expects.
type TrialRecord struct {
	Strategy   string  `json:"strategy"`
	Success    bool    `json:"success"`
	Duration   float64 `json:"duration"`
	LogSnippet string  `json:"log_snippet"`
}

// SessionRecord is the uncompressed telemetry payload for one session.
type SessionRecord struct {
	SessionID     string              `json:"session_id"`
	InputManifest map[string][]string `json:"input_manifest"`
	Trials        []TrialRecord       `json:"trials"`
	FinalStatus   string              `json:"final_status"`
}

// Envelope is the transport wrapper: the record compressed and encoded
// so a session with megabytes of trial logs still fits one POST.
type Envelope struct {
	LogType      string `json:"log_type"`
	IsCompressed bool   `json:"is_compressed"`
	Body         string `json:"body"`
}

// Encode wraps a session record for transport: JSON, gzip, base64.
func Encode(record SessionRecord) (Envelope, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshaling session record: %w", err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		zw.Close()
		return Envelope{}, fmt.Errorf("compressing session record: %w", err)
	}
	if err := zw.Close(); err != nil {
		return Envelope{}, fmt.Errorf("compressing session record: %w", err)
	}

	return Envelope{
		LogType:      LogType,
		IsCompressed: true,
		Body:         base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// Decode unwraps an envelope body back into a session record. The
// exact inverse of Encode, used by collector-side tooling.
func Decode(body string) (SessionRecord, error) {
	compressed, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("decoding envelope body: %w", err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return SessionRecord{}, fmt.Errorf("decompressing envelope body: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("decompressing envelope body: %w", err)
	}

	var record SessionRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return SessionRecord{}, fmt.Errorf("unmarshaling session record: %w", err)
	}
	return record, nil
}
