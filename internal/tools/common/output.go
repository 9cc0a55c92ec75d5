package common

import (
	"encoding/json"
	"io"
	"time"
)

// CIResult is the single JSON document a --ci run prints. Exit codes carry
// the same verdict, so pipelines may read either.
type CIResult struct {
	OK         bool     `json:"ok"`
	Command    string   `json:"command"`
	Details    []string `json:"details,omitempty"`
	Error      string   `json:"error,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

func NewCIResult(command string, details []string, elapsed time.Duration, err error) CIResult {
	res := CIResult{OK: err == nil, Command: command, Details: details, DurationMS: elapsed.Milliseconds()}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

func (r CIResult) Outcome() string {
	if r.OK {
		return "success"
	}
	return "failure"
}

func PrintCIResult(w io.Writer, res CIResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
