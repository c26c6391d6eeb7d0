package docintel

import (
	"fmt"
	"strings"
)

// SubmissionError is returned when a document could not be submitted for analysis.
// Submission failures are not retried.
type SubmissionError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("submitting document: %v", e.Err)
	}
	return fmt.Sprintf("submitting document: unexpected status %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// PollTransportError is returned when a single poll request fails. It aborts polling.
type PollTransportError struct {
	Attempt    int
	StatusCode int
	Body       string
	Err        error
}

func (e *PollTransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("polling analysis (attempt %d): %v", e.Attempt, e.Err)
	}
	return fmt.Sprintf("polling analysis (attempt %d): unexpected status %d: %s", e.Attempt, e.StatusCode, strings.TrimSpace(e.Body))
}

func (e *PollTransportError) Unwrap() error { return e.Err }

// PollExhaustedError is returned when the analysis did not succeed within the backoff table
type PollExhaustedError struct {
	JobID      string
	Attempts   int
	LastStatus Status
}

func (e *PollExhaustedError) Error() string {
	return fmt.Sprintf("analysis %s not finished after %d attempts (last status %q)", e.JobID, e.Attempts, e.LastStatus)
}

// AnalysisFailedError is returned when the service reports the analysis as failed
type AnalysisFailedError struct {
	JobID   string
	Code    string
	Message string
}

func (e *AnalysisFailedError) Error() string {
	if e.Code == "" && e.Message == "" {
		return fmt.Sprintf("analysis %s failed", e.JobID)
	}
	return fmt.Sprintf("analysis %s failed: %s: %s", e.JobID, e.Code, e.Message)
}
