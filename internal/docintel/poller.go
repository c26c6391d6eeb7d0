package docintel

import (
	"context"
	"log/slog"
	"time"
)

// DefaultBackoff is the wait before each poll attempt. The first wait is short; later
// waits leave room for the service's rate limits. It is a table, not a formula.
var DefaultBackoff = []time.Duration{
	2 * time.Second,
	60 * time.Second,
	60 * time.Second,
	60 * time.Second,
	60 * time.Second,
}

// ResultFetcher performs a single status request for a job
type ResultFetcher interface {
	FetchResult(ctx context.Context, jobID string, attempt int) (*Result, error)
}

// SleepFunc blocks for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// PollerOptions configures a Poller. Zero values select the defaults.
type PollerOptions struct {
	// Backoff is consumed by attempt index; its length is the attempt budget
	Backoff []time.Duration
	// RetryFailed keeps polling after a failed status instead of returning AnalysisFailedError
	RetryFailed bool
	Sleep       SleepFunc
	Logger      *slog.Logger
}

// Poller waits for a submitted analysis to reach a terminal status
type Poller struct {
	fetcher     ResultFetcher
	backoff     []time.Duration
	retryFailed bool
	sleep       SleepFunc
	logger      *slog.Logger
}

// NewPoller creates a Poller
func NewPoller(fetcher ResultFetcher, opts PollerOptions) *Poller {
	p := &Poller{
		fetcher:     fetcher,
		backoff:     opts.Backoff,
		retryFailed: opts.RetryFailed,
		sleep:       opts.Sleep,
		logger:      opts.Logger,
	}
	if len(p.backoff) == 0 {
		p.backoff = DefaultBackoff
	}
	if p.sleep == nil {
		p.sleep = sleepContext
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Poll requests the job status once per backoff entry until it succeeds.
// A failing request aborts immediately; it is never retried.
func (p *Poller) Poll(ctx context.Context, job *Job) (*Result, error) {
	var last Status
	for i, wait := range p.backoff {
		attempt := i + 1
		if i > 0 {
			p.logger.Info("Waiting for analysis", "job_id", job.ID, "attempt", attempt, "wait", wait)
		}
		if err := p.sleep(ctx, wait); err != nil {
			return nil, err
		}

		result, err := p.fetcher.FetchResult(ctx, job.ID, attempt)
		if err != nil {
			p.logger.Warn("Could not get analysis result", "job_id", job.ID, "attempt", attempt, "error", err)
			return nil, err
		}
		last = result.Status

		switch result.Status {
		case StatusSucceeded:
			p.logger.Info("Analysis succeeded", "job_id", job.ID, "attempt", attempt, "documents", len(result.Documents()))
			return result, nil
		case StatusFailed:
			if !p.retryFailed {
				failed := &AnalysisFailedError{JobID: job.ID}
				if result.Error != nil {
					failed.Code = result.Error.Code
					failed.Message = result.Error.Message
				}
				return nil, failed
			}
			p.logger.Warn("Analysis reported failed, retrying", "job_id", job.ID, "attempt", attempt)
		}
	}

	return nil, &PollExhaustedError{JobID: job.ID, Attempts: len(p.backoff), LastStatus: last}
}

// Submitter sends a document for analysis
type Submitter interface {
	Submit(ctx context.Context, document []byte) (*Job, error)
}

// Analyzer runs a document through submission and polling
type Analyzer struct {
	submitter Submitter
	poller    *Poller
}

// NewAnalyzer creates an Analyzer
func NewAnalyzer(submitter Submitter, poller *Poller) *Analyzer {
	return &Analyzer{submitter: submitter, poller: poller}
}

// Analyze submits the document and returns the succeeded result
func (a *Analyzer) Analyze(ctx context.Context, document []byte) (*Result, error) {
	job, err := a.submitter.Submit(ctx, document)
	if err != nil {
		return nil, err
	}
	return a.poller.Poll(ctx, job)
}
