package health

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/movian/movian-api/internal/observability"
)

type CheckResult struct {
	Name      string `json:"name"`
	Healthy   bool   `json:"healthy"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckerFunc adapts a ping function to Checker.
type CheckerFunc struct {
	CheckName string
	Fn        func(ctx context.Context) error
}

func (c CheckerFunc) Name() string                    { return c.CheckName }
func (c CheckerFunc) Check(ctx context.Context) error { return c.Fn(ctx) }

// ProbeRunner runs every dependency check concurrently, each under its own
// timeout, and reports ready only when all of them pass.
type ProbeRunner struct {
	checkers []Checker
	timeout  time.Duration
}

func NewProbeRunner(timeout time.Duration, checkers ...Checker) *ProbeRunner {
	if timeout <= 0 {
		timeout = time.Second
	}
	kept := make([]Checker, 0, len(checkers))
	for _, c := range checkers {
		if c != nil {
			kept = append(kept, c)
		}
	}
	return &ProbeRunner{checkers: kept, timeout: timeout}
}

func (r *ProbeRunner) Ready(ctx context.Context) (bool, []CheckResult) {
	if r == nil || len(r.checkers) == 0 {
		return true, nil
	}
	results := make([]CheckResult, len(r.checkers))
	var g errgroup.Group
	for i, c := range r.checkers {
		g.Go(func() error {
			results[i] = r.run(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	ready := true
	for _, res := range results {
		ready = ready && res.Healthy
	}
	return ready, results
}

func (r *ProbeRunner) run(ctx context.Context, c Checker) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err := c.Check(checkCtx)
	elapsed := time.Since(start)
	observability.RecordHealthCheckDuration(ctx, c.Name(), elapsed)

	res := CheckResult{Name: c.Name(), Healthy: err == nil, LatencyMS: elapsed.Milliseconds()}
	if err != nil {
		res.Error = err.Error()
		observability.RecordHealthCheckResult(ctx, c.Name(), "unready")
	} else {
		observability.RecordHealthCheckResult(ctx, c.Name(), "ready")
	}
	return res
}
