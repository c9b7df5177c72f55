// Package health runs named dependency checks for the health endpoint.
package health

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// defaultCheckTimeout bounds a single check so one slow dependency
// cannot hang the whole endpoint.
const defaultCheckTimeout = 5 * time.Second

// CheckFunc probes one dependency. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of one named check.
type CheckResult struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// Report aggregates every check; Healthy is the AND of them all.
type Report struct {
	Healthy   bool          `json:"healthy"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

type check struct {
	name string
	run  CheckFunc
}

// Checker holds registered checks and runs them on demand.
type Checker struct {
	checks  []check
	timeout time.Duration
}

// NewChecker creates a Checker. A non-positive timeout uses the default
// per-check bound.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return &Checker{timeout: timeout}
}

// Register adds a named check. Registration order is reporting order.
func (c *Checker) Register(name string, run CheckFunc) {
	c.checks = append(c.checks, check{name: name, run: run})
}

// RunAll executes every registered check with its own timeout and
// returns the aggregate report. Failures are logged, never returned;
// the report is the answer.
func (c *Checker) RunAll(ctx context.Context) Report {
	report := Report{
		Healthy:   true,
		Checks:    make([]CheckResult, 0, len(c.checks)),
		CheckedAt: time.Now().UTC(),
	}

	for _, ck := range c.checks {
		start := time.Now()
		checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := ck.run(checkCtx)
		cancel()

		result := CheckResult{
			Name:      ck.name,
			OK:        err == nil,
			ElapsedMS: time.Since(start).Milliseconds(),
		}
		if err != nil {
			result.Error = err.Error()
			report.Healthy = false
			zap.L().Warn("health check failed",
				zap.String("check", ck.name),
				zap.Error(err),
			)
		}
		report.Checks = append(report.Checks, result)
	}

	return report
}
