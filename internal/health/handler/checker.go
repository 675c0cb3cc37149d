// Package handler serves liveness and readiness over HTTP and the grpc.health.v1 service.
package handler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pinger is implemented by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker is implemented by the OPA evaluator.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Check is one named readiness probe.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// PingerCheck probes a database connection.
func PingerCheck(name string, p Pinger) Check {
	return Check{Name: name, Probe: p.PingContext}
}

// PolicyCheck probes the policy engine.
func PolicyCheck(p PolicyChecker) Check {
	return Check{Name: "policy", Probe: p.HealthCheck}
}

// Checker runs every probe in parallel under one timeout.
type Checker struct {
	checks  []Check
	timeout time.Duration
}

// NewChecker returns a Checker. Checks with a nil Probe are ignored.
func NewChecker(timeout time.Duration, checks ...Check) *Checker {
	c := &Checker{timeout: timeout}
	for _, ch := range checks {
		if ch.Probe != nil {
			c.checks = append(c.checks, ch)
		}
	}
	return c
}

// Report is the outcome of one readiness run. Results maps check name to "ok" or the error text.
type Report struct {
	Ready   bool              `json:"ready"`
	Results map[string]string `json:"checks"`
}

// Run executes every check and reports whether all passed.
func (c *Checker) Run(ctx context.Context) Report {
	rep := Report{Ready: true, Results: make(map[string]string, len(c.checks))}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, ch := range c.checks {
		g.Go(func() error {
			err := ch.Probe(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				rep.Ready = false
				rep.Results[ch.Name] = err.Error()
			} else {
				rep.Results[ch.Name] = "ok"
			}
			return nil
		})
	}
	_ = g.Wait()
	return rep
}
