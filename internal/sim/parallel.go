package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/san-kum/dynrelax/internal/dynamo"
)

// Job is one independent relaxation of a sweep. Build is called on the
// job's own goroutine, so every run owns a private network.
type Job struct {
	Name    string
	Build   func() (*dynamo.Network, error)
	Config  Config
	Run     RunConfig
	Metrics func() []Metric
}

// Sweep runs jobs concurrently and returns their results in job order. The
// first failing job (by index) determines the returned error.
func Sweep(ctx context.Context, jobs []Job) ([]*Result, error) {
	results := make([]*Result, len(jobs))
	errs := make([]error, len(jobs))

	var wg sync.WaitGroup
	for i := range jobs {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = runJob(ctx, jobs[idx])
		}(i)
	}

	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return results, fmt.Errorf("job %d (%s): %w", i, jobs[i].Name, err)
		}
	}

	return results, nil
}

func runJob(ctx context.Context, job Job) (*Result, error) {
	net, err := job.Build()
	if err != nil {
		return nil, err
	}

	r, err := New(net, job.Config)
	if err != nil {
		return nil, err
	}
	if job.Metrics != nil {
		for _, m := range job.Metrics() {
			r.AddMetric(m)
		}
	}
	return r.Run(ctx, job.Run)
}
