package jobs

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/robertmeta/ytrss/model"
	"github.com/robertmeta/ytrss/pipeline"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of jobs run at once.
const DefaultConcurrency = 4

// JobError is the failure of one job.
type JobError struct {
	Job model.Job
	Err error
}

func (e *JobError) Error() string {
	return "job " + e.Job.String() + ": " + e.Err.Error()
}

func (e *JobError) Unwrap() error { return e.Err }

// Func generates the feed of one job.
type Func func(ctx context.Context, job model.Job) (*pipeline.Report, error)

// Result is the outcome of one job.
type Result struct {
	Job      model.Job        `json:"job"`
	Report   *pipeline.Report `json:"report,omitempty"`
	Err      error            `json:"-"`
	Error    string           `json:"error,omitempty"`
	Duration time.Duration    `json:"duration"`
}

// Dispatcher runs jobs concurrently. Jobs are independent: a failing or
// panicking job is recorded in its Result and never stops the others.
type Dispatcher struct {
	Concurrency int
	// Shuffle randomizes the start order.
	Shuffle bool
	Log     logrus.FieldLogger
}

// Run executes fn for every job and returns one Result per job, in input order.
// Jobs not yet started when ctx is done fail with the context's error.
func (d *Dispatcher) Run(ctx context.Context, jobs []model.Job, fn Func) []Result {
	results := make([]Result, len(jobs))
	order := lo.Range(len(jobs))
	if d.Shuffle {
		rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	var g errgroup.Group
	g.SetLimit(d.concurrency())

	for _, i := range order {
		g.Go(func() error {
			results[i] = d.run(ctx, jobs[i], fn)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (d *Dispatcher) run(ctx context.Context, job model.Job, fn Func) (res Result) {
	log := d.logger().WithField("job", job.String())
	started := time.Now()
	res.Job = job

	defer func() {
		if r := recover(); r != nil {
			res.Report = nil
			res.Err = &JobError{Job: job, Err: fmt.Errorf("panic: %v", r)}
		}
		res.Duration = time.Since(started)
		if res.Err != nil {
			res.Error = res.Err.Error()
			log.WithError(res.Err).Error("Job failed")
			return
		}
		log.WithField("duration", res.Duration.Round(time.Millisecond)).Info("Job finished")
	}()

	if err := ctx.Err(); err != nil {
		res.Err = &JobError{Job: job, Err: err}
		return res
	}

	report, err := fn(ctx, job)
	if err != nil {
		res.Err = &JobError{Job: job, Err: err}
		return res
	}
	res.Report = report
	return res
}

// Failed returns the results that carry an error.
func Failed(results []Result) []Result {
	return lo.Filter(results, func(r Result, _ int) bool { return r.Err != nil })
}

func (d *Dispatcher) concurrency() int {
	if d.Concurrency < 1 {
		return DefaultConcurrency
	}
	return d.Concurrency
}

func (d *Dispatcher) logger() logrus.FieldLogger {
	if d.Log != nil {
		return d.Log
	}
	return logrus.StandardLogger()
}
