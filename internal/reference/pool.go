package reference

import (
	"context"
	"errors"
	"sync"

	"longrec/internal/logging"
	"longrec/internal/services"
	"longrec/internal/timeline"
)

// durationJob is a file to measure. A zero job (empty file path) measures 0.
type durationJob struct {
	timelineID string
	file       timeline.SourceFile
}

func (j durationJob) empty() bool { return j.file.IsHole() }

// computeDurations measures every job, in parallel when the job count reaches
// the configured threshold. The first error wins; the remaining jobs are still
// drained so no worker is left blocked.
func computeDurations(ctx context.Context, jobs []durationJob, opts Options) ([]float64, error) {
	out := make([]float64, len(jobs))
	measure := func(i int) error {
		job := jobs[i]
		if job.empty() {
			return nil
		}
		d, err := opts.Prober.Duration(ctx, job.timelineID, job.file)
		if err != nil {
			if opts.SkipFailures && !errors.Is(err, services.ErrConfiguration) {
				logging.WarnWithContext(logging.NewComponentLogger(opts.Logger, "reference"), "file duration unavailable", "duration_failed",
					logging.String(logging.FieldStream, job.timelineID),
					logging.String("path", job.file.Path),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check that the file is readable and in a supported format"),
					logging.String(logging.FieldImpact, "file is skipped during synchronization"),
				)
				return nil
			}
			return services.Wrap(services.ErrFormat, "reference", "duration", job.file.Path, err)
		}
		if d < 0 {
			d = 0
		}
		out[i] = d
		return nil
	}

	workers := opts.Workers
	threshold := opts.ParallelThreshold
	if workers <= 1 || threshold <= 0 || len(jobs) < threshold {
		for i := range jobs {
			if err := measure(i); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	logging.NewComponentLogger(opts.Logger, "reference").Debug("measuring durations in parallel",
		logging.Int("files", len(jobs)),
		logging.Int("workers", workers),
	)

	indexes := make(chan int)
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				if err := measure(i); err != nil {
					errOnce.Do(func() { firstErr = err })
				}
			}
		}()
	}
	for i := range jobs {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}
