package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"coaching-notifier/internal/common/logger"
	"coaching-notifier/internal/common/metrics"
	"coaching-notifier/internal/common/observability"
	"coaching-notifier/internal/schedule"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const jobName = "reminder-scan"

// Scanner is what the runner triggers.
type Scanner interface {
	Run(ctx context.Context) (Result, error)
}

// Runner triggers a Scanner on a cron schedule. Overlapping ticks are
// skipped while a scan is still running.
type Runner struct {
	scanner Scanner
	obs     *observability.Observability
	logger  logger.Logger
	spec    string
	loc     *time.Location

	mu      sync.Mutex
	c       *cron.Cron
	entryID cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewRunner validates spec (standard five-field cron) and timezone. obs may
// be nil.
func NewRunner(scanner Scanner, spec, timezone string, obs *observability.Observability, log logger.Logger) (*Runner, error) {
	loc, err := schedule.LoadZone(timezone)
	if err != nil {
		return nil, err
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parse reminder schedule %q: %w", spec, err)
	}
	return &Runner{
		scanner: scanner,
		obs:     obs,
		logger:  log.WithFields(map[string]interface{}{"component": "reminder-runner"}),
		spec:    spec,
		loc:     loc,
	}, nil
}

// Start begins ticking. Calling Start twice is a no-op.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c != nil {
		return nil
	}

	cl := cronLogger{r.logger}
	c := cron.New(
		cron.WithLocation(r.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	r.ctx, r.cancel = context.WithCancel(ctx)
	id, err := c.AddFunc(r.spec, func() { _ = r.RunOnce(r.ctx) })
	if err != nil {
		r.cancel()
		return fmt.Errorf("schedule reminder scan: %w", err)
	}
	r.c, r.entryID = c, id
	c.Start()

	r.logger.Info("reminder runner started", map[string]interface{}{
		"schedule": r.spec,
		"timezone": r.loc.String(),
		"next":     c.Entry(id).Next.Format(time.RFC3339),
	})
	return nil
}

// Stop halts ticking and waits for a running scan, or until ctx is done.
func (r *Runner) Stop(ctx context.Context) {
	r.mu.Lock()
	c := r.c
	cancel := r.cancel
	r.c = nil
	r.mu.Unlock()
	if c == nil {
		return
	}

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		r.logger.Warn("reminder scan still running at shutdown", nil)
	}
	cancel()
}

// Next reports the next scheduled tick, zero when stopped.
func (r *Runner) Next() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c == nil {
		return time.Time{}
	}
	return r.c.Entry(r.entryID).Next
}

// RunOnce runs one scan and records its outcome.
func (r *Runner) RunOnce(ctx context.Context) error {
	start := time.Now()

	var span trace.Span
	if r.obs != nil {
		ctx, span = r.obs.StartSpan(ctx, jobName)
		defer span.End()
	}

	res, err := r.scanner.Run(ctx)
	status := metrics.OutcomeOK
	if err != nil {
		status = metrics.OutcomeError
	}
	if r.obs != nil {
		span.SetAttributes(
			attribute.Int("reminder.matched", res.Matched),
			attribute.Int("reminder.emitted", res.Emitted),
			attribute.Int("reminder.skipped", res.Skipped),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		r.obs.RecordJobProcessed(ctx, jobName, status)
		r.obs.RecordJobDuration(ctx, jobName, time.Since(start), status)
	}

	if err != nil {
		r.logger.WithError(err).Error("reminder scan failed", nil)
		return err
	}
	r.logger.Debug("reminder scan finished", map[string]interface{}{
		"emitted":   res.Emitted,
		"elapsedMs": time.Since(start).Milliseconds(),
	})
	return nil
}

// cronLogger routes cron's own logging through the service logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, pairs(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).Error(msg, pairs(keysAndValues))
}

func pairs(kv []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return out
}
