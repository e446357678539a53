// Package reminder finds sessions starting soon and publishes a reminder for
// each of them.
package reminder

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "coaching-notifier/internal/common/errors"
	"coaching-notifier/internal/common/logger"
	"coaching-notifier/internal/common/metrics"
	"coaching-notifier/internal/eventbus"
	"coaching-notifier/internal/models"
)

const (
	// WindowStart and WindowEnd bound the lookahead, relative to the scan time.
	WindowStart = 24 * time.Hour
	WindowEnd   = 48 * time.Hour

	DefaultCoachName = "your coach"
)

// Emitter publishes events.
type Emitter interface {
	Emit(ctx context.Context, p eventbus.Payload)
}

// Result summarizes one scan.
type Result struct {
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
	Matched int       `json:"matched"`
	Emitted int       `json:"emitted"`
	Skipped int       `json:"skipped"`
}

type Job struct {
	store  Store
	bus    Emitter
	logger logger.Logger
	clock  func() time.Time
}

func NewJob(store Store, bus Emitter, log logger.Logger) *Job {
	return &Job{
		store:  store,
		bus:    bus,
		logger: log.WithFields(map[string]interface{}{"component": "reminder-scan"}),
		clock:  time.Now,
	}
}

// Run scans [now+24h, now+48h) and emits one SessionReminder per match, one
// client at a time. Only the bulk query can fail the run; a failure for one
// client is logged and the scan moves on.
//
// Nothing records that a reminder went out, so overlapping runs remind twice.
func (j *Job) Run(ctx context.Context) (Result, error) {
	now := j.clock()
	res := Result{From: now.Add(WindowStart), To: now.Add(WindowEnd)}

	due, err := j.store.DueSchedules(ctx, res.From, res.To)
	if err != nil {
		metrics.ReminderScanRuns.WithLabelValues(metrics.OutcomeError).Inc()
		return res, apperrors.NewReminderScanFailedError(err)
	}
	res.Matched = len(due)

	for _, d := range due {
		if err := j.remind(ctx, d); err != nil {
			res.Skipped++
			metrics.ReminderScanMatches.WithLabelValues("skipped").Inc()
			j.logger.WithError(err).Error("reminder skipped", map[string]interface{}{
				"clientId": d.ClientID,
				"coachId":  d.CoachID,
			})
			continue
		}
		res.Emitted++
		metrics.ReminderScanMatches.WithLabelValues("emitted").Inc()
	}

	metrics.ReminderScanRuns.WithLabelValues(metrics.OutcomeOK).Inc()
	j.logger.Info("reminder scan complete", map[string]interface{}{
		"from":    res.From.UTC().Format(time.RFC3339),
		"to":      res.To.UTC().Format(time.RFC3339),
		"matched": res.Matched,
		"emitted": res.Emitted,
		"skipped": res.Skipped,
	})
	return res, nil
}

func (j *Job) remind(ctx context.Context, d models.DueSchedule) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	name, err := j.store.CoachName(ctx, d.CoachID)
	if err != nil {
		return fmt.Errorf("coach lookup: %w", err)
	}
	if strings.TrimSpace(name) == "" {
		name = DefaultCoachName
	}

	j.bus.Emit(ctx, eventbus.SessionReminder{
		ClientID:    d.ClientID,
		SessionDate: d.NextOccurrence,
		Timezone:    d.Timezone,
		CoachName:   name,
	})
	return nil
}
