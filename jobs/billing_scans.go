package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tillbook/tillbook/internal/billing"
)

// OverdueScanJob promotes Unpaid and Partial invoices past their due date.
type OverdueScanJob struct {
	Billing *billing.Service
	Logger  *slog.Logger
	clock   func() time.Time
}

// NewOverdueScanJob initialises the overdue scan handler.
func NewOverdueScanJob(svc *billing.Service, logger *slog.Logger) *OverdueScanJob {
	return &OverdueScanJob{
		Billing: svc,
		Logger:  logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the overdue scan.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Billing == nil {
		return errors.New("overdue scan: handler not configured")
	}
	var payload OverdueScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	asOf, err := resolveAsOf(payload.AsOf, j.clock)
	if err != nil {
		return asynq.SkipRetry
	}

	count, err := j.Billing.MarkOverdue(ctx, asOf)
	if err != nil {
		j.Logger.Error("overdue scan failed", slog.Any("error", err))
		return err
	}
	j.Logger.Info("completed overdue scan",
		slog.Time("as_of", asOf),
		slog.Int64("promoted", count),
	)
	return nil
}

// ReminderScanJob lists open invoices approaching their due date. Delivery is
// out of scope; the scan logs each hit so an external notifier can pick it up.
type ReminderScanJob struct {
	Billing *billing.Service
	Logger  *slog.Logger
	clock   func() time.Time
}

// NewReminderScanJob initialises the reminder scan handler.
func NewReminderScanJob(svc *billing.Service, logger *slog.Logger) *ReminderScanJob {
	return &ReminderScanJob{
		Billing: svc,
		Logger:  logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the reminder scan.
func (j *ReminderScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Billing == nil {
		return errors.New("reminder scan: handler not configured")
	}
	var payload ReminderScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	asOf, err := resolveAsOf(payload.AsOf, j.clock)
	if err != nil {
		return asynq.SkipRetry
	}

	due, err := j.Billing.ListDueSoon(ctx, asOf)
	if err != nil {
		j.Logger.Error("reminder scan failed", slog.Any("error", err))
		return err
	}
	for _, inv := range due {
		j.Logger.Info("invoice due soon",
			slog.String("number", inv.Number),
			slog.String("customer", inv.CustomerName),
			slog.Time("due_date", inv.DueDate),
			slog.Float64("total", inv.Total),
		)
	}
	j.Logger.Info("completed reminder scan",
		slog.Time("as_of", asOf),
		slog.Int("due_soon", len(due)),
	)
	return nil
}

func resolveAsOf(raw string, clock func() time.Time) (time.Time, error) {
	if raw == "" {
		return clock(), nil
	}
	return time.Parse("2006-01-02", raw)
}
