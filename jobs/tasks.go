package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOverdueScan promotes open invoices past their due date.
	TaskOverdueScan = "billing:overdue_scan"
	// TaskReminderScan finds invoices approaching their due date.
	TaskReminderScan = "billing:reminder_scan"
	// TaskRenderInvoice renders one invoice to the document directory.
	TaskRenderInvoice = "billing:render_invoice"
)

// OverdueScanPayload parameterizes an overdue scan. AsOf defaults to now when
// empty; format 2006-01-02.
type OverdueScanPayload struct {
	AsOf string `json:"as_of,omitempty"`
}

// ReminderScanPayload parameterizes a reminder scan.
type ReminderScanPayload struct {
	AsOf string `json:"as_of,omitempty"`
}

// RenderInvoicePayload names the invoice to render.
type RenderInvoicePayload struct {
	InvoiceID int64 `json:"invoice_id"`
}

// NewOverdueScanTask constructs an overdue scan task.
func NewOverdueScanTask(payload OverdueScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverdueScan, data), nil
}

// NewReminderScanTask constructs a reminder scan task.
func NewReminderScanTask(payload ReminderScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReminderScan, data), nil
}

// NewRenderInvoiceTask constructs a render task.
func NewRenderInvoiceTask(payload RenderInvoicePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRenderInvoice, data), nil
}
