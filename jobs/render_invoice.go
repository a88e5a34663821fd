package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hibiken/asynq"

	"github.com/tillbook/tillbook/internal/billing"
	"github.com/tillbook/tillbook/report"
)

// RenderInvoiceJob renders an invoice to a PDF file under the document
// directory.
type RenderInvoiceJob struct {
	Billing  *billing.Service
	Renderer *report.Client
	Dir      string
	Logger   *slog.Logger
}

// NewRenderInvoiceJob initialises the render handler.
func NewRenderInvoiceJob(svc *billing.Service, renderer *report.Client, dir string, logger *slog.Logger) *RenderInvoiceJob {
	return &RenderInvoiceJob{Billing: svc, Renderer: renderer, Dir: dir, Logger: logger}
}

// Handle renders one invoice and writes <number>.pdf to the directory.
func (j *RenderInvoiceJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Billing == nil || j.Renderer == nil {
		return errors.New("render invoice: handler not configured")
	}
	var payload RenderInvoicePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.InvoiceID <= 0 {
		return asynq.SkipRetry
	}

	doc, err := j.Billing.RenderDocument(ctx, payload.InvoiceID)
	if err != nil {
		return err
	}
	html, err := report.BuildInvoiceHTML(*doc)
	if err != nil {
		return err
	}
	pdf, err := j.Renderer.RenderHTML(ctx, html)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(j.Dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(j.Dir, fmt.Sprintf("%s.pdf", doc.Number))
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return err
	}

	j.Logger.Info("rendered invoice document",
		slog.Int64("invoice_id", payload.InvoiceID),
		slog.String("path", path),
	)
	return nil
}
