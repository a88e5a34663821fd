package billing

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tillbook/tillbook/internal/platform/httpx"
	"github.com/tillbook/tillbook/internal/shared"
	"github.com/tillbook/tillbook/report"
)

// Renderer turns invoice HTML into a PDF. Satisfied by report.Client.
type Renderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Handler exposes billing over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	renderer Renderer
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, renderer Renderer) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		renderer: renderer,
		validate: validator.New(),
	}
}

// MountRoutes registers billing routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/invoices", h.search)
	r.Post("/invoices", h.create)
	r.Get("/invoices/{id}", h.details)
	r.Post("/invoices/{id}/payments", h.recordPayment)
	r.Get("/invoices/{id}/pdf", h.renderPDF)
}

type lineRequest struct {
	ItemID      int64   `json:"item_id" validate:"required"`
	Description string  `json:"description"`
	Quantity    int64   `json:"quantity" validate:"required"`
	UnitPrice   float64 `json:"unit_price"`
}

type createInvoiceRequest struct {
	CustomerID   int64         `json:"customer_id" validate:"required"`
	Lines        []lineRequest `json:"lines" validate:"required,min=1"`
	InvoiceDate  string        `json:"invoice_date"`
	DueDate      string        `json:"due_date"`
	TaxRate      float64       `json:"tax_rate"`
	DiscountRate float64       `json:"discount_rate"`
	Notes        string        `json:"notes"`
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", value)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.Missing("customer and at least one line"))
		return
	}

	invoiceDate, err := parseDate(req.InvoiceDate)
	if err != nil {
		httpx.RespondError(w, shared.Invalid("invoice date"))
		return
	}
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		httpx.RespondError(w, shared.Invalid("due date"))
		return
	}

	input := CreateInvoiceInput{
		CustomerID:   req.CustomerID,
		InvoiceDate:  invoiceDate,
		DueDate:      dueDate,
		TaxRate:      req.TaxRate,
		DiscountRate: req.DiscountRate,
		Notes:        req.Notes,
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, LineInput{
			ItemID:      line.ItemID,
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
		})
	}

	actor := shared.ActorFromContext(r.Context())
	id, number, err := h.service.CreateInvoice(r.Context(), actor, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": id, "number": number})
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := SearchFilter{
		Term:   q.Get("q"),
		Status: q.Get("status"),
	}
	if v := q.Get("from"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			httpx.RespondError(w, shared.Invalid("from date"))
			return
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			httpx.RespondError(w, shared.Invalid("to date"))
			return
		}
		filter.To = t
	}
	if v := q.Get("customer_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.RespondError(w, shared.Invalid("customer id"))
			return
		}
		filter.CustomerID = id
	}

	summaries, err := h.service.SearchInvoices(r.Context(), filter)
	if err != nil {
		h.logger.Error("search invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summaries)
}

func (h *Handler) details(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, shared.Invalid("invoice id"))
		return
	}
	details, err := h.service.InvoiceDetails(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, details)
}

type paymentRequest struct {
	Amount    float64 `json:"amount" validate:"required"`
	Method    string  `json:"method"`
	Reference string  `json:"reference"`
	At        string  `json:"at"`
	Note      string  `json:"note"`
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, shared.Invalid("invoice id"))
		return
	}

	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	at, err := parseDate(req.At)
	if err != nil {
		httpx.RespondError(w, shared.Invalid("payment date"))
		return
	}

	actor := shared.ActorFromContext(r.Context())
	paymentID, status, err := h.service.RecordPayment(r.Context(), actor, id, PaymentInput{
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: req.Reference,
		At:        at,
		Note:      req.Note,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": paymentID, "status": status})
}

func (h *Handler) renderPDF(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, shared.Invalid("invoice id"))
		return
	}

	doc, err := h.service.RenderDocument(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	html, err := report.BuildInvoiceHTML(*doc)
	if err != nil {
		h.logger.Error("build invoice html", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "document build failed")
		return
	}
	pdf, err := h.renderer.RenderHTML(r.Context(), html)
	if err != nil {
		h.logger.Error("render invoice pdf", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Bad Gateway", "document renderer unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%s.pdf", doc.Number))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
