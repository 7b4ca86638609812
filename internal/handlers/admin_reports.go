package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arbona-turismo/storefront/internal/platform/httpx"
	"github.com/arbona-turismo/storefront/internal/services"
)

// ReportAdminHandlers exposes period sales reports in JSON and CSV, plus the
// bucket export trigger.
type ReportAdminHandlers struct {
	reports services.ReportService
}

// NewReportAdminHandlers constructs the report admin handlers.
func NewReportAdminHandlers(reports services.ReportService) *ReportAdminHandlers {
	return &ReportAdminHandlers{reports: reports}
}

// Routes registers report endpoints under the provided router.
func (h *ReportAdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/reports", func(group chi.Router) {
		group.Get("/sales", h.salesReport)
		group.Get("/sales.csv", h.salesReportCSV)
		group.Post("/sales/export", h.exportSalesReport)
	})
}

type reportRowPayload struct {
	Kind       string `json:"kind"`
	OrderID    string `json:"orderId"`
	Reference  string `json:"reference"`
	OrderDate  string `json:"orderDate"`
	Label      string `json:"label"`
	Quantity   int64  `json:"quantity"`
	UnitPrice  int64  `json:"unitPrice"`
	VATPercent int64  `json:"vatPercent"`
	VATExempt  bool   `json:"vatExempt"`
	Base       int64  `json:"base"`
	VAT        int64  `json:"vat"`
	Total      int64  `json:"total"`
}

type reportProductTotalPayload struct {
	ProductID string `json:"productId"`
	Label     string `json:"label"`
	Quantity  int64  `json:"quantity"`
	Base      int64  `json:"base"`
	VAT       int64  `json:"vat"`
	Total     int64  `json:"total"`
}

type salesReportResponse struct {
	From          string                      `json:"from"`
	To            string                      `json:"to"`
	Rows          []reportRowPayload          `json:"rows"`
	ProductTotals []reportProductTotalPayload `json:"productTotals"`
	Totals        struct {
		TotalBase      int64 `json:"totalBase"`
		TotalVAT       int64 `json:"totalVat"`
		TotalCollected int64 `json:"totalCollected"`
	} `json:"totals"`
}

// parseReportPeriod reads from/to query params as RFC 3339 timestamps or
// calendar dates. The period is half-open: [from, to).
func parseReportPeriod(r *http.Request) (time.Time, time.Time, error) {
	from, err := parseReportTime(r.URL.Query().Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from parameter: %w", err)
	}
	to, err := parseReportTime(r.URL.Query().Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to parameter: %w", err)
	}
	return from, to, nil
}

func parseReportTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("value is required")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, errors.New("value must be RFC 3339 or YYYY-MM-DD")
	}
	return t.UTC(), nil
}

func (h *ReportAdminHandlers) salesReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	from, to, err := parseReportPeriod(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	report, err := h.reports.SalesReport(ctx, from, to)
	if err != nil {
		writeReportError(ctx, w, err)
		return
	}

	response := salesReportResponse{
		From:          formatTime(report.From),
		To:            formatTime(report.To),
		Rows:          make([]reportRowPayload, 0, len(report.Rows)),
		ProductTotals: make([]reportProductTotalPayload, 0, len(report.ProductTotals)),
	}
	for _, row := range report.Rows {
		response.Rows = append(response.Rows, reportRowPayload{
			Kind:       string(row.Kind),
			OrderID:    row.OrderID,
			Reference:  services.FormatOrderNumber(row.OrderNumber),
			OrderDate:  formatTime(row.OrderDate),
			Label:      row.Label,
			Quantity:   row.Quantity,
			UnitPrice:  row.UnitPrice,
			VATPercent: row.VATPercent,
			VATExempt:  row.VATExempt,
			Base:       row.Base,
			VAT:        row.VAT,
			Total:      row.Total,
		})
	}
	for _, total := range report.ProductTotals {
		response.ProductTotals = append(response.ProductTotals, reportProductTotalPayload{
			ProductID: total.ProductID,
			Label:     total.Label,
			Quantity:  total.Quantity,
			Base:      total.Base,
			VAT:       total.VAT,
			Total:     total.Total,
		})
	}
	response.Totals.TotalBase = report.Totals.TotalBase
	response.Totals.TotalVAT = report.Totals.TotalVAT
	response.Totals.TotalCollected = report.Totals.TotalCollected

	writeJSONResponse(w, http.StatusOK, response)
}

func (h *ReportAdminHandlers) salesReportCSV(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	from, to, err := parseReportPeriod(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	data, err := h.reports.SalesReportCSV(ctx, from, to)
	if err != nil {
		writeReportError(ctx, w, err)
		return
	}

	filename := fmt.Sprintf("sales_%s_%s.csv", from.Format("20060102"), to.Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *ReportAdminHandlers) exportSalesReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	from, to, err := parseReportPeriod(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	object, err := h.reports.ExportSalesReport(ctx, from, to)
	if err != nil {
		writeReportError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, map[string]any{"object": object})
}

func writeReportError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrReportInvalidRange):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_period", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrReportExportUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("export_unavailable", err.Error(), http.StatusServiceUnavailable))
	default:
		writeAdminInternalError(ctx, w, err)
	}
}
