package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	domain "github.com/arbona-turismo/storefront/internal/domain"
	"github.com/arbona-turismo/storefront/internal/platform/config"
	"github.com/arbona-turismo/storefront/internal/repositories"
)

var (
	// ErrReportInvalidRange signals a reporting period that ends before it starts.
	ErrReportInvalidRange = errors.New("report: invalid period")
	// ErrReportExportUnavailable is returned when no export destination is configured.
	ErrReportExportUnavailable = errors.New("report: export destination not configured")
)

// ReportObjectWriter writes a finished export to object storage.
type ReportObjectWriter interface {
	WriteObject(ctx context.Context, bucket, object, contentType string, data []byte) error
}

// ReportServiceDeps bundles dependencies required to construct the report service.
type ReportServiceDeps struct {
	Orders  repositories.OrderRepository
	Exports ReportObjectWriter
	Reports config.ReportsConfig
	// Locale orders the product totals section; BCP 47, defaults to Spanish.
	Locale string
	Logger func(context.Context, string, map[string]any)
}

type reportService struct {
	orders   repositories.OrderRepository
	exports  ReportObjectWriter
	reports  config.ReportsConfig
	collator *collate.Collator
	logger   func(context.Context, string, map[string]any)
}

var _ ReportService = (*reportService)(nil)

// NewReportService wires the sales report service.
func NewReportService(deps ReportServiceDeps) (ReportService, error) {
	if deps.Orders == nil {
		return nil, errors.New("report service: order repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	tag := language.Spanish
	if deps.Locale != "" {
		parsed, err := language.Parse(deps.Locale)
		if err != nil {
			return nil, fmt.Errorf("report service: invalid locale %q: %w", deps.Locale, err)
		}
		tag = parsed
	}

	return &reportService{
		orders:   deps.Orders,
		exports:  deps.Exports,
		reports:  deps.Reports,
		collator: collate.New(tag),
		logger:   logger,
	}, nil
}

// SalesReport aggregates the orders created in [from, to) into fiscal rows. Every
// value is copied from the frozen order snapshots; nothing is re-priced.
func (s *reportService) SalesReport(ctx context.Context, from, to time.Time) (SalesReport, error) {
	from, to = from.UTC(), to.UTC()
	if !to.After(from) {
		return SalesReport{}, ErrReportInvalidRange
	}

	orders, err := s.orders.ListBetween(ctx, from, to)
	if err != nil {
		return SalesReport{}, err
	}

	report := SalesReport{From: from, To: to}
	byProduct := map[string]*domain.SalesReportProductTotal{}

	for _, order := range orders {
		for _, line := range order.Lines {
			report.Rows = append(report.Rows, SalesReportRow{
				Kind:        domain.ReportRowProduct,
				OrderID:     order.ID,
				OrderNumber: order.Number,
				OrderDate:   order.CreatedAt,
				Label:       line.ProductName,
				Quantity:    line.Quantity,
				UnitPrice:   line.UnitEffectivePrice,
				VATPercent:  line.VATPercent,
				VATExempt:   line.VATExempt,
				Base:        line.BaseAmount,
				VAT:         line.VATAmount,
				Total:       line.GrossAmount,
				GrandTotal:  order.GrandTotal,
			})
			report.Totals.TotalBase += line.BaseAmount
			report.Totals.TotalVAT += line.VATAmount

			total, ok := byProduct[line.ProductID]
			if !ok {
				total = &domain.SalesReportProductTotal{ProductID: line.ProductID, Label: line.ProductName}
				byProduct[line.ProductID] = total
			}
			total.Quantity += line.Quantity
			total.Base += line.BaseAmount
			total.VAT += line.VATAmount
			total.Total += line.GrossAmount
		}

		if order.ShippingCost > 0 {
			report.Rows = append(report.Rows, SalesReportRow{
				Kind:        domain.ReportRowShipping,
				OrderID:     order.ID,
				OrderNumber: order.Number,
				OrderDate:   order.CreatedAt,
				Label:       order.ShippingZoneName,
				Quantity:    1,
				UnitPrice:   order.ShippingCost,
				VATPercent:  order.ShippingVATPercent,
				VATExempt:   order.ShippingVAT == 0 && order.ShippingVATPercent == 0,
				Base:        order.ShippingBase,
				VAT:         order.ShippingVAT,
				Total:       order.ShippingCost,
				GrandTotal:  order.GrandTotal,
			})
			report.Totals.TotalBase += order.ShippingBase
			report.Totals.TotalVAT += order.ShippingVAT
		}

		report.Totals.TotalCollected += order.GrandTotal
	}

	report.ProductTotals = make([]domain.SalesReportProductTotal, 0, len(byProduct))
	for _, total := range byProduct {
		report.ProductTotals = append(report.ProductTotals, *total)
	}
	sort.Slice(report.ProductTotals, func(a, b int) bool {
		left, right := report.ProductTotals[a], report.ProductTotals[b]
		if cmp := s.collator.CompareString(left.Label, right.Label); cmp != 0 {
			return cmp < 0
		}
		return left.ProductID < right.ProductID
	})

	s.logger(ctx, "report.generated", map[string]any{
		"from":   from,
		"to":     to,
		"orders": len(orders),
		"rows":   len(report.Rows),
	})
	return report, nil
}

// SalesReportCSV renders the period report in the accounting CSV layout. With a
// comma decimal separator the field delimiter switches to a semicolon.
func (s *reportService) SalesReportCSV(ctx context.Context, from, to time.Time) ([]byte, error) {
	report, err := s.SalesReport(ctx, from, to)
	if err != nil {
		return nil, err
	}

	separator := "."
	delimiter := ','
	if s.reports.DecimalSeparator == config.DecimalSeparatorComma {
		separator = ","
		delimiter = ';'
	}
	money := func(cents int64) string { return formatAmount(cents, separator) }

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = delimiter

	records := [][]string{{
		"kind", "order", "date", "concept", "quantity", "unit_price",
		"vat_percent", "vat_exempt", "base", "vat", "total", "order_total",
	}}
	for _, row := range report.Rows {
		records = append(records, []string{
			string(row.Kind),
			FormatOrderNumber(row.OrderNumber),
			row.OrderDate.Format("2006-01-02"),
			row.Label,
			strconv.FormatInt(row.Quantity, 10),
			money(row.UnitPrice),
			strconv.FormatInt(row.VATPercent, 10),
			strconv.FormatBool(row.VATExempt),
			money(row.Base),
			money(row.VAT),
			money(row.Total),
			money(row.GrandTotal),
		})
	}
	for _, total := range report.ProductTotals {
		records = append(records, []string{
			"product_total", "", "", total.Label,
			strconv.FormatInt(total.Quantity, 10), "", "", "",
			money(total.Base), money(total.VAT), money(total.Total), "",
		})
	}
	records = append(records, []string{
		"total", "", "", "", "", "", "", "",
		money(report.Totals.TotalBase),
		money(report.Totals.TotalVAT),
		money(report.Totals.TotalCollected),
		"",
	})

	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("report: write csv: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportSalesReport writes the CSV to the exports bucket and returns the object name.
func (s *reportService) ExportSalesReport(ctx context.Context, from, to time.Time) (string, error) {
	if s.exports == nil || s.reports.ExportsBucket == "" {
		return "", ErrReportExportUnavailable
	}

	data, err := s.SalesReportCSV(ctx, from, to)
	if err != nil {
		return "", err
	}

	object := fmt.Sprintf("sales/%s_%s.csv", from.UTC().Format("20060102"), to.UTC().Format("20060102"))
	if err := s.exports.WriteObject(ctx, s.reports.ExportsBucket, object, "text/csv", data); err != nil {
		return "", err
	}

	s.logger(ctx, "report.exported", map[string]any{
		"bucket": s.reports.ExportsBucket,
		"object": object,
		"bytes":  len(data),
	})
	return object, nil
}

// formatAmount renders euro cents as a decimal euro string using the configured
// decimal separator, e.g. 12345 -> "123,45".
func formatAmount(cents int64, separator string) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s%d%s%02d", sign, cents/100, separator, cents%100)
}
