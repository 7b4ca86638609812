package domain

import "time"

// SalesReportRowKind distinguishes product rows from the trailing shipping row
// each order contributes.
type SalesReportRowKind string

const (
	ReportRowProduct  SalesReportRowKind = "product"
	ReportRowShipping SalesReportRowKind = "shipping"
)

// SalesReportRow is one fiscal line of the report. Values are copied from the
// frozen order snapshots; the aggregator never re-derives prices.
type SalesReportRow struct {
	Kind        SalesReportRowKind
	OrderID     string
	OrderNumber int64
	OrderDate   time.Time
	Label       string
	Quantity    int64
	UnitPrice   int64
	VATPercent  int64
	VATExempt   bool
	Base        int64
	VAT         int64
	Total       int64
	GrandTotal  int64
}

// SalesReportTotals accumulates the fiscal totals over every row in range.
type SalesReportTotals struct {
	TotalBase      int64
	TotalVAT       int64
	TotalCollected int64
}

// SalesReportProductTotal aggregates one product's movement over the period.
type SalesReportProductTotal struct {
	ProductID string
	Label     string
	Quantity  int64
	Base      int64
	VAT       int64
	Total     int64
}

// SalesReport is the structured form of the period report.
type SalesReport struct {
	From          time.Time
	To            time.Time
	Rows          []SalesReportRow
	ProductTotals []SalesReportProductTotal
	Totals        SalesReportTotals
}
