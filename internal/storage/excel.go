package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"adportal/internal/pricing"
	"adportal/internal/quote"

	"github.com/xuri/excelize/v2"
)

const (
	quoteSheet    = "Quote"
	scheduleSheet = "Schedule"
	quotesSheet   = "Quotes"
	moneyFormat   = "£#,##0.00"
	timeLayout    = "2006-01-02 15:04"
)

// WriteQuoteWorkbook writes a single quote as an xlsx workbook.
func WriteQuoteWorkbook(w io.Writer, q *quote.Quote) error {
	f, err := quoteWorkbook(q)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}

// ExportQuoteToExcel saves a single quote workbook under dir and returns its path.
func ExportQuoteToExcel(dir string, q *quote.Quote) (string, error) {
	f, err := quoteWorkbook(q)
	if err != nil {
		return "", err
	}
	defer f.Close()

	filename := fmt.Sprintf("quote_%d_%s.xlsx", q.ID, q.CreatedAt.Format("20060102_1504"))
	return saveWorkbook(f, dir, filename)
}

// ExportQuotesToExcel saves a one-row-per-quote report under dir.
func ExportQuotesToExcel(dir, name string, quotes []quote.Quote) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", quotesSheet); err != nil {
		return "", fmt.Errorf("failed to create sheet: %w", err)
	}

	headers := []string{
		"ID", "Reference", "Created At", "Source", "Status", "Product",
		"Customer", "Company", "Email", "Phone", "Areas", "Free Areas",
		"Months", "Net", "VAT", "Total", "Synced",
	}
	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(quotesSheet, cell, header)
	}

	for row, q := range quotes {
		data := []any{
			q.ID,
			q.Ref,
			q.CreatedAt.Format(timeLayout),
			string(q.Source),
			string(q.Status),
			q.Draft.Product.Title(),
			q.Contact.Name,
			q.Contact.Company,
			q.Contact.Email,
			q.Contact.Phone,
			strings.Join(q.Draft.Selection.Paid, ", "),
			strings.Join(q.Draft.Selection.Free, ", "),
			q.Draft.Months,
			q.Price.Net.InexactFloat64(),
			q.Price.VAT.InexactFloat64(),
			q.Price.Total.InexactFloat64(),
			q.Synced,
		}
		for col, value := range data {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(quotesSheet, cell, value)
		}
	}

	if len(quotes) > 0 {
		money, err := f.NewStyle(&excelize.Style{CustomNumFmt: ptr(moneyFormat)})
		if err != nil {
			return "", fmt.Errorf("failed to create style: %w", err)
		}
		last := fmt.Sprintf("P%d", len(quotes)+1)
		f.SetCellStyle(quotesSheet, "N2", last, money)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return "", fmt.Errorf("failed to create style: %w", err)
	}
	f.SetCellStyle(quotesSheet, "A1", "Q1", bold)
	f.SetPanes(quotesSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	return saveWorkbook(f, dir, name+".xlsx")
}

func saveWorkbook(f *excelize.File, dir, filename string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	path := filepath.Join(dir, filename)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save Excel file: %w", err)
	}
	return path, nil
}

func quoteWorkbook(q *quote.Quote) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", quoteSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{CustomNumFmt: ptr(moneyFormat)})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	info := [][2]any{
		{"Reference", q.Ref},
		{"Quote ID", q.ID},
		{"Created At", q.CreatedAt.Format(timeLayout)},
		{"Status", string(q.Status)},
		{"Product", q.Draft.Product.Title()},
		{"Customer", q.Contact.Name},
		{"Company", q.Contact.Company},
		{"Email", q.Contact.Email},
		{"Phone", q.Contact.Phone},
		{"Areas", strings.Join(q.Draft.Selection.Paid, ", ")},
		{"Free Areas", strings.Join(q.Draft.Selection.Free, ", ")},
		{"Months", q.Draft.Months},
	}
	if q.Draft.Product.HasAdvertising() {
		info = append(info, [2]any{"Ad Size", string(q.Draft.AdSize)})
	}
	if q.Draft.Product.HasLeafleting() {
		info = append(info, [2]any{"Leaflet Size", q.Draft.LeafletSize})
	}

	row := 1
	for _, kv := range info {
		f.SetCellValue(quoteSheet, cellName(1, row), kv[0])
		f.SetCellValue(quoteSheet, cellName(2, row), kv[1])
		row++
	}
	f.SetCellStyle(quoteSheet, "A1", cellName(1, row-1), bold)

	for _, b := range []*pricing.Breakdown{q.Price.Advertising, q.Price.Leafleting} {
		if b == nil {
			continue
		}
		row++
		f.SetCellValue(quoteSheet, cellName(1, row), lineTitle(b.Product))
		f.SetCellStyle(quoteSheet, cellName(1, row), cellName(1, row), bold)
		row++
		for _, l := range b.Lines() {
			f.SetCellValue(quoteSheet, cellName(1, row), l.Label)
			f.SetCellValue(quoteSheet, cellName(2, row), l.Amount.InexactFloat64())
			f.SetCellStyle(quoteSheet, cellName(2, row), cellName(2, row), money)
			row++
		}
	}

	if q.Price.Advertising != nil && q.Price.Leafleting != nil {
		row++
		for _, kv := range []struct {
			label string
			value float64
		}{
			{"Quote Net", q.Price.Net.InexactFloat64()},
			{"Quote VAT", q.Price.VAT.InexactFloat64()},
			{"Quote Total", q.Price.Total.InexactFloat64()},
		} {
			f.SetCellValue(quoteSheet, cellName(1, row), kv.label)
			f.SetCellValue(quoteSheet, cellName(2, row), kv.value)
			f.SetCellStyle(quoteSheet, cellName(1, row), cellName(1, row), bold)
			f.SetCellStyle(quoteSheet, cellName(2, row), cellName(2, row), money)
			row++
		}
	}
	f.SetColWidth(quoteSheet, "A", "A", 32)
	f.SetColWidth(quoteSheet, "B", "B", 40)

	if len(q.Draft.Schedule) > 0 {
		if _, err := f.NewSheet(scheduleSheet); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet: %w", err)
		}
		f.SetCellValue(scheduleSheet, "A1", "Area")
		f.SetCellValue(scheduleSheet, "B1", "Months")
		f.SetCellStyle(scheduleSheet, "A1", "B1", bold)

		areas := make([]string, 0, len(q.Draft.Schedule))
		for id := range q.Draft.Schedule {
			areas = append(areas, id)
		}
		sort.Strings(areas)
		for i, id := range areas {
			labels := make([]string, 0, len(q.Draft.Schedule[id]))
			for _, m := range q.Draft.Schedule[id] {
				labels = append(labels, m.Label())
			}
			f.SetCellValue(scheduleSheet, cellName(1, i+2), id)
			f.SetCellValue(scheduleSheet, cellName(2, i+2), strings.Join(labels, ", "))
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

func lineTitle(p pricing.Product) string {
	switch p {
	case pricing.ProductAdvertising:
		return "Advertising"
	case pricing.ProductLeafleting:
		return "Leaflet distribution"
	}
	return string(p)
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func ptr[T any](v T) *T { return &v }
