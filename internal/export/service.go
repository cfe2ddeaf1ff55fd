// Package export produces an XLSX summary workbook from the invoice JSON
// artifacts written by the persister.
package export

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Service reads persisted invoice records and renders them as a workbook.
type Service struct {
	outputDir string
	logger    *slog.Logger
}

func NewService(outputDir string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{outputDir: outputDir, logger: logger}
}

// invoiceRow is the flattened view of one persisted artifact.
type invoiceRow struct {
	SourceFile       string
	Supplier         string
	InvoiceNumber    string
	InvoiceDate      string
	DueDate          string
	Subtotal         any
	Tax              any
	GrandTotal       any
	ValidationStatus string
	ProcessedAt      string
	ArtifactName     string
}

// ExportInvoicesXLSX loads every *.json artifact in the output directory and
// returns an XLSX workbook as bytes. Unreadable artifacts are skipped with a
// warning; they never fail the export.
func (s *Service) ExportInvoicesXLSX() ([]byte, error) {
	start := time.Now()

	entries, err := os.ReadDir(s.outputDir)
	if err != nil {
		return nil, fmt.Errorf("read output dir: %w", err)
	}

	var rows []invoiceRow
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		row, err := s.loadRow(entry.Name())
		if err != nil {
			s.logger.Warn("export.skip_artifact", "artifact", entry.Name(), "error", err)
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ArtifactName < rows[j].ArtifactName })

	f := excelize.NewFile()
	const sheet = "Invoices"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if defaultIndex, _ := f.GetSheetIndex("Sheet1"); defaultIndex != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	headers := []string{
		"Supplier",
		"Invoice Number",
		"Invoice Date",
		"Due Date",
		"Subtotal",
		"Tax",
		"Grand Total",
		"Validation",
		"Source File",
		"Processed At",
		"Artifact",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	rowIdx := 2
	for _, r := range rows {
		values := []any{
			r.Supplier, r.InvoiceNumber, r.InvoiceDate, r.DueDate,
			r.Subtotal, r.Tax, r.GrandTotal,
			r.ValidationStatus, r.SourceFile, r.ProcessedAt, r.ArtifactName,
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, rowIdx)
			_ = f.SetCellValue(sheet, cell, v)
		}
		rowIdx++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render workbook: %w", err)
	}

	s.logger.Info("export.ok", "rows", len(rows), "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

func (s *Service) loadRow(name string) (invoiceRow, error) {
	raw, err := os.ReadFile(filepath.Join(s.outputDir, name))
	if err != nil {
		return invoiceRow{}, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return invoiceRow{}, fmt.Errorf("decode artifact: %w", err)
	}

	row := invoiceRow{
		ArtifactName:  name,
		Supplier:      stringField(doc, "supplier_name"),
		InvoiceNumber: stringField(doc, "invoice_number"),
		InvoiceDate:   stringField(doc, "invoice_date"),
		DueDate:       stringField(doc, "due_date"),
		Subtotal:      doc["subtotal"],
		Tax:           doc["tax"],
		GrandTotal:    doc["grand_total"],
		SourceFile:    stringField(doc, "original_filename"),
		ProcessedAt:   stringField(doc, "processing_timestamp"),
	}
	if details, ok := doc["__validation_details"].(map[string]any); ok {
		row.ValidationStatus = stringField(details, "status")
	}
	return row, nil
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
