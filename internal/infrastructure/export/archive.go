// Package export writes finance-approved reports as a zip archive of CSV
// files, an xlsx workbook with the same tables, and a manifest.
package export

import (
	"archive/zip"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// WorkbookName is the xlsx entry inside the archive
const WorkbookName = "export.xlsx"

// Manifest describes the archive contents
type Manifest struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Start       *time.Time     `json:"start,omitempty"`
	End         *time.Time     `json:"end,omitempty"`
	Employees   []string       `json:"employees,omitempty"`
	Counts      map[string]int `json:"counts"`
	Files       []string       `json:"files"`
}

// ArchiveWriter streams export archives
type ArchiveWriter struct {
	logger *zap.Logger
}

// NewArchiveWriter creates an archive writer
func NewArchiveWriter(logger *zap.Logger) *ArchiveWriter {
	return &ArchiveWriter{logger: logger}
}

// Write implements port.ExportWriter
func (a *ArchiveWriter) Write(w io.Writer, data port.ExportData) error {
	tables := []Table{
		ReportsTable(data.Reports),
		ExpensesTable(data.Reports),
		ReceiptsTable(data.Reports, data.Links),
	}

	manifest := Manifest{
		GeneratedAt: data.GeneratedAt.UTC(),
		Employees:   data.Employees,
	}
	if !data.Start.IsZero() {
		start := data.Start.UTC()
		manifest.Start = &start
	}
	if !data.End.IsZero() {
		end := data.End.UTC()
		manifest.End = &end
	}
	return a.WriteTables(w, tables, manifest)
}

// WriteTables streams the archive to w. Tables become <name>.csv entries and
// sheets of export.xlsx; manifest.json is written last.
func (a *ArchiveWriter) WriteTables(w io.Writer, tables []Table, manifest Manifest) error {
	zw := zip.NewWriter(w)

	manifest.Counts = make(map[string]int, len(tables))
	for _, t := range tables {
		name := t.Name + ".csv"
		if err := writeCSV(zw, name, t); err != nil {
			return err
		}
		manifest.Files = append(manifest.Files, name)
		manifest.Counts[t.Name] = len(t.Rows)
	}

	if err := a.writeWorkbook(zw, tables); err != nil {
		return err
	}
	manifest.Files = append(manifest.Files, WorkbookName)

	entry, err := zw.Create("manifest.json")
	if err != nil {
		return fmt.Errorf("failed to add manifest: %w", err)
	}
	enc := json.NewEncoder(entry)
	enc.SetIndent("", "  ")
	if err := enc.Encode(manifest); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}

	a.logger.Info("Export archive written",
		zap.Int("files", len(manifest.Files)+1),
		zap.Any("counts", manifest.Counts))
	return nil
}

func writeCSV(zw *zip.Writer, name string, t Table) error {
	entry, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}

	cw := csv.NewWriter(entry)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", name, err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to write %s rows: %w", name, err)
	}
	return nil
}

func (a *ArchiveWriter) writeWorkbook(zw *zip.Writer, tables []Table) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			a.logger.Warn("Failed to close workbook", zap.Error(err))
		}
	}()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	defaultSheet := f.GetSheetName(0)
	for _, t := range tables {
		if _, err := f.NewSheet(t.Name); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", t.Name, err)
		}
		if err := fillSheet(f, t, headerStyle); err != nil {
			return err
		}
	}
	if len(tables) > 0 {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return fmt.Errorf("failed to drop default sheet: %w", err)
		}
		f.SetActiveSheet(0)
	}

	entry, err := zw.Create(WorkbookName)
	if err != nil {
		return fmt.Errorf("failed to add workbook: %w", err)
	}
	if err := f.Write(entry); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func fillSheet(f *excelize.File, t Table, headerStyle int) error {
	if err := f.SetSheetRow(t.Name, "A1", &t.Header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", t.Name, err)
	}

	last, err := excelize.CoordinatesToCellName(len(t.Header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(t.Name, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", t.Name, err)
	}

	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(t.Name, cell, &values); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", t.Name, i+1, err)
		}
	}
	return nil
}

var _ port.ExportWriter = (*ArchiveWriter)(nil)
