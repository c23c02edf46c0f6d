package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ayursutra/pkg/domain"
	"github.com/xuri/excelize/v2"
)

// ExportFormat selects the roster file type.
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportXLSX ExportFormat = "xlsx"
)

const exportSheet = "Patients"

var exportHeader = []string{"id", "name", "age", "date", "treatment", "status", "createdAt"}

var exportContentTypes = map[ExportFormat]string{
	ExportCSV:  "text/csv",
	ExportXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// ParseExportFormat maps a query value to a format; empty means CSV.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return ExportCSV, nil
	case ExportCSV, ExportXLSX:
		return f, nil
	default:
		return "", invalid("format", "must be csv or xlsx")
	}
}

// Export describes an uploaded patient roster.
type Export struct {
	Key    string       `json:"key"`
	URL    string       `json:"url"`
	Count  int          `json:"count"`
	Format ExportFormat `json:"format"`
}

// ExportPatients writes the patient list to object storage and returns a
// time-limited download link.
func (a *App) ExportPatients(ctx context.Context, format ExportFormat) (Export, error) {
	contentType, ok := exportContentTypes[format]
	if !ok {
		return Export{}, invalid("format", "must be csv or xlsx")
	}
	if a.objects == nil {
		return Export{}, ErrExportUnavailable
	}
	patients, err := a.ListPatients(ctx)
	if err != nil {
		return Export{}, err
	}
	var data []byte
	switch format {
	case ExportXLSX:
		data, err = a.encodeXLSX(patients)
	default:
		data, err = a.encodeCSV(patients)
	}
	if err != nil {
		return Export{}, fmt.Errorf("encode export: %w", err)
	}
	key := "exports/patients-" + a.now().UTC().Format("20060102T150405Z") + "." + string(format)
	if err := a.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return Export{}, fmt.Errorf("upload export: %w", err)
	}
	url, err := a.objects.PresignGet(ctx, key, a.presignExpiry)
	if err != nil {
		return Export{}, fmt.Errorf("presign export: %w", err)
	}
	return Export{Key: key, URL: url, Count: len(patients), Format: format}, nil
}

func (a *App) exportRow(p domain.Patient) []string {
	return []string{
		p.ID,
		p.Name,
		strconv.Itoa(p.Age),
		p.Date.In(a.loc).Format(time.RFC3339),
		p.Treatment,
		p.Status,
		p.CreatedAt.In(a.loc).Format(time.RFC3339),
	}
}

func (a *App) encodeCSV(patients []domain.Patient) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(exportHeader)
	for _, p := range patients {
		_ = w.Write(a.exportRow(p))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (a *App) encodeXLSX(patients []domain.Patient) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return nil, err
	}
	if err := setRow(f, 1, exportHeader); err != nil {
		return nil, err
	}
	for i, p := range patients {
		row := a.exportRow(p)
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		// Age stays numeric so the sheet can sort and sum it.
		cells[2] = p.Age
		if err := setRow(f, i+2, cells); err != nil {
			return nil, err
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setRow[T any](f *excelize.File, row int, values []T) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(exportSheet, cell, &values)
}
