package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/adaeze-umeh/traffic-analyzer/internal/repository"
)

// Service is a tiny façade over the job repository that produces XLSX bytes
// for an owner's job history.
type Service struct {
	jobs   repository.JobRepository
	logger *slog.Logger
}

func NewService(jobs repository.JobRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, logger: logger}
}

// ExportJobsXLSX returns an XLSX workbook (as bytes) with one row per job,
// newest first. Result payloads stay out; the summary counters are enough for
// a report.
func (s *Service) ExportJobsXLSX(ctx context.Context, owner string) ([]byte, error) {
	start := time.Now()

	rows, err := s.jobs.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Jobs"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Submitted",
		"Source File",
		"Status",
		"Anomalies",
		"Total Rows",
		"Error",
		"Completed",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, j := range rows {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, j.CreatedAt.UTC().Format(time.RFC3339))
		write(2, j.SourceName)
		write(3, j.Status)

		if len(j.Summary) > 0 {
			var sum struct {
				Anomalies *int `json:"anomalies"`
				TotalRows *int `json:"total_rows"`
			}
			if err := json.Unmarshal(j.Summary, &sum); err == nil {
				if sum.Anomalies != nil {
					write(4, *sum.Anomalies)
				}
				if sum.TotalRows != nil {
					write(5, *sum.TotalRows)
				}
			}
		}

		if j.ErrorMessage != nil {
			write(6, truncate(*j.ErrorMessage, 140))
		}
		if j.CompletedAt != nil {
			write(7, j.CompletedAt.UTC().Format(time.RFC3339))
		}

		row++
	}

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "A", 22) // submitted
	_ = f.SetColWidth(sheet, "B", "B", 32) // source
	_ = f.SetColWidth(sheet, "C", "C", 10) // status
	_ = f.SetColWidth(sheet, "D", "E", 12) // counters
	_ = f.SetColWidth(sheet, "F", "F", 48) // error
	_ = f.SetColWidth(sheet, "G", "G", 22) // completed

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"owner", owner,
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	// back up to a rune boundary so the cut never splits a character
	cut := n - 1
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
