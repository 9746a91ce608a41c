package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pravinheroku/bse-automation/internal/core/domain"
	"github.com/pravinheroku/bse-automation/internal/core/ports"
)

const sheetName = "Cycle"

// Writer drops an XLSX file per completed cycle so failed disclosures
// can be triaged by hand. An empty directory disables reporting.
type Writer struct {
	dir string
}

func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		return &Writer{}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	return &Writer{dir: dir}, nil
}

func (w *Writer) Enabled() bool {
	return w.dir != ""
}

// WriteCycleReport writes one row per terminal item and returns the
// file path.
func (w *Writer) WriteCycleReport(report ports.CycleReport, at time.Time) (string, error) {
	if !w.Enabled() {
		return "", nil
	}

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), sheetName)

	headers := []string{"ID", "Company", "Status", "Result", "Failure", "Message", "Source URL"}
	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return "", fmt.Errorf("write header: %w", err)
		}
	}

	for i, result := range report.Results {
		row := i + 2
		values := rowValues(result)
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return "", fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	path := filepath.Join(w.dir, fmt.Sprintf("cycle_%s.xlsx", at.Format("20060102_150405")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	return path, nil
}

func rowValues(result ports.ItemResult) []string {
	values := []string{result.ID, result.Company, string(result.Status), "", "", "", ""}
	if result.Payload == nil {
		return values
	}
	values[3] = string(result.Payload.Kind)
	if result.Payload.Kind == domain.KindError {
		values[4] = result.Payload.ErrorKind
		values[5] = result.Payload.Message
	}
	values[6] = result.Payload.SourceURL
	return values
}
