package report

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/service/cases"
)

const (
	sheetName  = "Cases"
	exportPage = 200
	// maxExportRows bounds a single export.
	maxExportRows = 10000
)

var caseHeaders = []string{
	"Case ID", "Patient ID", "Status", "Technician", "Scientist", "Doctor",
	"Priority", "Current User", "Created", "Updated",
}

var columnWidths = []float64{10, 12, 14, 14, 14, 14, 10, 14, 22, 22}

// CaseLister is the case listing the export pages through.
type CaseLister interface {
	List(ctx context.Context, tenant *model.Tenant, user *model.User, filter model.CaseFilter) ([]*model.Case, error)
}

type Service struct {
	cases CaseLister
	now   func() time.Time
}

func NewService(lister CaseLister) *Service {
	return &Service{cases: lister, now: time.Now}
}

// ExportCases renders the cases user can see as an .xlsx workbook and
// returns it with a suggested file name.
func (s *Service) ExportCases(ctx context.Context, tenant *model.Tenant, user *model.User, filter model.CaseFilter) ([]byte, string, error) {
	if err := cases.Authorize(tenant, user, model.ActionExport); err != nil {
		return nil, "", err
	}

	var rows []*model.Case
	filter.PageSize = exportPage
	for page := 1; len(rows) < maxExportRows; page++ {
		filter.Page = page
		batch, err := s.cases.List(ctx, tenant, user, filter)
		if err != nil {
			return nil, "", err
		}
		rows = append(rows, batch...)
		if len(batch) < exportPage {
			break
		}
	}
	if len(rows) > maxExportRows {
		rows = rows[:maxExportRows]
	}

	data, err := renderCases(rows)
	if err != nil {
		return nil, "", err
	}
	name := fmt.Sprintf("cases-%s-%s.xlsx", tenant.Subdomain, s.now().UTC().Format("20060102-150405"))
	return data, name, nil
}

func renderCases(rows []*model.Case) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range caseHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheetName, name, name, columnWidths[col]); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, c := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		values := []interface{}{
			c.ID,
			c.PatientID,
			string(c.Status),
			string(c.TechnicianStatus),
			string(c.ScientistStatus),
			string(c.DoctorStatus),
			c.Priority,
			c.CurrentUserID,
			c.CreatedAt.UTC().Format(time.RFC3339),
			c.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
