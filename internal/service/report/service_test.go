package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/service/cases"
)

type pagedLister struct {
	total int
	pages []int
}

func (p *pagedLister) List(_ context.Context, _ *model.Tenant, _ *model.User, filter model.CaseFilter) ([]*model.Case, error) {
	p.pages = append(p.pages, filter.Page)
	var out []*model.Case
	for i := filter.Offset(); i < p.total && len(out) < filter.Limit(); i++ {
		out = append(out, &model.Case{
			Base:       model.Base{ID: int64(i + 1)},
			PatientID:  int64(1000 + i),
			Status:     model.CaseStatusAssigned,
			Priority:   model.PriorityMedium,
			HospitalID: 1,
		})
	}
	return out, nil
}

var (
	hospital1  = &model.Tenant{Base: model.Base{ID: 1}, Subdomain: "hospital1", Status: model.TenantStatusActive}
	technician = &model.User{Base: model.Base{ID: 10}, RoleType: model.RoleTechnician, HospitalID: 1, Status: model.UserStatusActive}
	nurse      = &model.User{Base: model.Base{ID: 14}, RoleType: model.RoleNurse, HospitalID: 1, Status: model.UserStatusActive}
)

func TestExportCases(t *testing.T) {
	lister := &pagedLister{total: 250}
	svc := NewService(lister)
	svc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	data, name, err := svc.ExportCases(context.Background(), hospital1, technician, model.CaseFilter{})
	require.NoError(t, err)
	assert.Equal(t, "cases-hospital1-20260102-030405.xlsx", name)
	assert.Equal(t, []int{1, 2}, lister.pages)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 251)
	assert.Equal(t, caseHeaders, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "1000", rows[1][1])
	assert.Equal(t, "assigned", rows[1][2])
}

func TestExportCases_RoleWithoutExport(t *testing.T) {
	svc := NewService(&pagedLister{})
	_, _, err := svc.ExportCases(context.Background(), hospital1, nurse, model.CaseFilter{})
	assert.ErrorIs(t, err, cases.ErrActionForbidden)
}
