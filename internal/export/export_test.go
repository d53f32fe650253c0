package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"dentaldesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func openWorkbook(t *testing.T, w *ExcelWriter) *excelize.File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, w.Save(&buf))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestAppointments(t *testing.T) {
	w := NewExcelWriter()
	defer w.Close()

	created := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	appts := []models.Appointment{
		{ID: "a1", Date: "2024-01-02", Time: "09:00", Status: models.StatusScheduled, PatientName: "Ana", PatientPhone: "555", CreatedAt: created},
		{ID: "a2", Date: "2024-01-02", Time: "09:30", Status: models.StatusCanceled, Notes: "moved", CreatedAt: created},
	}
	require.NoError(t, Appointments(w, appts))

	f := openWorkbook(t, w)
	assert.Equal(t, []string{AppointmentsSheet}, f.GetSheetList())

	rows, err := f.GetRows(AppointmentsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, appointmentColumns, rows[0])
	assert.Equal(t, []string{"a1", "2024-01-02", "09:00", "scheduled", "Ana", "555", "", "2024-01-01T08:00:00Z"}, rows[1])
	assert.Equal(t, "moved", rows[2][6])
}

func TestAppointments_Empty(t *testing.T) {
	w := NewExcelWriter()
	defer w.Close()
	require.NoError(t, Appointments(w, nil))

	rows, err := openWorkbook(t, w).GetRows(AppointmentsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestExcelWriter_Errors(t *testing.T) {
	w := NewExcelWriter()
	defer w.Close()

	assert.Error(t, w.WriteRow([]any{"x"}), "no sheet yet")

	long := "a-very-long-sheet-name-that-exceeds-excel-limits"
	require.NoError(t, w.AddSheet(long))
	require.NoError(t, w.AddSheet("second"))

	f := openWorkbook(t, w)
	assert.Equal(t, []string{long[:31], "second"}, f.GetSheetList())
}

func TestAppointmentsFilename(t *testing.T) {
	name := AppointmentsFilename(models.Provider{ID: 4}, "2024-01-01", "2024-01-31")
	assert.Equal(t, "appointments_4_2024-01-01_2024-01-31.xlsx", name)
}

type fakeTables struct {
	data map[string][]map[string]any
	cols map[string][]string
	err  error
}

func (f *fakeTables) GetTableNames(context.Context) ([]string, error) {
	return []string{"providers", "appointments"}, nil
}

func (f *fakeTables) GetTableData(_ context.Context, table string) ([]map[string]any, []string, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.data[table], f.cols[table], nil
}

func TestTables(t *testing.T) {
	src := &fakeTables{
		data: map[string][]map[string]any{
			"providers":    {{"id": int64(1), "name": "Dr. Rivera", "created_at": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}},
			"appointments": {{"id": "a1", "notes": nil}},
		},
		cols: map[string][]string{
			"providers":    {"id", "name", "created_at"},
			"appointments": {"id", "notes"},
		},
	}

	w := NewExcelWriter()
	defer w.Close()
	require.NoError(t, Tables(context.Background(), src, w))

	f := openWorkbook(t, w)
	assert.Equal(t, []string{"providers", "appointments"}, f.GetSheetList())

	rows, err := f.GetRows("providers")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "Dr. Rivera", "2024-01-01T00:00:00Z"}, rows[1])

	src.err = errors.New("db down")
	w2 := NewExcelWriter()
	defer w2.Close()
	assert.ErrorContains(t, Tables(context.Background(), src, w2), "db down")
}
