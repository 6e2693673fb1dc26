package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"phenotab/internal/errors"
	"phenotab/models"
	"phenotab/ports"
)

// Mock implementations for testing
type MockRunArchive struct {
	mock.Mock
}

func (m *MockRunArchive) CreateRun(ctx context.Context, run *models.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunArchive) CompleteRun(ctx context.Context, run *models.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunArchive) SaveSheetReport(ctx context.Context, report *models.SheetReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockRunArchive) SaveDiagnostics(ctx context.Context, records []models.DiagnosticRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockRunArchive) GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Run), args.Error(1)
}

func (m *MockRunArchive) ListRuns(ctx context.Context, limit, offset int) ([]models.Run, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Run), args.Error(1)
}

func (m *MockRunArchive) ListSheetReports(ctx context.Context, runID uuid.UUID) ([]models.SheetReport, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SheetReport), args.Error(1)
}

func (m *MockRunArchive) ListDiagnostics(ctx context.Context, runID uuid.UUID, filters ports.DiagnosticFilters) ([]models.DiagnosticRecord, error) {
	args := m.Called(ctx, runID, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DiagnosticRecord), args.Error(1)
}

func serveRequest(archive ports.RunArchive, method, target string) *httptest.ResponseRecorder {
	server := NewServer(archive, "8080")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	server.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	archive := new(MockRunArchive)

	rec := serveRequest(archive, http.MethodGet, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestListRuns(t *testing.T) {
	archive := new(MockRunArchive)
	runs := []models.Run{
		{ID: uuid.New(), Dataset: "Flinders_dataset_batch_2", Status: models.RunClean},
		{ID: uuid.New(), Dataset: "Flinders_dataset_batch_2", Status: models.RunFlagged},
	}
	archive.On("ListRuns", mock.Anything, 50, 0).Return(runs, nil)

	rec := serveRequest(archive, http.MethodGet, "/api/runs")

	assert.Equal(t, http.StatusOK, rec.Code)

	var got []models.Run
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)
	assert.Equal(t, runs[0].ID, got[0].ID)
	archive.AssertExpectations(t)
}

func TestListRunsPagination(t *testing.T) {
	archive := new(MockRunArchive)
	archive.On("ListRuns", mock.Anything, 10, 20).Return([]models.Run{}, nil)

	rec := serveRequest(archive, http.MethodGet, "/api/runs?limit=10&offset=20")

	assert.Equal(t, http.StatusOK, rec.Code)
	archive.AssertExpectations(t)
}

func TestGetRun(t *testing.T) {
	archive := new(MockRunArchive)
	run := models.NewRun("Flinders_dataset_batch_2", "flinders.xlsx")
	run.Status = models.RunFlagged
	run.DiagnosticCount = 3

	reports := []models.SheetReport{
		{
			ID:       uuid.New(),
			RunID:    run.ID,
			Sheet:    "Glaucoma",
			RowCount: 412,
			Profiles: models.ColumnProfiles{
				{Column: "Highest IOP_RE", Count: 398, Missing: 14, Mean: 21.4},
			},
			CreatedAt: time.Now(),
		},
	}

	archive.On("GetRun", mock.Anything, run.ID).Return(run, nil)
	archive.On("ListSheetReports", mock.Anything, run.ID).Return(reports, nil)

	rec := serveRequest(archive, http.MethodGet, "/api/runs/"+run.ID.String())

	assert.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		models.Run
		Sheets []models.SheetReport `json:"sheets"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, models.RunFlagged, got.Status)
	assert.Len(t, got.Sheets, 1)
	assert.Equal(t, "Glaucoma", got.Sheets[0].Sheet)
	assert.Equal(t, "Highest IOP_RE", got.Sheets[0].Profiles[0].Column)
	archive.AssertExpectations(t)
}

func TestGetRunNotFound(t *testing.T) {
	archive := new(MockRunArchive)
	id := uuid.New()
	archive.On("GetRun", mock.Anything, id).Return(nil, errors.NotFound("run"))

	rec := serveRequest(archive, http.MethodGet, "/api/runs/"+id.String())

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRunRejectsBadID(t *testing.T) {
	archive := new(MockRunArchive)

	rec := serveRequest(archive, http.MethodGet, "/api/runs/not-a-uuid")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListDiagnosticsForwardsFilters(t *testing.T) {
	archive := new(MockRunArchive)
	id := uuid.New()
	records := []models.DiagnosticRecord{
		{ID: 1, RunID: id, Sheet: "Glaucoma", RowNum: 7, ColumnName: "NTG HTG", Kind: "invalid_categorical", CellValue: "7"},
	}

	want := ports.DiagnosticFilters{Sheet: "Glaucoma", Kind: "invalid_categorical", Limit: 10}
	archive.On("ListDiagnostics", mock.Anything, id, want).Return(records, nil)

	rec := serveRequest(archive, http.MethodGet,
		"/api/runs/"+id.String()+"/diagnostics?sheet=Glaucoma&kind=invalid_categorical&limit=10")

	assert.Equal(t, http.StatusOK, rec.Code)

	var got []models.DiagnosticRecord
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 1)
	assert.Equal(t, "NTG HTG", got[0].ColumnName)
	archive.AssertExpectations(t)
}
