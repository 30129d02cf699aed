package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusops/routine-api/internal/models"
	"github.com/campusops/routine-api/internal/service"
)

type semesterStub struct {
	items map[string]models.Semester
}

func (s *semesterStub) List(ctx context.Context) ([]models.Semester, error) {
	var list []models.Semester
	for _, semester := range s.items {
		list = append(list, semester)
	}
	return list, nil
}

func (s *semesterStub) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	if semester, ok := s.items[id]; ok {
		return &semester, nil
	}
	return nil, sql.ErrNoRows
}

func (s *semesterStub) ExistsByName(ctx context.Context, name string) (bool, error) {
	for _, semester := range s.items {
		if semester.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *semesterStub) Create(ctx context.Context, semester *models.Semester) error {
	if semester.ID == "" {
		semester.ID = "sem-1"
	}
	s.items[semester.ID] = *semester
	return nil
}

func (s *semesterStub) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	delete(s.items, id)
	return nil
}

type roomStub struct{}

func (roomStub) List(ctx context.Context, kind string) ([]models.Room, error) { return nil, nil }
func (roomStub) FindByID(ctx context.Context, id string) (*models.Room, error) {
	return nil, sql.ErrNoRows
}
func (roomStub) ExistsByName(ctx context.Context, name string) (bool, error) { return false, nil }
func (roomStub) Create(ctx context.Context, room *models.Room) error         { return nil }
func (roomStub) Delete(ctx context.Context, id string) error                 { return nil }
func (roomStub) CountSpecificRequirements(ctx context.Context, name string) (int, error) {
	return 0, nil
}

type componentStub struct{}

func (componentStub) List(ctx context.Context, filter models.ComponentFilter) ([]models.ClassComponent, int, error) {
	return nil, 0, nil
}
func (componentStub) ListAll(ctx context.Context) ([]models.ClassComponent, error) { return nil, nil }
func (componentStub) FindByID(ctx context.Context, id string) (*models.ClassComponent, error) {
	return nil, sql.ErrNoRows
}
func (componentStub) Create(ctx context.Context, component *models.ClassComponent) error { return nil }
func (componentStub) Update(ctx context.Context, component *models.ClassComponent) error { return nil }
func (componentStub) Delete(ctx context.Context, id string) error                        { return nil }
func (componentStub) StripSection(ctx context.Context, exec sqlx.ExtContext, semesterID, section string) (int, error) {
	return 0, nil
}
func (componentStub) DeleteEmptySections(ctx context.Context, exec sqlx.ExtContext, semesterID string) (int, error) {
	return 0, nil
}
func (componentStub) DeleteBySemester(ctx context.Context, exec sqlx.ExtContext, semesterID string) (int, error) {
	return 0, nil
}

type settingsStub struct{}

func (settingsStub) GetCalendar(ctx context.Context) (*models.CalendarSettings, error) {
	return nil, sql.ErrNoRows
}
func (settingsStub) UpsertCalendar(ctx context.Context, settings *models.CalendarSettings) error {
	return nil
}

func newCatalogTestRouter(t *testing.T) (*gin.Engine, *semesterStub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	semesters := &semesterStub{items: make(map[string]models.Semester)}
	svc := service.NewCatalogService(semesters, roomStub{}, componentStub{}, settingsStub{}, nil, nil, nil, nil)
	h := NewCatalogHandler(svc)

	router := gin.New()
	group := router.Group("/api/v1")
	group.GET("/semesters", h.ListSemesters)
	group.POST("/semesters", h.CreateSemester)
	group.GET("/calendar", h.GetCalendar)
	group.POST("/components", h.CreateComponent)
	group.POST("/catalog/import", h.ImportCatalog)
	return router, semesters
}

func TestCatalogHandlerCreateAndListSemesters(t *testing.T) {
	router, _ := newCatalogTestRouter(t)

	body := bytes.NewBufferString(`{"name":"Fall 2025"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/semesters", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/semesters", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data []models.Semester `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "Fall 2025", envelope.Data[0].Name)
}

func TestCatalogHandlerDuplicateSemesterConflicts(t *testing.T) {
	router, semesters := newCatalogTestRouter(t)
	semesters.items["sem-1"] = models.Semester{ID: "sem-1", Name: "Fall 2025"}

	body := bytes.NewBufferString(`{"name":"Fall 2025"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/semesters", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCatalogHandlerCalendarFallsBackToDefault(t *testing.T) {
	router, _ := newCatalogTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/calendar", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data models.CalendarSettings `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 480, envelope.Data.StartMinute)
	assert.Equal(t, 1020, envelope.Data.EndMinute)
}

func TestCatalogHandlerCreateComponentRejectsBadRequirement(t *testing.T) {
	router, semesters := newCatalogTestRouter(t)
	semesters.items["00000000-0000-0000-0000-000000000001"] = models.Semester{
		ID: "00000000-0000-0000-0000-000000000001", Name: "Fall 2025",
	}

	body := bytes.NewBufferString(`{
		"semesterId": "00000000-0000-0000-0000-000000000001",
		"courseCode": "CSE101",
		"sections": ["A"],
		"classType": "THEORY",
		"sessionsPerWeek": 2,
		"durationMinutes": 50,
		"requirementKind": "ANY_LAB"
	}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/components", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCatalogHandlerImportRequiresFile(t *testing.T) {
	router, _ := newCatalogTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/import", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
