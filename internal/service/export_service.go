package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/campusops/routine-api/internal/models"
	appErrors "github.com/campusops/routine-api/pkg/errors"
	"github.com/campusops/routine-api/pkg/export"
)

// ExportFormat selects the rendered output type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type routineReader interface {
	Get(ctx context.Context, id string) (*models.Routine, error)
	Rows(ctx context.Context, id string, filter models.RoutineRowFilter) ([]models.RoutineRow, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportResult carries rendered bytes with download metadata.
type ExportResult struct {
	Payload     []byte
	Filename    string
	ContentType string
}

// ExportService renders saved routines into downloadable files.
type ExportService struct {
	routines routineReader
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(routines routineReader, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{routines: routines, csv: csv, pdf: pdf, logger: logger}
}

var exportHeaders = []string{"Semester", "Section", "Day", "Time", "Course", "Title", "Room", "Type"}

// Export renders the routine's rows in the requested format.
func (s *ExportService) Export(ctx context.Context, routineID string, format ExportFormat) (*ExportResult, error) {
	routine, err := s.routines.Get(ctx, routineID)
	if err != nil {
		return nil, err
	}
	rows, err := s.routines.Rows(ctx, routineID, models.RoutineRowFilter{})
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{Headers: exportHeaders, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Semester": row.Semester,
			"Section":  row.Section,
			"Day":      row.Day,
			"Time":     row.TimeRange,
			"Course":   row.CourseCode,
			"Title":    row.Title,
			"Room":     row.Room,
			"Type":     row.ClassType,
		})
	}

	switch format {
	case ExportFormatCSV:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{
			Payload:     payload,
			Filename:    fmt.Sprintf("routine-v%d.csv", routine.Version),
			ContentType: "text/csv",
		}, nil
	case ExportFormatPDF:
		title := fmt.Sprintf("Class Routine v%d", routine.Version)
		payload, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{
			Payload:     payload,
			Filename:    fmt.Sprintf("routine-v%d.pdf", routine.Version),
			ContentType: "application/pdf",
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}
}
