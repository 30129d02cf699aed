package service

import (
	"context"
	"fmt"
	"io"

	"github.com/lib/pq"

	"github.com/campusops/routine-api/internal/csvio"
	"github.com/campusops/routine-api/internal/dto"
	"github.com/campusops/routine-api/internal/engine"
	"github.com/campusops/routine-api/internal/models"
	appErrors "github.com/campusops/routine-api/pkg/errors"
)

// ImportComponents bulk-loads class components from a catalog CSV. Missing
// semesters are created on the fly; rows that fail validation are skipped
// and reported.
func (s *CatalogService) ImportComponents(ctx context.Context, reader io.Reader, delim rune) (*dto.ImportSummary, error) {
	records, problems, err := csvio.ParseComponents(reader, delim)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to parse catalog csv")
	}

	summary := &dto.ImportSummary{Skipped: problems}
	semesterIDs := make(map[string]string)

	for i, record := range records {
		classType := record.ClassType
		if classType != string(engine.ClassTypeTheory) && classType != string(engine.ClassTypeLab) {
			summary.Skipped = append(summary.Skipped, fmt.Sprintf("%s %s: unknown class_type %q", record.Semester, record.CourseCode, record.ClassType))
			continue
		}
		var requirementRoom *string
		if record.RequirementRoom != "" {
			requirementRoom = &records[i].RequirementRoom
		}
		if err := validateRequirement(classType, record.RequirementKind, requirementRoom); err != nil {
			summary.Skipped = append(summary.Skipped, fmt.Sprintf("%s %s: %v", record.Semester, record.CourseCode, err))
			continue
		}

		semesterID, ok := semesterIDs[record.Semester]
		if !ok {
			semesterID, err = s.ensureSemester(ctx, record.Semester, summary)
			if err != nil {
				return nil, err
			}
			semesterIDs[record.Semester] = semesterID
		}

		component := &models.ClassComponent{
			SemesterID:      semesterID,
			SemesterName:    record.Semester,
			CourseCode:      record.CourseCode,
			Title:           record.Title,
			Sections:        pq.StringArray(record.SectionList()),
			ClassType:       classType,
			SessionsPerWeek: record.SessionsPerWeek,
			DurationMinutes: record.DurationMinutes,
			RequirementKind: record.RequirementKind,
			RequirementRoom: requirementRoom,
		}
		if err := s.components.Create(ctx, component); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create imported component")
		}
		summary.ComponentsCreated++
	}

	if summary.ComponentsCreated > 0 || summary.SemestersCreated > 0 {
		s.invalidate(ctx)
	}
	return summary, nil
}

func (s *CatalogService) ensureSemester(ctx context.Context, name string, summary *dto.ImportSummary) (string, error) {
	semesters, err := s.semesters.List(ctx)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list semesters")
	}
	for _, semester := range semesters {
		if semester.Name == name {
			return semester.ID, nil
		}
	}

	semester := &models.Semester{Name: name}
	if err := s.semesters.Create(ctx, semester); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create semester")
	}
	summary.SemestersCreated++
	return semester.ID, nil
}
