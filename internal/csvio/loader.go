// Package csvio parses bulk catalog uploads.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
)

// ComponentRecord is one row of a catalog import file.
type ComponentRecord struct {
	Semester        string `csv:"semester"`
	CourseCode      string `csv:"course_code"`
	Title           string `csv:"title"`
	Sections        string `csv:"sections"`
	ClassType       string `csv:"class_type"`
	SessionsPerWeek int    `csv:"sessions_per_week"`
	DurationMinutes int    `csv:"duration_minutes"`
	RequirementKind string `csv:"requirement_kind"`
	RequirementRoom string `csv:"requirement_room"`
}

// SectionList splits the pipe-separated sections column.
func (r ComponentRecord) SectionList() []string {
	var sections []string
	for _, part := range strings.Split(r.Sections, "|") {
		part = strings.TrimSpace(part)
		if part != "" {
			sections = append(sections, part)
		}
	}
	return sections
}

// ParseComponents reads component rows from a catalog CSV. Rows that fail
// basic shape checks are reported by line, not fatal.
func ParseComponents(reader io.Reader, delim rune) ([]ComponentRecord, []string, error) {
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		r.Comma = delim
		r.TrimLeadingSpace = true
		return r
	})

	var records []ComponentRecord
	if err := gocsv.Unmarshal(reader, &records); err != nil {
		return nil, nil, fmt.Errorf("parse catalog csv: %w", err)
	}

	valid := make([]ComponentRecord, 0, len(records))
	var problems []string
	for i, record := range records {
		line := i + 2 // header occupies line 1
		switch {
		case strings.TrimSpace(record.Semester) == "":
			problems = append(problems, fmt.Sprintf("line %d: semester is required", line))
		case strings.TrimSpace(record.CourseCode) == "":
			problems = append(problems, fmt.Sprintf("line %d: course_code is required", line))
		case len(record.SectionList()) == 0:
			problems = append(problems, fmt.Sprintf("line %d: sections is required", line))
		case record.SessionsPerWeek < 1:
			problems = append(problems, fmt.Sprintf("line %d: sessions_per_week must be positive", line))
		case record.DurationMinutes < 1:
			problems = append(problems, fmt.Sprintf("line %d: duration_minutes must be positive", line))
		default:
			record.Semester = strings.TrimSpace(record.Semester)
			record.CourseCode = strings.ToUpper(strings.TrimSpace(record.CourseCode))
			record.ClassType = strings.ToUpper(strings.TrimSpace(record.ClassType))
			record.RequirementKind = strings.ToUpper(strings.TrimSpace(record.RequirementKind))
			record.RequirementRoom = strings.TrimSpace(record.RequirementRoom)
			valid = append(valid, record)
		}
	}
	return valid, problems, nil
}
