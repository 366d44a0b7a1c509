// Package ingest implements the bulk onboarding pipelines for student and
// instructor spreadsheets. A file is read fully into memory, its column
// headers are resolved against a synonym table, and each data row is then
// validated and normalized independently. Rows that fail validation are
// reported per row and never abort the file; only an unreadable file or a
// header row with required columns missing does.
package ingest

// RowError reports validation failures for one zero-based data row.
type RowError struct {
	RowIndex int      `json:"rowIndex"`
	Errors   []string `json:"errors"`
}

// StudentResult pairs accepted student records with per-row failures.
// Records and RowErrors are both populated on partial success; an empty
// Records slice with a non-empty RowErrors slice is a valid outcome.
type StudentResult struct {
	Records   []StudentRecord `json:"validRecords"`
	RowErrors []RowError      `json:"rowErrors"`
}

// InstructorResult pairs grouped instructor records with per-row failures.
type InstructorResult struct {
	Records   []InstructorRecord `json:"validRecords"`
	RowErrors []RowError         `json:"rowErrors"`
}

// ParseStudentFile reads a .csv or .xlsx file and runs the student pipeline.
func ParseStudentFile(filename string, data []byte) (*StudentResult, error) {
	sheet, err := ReadSheet(filename, data)
	if err != nil {
		return nil, err
	}
	return ParseStudentSheet(sheet)
}

// ParseStudentSheet validates and normalizes every row of an already read
// sheet into student records.
func ParseStudentSheet(sheet *Sheet) (*StudentResult, error) {
	headers, err := ResolveHeaders(sheet, studentColumns)
	if err != nil {
		return nil, err
	}

	result := &StudentResult{
		Records:   []StudentRecord{},
		RowErrors: []RowError{},
	}
	for i, row := range sheet.Rows {
		record, errs := buildStudentRecord(row, headers, i)
		if len(errs) > 0 {
			result.RowErrors = append(result.RowErrors, RowError{RowIndex: i, Errors: errs})
			continue
		}
		result.Records = append(result.Records, record)
	}
	return result, nil
}

// ParseInstructorFile reads a .csv or .xlsx file and runs the instructor
// pipeline, including the subject grouping step.
func ParseInstructorFile(filename string, data []byte) (*InstructorResult, error) {
	sheet, err := ReadSheet(filename, data)
	if err != nil {
		return nil, err
	}
	return ParseInstructorSheet(sheet)
}

// ParseInstructorSheet validates and normalizes every row of an already read
// sheet, then collapses rows sharing an identity key into one instructor
// record carrying one subject entry per source row.
func ParseInstructorSheet(sheet *Sheet) (*InstructorResult, error) {
	headers, err := ResolveHeaders(sheet, instructorColumns)
	if err != nil {
		return nil, err
	}

	result := &InstructorResult{
		Records:   []InstructorRecord{},
		RowErrors: []RowError{},
	}
	rows := make([]instructorRow, 0, len(sheet.Rows))
	for i, row := range sheet.Rows {
		parsed, errs := buildInstructorRow(row, headers, i)
		if len(errs) > 0 {
			result.RowErrors = append(result.RowErrors, RowError{RowIndex: i, Errors: errs})
			continue
		}
		rows = append(rows, parsed)
	}
	result.Records = groupInstructors(rows)
	return result, nil
}
