package ingest

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	instructorPhoneMinDigits = 10
	instructorPhoneMaxDigits = 12
)

// instructorRow is one validated and normalized source row before grouping.
type instructorRow struct {
	groupKey string
	record   InstructorRecord
	subject  SubjectRecord
}

// buildInstructorRow validates one instructor row and, when clean,
// normalizes it into instructor-level fields plus one subject entry.
// The phone rule is a 10 to 12 digit range, looser than the student
// pipeline's exact length, to tolerate country-code variants.
func buildInstructorRow(row RawRow, headers HeaderMap, rowIndex int) (instructorRow, []string) {
	var errs []string

	for _, col := range instructorColumns {
		if col.required && headers.value(row, col.key) == "" {
			errs = append(errs, col.label+" is required")
		}
	}

	email := headers.value(row, keyEmail)
	if email != "" && !validEmail(email) {
		errs = append(errs, fmt.Sprintf("Invalid email address %q", email))
	}

	phoneRaw := headers.value(row, keyPhone)
	phone := digitsOnly(phoneRaw)
	if phoneRaw != "" && (len(phone) < instructorPhoneMinDigits || len(phone) > instructorPhoneMaxDigits) {
		errs = append(errs, fmt.Sprintf("Phone number must contain %d to %d digits, got %q",
			instructorPhoneMinDigits, instructorPhoneMaxDigits, phoneRaw))
	}

	daysRaw := headers.value(row, keyWeeklyDays)
	days := ParseWeekdays(daysRaw)
	if daysRaw != "" && len(days) == 0 {
		errs = append(errs, fmt.Sprintf("No recognized weekdays in %q, use full names (Monday) or three-letter abbreviations (Mon)", daysRaw))
	}

	startRaw := headers.value(row, keyStartTime)
	start, startOK := ParseTimeOfDay(startRaw)
	if startRaw != "" && !startOK {
		errs = append(errs, fmt.Sprintf("Invalid start time %q, accepted formats: 7:00 AM, 07:00, or a spreadsheet time cell", startRaw))
	}

	endRaw := headers.value(row, keyEndTime)
	end, endOK := ParseTimeOfDay(endRaw)
	if endRaw != "" && !endOK {
		errs = append(errs, fmt.Sprintf("Invalid end time %q, accepted formats: 7:00 AM, 07:00, or a spreadsheet time cell", endRaw))
	}

	if startOK && endOK {
		if _, ok := DurationMinutes(start, end); !ok {
			errs = append(errs, fmt.Sprintf("End time %s must be later than start time %s", end, start))
		}
	}

	if len(errs) > 0 {
		return instructorRow{}, errs
	}

	instructorNo := headers.value(row, keyUserID)
	firstName := headers.value(row, keyFirstName)

	password := headers.value(row, keyPassword)
	if password == "" {
		password = GeneratePassword(firstName, instructorNo)
	}

	record := InstructorRecord{
		RowIndex:       rowIndex,
		InstructorNo:   instructorNo,
		FirstName:      firstName,
		LastName:       headers.value(row, keyLastName),
		Email:          email,
		Phone:          phone,
		SchoolYear:     headers.value(row, keySchoolYear),
		Semester:       NormalizeSemester(headers.value(row, keySemester)),
		Department:     headers.value(row, keyDepartment),
		Course:         headers.value(row, keyCourse),
		Experience:     headers.value(row, keyExperience),
		Specialization: headers.value(row, keySpecialization),
		Password:       password,
	}

	subject := SubjectRecord{
		Name:        headers.value(row, keySubjectName),
		Code:        headers.value(row, keySubjectCode),
		Sections:    splitList(headers.value(row, keySection)),
		Room:        headers.value(row, keyRoom),
		MeetingLink: headers.value(row, keyMeetingLink),
		Description: headers.value(row, keyDescription),
	}
	if units, err := strconv.Atoi(headers.value(row, keyUnits)); err == nil && units > 0 {
		subject.Units = units
	}
	if len(days) > 0 && startOK && endOK {
		subject.Schedule = &ScheduleRecord{Days: days, StartTime: start, EndTime: end}
	}

	key := strings.ToLower(email)
	if key == "" {
		key = strings.ToLower(instructorNo)
	}

	return instructorRow{groupKey: key, record: record, subject: subject}, nil
}

// groupInstructors collapses rows sharing an identity key into a single
// instructor record. The first row of a group supplies the instructor-level
// fields; every row contributes one subject entry, duplicates included.
// Group order follows first occurrence in the sheet.
func groupInstructors(rows []instructorRow) []InstructorRecord {
	index := make(map[string]int, len(rows))
	records := make([]InstructorRecord, 0, len(rows))

	for _, r := range rows {
		if pos, ok := index[r.groupKey]; ok {
			records[pos].Subjects = append(records[pos].Subjects, r.subject)
			continue
		}
		record := r.record
		record.Subjects = []SubjectRecord{r.subject}
		index[r.groupKey] = len(records)
		records = append(records, record)
	}
	return records
}
