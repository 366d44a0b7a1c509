package ingest

import "fmt"

const studentPhoneDigits = 11

// buildStudentRecord validates one student row and, when clean, normalizes
// it into a StudentRecord. Validation aggregates every failure for the row
// instead of stopping at the first.
func buildStudentRecord(row RawRow, headers HeaderMap, rowIndex int) (StudentRecord, []string) {
	var errs []string

	for _, col := range studentColumns {
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
	if phoneRaw != "" && len(phone) != studentPhoneDigits {
		errs = append(errs, fmt.Sprintf("Phone number must contain exactly %d digits, got %q", studentPhoneDigits, phoneRaw))
	}

	dobRaw := headers.value(row, keyDateOfBirth)
	dob, dobOK := ParseDate(dobRaw)
	if dobRaw != "" && !dobOK {
		errs = append(errs, fmt.Sprintf("Invalid date of birth %q", dobRaw))
	}

	if len(errs) > 0 {
		return StudentRecord{}, errs
	}

	studentNo := headers.value(row, keyUserID)
	return StudentRecord{
		RowIndex:         rowIndex,
		StudentNo:        studentNo,
		FirstName:        headers.value(row, keyFirstName),
		LastName:         headers.value(row, keyLastName),
		Email:            email,
		Phone:            phone,
		SchoolYear:       headers.value(row, keySchoolYear),
		Semester:         NormalizeSemester(headers.value(row, keySemester)),
		Department:       headers.value(row, keyDepartment),
		Course:           headers.value(row, keyCourse),
		Section:          headers.value(row, keySection),
		YearLevel:        headers.value(row, keyYearLevel),
		DateOfBirth:      dob,
		Address:          headers.value(row, keyAddress),
		GuardianName:     headers.value(row, keyGuardianName),
		GuardianPhone:    headers.value(row, keyGuardianPhone),
		EmergencyContact: headers.value(row, keyEmergency),
		Password:         GeneratePassword(headers.value(row, keyFirstName), studentNo),
	}, nil
}
