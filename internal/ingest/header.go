package ingest

import (
	"strings"
	"unicode"

	appErrors "github.com/neattend/neattend-api/pkg/errors"
)

// Canonical field keys shared by both pipelines.
const (
	keyFirstName   = "firstname"
	keyLastName    = "lastname"
	keyEmail       = "emailaddress"
	keyUserID      = "userid"
	keyPhone       = "phonenumber"
	keySchoolYear  = "schoolyear"
	keySemester    = "semester"
	keyDepartment  = "department"
	keyCourse      = "course"
	keySection     = "section"
	keyYearLevel   = "yearlevel"
	keyDateOfBirth = "dateofbirth"

	keyAddress       = "address"
	keyGuardianName  = "guardianname"
	keyGuardianPhone = "guardianphone"
	keyEmergency     = "emergencycontact"

	keySubjectName    = "subjectname"
	keySubjectCode    = "subjectcode"
	keyWeeklyDays     = "weeklydays"
	keyStartTime      = "starttime"
	keyEndTime        = "endtime"
	keyRoom           = "room"
	keyMeetingLink    = "meetinglink"
	keyDescription    = "description"
	keyUnits          = "units"
	keyExperience     = "experience"
	keySpecialization = "specialization"
	keyPassword       = "password"
)

// column describes one canonical field: the accepted header spellings after
// key normalization, the label used in error messages, and whether every row
// must carry a non-blank value.
type column struct {
	key      string
	label    string
	variants []string
	required bool
}

var studentColumns = []column{
	{keyFirstName, "First Name", []string{"firstname", "fname", "givenname"}, true},
	{keyLastName, "Last Name", []string{"lastname", "lname", "surname", "familyname"}, true},
	{keyEmail, "Email Address", []string{"emailaddress", "email"}, true},
	{keyUserID, "User ID", []string{"userid", "studentid", "studentno", "studentnumber", "idnumber", "id"}, true},
	{keyPhone, "Phone Number", []string{"phonenumber", "phone", "phoneno", "contactnumber", "mobilenumber"}, true},
	{keySchoolYear, "School Year", []string{"schoolyear", "academicyear", "sy"}, true},
	{keySemester, "Semester", []string{"semester", "sem", "term"}, true},
	{keyDepartment, "Department", []string{"department", "dept"}, true},
	{keyCourse, "Course", []string{"course", "program", "degree"}, true},
	{keySection, "Section", []string{"section", "sections"}, true},
	{keyYearLevel, "Year Level", []string{"yearlevel", "year", "level"}, true},
	{keyDateOfBirth, "Date of Birth", []string{"dateofbirth", "birthdate", "dob", "birthday"}, true},
	{keyAddress, "Address", []string{"address", "homeaddress"}, false},
	{keyGuardianName, "Guardian Name", []string{"guardianname", "guardian", "parentname"}, false},
	{keyGuardianPhone, "Guardian Phone", []string{"guardianphone", "guardiancontact", "parentphone"}, false},
	{keyEmergency, "Emergency Contact", []string{"emergencycontact", "emergencyno", "emergencyphone"}, false},
}

var instructorColumns = []column{
	{keyFirstName, "First Name", []string{"firstname", "fname", "givenname"}, true},
	{keyLastName, "Last Name", []string{"lastname", "lname", "surname", "familyname"}, true},
	{keyEmail, "Email Address", []string{"emailaddress", "email"}, true},
	{keyUserID, "User ID", []string{"userid", "instructorid", "employeeid", "facultyid", "idnumber", "id"}, true},
	{keyPhone, "Phone Number", []string{"phonenumber", "phone", "phoneno", "contactnumber", "mobilenumber"}, true},
	{keySchoolYear, "School Year", []string{"schoolyear", "academicyear", "sy"}, true},
	{keySemester, "Semester", []string{"semester", "sem", "term"}, true},
	{keyDepartment, "Department", []string{"department", "dept"}, true},
	{keyCourse, "Course", []string{"course", "program", "degree"}, false},
	{keySubjectName, "Subject Name", []string{"subjectname", "subject", "subjecttitle"}, true},
	{keySubjectCode, "Subject Code", []string{"subjectcode", "code", "coursecode"}, true},
	{keyWeeklyDays, "Weekly Days", []string{"weeklydays", "days", "meetingdays", "dayofweek", "daysofweek"}, true},
	{keyStartTime, "Start Time", []string{"starttime", "timestart", "start"}, true},
	{keyEndTime, "End Time", []string{"endtime", "timeend", "end"}, true},
	{keySection, "Section", []string{"section", "sections"}, false},
	{keyRoom, "Room", []string{"room", "roomno", "roomnumber"}, false},
	{keyMeetingLink, "Meeting Link", []string{"meetinglink", "link", "onlinelink"}, false},
	{keyDescription, "Description", []string{"description", "subjectdescription"}, false},
	{keyUnits, "Units", []string{"units", "credits", "creditunits"}, false},
	{keyExperience, "Experience", []string{"experience", "yearsofexperience"}, false},
	{keySpecialization, "Specialization", []string{"specialization", "specialty", "expertise"}, false},
	{keyPassword, "Password", []string{"password", "temporarypassword"}, false},
}

// NormalizeKey canonicalizes a column header: trimmed, lowercased, with all
// internal whitespace, underscores, and hyphens removed. "User ID",
// "user_id", and "USERID" all normalize to "userid".
func NormalizeKey(header string) string {
	var b strings.Builder
	b.Grow(len(header))
	for _, r := range header {
		if unicode.IsSpace(r) || r == '_' || r == '-' || r == '\uFEFF' {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// HeaderMap maps each resolved canonical key to the normalized source header
// it was matched against. It is built once per file; field access on every
// row goes through this map instead of re-normalizing header spellings.
type HeaderMap map[string]string

// value returns the trimmed cell value for a canonical key, or "" when the
// key resolved to no column.
func (m HeaderMap) value(row RawRow, key string) string {
	src, ok := m[key]
	if !ok {
		return ""
	}
	return strings.TrimSpace(row[src])
}

// has reports whether the canonical key resolved to a column in this file.
func (m HeaderMap) has(key string) bool {
	_, ok := m[key]
	return ok
}

// ResolveHeaders matches the sheet's header row against the column synonym
// table. Every required canonical key must be satisfied by at least one
// header; otherwise the whole file is rejected with an error naming all
// missing columns, before any row is processed.
func ResolveHeaders(sheet *Sheet, columns []column) (HeaderMap, error) {
	present := make(map[string]struct{}, len(sheet.Headers))
	for _, h := range sheet.Headers {
		if h != "" {
			present[h] = struct{}{}
		}
	}

	headers := make(HeaderMap, len(columns))
	var missing []string
	for _, col := range columns {
		matched := ""
		for _, variant := range col.variants {
			if _, ok := present[variant]; ok {
				matched = variant
				break
			}
		}
		if matched == "" {
			if col.required {
				missing = append(missing, col.label)
			}
			continue
		}
		headers[col.key] = matched
	}

	if len(missing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrMissingColumns,
			"missing required columns: "+strings.Join(missing, ", "))
	}
	return headers, nil
}
