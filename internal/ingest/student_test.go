package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const studentHeader = "First Name,Last Name,Email Address,User ID,Phone Number,School Year,Semester,Department,Course,Section,Year Level,Date of Birth"

func studentCSV(rows ...string) []byte {
	return []byte(studentHeader + "\n" + strings.Join(rows, "\n") + "\n")
}

func TestParseStudentFilePartialSuccess(t *testing.T) {
	data := studentCSV(
		"Ana,Reyes,ana@example.com,1001,09171234567,2024-2025,1st,CCS,BSIT,3A,3,2003-04-12",
		"Ben,Cruz,,1002,09171234568,2024-2025,1st,CCS,BSIT,3A,3,2003-06-20",
		"Carla,Dizon,carla@example.com,1003,09171234569,2024-2025,1st,CCS,BSIT,3A,3,2003-02-01",
		"Dan,Enriquez,dan@example.com,1004,0917,2024-2025,1st,CCS,BSIT,3A,3,2003-09-15",
		"Eli,Flores,eli@example.com,1005,09171234570,2024-2025,1st,CCS,BSIT,3A,3,2003-12-30",
	)

	result, err := ParseStudentFile("students.csv", data)
	require.NoError(t, err)
	require.Len(t, result.Records, 3)
	require.Len(t, result.RowErrors, 2)

	require.Equal(t, 1, result.RowErrors[0].RowIndex)
	require.Contains(t, result.RowErrors[0].Errors, "Email Address is required")
	require.Equal(t, 3, result.RowErrors[1].RowIndex)
	require.Contains(t, result.RowErrors[1].Errors[0], `"0917"`)

	require.Equal(t, []int{0, 2, 4}, []int{
		result.Records[0].RowIndex, result.Records[1].RowIndex, result.Records[2].RowIndex,
	})
}

func TestParseStudentFileNormalizesFields(t *testing.T) {
	data := studentCSV(
		"  john ,  Porter , john@example.com ,12345, 0912-345-6789 ,2024-2025, first sem ,CCS,BSIT,3A,3,05/13/2003",
	)

	result, err := ParseStudentFile("students.csv", data)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)

	record := result.Records[0]
	require.Equal(t, "john", record.FirstName)
	require.Equal(t, "Porter", record.LastName)
	require.Equal(t, "09123456789", record.Phone)
	require.Equal(t, "1st Semester", record.Semester)
	require.Equal(t, "John@12345", record.Password)
	require.Equal(t, 2003, record.DateOfBirth.Year())
	require.Equal(t, 13, record.DateOfBirth.Day())
}

func TestParseStudentFileAggregatesRowErrors(t *testing.T) {
	data := studentCSV(
		"Ana,,not-an-email,1001,123,2024-2025,1st,CCS,BSIT,3A,3,never",
	)

	result, err := ParseStudentFile("students.csv", data)
	require.NoError(t, err)
	require.Empty(t, result.Records)
	require.Len(t, result.RowErrors, 1)

	errs := result.RowErrors[0].Errors
	require.Contains(t, errs, "Last Name is required")
	require.Contains(t, errs, `Invalid email address "not-an-email"`)
	require.Contains(t, errs, `Phone number must contain exactly 11 digits, got "123"`)
	require.Contains(t, errs, `Invalid date of birth "never"`)
}

func TestParseStudentFileAllRowsFailing(t *testing.T) {
	data := studentCSV(
		"Ana,Reyes,bad,1001,1,2024-2025,1st,CCS,BSIT,3A,3,2003-04-12",
		"Ben,Cruz,worse,1002,2,2024-2025,1st,CCS,BSIT,3A,3,2003-06-20",
	)

	result, err := ParseStudentFile("students.csv", data)
	require.NoError(t, err, "all rows failing is a summary, not a hard failure")
	require.Empty(t, result.Records)
	require.Len(t, result.RowErrors, 2)
}

func TestParseStudentFileMissingColumnsAborts(t *testing.T) {
	data := []byte("First Name,Last Name\nAna,Reyes\n")

	_, err := ParseStudentFile("students.csv", data)
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing required columns")
}

func TestParseStudentXLSXSerialDateOfBirth(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := strings.Split(studentHeader, ",")
	cells := make([]interface{}, len(headers))
	for i, h := range headers {
		cells[i] = h
	}
	require.NoError(t, f.SetSheetRow(sheet, "A1", &cells))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{
		"Ana", "Reyes", "ana@example.com", "1001", "09171234567",
		"2024-2025", "1st", "CCS", "BSIT", "3A", "3", 36526,
	}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	result, err := ParseStudentFile("students.xlsx", buf.Bytes())
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	require.Equal(t, 2000, result.Records[0].DateOfBirth.Year())
	require.Equal(t, 1, result.Records[0].DateOfBirth.Day())
}

func TestGeneratePasswordDeterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		require.Equal(t, "John@12345", GeneratePassword("john", "12345"))
	}
	require.Equal(t, "Maria@77", GeneratePassword("MARIA", "77"))
	require.Equal(t, "Ana@1", GeneratePassword(" ana ", " 1 "))
}

func TestNormalizeSemester(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1st", "1st Semester"},
		{"First Sem", "1st Semester"},
		{"1", "1st Semester"},
		{"2nd sem", "2nd Semester"},
		{"second", "2nd Semester"},
		{"2", "2nd Semester"},
		{"summer term", "Summer"},
		{"SUMMER", "Summer"},
		{"Trimester 3", "Trimester 3"},
	}

	for _, tt := range tests {
		if got := NormalizeSemester(tt.in); got != tt.want {
			t.Fatalf("NormalizeSemester(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
