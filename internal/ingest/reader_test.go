package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	appErrors "github.com/neattend/neattend-api/pkg/errors"
)

func TestReadCSV(t *testing.T) {
	data := []byte("\uFEFFFirst Name,Last_Name,EMAIL\n" +
		"Ana,Reyes,ana@example.com\n" +
		",,\n" +
		"Ben,Cruz\n")

	sheet, err := ReadCSV(data)
	require.NoError(t, err)
	require.Equal(t, []string{"firstname", "lastname", "email"}, sheet.Headers)
	require.Len(t, sheet.Rows, 2, "fully blank rows are dropped")

	require.Equal(t, "Ana", sheet.Rows[0]["firstname"])
	require.Equal(t, "ana@example.com", sheet.Rows[0]["email"])

	require.Equal(t, "Ben", sheet.Rows[1]["firstname"])
	require.Equal(t, "", sheet.Rows[1]["email"], "short rows default missing cells to empty")
}

func TestReadCSVEmptyFile(t *testing.T) {
	sheet, err := ReadCSV(nil)
	require.NoError(t, err)
	require.Empty(t, sheet.Headers)
	require.Empty(t, sheet.Rows)
}

func TestReadXLSXFirstSheetOnly(t *testing.T) {
	f := excelize.NewFile()
	first := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(first, "A1", &[]interface{}{"First Name", "Email"}))
	require.NoError(t, f.SetSheetRow(first, "A2", &[]interface{}{"Ana", "ana@example.com"}))

	_, err := f.NewSheet("Extras")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Extras", "A1", &[]interface{}{"Ignored"}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	sheet, err := ReadXLSX(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, []string{"firstname", "email"}, sheet.Headers)
	require.Len(t, sheet.Rows, 1)
	require.Equal(t, "Ana", sheet.Rows[0]["firstname"])
}

func TestReadXLSXRejectsGarbage(t *testing.T) {
	_, err := ReadXLSX([]byte("not a workbook"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrUnreadableFile.Code, appErrors.FromError(err).Code)
}

func TestReadSheetDispatchesOnExtension(t *testing.T) {
	sheet, err := ReadSheet("students.CSV", []byte("firstname\nAna\n"))
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 1)

	_, err = ReadSheet("students.pdf", []byte("%PDF"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrUnsupportedFile.Code, appErrors.FromError(err).Code)
}
