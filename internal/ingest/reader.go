package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	appErrors "github.com/neattend/neattend-api/pkg/errors"
)

// RawRow maps normalized header keys to raw cell values for one data row.
// Blank and absent cells read as the empty string.
type RawRow map[string]string

// Sheet is the loosely typed output of the file readers: the normalized
// header keys in source column order plus one RawRow per data row. Fully
// blank rows are dropped, so row indices refer to positions in Rows.
type Sheet struct {
	Headers []string
	Rows    []RawRow
}

// ReadSheet dispatches on the filename extension. Content sniffing is
// deliberately not performed.
func ReadSheet(filename string, data []byte) (*Sheet, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".csv":
		return ReadCSV(data)
	case ".xlsx":
		return ReadXLSX(data)
	default:
		return nil, appErrors.Clone(appErrors.ErrUnsupportedFile,
			fmt.Sprintf("unsupported file type %q, expected .csv or .xlsx", ext))
	}
}

// ReadCSV parses delimited text. The first record is the header row; ragged
// rows are tolerated with missing cells defaulting to empty strings.
func ReadCSV(data []byte) (*Sheet, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return &Sheet{}, nil
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnreadableFile.Code,
			appErrors.ErrUnreadableFile.Status, "could not read CSV header")
	}

	sheet := &Sheet{Headers: normalizeHeaders(header)}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUnreadableFile.Code,
				appErrors.ErrUnreadableFile.Status, "could not parse file as CSV")
		}
		if row, ok := buildRow(sheet.Headers, record); ok {
			sheet.Rows = append(sheet.Rows, row)
		}
	}
	return sheet, nil
}

// ReadXLSX parses a binary spreadsheet workbook. Only the first sheet is
// read. Cells are read raw, so date and time cells arrive as spreadsheet
// serial numbers rather than display strings; the row normalizers defend
// against both shapes.
func ReadXLSX(data []byte) (*Sheet, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnreadableFile.Code,
			appErrors.ErrUnreadableFile.Status, "could not open workbook")
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, appErrors.Clone(appErrors.ErrUnreadableFile, "workbook contains no sheets")
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnreadableFile.Code,
			appErrors.ErrUnreadableFile.Status, "could not read worksheet rows")
	}
	if len(rows) == 0 {
		return &Sheet{}, nil
	}

	sheet := &Sheet{Headers: normalizeHeaders(rows[0])}
	for _, record := range rows[1:] {
		if row, ok := buildRow(sheet.Headers, record); ok {
			sheet.Rows = append(sheet.Rows, row)
		}
	}
	return sheet, nil
}

func normalizeHeaders(header []string) []string {
	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = NormalizeKey(h)
	}
	return keys
}

// buildRow maps one record onto the header keys. It returns false when every
// cell is blank.
func buildRow(headers []string, record []string) (RawRow, bool) {
	row := make(RawRow, len(headers))
	blank := true
	for i, key := range headers {
		if key == "" {
			continue
		}
		value := ""
		if i < len(record) {
			value = record[i]
		}
		if strings.TrimSpace(value) != "" {
			blank = false
		}
		row[key] = value
	}
	if blank {
		return nil, false
	}
	return row, true
}
