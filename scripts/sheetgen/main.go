// Command sheetgen emits blank onboarding templates for the bulk upload
// endpoints. Registrars fill these in and submit them to
// /api/v1/uploads/students or /api/v1/uploads/instructors; the headers here
// are the canonical spellings the ingest pipeline resolves without synonym
// matching.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

var studentHeaders = []string{
	"First Name", "Last Name", "Email Address", "User ID", "Phone Number",
	"School Year", "Semester", "Department", "Course", "Section",
	"Year Level", "Date of Birth",
	"Address", "Guardian Name", "Guardian Phone", "Emergency Contact",
}

var instructorHeaders = []string{
	"First Name", "Last Name", "Email Address", "User ID", "Phone Number",
	"School Year", "Semester", "Department", "Course",
	"Subject Name", "Subject Code", "Weekly Days", "Start Time", "End Time",
	"Section", "Room", "Units", "Password",
}

var studentSample = []string{
	"Ana", "Reyes", "ana.reyes@example.edu", "2024-0001", "09170000001",
	"2024-2025", "1st Semester", "CCS", "BSCS", "A",
	"1", "2004-03-15",
	"123 Mabini St", "Jose Reyes", "09170000002", "09170000003",
}

// Two rows for the same instructor show how subject assignments repeat the
// personal columns; the grouping happens server-side by email.
var instructorSamples = [][]string{
	{
		"Leo", "Cruz", "leo.cruz@example.edu", "F-1001", "09180000001",
		"2024-2025", "1st Semester", "CCS", "BSCS",
		"Programming 1", "CS101", "Monday,Wednesday", "07:00", "08:30",
		"A", "301", "3", "",
	},
	{
		"Leo", "Cruz", "leo.cruz@example.edu", "F-1001", "09180000001",
		"2024-2025", "1st Semester", "CCS", "BSCS",
		"Data Structures", "CS102", "Tuesday,Thursday", "10:00", "11:30",
		"B", "302", "3", "",
	},
}

func main() {
	var (
		outDir     string
		withSample bool
	)
	flag.StringVar(&outDir, "out", "templates", "Output directory for the generated templates")
	flag.BoolVar(&withSample, "sample", true, "Include one sample row per template")
	flag.Parse()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	templates := []struct {
		name    string
		headers []string
		rows    [][]string
	}{
		{"students_template", studentHeaders, [][]string{studentSample}},
		{"instructors_template", instructorHeaders, instructorSamples},
	}

	for _, tpl := range templates {
		rows := tpl.rows
		if !withSample {
			rows = nil
		}
		csvPath := filepath.Join(outDir, tpl.name+".csv")
		if err := writeCSV(csvPath, tpl.headers, rows); err != nil {
			log.Fatalf("failed to write %s: %v", csvPath, err)
		}
		fmt.Println("wrote", csvPath)

		xlsxPath := filepath.Join(outDir, tpl.name+".xlsx")
		if err := writeXLSX(xlsxPath, tpl.headers, rows); err != nil {
			log.Fatalf("failed to write %s: %v", xlsxPath, err)
		}
		fmt.Println("wrote", xlsxPath)
	}
}

func writeCSV(path string, headers []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(headers); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeXLSX(path string, headers []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := setRow(f, sheet, 1, headers); err != nil {
		return err
	}
	for i, row := range rows {
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}

	return f.SaveAs(path)
}

func setRow(f *excelize.File, sheet string, rowIndex int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowIndex)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return f.SetSheetRow(sheet, cell, &cells)
}
