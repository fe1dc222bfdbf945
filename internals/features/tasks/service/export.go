package service

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Tasks"

var exportHeaders = []string{"Title", "Creator", "Overall status", "Assignees", "Start date", "Due date", "Closed", "Created at"}

// ExportXLSX renders a task listing as a workbook with one row per task.
func ExportXLSX(views []TaskView) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}
	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(exportSheet, cell, h); err != nil {
			return nil, err
		}
	}

	for i, v := range views {
		row := i + 2
		assignees := make([]string, 0, len(v.Assignments))
		for _, a := range v.Assignments {
			assignees = append(assignees, fmt.Sprintf("%s (%s)", a.UserName, a.Status))
		}
		values := []any{
			v.Title,
			v.CreatorName,
			v.OverallStatus,
			strings.Join(assignees, ", "),
			formatDate(v.StartDate),
			formatDate(v.DueDate),
			yesNo(v.IsClosed),
			v.CreatedAt.Format("02.01.2006 15:04"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return nil, err
		}
	}

	return f.WriteToBuffer()
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("02.01.2006")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
