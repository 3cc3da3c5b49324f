package handler

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"staffbook-backend/internal/domain"
	"staffbook-backend/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"
)

// ReportHandler serves the handbook compliance report and its export.
type ReportHandler struct {
	Handbook *service.HandbookService
}

func (h ReportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/reports/compliance", h.compliance)
	r.Get("/reports/compliance/export", h.export)
}

func (h ReportHandler) compliance(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	rows, err := h.Handbook.ComplianceReport(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	resp := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, map[string]any{
			"userId":            row.UserID,
			"name":              row.Name,
			"email":             row.Email,
			"role":              string(row.Role),
			"handbookCompleted": row.HandbookCompleted,
			"sectionsSigned":    row.SectionsSigned,
			"sectionsRequired":  row.SectionsRequired,
			"lastSignedAt":      formatTime(row.LastSignedAt),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h ReportHandler) export(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "xlsx"
	}
	if format != "csv" && format != "xlsx" {
		writeError(w, http.StatusBadRequest, "invalid format (use csv or xlsx)")
		return
	}
	rows, err := h.Handbook.ComplianceReport(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	suffix := time.Now().UTC().Format("20060102_150405")
	var data []byte
	if format == "csv" {
		data, err = exportComplianceCSV(rows)
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	} else {
		data, err = exportComplianceXLSX(rows)
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	}
	if err != nil {
		w.Header().Del("Content-Type")
		writeAppError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"compliance_%s.%s\"", suffix, format))
	_, _ = w.Write(data)
}

var complianceHeader = []string{"User ID", "Name", "Email", "Role", "Handbook Completed", "Sections Signed", "Sections Required", "Last Signed At"}

func complianceValues(row domain.ComplianceRow) []string {
	last := ""
	if row.LastSignedAt != nil {
		last = row.LastSignedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		strconv.FormatInt(row.UserID, 10),
		row.Name,
		row.Email,
		string(row.Role),
		strconv.FormatBool(row.HandbookCompleted),
		strconv.Itoa(row.SectionsSigned),
		strconv.Itoa(row.SectionsRequired),
		last,
	}
}

func exportComplianceCSV(rows []domain.ComplianceRow) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)
	_ = w.Write(complianceHeader)
	for _, row := range rows {
		_ = w.Write(complianceValues(row))
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func exportComplianceXLSX(rows []domain.ComplianceRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "Compliance"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	for c, v := range complianceHeader {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		_ = f.SetCellValue(sheet, cell, v)
	}
	for i, row := range rows {
		var last any
		if row.LastSignedAt != nil {
			last = row.LastSignedAt.UTC()
		}
		values := []any{
			row.UserID,
			row.Name,
			row.Email,
			string(row.Role),
			row.HandbookCompleted,
			row.SectionsSigned,
			row.SectionsRequired,
			last,
		}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, i+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 10)
	_ = f.SetColWidth(sheet, "B", "C", 28)
	_ = f.SetColWidth(sheet, "D", "G", 18)
	_ = f.SetColWidth(sheet, "H", "H", 22)

	style, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#1F2937"}, Pattern: 1},
	})
	_ = f.SetCellStyle(sheet, "A1", "H1", style)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
