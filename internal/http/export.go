package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/zOnlyKroks/Feuermelder-HSBI/internal/bucket"
	"github.com/zOnlyKroks/Feuermelder-HSBI/internal/models"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// exportHeader 导出表头
var exportHeader = []string{"Timestamp", "Value", "Status"}

// ExportSeries GET /api/export/{seriesKey}?hours=：窗口内原始读数导出为 Excel
func (h *MonitorHandler) ExportSeries(w http.ResponseWriter, r *http.Request, seriesKey string) {
	if !models.ValidSeriesKey(seriesKey) {
		writeError(w, http.StatusBadRequest, "unknown series key")
		return
	}

	hours := parseFloat(r.URL.Query().Get("hours"), 24)

	points, err := h.readings.QueryWindow(r.Context(), seriesKey, hours)
	if err != nil {
		h.logger.Error("Failed to query readings for export",
			zap.String("series_key", seriesKey),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to query readings")
		return
	}

	data, err := generateSeriesExcel(seriesKey, points)
	if err != nil {
		h.logger.Error("Failed to generate export", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to generate export")
		return
	}

	filename := fmt.Sprintf("%s_%s.xlsx", seriesKey, time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// generateSeriesExcel 生成单个时序的 Excel 文件
func generateSeriesExcel(seriesKey string, points []bucket.Point) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := seriesKey
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, title := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, title); err != nil {
			return nil, fmt.Errorf("failed to set header cell: %w", err)
		}
	}
	endCell, _ := excelize.CoordinatesToCellName(len(exportHeader), 1)
	_ = f.SetCellStyle(sheetName, "A1", endCell, headerStyle)

	for i, p := range points {
		row := i + 2
		tsCell, _ := excelize.CoordinatesToCellName(1, row)
		valCell, _ := excelize.CoordinatesToCellName(2, row)
		statusCell, _ := excelize.CoordinatesToCellName(3, row)

		_ = f.SetCellValue(sheetName, tsCell, p.Timestamp.UTC().Format(time.RFC3339))
		if p.Value != nil {
			_ = f.SetCellValue(sheetName, valCell, *p.Value)
		}
		_ = f.SetCellValue(sheetName, statusCell, p.Status)
	}

	_ = f.SetColWidth(sheetName, "A", "A", 24)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write excel buffer: %w", err)
	}

	return buf.Bytes(), nil
}
