package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"visit-export-service/internal/models"
)

const (
	visitsSheet = "Visitas"
	photosSheet = "Fotos"
)

// renderExcel produces a two-sheet workbook: one row per visit on "Visitas",
// one row per photo on "Fotos". Photos are referenced by URL, not embedded.
func renderExcel(rep Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", visitsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(photosSheet); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	visitHeaders := []string{"Loja", "Promotor", "Check-in", "Check-out", "Latitude", "Longitude", "Fotos"}
	for i, h := range visitHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(visitsSheet, cell, h); err != nil {
			return nil, err
		}
	}
	if err := f.SetRowStyle(visitsSheet, 1, 1, headerStyle); err != nil {
		return nil, err
	}

	for i, visit := range rep.Visits {
		row := i + 2
		checkOut := ""
		if visit.CheckOutAt != nil {
			checkOut = visit.CheckOutAt.Format("02/01/2006 15:04:05")
		}
		values := []any{
			visit.Store.Name,
			visit.Promoter.Name,
			visit.CheckInAt.Format("02/01/2006 15:04:05"),
			checkOut,
			visit.CheckInLatitude,
			visit.CheckInLongitude,
			len(visit.Photos),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(visitsSheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	photoHeaders := []string{"Loja", "Promotor", "Tipo", "GPS", "URL", "Data"}
	for i, h := range photoHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(photosSheet, cell, h); err != nil {
			return nil, err
		}
	}
	if err := f.SetRowStyle(photosSheet, 1, 1, headerStyle); err != nil {
		return nil, err
	}

	row := 2
	for _, visit := range rep.Visits {
		for _, photo := range visit.Photos {
			gps := "Sem GPS"
			if photo.Latitude != nil && photo.Longitude != nil {
				gps = fmt.Sprintf("%.6f, %.6f", *photo.Latitude, *photo.Longitude)
			}
			values := []any{
				visit.Store.Name,
				visit.Promoter.Name,
				models.PhotoTypeLabel(photo.Type),
				gps,
				photo.URL,
				photo.CreatedAt.Format("02/01/2006 15:04:05"),
			}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row)
				if err := f.SetCellValue(photosSheet, cell, v); err != nil {
					return nil, err
				}
			}
			row++
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
