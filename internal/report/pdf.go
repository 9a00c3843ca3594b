package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// renderPDF mirrors the slide layout on landscape Letter pages: a cover page
// with the totals, then 2x2 photo-grid pages per photo-bearing visit.
// Unreachable photos render as outlined placeholder boxes.
func renderPDF(rep Report) ([]byte, error) {
	pdf := fpdf.New("L", "in", "Letter", "")
	pdf.SetAutoPageBreak(false, 0)

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 36)
	pdf.SetXY(1, 2)
	pdf.CellFormat(9, 1, latin1(rep.Title), "", 0, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 16)
	pdf.SetXY(1, 3.5)
	pdf.CellFormat(9, 0.5, latin1(fmt.Sprintf("Período: %s", rep.PeriodLabel())), "", 0, "C", false, 0, "")
	pdf.SetXY(1, 4.2)
	pdf.CellFormat(9, 0.5, latin1(fmt.Sprintf("Total de Visitas: %d", len(rep.Visits))), "", 0, "C", false, 0, "")

	imgID := 0
	for _, visit := range rep.Visits {
		if len(visit.Photos) == 0 {
			continue
		}
		for start := 0; start < len(visit.Photos); start += photosPerSlide {
			batch := visit.Photos[start:min(start+photosPerSlide, len(visit.Photos))]
			pdf.AddPage()

			pdf.SetFont("Helvetica", "B", 18)
			pdf.SetXY(0.5, 0.3)
			pdf.CellFormat(10, 0.4, latin1(fmt.Sprintf("%s - %s", visit.Store.Name, visit.Promoter.Name)), "", 0, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 11)
			pdf.SetTextColor(102, 102, 102)
			pdf.SetXY(0.5, 0.7)
			pdf.CellFormat(10, 0.3, latin1(fmt.Sprintf("Data: %s | Localização: %.6f, %.6f",
				visit.CheckInAt.Format("02/01/2006"), visit.CheckInLatitude, visit.CheckInLongitude)), "", 0, "L", false, 0, "")
			pdf.SetTextColor(0, 0, 0)

			for j, photo := range batch {
				tile := photoTiles[j]
				img := rep.Images[photo.ID]
				if img.OK {
					imgID++
					name := fmt.Sprintf("photo%d", imgID)
					pdf.RegisterImageOptionsReader(name,
						fpdf.ImageOptions{ImageType: "JPG"}, bytes.NewReader(img.Data))
					pdf.ImageOptions(name, tile.X, tile.Y, tile.W, tile.H, false,
						fpdf.ImageOptions{ImageType: "JPG"}, 0, "")
					pdf.SetFont("Helvetica", "", 8)
					pdf.SetTextColor(51, 51, 51)
					pdf.SetXY(tile.X, tile.Y+tile.H+0.05)
					pdf.MultiCell(tile.W, 0.14, latin1(photoCaption(photo)), "", "L", false)
					pdf.SetTextColor(0, 0, 0)
				} else {
					pdf.SetDrawColor(153, 153, 153)
					pdf.Rect(tile.X, tile.Y, tile.W, tile.H, "D")
					pdf.SetFont("Helvetica", "", 11)
					pdf.SetTextColor(153, 153, 153)
					pdf.SetXY(tile.X, tile.Y+tile.H/2-0.1)
					pdf.CellFormat(tile.W, 0.2, latin1("Erro ao carregar foto"), "", 0, "C", false, 0, "")
					pdf.SetTextColor(0, 0, 0)
				}
			}
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// latin1 maps UTF-8 strings onto the encoding fpdf's core fonts use.
func latin1(s string) string {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r < 256 {
			out = append(out, byte(r))
		} else {
			out = append(out, '?')
		}
	}
	return string(out)
}
