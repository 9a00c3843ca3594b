package report

import (
	"bytes"
	"fmt"

	"visit-export-service/internal/models"
)

// Slide geometry, in inches, on a 10x7.5 canvas. Four photo tiles per slide
// in a 2x2 grid, caption under each tile.
var photoTiles = [4]struct{ X, Y, W, H float64 }{
	{0.5, 1.2, 4.25, 2.5},
	{5.25, 1.2, 4.25, 2.5},
	{0.5, 3.9, 4.25, 2.5},
	{5.25, 3.9, 4.25, 2.5},
}

const photosPerSlide = 4

// renderPPTX lays the report out as a slide deck: a cover slide with the
// totals, then one or more 2x2 photo-grid slides per visit that has photos.
func renderPPTX(rep Report) ([]byte, error) {
	d := newDeck(10, 7.5)

	cover := d.AddSlide()
	cover.AddText(deckText{X: 1, Y: 1, W: 8, H: 1, Size: 44, Bold: true, Center: true, Text: rep.Title})
	cover.AddText(deckText{X: 1, Y: 2.5, W: 8, H: 0.5, Size: 18, Center: true,
		Text: fmt.Sprintf("Período: %s", rep.PeriodLabel())})
	cover.AddText(deckText{X: 1, Y: 3.5, W: 8, H: 0.5, Size: 18, Center: true,
		Text: fmt.Sprintf("Total de Visitas: %d", len(rep.Visits))})

	for _, visit := range rep.Visits {
		if len(visit.Photos) == 0 {
			continue
		}
		for start := 0; start < len(visit.Photos); start += photosPerSlide {
			batch := visit.Photos[start:min(start+photosPerSlide, len(visit.Photos))]
			slide := d.AddSlide()

			slide.AddText(deckText{X: 0.5, Y: 0.2, W: 9, H: 0.4, Size: 20, Bold: true,
				Text: fmt.Sprintf("%s - %s", visit.Store.Name, visit.Promoter.Name)})
			slide.AddText(deckText{X: 0.5, Y: 0.6, W: 9, H: 0.3, Size: 12, Color: "666666",
				Text: fmt.Sprintf("Data: %s | Localização: %.6f, %.6f",
					visit.CheckInAt.Format("02/01/2006"), visit.CheckInLatitude, visit.CheckInLongitude)})

			for j, photo := range batch {
				tile := photoTiles[j]
				img := rep.Images[photo.ID]
				if img.OK {
					d.AddImage(slide, img.Data, tile.X, tile.Y, tile.W, tile.H)
					slide.AddText(deckText{X: tile.X, Y: tile.Y + tile.H + 0.1, W: tile.W, H: 0.4,
						Size: 10, Color: "333333", Text: photoCaption(photo)})
				} else {
					slide.AddText(deckText{X: tile.X, Y: tile.Y, W: tile.W, H: tile.H,
						Size: 12, Color: "999999", Center: true, VCenter: true,
						Text: "Erro ao carregar foto"})
				}
			}
		}
	}

	buf := &bytes.Buffer{}
	if err := d.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// photoCaption renders the three-line tile caption: type label, GPS (or its
// absence), capture timestamp.
func photoCaption(photo models.Photo) string {
	gps := "Sem GPS"
	if photo.Latitude != nil && photo.Longitude != nil {
		gps = fmt.Sprintf("%.6f, %.6f", *photo.Latitude, *photo.Longitude)
	}
	return fmt.Sprintf("%s\n%s\n%s",
		models.PhotoTypeLabel(photo.Type), gps, photo.CreatedAt.Format("02/01/2006 15:04:05"))
}
