package report

import (
	"bytes"
	"fmt"
	"html/template"

	"visit-export-service/internal/models"
)

// renderHTML produces a self-contained document; photos are referenced by
// their URLs rather than embedded, so the file stays small and the browser
// fetches what it can reach.
func renderHTML(rep Report) ([]byte, error) {
	type photoView struct {
		URL   string
		Label string
		GPS   string
		Taken string
	}
	type visitView struct {
		Store    string
		Promoter string
		Date     string
		Location string
		Photos   []photoView
	}
	data := struct {
		Title   string
		Period  string
		Total   int
		Visits  []visitView
	}{
		Title:  rep.Title,
		Period: rep.PeriodLabel(),
		Total:  len(rep.Visits),
	}
	for _, visit := range rep.Visits {
		vv := visitView{
			Store:    visit.Store.Name,
			Promoter: visit.Promoter.Name,
			Date:     visit.CheckInAt.Format("02/01/2006"),
			Location: fmt.Sprintf("%.6f, %.6f", visit.CheckInLatitude, visit.CheckInLongitude),
		}
		for _, photo := range visit.Photos {
			gps := "Sem GPS"
			if photo.Latitude != nil && photo.Longitude != nil {
				gps = fmt.Sprintf("%.6f, %.6f", *photo.Latitude, *photo.Longitude)
			}
			vv.Photos = append(vv.Photos, photoView{
				URL:   photo.URL,
				Label: models.PhotoTypeLabel(photo.Type),
				GPS:   gps,
				Taken: photo.CreatedAt.Format("02/01/2006 15:04:05"),
			})
		}
		data.Visits = append(data.Visits, vv)
	}

	buf := &bytes.Buffer{}
	if err := htmlTemplate.Execute(buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var htmlTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #222; }
header { text-align: center; margin-bottom: 2rem; }
section { margin-bottom: 2rem; border-top: 1px solid #ddd; padding-top: 1rem; }
.meta { color: #666; font-size: 0.9rem; }
.photos { display: flex; flex-wrap: wrap; gap: 1rem; }
.photo { width: 300px; }
.photo img { width: 100%; }
.caption { font-size: 0.8rem; color: #333; }
</style>
</head>
<body>
<header>
<h1>{{.Title}}</h1>
<p>Período: {{.Period}}</p>
<p>Total de Visitas: {{.Total}}</p>
</header>
{{range .Visits}}<section>
<h2>{{.Store}} - {{.Promoter}}</h2>
<p class="meta">Data: {{.Date}} | Localização: {{.Location}}</p>
<div class="photos">
{{range .Photos}}<div class="photo">
<img src="{{.URL}}" alt="{{.Label}}">
<p class="caption">{{.Label}}<br>{{.GPS}}<br>{{.Taken}}</p>
</div>
{{end}}</div>
</section>
{{end}}</body>
</html>
`))
