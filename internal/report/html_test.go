package report

import (
	"context"
	"strings"
	"testing"

	"visit-export-service/internal/models"
)

func TestBuildHTML(t *testing.T) {
	source := &fakeVisitSource{visits: fixtureVisits("https://photos.example")}
	builder := NewBuilder(source, nil, "Relatório de Visitas")

	result, err := builder.Build(context.Background(), models.FormatHTML, testFilters(), nil)
	if err != nil {
		t.Fatalf("build html: %v", err)
	}
	if result.ContentType != "text/html" {
		t.Fatalf("wrong content type: %s", result.ContentType)
	}

	doc := string(result.Data)
	for _, want := range []string{
		"Total de Visitas: 3",
		"Período: 01/01/2024 a 31/01/2024",
		"Mercado Central - Ana Souza",
		"Padaria Sol - Bruno Lima",
		"Farmácia Azul",
		`src="https://photos.example/ph1.jpg"`,
		"Fachada - Checkout",
		"Sem GPS",
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("html missing %q", want)
		}
	}
}
