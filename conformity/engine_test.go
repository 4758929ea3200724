package conformity

import (
	"testing"

	"conforme/extract"
	"conforme/gazette"
)

func TestLevelForBoundaries(t *testing.T) {
	cases := []struct {
		ratio float64
		want  MatchLevel
	}{
		{1.0, Exato},
		{0.8, Alto},
		{0.79999, Medio},
		{0.5, Medio},
		{0.49999, Baixo},
		{0.2, Baixo},
		{0.19999, Nenhum},
		{0.0, Nenhum},
	}
	for _, c := range cases {
		if got := LevelFor(c.ratio); got != c.want {
			t.Errorf("LevelFor(%v) = %s, want %s", c.ratio, got, c.want)
		}
	}
}

func TestTimelyBoundaries(t *testing.T) {
	cases := []struct {
		days int
		want bool
	}{
		{0, true},
		{20, true},
		{21, false},
		{-1, false},
	}
	for _, c := range cases {
		if got := Timely(c.days); got != c.want {
			t.Errorf("Timely(%d) = %v, want %v", c.days, got, c.want)
		}
	}
}

func TestDaysBetween(t *testing.T) {
	days, ok := DaysBetween("2025-01-01", "15/01/2025")
	if !ok || days != 14 {
		t.Fatalf("DaysBetween = %d, %v; want 14, true", days, ok)
	}
	if _, ok := DaysBetween("not a date", "15/01/2025"); ok {
		t.Fatal("expected parse failure for malformed signature date")
	}
}

// matchingPublication builds a publication whose extracted fields match the
// contract exactly.
func matchingPublication(t *testing.T, contract extract.ContractRecord, pubDate string) gazette.PublicationResult {
	t.Helper()
	fields := contract
	return gazette.PublicationResult{
		Processo:        contract.Processo,
		Found:           true,
		PublicationDate: pubDate,
		Extracted:       &fields,
	}
}

func testContract() extract.ContractRecord {
	return extract.ContractRecord{
		Processo:       "SME-PRO-2025/19222",
		NumeroContrato: "085/2025",
		ValorContrato:  "R$ 40.000,00",
		DataAssinatura: "2025-01-01",
		Objeto:         "Prestação de serviços de manutenção predial",
		Partes: extract.Partes{
			Contratante: "Secretaria Municipal de Educação",
			Contratada:  "ACME Corp",
		},
		Prazo: extract.Prazo{DataInicio: "01/02/2025", DataFim: "01/02/2026"},
	}
}

func TestEvaluateTimelyMatchingIsConforme(t *testing.T) {
	contract := testContract()
	res := Evaluate(contract, matchingPublication(t, contract, "15/01/2025"))

	if res.OverallStatus != Conforme {
		t.Fatalf("status = %s, want CONFORME", res.OverallStatus)
	}
	if res.Timely == nil || !*res.Timely {
		t.Fatal("expected timely = true")
	}
	if res.DaysDifference == nil || *res.DaysDifference != 14 {
		t.Fatalf("days = %v, want 14", res.DaysDifference)
	}
	if res.ConformityScore != 100 {
		t.Fatalf("score = %d, want 100", res.ConformityScore)
	}
}

func TestEvaluateLateMatchingIsParcial(t *testing.T) {
	contract := testContract()
	res := Evaluate(contract, matchingPublication(t, contract, "25/01/2025"))

	if res.DaysDifference == nil || *res.DaysDifference != 24 {
		t.Fatalf("days = %v, want 24", res.DaysDifference)
	}
	if res.Timely == nil || *res.Timely {
		t.Fatal("expected timely = false")
	}
	if res.OverallStatus != Parcial {
		t.Fatalf("status = %s, want PARCIAL for late but matching publication", res.OverallStatus)
	}
}

func TestEvaluateNotFoundIsNaoConformeWithUnknownTimeliness(t *testing.T) {
	contract := testContract()
	res := Evaluate(contract, gazette.PublicationResult{
		Processo: contract.Processo,
		Found:    false,
	})

	if res.OverallStatus != NaoConforme {
		t.Fatalf("status = %s, want NAO_CONFORME", res.OverallStatus)
	}
	if res.Timely != nil {
		t.Fatal("timeliness must stay unknown when publication was not located")
	}
	if res.DaysDifference != nil {
		t.Fatal("days difference must stay unknown when publication was not located")
	}
	if len(res.FieldChecks) != 0 {
		t.Fatal("no field checks expected without a located publication")
	}
}

func TestEvaluateDivergentFieldIsNaoConforme(t *testing.T) {
	contract := testContract()
	pub := matchingPublication(t, contract, "15/01/2025")
	diverged := *pub.Extracted
	diverged.Objeto = "Aquisição de equipamentos de informática"
	pub.Extracted = &diverged

	res := Evaluate(contract, pub)
	if res.OverallStatus != NaoConforme {
		t.Fatalf("status = %s, want NAO_CONFORME with a diverged objeto", res.OverallStatus)
	}
}

func TestEvaluateDifferentOrganIsNotConforme(t *testing.T) {
	contract := testContract()
	pub := matchingPublication(t, contract, "15/01/2025")
	diverged := *pub.Extracted
	diverged.Partes.Contratante = "Secretaria Municipal de Saúde"
	pub.Extracted = &diverged

	res := Evaluate(contract, pub)
	if res.OverallStatus == Conforme {
		t.Fatal("publication naming a different organ must not grade CONFORME")
	}
	for _, fc := range res.FieldChecks {
		if fc.FieldName == "contratante" && (fc.MatchLevel == Alto || fc.MatchLevel == Exato) {
			t.Fatalf("contratante level = %s, want below ALTO for a different organ", fc.MatchLevel)
		}
	}
}

func TestEvaluateCompanyNameVariantIsAlto(t *testing.T) {
	contract := testContract()
	pub := matchingPublication(t, contract, "15/01/2025")
	variant := *pub.Extracted
	variant.Partes.Contratada = "ACME CORPORATION"
	pub.Extracted = &variant

	res := Evaluate(contract, pub)
	for _, fc := range res.FieldChecks {
		if fc.FieldName != "contratada" {
			continue
		}
		if fc.SimilarityScore < 0.8 {
			t.Fatalf("contratada similarity = %v, want >= 0.8", fc.SimilarityScore)
		}
		if fc.MatchLevel != Alto && fc.MatchLevel != Exato {
			t.Fatalf("contratada level = %s, want ALTO", fc.MatchLevel)
		}
		return
	}
	t.Fatal("contratada field check missing")
}
