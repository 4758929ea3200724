package conformity

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  ACME Corp.  ", "acme corp"},
		{"Secretaria Municipal de Educação", "secretaria municipal de educação"},
		{"R$ 40.000,00", "r 40 000 00"},
		{"", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSimilarityEdges(t *testing.T) {
	if got := Similarity("", ""); got != 1.0 {
		t.Errorf("both empty = %v, want 1.0", got)
	}
	if got := Similarity("ACME Corp", ""); got != 0.0 {
		t.Errorf("one empty = %v, want 0.0", got)
	}
	if got := Similarity("ACME Corp", "acme corp."); got != 1.0 {
		t.Errorf("case and punctuation variants = %v, want 1.0", got)
	}
}

func TestSimilarityAbbreviationVariant(t *testing.T) {
	got := Similarity("ACME Corp", "ACME CORPORATION")
	if got < 0.8 {
		t.Fatalf("similarity = %v, want >= 0.8", got)
	}
}

func TestSimilarityUnrelatedStrings(t *testing.T) {
	got := Similarity("manutenção predial", "aquisição de equipamentos de informática")
	if got >= 0.8 {
		t.Fatalf("unrelated strings scored %v, want < 0.8", got)
	}
}

func TestSimilarityDivergentObjetoScoresLow(t *testing.T) {
	got := Similarity(
		"Prestação de serviços de manutenção predial",
		"Aquisição de equipamentos de informática")
	if got >= 0.5 {
		t.Fatalf("divergent objeto scored %v, want < 0.5 so the verdict can reach NAO_CONFORME", got)
	}
}

func TestSimilarityDifferentOrganIsNotHigh(t *testing.T) {
	got := Similarity("Secretaria Municipal de Educação", "Secretaria Municipal de Saúde")
	if got >= 0.8 {
		t.Fatalf("different organs scored %v, want < 0.8", got)
	}
	if got < 0.5 {
		t.Fatalf("organs sharing most words scored %v, want >= 0.5", got)
	}
}

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"R$ 572.734,00", 572734.00},
		{"572734.00", 572734.00},
		{"R$ 40.000,00 (quarenta mil reais)", 40000.00},
		{"sem valor", 0},
	}
	for _, c := range cases {
		if got := ParseMoney(c.in); got != c.want {
			t.Errorf("ParseMoney(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestMoneySimilarity(t *testing.T) {
	if got := MoneySimilarity("R$ 572.734,00", "572734.00"); got != 1.0 {
		t.Errorf("equal amounts across formats = %v, want 1.0", got)
	}
	if got := MoneySimilarity("R$ 100.000,00", "R$ 50.000,00"); got >= 0.8 {
		t.Errorf("halved amount = %v, want < 0.8", got)
	}
	if got := MoneySimilarity("", ""); got != 1.0 {
		t.Errorf("both missing = %v, want 1.0", got)
	}
}
