package conformity

import (
	"math"
	"strings"
	"time"

	"conforme/extract"
	"conforme/gazette"
)

var dateLayouts = []string{"02/01/2006", "2006-01-02", "02-01-2006"}

// ParseDate parses the date formats seen on the portal and in gazette
// extracts: DD/MM/YYYY, YYYY-MM-DD, DD-MM-YYYY.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DaysBetween returns publication minus signature in whole days. The second
// return is false when either date does not parse.
func DaysBetween(assinatura, publicacao string) (int, bool) {
	a, okA := ParseDate(assinatura)
	p, okP := ParseDate(publicacao)
	if !okA || !okP {
		return 0, false
	}
	return int(p.Sub(a).Hours() / 24), true
}

// Timely reports whether a publication delay satisfies the statutory
// deadline: within DeadlineDays of signature, and never before it.
func Timely(days int) bool {
	return days >= 0 && days <= DeadlineDays
}

// Evaluate reconciles a contract against a publication search outcome and
// produces the conformity verdict reported to auditors.
//
// A publication that was never located yields NAO_CONFORME through the
// "no evidence" path: timeliness stays unknown (nil) and no field checks are
// produced, so the result cannot be mistaken for a field-level failure.
// A late but otherwise matching publication is PARCIAL, never CONFORME.
func Evaluate(contract extract.ContractRecord, pub gazette.PublicationResult) Result {
	res := Result{
		Processo:      contract.Processo,
		OverallStatus: NaoConforme,
	}
	if res.Processo == "" {
		res.Processo = pub.Processo
	}

	if !pub.Found || pub.Extracted == nil {
		return res
	}

	res.FieldChecks = fieldChecks(contract, *pub.Extracted)

	var sum float64
	allHigh := true
	anyLow := false
	for _, fc := range res.FieldChecks {
		sum += fc.SimilarityScore
		switch fc.MatchLevel {
		case Exato, Alto:
		case Baixo, Nenhum:
			anyLow = true
			allHigh = false
		default:
			allHigh = false
		}
	}
	if n := len(res.FieldChecks); n > 0 {
		res.ConformityScore = int(math.Round(sum / float64(n) * 100))
	}

	if days, ok := DaysBetween(contract.DataAssinatura, pub.PublicationDate); ok {
		timely := Timely(days)
		res.DaysDifference = &days
		res.Timely = &timely
	}

	timelyKnown := res.Timely != nil
	timely := timelyKnown && *res.Timely

	switch {
	case timely && allHigh:
		res.OverallStatus = Conforme
	case anyLow:
		res.OverallStatus = NaoConforme
	case timelyKnown && !timely && !allHigh:
		res.OverallStatus = NaoConforme
	default:
		// Late or timeliness-unknown publications with matching fields, and
		// timely publications with mid-confidence fields.
		res.OverallStatus = Parcial
	}

	return res
}

// fieldChecks compares the comparable field pairs in report order.
func fieldChecks(c, p extract.ContractRecord) []FieldCheck {
	prazoC := joinPrazo(c.Prazo)
	prazoP := joinPrazo(p.Prazo)

	pairs := []struct {
		name  string
		cv    string
		pv    string
		ratio func(a, b string) float64
	}{
		{"contratante", c.Partes.Contratante, p.Partes.Contratante, Similarity},
		{"contratada", c.Partes.Contratada, p.Partes.Contratada, Similarity},
		{"objeto", c.Objeto, p.Objeto, Similarity},
		{"valor", c.ValorContrato, p.ValorContrato, MoneySimilarity},
		{"numero_contrato", c.NumeroContrato, p.NumeroContrato, Similarity},
		{"prazo", prazoC, prazoP, Similarity},
	}

	checks := make([]FieldCheck, 0, len(pairs))
	for _, pair := range pairs {
		ratio := pair.ratio(pair.cv, pair.pv)
		checks = append(checks, FieldCheck{
			FieldName:        pair.name,
			ContractValue:    pair.cv,
			PublicationValue: pair.pv,
			MatchLevel:       LevelFor(ratio),
			SimilarityScore:  ratio,
		})
	}
	return checks
}

func joinPrazo(p extract.Prazo) string {
	if p.DataInicio == "" && p.DataFim == "" {
		return ""
	}
	return strings.TrimSpace(p.DataInicio + " a " + p.DataFim)
}
