// Package conformity reconciles contract data against publication data.
//
// The engine is pure: given the same ContractRecord and PublicationResult it
// always produces the same Result, with no external calls. Its vocabulary
// strictly distinguishes "not located" from "non-compliant": the engine
// never asserts that a contract was not published.
package conformity

// DeadlineDays is the statutory publication deadline: a contract extract must
// appear in the gazette within this many days of signature.
const DeadlineDays = 20

// MatchLevel is the discretized similarity bucket used in auditor reports.
type MatchLevel string

const (
	Exato  MatchLevel = "EXATO"
	Alto   MatchLevel = "ALTO"
	Medio  MatchLevel = "MEDIO"
	Baixo  MatchLevel = "BAIXO"
	Nenhum MatchLevel = "NENHUM"
)

// Status is the overall conformity verdict for one processo.
type Status string

const (
	Conforme    Status = "CONFORME"
	Parcial     Status = "PARCIAL"
	NaoConforme Status = "NAO_CONFORME"
)

// FieldCheck records the comparison of a single field pair.
type FieldCheck struct {
	FieldName        string     `json:"field_name"`
	ContractValue    string     `json:"contract_value"`
	PublicationValue string     `json:"publication_value"`
	MatchLevel       MatchLevel `json:"match_level"`
	SimilarityScore  float64    `json:"similarity_score"`
}

// Result is the immutable conformity verdict for one processo. Timely and
// DaysDifference are nil when the publication was not located or dates could
// not be parsed: timeliness is then unknown, not false.
type Result struct {
	Processo        string       `json:"processo"`
	OverallStatus   Status       `json:"overall_status"`
	ConformityScore int          `json:"conformity_score"`
	Timely          *bool        `json:"timely"`
	DaysDifference  *int         `json:"days_difference"`
	FieldChecks     []FieldCheck `json:"field_checks"`
}

// LevelFor maps a similarity ratio in [0,1] to a MatchLevel. The boundaries
// are closed on the left: 0.8 is ALTO, 0.79999 is MEDIO.
func LevelFor(ratio float64) MatchLevel {
	switch {
	case ratio >= 1.0:
		return Exato
	case ratio >= 0.8:
		return Alto
	case ratio >= 0.5:
		return Medio
	case ratio >= 0.2:
		return Baixo
	default:
		return Nenhum
	}
}
