package gazette

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/microcosm-cc/bluemonday"
)

// resultCardRe anchors one result card in the rendered search page. The
// portal prints a header line per hit:
//
//	Diário publicado em: DD/MM/YYYY - Edição NNN - Pág. NN
var resultCardRe = regexp.MustCompile(`Diário publicado em:\s*(\d{2}/\d{2}/\d{4})\s*-\s*Edição\s*(\d+)\s*-\s*Pág\.\s*(\d+)`)

// resultCountRe reads the portal's hit counter.
var resultCountRe = regexp.MustCompile(`(?i)(\d+)\s+resultados?\s+encontrados?`)

// pageCountRe reads "página X de Y" from the pagination widget.
var pageCountRe = regexp.MustCompile(`(?i)p[aá]gina\s+\d+\s+de\s+(\d+)`)

// Extract publication headings, most specific first. A card carrying one of
// the priority forms is almost certainly the publication itself rather than a
// correction or a notice that merely cites the contract.
var priorityKeywords = []string{
	"EXTRATO DO CONTRATO",
	"EXTRATO DE CONTRATO",
	"EXTRATO DE INSTRUMENTO CONTRATUAL",
	"EXTRATO DE TERMO ADITIVO",
	"EXTRATO DO TERMO ADITIVO",
}

var generalKeywords = []string{"EXTRATO", "CONTRATO", "ADITIVO"}

// scoring weights for candidate ranking
var keywordPoints = map[string]float64{
	"extrato":       5,
	"termo aditivo": 4,
	"contrato":      3,
	"instrumento":   2,
	"aditivo":       2,
	"publicação":    1,
}

const previewWindow = 1500

// ParseResults splits the rendered search page text into result cards,
// flagging the ones that carry an EXTRATO heading. Items keep page order;
// ranking happens separately.
func ParseResults(bodyText string) []SearchResultItem {
	matches := resultCardRe.FindAllStringSubmatchIndex(bodyText, -1)

	items := make([]SearchResultItem, 0, len(matches))
	for i, m := range matches {
		start := m[0]
		end := len(bodyText)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		if end > start+previewWindow {
			end = start + previewWindow
		}
		preview := bodyText[start:end]

		items = append(items, SearchResultItem{
			Index:           i,
			PublicationDate: bodyText[m[2]:m[3]],
			Edition:         bodyText[m[4]:m[5]],
			Page:            bodyText[m[6]:m[7]],
			Snippet:         preview,
			HasExtrato:      containsAny(preview, priorityKeywords) || containsAny(preview, generalKeywords),
		})
	}
	return items
}

// CountResults returns the portal's reported hit count, falling back to
// counting cards when the counter is missing. A "nenhum resultado" page is
// zero, not an error.
func CountResults(bodyText string) int {
	if m := resultCountRe.FindStringSubmatch(bodyText); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	if strings.Contains(strings.ToLower(bodyText), "nenhum resultado") {
		return 0
	}
	return strings.Count(bodyText, "Diário publicado em")
}

// CountPages returns the number of result pages, minimum 1.
func CountPages(bodyText string) int {
	if m := pageCountRe.FindStringSubmatch(bodyText); m != nil {
		if n, _ := strconv.Atoi(m[1]); n > 0 {
			return n
		}
	}
	return 1
}

// offsetItems returns copies of page-local items with their indexes rebased
// by base. The originals keep page-local indexes, which still address the
// current page's download links and cards.
func offsetItems(items []SearchResultItem, base int) []SearchResultItem {
	out := make([]SearchResultItem, len(items))
	for i, item := range items {
		item.Index += base
		out[i] = item
	}
	return out
}

// Rank scores candidates and orders them best first. Scoring favors cards
// that mention the processo literally, carry an EXTRATO heading, and were
// published near the contract signature date. Ties break toward the most
// recent publication date.
func Rank(items []SearchResultItem, processo string, contractDate time.Time) []SearchResultItem {
	ranked := make([]SearchResultItem, len(items))
	copy(ranked, items)

	for i := range ranked {
		ranked[i].Score = scoreItem(ranked[i], processo, contractDate)
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].Score != ranked[b].Score {
			return ranked[a].Score > ranked[b].Score
		}
		da, erra := time.Parse("02/01/2006", ranked[a].PublicationDate)
		db, errb := time.Parse("02/01/2006", ranked[b].PublicationDate)
		if erra != nil || errb != nil {
			return false
		}
		return da.After(db)
	})
	return ranked
}

func scoreItem(item SearchResultItem, processo string, contractDate time.Time) float64 {
	var score float64
	lower := strings.ToLower(item.Snippet)

	for kw, points := range keywordPoints {
		if strings.Contains(lower, kw) {
			score += points
		}
	}
	if containsAny(item.Snippet, priorityKeywords) {
		score += 5
	}
	if Matches(processo, item.Snippet) {
		score += 10
	}

	if !contractDate.IsZero() {
		if pub, err := time.Parse("02/01/2006", item.PublicationDate); err == nil {
			diff := pub.Sub(contractDate)
			if diff < 0 {
				diff = -diff
			}
			switch days := int(diff.Hours() / 24); {
			case days <= 7:
				score += 8
			case days <= 15:
				score += 5
			case days <= 30:
				score += 3
			case days <= 60:
				score += 1
			default:
				score -= 2
			}
		}
	}
	return score
}

func containsAny(s string, keywords []string) bool {
	lower := strings.ToLower(s)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// snippetPolicy strips everything but basic formatting from result card HTML
// before it is converted for the audit trail.
var snippetPolicy = bluemonday.UGCPolicy()

// SanitizeSnippet turns a result card's raw HTML into plain markdown for
// storage. Invalid HTML degrades to its text content rather than failing the
// search.
func SanitizeSnippet(cardHTML string) string {
	clean := snippetPolicy.Sanitize(cardHTML)
	md, err := htmltomarkdown.ConvertString(clean)
	if err != nil {
		return strings.TrimSpace(snippetPolicy.Sanitize(strings.ReplaceAll(cardHTML, "<", " <")))
	}
	return strings.TrimSpace(md)
}
