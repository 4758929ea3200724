package gazette

import (
	"fmt"
	"regexp"
	"strings"
)

// Processo identifiers arrive in three shapes: the old municipal format
// (12345/2021-3), the current hyphenated format (SME-PRO-2025/19222) and the
// compact form the contract portal renders (SMEPRO202519222). Normalize maps
// all three to a canonical string; the gazette search accepts the canonical
// form directly.
var (
	oldFormatRe     = regexp.MustCompile(`^\d{5}/\d{4}-\d$`)
	newFormatRe     = regexp.MustCompile(`^[A-Z]{2,4}-[A-Z]{2,4}-\d{4}/\d{4,6}$`)
	compactFormatRe = regexp.MustCompile(`^([A-Z]{4,8})(\d{4})(\d{4,6})$`)
)

// Normalize maps any recognized processo identifier to its canonical form.
// Canonical old format is returned unchanged; compact identifiers expand to
// the hyphenated current format. Normalization is idempotent: canonical
// input always maps to itself. Unrecognized input is uppercased and trimmed
// but otherwise preserved, so the search still runs on whatever the portal
// handed us.
func Normalize(processo string) string {
	p := strings.ToUpper(strings.TrimSpace(processo))

	if oldFormatRe.MatchString(p) || newFormatRe.MatchString(p) {
		return p
	}

	if m := compactFormatRe.FindStringSubmatch(p); m != nil {
		letters, year, number := m[1], m[2], m[3]
		// The trailing three letters are the series token (PRO, CAP);
		// everything before is the organ acronym.
		sigla := letters[:len(letters)-3]
		series := letters[len(letters)-3:]
		return fmt.Sprintf("%s-%s-%s/%s", sigla, series, year, number)
	}

	return p
}

// Matches reports whether text mentions the processo, ignoring separators,
// spacing and case. The gazette PDF text often breaks identifiers across
// lines or drops hyphens, so comparison happens on stripped forms.
func Matches(processo, text string) bool {
	p := stripSeparators(Normalize(processo))
	if p == "" {
		return false
	}
	return strings.Contains(stripSeparators(text), p)
}

func stripSeparators(s string) string {
	r := strings.NewReplacer("-", "", "/", "", " ", "", "\n", "", "\t", "")
	return strings.ToLower(r.Replace(s))
}
