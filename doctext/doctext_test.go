package doctext

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNormalizeText(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"EXTRATO  DO\nCONTRATO", "EXTRATO DO CONTRATO"},
		{"  SME-PRO-2025/19222\t\t", "SME-PRO-2025/19222"},
		{"a\x00b", "ab"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeText(c.in); got != c.want {
			t.Errorf("NormalizeText(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDecodeString(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`linha um\nlinha dois`, "linha um\nlinha dois"},
		{`par\(\)`, "par()"},
		{`espa\040o`, "espa o"},
		{`sem escapes`, "sem escapes"},
	}
	for _, c := range cases {
		if got := decodeString([]byte(c.in)); got != c.want {
			t.Errorf("decodeString(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestStreamTextOperators(t *testing.T) {
	stream := []byte("BT\n(EXTRATO DO CONTRATO) Tj\n0 -12 Td\n[(PROCESSO ) (SME-PRO-2025/19222)] TJ\nT*\n(VALOR: R$ 40.000,00) Tj\nET")
	got := streamText(stream)

	for _, want := range []string{"EXTRATO DO CONTRATO", "PROCESSO SME-PRO-2025/19222", "VALOR: R$ 40.000,00"} {
		if !strings.Contains(got, want) {
			t.Errorf("streamText output %q missing %q", got, want)
		}
	}
}

func TestFromPDFReportsParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-pdf.pdf")
	if err := os.WriteFile(path, []byte("isto não é um pdf"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := FromPDF(path)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
}
