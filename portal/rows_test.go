package portal

import (
	"context"
	"errors"
	"testing"
)

// scrollFake simulates the virtualized company table: each scroll pass
// materializes the next window of rows.
type scrollFake struct {
	windows [][]CompanyRecord
	pos     int
}

func (f *scrollFake) Open(ctx context.Context) error { return nil }

func (f *scrollFake) ScrollCompanies(ctx context.Context) error {
	if f.pos < len(f.windows)-1 {
		f.pos++
	}
	return nil
}

func (f *scrollFake) VisibleCompanies(ctx context.Context) ([]CompanyRecord, error) {
	return f.windows[f.pos], nil
}

func (f *scrollFake) SelectCompany(ctx context.Context, c CompanyRecord) error { return nil }
func (f *scrollFake) ListNodes(ctx context.Context, level Level) ([]string, error) {
	return nil, nil
}
func (f *scrollFake) SelectNode(ctx context.Context, level Level, name string) error { return nil }
func (f *scrollFake) CollectLinks(ctx context.Context) ([]ProcessoLink, error)       { return nil, nil }
func (f *scrollFake) Reset(ctx context.Context) error                                { return nil }
func (f *scrollFake) HardReset(ctx context.Context) error                            { return nil }

func company(id string) CompanyRecord { return CompanyRecord{CompanyID: id, Name: "empresa " + id} }

func TestRowCollectorConverges(t *testing.T) {
	fake := &scrollFake{windows: [][]CompanyRecord{
		{company("1")},
		{company("1"), company("2")},
		{company("2"), company("3")},
		{company("2"), company("3")}, // stable from here on
	}}

	got, err := NewRowCollector(fake, 10, nil).Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d companies, want 3", len(got))
	}
	// First-seen order preserved.
	for i, want := range []string{"1", "2", "3"} {
		if got[i].CompanyID != want {
			t.Fatalf("company[%d] = %s, want %s", i, got[i].CompanyID, want)
		}
	}
}

// correctiveFake converges, then reveals a dropped row on the pass after
// convergence.
type correctiveFake struct {
	scrollFake
	passes int
}

func (f *correctiveFake) VisibleCompanies(ctx context.Context) ([]CompanyRecord, error) {
	f.passes++
	if f.passes >= 4 {
		return []CompanyRecord{company("1"), company("2")}, nil
	}
	return []CompanyRecord{company("1")}, nil
}

func TestRowCollectorCorrectivePassRecoversRows(t *testing.T) {
	fake := &correctiveFake{}
	fake.windows = [][]CompanyRecord{nil}

	got, err := NewRowCollector(fake, 10, nil).Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d companies, want 2 (corrective pass must pick up dropped row)", len(got))
	}
}

// churnFake never stabilizes: every pass produces a new row.
type churnFake struct {
	scrollFake
	n int
}

func (f *churnFake) VisibleCompanies(ctx context.Context) ([]CompanyRecord, error) {
	f.n++
	return []CompanyRecord{company(string(rune('a' + f.n)))}, nil
}

func TestRowCollectorTimesOutOnChurn(t *testing.T) {
	fake := &churnFake{}
	fake.windows = [][]CompanyRecord{nil}

	_, err := NewRowCollector(fake, 5, nil).Collect(context.Background())
	if !errors.Is(err, ErrNavigationTimeout) {
		t.Fatalf("err = %v, want ErrNavigationTimeout", err)
	}
}
