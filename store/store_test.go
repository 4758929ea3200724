package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"conforme/conformity"
	"conforme/extract"
	"conforme/gazette"
	"conforme/portal"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(processo, companyID string, status conformity.Status) Record {
	timely := true
	days := 14
	return Record{
		RunID: "run-1",
		Link: portal.ProcessoLink{
			Processo:    processo,
			CompanyID:   companyID,
			CompanyName: "ACME Corp",
			Path:        portal.NavigationPath{Organ: "SME", Unit: "Unidade", Object: "Obras"},
		},
		Contract: extract.ContractRecord{
			Processo:       processo,
			DataAssinatura: "2025-01-01",
			ValorContrato:  "R$ 40.000,00",
		},
		Publication: gazette.PublicationResult{
			Processo:        processo,
			Found:           true,
			PublicationDate: "15/01/2025",
			Edition:         "13857",
		},
		Conformity: conformity.Result{
			Processo:        processo,
			OverallStatus:   status,
			ConformityScore: 100,
			Timely:          &timely,
			DaysDifference:  &days,
		},
		AuditedAt: time.Now().UTC(),
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := testRecord("SME-PRO-2025/19222", "12.345.678/0001-90", conformity.Conforme)
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Get(ctx, "SME-PRO-2025/19222")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("record not found after save")
	}
	if got.Conformity.OverallStatus != conformity.Conforme {
		t.Fatalf("status = %s, want CONFORME", got.Conformity.OverallStatus)
	}
	if got.Conformity.Timely == nil || !*got.Conformity.Timely {
		t.Fatal("timely flag lost in round trip")
	}
	if got.Link.Path.Organ != "SME" {
		t.Fatalf("organ = %s, want SME", got.Link.Path.Organ)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	s := openTestStore(t)
	got, err := s.Get(context.Background(), "inexistente")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil for missing processo")
	}
}

func TestSaveUpsertsOnSameProcesso(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, testRecord("12345/2021-3", "c1", conformity.Parcial)); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, testRecord("12345/2021-3", "c1", conformity.Conforme)); err != nil {
		t.Fatal(err)
	}

	records, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1 (upsert)", len(records))
	}
	if records[0].Conformity.OverallStatus != conformity.Conforme {
		t.Fatalf("status = %s, want the replacing verdict", records[0].Conformity.OverallStatus)
	}
}

func TestStatusCounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i, status := range []conformity.Status{conformity.Conforme, conformity.Conforme, conformity.NaoConforme} {
		rec := testRecord(
			"SME-PRO-2025/1922"+string(rune('0'+i)),
			"c1", status)
		if err := s.Save(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	counts, err := s.StatusCounts(ctx)
	if err != nil {
		t.Fatalf("StatusCounts: %v", err)
	}
	if counts["CONFORME"] != 2 || counts["NAO_CONFORME"] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestExportCSV(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.Save(ctx, testRecord("SME-PRO-2025/19222", "c1", conformity.Conforme)); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "out.csv")
	if err := s.ExportCSV(ctx, path); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
}

func TestExportXLSX(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.Save(ctx, testRecord("SME-PRO-2025/19222", "c1", conformity.Conforme)); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "out.xlsx")
	if err := s.ExportXLSX(ctx, path); err != nil {
		t.Fatalf("ExportXLSX: %v", err)
	}
}
