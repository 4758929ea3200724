package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFreshWhenFileMissing(t *testing.T) {
	cp, err := Load(filepath.Join(t.TempDir(), "cp.json"), 2025)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cp.CompanyDone("x") || cp.ProcessoDone("y") {
		t.Fatal("fresh checkpoint should have no completed units")
	}
}

func TestResumeRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.json")

	cp, err := Load(path, 2025)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cp.MarkCompany("12.345.678/0001-90"); err != nil {
		t.Fatalf("MarkCompany: %v", err)
	}
	if err := cp.MarkProcesso("SME-PRO-2025/19222"); err != nil {
		t.Fatalf("MarkProcesso: %v", err)
	}
	if err := cp.MarkProcessoFailed("SMS-PRO-2025/00001", "captcha unresolved"); err != nil {
		t.Fatalf("MarkProcessoFailed: %v", err)
	}

	resumed, err := Load(path, 2025)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !resumed.CompanyDone("12.345.678/0001-90") {
		t.Fatal("company completion lost across reload")
	}
	if !resumed.ProcessoDone("SME-PRO-2025/19222") {
		t.Fatal("processo completion lost across reload")
	}
	if resumed.ProcessoDone("SMS-PRO-2025/00001") {
		t.Fatal("failed processo must be retried on resume, not skipped")
	}
	done, failed := resumed.Counts()
	if done != 1 || failed != 1 {
		t.Fatalf("counts = %d done, %d failed; want 1, 1", done, failed)
	}
}

func TestMarkProcessoClearsEarlierFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.json")
	cp, err := Load(path, 2025)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := cp.MarkProcessoFailed("SME-PRO-2025/19222", "transient"); err != nil {
		t.Fatal(err)
	}
	if err := cp.MarkProcesso("SME-PRO-2025/19222"); err != nil {
		t.Fatal(err)
	}

	_, failed := cp.Counts()
	if failed != 0 {
		t.Fatalf("failed = %d, want 0 after success", failed)
	}
}

func TestDifferentFilterYearStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.json")

	cp, err := Load(path, 2024)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cp.MarkProcesso("12345/2024-1"); err != nil {
		t.Fatal(err)
	}

	other, err := Load(path, 2025)
	if err != nil {
		t.Fatalf("reload with other year: %v", err)
	}
	if other.ProcessoDone("12345/2024-1") {
		t.Fatal("checkpoint from another filter year must be ignored")
	}
}

func TestFlushLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cp.json")
	cp, err := Load(path, 2025)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cp.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "cp.json" {
			t.Fatalf("unexpected leftover file %s", e.Name())
		}
	}
}
