package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"conforme/portal"
)

// companies resolves the company set for this run. A CSV seed file takes
// precedence over portal discovery; auditors often re-run a known subset.
func (r *Runner) companies(ctx context.Context) ([]portal.CompanyRecord, error) {
	if r.cfg.Run.CompanyCSV != "" {
		return readCompanyCSV(r.cfg.Run.CompanyCSV)
	}

	companies, err := r.collector.Collect(ctx)
	if errors.Is(err, portal.ErrNavigationTimeout) {
		// One retry from a hard reset; the listing occasionally wedges on
		// first load and only recovers after navigating away and back.
		r.logger.Warn("pipeline: company listing did not stabilize, retrying from a hard reset")
		if resetErr := r.collector.HardReset(ctx); resetErr != nil {
			return nil, fmt.Errorf("pipeline: hard reset before retry: %w", resetErr)
		}
		companies, err = r.collector.Collect(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("pipeline: enumerate companies: %w", err)
	}
	return companies, nil
}

// readCompanyCSV reads a "company_id,name" seed file. A header row is
// detected and skipped.
func readCompanyCSV(path string) ([]portal.CompanyRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: open company csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var out []portal.CompanyRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("pipeline: read company csv: %w", err)
		}
		if len(row) < 2 {
			continue
		}
		id := strings.TrimSpace(row[0])
		name := strings.TrimSpace(row[1])
		if id == "" || strings.EqualFold(id, "company_id") || strings.EqualFold(id, "cnpj") {
			continue
		}
		out = append(out, portal.CompanyRecord{CompanyID: id, Name: name})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("pipeline: company csv %s has no usable rows", path)
	}
	return out, nil
}
