package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"
)

var exportHeader = []string{
	"Processo", "Empresa", "CNPJ", "Órgão", "Unidade", "Objeto (hierarquia)",
	"Status", "Score", "Prazo OK", "Dias", "Publicado", "Data Publicação", "Edição", "URL",
}

func exportRow(rec Record) []string {
	timely := ""
	if rec.Conformity.Timely != nil {
		if *rec.Conformity.Timely {
			timely = "SIM"
		} else {
			timely = "NÃO"
		}
	}
	days := ""
	if rec.Conformity.DaysDifference != nil {
		days = strconv.Itoa(*rec.Conformity.DaysDifference)
	}
	published := "NÃO"
	if rec.Publication.Found {
		published = "SIM"
	}
	return []string{
		rec.Conformity.Processo,
		rec.Link.CompanyName,
		rec.Link.CompanyID,
		rec.Link.Path.Organ,
		rec.Link.Path.Unit,
		rec.Link.Path.Object,
		string(rec.Conformity.OverallStatus),
		strconv.Itoa(rec.Conformity.ConformityScore),
		timely,
		days,
		published,
		rec.Publication.PublicationDate,
		rec.Publication.Edition,
		rec.Publication.PublicationURL,
	}
}

// ExportXLSX writes every audited unit to a spreadsheet for the auditors.
func (s *Store) ExportXLSX(ctx context.Context, path string) error {
	records, err := s.List(ctx)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Conformidade"
	f.SetSheetName("Sheet1", sheet)

	for col, h := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("%w: header cell: %v", ErrPersistence, err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("%w: write header: %v", ErrPersistence, err)
		}
	}

	for i, rec := range records {
		for col, v := range exportRow(rec) {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return fmt.Errorf("%w: row cell: %v", ErrPersistence, err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("%w: write row: %v", ErrPersistence, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("%w: save xlsx: %v", ErrPersistence, err)
	}
	return nil
}

// ExportCSV writes the same rows as ExportXLSX in CSV for scripted consumers.
func (s *Store) ExportCSV(ctx context.Context, path string) error {
	records, err := s.List(ctx)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: create csv: %v", ErrPersistence, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(exportHeader); err != nil {
		return fmt.Errorf("%w: write csv header: %v", ErrPersistence, err)
	}
	for _, rec := range records {
		if err := w.Write(exportRow(rec)); err != nil {
			return fmt.Errorf("%w: write csv row: %v", ErrPersistence, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: flush csv: %v", ErrPersistence, err)
	}
	return nil
}
