package audit

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
	_ "modernc.org/sqlite"
)

const sheetName = "Duplicates"

// WriteXLSX writes pairs to a spreadsheet at path, one row per pair.
func WriteXLSX(path string, pairs []DuplicatePair) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	header := make([]any, len(reportColumns))
	for i, c := range reportColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}

	for i, p := range pairs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := p.values()
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	return f.SaveAs(path)
}

// WriteSQLite replaces the database at path with a near_duplicates table.
func WriteSQLite(path string, pairs []DuplicatePair) error {
	_ = os.Remove(path)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	colTypes := map[string]string{
		"product_id": "INTEGER", "candidate_id": "INTEGER",
		"score": "REAL", "same_packaging": "INTEGER", "same_weight": "INTEGER",
	}
	defs := make([]string, 0, len(reportColumns))
	for _, c := range reportColumns {
		t := colTypes[c]
		if t == "" {
			t = "TEXT"
		}
		defs = append(defs, fmt.Sprintf("%q %s", c, t))
	}
	if _, err := db.Exec(`CREATE TABLE "near_duplicates" (` + strings.Join(defs, ",") + `)`); err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	ph := strings.TrimRight(strings.Repeat("?,", len(reportColumns)), ",")
	stmt, err := tx.Prepare(`INSERT INTO "near_duplicates" VALUES (` + ph + `)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, p := range pairs {
		if _, err := stmt.Exec(p.values()...); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_near_duplicates_brand ON near_duplicates(brand)`)
	return err
}
