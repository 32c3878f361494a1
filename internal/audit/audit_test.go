package audit

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/navid-fn/pelletradar/internal/models"
)

func product(id uint, brand, normalized string) models.Product {
	return models.Product{ID: id, Brand: brand, Name: normalized, NormalizedName: normalized}
}

func sampleProducts() []models.Product {
	return []models.Product{
		product(1, "SIA Staļi", "6_mm_kokskaidu_granulas_15kg_maisos_15kg"),
		product(2, "sia staļi", "6mm_kokskaidu_granulas_15kg_maisos_15kg"),
		product(3, "SIA Staļi", "ozola_briketes_10kg"),
		product(4, "Latgran", "6mm_kokskaidu_granulas_15kg_maisos_15kg"),
	}
}

func TestFindNearDuplicates(t *testing.T) {
	pairs := FindNearDuplicates(sampleProducts(), 0.85)
	if len(pairs) != 1 {
		t.Fatalf("Expected 1 pair, got %d: %+v", len(pairs), pairs)
	}
	if pairs[0].ProductID != 1 || pairs[0].CandidateID != 2 {
		t.Errorf("Expected pair (1, 2), got (%d, %d)", pairs[0].ProductID, pairs[0].CandidateID)
	}
	if pairs[0].Score <= 0.85 {
		t.Errorf("Expected score above threshold, got %v", pairs[0].Score)
	}
}

func TestFindNearDuplicatesNeverCrossesBrands(t *testing.T) {
	products := []models.Product{
		product(1, "A", "granulas_15kg"),
		product(2, "B", "granulas_15kg"),
	}
	if pairs := FindNearDuplicates(products, 0.5); len(pairs) != 0 {
		t.Errorf("Expected no pairs across brands, got %+v", pairs)
	}
}

func TestFindNearDuplicatesOrdersByScore(t *testing.T) {
	products := []models.Product{
		product(1, "A", "granulas_15kg"),
		product(2, "A", "granulas_16kg"),
		product(3, "A", "granulaz_16kgs"),
	}
	pairs := FindNearDuplicates(products, 0.5)
	for i := 1; i < len(pairs); i++ {
		if pairs[i].Score > pairs[i-1].Score {
			t.Errorf("Pairs not sorted by score: %+v", pairs)
		}
	}
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "duplicates.xlsx")
	pairs := FindNearDuplicates(sampleProducts(), 0.85)
	if err := WriteXLSX(path, pairs); err != nil {
		t.Fatalf("WriteXLSX failed: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected header and 1 row, got %d rows", len(rows))
	}
	if rows[0][0] != "brand" || rows[1][1] != "1" {
		t.Errorf("Unexpected sheet contents %v", rows)
	}
}

func TestWriteSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "duplicates.db")
	pairs := FindNearDuplicates(sampleProducts(), 0.85)
	if err := WriteSQLite(path, pairs); err != nil {
		t.Fatalf("WriteSQLite failed: %v", err)
	}
	// A second export replaces the first.
	if err := WriteSQLite(path, pairs); err != nil {
		t.Fatalf("WriteSQLite failed on rerun: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	var count int
	var candidate int64
	if err := db.QueryRow(`SELECT COUNT(*), MAX(candidate_id) FROM near_duplicates`).Scan(&count, &candidate); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if count != 1 || candidate != 2 {
		t.Errorf("Expected 1 row with candidate 2, got %d rows, candidate %d", count, candidate)
	}
}
