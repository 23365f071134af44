package workflow

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"
)

func buildImportWorkbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	header := []interface{}{"warehouse_id", "type", "liters", "date", "unit_cost", "meter_reading", "notes", "resolution"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("write row %d: %v", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return &buf
}

func TestParseFuelImportWorkbook(t *testing.T) {
	buf := buildImportWorkbook(t, [][]interface{}{
		{"3", "E", "1500.25", "2026-03-01", "2.05", "", "delivery", ""},
		{"3", "C", "80.5", "2026-03-02", "", "120345.5", "", "use_imported"},
	})

	rows, err := ParseFuelImportWorkbook(buf)
	if err != nil {
		t.Fatalf("ParseFuelImportWorkbook: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	first := rows[0]
	if first.RowNumber != 2 || first.WarehouseId != 3 || first.TxType != "E" {
		t.Fatalf("first row parsed wrong: %+v", first)
	}
	if first.Qty != 1500.25 {
		t.Fatalf("expected qty 1500.25, got %v", first.Qty)
	}
	if first.UnitCost == nil || *first.UnitCost != 2.05 {
		t.Fatalf("expected unit cost 2.05, got %v", first.UnitCost)
	}
	if first.MeterReading != nil {
		t.Fatalf("blank meter cell must parse as nil")
	}
	if first.TransactionDate.Format("2006-01-02") != "2026-03-01" {
		t.Fatalf("date parsed wrong: %v", first.TransactionDate)
	}

	second := rows[1]
	if second.MeterReading == nil || *second.MeterReading != 120345.5 {
		t.Fatalf("meter reading parsed wrong: %v", second.MeterReading)
	}
	if string(second.Resolution) != "use_imported" {
		t.Fatalf("resolution parsed wrong: %q", second.Resolution)
	}
}

func TestParseFuelImportWorkbookSkipsBlankRows(t *testing.T) {
	buf := buildImportWorkbook(t, [][]interface{}{
		{"3", "E", "100", "2026-03-01", "", "", "", ""},
		{"", "", "", "", "", "", "", ""},
		{"4", "C", "20", "2026-03-02", "", "", "", ""},
	})
	rows, err := ParseFuelImportWorkbook(buf)
	if err != nil {
		t.Fatalf("ParseFuelImportWorkbook: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected blank row skipped, got %d rows", len(rows))
	}
	if rows[1].RowNumber != 4 {
		t.Fatalf("row numbers must follow the sheet, got %d", rows[1].RowNumber)
	}
}

func TestParseFuelImportWorkbookRejectsBadDate(t *testing.T) {
	buf := buildImportWorkbook(t, [][]interface{}{
		{"3", "E", "100", "not-a-date", "", "", "", ""},
	})
	if _, err := ParseFuelImportWorkbook(buf); err == nil {
		t.Fatalf("expected date parse error")
	}
}

func TestParseImportDateLayouts(t *testing.T) {
	for _, s := range []string{"2026-03-01", "2026-03-01 14:30:00", "2026-03-01T14:30:00Z"} {
		if _, err := parseImportDate(s); err != nil {
			t.Errorf("date %q should parse: %v", s, err)
		}
	}
	if _, err := parseImportDate("31/02/2026"); err == nil {
		t.Errorf("garbage date should fail")
	}
}
