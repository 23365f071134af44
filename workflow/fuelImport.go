package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"bitbucket.org/mmdatafocus/fleet_backend/models"
	"bitbucket.org/mmdatafocus/fleet_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// FuelImportRow is one parsed spreadsheet row waiting to be appended.
type FuelImportRow struct {
	RowNumber       int                            `json:"row_number"`
	WarehouseId     int                            `json:"warehouse_id" binding:"required"`
	TxType          string                         `json:"tx_type" binding:"required"`
	Qty             float64                        `json:"qty" binding:"required"`
	TransactionDate time.Time                      `json:"transaction_date" binding:"required"`
	UnitCost        *float64                       `json:"unit_cost"`
	MeterReading    *float64                       `json:"meter_reading"`
	Notes           string                         `json:"notes"`
	Resolution      models.MeterConflictResolution `json:"resolution"`
}

// MeterConflict reports an imported meter reading that would land before a
// reading already recorded later in the same warehouse. Never auto-resolved;
// the operator must resend the row with an explicit resolution.
type MeterConflict struct {
	RowNumber             int       `json:"row_number"`
	WarehouseId           int       `json:"warehouse_id"`
	ImportedReading       float64   `json:"imported_reading"`
	ImportedDate          time.Time `json:"imported_date"`
	ExistingTransactionId int       `json:"existing_transaction_id"`
	ExistingReading       float64   `json:"existing_reading"`
	ExistingDate          time.Time `json:"existing_date"`
}

// FuelImportFailure is one row the import rejected, with the reason.
type FuelImportFailure struct {
	RowNumber int    `json:"row_number"`
	Reason    string `json:"reason"`
}

// FuelImportResult partitions a batch import. Appended holds the created
// transaction ids; Skipped and Failed reference spreadsheet row numbers;
// Conflicts were left unapplied pending an operator decision.
type FuelImportResult struct {
	BatchId   string              `json:"batch_id"`
	Appended  []int               `json:"appended"`
	Skipped   []int               `json:"skipped"`
	Conflicts []MeterConflict     `json:"conflicts"`
	Failed    []FuelImportFailure `json:"failed"`
}

// latestMeteredAfter finds the newest metered transaction in a warehouse
// dated strictly after the given date, or nil.
func latestMeteredAfter(ctx context.Context, businessId string, warehouseId int, date time.Time) (*models.FuelTransaction, error) {
	db := config.GetDB()
	var existing models.FuelTransaction
	err := db.WithContext(ctx).
		Where("business_id = ? AND warehouse_id = ? AND meter_reading IS NOT NULL AND transaction_date > ?",
			businessId, warehouseId, date).
		Order("transaction_date DESC, insertion_order DESC, id DESC").
		Limit(1).
		Take(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, err
}

// ImportFuelTransactions appends a parsed batch oldest-first. Each row gets
// its own append transaction, so one bad row never poisons the batch.
//
// A row carrying a meter reading that predates an existing reading is a
// conflict: with no resolution it is reported and left unapplied; with
// use_imported it is appended reading and all; with keep_existing it is
// appended without the reading; with skip it is dropped.
func ImportFuelTransactions(ctx context.Context, rows []*FuelImportRow) (*FuelImportResult, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	logger := config.GetLogger()

	result := &FuelImportResult{
		BatchId:   uuid.NewString(),
		Appended:  make([]int, 0),
		Skipped:   make([]int, 0),
		Conflicts: make([]MeterConflict, 0),
		Failed:    make([]FuelImportFailure, 0),
	}
	logger.WithFields(logrus.Fields{
		"business_id": businessId,
		"batch_id":    result.BatchId,
		"rows":        len(rows),
	}).Info("fuel.import.start")

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TransactionDate.Before(rows[j].TransactionDate)
	})

	for _, row := range rows {
		if !row.Resolution.Valid() {
			result.Failed = append(result.Failed, FuelImportFailure{
				RowNumber: row.RowNumber,
				Reason:    fmt.Sprintf("unknown resolution %q", string(row.Resolution)),
			})
			continue
		}

		input := &models.NewFuelTransaction{
			WarehouseId:     row.WarehouseId,
			TxType:          row.TxType,
			Qty:             row.Qty,
			TransactionDate: row.TransactionDate,
			UnitCost:        row.UnitCost,
			MeterReading:    row.MeterReading,
			Notes:           row.Notes,
		}

		if row.MeterReading != nil {
			existing, err := latestMeteredAfter(ctx, businessId, row.WarehouseId, row.TransactionDate)
			if err != nil {
				result.Failed = append(result.Failed, FuelImportFailure{RowNumber: row.RowNumber, Reason: err.Error()})
				continue
			}
			if existing != nil {
				switch row.Resolution {
				case models.MeterConflictUnresolved:
					result.Conflicts = append(result.Conflicts, MeterConflict{
						RowNumber:             row.RowNumber,
						WarehouseId:           row.WarehouseId,
						ImportedReading:       *row.MeterReading,
						ImportedDate:          row.TransactionDate,
						ExistingTransactionId: existing.ID,
						ExistingReading:       *existing.MeterReading,
						ExistingDate:          existing.TransactionDate,
					})
					continue
				case models.MeterConflictSkip:
					result.Skipped = append(result.Skipped, row.RowNumber)
					continue
				case models.MeterConflictKeepExisting:
					input.MeterReading = nil
				case models.MeterConflictUseImported:
					// append with the imported reading
				}
			}
		}

		ft, err := AppendFuelTransaction(ctx, input)
		if err != nil {
			result.Failed = append(result.Failed, FuelImportFailure{RowNumber: row.RowNumber, Reason: err.Error()})
			continue
		}
		result.Appended = append(result.Appended, ft.ID)
	}

	logger.WithFields(logrus.Fields{
		"business_id": businessId,
		"batch_id":    result.BatchId,
		"appended":    len(result.Appended),
		"skipped":     len(result.Skipped),
		"conflicts":   len(result.Conflicts),
		"failed":      len(result.Failed),
	}).Info("fuel.import.done")
	return result, nil
}

var importDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01-02-06",
	"1/2/06 15:04",
	time.RFC3339,
}

func parseImportDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range importDateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

func parseImportFloat(s string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

// ParseFuelImportWorkbook reads the first sheet of an .xlsx with columns
// warehouse_id, type, liters, date, unit_cost, meter_reading, notes,
// resolution (header row required; trailing columns optional). Quantities and
// prices are parsed as decimals so spreadsheet float noise never reaches the
// ledger.
func ParseFuelImportWorkbook(r io.Reader) ([]*FuelImportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	cells, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(cells) < 2 {
		return nil, errors.New("workbook has no data rows")
	}

	cell := func(row []string, idx int) string {
		if idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	rows := make([]*FuelImportRow, 0, len(cells)-1)
	for i, raw := range cells[1:] {
		rowNumber := i + 2 // 1-based, after the header
		if len(raw) == 0 || cell(raw, 0) == "" {
			continue
		}

		warehouseId, err := parseImportFloat(cell(raw, 0))
		if err != nil {
			return nil, fmt.Errorf("row %d: warehouse_id: %w", rowNumber, err)
		}
		qty, err := parseImportFloat(cell(raw, 2))
		if err != nil {
			return nil, fmt.Errorf("row %d: liters: %w", rowNumber, err)
		}
		date, err := parseImportDate(cell(raw, 3))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNumber, err)
		}

		row := &FuelImportRow{
			RowNumber:       rowNumber,
			WarehouseId:     int(warehouseId),
			TxType:          cell(raw, 1),
			Qty:             qty,
			TransactionDate: date,
			Notes:           cell(raw, 6),
			Resolution:      models.MeterConflictResolution(strings.ToLower(cell(raw, 7))),
		}
		if s := cell(raw, 4); s != "" {
			v, err := parseImportFloat(s)
			if err != nil {
				return nil, fmt.Errorf("row %d: unit_cost: %w", rowNumber, err)
			}
			row.UnitCost = &v
		}
		if s := cell(raw, 5); s != "" {
			v, err := parseImportFloat(s)
			if err != nil {
				return nil, fmt.Errorf("row %d: meter_reading: %w", rowNumber, err)
			}
			row.MeterReading = &v
		}
		rows = append(rows, row)
	}
	return rows, nil
}
