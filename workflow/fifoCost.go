package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"bitbucket.org/mmdatafocus/fleet_backend/models"
	"bitbucket.org/mmdatafocus/fleet_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// InventoryLot is one FIFO layer built from a positively priced fuel entry
// during replay. Entries without a price never become lots; liters they would
// have covered are costed via the fallback ladder instead.
type InventoryLot struct {
	RemainingLiters float64
	UnitCost        float64
	EntryDate       time.Time
}

// FuelCostReport is the FIFO costing result for a reporting window.
type FuelCostReport struct {
	From                   time.Time          `json:"from"`
	To                     time.Time          `json:"to"`
	LookbackDays           int                `json:"lookback_days"`
	PlantCosts             map[string]float64 `json:"plant_costs"`
	TransactionCosts       map[int]float64    `json:"transaction_costs"`
	UnpricedTransactionIds []int              `json:"unpriced_transaction_ids"`
}

// sortFifoReplay orders a chain for FIFO replay: chain order, except that on
// an exactly shared timestamp entries come before consumptions, so same-day
// deliveries are drainable by same-day usage.
func sortFifoReplay(chain []*models.FuelTransaction) {
	sort.SliceStable(chain, func(i, j int) bool {
		a, b := chain[i], chain[j]
		if !a.TransactionDate.Equal(b.TransactionDate) {
			return a.TransactionDate.Before(b.TransactionDate)
		}
		if a.TxType != b.TxType {
			return a.TxType == models.FuelTransactionTypeEntry
		}
		if a.InsertionOrder != b.InsertionOrder {
			return a.InsertionOrder < b.InsertionOrder
		}
		return a.ID < b.ID
	})
}

// windowAverageUnitCost is the quantity-weighted mean price of priced entries
// in a loaded chain. Zero when no priced entry exists.
func windowAverageUnitCost(chain []*models.FuelTransaction) float64 {
	var liters, cost float64
	for _, row := range chain {
		if row.TxType != models.FuelTransactionTypeEntry || row.UnitCost == nil || *row.UnitCost <= 0 {
			continue
		}
		liters += row.Qty
		cost += row.Qty * *row.UnitCost
	}
	if liters <= 0 {
		return 0
	}
	return cost / liters
}

// replayFifoWarehouse replays one warehouse's chain (already loaded over
// [from-lookback, to]) and costs every consumption dated within [from, to].
//
// Only entries with a positive unit cost become lots; an unpriced entry
// must not occupy a queue position and shift which lot a consumption
// drains. Each consumption drains the oldest lots whose entry date does not
// lie after the consumption date; later-dated lots are skipped, not
// consumed. Liters that no lot covers fall back to the window's weighted
// average price, then to the product's default price; consumptions with
// neither are reported as unpriced and excluded from totals.
func replayFifoWarehouse(chain []*models.FuelTransaction, from, to time.Time, defaultUnitCost float64) (map[int]float64, []int) {
	sortFifoReplay(chain)
	avg := windowAverageUnitCost(chain)

	costs := make(map[int]float64)
	unpriced := make([]int, 0)
	lots := make([]*InventoryLot, 0)

	inWindow := func(d time.Time) bool {
		return !d.Before(from) && !d.After(to)
	}

	for _, row := range chain {
		if row.TxType == models.FuelTransactionTypeEntry {
			if row.UnitCost == nil || *row.UnitCost <= 0 {
				continue
			}
			lots = append(lots, &InventoryLot{
				RemainingLiters: row.Qty,
				UnitCost:        *row.UnitCost,
				EntryDate:       row.TransactionDate,
			})
			continue
		}

		need := row.Qty
		var cost float64
		for _, lot := range lots {
			if need <= models.LotDrainTolerance {
				break
			}
			if lot.RemainingLiters <= models.LotDrainTolerance {
				continue
			}
			if lot.EntryDate.After(row.TransactionDate) {
				continue
			}
			take := need
			if lot.RemainingLiters < take {
				take = lot.RemainingLiters
			}
			lot.RemainingLiters -= take
			need -= take
			cost += take * lot.UnitCost
		}
		unpricedLiters := need

		priced := true
		if unpricedLiters > models.LotDrainTolerance {
			switch {
			case avg > 0:
				cost += unpricedLiters * avg
			case defaultUnitCost > 0:
				cost += unpricedLiters * defaultUnitCost
			default:
				priced = false
			}
		}

		if !inWindow(row.TransactionDate) {
			continue
		}
		if priced {
			costs[row.ID] = cost
		} else {
			unpriced = append(unpriced, row.ID)
		}
	}
	return costs, unpriced
}

// GetFuelCostReport runs FIFO costing for the given warehouses over
// [from, to], loading lookback-days of earlier entries so the window's
// opening lots carry real prices. Totals are aggregated per plant code.
func GetFuelCostReport(ctx context.Context, warehouseIds []int, from, to time.Time) (*FuelCostReport, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if to.Before(from) {
		return nil, fmt.Errorf("invalid report window: from=%s to=%s", from.Format(time.DateOnly), to.Format(time.DateOnly))
	}
	logger := config.GetLogger()
	lookbackDays := config.FifoLookbackDays()
	loadFrom := from.AddDate(0, 0, -lookbackDays)

	db := config.GetDB()
	var warehouses []*models.FuelWarehouse
	warehouseQuery := db.WithContext(ctx).Where("business_id = ?", businessId)
	if warehouseIds = utils.UniqueSlice(warehouseIds); len(warehouseIds) > 0 {
		warehouseQuery = warehouseQuery.Where("id IN ?", warehouseIds)
	}
	if err := warehouseQuery.Find(&warehouses).Error; err != nil {
		return nil, err
	}
	if len(warehouses) == 0 {
		return nil, errors.New("no warehouses match the report request")
	}

	ids := make([]int, 0, len(warehouses))
	for _, w := range warehouses {
		ids = append(ids, w.ID)
	}
	plantCodes, err := models.PlantCodesByWarehouse(ctx, businessId, ids)
	if err != nil {
		return nil, err
	}
	defaultCosts, err := models.DefaultUnitCosts(ctx, businessId)
	if err != nil {
		return nil, err
	}

	report := &FuelCostReport{
		From:                   from,
		To:                     to,
		LookbackDays:           lookbackDays,
		PlantCosts:             make(map[string]float64),
		TransactionCosts:       make(map[int]float64),
		UnpricedTransactionIds: make([]int, 0),
	}

	for _, warehouse := range warehouses {
		var chain []*models.FuelTransaction
		err := db.WithContext(ctx).
			Where("business_id = ? AND warehouse_id = ? AND transaction_date >= ? AND transaction_date <= ?",
				businessId, warehouse.ID, loadFrom, to).
			Order("transaction_date, insertion_order, id").
			Find(&chain).Error
		if err != nil {
			return nil, err
		}
		costs, unpriced := replayFifoWarehouse(chain, from, to, defaultCosts[warehouse.ProductId])

		plantCode := plantCodes[warehouse.ID]
		for id, cost := range costs {
			report.TransactionCosts[id] = cost
			report.PlantCosts[plantCode] += cost
		}
		report.UnpricedTransactionIds = append(report.UnpricedTransactionIds, unpriced...)
	}
	sort.Ints(report.UnpricedTransactionIds)

	logger.WithFields(logrus.Fields{
		"business_id":   businessId,
		"warehouses":    len(warehouses),
		"costed":        len(report.TransactionCosts),
		"unpriced":      len(report.UnpricedTransactionIds),
		"lookback_days": lookbackDays,
	}).Info("fuel.cost.report.done")
	return report, nil
}

// FifoUnitCostAsOf resolves the per-liter FIFO cost of one consumption by
// replaying the warehouse's full history up to the consumption date. Used
// by transfer price propagation, which must price the exact liters moved.
func FifoUnitCostAsOf(tx *gorm.DB, businessId string, consumption *models.FuelTransaction, defaultUnitCost float64) (float64, error) {
	var chain []*models.FuelTransaction
	err := tx.
		Where("business_id = ? AND warehouse_id = ? AND transaction_date <= ?",
			businessId, consumption.WarehouseId, consumption.TransactionDate).
		Order("transaction_date, insertion_order, id").
		Find(&chain).Error
	if err != nil {
		return 0, err
	}

	costs, _ := replayFifoWarehouse(chain, consumption.TransactionDate, consumption.TransactionDate, defaultUnitCost)
	cost, ok := costs[consumption.ID]
	if !ok || consumption.Qty <= 0 {
		return 0, fmt.Errorf("%w: consumption_id=%d", models.ErrInsufficientPricingData, consumption.ID)
	}
	return cost / consumption.Qty, nil
}
