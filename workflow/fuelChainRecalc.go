package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"bitbucket.org/mmdatafocus/fleet_backend/models"
	"bitbucket.org/mmdatafocus/fleet_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// FuelTransactionEdit carries the mutable fields of a ledger row. Nil means
// leave unchanged. Type, warehouse and product are immutable after creation.
type FuelTransactionEdit struct {
	Qty             *float64   `json:"qty"`
	TransactionDate *time.Time `json:"transaction_date"`
	MeterReading    *float64   `json:"meter_reading"`
	Notes           *string    `json:"notes"`
}

func (e *FuelTransactionEdit) touchesChain() bool {
	return e.Qty != nil || e.TransactionDate != nil
}

// applyFuelEdit mutates the target row in a loaded chain and returns the rows
// whose stored balances changed. Pure: callers persist.
//
// The cascade starts at the earlier of the row's old and new chain positions,
// so breaks that predate the edit point are left untouched.
func applyFuelEdit(chain []*models.FuelTransaction, targetId int, edit *FuelTransactionEdit) ([]*models.FuelTransaction, error) {
	SortFuelChain(chain)
	oldIdx := chainIndexOf(chain, targetId)
	if oldIdx < 0 {
		return nil, utils.ErrorRecordNotFound
	}
	target := chain[oldIdx]

	if edit.Qty != nil {
		if *edit.Qty <= 0 {
			return nil, &models.InvalidQuantityError{Qty: *edit.Qty}
		}
		target.Qty = *edit.Qty
	}
	if edit.TransactionDate != nil {
		target.TransactionDate = edit.TransactionDate.UTC()
	}
	if edit.MeterReading != nil {
		target.MeterReading = edit.MeterReading
	}
	if edit.Notes != nil {
		target.Notes = *edit.Notes
	}

	SortFuelChain(chain)
	newIdx := chainIndexOf(chain, targetId)
	start := oldIdx
	if newIdx < start {
		start = newIdx
	}
	return RecomputeFuelChain(chain, start), nil
}

// meterEditAllowed checks the meter-edit restriction: only the chain's
// latest row may carry a corrected reading.
func meterEditAllowed(target, latest *models.FuelTransaction) error {
	if latest == nil || latest.ID != target.ID {
		return fmt.Errorf("%w: transaction_id=%d", models.ErrMeterEditRestrictedToLatest, target.ID)
	}
	return nil
}

// EditFuelTransactionByID edits qty, date, meter reading or notes of one row
// and cascades balance recomputation over every row at or after the edit
// point. All writes happen in one transaction under the warehouse lock; any
// failure rolls the whole cascade back.
//
// Returns the number of rows whose stored state changed (at least 1: the
// edited row itself). An edit that changes nothing downstream still counts
// the row it touched, so repeating the same edit reports the same count.
func EditFuelTransactionByID(ctx context.Context, transactionId int, edit *FuelTransactionEdit) (int, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return 0, errors.New("business id is required")
	}
	logger := config.GetLogger()

	db := config.GetDB()
	target, err := models.GetFuelTransaction(db.WithContext(ctx), businessId, transactionId)
	if err != nil {
		return 0, err
	}

	if edit.MeterReading != nil {
		warehouse, err := models.GetFuelWarehouse(ctx, target.WarehouseId)
		if err != nil {
			return 0, err
		}
		if warehouse.HasMeter == nil || !*warehouse.HasMeter {
			return 0, fmt.Errorf("%w: warehouse_id=%d", models.ErrMeterNotSupported, warehouse.ID)
		}
		latest, err := models.GetLatestFuelTransaction(db.WithContext(ctx), businessId, target.WarehouseId)
		if err != nil {
			return 0, err
		}
		if err := meterEditAllowed(target, latest); err != nil {
			return 0, err
		}
	}

	redisLock := obtainWarehouseRedisLock(ctx, logger, businessId, target.WarehouseId)
	defer releaseRedisLock(ctx, logger, redisLock)

	recalculated := 0
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireFuelWarehouseLock(tx, businessId, target.WarehouseId); err != nil {
			return err
		}
		defer ReleaseFuelWarehouseLock(tx, businessId, target.WarehouseId)

		if edit.MeterReading != nil {
			// An append may have raced the pre-check; the restriction only
			// counts if the row is still the latest under the lock.
			latest, err := models.GetLatestFuelTransaction(tx, businessId, target.WarehouseId)
			if err != nil {
				return err
			}
			if err := meterEditAllowed(target, latest); err != nil {
				return err
			}
		}

		if !edit.touchesChain() {
			// Meter or notes only: balances are untouched, update in place.
			updates := map[string]interface{}{}
			if edit.MeterReading != nil {
				updates["meter_reading"] = *edit.MeterReading
			}
			if edit.Notes != nil {
				updates["notes"] = *edit.Notes
			}
			if len(updates) == 0 {
				recalculated = 1
				return nil
			}
			if err := tx.Model(&models.FuelTransaction{}).
				Where("business_id = ? AND id = ?", businessId, transactionId).
				Updates(updates).Error; err != nil {
				return err
			}
			recalculated = 1
			return nil
		}

		chain, err := models.GetFuelChain(tx, businessId, target.WarehouseId)
		if err != nil {
			return err
		}
		changed, err := applyFuelEdit(chain, transactionId, edit)
		if err != nil {
			return err
		}

		touched := map[int]bool{transactionId: true}
		edited := chain[chainIndexOf(chain, transactionId)]
		if err := tx.Model(&models.FuelTransaction{}).
			Where("business_id = ? AND id = ?", businessId, transactionId).
			Updates(map[string]interface{}{
				"qty":              edited.Qty,
				"transaction_date": edited.TransactionDate,
				"meter_reading":    edited.MeterReading,
				"notes":            edited.Notes,
				"previous_balance": edited.PreviousBalance,
				"current_balance":  edited.CurrentBalance,
			}).Error; err != nil {
			return fmt.Errorf("%w: %v", models.ErrChainRecalculationFailed, err)
		}
		for _, row := range changed {
			if touched[row.ID] {
				continue
			}
			touched[row.ID] = true
			if err := tx.Model(&models.FuelTransaction{}).
				Where("id = ?", row.ID).
				Updates(map[string]interface{}{
					"previous_balance": row.PreviousBalance,
					"current_balance":  row.CurrentBalance,
				}).Error; err != nil {
				return fmt.Errorf("%w: %v", models.ErrChainRecalculationFailed, err)
			}
		}
		recalculated = len(touched)

		tail := chain[len(chain)-1]
		if err := models.UpdateFuelWarehouseInventoryCache(tx, businessId, target.WarehouseId, tail.CurrentBalance); err != nil {
			return err
		}

		logger.WithFields(logrus.Fields{
			"business_id":    businessId,
			"warehouse_id":   target.WarehouseId,
			"transaction_id": transactionId,
			"recalculated":   recalculated,
		}).Info("fuel.chain.recalc.done")
		return nil
	})
	if err != nil {
		return 0, err
	}
	return recalculated, nil
}

// RebuildFuelChain recomputes every balance of a warehouse's chain from
// zero under the warehouse lock. Ops tool for repairing historic drift;
// normal appends and edits never need it.
func RebuildFuelChain(ctx context.Context, warehouseId int) (int, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return 0, errors.New("business id is required")
	}
	logger := config.GetLogger()
	logger.WithFields(logrus.Fields{
		"business_id":  businessId,
		"warehouse_id": warehouseId,
	}).Info("fuel.chain.rebuild.start")

	db := config.GetDB()
	rebuilt := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireFuelWarehouseLock(tx, businessId, warehouseId); err != nil {
			return err
		}
		defer ReleaseFuelWarehouseLock(tx, businessId, warehouseId)

		chain, err := models.GetFuelChain(tx, businessId, warehouseId)
		if err != nil {
			return err
		}
		if len(chain) == 0 {
			return models.UpdateFuelWarehouseInventoryCache(tx, businessId, warehouseId, 0)
		}
		SortFuelChain(chain)
		changed := RecomputeFuelChain(chain, 0)
		for _, row := range changed {
			if err := tx.Model(&models.FuelTransaction{}).
				Where("id = ?", row.ID).
				Updates(map[string]interface{}{
					"previous_balance": row.PreviousBalance,
					"current_balance":  row.CurrentBalance,
				}).Error; err != nil {
				return fmt.Errorf("%w: %v", models.ErrChainRecalculationFailed, err)
			}
		}
		rebuilt = len(changed)
		tail := chain[len(chain)-1]
		return models.UpdateFuelWarehouseInventoryCache(tx, businessId, warehouseId, tail.CurrentBalance)
	})
	if err != nil {
		return 0, err
	}
	logger.WithFields(logrus.Fields{
		"business_id":  businessId,
		"warehouse_id": warehouseId,
		"rebuilt":      rebuilt,
	}).Info("fuel.chain.rebuild.done")
	return rebuilt, nil
}
