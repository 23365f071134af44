package workflow

import (
	"context"
	"errors"
	"fmt"
	"math"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"bitbucket.org/mmdatafocus/fleet_backend/models"
	"bitbucket.org/mmdatafocus/fleet_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TransferPair is a linked consumption (source warehouse) and entry
// (destination warehouse) describing one physical fuel movement.
type TransferPair struct {
	Consumption *models.FuelTransaction `json:"consumption"`
	Entry       *models.FuelTransaction `json:"entry"`
}

// validateTransferPair checks that two rows can be linked as a transfer.
// Pure; callers load the rows.
func validateTransferPair(consumption, entry *models.FuelTransaction) error {
	if consumption.TxType != models.FuelTransactionTypeConsumption {
		return fmt.Errorf("transaction %d is not a consumption", consumption.ID)
	}
	if entry.TxType != models.FuelTransactionTypeEntry {
		return fmt.Errorf("transaction %d is not an entry", entry.ID)
	}
	if consumption.WarehouseId == entry.WarehouseId {
		return fmt.Errorf("%w: warehouse_id=%d", models.ErrSameWarehouse, consumption.WarehouseId)
	}
	if consumption.ProductId != entry.ProductId {
		return fmt.Errorf("%w: consumption product=%d entry product=%d",
			models.ErrProductMismatch, consumption.ProductId, entry.ProductId)
	}
	if math.Abs(consumption.Qty-entry.Qty) > models.LotDrainTolerance {
		return &models.QuantityMismatchError{Expected: consumption.Qty, Actual: entry.Qty}
	}
	if consumption.ReferenceTransactionId != nil || entry.ReferenceTransactionId != nil {
		return fmt.Errorf("%w: consumption_id=%d entry_id=%d",
			models.ErrAlreadyLinked, consumption.ID, entry.ID)
	}
	return nil
}

// entryNeedsTransferPrice reports whether the destination entry still lacks
// a usable unit cost. A priced entry is never overwritten by propagation.
func entryNeedsTransferPrice(entry *models.FuelTransaction) bool {
	return entry.UnitCost == nil || *entry.UnitCost <= 0
}

// propagateTransferPrice resolves the consumption's unit cost (FIFO replay of
// the source warehouse when the row has none) and copies it onto the entry if
// the entry lacks one. Both updates run on the caller's transaction; a
// failure after the first write is wrapped so callers can tell a half-applied
// pair from a clean rejection.
func propagateTransferPrice(tx *gorm.DB, businessId string, pair *TransferPair) (float64, error) {
	unitCost := 0.0
	if pair.Consumption.UnitCost != nil && *pair.Consumption.UnitCost > 0 {
		unitCost = *pair.Consumption.UnitCost
	} else {
		var product models.Product
		if err := tx.Where("business_id = ? AND id = ?", businessId, pair.Consumption.ProductId).
			First(&product).Error; err != nil {
			return 0, err
		}
		resolved, err := FifoUnitCostAsOf(tx, businessId, pair.Consumption, product.DefaultUnitCost)
		if err != nil {
			return 0, err
		}
		unitCost = resolved
		if err := tx.Model(&models.FuelTransaction{}).
			Where("business_id = ? AND id = ?", businessId, pair.Consumption.ID).
			Update("unit_cost", unitCost).Error; err != nil {
			return 0, err
		}
		pair.Consumption.UnitCost = &unitCost
	}

	if !entryNeedsTransferPrice(pair.Entry) {
		return unitCost, nil
	}
	if err := tx.Model(&models.FuelTransaction{}).
		Where("business_id = ? AND id = ?", businessId, pair.Entry.ID).
		Update("unit_cost", unitCost).Error; err != nil {
		return 0, fmt.Errorf("%w: entry_id=%d: %v", models.ErrPartialTransferUpdateFailed, pair.Entry.ID, err)
	}
	pair.Entry.UnitCost = &unitCost
	return unitCost, nil
}

// LinkFuelTransfer links a consumption and an entry in different warehouses
// as one transfer, propagating the source-side price onto the destination
// entry so transferred liters keep their FIFO cost.
//
// Both warehouse locks are taken in ascending warehouse-id order; all writes
// share one transaction.
func LinkFuelTransfer(ctx context.Context, consumptionId, entryId int) (*TransferPair, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	logger := config.GetLogger()

	db := config.GetDB()
	var pair *TransferPair
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		consumption, err := models.GetFuelTransaction(tx, businessId, consumptionId)
		if err != nil {
			return err
		}
		entry, err := models.GetFuelTransaction(tx, businessId, entryId)
		if err != nil {
			return err
		}
		if err := validateTransferPair(consumption, entry); err != nil {
			return err
		}

		if err := AcquireFuelWarehousePairLock(tx, businessId, consumption.WarehouseId, entry.WarehouseId); err != nil {
			return err
		}
		defer ReleaseFuelWarehousePairLock(tx, businessId, consumption.WarehouseId, entry.WarehouseId)

		// Re-read under the locks; another linker may have won the race.
		consumption, err = models.GetFuelTransaction(tx, businessId, consumptionId)
		if err != nil {
			return err
		}
		entry, err = models.GetFuelTransaction(tx, businessId, entryId)
		if err != nil {
			return err
		}
		if err := validateTransferPair(consumption, entry); err != nil {
			return err
		}
		pair = &TransferPair{Consumption: consumption, Entry: entry}

		if err := tx.Model(&models.FuelTransaction{}).
			Where("business_id = ? AND id = ?", businessId, consumption.ID).
			Updates(map[string]interface{}{
				"reference_transaction_id": entry.ID,
				"is_transfer":              true,
			}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.FuelTransaction{}).
			Where("business_id = ? AND id = ?", businessId, entry.ID).
			Updates(map[string]interface{}{
				"reference_transaction_id": consumption.ID,
				"is_transfer":              true,
			}).Error; err != nil {
			return fmt.Errorf("%w: entry_id=%d: %v", models.ErrPartialTransferUpdateFailed, entry.ID, err)
		}

		unitCost, err := propagateTransferPrice(tx, businessId, pair)
		if err != nil {
			return err
		}
		pair.Consumption.ReferenceTransactionId = &entry.ID
		pair.Entry.ReferenceTransactionId = &consumption.ID
		pair.Consumption.IsTransfer = utils.NewTrue()
		pair.Entry.IsTransfer = utils.NewTrue()

		logger.WithFields(logrus.Fields{
			"business_id":    businessId,
			"consumption_id": consumption.ID,
			"entry_id":       entry.ID,
			"unit_cost":      unitCost,
		}).Info("fuel.transfer.linked")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// TransferBackfillFailure names one pair the backfill could not price.
type TransferBackfillFailure struct {
	ConsumptionId int    `json:"consumption_id"`
	Reason        string `json:"reason"`
}

// TransferBackfillResult partitions the backfill outcome. Fixed pairs got a
// price, Skipped pairs already had one, Failed pairs kept their previous
// state untouched.
type TransferBackfillResult struct {
	Fixed   []int                     `json:"fixed"`
	Skipped []int                     `json:"skipped"`
	Failed  []TransferBackfillFailure `json:"failed"`
}

// partitionTransferBackfill runs price propagation pair by pair and buckets
// the outcome. Pure over the injected propagate function: a pair that cannot
// be priced lands in Failed and the loop moves on, so one bad pair never
// poisons the batch.
func partitionTransferBackfill(pairs []*TransferPair, propagate func(*TransferPair) error) *TransferBackfillResult {
	result := &TransferBackfillResult{
		Fixed:   make([]int, 0),
		Skipped: make([]int, 0),
		Failed:  make([]TransferBackfillFailure, 0),
	}
	for _, pair := range pairs {
		if !entryNeedsTransferPrice(pair.Entry) {
			result.Skipped = append(result.Skipped, pair.Consumption.ID)
			continue
		}
		if err := propagate(pair); err != nil {
			result.Failed = append(result.Failed, TransferBackfillFailure{
				ConsumptionId: pair.Consumption.ID,
				Reason:        err.Error(),
			})
			continue
		}
		result.Fixed = append(result.Fixed, pair.Consumption.ID)
	}
	return result
}

// BackfillMissingTransferPrices finds linked transfer pairs whose entry side
// has no unit cost and re-runs price propagation for each. Every pair gets
// its own transaction.
func BackfillMissingTransferPrices(ctx context.Context) (*TransferBackfillResult, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	logger := config.GetLogger()
	db := config.GetDB()

	var consumptions []*models.FuelTransaction
	err := db.WithContext(ctx).
		Where("business_id = ? AND tx_type = ? AND is_transfer = ? AND reference_transaction_id IS NOT NULL",
			businessId, models.FuelTransactionTypeConsumption, true).
		Order("transaction_date, id").
		Find(&consumptions).Error
	if err != nil {
		return nil, err
	}

	orphaned := make([]TransferBackfillFailure, 0)
	pairs := make([]*TransferPair, 0, len(consumptions))
	for _, consumption := range consumptions {
		var entry models.FuelTransaction
		if err := db.WithContext(ctx).
			Where("business_id = ? AND id = ?", businessId, *consumption.ReferenceTransactionId).
			First(&entry).Error; err != nil {
			orphaned = append(orphaned, TransferBackfillFailure{
				ConsumptionId: consumption.ID,
				Reason:        fmt.Sprintf("linked entry %d not found", *consumption.ReferenceTransactionId),
			})
			continue
		}
		pairs = append(pairs, &TransferPair{Consumption: consumption, Entry: &entry})
	}

	result := partitionTransferBackfill(pairs, func(pair *TransferPair) error {
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := AcquireFuelWarehousePairLock(tx, businessId, pair.Consumption.WarehouseId, pair.Entry.WarehouseId); err != nil {
				return err
			}
			defer ReleaseFuelWarehousePairLock(tx, businessId, pair.Consumption.WarehouseId, pair.Entry.WarehouseId)
			_, err := propagateTransferPrice(tx, businessId, pair)
			return err
		})
	})
	result.Failed = append(result.Failed, orphaned...)

	logger.WithFields(logrus.Fields{
		"business_id": businessId,
		"fixed":       len(result.Fixed),
		"skipped":     len(result.Skipped),
		"failed":      len(result.Failed),
	}).Info("fuel.transfer.backfill.done")
	return result, nil
}
