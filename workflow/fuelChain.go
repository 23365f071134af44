package workflow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"bitbucket.org/mmdatafocus/fleet_backend/models"
	"bitbucket.org/mmdatafocus/fleet_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// balanceChangeEpsilon decides whether a recomputed balance actually differs
// from the stored one. Far below the 0.5 L chain tolerance on purpose: we
// persist every real change, we just don't rewrite rows for float echo.
const balanceChangeEpsilon = 1e-9

// SortFuelChain orders rows by (transaction_date, insertion_order, id).
// This is the one true chain order; storage order is never trusted.
func SortFuelChain(chain []*models.FuelTransaction) {
	sort.SliceStable(chain, func(i, j int) bool {
		a, b := chain[i], chain[j]
		if !a.TransactionDate.Equal(b.TransactionDate) {
			return a.TransactionDate.Before(b.TransactionDate)
		}
		if a.InsertionOrder != b.InsertionOrder {
			return a.InsertionOrder < b.InsertionOrder
		}
		return a.ID < b.ID
	})
}

// RecomputeFuelChain rewrites previous/current balances from startIdx to the
// end of a sorted chain, seeding from the row before startIdx (or zero).
// Returns the rows whose stored balances actually changed.
func RecomputeFuelChain(chain []*models.FuelTransaction, startIdx int) []*models.FuelTransaction {
	if startIdx < 0 {
		startIdx = 0
	}
	changed := make([]*models.FuelTransaction, 0)
	balance := 0.0
	if startIdx > 0 {
		balance = chain[startIdx-1].CurrentBalance
	}
	for i := startIdx; i < len(chain); i++ {
		row := chain[i]
		prev := balance
		curr := prev + row.SignedQty()
		if math.Abs(row.PreviousBalance-prev) > balanceChangeEpsilon ||
			math.Abs(row.CurrentBalance-curr) > balanceChangeEpsilon {
			row.PreviousBalance = prev
			row.CurrentBalance = curr
			changed = append(changed, row)
		}
		balance = curr
	}
	return changed
}

// chainIndexOf locates a row in a sorted chain by id.
func chainIndexOf(chain []*models.FuelTransaction, id int) int {
	for i, row := range chain {
		if row.ID == id {
			return i
		}
	}
	return -1
}

// AppendFuelTransaction appends one row to a warehouse's ledger.
//
// In-order appends are O(1): previous_balance is seeded from the latest row.
// Backdated appends leave every later row's balances stale, so the whole
// tail is recomputed inside the same transaction.
func AppendFuelTransaction(ctx context.Context, input *models.NewFuelTransaction) (*models.FuelTransaction, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	logger := config.GetLogger()

	txType, err := models.ParseFuelTransactionType(input.TxType)
	if err != nil {
		return nil, err
	}
	if input.Qty <= 0 {
		return nil, &models.InvalidQuantityError{Qty: input.Qty}
	}

	warehouse, err := models.GetFuelWarehouse(ctx, input.WarehouseId)
	if err != nil {
		return nil, errors.New("warehouse not found")
	}
	if input.MeterReading != nil && (warehouse.HasMeter == nil || !*warehouse.HasMeter) {
		return nil, fmt.Errorf("%w: warehouse_id=%d", models.ErrMeterNotSupported, warehouse.ID)
	}
	if input.AssetId != nil {
		if err := utils.ValidateResourceId[models.Asset](ctx, businessId, *input.AssetId); err != nil {
			return nil, errors.New("asset not found")
		}
	}

	redisLock := obtainWarehouseRedisLock(ctx, logger, businessId, warehouse.ID)
	defer releaseRedisLock(ctx, logger, redisLock)

	ft := &models.FuelTransaction{
		BusinessId:      businessId,
		WarehouseId:     warehouse.ID,
		ProductId:       warehouse.ProductId,
		TxType:          txType,
		Qty:             input.Qty,
		TransactionDate: input.TransactionDate.UTC(),
		UnitCost:        input.UnitCost,
		MeterReading:    input.MeterReading,
		AssetId:         input.AssetId,
		Notes:           input.Notes,
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireFuelWarehouseLock(tx, businessId, warehouse.ID); err != nil {
			return err
		}
		defer ReleaseFuelWarehouseLock(tx, businessId, warehouse.ID)

		latest, err := models.GetLatestFuelTransaction(tx, businessId, warehouse.ID)
		if err != nil {
			return err
		}

		backdated := latest != nil && ft.TransactionDate.Before(latest.TransactionDate)
		if !backdated {
			prev := 0.0
			if latest != nil {
				prev = latest.CurrentBalance
			}
			ft.PreviousBalance = prev
			ft.CurrentBalance = prev + ft.SignedQty()
			if config.StrictNegativeBalanceRejection() && ft.CurrentBalance < 0 {
				return fmt.Errorf("%w: consumption of %v L would leave balance at %v L",
					models.ErrInvalidQuantity, ft.Qty, ft.CurrentBalance)
			}
			if err := tx.Create(ft).Error; err != nil {
				return err
			}
			return models.UpdateFuelWarehouseInventoryCache(tx, businessId, warehouse.ID, ft.CurrentBalance)
		}

		// Backdated: insert, then cascade balances over the tail.
		if err := tx.Create(ft).Error; err != nil {
			return err
		}
		chain, err := models.GetFuelChain(tx, businessId, warehouse.ID)
		if err != nil {
			return err
		}
		SortFuelChain(chain)
		idx := chainIndexOf(chain, ft.ID)
		if idx < 0 {
			return fmt.Errorf("appended transaction id=%d missing from chain", ft.ID)
		}
		changed := RecomputeFuelChain(chain, idx)
		for _, row := range changed {
			if err := tx.Model(&models.FuelTransaction{}).
				Where("id = ?", row.ID).
				Updates(map[string]interface{}{
					"previous_balance": row.PreviousBalance,
					"current_balance":  row.CurrentBalance,
				}).Error; err != nil {
				return err
			}
		}
		logger.WithFields(logrus.Fields{
			"business_id":    businessId,
			"warehouse_id":   warehouse.ID,
			"transaction_id": ft.ID,
			"recalculated":   len(changed),
		}).Info("fuel.chain.backdated_append")

		tail := chain[len(chain)-1]
		return models.UpdateFuelWarehouseInventoryCache(tx, businessId, warehouse.ID, tail.CurrentBalance)
	})
	if err != nil {
		return nil, err
	}
	return ft, nil
}

// GetLatestFuelBalance reads the warehouse's latest balance, serving from the
// redis cache when warm and falling back to the ledger.
func GetLatestFuelBalance(ctx context.Context, warehouseId int) (float64, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return 0, errors.New("business id is required")
	}

	key := models.FuelWarehouseBalanceCacheKey(businessId, warehouseId)
	var cached float64
	if found, err := config.GetRedisObject(key, &cached); err == nil && found {
		return cached, nil
	}

	db := config.GetDB()
	latest, err := models.GetLatestFuelTransaction(db.WithContext(ctx), businessId, warehouseId)
	if err != nil {
		return 0, err
	}
	balance := 0.0
	if latest != nil {
		balance = latest.CurrentBalance
	}
	_ = config.SetRedisObject(key, balance, 10*time.Minute)
	return balance, nil
}
