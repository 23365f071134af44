package workflow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"bitbucket.org/mmdatafocus/fleet_backend/models"
	"bitbucket.org/mmdatafocus/fleet_backend/utils"
	"github.com/sirupsen/logrus"
)

// Severity thresholds, in liters and row counts.
const (
	driftCriticalLiters = 100.0
	driftMajorLiters    = 10.0
	breakCriticalCount  = 10
	maxReportedBreaks   = 20
)

// FuelChainBreak is one spot where a row's stored previous_balance disagrees
// with its predecessor's stored current_balance beyond the chain tolerance.
type FuelChainBreak struct {
	TransactionId    int     `json:"transaction_id"`
	Position         int     `json:"position"`
	ExpectedPrevious float64 `json:"expected_previous"`
	ActualPrevious   float64 `json:"actual_previous"`
}

// WarehouseAudit is the reconciliation verdict for one warehouse. It compares
// three independent inventory estimates:
//
//	StoredInventory   the warehouse's denormalized cache column
//	LatestBalance     the last chain row's current_balance
//	RecomputedBalance a from-zero replay of the whole chain
type WarehouseAudit struct {
	WarehouseId          int                  `json:"warehouse_id"`
	WarehouseName        string               `json:"warehouse_name"`
	StoredInventory      float64              `json:"stored_inventory"`
	LatestBalance        float64              `json:"latest_balance"`
	RecomputedBalance    float64              `json:"recomputed_balance"`
	DriftStored          float64              `json:"drift_stored"`
	DriftLatest          float64              `json:"drift_latest"`
	ChainBreaks          []FuelChainBreak     `json:"chain_breaks"`
	ChainBreakCount      int                  `json:"chain_break_count"`
	NegativeBalanceCount int                  `json:"negative_balance_count"`
	Severity             models.AuditSeverity `json:"severity"`
	Issues               []string             `json:"issues"`
}

// AuditFuelChain grades one warehouse's sorted chain. Pure.
//
// Chain breaks compare each row's stored previous_balance against its
// predecessor's stored current_balance; negative counting looks at stored
// current_balance. The replay only feeds the recomputed estimate, so one
// corrupted quantity shows up as drift, not as a break at every later row.
//
// Severity ladder:
//
//	CRITICAL  |drift_stored| > 100 L, more than 10 chain breaks, or any
//	          negative stored balance
//	MAJOR     |drift_stored| > 10 L or any chain break
//	MINOR     |drift_stored| > 0.5 L
//	OK        otherwise
func AuditFuelChain(warehouse *models.FuelWarehouse, chain []*models.FuelTransaction) *WarehouseAudit {
	audit := &WarehouseAudit{
		WarehouseId:     warehouse.ID,
		WarehouseName:   warehouse.Name,
		StoredInventory: warehouse.CurrentInventory,
		ChainBreaks:     make([]FuelChainBreak, 0),
		Issues:          make([]string, 0),
	}

	SortFuelChain(chain)
	running := 0.0
	prevStored := 0.0
	for i, row := range chain {
		if math.Abs(row.PreviousBalance-prevStored) > models.ChainBalanceTolerance {
			audit.ChainBreakCount++
			if len(audit.ChainBreaks) < maxReportedBreaks {
				audit.ChainBreaks = append(audit.ChainBreaks, FuelChainBreak{
					TransactionId:    row.ID,
					Position:         i,
					ExpectedPrevious: prevStored,
					ActualPrevious:   row.PreviousBalance,
				})
			}
		}
		if row.CurrentBalance < 0 {
			audit.NegativeBalanceCount++
		}
		prevStored = row.CurrentBalance
		running += row.SignedQty()
	}
	audit.RecomputedBalance = running
	if len(chain) > 0 {
		audit.LatestBalance = chain[len(chain)-1].CurrentBalance
	}
	audit.DriftStored = audit.StoredInventory - audit.RecomputedBalance
	audit.DriftLatest = audit.LatestBalance - audit.RecomputedBalance

	if math.Abs(audit.DriftStored) > models.ChainBalanceTolerance {
		audit.Issues = append(audit.Issues,
			fmt.Sprintf("stored inventory drifts %.2f L from recomputed balance", audit.DriftStored))
	}
	if math.Abs(audit.DriftLatest) > models.ChainBalanceTolerance {
		audit.Issues = append(audit.Issues,
			fmt.Sprintf("latest chain balance drifts %.2f L from recomputed balance", audit.DriftLatest))
	}
	if audit.ChainBreakCount > 0 {
		audit.Issues = append(audit.Issues,
			fmt.Sprintf("%d chain break(s) beyond %.1f L tolerance", audit.ChainBreakCount, models.ChainBalanceTolerance))
	}
	if audit.NegativeBalanceCount > 0 {
		audit.Issues = append(audit.Issues,
			fmt.Sprintf("%d row(s) carry a negative stored balance", audit.NegativeBalanceCount))
	}

	switch {
	case math.Abs(audit.DriftStored) > driftCriticalLiters ||
		audit.ChainBreakCount > breakCriticalCount ||
		audit.NegativeBalanceCount > 0:
		audit.Severity = models.AuditSeverityCritical
	case math.Abs(audit.DriftStored) > driftMajorLiters || audit.ChainBreakCount > 0:
		audit.Severity = models.AuditSeverityMajor
	case math.Abs(audit.DriftStored) > models.ChainBalanceTolerance:
		audit.Severity = models.AuditSeverityMinor
	default:
		audit.Severity = models.AuditSeverityOK
	}
	return audit
}

// RunFuelDiagnostic audits the given warehouses (all active ones when the
// list is empty). Read only: no locks are taken and nothing in the ledger is
// repaired; each verdict is returned and persisted as a FuelAuditReport row.
func RunFuelDiagnostic(ctx context.Context, warehouseIds []int) ([]*WarehouseAudit, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	logger := config.GetLogger()
	db := config.GetDB()

	var warehouses []*models.FuelWarehouse
	warehouseQuery := db.WithContext(ctx).Where("business_id = ?", businessId)
	if warehouseIds = utils.UniqueSlice(warehouseIds); len(warehouseIds) > 0 {
		warehouseQuery = warehouseQuery.Where("id IN ?", warehouseIds)
	} else {
		warehouseQuery = warehouseQuery.Where("is_active = ?", true)
	}
	if err := warehouseQuery.Order("id").Find(&warehouses).Error; err != nil {
		return nil, err
	}

	audits := make([]*WarehouseAudit, 0, len(warehouses))
	for _, warehouse := range warehouses {
		chain, err := models.GetFuelChain(db.WithContext(ctx), businessId, warehouse.ID)
		if err != nil {
			return nil, err
		}
		audit := AuditFuelChain(warehouse, chain)
		audits = append(audits, audit)

		report := models.FuelAuditReport{
			BusinessId:           businessId,
			WarehouseId:          audit.WarehouseId,
			StoredInventory:      audit.StoredInventory,
			LatestBalance:        audit.LatestBalance,
			RecomputedBalance:    audit.RecomputedBalance,
			DriftStored:          audit.DriftStored,
			DriftLatest:          audit.DriftLatest,
			ChainBreakCount:      audit.ChainBreakCount,
			NegativeBalanceCount: audit.NegativeBalanceCount,
			Severity:             audit.Severity,
			Issues:               strings.Join(audit.Issues, "; "),
		}
		if err := db.WithContext(ctx).Create(&report).Error; err != nil {
			config.LogError(logger, "workflow", "RunFuelDiagnostic", "persist audit report",
				map[string]interface{}{"warehouse_id": audit.WarehouseId}, err)
		}

		if audit.Severity != models.AuditSeverityOK {
			logger.WithFields(logrus.Fields{
				"business_id":  businessId,
				"warehouse_id": audit.WarehouseId,
				"severity":     audit.Severity,
				"drift_stored": audit.DriftStored,
				"breaks":       audit.ChainBreakCount,
				"negatives":    audit.NegativeBalanceCount,
			}).Warn("fuel.reconciliation.issue")
		}
	}
	return audits, nil
}
