package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"bitbucket.org/mmdatafocus/fleet_backend/models"
	"bitbucket.org/mmdatafocus/fleet_backend/utils"
	"bitbucket.org/mmdatafocus/fleet_backend/workflow"
)

// fuel-ledger-audit prints one warehouse's fuel chain with the replayed
// running balance so you can see exactly which row breaks the chain or drives
// the balance negative.
//
// Example:
//
//	go run ./cmd/fuel-ledger-audit/ \
//	  -business-id=a195a02a-ee0c-4047-a6f4-443633d0aca4 \
//	  -warehouse-id=12
func main() {
	businessID := flag.String("business-id", "", "Required: business id (uuid)")
	warehouseID := flag.Int("warehouse-id", 0, "Required: fuel warehouse id")
	limit := flag.Int("limit", 500, "Max rows to print (0 = no limit)")
	breaksOnly := flag.Bool("breaks-only", false, "Print only chain breaks and negative-balance rows")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" || *warehouseID <= 0 {
		fmt.Fprintln(os.Stderr, "--business-id and --warehouse-id are required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	ctx := utils.SetBusinessIdInContext(context.Background(), *businessID)

	warehouse, err := models.GetFuelWarehouse(ctx, *warehouseID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warehouse lookup failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("business_id=%s warehouse_id=%d warehouse_name=%q stored_inventory=%.2f\n",
		*businessID, warehouse.ID, warehouse.Name, warehouse.CurrentInventory)

	chain, err := models.GetFuelChain(db.WithContext(ctx), *businessID, *warehouseID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chain query failed: %v\n", err)
		os.Exit(1)
	}
	if len(chain) == 0 {
		fmt.Println("no rows found")
		return
	}

	audit := workflow.AuditFuelChain(warehouse, chain)

	breakAt := make(map[int]bool, len(audit.ChainBreaks))
	for _, b := range audit.ChainBreaks {
		breakAt[b.TransactionId] = true
	}

	printed := 0
	running := 0.0
	prevStored := 0.0
	for _, row := range chain {
		isBreak := math.Abs(row.PreviousBalance-prevStored) > models.ChainBalanceTolerance
		prevStored = row.CurrentBalance
		running += row.SignedQty()
		negative := row.CurrentBalance < 0
		if *breaksOnly && !isBreak && !negative {
			continue
		}
		if *limit > 0 && printed >= *limit {
			fmt.Println("... truncated")
			break
		}
		printed++
		marker := ""
		if isBreak {
			marker += " BREAK"
		}
		if negative {
			marker += " NEGATIVE"
		}
		fmt.Printf("id=%d date=%s type=%s qty=%.2f stored_prev=%.2f stored_curr=%.2f replayed=%.2f%s\n",
			row.ID, row.TransactionDate.Format("2006-01-02"), string(row.TxType),
			row.Qty, row.PreviousBalance, row.CurrentBalance, running, marker)
	}

	fmt.Printf("severity=%s breaks=%d negatives=%d drift_stored=%.2f drift_latest=%.2f recomputed=%.2f\n",
		audit.Severity, audit.ChainBreakCount, audit.NegativeBalanceCount,
		audit.DriftStored, audit.DriftLatest, audit.RecomputedBalance)
	if audit.Severity != models.AuditSeverityOK {
		os.Exit(2)
	}
}
