package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"bitbucket.org/mmdatafocus/fleet_backend/utils"
	"bitbucket.org/mmdatafocus/fleet_backend/workflow"
)

// fuel-chain-rebuild recomputes every stored balance of one warehouse's fuel
// chain from zero, under the warehouse's advisory lock, and refreshes the
// cached inventory. Use after repairing bad historic rows by hand.
//
// Example:
//
//	go run ./cmd/fuel-chain-rebuild/ \
//	  -business-id=a195a02a-ee0c-4047-a6f4-443633d0aca4 \
//	  -warehouse-id=12
func main() {
	businessID := flag.String("business-id", "", "Required: business id (uuid)")
	warehouseID := flag.Int("warehouse-id", 0, "Required: fuel warehouse id")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" || *warehouseID <= 0 {
		fmt.Fprintln(os.Stderr, "--business-id and --warehouse-id are required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	ctx := utils.SetBusinessIdInContext(context.Background(), *businessID)
	rebuilt, err := workflow.RebuildFuelChain(ctx, *warehouseID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("business_id=%s warehouse_id=%d rows_updated=%d\n", *businessID, *warehouseID, rebuilt)
}
