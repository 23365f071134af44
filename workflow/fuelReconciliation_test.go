package workflow

import (
	"testing"

	"bitbucket.org/mmdatafocus/fleet_backend/models"
	"bitbucket.org/mmdatafocus/fleet_backend/utils"
)

func testWarehouse(stored float64) *models.FuelWarehouse {
	return &models.FuelWarehouse{
		ID:               1,
		BusinessId:       "biz-1",
		Name:             "Main Tank",
		HasMeter:         utils.NewFalse(),
		CurrentInventory: stored,
	}
}

func consistentChain() []*models.FuelTransaction {
	chain := []*models.FuelTransaction{
		fuelRow(1, models.FuelTransactionTypeEntry, 500, day(1), price(2.00)),
		fuelRow(2, models.FuelTransactionTypeConsumption, 120, day(2), nil),
		fuelRow(3, models.FuelTransactionTypeConsumption, 80, day(3), nil),
	}
	RecomputeFuelChain(chain, 0)
	return chain
}

func TestAuditHealthyChainIsOK(t *testing.T) {
	chain := consistentChain()
	audit := AuditFuelChain(testWarehouse(300), chain)

	if audit.Severity != models.AuditSeverityOK {
		t.Fatalf("expected OK, got %s (issues: %v)", audit.Severity, audit.Issues)
	}
	if audit.ChainBreakCount != 0 || audit.NegativeBalanceCount != 0 {
		t.Fatalf("healthy chain reported breaks=%d negatives=%d", audit.ChainBreakCount, audit.NegativeBalanceCount)
	}
	if audit.RecomputedBalance != 300 || audit.LatestBalance != 300 {
		t.Fatalf("estimates wrong: recomputed=%.2f latest=%.2f", audit.RecomputedBalance, audit.LatestBalance)
	}
}

func TestAuditToleratesSubEpsilonDrift(t *testing.T) {
	audit := AuditFuelChain(testWarehouse(300.4), consistentChain())
	if audit.Severity != models.AuditSeverityOK {
		t.Fatalf("drift below tolerance must stay OK, got %s", audit.Severity)
	}
}

func TestAuditSeverityLadderOnStoredDrift(t *testing.T) {
	cases := []struct {
		stored float64
		want   models.AuditSeverity
	}{
		{303, models.AuditSeverityMinor},    // |drift| 3
		{350, models.AuditSeverityMajor},    // |drift| 50
		{150, models.AuditSeverityCritical}, // |drift| 150
		{450, models.AuditSeverityCritical},
	}
	for _, tc := range cases {
		audit := AuditFuelChain(testWarehouse(tc.stored), consistentChain())
		if audit.Severity != tc.want {
			t.Errorf("stored=%.0f: expected %s, got %s", tc.stored, tc.want, audit.Severity)
		}
	}
}

func TestAuditDetectsChainBreak(t *testing.T) {
	chain := consistentChain()
	// Corrupt one stored previous_balance beyond tolerance.
	chain[1].PreviousBalance = 470

	audit := AuditFuelChain(testWarehouse(300), chain)
	if audit.ChainBreakCount != 1 {
		t.Fatalf("expected 1 break, got %d", audit.ChainBreakCount)
	}
	if audit.Severity != models.AuditSeverityMajor {
		t.Fatalf("any break is at least MAJOR, got %s", audit.Severity)
	}
	b := audit.ChainBreaks[0]
	if b.TransactionId != 2 || b.ExpectedPrevious != 500 || b.ActualPrevious != 470 {
		t.Fatalf("break details wrong: %+v", b)
	}
}

func TestAuditDetectsCorruptedCurrentBalance(t *testing.T) {
	chain := consistentChain()
	// Corrupt only row 1's stored current_balance; row 2's previous_balance
	// still holds the original 500, so the stored link is broken even though
	// a replay of the quantities would look consistent.
	chain[0].CurrentBalance = 999

	audit := AuditFuelChain(testWarehouse(300), chain)
	if audit.ChainBreakCount != 1 {
		t.Fatalf("expected 1 break, got %d", audit.ChainBreakCount)
	}
	b := audit.ChainBreaks[0]
	if b.TransactionId != 2 || b.ExpectedPrevious != 999 || b.ActualPrevious != 500 {
		t.Fatalf("break details wrong: %+v", b)
	}
	if audit.Severity != models.AuditSeverityMajor {
		t.Fatalf("expected MAJOR_ISSUE, got %s", audit.Severity)
	}
}

func TestAuditCorruptedQtyIsDriftNotBreaks(t *testing.T) {
	chain := consistentChain()
	// Change a quantity without touching the stored balances. The stored
	// links all still agree with each other, so this must surface as drift
	// against the recomputed estimate, not as a break at every later row.
	chain[1].Qty = 200

	audit := AuditFuelChain(testWarehouse(300), chain)
	if audit.ChainBreakCount != 0 {
		t.Fatalf("internally consistent stored balances must report no breaks, got %d", audit.ChainBreakCount)
	}
	if audit.RecomputedBalance != 220 {
		t.Fatalf("recomputed estimate wrong: %.2f", audit.RecomputedBalance)
	}
	if audit.DriftStored != 80 || audit.DriftLatest != 80 {
		t.Fatalf("drift estimates wrong: stored=%.2f latest=%.2f", audit.DriftStored, audit.DriftLatest)
	}
	if audit.Severity != models.AuditSeverityMajor {
		t.Fatalf("80 L drift should be MAJOR_ISSUE, got %s", audit.Severity)
	}
}

func TestAuditNegativeBalanceIsCritical(t *testing.T) {
	chain := []*models.FuelTransaction{
		fuelRow(1, models.FuelTransactionTypeEntry, 50, day(1), nil),
		fuelRow(2, models.FuelTransactionTypeConsumption, 80, day(2), nil),
		fuelRow(3, models.FuelTransactionTypeEntry, 100, day(3), nil),
	}
	RecomputeFuelChain(chain, 0)

	audit := AuditFuelChain(testWarehouse(70), chain)
	if audit.NegativeBalanceCount != 1 {
		t.Fatalf("expected 1 negative row, got %d", audit.NegativeBalanceCount)
	}
	if audit.Severity != models.AuditSeverityCritical {
		t.Fatalf("negative stored balance must be CRITICAL, got %s", audit.Severity)
	}
}

func TestAuditManyBreaksIsCritical(t *testing.T) {
	chain := make([]*models.FuelTransaction, 0, 12)
	for i := 1; i <= 12; i++ {
		row := fuelRow(i, models.FuelTransactionTypeEntry, 10, day(i), nil)
		row.PreviousBalance = float64(1000 + i) // every link broken
		row.CurrentBalance = row.PreviousBalance + 10
		chain = append(chain, row)
	}
	audit := AuditFuelChain(testWarehouse(120), chain)
	if audit.ChainBreakCount != 12 {
		t.Fatalf("expected 12 breaks, got %d", audit.ChainBreakCount)
	}
	if audit.Severity != models.AuditSeverityCritical {
		t.Fatalf("more than %d breaks must be CRITICAL, got %s", breakCriticalCount, audit.Severity)
	}
}

func TestAuditEmptyChain(t *testing.T) {
	audit := AuditFuelChain(testWarehouse(0), nil)
	if audit.Severity != models.AuditSeverityOK {
		t.Fatalf("empty chain with zero stored inventory should be OK, got %s", audit.Severity)
	}
	if audit.LatestBalance != 0 || audit.RecomputedBalance != 0 {
		t.Fatalf("empty chain estimates must be zero")
	}
}
