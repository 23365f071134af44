package config

import (
	"os"
	"strconv"
	"strings"
)

// DefaultFifoLookbackDays is how far before a cost-report window the FIFO
// engine looks for entries whose lots may still be open at the window start.
const DefaultFifoLookbackDays = 45

// FifoLookbackDays returns the lookback window for FIFO costing.
//
// Set via env:
// - FIFO_LOOKBACK_DAYS=45
func FifoLookbackDays() int {
	v := strings.TrimSpace(os.Getenv("FIFO_LOOKBACK_DAYS"))
	if v == "" {
		return DefaultFifoLookbackDays
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return DefaultFifoLookbackDays
	}
	return n
}

// StrictNegativeBalanceRejection makes AppendFuelTransaction reject any
// consumption that would drive the running balance below zero instead of
// recording it and leaving detection to the diagnostic.
//
// Set via env:
// - STRICT_NEGATIVE_BALANCE_REJECT=true
func StrictNegativeBalanceRejection() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_NEGATIVE_BALANCE_REJECT")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
