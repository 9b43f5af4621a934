// Package sizing computes per-wallet buy amounts.
//
// Two tagged variants sit behind the core.SizingPolicy interface and are
// selected by run configuration: deterministic (pre-assigned allocation
// table) and dynamic (balance-derived percentage bands capped by supply
// exposure). Rebuy sizing reuses the same policy against the wallet's
// current balance; the scheduler decides what a failure means in rebuy
// context.
package sizing

import (
	"fmt"
	"math/rand"

	"volume_maker/internal/config"
	"volume_maker/internal/core"
)

// Mode names accepted by NewPolicy.
const (
	ModeDynamic       = "dynamic"
	ModeDeterministic = "deterministic"
)

// NewPolicy builds the sizing policy variant named by cfg.App.SizingMode.
// table may be nil unless the mode is deterministic.
func NewPolicy(cfg *config.Config, table core.AllocationTable, rng *rand.Rand, logger core.ILogger) (core.SizingPolicy, error) {
	switch cfg.App.SizingMode {
	case ModeDynamic:
		return NewDynamicPolicy(cfg, rng, logger), nil
	case ModeDeterministic:
		if table == nil {
			return nil, fmt.Errorf("deterministic sizing requires an allocation table")
		}
		return NewDeterministicPolicy(cfg, table, logger), nil
	default:
		return nil, fmt.Errorf("unknown sizing mode: %s", cfg.App.SizingMode)
	}
}
