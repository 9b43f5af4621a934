// Package wallet loads the wallet pool roster and deterministic allocation
// tables from disk.
package wallet

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"volume_maker/internal/config"
	"volume_maker/internal/core"
)

// LoadWallets reads a wallet roster file: one address per line, blank lines
// and '#' comments ignored. Duplicate addresses are an error since the ledger
// tracks each wallet exactly once.
func LoadWallets(filename string) ([]core.WalletID, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet file: %w", err)
	}
	defer f.Close()

	var wallets []core.WalletID
	seen := make(map[core.WalletID]struct{})

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		w := core.WalletID(text)
		if _, dup := seen[w]; dup {
			return nil, fmt.Errorf("duplicate wallet %q at line %d", text, line)
		}
		seen[w] = struct{}{}
		wallets = append(wallets, w)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read wallet file: %w", err)
	}
	if len(wallets) == 0 {
		return nil, fmt.Errorf("wallet file %s contains no wallets", filename)
	}
	return wallets, nil
}

// Allocations is a fixed wallet-to-buy-amount table backing deterministic
// sizing. Amounts are atomic quote units.
type Allocations struct {
	amounts map[core.WalletID]uint64
}

// AllocationFor implements core.AllocationTable.
func (a *Allocations) AllocationFor(wallet core.WalletID) (uint64, bool) {
	amount, ok := a.amounts[wallet]
	return amount, ok
}

// Len returns the number of wallets in the table.
func (a *Allocations) Len() int {
	return len(a.amounts)
}

// LoadAllocations reads a YAML allocation file mapping wallet address to a
// human-unit quote amount, converting each entry to atomic units.
//
//	walletA: 0.25
//	walletB: 1.5
func LoadAllocations(filename string, quoteDecimals int) (*Allocations, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read allocation file: %w", err)
	}

	var raw map[string]decimal.Decimal
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse allocation file: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("allocation file %s contains no entries", filename)
	}

	amounts := make(map[core.WalletID]uint64, len(raw))
	for addr, amount := range raw {
		if amount.IsNegative() || amount.IsZero() {
			return nil, fmt.Errorf("allocation for wallet %q must be positive, got %s", addr, amount)
		}
		amounts[core.WalletID(addr)] = config.ToAtomic(amount, quoteDecimals)
	}
	return &Allocations{amounts: amounts}, nil
}
