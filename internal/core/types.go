package core

import "time"

// WalletID is the public address of an externally-owned signing identity.
// The core never holds key material; signing authority lives behind the
// ExecutionGateway.
type WalletID string

// WalletStatus describes where a wallet sits in the buy/sell lifecycle.
type WalletStatus int

const (
	StatusAvailable WalletStatus = iota
	StatusHolding
	StatusUsedForSell
	StatusBlacklisted
)

func (s WalletStatus) String() string {
	switch s {
	case StatusAvailable:
		return "AVAILABLE"
	case StatusHolding:
		return "HOLDING"
	case StatusUsedForSell:
		return "USED_FOR_SELL"
	case StatusBlacklisted:
		return "BLACKLISTED"
	default:
		return "UNKNOWN"
	}
}

// Direction is the side of a trade.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// LiquidityState is a point-in-time snapshot of the pool reserves, in atomic
// units. It is valid for exactly one sizing decision: reserves drift with every
// trade on the pool, including trades this process did not cause.
type LiquidityState struct {
	VirtualBase  uint64
	VirtualQuote uint64
	RealBase     uint64
	RealQuote    uint64
}

// TradeIntent is an immutable trade request produced by one scheduler tick and
// consumed exactly once by the ExecutionGateway.
type TradeIntent struct {
	ID        string
	Wallet    WalletID
	Direction Direction
	// Amount is in atomic units: quote units (lamports) for a buy, base token
	// units for a sell.
	Amount   uint64
	Sequence uint64
}

// TradeReceipt is the confirmed outcome of a submitted TradeIntent.
type TradeReceipt struct {
	Signature string
	// Holding is the wallet's resulting base-token balance when the gateway
	// can report it. HasHolding is false when the confirmation did not carry
	// a balance.
	Holding    uint64
	HasHolding bool
	SubmitTime time.Time
}

// WalletRecord is the ledger's view of a single wallet, exposed read-only for
// reporting. Exhausted wallets stay visible for the whole session.
type WalletRecord struct {
	Wallet            WalletID
	Status            WalletStatus
	RebuyCount        int
	LastTokenBalance  uint64
	OriginalBuyAmount uint64
	Buys              int
	Sells             int
	Skips             int
}

// SessionSnapshot is a point-in-time summary of an orchestration run, used for
// status broadcast and the end-of-run report.
type SessionSnapshot struct {
	State          string         `json:"state"`
	BuyCounter     uint64         `json:"buy_counter"`
	SellCounter    uint64         `json:"sell_counter"`
	SkipCounter    uint64         `json:"skip_counter"`
	NextSellAt     uint64         `json:"next_sell_at"`
	Available      int            `json:"available"`
	Holding        int            `json:"holding"`
	UsedForSell    int            `json:"used_for_sell"`
	Blacklisted    int            `json:"blacklisted"`
	Wallets        []WalletRecord `json:"wallets,omitempty"`
	SnapshotTimeMs int64          `json:"snapshot_time_ms"`
}
