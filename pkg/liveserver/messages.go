package liveserver

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// MessageType constants
const (
	TypeSnapshot   = "snapshot"
	TypeTradeEvent = "trade_event"
	TypeWallets    = "wallets"
)

// NewMessage creates a message of the given type
func NewMessage(msgType string, data interface{}) Message {
	return Message{
		Type: msgType,
		Data: data,
	}
}

// NewSnapshotMessage wraps a session snapshot
func NewSnapshotMessage(data interface{}) Message {
	return NewMessage(TypeSnapshot, data)
}

// NewTradeEventMessage wraps a single trade event
func NewTradeEventMessage(data interface{}) Message {
	return NewMessage(TypeTradeEvent, data)
}

// NewWalletsMessage wraps the per-wallet breakdown
func NewWalletsMessage(data interface{}) Message {
	return NewMessage(TypeWallets, data)
}
