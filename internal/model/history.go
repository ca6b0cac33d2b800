package model

import "time"

// HistoryRecord is a settled transaction kept for display.
type HistoryRecord struct {
	ChainID      uint64     `json:"chain_id"`
	Account      string     `json:"account"`
	Kind         IntentKind `json:"kind"`
	Token0Symbol string     `json:"token0_symbol"`
	Token1Symbol string     `json:"token1_symbol"`
	Amount0      string     `json:"amount0"`
	Amount1      string     `json:"amount1"`
	PositionID   string     `json:"position_id,omitempty"`
	TxHash       string     `json:"tx_hash"`
	Status       string     `json:"status"`
	Timestamp    time.Time  `json:"timestamp"`
}

const HistoryStatusConfirmed = "confirmed"
