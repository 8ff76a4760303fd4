package model

import "github.com/shopspring/decimal"

// Wallet holds the running balance for one player. The row is created lazily
// by the first posted transaction; a player with no row has balance 0.
// Balance always equals the signed sum of that player's transactions.
type Wallet struct {
	IDPlayer string          `gorm:"column:id_player;primaryKey;size:36" json:"idPlayer"`
	Balance  decimal.Decimal `gorm:"type:numeric(20,8);not null;default:'0'" json:"balance"`
}

func (Wallet) TableName() string { return "wallet" }
