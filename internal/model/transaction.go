package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types. The stored amount is always the positive magnitude; the
// sign applied to the balance is derived from the type (Stake subtracts).
const (
	TypeDeposit = "Deposit"
	TypeStake   = "Stake"
	TypeWin     = "Win"
)

// RefTypePlayer is the only referenced-entity kind in use today. RefType is
// an open discriminator, not an enum; new kinds may appear without a schema
// change.
const RefTypePlayer = "Player"

// Transaction is an append-only ledger record. Rows are never updated or
// deleted; corrections are modeled as new compensating transactions.
// Seq preserves insertion order so replaying history reproduces the stored
// balance.
type Transaction struct {
	Seq             uint64          `gorm:"primaryKey;autoIncrement" json:"-"`
	IDTransaction   string          `gorm:"column:id_transaction;size:36;uniqueIndex;not null" json:"idTransaction"`
	IDRef           string          `gorm:"column:id_ref;size:36;index" json:"idRef"`
	RefType         string          `gorm:"size:32;not null" json:"refType"`
	Amount          decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"amount"`
	TransactionType string          `gorm:"size:32;not null" json:"transactionType"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"createdAt"`
}

func (Transaction) TableName() string { return "ledger_transaction" }
