package model

// Player is an identity record. Immutable after registration; there is no
// deletion API (the schema cascades wallet removal if a row is ever purged
// by hand).
type Player struct {
	IDPlayer string `gorm:"column:id_player;primaryKey;size:36" json:"idPlayer"`
	Username string `gorm:"size:64;uniqueIndex;not null" json:"username"`
}

func (Player) TableName() string { return "player" }
