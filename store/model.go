package store

import (
	"gorm.io/datatypes"
	"time"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Execution is one crowdsale instruction seen by the node, successful or not.
type Execution struct {
	Id        string         `gorm:"primaryKey;type:varchar(36);not null"`
	Signature string         `gorm:"type:varchar(120);not null;index"`
	Position  int            `gorm:"type:int;not null"`
	Operation string         `gorm:"type:varchar(16);not null"`
	Sale      string         `gorm:"type:varchar(48);not null;index"`
	Signer    string         `gorm:"type:varchar(48);not null"`
	Amount    uint64         `gorm:"type:bigint;not null"`
	Lamports  uint64         `gorm:"type:bigint;not null"`
	Slot      uint64         `gorm:"type:bigint;not null"`
	Status    string         `gorm:"type:varchar(16);not null"`
	Error     string         `gorm:"type:text"`
	Logs      datatypes.JSON `gorm:"type:json"`
	CreatedAt time.Time
}

// Sale is the last known state of a sale record.
type Sale struct {
	Address   string `gorm:"primaryKey;type:varchar(48);not null"`
	SaleId    string `gorm:"type:varchar(48);not null"`
	Mint      string `gorm:"type:varchar(48);not null"`
	Escrow    string `gorm:"type:varchar(48);not null"`
	Creator   string `gorm:"type:varchar(48);not null"`
	Price     uint64 `gorm:"type:bigint;not null"`
	Status    string `gorm:"type:varchar(16);not null"`
	Slot      uint64 `gorm:"type:bigint;not null"`
	UpdatedAt time.Time
}
