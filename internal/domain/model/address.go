package model

import (
	"fmt"
	"time"
)

type AddressType string

const (
	AddressTypeShipping AddressType = "shipping"
	AddressTypeBilling  AddressType = "billing"
)

type Address struct {
	ID            int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        int64       `gorm:"not null;index" json:"user_id"`
	AddressType   AddressType `gorm:"type:varchar(20);not null" json:"address_type"`
	StreetAddress string      `gorm:"type:text;not null" json:"street_address"`
	City          string      `gorm:"type:varchar(100);not null" json:"city"`
	State         string      `gorm:"type:varchar(100);not null" json:"state"`
	PostalCode    string      `gorm:"type:varchar(20);not null" json:"postal_code"`
	Country       string      `gorm:"type:varchar(100);not null;default:'India'" json:"country"`
	Phone         string      `gorm:"type:varchar(15)" json:"phone"`
	IsDefault     bool        `gorm:"not null;default:false" json:"is_default"`
	CreatedAt     time.Time   `gorm:"not null;autoCreateTime" json:"created_at"`
}

// FormatShipping renders the one-line text stored on orders. The snapshot
// survives later edits or deletion of the address row.
func (a Address) FormatShipping() string {
	return fmt.Sprintf("%s, %s, %s, %s, %s",
		a.StreetAddress, a.City, a.State, a.PostalCode, a.Country)
}
