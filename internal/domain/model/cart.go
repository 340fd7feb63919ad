package model

import "time"

// CartOwner identifies who a cart belongs to: an authenticated user or an
// anonymous session key. Exactly one side is set.
type CartOwner struct {
	UserID     int64
	SessionKey string
}

func (o CartOwner) IsUser() bool {
	return o.UserID > 0
}

// One cart per owner, enforced by the unique indexes below (Postgres
// permits multiple NULLs, so user carts and session carts coexist).
// Created lazily, emptied on checkout, deleted on merge.
type Cart struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     *int64    `gorm:"uniqueIndex" json:"user_id,omitempty"`
	SessionKey *string   `gorm:"type:varchar(255);uniqueIndex" json:"session_key,omitempty"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
