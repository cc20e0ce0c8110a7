package store

import (
	"time"

	"gorm.io/datatypes"
)

// Account is a registered user. MID is the externally visible member id
// and the primary key; numeric auto-increment ids never leave this
// package.
type Account struct {
	MID          string `gorm:"primaryKey;size:64"`
	Username     string `gorm:"size:64;uniqueIndex;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	Role         int    `gorm:"not null;default:0"`
	AllianceID   string `gorm:"size:64;index"`
	MemberName   string `gorm:"size:64"`
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// MemberRecord is an alliance roster entry: a known player name and the
// account it is linked to, when any.
type MemberRecord struct {
	ID         uint   `gorm:"primaryKey"`
	AllianceID string `gorm:"size:64;index:idx_member_alliance_name,unique"`
	Name       string `gorm:"size:64;index:idx_member_alliance_name,unique"`
	Role       int    `gorm:"not null;default:0"`
	Linked     bool   `gorm:"not null;default:false"`
	LinkedMID  string `gorm:"size:64;index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RosterRecord is an authored roster definition. The slot layout is kept
// as a JSONB document, same shape as the shared variant, so copy and
// share are plain payload moves.
type RosterRecord struct {
	ID         string         `gorm:"primaryKey;size:64"`
	AllianceID string         `gorm:"size:64;index"`
	OwnerMID   string         `gorm:"size:64;index"`
	Name       string         `gorm:"size:128;not null"`
	Document   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SharedRoster is a live shared document. Version counts applied writes
// and backs the snapshot protocol; the payload itself is the canonical
// encoding of roster.Document.
type SharedRoster struct {
	ShareID    string         `gorm:"primaryKey;size:64"`
	AllianceID string         `gorm:"size:64;index"`
	Version    uint64         `gorm:"not null;default:0"`
	Document   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
