package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Account represents the accounts table.
type Account struct {
	AccountID   string    `gorm:"primaryKey"`
	Balance     int64     `gorm:"not null"`
	TotalEarned int64     `gorm:"not null"`
	TotalSpent  int64     `gorm:"not null"`
	Version     int64     `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (Account) TableName() string { return "accounts" }

// LedgerEntry mirrors the ledger_entries table.
type LedgerEntry struct {
	EntryID       string         `gorm:"type:uuid;primaryKey"`
	AccountID     string         `gorm:"not null;index:idx_entries_account_created,priority:1;index:idx_entries_account_reference,priority:1"`
	Kind          string         `gorm:"not null"`
	Delta         int64          `gorm:"not null"`
	BalanceBefore int64          `gorm:"not null"`
	BalanceAfter  int64          `gorm:"not null"`
	ReferenceID   string         `gorm:"not null;index:idx_entries_account_reference,priority:2"`
	RelatedEntity string         `gorm:""`
	Status        string         `gorm:"not null"`
	Reason        string         `gorm:""`
	Metadata      datatypes.JSON `gorm:"not null"`
	CreatedAt     time.Time      `gorm:"not null;index:idx_entries_account_created,priority:2"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }

func (entry *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}
	return nil
}

// RewardPool mirrors the reward_pools table.
type RewardPool struct {
	RewardID  string    `gorm:"primaryKey"`
	Total     int64     `gorm:"not null"`
	Available int64     `gorm:"not null"`
	Reserved  int64     `gorm:"not null"`
	Redeemed  int64     `gorm:"not null"`
	Version   int64     `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (RewardPool) TableName() string { return "reward_pools" }

// RewardReservation mirrors the reward_reservations table.
type RewardReservation struct {
	ReservationID string    `gorm:"type:uuid;primaryKey"`
	RewardID      string    `gorm:"not null;index"`
	AccountID     string    `gorm:"not null;index"`
	Quantity      int64     `gorm:"not null"`
	Status        string    `gorm:"not null;index:idx_reservations_status_expiry,priority:1"`
	ExpiresAt     time.Time `gorm:"not null;index:idx_reservations_status_expiry,priority:2"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (RewardReservation) TableName() string { return "reward_reservations" }

func (reservation *RewardReservation) BeforeCreate(tx *gorm.DB) error {
	if reservation.ReservationID == "" {
		reservation.ReservationID = uuid.NewString()
	}
	return nil
}

// BoothWindow mirrors the booth_windows table: one row per booth holding the
// counters for the day named by DateKey.
type BoothWindow struct {
	BoothID     string    `gorm:"primaryKey"`
	DateKey     string    `gorm:"not null"`
	WeightGrams int64     `gorm:"not null"`
	Submissions int64     `gorm:"not null"`
	Version     int64     `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (BoothWindow) TableName() string { return "booth_windows" }

// WasteSubmission mirrors the waste_submissions table.
type WasteSubmission struct {
	SubmissionID  string     `gorm:"type:uuid;primaryKey"`
	AccountID     string     `gorm:"not null;index:idx_submissions_account_status,priority:1"`
	BoothID       string     `gorm:"not null;index"`
	WasteType     string     `gorm:"not null"`
	QuantityGrams int64      `gorm:"not null"`
	PointsEarned  int64      `gorm:"not null"`
	Status        string     `gorm:"not null;index:idx_submissions_account_status,priority:2"`
	VerifiedBy    string     `gorm:""`
	VerifiedAt    *time.Time `gorm:""`
	RejectReason  string     `gorm:""`
	CreatedAt     time.Time  `gorm:"not null"`
}

func (WasteSubmission) TableName() string { return "waste_submissions" }

func (submission *WasteSubmission) BeforeCreate(tx *gorm.DB) error {
	if submission.SubmissionID == "" {
		submission.SubmissionID = uuid.NewString()
	}
	return nil
}

// Migrate creates or updates every table the stores use.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Account{},
		&LedgerEntry{},
		&RewardPool{},
		&RewardReservation{},
		&BoothWindow{},
		&WasteSubmission{},
	)
}
