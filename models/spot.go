package models

import (
	"time"

	"bitbucket.org/ostrovlabs/loyalty_backend/utils"
)

// Spot is a POS sales location.
type Spot struct {
	ID              int        `gorm:"primary_key" json:"id"`
	SpotID          int64      `gorm:"uniqueIndex;not null" json:"spot_id" validate:"required,gt=0"`
	Name            string     `gorm:"size:255" json:"name"`
	Address         string     `gorm:"size:255" json:"address"`
	SourceUpdatedAt *time.Time `json:"source_updated_at"`
	LastSyncedAt    *time.Time `json:"last_synced_at"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Spot) ExternalId() int64 {
	return s.SpotID
}

func (s *Spot) SourceTime() *time.Time {
	return s.SourceUpdatedAt
}

func (s *Spot) Validate() error {
	return utils.ValidateStruct(s)
}
