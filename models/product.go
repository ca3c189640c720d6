package models

import (
	"time"

	"bitbucket.org/ostrovlabs/loyalty_backend/utils"
	"github.com/shopspring/decimal"
)

// Product is a menu item from the POS catalogue.
type Product struct {
	ID              int             `gorm:"primary_key" json:"id"`
	PosProductID    int64           `gorm:"uniqueIndex;not null" json:"pos_product_id" validate:"required,gt=0"`
	Name            string          `gorm:"size:255" json:"name"`
	CategoryID      int64           `gorm:"default:0" json:"category_id"`
	CategoryName    string          `gorm:"size:255" json:"category_name"`
	Cost            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost"`
	Hidden          bool            `gorm:"default:false" json:"hidden"`
	Deleted         bool            `gorm:"default:false" json:"deleted"`
	SourceUpdatedAt *time.Time      `json:"source_updated_at"`
	LastSyncedAt    *time.Time      `json:"last_synced_at"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Product) ExternalId() int64 {
	return p.PosProductID
}

func (p *Product) SourceTime() *time.Time {
	return p.SourceUpdatedAt
}

func (p *Product) Validate() error {
	return utils.ValidateStruct(p)
}
