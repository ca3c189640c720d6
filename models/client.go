package models

import (
	"context"
	"time"

	"bitbucket.org/ostrovlabs/loyalty_backend/config"
	"bitbucket.org/ostrovlabs/loyalty_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Client mirrors a loyalty-program member from the POS. Bonus is a cached
// balance; the ledger in bonusLedger.go is the source of truth and
// ApplyLedgerEntry is its only writer.
type Client struct {
	ID              int             `gorm:"primary_key" json:"id"`
	ClientID        int64           `gorm:"uniqueIndex;not null" json:"client_id" validate:"required,gt=0"`
	Firstname       string          `gorm:"size:100" json:"firstname"`
	Lastname        string          `gorm:"size:100" json:"lastname"`
	Patronymic      string          `gorm:"size:100" json:"patronymic"`
	Phone           string          `gorm:"size:30" json:"phone"`
	PhoneNumber     string          `gorm:"size:30;index" json:"phone_number"`
	Email           string          `gorm:"size:100" json:"email"`
	Birthday        string          `gorm:"size:20" json:"birthday"`
	CardNumber      string          `gorm:"size:50" json:"card_number"`
	City            string          `gorm:"size:100" json:"city"`
	Address         string          `gorm:"size:255" json:"address"`
	Bonus           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"bonus"`
	DiscountPer     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount_per"`
	GroupID         int64           `gorm:"default:0" json:"group_id"`
	GroupName       string          `gorm:"size:100" json:"group_name"`
	GroupDiscount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"group_discount"`
	TotalPayedSum   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_payed_sum"`
	Deleted         bool            `gorm:"default:false" json:"deleted"`
	RawData         []byte          `gorm:"type:json" json:"raw_data"`
	SourceUpdatedAt *time.Time      `json:"source_updated_at"`
	LastSyncedAt    *time.Time      `json:"last_synced_at"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Client) ExternalId() int64 {
	return c.ClientID
}

func (c *Client) SourceTime() *time.Time {
	return c.SourceUpdatedAt
}

func (c *Client) Validate() error {
	return utils.ValidateStruct(c)
}

func GetClientByExternalId(ctx context.Context, clientId int64) (*Client, error) {
	db := config.GetDB()
	var client Client
	if err := db.WithContext(ctx).Where("client_id = ?", clientId).First(&client).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &client, nil
}
