package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Merchant struct {
	ID         snowflake.ID               `gorm:"primaryKey" json:"id"`
	Name       string                     `gorm:"not null" json:"name"`
	Address    string                     `gorm:"not null;uniqueIndex" json:"address"`
	WebhookURL string                     `gorm:"column:webhook_url;not null" json:"webhookUrl"`
	ChainIDs   datatypes.JSONSlice[int64] `gorm:"column:chain_ids" json:"chainIds"`
	CreatedAt  time.Time                  `gorm:"not null" json:"createdAt"`
	UpdatedAt  time.Time                  `gorm:"not null" json:"updatedAt"`
}

func (Merchant) TableName() string { return "merchants" }
