package models

import (
	"time"

	"github.com/google/uuid"
)

// CompanyBranding holds per-user business branding shown on quotes and reports.
// One row per user; the logo is stored in the asset store and referenced by URL.
type CompanyBranding struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	UserID       uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	CompanyName  string    `gorm:"column:company_name;size:255" json:"company_name,omitempty"`
	Tagline      string    `gorm:"size:255" json:"tagline,omitempty"`
	Phone        string    `gorm:"size:50" json:"phone,omitempty"`
	Website      string    `gorm:"size:255" json:"website,omitempty"`
	PrimaryColor string    `gorm:"column:primary_color;size:20" json:"primary_color,omitempty"`
	LogoURL      *string   `gorm:"column:logo_url;size:500" json:"logo_url,omitempty"`
}
