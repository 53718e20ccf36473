package models

import (
	"time"

	"github.com/google/uuid"
)

// Role values are fixed at account creation. Settings flows never change them.
const (
	RoleApprentice  = "apprentice"
	RoleElectrician = "electrician"
	RoleEmployer    = "employer"
)

// ECS card application states for apprentices.
const (
	ECSNotApplied = "not_applied"
	ECSApplied    = "applied"
	ECSReceived   = "received"
)

// Profile is the canonical per-user record. Role-variant fields live flat in the
// row; the profile package exposes them as a tagged union and guarantees that a
// section save only ever touches its own column subset.
type Profile struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"-"` // Hashed, never exposed in JSON
	FullName  string    `gorm:"column:full_name;size:255" json:"full_name,omitempty"`
	AvatarURL *string   `gorm:"column:avatar_url;size:500" json:"avatar_url,omitempty"`
	Role      string    `gorm:"size:20;not null" json:"role"`

	// Apprentice section.
	ApprenticeYear   int    `gorm:"column:apprentice_year" json:"apprentice_year,omitempty"`
	ApprenticeLevel  string `gorm:"column:apprentice_level;size:50" json:"apprentice_level,omitempty"`
	TrainingProvider string `gorm:"column:training_provider;size:255" json:"training_provider,omitempty"`
	ECSCardStatus    string `gorm:"column:ecs_card_status;size:20" json:"ecs_card_status,omitempty"`
	SupervisorName   string `gorm:"column:supervisor_name;size:255" json:"supervisor_name,omitempty"`

	// Electrician section (also editable by employers for their own trade details).
	JobTitle        string `gorm:"column:job_title;size:255" json:"job_title,omitempty"`
	Specialisation  string `gorm:"column:specialisation;size:255" json:"specialisation,omitempty"`
	YearsExperience int    `gorm:"column:years_experience" json:"years_experience,omitempty"`
	ECSCardType     string `gorm:"column:ecs_card_type;size:50" json:"ecs_card_type,omitempty"`

	// Employer section.
	BusinessPosition string `gorm:"column:business_position;size:255" json:"business_position,omitempty"`
	CompanySize      string `gorm:"column:company_size;size:50" json:"company_size,omitempty"`
}
