package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradewire/tradewire/internal/models"
	"github.com/tradewire/tradewire/internal/profile"
)

// ErrNotFound is returned when no profile row exists for the id.
var ErrNotFound = errors.New("profile not found")

// Store is the keyed record store over the profiles table. UpdateFields issues
// a partial update of exactly the given columns; the rest of the row is never
// transmitted.
type Store struct {
	DB *gorm.DB
}

func NewStore(db *gorm.DB) *Store { return &Store{DB: db} }

// Get reads the canonical record by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*profile.Record, error) {
	var row models.Profile
	err := s.DB.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", id, err)
	}
	return ToRecord(&row), nil
}

// UpdateFields applies a partial update keyed by id. Only the given columns
// are written; a zero-row result means the profile does not exist.
func (s *Store) UpdateFields(ctx context.Context, id uuid.UUID, patch map[string]any) error {
	if len(patch) == 0 {
		return errors.New("empty patch")
	}
	res := s.DB.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", id).Updates(patch)
	if res.Error != nil {
		return fmt.Errorf("could not save your changes: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Create inserts a new profile row.
func (s *Store) Create(ctx context.Context, row *models.Profile) error {
	return s.DB.WithContext(ctx).Create(row).Error
}

// ToRecord maps a profile row to the domain record, folding the flat
// role-variant columns into the tagged union.
func ToRecord(row *models.Profile) *profile.Record {
	rec := &profile.Record{
		ID:       row.ID,
		Email:    row.Email,
		FullName: row.FullName,
	}
	if row.AvatarURL != nil {
		rec.AvatarURL = *row.AvatarURL
	}
	trade := profile.Electrician{
		JobTitle:        row.JobTitle,
		Specialisation:  row.Specialisation,
		YearsExperience: row.YearsExperience,
		ECSCardType:     row.ECSCardType,
	}
	switch row.Role {
	case models.RoleApprentice:
		rec.Role = profile.Apprentice{
			Year:             row.ApprenticeYear,
			Level:            row.ApprenticeLevel,
			TrainingProvider: row.TrainingProvider,
			ECSCardStatus:    row.ECSCardStatus,
			SupervisorName:   row.SupervisorName,
		}
	case models.RoleElectrician:
		rec.Role = trade
	case models.RoleEmployer:
		rec.Role = profile.Employer{
			BusinessPosition: row.BusinessPosition,
			CompanySize:      row.CompanySize,
			Trade:            trade,
		}
	}
	return rec
}
