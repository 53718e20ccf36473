package profile

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type RoleKind string

const (
	RoleApprentice  RoleKind = "apprentice"
	RoleElectrician RoleKind = "electrician"
	RoleEmployer    RoleKind = "employer"
)

// Role is the record's role variant. Exactly one variant exists per record and
// it never changes through this subsystem.
type Role interface {
	Kind() RoleKind
}

type Apprentice struct {
	Year             int    `json:"year"`
	Level            string `json:"level"`
	TrainingProvider string `json:"training_provider"`
	ECSCardStatus    string `json:"ecs_card_status"`
	SupervisorName   string `json:"supervisor_name"`
}

func (Apprentice) Kind() RoleKind { return RoleApprentice }

type Electrician struct {
	JobTitle        string `json:"job_title"`
	Specialisation  string `json:"specialisation"`
	YearsExperience int    `json:"years_experience"`
	ECSCardType     string `json:"ecs_card_type"`
}

func (Electrician) Kind() RoleKind { return RoleElectrician }

// Employer carries its own fields plus an electrician-shaped Trade sub-record:
// employer accounts edit their trade details as a separate section.
type Employer struct {
	BusinessPosition string      `json:"business_position"`
	CompanySize      string      `json:"company_size"`
	Trade            Electrician `json:"trade"`
}

func (Employer) Kind() RoleKind { return RoleEmployer }

// Record is the canonical profile record as last fetched from the record store.
// Only the save coordinator writes it back; everything else treats it as
// read-only and re-seeds from it.
type Record struct {
	ID        uuid.UUID
	Email     string
	FullName  string
	AvatarURL string
	Role      Role
}

type recordJSON struct {
	ID          uuid.UUID    `json:"id"`
	Email       string       `json:"email"`
	FullName    string       `json:"full_name"`
	AvatarURL   string       `json:"avatar_url,omitempty"`
	Role        RoleKind     `json:"role"`
	Apprentice  *Apprentice  `json:"apprentice,omitempty"`
	Electrician *Electrician `json:"electrician,omitempty"`
	Employer    *Employer    `json:"employer,omitempty"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{ID: r.ID, Email: r.Email, FullName: r.FullName, AvatarURL: r.AvatarURL}
	switch v := r.Role.(type) {
	case Apprentice:
		out.Role = RoleApprentice
		out.Apprentice = &v
	case Electrician:
		out.Role = RoleElectrician
		out.Electrician = &v
	case Employer:
		out.Role = RoleEmployer
		out.Employer = &v
	case nil:
		return nil, fmt.Errorf("record %s has no role variant", r.ID)
	default:
		return nil, fmt.Errorf("record %s has unknown role variant %T", r.ID, r.Role)
	}
	return json.Marshal(out)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.ID = in.ID
	r.Email = in.Email
	r.FullName = in.FullName
	r.AvatarURL = in.AvatarURL
	switch in.Role {
	case RoleApprentice:
		if in.Apprentice == nil {
			return fmt.Errorf("record %s: role %s without variant payload", in.ID, in.Role)
		}
		r.Role = *in.Apprentice
	case RoleElectrician:
		if in.Electrician == nil {
			return fmt.Errorf("record %s: role %s without variant payload", in.ID, in.Role)
		}
		r.Role = *in.Electrician
	case RoleEmployer:
		if in.Employer == nil {
			return fmt.Errorf("record %s: role %s without variant payload", in.ID, in.Role)
		}
		r.Role = *in.Employer
	default:
		return fmt.Errorf("record %s: unknown role %q", in.ID, in.Role)
	}
	return nil
}
