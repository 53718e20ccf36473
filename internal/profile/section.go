package profile

// Section is an independently save-able, field-disjoint subset of the profile
// record. A section save transmits only its own columns, never the whole record.
type Section string

const (
	SectionIdentity    Section = "identity"
	SectionApprentice  Section = "apprentice"
	SectionElectrician Section = "electrician"
	SectionEmployer    Section = "employer"
)

// Patch column names (record store schema).
const (
	FieldFullName  = "full_name"
	FieldAvatarURL = "avatar_url"

	FieldApprenticeYear   = "apprentice_year"
	FieldApprenticeLevel  = "apprentice_level"
	FieldTrainingProvider = "training_provider"
	FieldECSCardStatus    = "ecs_card_status"
	FieldSupervisorName   = "supervisor_name"

	FieldJobTitle        = "job_title"
	FieldSpecialisation  = "specialisation"
	FieldYearsExperience = "years_experience"
	FieldECSCardType     = "ecs_card_type"

	FieldBusinessPosition = "business_position"
	FieldCompanySize      = "company_size"
)

var sectionFields = map[Section][]string{
	SectionIdentity:    {FieldFullName, FieldAvatarURL},
	SectionApprentice:  {FieldApprenticeYear, FieldApprenticeLevel, FieldTrainingProvider, FieldECSCardStatus, FieldSupervisorName},
	SectionElectrician: {FieldJobTitle, FieldSpecialisation, FieldYearsExperience, FieldECSCardType},
	SectionEmployer:    {FieldBusinessPosition, FieldCompanySize},
}

// Fields returns the ordered column set belonging to a section. The returned
// slice must not be mutated.
func (s Section) Fields() []string { return sectionFields[s] }

// Owns reports whether the column belongs to this section's field set.
func (s Section) Owns(field string) bool {
	for _, f := range sectionFields[s] {
		if f == field {
			return true
		}
	}
	return false
}

func (s Section) Valid() bool {
	_, ok := sectionFields[s]
	return ok
}

// SectionsFor lists the sections exposed for a role. Employer accounts get an
// electrician-shaped trade section on top of their own.
func SectionsFor(kind RoleKind) []Section {
	switch kind {
	case RoleApprentice:
		return []Section{SectionIdentity, SectionApprentice}
	case RoleElectrician:
		return []Section{SectionIdentity, SectionElectrician}
	case RoleEmployer:
		return []Section{SectionIdentity, SectionEmployer, SectionElectrician}
	default:
		return nil
	}
}

// AvailableFor reports whether the section is exposed for the given role.
func (s Section) AvailableFor(kind RoleKind) bool {
	for _, sec := range SectionsFor(kind) {
		if sec == s {
			return true
		}
	}
	return false
}
