package profile

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/tradewire/tradewire/internal/validation"
)

// DefaultApprenticeYear seeds the year field when the record never had one set.
const DefaultApprenticeYear = 1

var ecsCardStatuses = []string{"not_applied", "applied", "received"}

// EditBuffer holds a draft copy of one section's fields. It is seeded from the
// canonical record on open, mutated locally via SetField, and discarded on
// cancel. It never writes the canonical record itself; Patch() hands the full
// section field set to the save coordinator.
//
// Buffers subscribe to canonical-record changes through Reseed: a refresh
// elsewhere re-seeds the draft unless the user already has unsaved edits.
type EditBuffer struct {
	section Section

	mu     sync.Mutex
	open   bool
	dirty  bool
	fields map[string]any
}

func NewEditBuffer(section Section) *EditBuffer {
	return &EditBuffer{section: section}
}

func (b *EditBuffer) Section() Section { return b.section }

// Open seeds the draft from the record for exactly this section's field set.
// Opening an already-open buffer discards the draft and seeds again.
func (b *EditBuffer) Open(rec *Record) error {
	if !b.section.Valid() {
		return fmt.Errorf("unknown section %q", b.section)
	}
	if rec == nil || rec.Role == nil {
		return fmt.Errorf("open %s: no canonical record", b.section)
	}
	if !b.section.AvailableFor(rec.Role.Kind()) {
		return fmt.Errorf("section %s is not available for role %s", b.section, rec.Role.Kind())
	}
	fields, err := seed(b.section, rec)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.open = true
	b.dirty = false
	b.fields = fields
	b.mu.Unlock()
	return nil
}

// Reseed refreshes the draft from a changed canonical record. Buffers with
// unsaved edits are left alone so in-progress input is never clobbered.
func (b *EditBuffer) Reseed(rec *Record) {
	b.mu.Lock()
	skip := !b.open || b.dirty
	b.mu.Unlock()
	if skip {
		return
	}
	_ = b.Open(rec)
}

// SetField mutates only the draft. The field must belong to the buffer's
// section; values are coerced and validated per field.
func (b *EditBuffer) SetField(name string, value any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return ErrBufferClosed
	}
	if !b.section.Owns(name) {
		return &ValidationError{Reason: ReasonInvalidFields, Violations: validation.Violations{name: "unknown_field"}}
	}
	coerced, err := coerceField(name, value)
	if err != nil {
		return err
	}
	b.fields[name] = coerced
	b.dirty = true
	return nil
}

// Cancel discards the draft with no side effects.
func (b *EditBuffer) Cancel() {
	b.mu.Lock()
	b.open = false
	b.dirty = false
	b.fields = nil
	b.mu.Unlock()
}

// Close marks the editor closed after a completed save.
func (b *EditBuffer) Close() { b.Cancel() }

func (b *EditBuffer) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

func (b *EditBuffer) IsDirty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dirty
}

// Patch returns the full section field set (changed or not) as the partial
// update to transmit. Returns nil if the buffer is not open.
func (b *EditBuffer) Patch() Patch {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return nil
	}
	out := make(Patch, len(b.fields))
	for k, v := range b.fields {
		out[k] = v
	}
	return out
}

// Field returns the current draft value for a field.
func (b *EditBuffer) Field(name string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return nil, false
	}
	v, ok := b.fields[name]
	return v, ok
}

func seed(section Section, rec *Record) (map[string]any, error) {
	fields := make(map[string]any)
	switch section {
	case SectionIdentity:
		fields[FieldFullName] = rec.FullName
		fields[FieldAvatarURL] = rec.AvatarURL
	case SectionApprentice:
		a, ok := rec.Role.(Apprentice)
		if !ok {
			return nil, fmt.Errorf("record role %s has no apprentice data", rec.Role.Kind())
		}
		year := a.Year
		if year == 0 {
			year = DefaultApprenticeYear
		}
		status := a.ECSCardStatus
		if status == "" {
			status = "not_applied"
		}
		fields[FieldApprenticeYear] = year
		fields[FieldApprenticeLevel] = a.Level
		fields[FieldTrainingProvider] = a.TrainingProvider
		fields[FieldECSCardStatus] = status
		fields[FieldSupervisorName] = a.SupervisorName
	case SectionElectrician:
		var e Electrician
		switch role := rec.Role.(type) {
		case Electrician:
			e = role
		case Employer:
			e = role.Trade
		default:
			return nil, fmt.Errorf("record role %s has no electrician data", rec.Role.Kind())
		}
		fields[FieldJobTitle] = e.JobTitle
		fields[FieldSpecialisation] = e.Specialisation
		fields[FieldYearsExperience] = e.YearsExperience
		fields[FieldECSCardType] = e.ECSCardType
	case SectionEmployer:
		emp, ok := rec.Role.(Employer)
		if !ok {
			return nil, fmt.Errorf("record role %s has no employer data", rec.Role.Kind())
		}
		fields[FieldBusinessPosition] = emp.BusinessPosition
		fields[FieldCompanySize] = emp.CompanySize
	default:
		return nil, fmt.Errorf("unknown section %q", section)
	}
	return fields, nil
}

func coerceField(name string, value any) (any, error) {
	switch name {
	case FieldApprenticeYear, FieldYearsExperience:
		n, err := coerceInt(value)
		if err != nil {
			return nil, &ValidationError{Reason: ReasonInvalidFields, Violations: validation.Violations{name: "not_a_number"}}
		}
		v := validation.Violations{}
		if name == FieldApprenticeYear {
			validation.IntRange(name, n, 1, 5, v)
		} else {
			validation.IntRange(name, n, 0, 80, v)
		}
		if !v.Empty() {
			return nil, &ValidationError{Reason: ReasonInvalidFields, Violations: v}
		}
		return n, nil
	case FieldECSCardStatus:
		s, err := coerceString(value)
		if err != nil {
			return nil, err
		}
		v := validation.Violations{}
		validation.OneOf(name, s, ecsCardStatuses, v)
		if !v.Empty() {
			return nil, &ValidationError{Reason: ReasonInvalidFields, Violations: v}
		}
		return s, nil
	default:
		return coerceString(value)
	}
}

func coerceInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		return int(n), err
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	default:
		return 0, fmt.Errorf("cannot coerce %T to int", value)
	}
}

func coerceString(value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", &ValidationError{Reason: ReasonInvalidFields, Violations: validation.Violations{"value": "not_a_string"}}
	}
	return s, nil
}
