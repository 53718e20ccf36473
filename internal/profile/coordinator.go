package profile

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tradewire/tradewire/internal/notify"
	"github.com/tradewire/tradewire/internal/validation"
)

// Patch is a partial update: column name -> new value, restricted to one
// section's field set.
type Patch map[string]any

// RecordWriter is the record store's partial-field update operation.
type RecordWriter interface {
	UpdateFields(ctx context.Context, id uuid.UUID, patch map[string]any) error
}

// Reconciler re-fetches the canonical record after a successful write so every
// other reader observes the new values.
type Reconciler interface {
	RefreshProfile(ctx context.Context, id uuid.UUID) (*Record, error)
}

// SaveState tracks one section's save lifecycle.
type SaveState int

const (
	SaveIdle SaveState = iota
	SavePending
	SaveConfirm
	SaveClosed
)

func (s SaveState) String() string {
	switch s {
	case SavePending:
		return "pending"
	case SaveConfirm:
		return "confirm"
	case SaveClosed:
		return "closed"
	default:
		return "idle"
	}
}

// DefaultConfirmDelay is how long the transient success state is held before
// the editor auto-closes.
const DefaultConfirmDelay = 600 * time.Millisecond

type saveSlot struct {
	state SaveState
	timer *time.Timer
	// gen increments each save cycle so a cancelled confirm timer that still
	// fires cannot close a newer cycle.
	gen uint64
}

// slotKey scopes save state to one section of one user's record. Different
// users saving the same section never contend.
type slotKey struct {
	id      uuid.UUID
	section Section
}

// Coordinator drives the save lifecycle for profile sections:
// Pending -> Persist -> Reconcile -> Confirm -> Closed. At most one save per
// section of a user's record is in flight; saves of different sections, and
// saves by different users, run independently.
type Coordinator struct {
	Writer       RecordWriter
	Reconciler   Reconciler
	Sink         notify.Sink
	ConfirmDelay time.Duration
	// OnClose is invoked when a section's confirm interval elapses and that
	// user's editor should close.
	OnClose func(uuid.UUID, Section)

	// after is swappable so tests can drive the confirm timer deterministically.
	after func(d time.Duration, f func()) *time.Timer

	mu    sync.Mutex
	slots map[slotKey]*saveSlot
}

func NewCoordinator(w RecordWriter, r Reconciler, sink notify.Sink) *Coordinator {
	return &Coordinator{
		Writer:       w,
		Reconciler:   r,
		Sink:         sink,
		ConfirmDelay: DefaultConfirmDelay,
		after:        time.AfterFunc,
		slots:        make(map[slotKey]*saveSlot),
	}
}

// State reports the save lifecycle state for one user's section.
func (c *Coordinator) State(id uuid.UUID, section Section) SaveState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if slot, ok := c.slots[slotKey{id, section}]; ok {
		return slot.state
	}
	return SaveIdle
}

// Save validates the patch against the section's field set, persists it as a
// single partial update, awaits the canonical refresh, and enters the timed
// confirm state. Exactly one notification is emitted per terminal outcome and
// exactly one record store write per invocation.
func (c *Coordinator) Save(ctx context.Context, id uuid.UUID, section Section, patch Patch) error {
	if err := c.validate(section, patch); err != nil {
		c.Sink.Notify(notify.Notification{
			Title:   "Could not save",
			Message: err.Error(),
			Type:    notify.TypeError,
		})
		return err
	}

	if err := c.begin(id, section); err != nil {
		return err
	}

	if err := c.Writer.UpdateFields(ctx, id, patch); err != nil {
		c.settle(id, section, SaveIdle)
		perr := &PersistError{Section: section, Err: err}
		log.Printf("save %s for %s failed at persist: %v", section, id, err)
		c.Sink.Notify(notify.Notification{
			Title:   "Save failed",
			Message: err.Error(),
			Type:    notify.TypeError,
		})
		return perr
	}

	if _, err := c.Reconciler.RefreshProfile(ctx, id); err != nil {
		c.settle(id, section, SaveIdle)
		rerr := &ReconcileError{Section: section, Err: err}
		log.Printf("save %s for %s persisted but refresh failed: %v", section, id, err)
		c.Sink.Notify(notify.Notification{
			Title:   "Saved, but couldn't refresh",
			Message: "Your changes were stored but the page may show stale data. Please reload.",
			Type:    notify.TypeError,
		})
		return rerr
	}

	c.Sink.Notify(notify.Notification{
		Title:   "Saved",
		Message: "Your " + string(section) + " details were updated.",
		Type:    notify.TypeSuccess,
	})
	c.confirm(id, section)
	return nil
}

func (c *Coordinator) validate(section Section, patch Patch) error {
	if !section.Valid() {
		return &ValidationError{Reason: ReasonInvalidFields, Violations: validation.Violations{"section": "unknown_section"}}
	}
	if len(patch) == 0 {
		return &ValidationError{Reason: ReasonInvalidFields, Violations: validation.Violations{"patch": "empty"}}
	}
	v := validation.Violations{}
	for field := range patch {
		if !section.Owns(field) {
			v[field] = "outside_section"
		}
	}
	if !v.Empty() {
		return &ValidationError{Reason: ReasonInvalidFields, Violations: v}
	}
	return nil
}

// begin claims the save slot for one user's section. A confirm timer still
// running is cancelled: re-saving during the confirm interval starts a fresh
// cycle.
func (c *Coordinator) begin(id uuid.UUID, section Section) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := slotKey{id, section}
	slot, ok := c.slots[key]
	if !ok {
		slot = &saveSlot{}
		c.slots[key] = slot
	}
	if slot.state == SavePending {
		return ErrSaveInFlight
	}
	if slot.timer != nil {
		slot.timer.Stop()
		slot.timer = nil
	}
	slot.state = SavePending
	slot.gen++
	return nil
}

func (c *Coordinator) settle(id uuid.UUID, section Section, state SaveState) {
	c.mu.Lock()
	if slot, ok := c.slots[slotKey{id, section}]; ok {
		slot.state = state
	}
	c.mu.Unlock()
}

func (c *Coordinator) confirm(id uuid.UUID, section Section) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slot := c.slots[slotKey{id, section}]
	slot.state = SaveConfirm
	gen := slot.gen
	slot.timer = c.after(c.ConfirmDelay, func() {
		c.mu.Lock()
		fire := slot.state == SaveConfirm && slot.gen == gen
		if fire {
			slot.state = SaveClosed
			slot.timer = nil
		}
		c.mu.Unlock()
		if fire && c.OnClose != nil {
			c.OnClose(id, section)
		}
	})
}
