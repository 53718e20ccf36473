package handlers

import (
	"errors"
	"net/http"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tradewire/tradewire/internal/auth"
	"github.com/tradewire/tradewire/internal/httpx"
	"github.com/tradewire/tradewire/internal/identity"
	"github.com/tradewire/tradewire/internal/models"
	"github.com/tradewire/tradewire/internal/notify"
	"github.com/tradewire/tradewire/internal/profile"
)

// SettingsHandler exposes the multi-section profile editing flow: read the
// canonical record, save one section at a time, upload an avatar.
type SettingsHandler struct {
	db       *gorm.DB
	identity *identity.Provider
	coord    *profile.Coordinator
	uploads  *profile.UploadPipeline
	sink     notify.Sink
}

func NewSettingsHandler(db *gorm.DB, provider *identity.Provider, coord *profile.Coordinator, uploads *profile.UploadPipeline, sink notify.Sink) *SettingsHandler {
	return &SettingsHandler{db: db, identity: provider, coord: coord, uploads: uploads, sink: sink}
}

// Overview returns the profile record and company branding in one response.
func (h *SettingsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var (
		rec      *profile.Record
		branding models.CompanyBranding
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		rec, err = h.identity.GetProfile(ctx, uid)
		return err
	})
	g.Go(func() error {
		err := h.db.WithContext(ctx).Where("user_id = ?", uid).First(&branding).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			branding = models.CompanyBranding{UserID: uid}
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "settings_unavailable", nil)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"profile":  rec,
		"branding": branding,
		"sections": profile.SectionsFor(rec.Role.Kind()),
	})
}

// Profile returns the canonical record for the session user.
func (h *SettingsHandler) Profile(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	rec, err := h.identity.GetProfile(r.Context(), uid)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "profile_unavailable", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

type saveSectionRequest struct {
	Section string         `json:"section"`
	Fields  map[string]any `json:"fields"`
}

// SaveSection seeds an edit buffer from the canonical record, applies the
// submitted field values, and runs the save lifecycle for that one section.
func (h *SettingsHandler) SaveSection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())

	var req saveSectionRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_body", nil)
		return
	}

	rec, err := h.identity.GetProfile(r.Context(), uid)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "profile_unavailable", nil)
		return
	}

	buf := profile.NewEditBuffer(profile.Section(req.Section))
	if err := buf.Open(rec); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_section", err.Error())
		return
	}
	unsubscribe := h.identity.Subscribe(uid, buf)
	defer unsubscribe()

	for name, value := range req.Fields {
		if err := buf.SetField(name, value); err != nil {
			// Field rejection is a terminal outcome of the save attempt, so it
			// notifies exactly like the coordinator's own validation does.
			var verr *profile.ValidationError
			if errors.As(err, &verr) {
				h.sink.Notify(notify.Notification{
					Title:   "Could not save",
					Message: err.Error(),
					Type:    notify.TypeError,
				})
			}
			writeSaveError(w, err)
			return
		}
	}

	if err := h.coord.Save(r.Context(), uid, buf.Section(), buf.Patch()); err != nil {
		writeSaveError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"saved":   true,
		"profile": h.identity.Profile(uid),
	})
}

// UploadAvatar validates and stores a new profile photo, then commits its URL
// through the same save path as any other identity field.
func (h *SettingsHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())

	file, header, err := r.FormFile("avatar")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "missing_file", nil)
		return
	}
	defer file.Close()

	job, err := h.uploads.UploadPhoto(r.Context(), uid, profile.UploadFile{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     file,
	})
	if err != nil {
		// A reconcile failure means the URL was committed and only the refresh
		// failed: the client still needs the URL it just uploaded.
		var rerr *profile.ReconcileError
		if errors.As(err, &rerr) {
			httpx.JSON(w, http.StatusOK, map[string]any{
				"saved":      true,
				"warning":    "refresh_failed",
				"avatar_url": job.URL,
			})
			return
		}
		writeSaveError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"avatar_url": job.URL,
		"state":      job.State(),
	})
}

// writeSaveError maps the save/upload error taxonomy onto HTTP responses.
// A reconcile failure reports success-with-warning: the write landed and the
// client must not re-submit it.
func writeSaveError(w http.ResponseWriter, err error) {
	var verr *profile.ValidationError
	var perr *profile.PersistError
	var rerr *profile.ReconcileError
	var uerr *profile.UploadError
	switch {
	case errors.As(err, &verr):
		httpx.JSONError(w, http.StatusBadRequest, verr.Reason, verr.Violations)
	case errors.Is(err, profile.ErrSaveInFlight):
		httpx.JSONError(w, http.StatusConflict, "save_in_flight", nil)
	case errors.As(err, &rerr):
		httpx.JSON(w, http.StatusOK, map[string]any{"saved": true, "warning": "refresh_failed"})
	case errors.As(err, &perr):
		httpx.JSONError(w, http.StatusInternalServerError, "save_failed", perr.Err.Error())
	case errors.As(err, &uerr):
		httpx.JSONError(w, http.StatusBadGateway, "upload_failed", nil)
	default:
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}
