package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradewire/tradewire/internal/auth"
	"github.com/tradewire/tradewire/internal/httpx"
	"github.com/tradewire/tradewire/internal/models"
	"github.com/tradewire/tradewire/internal/notify"
	"github.com/tradewire/tradewire/internal/profile"
	"github.com/tradewire/tradewire/internal/validation"
)

// BrandingHandler manages per-user company branding. It follows the same
// partial-save pattern as the profile sections: only submitted fields are
// written.
type BrandingHandler struct {
	db     *gorm.DB
	assets profile.BlobStore
	sink   notify.Sink
}

func NewBrandingHandler(db *gorm.DB, assets profile.BlobStore, sink notify.Sink) *BrandingHandler {
	return &BrandingHandler{db: db, assets: assets, sink: sink}
}

func (h *BrandingHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var branding models.CompanyBranding
	err := h.db.WithContext(r.Context()).Where("user_id = ?", uid).First(&branding).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		branding.UserID = uid
	}
	httpx.JSON(w, http.StatusOK, branding)
}

type brandingRequest struct {
	CompanyName  *string `json:"company_name"`
	Tagline      *string `json:"tagline"`
	Phone        *string `json:"phone"`
	Website      *string `json:"website"`
	PrimaryColor *string `json:"primary_color"`
}

// Save upserts the branding row, writing only the fields present in the body.
func (h *BrandingHandler) Save(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var req brandingRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_body", nil)
		return
	}

	fe := validation.Violations{}
	patch := map[string]any{}
	if req.CompanyName != nil {
		name := strings.TrimSpace(*req.CompanyName)
		validation.Required("company_name", name, fe)
		validation.MaxLen("company_name", name, 255, fe)
		patch["company_name"] = name
	}
	if req.Tagline != nil {
		validation.MaxLen("tagline", *req.Tagline, 255, fe)
		patch["tagline"] = strings.TrimSpace(*req.Tagline)
	}
	if req.Phone != nil {
		validation.MaxLen("phone", *req.Phone, 50, fe)
		patch["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.Website != nil {
		validation.MaxLen("website", *req.Website, 255, fe)
		patch["website"] = strings.TrimSpace(*req.Website)
	}
	if req.PrimaryColor != nil {
		validation.MaxLen("primary_color", *req.PrimaryColor, 20, fe)
		patch["primary_color"] = strings.TrimSpace(*req.PrimaryColor)
	}
	if !fe.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", fe)
		return
	}
	if len(patch) == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "empty_patch", nil)
		return
	}

	branding, err := h.upsert(r.Context(), uid, patch)
	if err != nil {
		log.Printf("branding save for %s: %v", uid, err)
		httpx.JSONError(w, http.StatusInternalServerError, "save_failed", nil)
		return
	}

	h.sink.Notify(notify.Notification{Title: "Saved", Message: "Company branding updated.", Type: notify.TypeSuccess})
	httpx.JSON(w, http.StatusOK, branding)
}

// UploadLogo stores a company logo under the user's own namespace and records
// its public URL. Same validation rules as profile photos.
func (h *BrandingHandler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())

	file, header, err := r.FormFile("logo")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "missing_file", nil)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if err := profile.ValidateImage(contentType, header.Size, profile.MaxUploadBytes); err != nil {
		var verr *profile.ValidationError
		if errors.As(err, &verr) {
			h.sink.Notify(notify.Notification{Title: "Logo rejected", Message: verr.Reason, Type: notify.TypeError})
			httpx.JSONError(w, http.StatusBadRequest, verr.Reason, nil)
			return
		}
		httpx.JSONError(w, http.StatusBadRequest, "invalid_file", nil)
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == "" {
		ext = ".png"
	}
	path := fmt.Sprintf("%s/logo-%d%s", uid, time.Now().UnixMilli(), ext)
	if err := h.assets.Upload(r.Context(), path, file, header.Size, contentType); err != nil {
		log.Printf("logo upload for %s: %v", uid, err)
		h.sink.Notify(notify.Notification{Title: "Upload failed", Message: "Your logo could not be uploaded.", Type: notify.TypeError})
		httpx.JSONError(w, http.StatusBadGateway, "upload_failed", nil)
		return
	}

	url := h.assets.PublicURL(path)
	branding, err := h.upsert(r.Context(), uid, map[string]any{"logo_url": url})
	if err != nil {
		log.Printf("logo commit for %s: %v", uid, err)
		httpx.JSONError(w, http.StatusInternalServerError, "save_failed", nil)
		return
	}

	h.sink.Notify(notify.Notification{Title: "Saved", Message: "Company logo updated.", Type: notify.TypeSuccess})
	httpx.JSON(w, http.StatusOK, branding)
}

func (h *BrandingHandler) upsert(ctx context.Context, uid uuid.UUID, patch map[string]any) (*models.CompanyBranding, error) {
	var branding models.CompanyBranding
	err := h.db.WithContext(ctx).Where("user_id = ?", uid).First(&branding).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		branding = models.CompanyBranding{UserID: uid}
		if err := h.db.WithContext(ctx).Create(&branding).Error; err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	if err := h.db.WithContext(ctx).Model(&branding).Updates(patch).Error; err != nil {
		return nil, err
	}
	if err := h.db.WithContext(ctx).Where("user_id = ?", uid).First(&branding).Error; err != nil {
		return nil, err
	}
	return &branding, nil
}
