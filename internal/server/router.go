package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradewire/tradewire/internal/auth"
	"github.com/tradewire/tradewire/internal/handlers"
	"github.com/tradewire/tradewire/internal/httpx"
	"github.com/tradewire/tradewire/internal/identity"
	"github.com/tradewire/tradewire/internal/models"
	"github.com/tradewire/tradewire/internal/notify"
	"github.com/tradewire/tradewire/internal/profile"
	"github.com/tradewire/tradewire/internal/records"
)

// Options carries the externally-owned collaborators the core is wired to.
type Options struct {
	Cache     identity.RecordCache // optional shared record cache
	Assets    profile.BlobStore
	UploadDir string // when set, blobs are served from /uploads/
	Sink      notify.Sink
}

// New constructs the root http.Handler with all routes and middlewares applied.
func New(db *gorm.DB, opts Options) http.Handler {
	if opts.Sink == nil {
		opts.Sink = notify.LogSink{}
	}

	mux := http.NewServeMux()

	// Configure a user verifier so RequireAuth can ensure the user still exists.
	auth.SetUserVerifier(func(_ context.Context, uid uuid.UUID) bool {
		var count int64
		if err := db.Model(&models.Profile{}).Where("id = ?", uid).Limit(1).Count(&count).Error; err != nil {
			return false
		}
		return count > 0
	})

	//revive:disable:unused-parameter simple handlers intentionally ignore *http.Request
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	//revive:enable:unused-parameter

	store := records.NewStore(db)
	provider := identity.NewProvider(store, opts.Cache)
	coord := profile.NewCoordinator(store, provider, opts.Sink)
	uploads := profile.NewUploadPipeline(opts.Assets, coord, opts.Sink)

	authHandler := handlers.NewAuthHandler(db)
	authHandler.Register(mux)

	sh := handlers.NewSettingsHandler(db, provider, coord, uploads, opts.Sink)
	mux.Handle("/settings", auth.Middleware(auth.RequireAuth(http.HandlerFunc(sh.Overview))))
	mux.Handle("/settings/profile", auth.Middleware(auth.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
			return
		}
		sh.Profile(w, r)
	}))))
	mux.Handle("/settings/profile/section", auth.Middleware(auth.RequireAuth(http.HandlerFunc(sh.SaveSection))))
	mux.Handle("/settings/profile/avatar", auth.Middleware(auth.RequireAuth(http.HandlerFunc(sh.UploadAvatar))))

	bh := handlers.NewBrandingHandler(db, opts.Assets, opts.Sink)
	mux.Handle("/settings/branding", auth.Middleware(auth.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			bh.Get(w, r)
		case http.MethodPost, http.MethodPut:
			bh.Save(w, r)
		default:
			w.Header().Set("Allow", "GET,POST,PUT")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		}
	}))))
	mux.Handle("/settings/branding/logo", auth.Middleware(auth.RequireAuth(http.HandlerFunc(bh.UploadLogo))))

	if opts.UploadDir != "" {
		fs := http.FileServer(http.Dir(opts.UploadDir))
		mux.Handle("/uploads/", http.StripPrefix("/uploads/", fs))
	}

	return withRecover(withLogging(mux))
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("panic serving %s %s: %v", r.Method, r.URL.Path, rec)
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
