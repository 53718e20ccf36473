package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tradewire/tradewire/internal/assets"
	"github.com/tradewire/tradewire/internal/auth"
	"github.com/tradewire/tradewire/internal/models"
	"github.com/tradewire/tradewire/internal/notify"
)

func setupE2EDB(t *testing.T) *gorm.DB {
	t.Helper()
	dbi, err := gorm.Open(sqlite.Open("file:e2e_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := dbi.AutoMigrate(&models.Profile{}, &models.CompanyBranding{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return dbi
}

func seedApprentice(t *testing.T, dbi *gorm.DB) *models.Profile {
	t.Helper()
	row := &models.Profile{
		ID:               uuid.New(),
		Email:            "jamie@example.com",
		Password:         "hash",
		FullName:         "Jamie Watts",
		Role:             models.RoleApprentice,
		ApprenticeYear:   2,
		ApprenticeLevel:  "level2",
		TrainingProvider: "JTL",
		ECSCardStatus:    models.ECSApplied,
	}
	if err := dbi.Create(row).Error; err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	return row
}

func sessionCookie(t *testing.T, uid uuid.UUID) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	auth.CreateSession(rec, uid)
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	t.Fatalf("no session cookie")
	return nil
}

func newTestApp(t *testing.T, dbi *gorm.DB, sink *notify.Memory) http.Handler {
	t.Helper()
	dir := t.TempDir()
	return New(dbi, Options{
		Assets:    assets.NewDiskStore(dir, "http://test.local"),
		UploadDir: dir,
		Sink:      sink,
	})
}

func TestSaveSectionE2E(t *testing.T) {
	dbi := setupE2EDB(t)
	row := seedApprentice(t, dbi)
	sink := &notify.Memory{}
	app := newTestApp(t, dbi, sink)

	// The year arrives as a string, the way form-driven clients submit it.
	body := `{"section":"apprentice","fields":{"apprentice_year":"3","apprentice_level":"level3"}}`
	req := httptest.NewRequest(http.MethodPost, "/settings/profile/section", strings.NewReader(body))
	req.AddCookie(sessionCookie(t, row.ID))
	rr := httptest.NewRecorder()
	app.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Saved bool `json:"saved"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Saved {
		t.Fatalf("expected saved=true body=%s", rr.Body.String())
	}

	var got models.Profile
	if err := dbi.First(&got, "id = ?", row.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.ApprenticeYear != 3 || got.ApprenticeLevel != "level3" {
		t.Fatalf("patch not applied: year=%d level=%q", got.ApprenticeYear, got.ApprenticeLevel)
	}
	if got.TrainingProvider != "JTL" || got.FullName != "Jamie Watts" {
		t.Fatalf("columns outside the section changed: %+v", got)
	}

	sent := sink.All()
	if len(sent) != 1 || sent[0].Type != notify.TypeSuccess {
		t.Fatalf("expected one success notification, got %v", sent)
	}
}

func TestSaveSectionRejectsForeignFieldE2E(t *testing.T) {
	dbi := setupE2EDB(t)
	row := seedApprentice(t, dbi)
	sink := &notify.Memory{}
	app := newTestApp(t, dbi, sink)

	body := `{"section":"apprentice","fields":{"job_title":"Sparky"}}`
	req := httptest.NewRequest(http.MethodPost, "/settings/profile/section", strings.NewReader(body))
	req.AddCookie(sessionCookie(t, row.ID))
	rr := httptest.NewRecorder()
	app.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", rr.Code, rr.Body.String())
	}
	var got models.Profile
	if err := dbi.First(&got, "id = ?", row.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.JobTitle != "" {
		t.Fatalf("rejected field was written: %q", got.JobTitle)
	}
	sent := sink.All()
	if len(sent) != 1 || sent[0].Type != notify.TypeError {
		t.Fatalf("expected one error notification, got %v", sent)
	}
}

func TestSaveSectionUnknownSectionE2E(t *testing.T) {
	dbi := setupE2EDB(t)
	row := seedApprentice(t, dbi)
	app := newTestApp(t, dbi, &notify.Memory{})

	body := `{"section":"employer","fields":{"company_size":"11-50"}}`
	req := httptest.NewRequest(http.MethodPost, "/settings/profile/section", strings.NewReader(body))
	req.AddCookie(sessionCookie(t, row.ID))
	rr := httptest.NewRecorder()
	app.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("apprentice must not save the employer section: got %d body=%s", rr.Code, rr.Body.String())
	}
}

func multipartBody(t *testing.T, field, filename, contentType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return buf, mw.FormDataContentType()
}

func TestAvatarUploadE2E(t *testing.T) {
	dbi := setupE2EDB(t)
	row := seedApprentice(t, dbi)
	sink := &notify.Memory{}
	dir := t.TempDir()
	app := New(dbi, Options{
		Assets:    assets.NewDiskStore(dir, "http://test.local"),
		UploadDir: dir,
		Sink:      sink,
	})

	body, ct := multipartBody(t, "avatar", "me.png", "image/png", []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/settings/profile/avatar", body)
	req.Header.Set("Content-Type", ct)
	req.AddCookie(sessionCookie(t, row.ID))
	rr := httptest.NewRecorder()
	app.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		AvatarURL string `json:"avatar_url"`
		State     string `json:"state"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.State != "done" {
		t.Fatalf("expected done state got %q", resp.State)
	}
	prefix := "http://test.local/uploads/" + row.ID.String() + "/"
	if !strings.HasPrefix(resp.AvatarURL, prefix) {
		t.Fatalf("avatar url not namespaced under the user: %q", resp.AvatarURL)
	}

	var got models.Profile
	if err := dbi.First(&got, "id = ?", row.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.AvatarURL == nil || *got.AvatarURL != resp.AvatarURL {
		t.Fatalf("avatar url not committed to the record: %v", got.AvatarURL)
	}

	rel := strings.TrimPrefix(resp.AvatarURL, "http://test.local/uploads/")
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("stored blob missing: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Fatalf("stored blob corrupted: %q", data)
	}

	// The blob is also reachable through the public file route.
	fileReq := httptest.NewRequest(http.MethodGet, "/uploads/"+rel, nil)
	fileRR := httptest.NewRecorder()
	app.ServeHTTP(fileRR, fileReq)
	if fileRR.Code != http.StatusOK {
		t.Fatalf("uploaded blob not served: %d", fileRR.Code)
	}
}

func TestAvatarUploadOversizeRejectedE2E(t *testing.T) {
	dbi := setupE2EDB(t)
	row := seedApprentice(t, dbi)
	sink := &notify.Memory{}
	app := newTestApp(t, dbi, sink)

	body, ct := multipartBody(t, "avatar", "huge.png", "image/png", bytes.Repeat([]byte("x"), 3<<20))
	req := httptest.NewRequest(http.MethodPost, "/settings/profile/avatar", body)
	req.Header.Set("Content-Type", ct)
	req.AddCookie(sessionCookie(t, row.ID))
	rr := httptest.NewRecorder()
	app.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "file_too_large") {
		t.Fatalf("expected file_too_large error, body=%s", rr.Body.String())
	}
	var got models.Profile
	if err := dbi.First(&got, "id = ?", row.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.AvatarURL != nil {
		t.Fatalf("avatar must be untouched after rejection: %v", *got.AvatarURL)
	}
}

func TestAvatarUploadNonImageRejectedE2E(t *testing.T) {
	dbi := setupE2EDB(t)
	row := seedApprentice(t, dbi)
	app := newTestApp(t, dbi, &notify.Memory{})

	body, ct := multipartBody(t, "avatar", "cv.pdf", "application/pdf", []byte("%PDF"))
	req := httptest.NewRequest(http.MethodPost, "/settings/profile/avatar", body)
	req.Header.Set("Content-Type", ct)
	req.AddCookie(sessionCookie(t, row.ID))
	rr := httptest.NewRecorder()
	app.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "invalid_file_type") {
		t.Fatalf("expected invalid_file_type error, body=%s", rr.Body.String())
	}
}

func TestSettingsRequireAuthE2E(t *testing.T) {
	dbi := setupE2EDB(t)
	app := newTestApp(t, dbi, &notify.Memory{})

	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	rr := httptest.NewRecorder()
	app.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func TestOverviewListsSectionsForRoleE2E(t *testing.T) {
	dbi := setupE2EDB(t)
	row := &models.Profile{
		ID:       uuid.New(),
		Email:    "boss@example.com",
		Password: "hash",
		Role:     models.RoleEmployer,
	}
	if err := dbi.Create(row).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	app := newTestApp(t, dbi, &notify.Memory{})

	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	req.AddCookie(sessionCookie(t, row.ID))
	rr := httptest.NewRecorder()
	app.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Sections []string `json:"sections"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []string{"identity", "employer", "electrician"}
	if len(resp.Sections) != len(want) {
		t.Fatalf("sections mismatch: got %v want %v", resp.Sections, want)
	}
	for i := range want {
		if resp.Sections[i] != want[i] {
			t.Fatalf("sections mismatch: got %v want %v", resp.Sections, want)
		}
	}
}

func TestSignupLoginFlowE2E(t *testing.T) {
	dbi := setupE2EDB(t)
	app := newTestApp(t, dbi, &notify.Memory{})

	signup := `{"email":"new@example.com","password":"s3cret","full_name":"New Sparky","role":"electrician"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(signup))
	rr := httptest.NewRecorder()
	app.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201 got %d body=%s", rr.Code, rr.Body.String())
	}

	var sess *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == "session" {
			sess = c
		}
	}
	if sess == nil {
		t.Fatalf("signup did not set a session cookie")
	}

	// The fresh session can read its own profile.
	profReq := httptest.NewRequest(http.MethodGet, "/settings/profile", nil)
	profReq.AddCookie(sess)
	profRR := httptest.NewRecorder()
	app.ServeHTTP(profRR, profReq)
	if profRR.Code != http.StatusOK {
		t.Fatalf("profile read: expected 200 got %d body=%s", profRR.Code, profRR.Body.String())
	}

	login := `{"email":"new@example.com","password":"s3cret"}`
	loginReq := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(login))
	loginRR := httptest.NewRecorder()
	app.ServeHTTP(loginRR, loginReq)
	if loginRR.Code != http.StatusOK {
		t.Fatalf("login: expected 200 got %d body=%s", loginRR.Code, loginRR.Body.String())
	}

	badReq := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"new@example.com","password":"wrong"}`))
	badRR := httptest.NewRecorder()
	app.ServeHTTP(badRR, badReq)
	if badRR.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401 got %d", badRR.Code)
	}
}

func TestBrandingSaveAndFetchE2E(t *testing.T) {
	dbi := setupE2EDB(t)
	row := seedApprentice(t, dbi)
	sink := &notify.Memory{}
	app := newTestApp(t, dbi, sink)
	cookie := sessionCookie(t, row.ID)

	body := `{"company_name":"Watts Electrical","primary_color":"#ffcc00"}`
	req := httptest.NewRequest(http.MethodPost, "/settings/branding", strings.NewReader(body))
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	app.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("branding save: expected 200 got %d body=%s", rr.Code, rr.Body.String())
	}

	getReq := httptest.NewRequest(http.MethodGet, "/settings/branding", nil)
	getReq.AddCookie(cookie)
	getRR := httptest.NewRecorder()
	app.ServeHTTP(getRR, getReq)
	if getRR.Code != http.StatusOK {
		t.Fatalf("branding get: expected 200 got %d", getRR.Code)
	}
	var branding models.CompanyBranding
	if err := json.Unmarshal(getRR.Body.Bytes(), &branding); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if branding.CompanyName != "Watts Electrical" || branding.PrimaryColor != "#ffcc00" {
		t.Fatalf("branding mismatch: %+v", branding)
	}
}
