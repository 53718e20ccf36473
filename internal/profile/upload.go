package profile

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tradewire/tradewire/internal/notify"
)

// MaxUploadBytes is the photo size ceiling (2 MiB).
const MaxUploadBytes int64 = 2 << 20

// BlobStore is the asset store: content-addressed-by-path blob storage with
// overwrite semantics and stable public URLs.
type BlobStore interface {
	Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) error
	PublicURL(path string) string
}

// Saver is the save coordinator contract the pipeline commits through.
type Saver interface {
	Save(ctx context.Context, id uuid.UUID, section Section, patch Patch) error
}

// JobState tracks one upload job instance. Rejected, failed and done are
// terminal: no further transitions for that job.
type JobState string

const (
	JobSelected   JobState = "selected"
	JobValidating JobState = "validating"
	JobRejected   JobState = "rejected"
	JobUploading  JobState = "uploading"
	JobCommitting JobState = "committing"
	JobFailed     JobState = "failed"
	JobDone       JobState = "done"
)

func (s JobState) Terminal() bool {
	return s == JobRejected || s == JobFailed || s == JobDone
}

var jobTransitions = map[JobState][]JobState{
	JobSelected:   {JobValidating},
	JobValidating: {JobRejected, JobUploading},
	JobUploading:  {JobFailed, JobCommitting},
	JobCommitting: {JobFailed, JobDone},
}

// UploadFile describes a user-selected file.
type UploadFile struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

// UploadJob is the transient state of one photo upload.
type UploadJob struct {
	Path string
	URL  string

	state JobState
	err   error
}

func (j *UploadJob) State() JobState { return j.state }
func (j *UploadJob) Err() error      { return j.err }

func (j *UploadJob) advance(to JobState) error {
	for _, allowed := range jobTransitions[j.state] {
		if allowed == to {
			j.state = to
			return nil
		}
	}
	return fmt.Errorf("upload job: illegal transition %s -> %s", j.state, to)
}

// UploadPipeline validates a selected photo, uploads it under the owner's id,
// and commits the public URL as a single-field identity save through the
// coordinator. Either the whole pipeline succeeds and the record is updated,
// or it fails and nothing changes.
type UploadPipeline struct {
	Assets   BlobStore
	Saver    Saver
	Sink     notify.Sink
	MaxBytes int64

	now func() time.Time
}

func NewUploadPipeline(assets BlobStore, saver Saver, sink notify.Sink) *UploadPipeline {
	return &UploadPipeline{
		Assets:   assets,
		Saver:    saver,
		Sink:     sink,
		MaxBytes: MaxUploadBytes,
		now:      time.Now,
	}
}

// UploadPhoto runs the full pipeline for one file. The returned job reflects
// the terminal state; the error carries the failure taxonomy. Terminal
// notifications: rejected/failed-before-commit notify here, the commit's
// outcome is notified by the coordinator.
func (p *UploadPipeline) UploadPhoto(ctx context.Context, userID uuid.UUID, f UploadFile) (*UploadJob, error) {
	job := &UploadJob{state: JobSelected}
	_ = job.advance(JobValidating)

	if err := ValidateImage(f.ContentType, f.Size, p.MaxBytes); err != nil {
		_ = job.advance(JobRejected)
		job.err = err
		p.Sink.Notify(notify.Notification{
			Title:   "Photo rejected",
			Message: rejectionMessage(err, p.MaxBytes),
			Type:    notify.TypeError,
		})
		return job, err
	}

	job.Path = DerivePath(userID, f.Name, f.ContentType, p.now())
	_ = job.advance(JobUploading)

	if err := p.Assets.Upload(ctx, job.Path, f.Content, f.Size, f.ContentType); err != nil {
		_ = job.advance(JobFailed)
		uerr := &UploadError{Stage: "upload", Err: err}
		job.err = uerr
		log.Printf("avatar upload for %s failed: %v", userID, err)
		p.Sink.Notify(notify.Notification{
			Title:   "Upload failed",
			Message: "Your photo could not be uploaded. Please try again.",
			Type:    notify.TypeError,
		})
		return job, uerr
	}

	job.URL = p.Assets.PublicURL(job.Path)
	_ = job.advance(JobCommitting)

	if err := p.Saver.Save(ctx, userID, SectionIdentity, Patch{FieldAvatarURL: job.URL}); err != nil {
		// The coordinator already notified for its terminal outcome.
		_ = job.advance(JobFailed)
		job.err = err
		return job, err
	}

	_ = job.advance(JobDone)
	return job, nil
}

// ValidateImage applies the pre-network checks: MIME type must indicate an
// image and size must not exceed the ceiling.
func ValidateImage(contentType string, size, maxBytes int64) error {
	if !strings.HasPrefix(contentType, "image/") {
		return &ValidationError{Reason: ReasonInvalidFileType}
	}
	if size > maxBytes {
		return &ValidationError{Reason: ReasonFileTooLarge}
	}
	return nil
}

func rejectionMessage(err error, maxBytes int64) string {
	if verr, ok := err.(*ValidationError); ok {
		switch verr.Reason {
		case ReasonInvalidFileType:
			return "Please choose an image file."
		case ReasonFileTooLarge:
			return fmt.Sprintf("Photos must be %d MB or smaller.", maxBytes/(1<<20))
		}
	}
	return err.Error()
}

var extByContentType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// DerivePath builds the storage path {userId}/{userId}-{timestamp}{ext}. The
// leading user-id segment is required by the asset store's access policy; the
// timestamp keeps successive uploads from colliding or serving stale cache
// entries.
func DerivePath(userID uuid.UUID, filename, contentType string, ts time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		if mapped, ok := extByContentType[strings.ToLower(contentType)]; ok {
			ext = mapped
		} else {
			ext = ".img"
		}
	}
	return fmt.Sprintf("%s/%s-%d%s", userID, userID, ts.UnixMilli(), ext)
}
