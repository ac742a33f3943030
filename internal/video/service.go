package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/vidstash/service/internal/storage"
)

// MaxUploadBytes is the upload size ceiling. Oversized files are rejected
// before a single byte reaches the object store.
const MaxUploadBytes int64 = 200 << 20 // 200 MB

// Folder is the logical folder all uploaded objects live under.
const Folder = "videos"

// ErrNoFile is returned when an upload request carries no file.
var ErrNoFile = errors.New("no file uploaded")

// ErrTooLarge is returned when an uploaded file exceeds MaxUploadBytes.
var ErrTooLarge = errors.New("file exceeds upload size limit")

// ErrObjectStore marks failures talking to the object store.
var ErrObjectStore = errors.New("object store failure")

// ErrRecordStore marks failures talking to the record store.
var ErrRecordStore = errors.New("record store failure")

// RecordStore is the persistence interface the service depends on,
// implemented by Repository.
type RecordStore interface {
	Insert(ctx context.Context, name, url string) (*Video, error)
	List(ctx context.Context) ([]Video, error)
	GetByID(ctx context.Context, id string) (*Video, error)
	Update(ctx context.Context, id, name, url string) (*Video, error)
	Delete(ctx context.Context, id string) (*Video, error)
}

// Upload describes an incoming multipart file.
type Upload struct {
	Filename    string
	Reader      io.Reader
	Size        int64
	ContentType string
}

// Service coordinates the two external stores for the upload workflow.
// Within one call the object-store step and the record-store step run
// strictly sequentially; there is no transaction spanning the two, so a
// failure between them can leave an orphaned remote object (never an
// orphaned record on create).
type Service struct {
	records RecordStore
	store   storage.Storage
}

// NewService creates a new video Service.
func NewService(records RecordStore, store storage.Storage) *Service {
	return &Service{records: records, store: store}
}

// Create uploads the file to the object store and then inserts a record
// pointing at it. The record's name is the original filename.
func (s *Service) Create(ctx context.Context, up *Upload) (*Video, error) {
	if up == nil || up.Reader == nil {
		return nil, ErrNoFile
	}
	if up.Size > MaxUploadBytes {
		return nil, ErrTooLarge
	}

	key := Folder + "/" + uuid.NewString()
	if err := s.store.Upload(ctx, key, up.Reader, up.Size, up.ContentType); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrObjectStore, err)
	}

	v, err := s.records.Insert(ctx, up.Filename, s.store.PublicURL(key))
	if err != nil {
		// The object is already stored; without cross-store transactions it
		// stays behind as an orphan.
		log.Printf("video: insert failed after upload, orphaned object %q: %v", key, err)
		return nil, fmt.Errorf("%w: %v", ErrRecordStore, err)
	}
	return v, nil
}

// List returns all video records in store order.
func (s *Service) List(ctx context.Context) ([]Video, error) {
	videos, err := s.records.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordStore, err)
	}
	return videos, nil
}

// Get returns one video record or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*Video, error) {
	return s.records.GetByID(ctx, id)
}

// Update overwrites the record's name and, when a new file is supplied,
// uploads it and replaces the url. The previous remote object is left in
// place. With no file, fallbackURL (if non-empty) replaces the url;
// otherwise the stored url is kept.
func (s *Service) Update(ctx context.Context, id, name string, up *Upload, fallbackURL string) (*Video, error) {
	existing, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	newURL := existing.URL
	switch {
	case up != nil && up.Reader != nil:
		if up.Size > MaxUploadBytes {
			return nil, ErrTooLarge
		}
		key := Folder + "/" + uuid.NewString()
		if err := s.store.Upload(ctx, key, up.Reader, up.Size, up.ContentType); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrObjectStore, err)
		}
		newURL = s.store.PublicURL(key)
	case fallbackURL != "":
		newURL = fallbackURL
	}

	v, err := s.records.Update(ctx, id, name, newURL)
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordStore, err)
	}
	return v, nil
}

// Delete removes the record and then attempts, best-effort, to remove the
// remote object. The record removal is authoritative: a failed remote
// delete is logged and otherwise ignored.
func (s *Service) Delete(ctx context.Context, id string) (*Video, error) {
	v, err := s.records.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordStore, err)
	}

	key := Folder + "/" + ObjectID(v.URL)
	if err := s.store.Delete(ctx, key); err != nil {
		log.Printf("video: remote delete of %q failed, object orphaned: %v", key, err)
	}
	return v, nil
}

// SaveDirect inserts a record with a caller-supplied url, bypassing the
// object store entirely. No existence check is made on the url.
func (s *Service) SaveDirect(ctx context.Context, name, rawurl string) (*Video, error) {
	v, err := s.records.Insert(ctx, name, rawurl)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordStore, err)
	}
	return v, nil
}

// ObjectID derives the remote object's identifier from its url: the last
// path segment with any extension stripped. Uploaded keys carry no
// extension, so for them this is the exact object name.
func ObjectID(rawurl string) string {
	p := rawurl
	if u, err := url.Parse(rawurl); err == nil && u.Path != "" {
		p = u.Path
	}
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}
