package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRecords is an in-memory RecordStore.
type fakeRecords struct {
	mu        sync.Mutex
	videos    map[string]*Video
	order     []string
	insertErr error
	listErr   error
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{videos: make(map[string]*Video)}
}

func (f *fakeRecords) Insert(_ context.Context, name, url string) (*Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	v := &Video{
		ID:        uuid.NewString(),
		Name:      name,
		URL:       url,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	f.videos[v.ID] = v
	f.order = append(f.order, v.ID)
	cp := *v
	return &cp, nil
}

func (f *fakeRecords) List(_ context.Context) ([]Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]Video, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, *f.videos[id])
	}
	return out, nil
}

func (f *fakeRecords) GetByID(_ context.Context, id string) (*Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (f *fakeRecords) Update(_ context.Context, id, name, url string) (*Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[id]
	if !ok {
		return nil, ErrNotFound
	}
	v.Name, v.URL, v.UpdatedAt = name, url, time.Now()
	cp := *v
	return &cp, nil
}

func (f *fakeRecords) Delete(_ context.Context, id string) (*Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(f.videos, id)
	for i, oid := range f.order {
		if oid == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return v, nil
}

// fakeStore is an in-memory object store that records every call.
type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploads   int
	deletes   []string
	uploadErr error
	deleteErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Upload(_ context.Context, key string, reader io.Reader, _ int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.objects[key] = data
	f.uploads++
	return nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, key)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeStore) PublicURL(key string) string {
	return "http://cdn.test/" + key
}

func (f *fakeStore) object(url string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[strings.TrimPrefix(url, "http://cdn.test/")]
	return data, ok
}

func newTestService() (*Service, *fakeRecords, *fakeStore) {
	records := newFakeRecords()
	store := newFakeStore()
	return NewService(records, store), records, store
}

func upload(name, content string) *Upload {
	return &Upload{
		Filename:    name,
		Reader:      bytes.NewReader([]byte(content)),
		Size:        int64(len(content)),
		ContentType: "video/mp4",
	}
}

func TestCreate(t *testing.T) {
	svc, _, store := newTestService()

	v, err := svc.Create(context.Background(), upload("cats.mp4", "binary-video-bytes"))
	require.NoError(t, err)
	assert.NotEmpty(t, v.ID)
	assert.Equal(t, "cats.mp4", v.Name)

	videos, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "cats.mp4", videos[0].Name)

	data, ok := store.object(videos[0].URL)
	require.True(t, ok, "url must resolve to a stored object")
	assert.Equal(t, []byte("binary-video-bytes"), data)
}

func TestCreateNoFile(t *testing.T) {
	svc, records, store := newTestService()

	_, err := svc.Create(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoFile)

	_, err = svc.Create(context.Background(), &Upload{Filename: "x.mp4"})
	assert.ErrorIs(t, err, ErrNoFile)

	assert.Empty(t, records.order)
	assert.Zero(t, store.uploads)
}

func TestCreateOversized(t *testing.T) {
	svc, records, store := newTestService()

	up := upload("big.mp4", "irrelevant")
	up.Size = MaxUploadBytes + 1

	_, err := svc.Create(context.Background(), up)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Zero(t, store.uploads, "no bytes may reach the store")
	assert.Empty(t, records.order)
}

func TestCreateStorageFailure(t *testing.T) {
	svc, records, store := newTestService()
	store.uploadErr = errors.New("connection refused")

	_, err := svc.Create(context.Background(), upload("a.mp4", "data"))
	assert.ErrorIs(t, err, ErrObjectStore)
	assert.Empty(t, records.order, "no record without a stored object")
}

func TestCreateInsertFailureOrphansObject(t *testing.T) {
	svc, records, store := newTestService()
	records.insertErr = errors.New("connection reset")

	_, err := svc.Create(context.Background(), upload("a.mp4", "data"))
	assert.ErrorIs(t, err, ErrRecordStore)

	// The uploaded object stays behind; there is no compensation step.
	assert.Equal(t, 1, store.uploads)
	assert.Len(t, store.objects, 1)
}

func TestDelete(t *testing.T) {
	svc, _, store := newTestService()

	v, err := svc.Create(context.Background(), upload("gone.mp4", "data"))
	require.NoError(t, err)

	_, err = svc.Delete(context.Background(), v.ID)
	require.NoError(t, err)

	videos, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, videos)

	require.Len(t, store.deletes, 1, "exactly one remote delete")
	assert.Equal(t, Folder+"/"+ObjectID(v.URL), store.deletes[0])
	_, ok := store.object(v.URL)
	assert.False(t, ok)
}

func TestDeleteNotFound(t *testing.T) {
	svc, _, store := newTestService()

	_, err := svc.Delete(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, store.deletes, "no remote delete for a missing record")
}

func TestDeleteRemoteFailureIsBestEffort(t *testing.T) {
	svc, _, store := newTestService()

	v, err := svc.Create(context.Background(), upload("stuck.mp4", "data"))
	require.NoError(t, err)

	store.deleteErr = errors.New("service unavailable")

	// The record removal is authoritative even when the remote delete fails.
	_, err = svc.Delete(context.Background(), v.ID)
	require.NoError(t, err)

	videos, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, videos)
}

func TestUpdateNameOnly(t *testing.T) {
	svc, _, store := newTestService()

	v, err := svc.Create(context.Background(), upload("old.mp4", "data"))
	require.NoError(t, err)
	uploadsBefore := store.uploads

	updated, err := svc.Update(context.Background(), v.ID, "renamed.mp4", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "renamed.mp4", updated.Name)
	assert.Equal(t, v.URL, updated.URL, "url unchanged without a new file")
	assert.Equal(t, uploadsBefore, store.uploads, "no new upload")
}

func TestUpdateWithNewFile(t *testing.T) {
	svc, _, store := newTestService()

	v, err := svc.Create(context.Background(), upload("v1.mp4", "first"))
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), v.ID, "v2.mp4", upload("v2.mp4", "second"), "")
	require.NoError(t, err)
	assert.NotEqual(t, v.URL, updated.URL)

	// The replaced object is orphaned, not deleted.
	old, ok := store.object(v.URL)
	require.True(t, ok, "previous object must still be retrievable")
	assert.Equal(t, []byte("first"), old)

	fresh, ok := store.object(updated.URL)
	require.True(t, ok)
	assert.Equal(t, []byte("second"), fresh)
	assert.Empty(t, store.deletes)
}

func TestUpdateFallbackURL(t *testing.T) {
	svc, _, _ := newTestService()

	v, err := svc.Create(context.Background(), upload("v1.mp4", "first"))
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), v.ID, "v1.mp4", nil, "https://elsewhere.test/clip")
	require.NoError(t, err)
	assert.Equal(t, "https://elsewhere.test/clip", updated.URL)
}

func TestUpdateNotFound(t *testing.T) {
	svc, _, store := newTestService()

	_, err := svc.Update(context.Background(), uuid.NewString(), "x", upload("x.mp4", "data"), "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, store.uploads, "no upload for a missing record")
}

func TestSaveDirect(t *testing.T) {
	svc, _, store := newTestService()

	v, err := svc.SaveDirect(context.Background(), "external", "https://cdn.other.test/abc")
	require.NoError(t, err)
	assert.Equal(t, "external", v.Name)
	assert.Equal(t, "https://cdn.other.test/abc", v.URL)

	assert.Zero(t, store.uploads)
	assert.Empty(t, store.deletes)
}

func TestConcurrentCreates(t *testing.T) {
	svc, _, store := newTestService()

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("clip-%d.mp4", i)
			_, err := svc.Create(context.Background(), upload(name, "content-"+name))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	videos, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, videos, n)

	// Every record's url must resolve to the bytes uploaded under its name.
	for _, v := range videos {
		data, ok := store.object(v.URL)
		require.True(t, ok, "url for %s must resolve", v.Name)
		assert.Equal(t, []byte("content-"+v.Name), data)
	}
}

func TestObjectID(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			name: "uploaded key without extension",
			url:  "http://localhost:9000/vidstash/videos/5a1f0c9e",
			want: "5a1f0c9e",
		},
		{
			name: "external url with extension",
			url:  "https://cdn.other.test/media/holiday.mp4",
			want: "holiday",
		},
		{
			name: "bare path",
			url:  "videos/abc.webm",
			want: "abc",
		},
		{
			name: "query string ignored",
			url:  "https://cdn.other.test/media/clip.mov?token=x",
			want: "clip",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ObjectID(tt.url))
		})
	}
}
