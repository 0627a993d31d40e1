package mirror

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	mu    sync.Mutex
	fails int
	calls int
	keys  []string
}

func (f *fakeUploader) PutFile(_ context.Context, key, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fails > 0 {
		f.fails--
		return errors.New("temporary failure")
	}
	f.keys = append(f.keys, key)
	return nil
}

type countRecorder struct {
	mu       sync.Mutex
	ok, fail int
}

func (r *countRecorder) ObserveMirrorUpload(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok {
		r.ok++
	} else {
		r.fail++
	}
}

func writeFile(t *testing.T, p string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("data"), 0o644))
	return p
}

func noBackoff(int) time.Duration { return 0 }

func TestMirror_UploadsWithRetry(t *testing.T) {
	dir := t.TempDir()
	up := &fakeUploader{fails: 2}
	rec := &countRecorder{}
	m := New(up, dir, Options{Prefix: "/worlds\\w1/", Backoff: noBackoff, Recorder: rec})

	m.Enqueue(writeFile(t, filepath.Join(dir, "Sections", "frame.bp.json.zst")))
	m.Close()

	assert.Equal(t, []string{"worlds/w1/Sections/frame.bp.json.zst"}, up.keys)
	assert.Equal(t, 3, up.calls)
	st := m.Stats()
	assert.Equal(t, uint64(1), st.EnqueuedTotal)
	assert.Equal(t, uint64(1), st.UploadSuccessTotal)
	assert.Zero(t, st.UploadFailTotal)
	assert.NotZero(t, st.LastSuccessUnix)
	assert.Equal(t, 1, rec.ok)
}

func TestMirror_FailureAndSkips(t *testing.T) {
	dir := t.TempDir()
	up := &fakeUploader{fails: 100}
	rec := &countRecorder{}
	m := New(up, dir, Options{Attempts: 2, Backoff: noBackoff, Recorder: rec})

	m.Enqueue(writeFile(t, filepath.Join(dir, "a.bp.json.zst")))
	m.Enqueue(filepath.Join(dir, "missing.bp.json.zst"))
	m.Enqueue(writeFile(t, filepath.Join(t.TempDir(), "outside.zst")))
	m.Close()

	assert.Equal(t, 2, up.calls, "only the existing file inside the data dir is tried")
	st := m.Stats()
	assert.Equal(t, uint64(3), st.EnqueuedTotal)
	assert.Equal(t, uint64(1), st.UploadFailTotal)
	assert.NotZero(t, st.LastErrorUnix)
	assert.Equal(t, 1, rec.fail)
}

func TestMirror_NilIsNoop(t *testing.T) {
	var m *Mirror
	m.Enqueue("x")
	m.Close()
	assert.Equal(t, Stats{}, m.Stats())
}

func TestMirror_DropsWhenSaturated(t *testing.T) {
	dir := t.TempDir()
	block := make(chan struct{})
	up := &blockingUploader{release: block, started: make(chan struct{})}
	m := New(up, dir, Options{QueueCapacity: 1, EnqueueWait: time.Millisecond, Backoff: noBackoff})

	p := writeFile(t, filepath.Join(dir, "a.zst"))
	m.Enqueue(p)
	<-up.started
	m.Enqueue(p)
	m.Enqueue(p)
	close(block)
	m.Close()

	st := m.Stats()
	assert.Equal(t, uint64(3), st.EnqueuedTotal)
	assert.Equal(t, uint64(1), st.DroppedTotal)
	assert.Equal(t, uint64(2), st.UploadSuccessTotal)
}

type blockingUploader struct {
	release chan struct{}
	once    sync.Once
	started chan struct{}
}

func (b *blockingUploader) PutFile(context.Context, string, string) error {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return nil
}
