package tasks

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pngx/internal/engine"
	"github.com/desertthunder/pngx/internal/pipeline"
	"github.com/desertthunder/pngx/internal/png"
	"github.com/desertthunder/pngx/internal/repositories"
	"github.com/desertthunder/pngx/internal/shared"
	tu "github.com/desertthunder/pngx/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStore = errors.New("disk full")

type memStore struct {
	mu        sync.Mutex
	saved     map[string]png.Metadata
	forgotten []string
	fail      map[string]bool
}

func newMemStore(fail ...string) *memStore {
	s := &memStore{saved: map[string]png.Metadata{}, fail: map[string]bool{}}
	for _, f := range fail {
		s.fail[f] = true
	}
	return s
}

func (s *memStore) SaveImage(path string, md png.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[filepath.Base(path)] {
		return errStore
	}
	s.saved[path] = md
	return nil
}

func (s *memStore) ForgetImage(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.saved, path)
	s.forgotten = append(s.forgotten, path)
	return nil
}

func (s *memStore) savedNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for p := range s.saved {
		out = append(out, filepath.Base(p))
	}
	sort.Strings(out)
	return out
}

func (s *memStore) forgottenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.forgotten)
}

func fakeExtract(fail ...string) pipeline.ExtractFunc {
	return func(path string, formatted bool) (png.Metadata, error) {
		for _, f := range fail {
			if filepath.Base(path) == f {
				return nil, errors.New("not a png")
			}
		}
		return png.Metadata{"name": filepath.Base(path)}, nil
	}
}

func makeDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		tu.WriteFile(t, dir, n, []byte("x"))
	}
	return dir
}

func quietLogger() *log.Logger { return log.New(io.Discard) }

func newIndexer(store ImageStore, extract pipeline.ExtractFunc) *Indexer {
	p := pipeline.NewProcessor(pipeline.Options{Extract: extract, Logger: quietLogger()})
	return NewIndexer(p, store, quietLogger())
}

func TestIndexer_Index(t *testing.T) {
	t.Run("saves every extracted file", func(t *testing.T) {
		dir := makeDir(t, "a.png", "b.png", "broken.png", "notes.txt")
		store := newMemStore()
		ix := newIndexer(store, fakeExtract("broken.png"))

		ctx := engine.WithCorrelationID(context.Background(), "scan-1")
		res, err := ix.Index(ctx, nil, []string{dir}, IndexOpts{Save: true, Workers: 2})
		require.NoError(t, err)

		assert.Equal(t, "scan-1", res.CorrelationID)
		assert.Equal(t, 3, res.Discovered)
		assert.Equal(t, 2, res.Extracted)
		assert.Equal(t, 1, res.ExtractFailed)
		assert.Equal(t, 2, res.Indexed)
		assert.Zero(t, res.SaveFailed)
		assert.False(t, res.Cancelled)
		assert.Equal(t, []string{"a.png", "b.png"}, store.savedNames())
	})

	t.Run("save failures are counted and tagged", func(t *testing.T) {
		dir := makeDir(t, "a.png", "b.png", "c.png")
		store := newMemStore("b.png")

		var buf bytes.Buffer
		p := pipeline.NewProcessor(pipeline.Options{Extract: fakeExtract(), Logger: quietLogger()})
		ix := NewIndexer(p, store, log.New(&buf))

		ctx := engine.WithCorrelationID(context.Background(), "scan-2")
		res, err := ix.Index(ctx, nil, []string{dir}, IndexOpts{Save: true, Workers: 1})
		require.NoError(t, err)

		assert.Equal(t, 2, res.Indexed)
		assert.Equal(t, 1, res.SaveFailed)
		assert.Equal(t, []string{"a.png", "c.png"}, store.savedNames())
		assert.Contains(t, buf.String(), "cid=scan-2")
		assert.Contains(t, buf.String(), "disk full")
	})

	t.Run("generates a correlation id", func(t *testing.T) {
		ix := newIndexer(newMemStore(), fakeExtract())
		res, err := ix.Index(context.Background(), nil, []string{makeDir(t, "a.png")}, IndexOpts{})
		require.NoError(t, err)
		assert.NotEmpty(t, res.CorrelationID)
	})

	t.Run("streams without saving", func(t *testing.T) {
		d1 := makeDir(t, "1.png", "2.png")
		d2 := makeDir(t, "3.png")
		ix := NewIndexer(pipeline.NewProcessor(pipeline.Options{Extract: fakeExtract(), Logger: quietLogger()}), nil, quietLogger())

		var seen []string
		res, err := ix.Index(context.Background(), nil, []string{d1, d2}, IndexOpts{
			OnItem: func(path string, md png.Metadata) { seen = append(seen, md["name"].(string)) },
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"1.png", "2.png", "3.png"}, seen)
		assert.Equal(t, 3, res.Extracted)
		assert.Zero(t, res.Indexed)
	})

	t.Run("save requires a store", func(t *testing.T) {
		ix := NewIndexer(pipeline.NewProcessor(pipeline.Options{Logger: quietLogger()}), nil, nil)
		_, err := ix.Index(context.Background(), nil, []string{t.TempDir()}, IndexOpts{Save: true})
		assert.Error(t, err)
	})

	t.Run("cancellation returns the partial result", func(t *testing.T) {
		dir := makeDir(t, "a.png", "b.png", "c.png", "d.png")
		store := newMemStore()
		ix := newIndexer(store, fakeExtract())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		res, err := ix.Index(ctx, nil, []string{dir}, IndexOpts{
			Save:    true,
			Workers: 1,
			OnItem:  func(string, png.Metadata) { cancel() },
		})

		require.ErrorIs(t, err, context.Canceled)
		require.NotNil(t, res)
		assert.True(t, res.Cancelled)
		assert.Equal(t, 1, res.Extracted)
		assert.Equal(t, 1, res.Indexed+res.Abandoned)
	})

	t.Run("missing directories are reported", func(t *testing.T) {
		ix := newIndexer(newMemStore(), fakeExtract())
		res, err := ix.Index(context.Background(), nil, []string{filepath.Join(t.TempDir(), "gone"), makeDir(t, "a.png")}, IndexOpts{Save: true})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Directories)
		assert.Equal(t, 1, res.Missing)
		assert.Equal(t, 1, res.Indexed)
	})
}

func TestIndexer_Progress(t *testing.T) {
	dir := makeDir(t, "a.png", "b.png")
	ix := newIndexer(newMemStore(), fakeExtract())

	progress := make(chan ProgressUpdate, 16)
	_, err := ix.Index(context.Background(), progress, []string{dir}, IndexOpts{Save: true})
	require.NoError(t, err)
	close(progress)

	var phases []Phase
	for u := range progress {
		phases = append(phases, u.Phase)
	}
	require.NotEmpty(t, phases)
	assert.Equal(t, ScanDirectories, phases[0])
	assert.Equal(t, Finished, phases[len(phases)-1])
	assert.Contains(t, phases, ExtractMetadata)
	assert.Contains(t, phases, SaveRecords)
}

func TestIndexer_SlowProgressReaderDoesNotBlock(t *testing.T) {
	dir := makeDir(t, "a.png", "b.png", "c.png")
	ix := newIndexer(newMemStore(), fakeExtract())

	progress := make(chan ProgressUpdate)
	res, err := ix.Index(context.Background(), progress, []string{dir}, IndexOpts{Save: true})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Indexed)
}

func TestIndexer_SQLiteStore(t *testing.T) {
	db, err := shared.NewDatabase(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	shared.ConfigureDatabase(db, 1, 1)
	require.NoError(t, shared.RunMigrations(db))

	dir := t.TempDir()
	tu.WritePNG(t, dir, "sunset.png", "orange sky")
	tu.WritePNG(t, dir, "forest.png", "dark forest")
	tu.WriteFile(t, dir, "corrupt.png", []byte("not really"))

	repo := repositories.NewImageRepository(db)
	p := pipeline.NewProcessor(pipeline.Options{Logger: quietLogger()})
	ix := NewIndexer(p, repositories.NewIndexStore(repo), quietLogger())

	res, err := ix.Index(context.Background(), nil, []string{dir}, IndexOpts{Save: true, Formatted: true, Workers: 4})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Indexed)
	assert.Equal(t, 1, res.ExtractFailed)

	found, err := repo.Search(context.Background(), repositories.SearchQuery{
		Mode:     repositories.ModeFields,
		Keywords: []string{"forest"},
		Fields:   []string{"description"},
	})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "forest.png", found[0].FileName())
	assert.Equal(t, "16", found[0].Metadata()["width"])
}
