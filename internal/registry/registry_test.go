package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"

	"github.com/hupe1980/txtwatch/internal/changelog"
	"github.com/hupe1980/txtwatch/internal/textdecode"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type fakeArmer struct {
	paths []string
	err   error
}

func (a *fakeArmer) Arm(path string) error {
	a.paths = append(a.paths, path)
	return a.err
}

// staticProvider serves content from a map keyed by base name.
type staticProvider map[string]string

func (p staticProvider) provide(path string) (textdecode.Document, error) {
	c, ok := p[filepath.Base(path)]
	if !ok {
		return textdecode.Document{}, os.ErrNotExist
	}

	return textdecode.Document{Text: c, Encoding: textdecode.UTF8, Size: int64(len(c))}, nil
}

type confirmer struct {
	answer    bool
	questions []string
}

func (c *confirmer) ask(q string) bool {
	c.questions = append(c.questions, q)
	return c.answer
}

func newTestRegistry() (*Registry, *changelog.Log, *fakeArmer) {
	log := changelog.New()
	armer := &fakeArmer{}

	return New(log, armer), log, armer
}

// ---------------------------------------------------------------------------
// Add
// ---------------------------------------------------------------------------

func TestSelectOrAdd_NewName(t *testing.T) {
	r, log, armer := newTestRegistry()
	p := staticProvider{"a.txt": "hello"}
	c := &confirmer{}

	f, outcome, err := r.SelectOrAdd("/data/a.txt", p.provide, c.ask)
	require.NoError(t, err)

	assert.Equal(t, Added, outcome)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, "a.txt", f.DisplayName())
	assert.Equal(t, "hello", f.Content())
	assert.Equal(t, int64(5), f.Size())
	assert.Equal(t, "0.0.1", f.Version())
	assert.True(t, filepath.IsAbs(f.Path()))

	require.Equal(t, 1, log.Len())
	latest, _ := log.Latest()
	assert.Equal(t, changelog.Added, latest.Type)
	assert.Equal(t, "a.txt", latest.FileName)

	assert.Len(t, armer.paths, 1)
	assert.Empty(t, c.questions)
}

func TestSelectOrAdd_ArmFailureDoesNotFail(t *testing.T) {
	log := changelog.New()
	r := New(log, &fakeArmer{err: errors.New("no watch")})

	_, outcome, err := r.SelectOrAdd("/data/a.txt", staticProvider{"a.txt": "x"}.provide, nil)
	require.NoError(t, err)
	assert.Equal(t, Added, outcome)
	assert.Equal(t, 1, log.Len())
}

func TestSelectOrAdd_NilArmer(t *testing.T) {
	r := New(changelog.New(), nil)

	_, outcome, err := r.SelectOrAdd("/data/a.txt", staticProvider{"a.txt": "x"}.provide, nil)
	require.NoError(t, err)
	assert.Equal(t, Added, outcome)
}

// ---------------------------------------------------------------------------
// Reselect
// ---------------------------------------------------------------------------

func TestSelectOrAdd_IdenticalIsNoop(t *testing.T) {
	r, log, armer := newTestRegistry()
	p := staticProvider{"a.txt": "hello"}
	c := &confirmer{answer: true}

	first, _, err := r.SelectOrAdd("/data/a.txt", p.provide, c.ask)
	require.NoError(t, err)

	var notified int
	first.Subscribe(func(FileSnapshot) { notified++ })

	second, outcome, err := r.SelectOrAdd("/data/a.txt", p.provide, c.ask)
	require.NoError(t, err)

	assert.Equal(t, Unchanged, outcome)
	assert.Same(t, first, second)
	assert.Equal(t, 1, log.Len(), "no new log record")
	assert.Equal(t, "0.0.1", second.Version())
	assert.Empty(t, c.questions, "no confirmation for unchanged files")
	assert.Len(t, armer.paths, 1, "no re-arm")
	assert.Equal(t, 0, notified)
}

func TestSelectOrAdd_DifferentDeclined(t *testing.T) {
	r, log, _ := newTestRegistry()
	p := staticProvider{"a.txt": "hello"}

	f, _, err := r.SelectOrAdd("/data/a.txt", p.provide, nil)
	require.NoError(t, err)

	p["a.txt"] = "hello, world"
	c := &confirmer{answer: false}

	got, outcome, err := r.SelectOrAdd("/data/a.txt", p.provide, c.ask)
	require.NoError(t, err)

	assert.Equal(t, Declined, outcome)
	assert.Same(t, f, got)
	assert.Equal(t, "hello", got.Content())
	assert.Equal(t, int64(5), got.Size())
	assert.Equal(t, "0.0.1", got.Version())
	assert.Equal(t, 1, log.Len())

	require.Len(t, c.questions, 1)
	assert.Contains(t, c.questions[0], "a.txt")
}

func TestSelectOrAdd_DifferentConfirmed(t *testing.T) {
	r, log, armer := newTestRegistry()
	p := staticProvider{"a.txt": "hello"}

	f, _, err := r.SelectOrAdd("/data/a.txt", p.provide, nil)
	require.NoError(t, err)

	var snaps []FileSnapshot
	f.Subscribe(func(s FileSnapshot) { snaps = append(snaps, s) })

	p["a.txt"] = "hello, world"
	c := &confirmer{answer: true}

	got, outcome, err := r.SelectOrAdd("/other/a.txt", p.provide, c.ask)
	require.NoError(t, err)

	assert.Equal(t, Updated, outcome)
	assert.Same(t, f, got, "updated in place")
	assert.Equal(t, "hello, world", got.Content())
	assert.Equal(t, int64(12), got.Size())
	assert.Equal(t, "0.0.2", got.Version())
	wantPath, err := filepath.Abs("/other/a.txt")
	require.NoError(t, err)
	assert.Equal(t, wantPath, got.Path())

	require.Equal(t, 2, log.Len())
	latest, _ := log.Latest()
	assert.Equal(t, changelog.Updated, latest.Type)
	assert.Contains(t, latest.Message, "0.0.2")

	assert.Len(t, armer.paths, 1, "update does not re-arm")
	require.Len(t, snaps, 1)
	assert.Equal(t, "0.0.2", snaps[0].Version)
}

func TestSelectOrAdd_SizeOnlyDifference(t *testing.T) {
	r, _, _ := newTestRegistry()

	calls := 0
	provider := func(string) (textdecode.Document, error) {
		calls++
		return textdecode.Document{Text: "same", Size: int64(calls)}, nil
	}

	_, _, err := r.SelectOrAdd("/data/a.txt", provider, nil)
	require.NoError(t, err)

	c := &confirmer{answer: true}
	_, outcome, err := r.SelectOrAdd("/data/a.txt", provider, c.ask)
	require.NoError(t, err)
	assert.Equal(t, Updated, outcome)
}

func TestSelectOrAdd_NilConfirmDeclines(t *testing.T) {
	r, _, _ := newTestRegistry()
	p := staticProvider{"a.txt": "v1"}

	_, _, err := r.SelectOrAdd("/data/a.txt", p.provide, nil)
	require.NoError(t, err)

	p["a.txt"] = "v2"
	f, outcome, err := r.SelectOrAdd("/data/a.txt", p.provide, nil)
	require.NoError(t, err)
	assert.Equal(t, Declined, outcome)
	assert.Equal(t, "v1", f.Content())
}

func TestSelectOrAdd_RepeatedUpdatesBumpPatch(t *testing.T) {
	r, _, _ := newTestRegistry()
	p := staticProvider{"a.txt": "v0"}
	c := &confirmer{answer: true}

	f, _, err := r.SelectOrAdd("/data/a.txt", p.provide, c.ask)
	require.NoError(t, err)

	for _, content := range []string{"v1", "v2", "v3"} {
		p["a.txt"] = content
		_, _, err := r.SelectOrAdd("/data/a.txt", p.provide, c.ask)
		require.NoError(t, err)
	}

	assert.Equal(t, "0.0.4", f.Version())
}

func TestSelectOrAdd_ProviderError(t *testing.T) {
	r, log, armer := newTestRegistry()

	_, _, err := r.SelectOrAdd("/data/missing.txt", staticProvider{}.provide, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.txt")
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, log.Len())
	assert.Empty(t, armer.paths)
}

func TestSelectOrAdd_DefaultProviderReadsFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "real.txt")
	require.NoError(t, os.WriteFile(p, []byte("on disk"), 0o600))

	r, _, _ := newTestRegistry()

	f, outcome, err := r.SelectOrAdd(p, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Added, outcome)
	assert.Equal(t, "on disk", f.Content())
	assert.Equal(t, p, f.Path())
	assert.Equal(t, textdecode.UTF8, f.Encoding())
}

func TestSelectOrAdd_CarriesDetectedEncoding(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "korean.txt")

	raw, err := korean.EUCKR.NewEncoder().Bytes([]byte("메모"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p, raw, 0o600))

	r, _, _ := newTestRegistry()

	f, _, err := r.SelectOrAdd(p, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "메모", f.Content())
	assert.Equal(t, textdecode.CP949, f.Snapshot().Encoding)
	assert.Equal(t, int64(len(raw)), f.Size())
}

func TestTrackedFile_SetContentEncodingChangeNotifies(t *testing.T) {
	r, _, _ := newTestRegistry()

	f, _, err := r.SelectOrAdd("/data/a.txt", staticProvider{"a.txt": "v1"}.provide, nil)
	require.NoError(t, err)

	var got []textdecode.Encoding
	f.Subscribe(func(s FileSnapshot) { got = append(got, s.Encoding) })

	f.SetContent("v1", textdecode.CP949)

	assert.Equal(t, []textdecode.Encoding{textdecode.CP949}, got)
}

// ---------------------------------------------------------------------------
// Collection
// ---------------------------------------------------------------------------

func TestFiles_InsertionOrder(t *testing.T) {
	r, _, _ := newTestRegistry()
	p := staticProvider{"b.txt": "b", "a.txt": "a", "c.txt": "c"}

	var added []string
	r.SubscribeAdded(func(f *TrackedFile) { added = append(added, f.DisplayName()) })

	for _, name := range []string{"b.txt", "a.txt", "c.txt"} {
		_, _, err := r.SelectOrAdd("/data/"+name, p.provide, nil)
		require.NoError(t, err)
	}

	snaps := r.Snapshots()
	require.Len(t, snaps, 3)
	assert.Equal(t, "b.txt", snaps[0].DisplayName)
	assert.Equal(t, "c.txt", snaps[2].DisplayName)
	assert.Equal(t, []string{"b.txt", "a.txt", "c.txt"}, added)
	assert.Nil(t, r.Get("zzz.txt"))
}

func TestSameNameDifferentDirectoryIsOneEntry(t *testing.T) {
	r, _, _ := newTestRegistry()
	p := staticProvider{"a.txt": "x"}

	_, _, err := r.SelectOrAdd("/one/a.txt", p.provide, nil)
	require.NoError(t, err)
	_, outcome, err := r.SelectOrAdd("/two/a.txt", p.provide, nil)
	require.NoError(t, err)

	assert.Equal(t, Unchanged, outcome)
	assert.Equal(t, 1, r.Len())
}

// ---------------------------------------------------------------------------
// TrackedFile
// ---------------------------------------------------------------------------

func TestTrackedFile_SetContentNotifies(t *testing.T) {
	r, _, _ := newTestRegistry()

	f, _, err := r.SelectOrAdd("/data/a.txt", staticProvider{"a.txt": "v1"}.provide, nil)
	require.NoError(t, err)

	var got []string
	f.Subscribe(func(s FileSnapshot) { got = append(got, s.Content) })

	f.SetContent("v2", textdecode.UTF8)
	f.SetContent("v2", textdecode.UTF8)

	assert.Equal(t, []string{"v2"}, got, "identical content is not re-published")
	assert.Equal(t, int64(2), f.Size(), "size is untouched by content publishes")
	assert.Equal(t, "0.0.1", f.Version())
}

func TestFileSnapshot_String(t *testing.T) {
	s := FileSnapshot{DisplayName: "a.txt", Version: "0.0.3", Size: 5, Content: "hello"}
	assert.Equal(t, "a.txt v0.0.3 (5 bytes) : hello", s.String())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "added", Added.String())
	assert.Equal(t, "unchanged", Unchanged.String())
	assert.Equal(t, "declined", Declined.String())
	assert.Equal(t, "updated", Updated.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
