package persist

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pksebben/Napkin/state"
)

func makeRecord(name string) *Record {
	doc := "flowchart TD\n  A --> B"
	return &Record{
		Version:          RecordVersion,
		Name:             name,
		CreatedAt:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Document:         &doc,
		NodeCount:        2,
		EdgeCount:        1,
		SelectedElements: []string{},
		History: []state.Snapshot{
			{Mermaid: "flowchart TD\n  A --> B", Timestamp: "2024-01-01T00:00:00Z", Source: state.SourceUser},
		},
	}
}

func TestFileStore_LoadMissingReturnsNil(t *testing.T) {
	s := NewFileStore(t.TempDir())
	rec, err := s.Load(context.Background(), "no-such-session")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestFileStore_RoundTrip(t *testing.T) {
	s := NewFileStore(t.TempDir())
	want := makeRecord("test")

	require.NoError(t, s.Save(context.Background(), "test", want))
	got, err := s.Load(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFileStore_SaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	require.NoError(t, s.Save(context.Background(), "atomic-test", makeRecord("atomic-test")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "atomic-test.json", entries[0].Name())
}

func TestFileStore_Delete(t *testing.T) {
	s := NewFileStore(t.TempDir())
	require.NoError(t, s.Save(context.Background(), "doomed", makeRecord("doomed")))
	require.NoError(t, s.Delete(context.Background(), "doomed"))

	rec, err := s.Load(context.Background(), "doomed")
	require.NoError(t, err)
	assert.Nil(t, rec)

	// Idempotent for missing records.
	require.NoError(t, s.Delete(context.Background(), "doomed"))
}

func TestFileStore_Overwrite(t *testing.T) {
	s := NewFileStore(t.TempDir())
	require.NoError(t, s.Save(context.Background(), "overwrite", makeRecord("overwrite")))

	updated := makeRecord("overwrite")
	doc := "flowchart TD\n  X --> Y"
	updated.Document = &doc
	require.NoError(t, s.Save(context.Background(), "overwrite", updated))

	got, err := s.Load(context.Background(), "overwrite")
	require.NoError(t, err)
	require.NotNil(t, got.Document)
	assert.Equal(t, doc, *got.Document)
}

func TestFileStore_PathSafety(t *testing.T) {
	s := NewFileStore(t.TempDir())
	ctx := context.Background()

	for _, name := range []string{"", ".", "..", "../etc/passwd", "foo/bar", `foo\bar`, "a..b"} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, s.Save(ctx, name, makeRecord("x")), ErrInvalidName)
			_, err := s.Load(ctx, name)
			assert.ErrorIs(t, err, ErrInvalidName)
			assert.ErrorIs(t, s.Delete(ctx, name), ErrInvalidName)
		})
	}
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("napkin-ab12"))
	assert.NoError(t, ValidateName("my.session"))
	assert.ErrorIs(t, ValidateName(""), ErrInvalidName)
	assert.ErrorIs(t, ValidateName("a/b"), ErrInvalidName)
	assert.ErrorIs(t, ValidateName(`a\b`), ErrInvalidName)
	assert.ErrorIs(t, ValidateName(".."), ErrInvalidName)
}
