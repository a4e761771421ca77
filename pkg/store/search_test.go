package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslatePattern(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"a*", "a%"},
		{"?.txt", "_.txt"},
		{"report", "%report%"},
		{"100%", "%100\\%%"},
		{"a_b", "%a\\_b%"},
		{`back\slash`, `%back\\slash%`},
		{"*.txt", "%.txt"},
	}
	for _, tc := range cases {
		got, err := translatePattern(tc.in)
		require.NoError(t, err, "pattern %q", tc.in)
		assert.Equal(t, tc.want, got, "pattern %q", tc.in)
	}
}

func TestTranslatePatternRejected(t *testing.T) {
	for _, bad := range []string{"", "*", "%"} {
		_, err := translatePattern(bad)
		assert.ErrorIs(t, err, ErrBadPattern, "pattern %q", bad)
	}
}

// seedSearchTree builds:
//
//	/docs            (dir)
//	/docs/a.txt
//	/docs/notes      (dir)
//	/docs/notes/a.md
//	/other.txt
func seedSearchTree(t *testing.T, s *Store) (docs, notes int64) {
	t.Helper()
	ctx := context.Background()

	docs, err := s.CreateFile(ctx, File{Name: "docs", IsDirectory: true, OwnerID: 1, Permissions: 0o755})
	require.NoError(t, err)
	_, err = s.CreateFile(ctx, File{ParentID: docs, Name: "a.txt", BlobRef: "b1", OwnerID: 1, Permissions: 0o644})
	require.NoError(t, err)
	notes, err = s.CreateFile(ctx, File{ParentID: docs, Name: "notes", IsDirectory: true, OwnerID: 1, Permissions: 0o755})
	require.NoError(t, err)
	_, err = s.CreateFile(ctx, File{ParentID: notes, Name: "a.md", BlobRef: "b2", OwnerID: 1, Permissions: 0o644})
	require.NoError(t, err)
	_, err = s.CreateFile(ctx, File{Name: "other.txt", BlobRef: "b3", OwnerID: 1, Permissions: 0o644})
	require.NoError(t, err)
	return docs, notes
}

func TestSearchNonRecursive(t *testing.T) {
	s := newTestStore(t)
	docs, _ := seedSearchTree(t, s)

	results, err := s.Search(context.Background(), SearchOptions{
		BaseDir: docs,
		Pattern: "a*",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.txt", results[0].Name)
}

func TestSearchRecursive(t *testing.T) {
	s := newTestStore(t)
	docs, _ := seedSearchTree(t, s)

	results, err := s.Search(context.Background(), SearchOptions{
		BaseDir:   docs,
		Pattern:   "a*",
		Recursive: true,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	names := []string{results[0].Name, results[1].Name}
	assert.ElementsMatch(t, []string{"a.txt", "a.md"}, names)
}

func TestSearchExcludesBaseDirAndOutside(t *testing.T) {
	s := newTestStore(t)
	docs, _ := seedSearchTree(t, s)

	// "docs" matches the base directory itself and "other.txt" lives
	// outside the subtree; neither may appear.
	results, err := s.Search(context.Background(), SearchOptions{
		BaseDir:   docs,
		Pattern:   "*o*",
		Recursive: true,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "notes", results[0].Name)
}

func TestSearchCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateFile(ctx, File{Name: "README.TXT", BlobRef: "b1", OwnerID: 1, Permissions: 0o644})
	require.NoError(t, err)

	results, err := s.Search(ctx, SearchOptions{BaseDir: RootDirID, Pattern: "readme*"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "README.TXT", results[0].Name)
}

func TestSearchQuestionMark(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"a1.txt", "a22.txt", "ab.txt"} {
		_, err := s.CreateFile(ctx, File{Name: name, BlobRef: "b-" + name, OwnerID: 1, Permissions: 0o644})
		require.NoError(t, err)
	}

	results, err := s.Search(ctx, SearchOptions{BaseDir: RootDirID, Pattern: "a?.txt"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.ElementsMatch(t, []string{"a1.txt", "ab.txt"}, []string{results[0].Name, results[1].Name})
}

func TestSearchSubstringWithoutWildcards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateFile(ctx, File{Name: "quarterly-report-final.pdf", BlobRef: "b1", OwnerID: 1, Permissions: 0o644})
	require.NoError(t, err)

	results, err := s.Search(ctx, SearchOptions{BaseDir: RootDirID, Pattern: "report"})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearchLiteralUnderscoreEscaped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateFile(ctx, File{Name: "a_b.txt", BlobRef: "b1", OwnerID: 1, Permissions: 0o644})
	require.NoError(t, err)
	_, err = s.CreateFile(ctx, File{Name: "axb.txt", BlobRef: "b2", OwnerID: 1, Permissions: 0o644})
	require.NoError(t, err)

	// "_" in the pattern is a literal underscore, not a single-char
	// wildcard.
	results, err := s.Search(ctx, SearchOptions{BaseDir: RootDirID, Pattern: "a_b"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a_b.txt", results[0].Name)
}

func TestSearchOrderingAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateFile(ctx, File{Name: "match-z.txt", BlobRef: "b1", OwnerID: 1, Permissions: 0o644})
	require.NoError(t, err)
	_, err = s.CreateFile(ctx, File{Name: "match-dir", IsDirectory: true, OwnerID: 1, Permissions: 0o755})
	require.NoError(t, err)
	_, err = s.CreateFile(ctx, File{Name: "match-a.txt", BlobRef: "b2", OwnerID: 1, Permissions: 0o644})
	require.NoError(t, err)

	results, err := s.Search(ctx, SearchOptions{BaseDir: RootDirID, Pattern: "match*"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	// Directories first, then names ascending.
	assert.Equal(t, "match-dir", results[0].Name)
	assert.Equal(t, "match-a.txt", results[1].Name)
	assert.Equal(t, "match-z.txt", results[2].Name)

	limited, err := s.Search(ctx, SearchOptions{BaseDir: RootDirID, Pattern: "match*", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSearchDepthCap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Chain of 25 nested directories with a file at the bottom. Only the
	// first 20 levels are visited.
	parent := RootDirID
	for i := 0; i < 25; i++ {
		id, err := s.CreateFile(ctx, File{
			ParentID: parent, Name: fmt.Sprintf("level%02d", i),
			IsDirectory: true, OwnerID: 1, Permissions: 0o755,
		})
		require.NoError(t, err)
		parent = id
	}
	_, err := s.CreateFile(ctx, File{ParentID: parent, Name: "deep.txt", BlobRef: "b1", OwnerID: 1, Permissions: 0o644})
	require.NoError(t, err)

	results, err := s.Search(ctx, SearchOptions{BaseDir: RootDirID, Pattern: "deep*", Recursive: true})
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = s.Search(ctx, SearchOptions{BaseDir: RootDirID, Pattern: "level*", Recursive: true})
	require.NoError(t, err)
	assert.Len(t, results, 20)
}

func TestSearchLimitClamping(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 150; i++ {
		_, err := s.CreateFile(ctx, File{
			Name: fmt.Sprintf("bulk%03d.txt", i), BlobRef: fmt.Sprintf("b%d", i),
			OwnerID: 1, Permissions: 0o644,
		})
		require.NoError(t, err)
	}

	// Default limit is 100.
	results, err := s.Search(ctx, SearchOptions{BaseDir: RootDirID, Pattern: "bulk*"})
	require.NoError(t, err)
	assert.Len(t, results, 100)

	// Oversized limits clamp to 1000; undersized requests are honored.
	results, err = s.Search(ctx, SearchOptions{BaseDir: RootDirID, Pattern: "bulk*", Limit: 5000})
	require.NoError(t, err)
	assert.Len(t, results, 150)

	results, err = s.Search(ctx, SearchOptions{BaseDir: RootDirID, Pattern: "bulk*", Limit: 7})
	require.NoError(t, err)
	assert.Len(t, results, 7)
}
