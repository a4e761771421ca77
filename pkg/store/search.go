package store

import (
	"context"
	"sort"
	"strings"
)

const (
	// maxSearchDepth bounds the recursive walk. A valid tree cannot
	// cycle, but the cap cheaply contains a corrupted one.
	maxSearchDepth = 20

	defaultSearchLimit = 100
	maxSearchLimit     = 1000
)

// SearchOptions control a metadata search.
type SearchOptions struct {
	// BaseDir is the directory whose subtree (or direct children) is
	// searched. The base directory itself is never part of the results.
	BaseDir int64

	// Pattern is a glob-like pattern: '*' matches any run, '?' exactly
	// one character. Without wildcards it becomes a substring match.
	// Matching is case-insensitive.
	Pattern string

	// Recursive walks the subtree level by level, capped at depth 20.
	Recursive bool

	// Limit truncates results; default 100, clamped to [1, 1000].
	Limit int
}

// translatePattern converts a glob pattern into a SQL LIKE pattern with
// '\' as the escape character.
func translatePattern(pattern string) (string, error) {
	// Empty patterns and the bare match-everything wildcards are client
	// bugs, not queries. Reject before translating so a literal "%" is
	// caught ahead of the escape pass.
	switch pattern {
	case "", "*", "%":
		return "", ErrBadPattern
	}

	var b strings.Builder
	wildcard := false
	for _, c := range []byte(pattern) {
		switch c {
		case '*':
			b.WriteByte('%')
			wildcard = true
		case '?':
			b.WriteByte('_')
			wildcard = true
		case '%', '_', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}

	translated := b.String()
	if !wildcard {
		translated = "%" + translated + "%"
	}
	return translated, nil
}

// Search finds records matching the pattern under the base directory.
// Results are ordered directories first, then name ascending, truncated to
// the limit.
func (s *Store) Search(ctx context.Context, opts SearchOptions) ([]File, error) {
	like, err := translatePattern(opts.Pattern)
	if err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var results []File
	if opts.Recursive {
		results, err = s.searchRecursive(ctx, opts.BaseDir, like)
	} else {
		results, err = s.matchChildren(ctx, []int64{opts.BaseDir}, like)
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].IsDirectory != results[j].IsDirectory {
			return results[i].IsDirectory
		}
		return results[i].Name < results[j].Name
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// searchRecursive walks the subtree breadth-by-level, matching children at
// each level.
func (s *Store) searchRecursive(ctx context.Context, baseDir int64, like string) ([]File, error) {
	var results []File
	frontier := []int64{baseDir}

	for depth := 0; depth < maxSearchDepth && len(frontier) > 0; depth++ {
		matched, err := s.matchChildren(ctx, frontier, like)
		if err != nil {
			return nil, err
		}
		results = append(results, matched...)

		var next []int64
		var dirs []File
		err = s.db.WithContext(ctx).
			Where("parent_id IN ? AND is_directory = ?", frontier, true).
			Find(&dirs).Error
		if err != nil {
			return nil, err
		}
		for _, d := range dirs {
			next = append(next, d.ID)
		}
		frontier = next
	}

	return results, nil
}

// matchChildren returns the direct children of the given parents whose
// name matches the LIKE pattern, case-insensitively.
func (s *Store) matchChildren(ctx context.Context, parents []int64, like string) ([]File, error) {
	var files []File
	err := s.db.WithContext(ctx).
		Where("parent_id IN ?", parents).
		Where(`LOWER(name) LIKE ? ESCAPE '\'`, strings.ToLower(like)).
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}
