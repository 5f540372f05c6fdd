package repositories

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/desertthunder/pngx/internal/models"
	"github.com/desertthunder/pngx/internal/shared"
)

// SearchMode selects how keywords and fields combine.
type SearchMode int

const (
	// ModeAllFields matches one keyword against every searchable field.
	ModeAllFields SearchMode = iota + 1
	// ModeFields matches one keyword against the chosen fields.
	ModeFields
	// ModeAnyKeyword matches rows where any keyword appears in any chosen field.
	ModeAnyKeyword
	// ModeAllKeywords matches rows where every keyword appears in at least one chosen field.
	ModeAllKeywords
)

func (m SearchMode) String() string {
	switch m {
	case ModeAllFields:
		return "keyword in all fields"
	case ModeFields:
		return "keyword in chosen fields"
	case ModeAnyKeyword:
		return "any keyword"
	case ModeAllKeywords:
		return "all keywords"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// SearchableFields lists the columns a query may name.
var SearchableFields = []string{"file_name", "file_path", "description", "metadata"}

// defaultKeywordFields is used by the multi-keyword modes when no field is chosen.
var defaultKeywordFields = []string{"file_name", "file_path", "description"}

// SearchQuery describes a keyword search over the index.
type SearchQuery struct {
	Mode     SearchMode
	Keywords []string
	Fields   []string
	Limit    int
}

// SplitKeywords splits raw input on spaces and commas, dropping empty entries.
func SplitKeywords(raw ...string) []string {
	var out []string
	for _, s := range raw {
		out = append(out, strings.FieldsFunc(s, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})...)
	}
	return out
}

// Search returns the images matching q, ordered by sequence. Matching is a
// case-insensitive substring test.
//
// The single-keyword modes treat all keywords as one phrase. The
// multi-keyword modes split keywords on spaces and commas and search
// file_name, file_path and description unless fields are given.
func (r *ImageRepository) Search(ctx context.Context, q SearchQuery) ([]*models.ImageRecord, error) {
	where, args, err := q.build()
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + imageColumns + ` FROM images WHERE deleted_at IS NULL AND ` + where + ` ORDER BY sequence ASC`
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search images: %w", err)
	}
	defer rows.Close()

	return collectImages(rows)
}

// build renders the query as a WHERE clause and its arguments.
func (q SearchQuery) build() (string, []any, error) {
	fields := q.Fields
	for _, f := range fields {
		if !slices.Contains(SearchableFields, f) {
			return "", nil, fmt.Errorf("%w: unknown search field %q", shared.ErrInvalidArgument, f)
		}
	}

	var keywords []string
	switch q.Mode {
	case ModeAllFields, ModeFields:
		phrase := strings.TrimSpace(strings.Join(q.Keywords, " "))
		if phrase != "" {
			keywords = []string{phrase}
		}
	case ModeAnyKeyword, ModeAllKeywords:
		keywords = SplitKeywords(q.Keywords...)
	default:
		return "", nil, fmt.Errorf("%w: unknown search mode %d", shared.ErrInvalidArgument, int(q.Mode))
	}

	if len(keywords) == 0 {
		return "", nil, fmt.Errorf("%w: search keyword", shared.ErrMissingArgument)
	}

	switch q.Mode {
	case ModeAllFields:
		fields = SearchableFields
	case ModeFields:
		if len(fields) == 0 {
			return "", nil, fmt.Errorf("%w: search fields", shared.ErrMissingArgument)
		}
	default:
		if len(fields) == 0 {
			fields = defaultKeywordFields
		}
	}

	join := " OR "
	if q.Mode == ModeAllKeywords {
		join = " AND "
	}

	var (
		groups []string
		args   []any
	)
	for _, kw := range keywords {
		pattern := "%" + escapeLike(kw) + "%"
		conds := make([]string, len(fields))
		for i, f := range fields {
			conds[i] = f + ` LIKE ? ESCAPE '\'`
			args = append(args, pattern)
		}
		groups = append(groups, "("+strings.Join(conds, " OR ")+")")
	}

	return "(" + strings.Join(groups, join) + ")", args, nil
}

// escapeLike escapes LIKE wildcards so s matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
