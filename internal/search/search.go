package search

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dpla/fieldmap/internal/db"
	"github.com/dpla/fieldmap/internal/rpc"
)

const DefaultLimit = 20

// Match ranks, best first.
const (
	rankExactName = iota
	rankExactPath
	rankPathPrefix
	rankNameSubstring
	rankPathSubstring
	rankNone
)

type Finder struct {
	db *db.DB
}

func NewFinder(database *db.DB) *Finder {
	return &Finder{db: database}
}

// Find lists catalog fields matching req. With a query, results are ranked
// by how closely name or path match it; without one they come back in
// catalog order.
func (f *Finder) Find(req rpc.FieldsRequest) ([]rpc.FieldResult, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	query := strings.TrimSpace(req.Query)

	q := db.FieldQuery{
		Resources:     req.Resources,
		Type:          req.Type,
		Contains:      query,
		FacetableOnly: req.FacetableOnly,
		SortableOnly:  req.SortableOnly,
	}
	if query == "" {
		q.Limit = limit
	}

	slog.Debug("field search", "query", query, "resources", req.Resources, "type", req.Type, "limit", limit)

	rows, err := f.db.QueryFields(q)
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}

	if query != "" {
		rows = Rank(rows, query)
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}

	results := make([]rpc.FieldResult, len(rows))
	for i, r := range rows {
		results[i] = Result(r)
	}
	return results, nil
}

// Rank orders rows by match quality against query, dropping rows that do
// not match at all. Ties go to the shallower field, then to path order.
func Rank(rows []db.Field, query string) []db.Field {
	q := strings.ToLower(query)

	type scored struct {
		field db.Field
		rank  int
	}
	var matched []scored
	for _, r := range rows {
		if rk := rank(r, q); rk != rankNone {
			matched = append(matched, scored{r, rk})
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		if a.field.Depth != b.field.Depth {
			return a.field.Depth < b.field.Depth
		}
		if a.field.Path != b.field.Path {
			return a.field.Path < b.field.Path
		}
		return a.field.Resource < b.field.Resource
	})

	out := make([]db.Field, len(matched))
	for i, m := range matched {
		out[i] = m.field
	}
	return out
}

func rank(f db.Field, q string) int {
	name := strings.ToLower(f.Name)
	path := strings.ToLower(f.Path)
	switch {
	case name == q:
		return rankExactName
	case path == q:
		return rankExactPath
	case strings.HasPrefix(path, q):
		return rankPathPrefix
	case strings.Contains(name, q):
		return rankNameSubstring
	case strings.Contains(path, q):
		return rankPathSubstring
	}
	return rankNone
}

// URI returns the MCP resource URI of a field.
func URI(resource, path string) string {
	return fmt.Sprintf("fieldmap://%s/%s", resource, path)
}

// Result converts a catalog row to its wire form.
func Result(r db.Field) rpc.FieldResult {
	return rpc.FieldResult{
		URI:       URI(r.Resource, r.Path),
		Resource:  r.Resource,
		Path:      r.Path,
		Type:      r.Type,
		Facetable: r.Facetable,
		FacetPath: r.FacetPath,
		Sortable:  r.Sortable,
		Alternate: r.Alternate,
	}
}
