package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dpla/fieldmap/internal/schema"
	_ "github.com/marcboeker/go-duckdb"
)

type DB struct {
	conn *sql.DB
}

func New(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	conn, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	queries := []string{
		`CREATE SEQUENCE IF NOT EXISTS seq_resource_id START 1;`,
		`CREATE SEQUENCE IF NOT EXISTS seq_field_id START 1;`,

		`CREATE TABLE IF NOT EXISTS resources (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			mapping_hash TEXT NOT NULL,
			indexed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS fields (
			id INTEGER PRIMARY KEY,
			resource_id INTEGER NOT NULL,
			path TEXT NOT NULL,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			depth INTEGER NOT NULL,
			parent_path TEXT NOT NULL,
			alternate BOOLEAN NOT NULL,
			facetable BOOLEAN NOT NULL,
			facet_path TEXT NOT NULL,
			sortable BOOLEAN NOT NULL,
			analyzed BOOLEAN NOT NULL,
			enabled BOOLEAN NOT NULL,
			has_subfields BOOLEAN NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fields_resource ON fields (resource_id)`,
		`CREATE INDEX IF NOT EXISTS idx_fields_path ON fields (path)`,
	}

	for _, q := range queries {
		if _, err := db.conn.Exec(q); err != nil {
			return fmt.Errorf("executing %q: %w", q, err)
		}
	}
	return nil
}

// --- Resource operations ---

type Resource struct {
	ID          int
	Name        string
	MappingHash string
	IndexedAt   time.Time
}

// UpsertResource records a resource and the hash of its mapping snapshot,
// returning the stored row.
func (db *DB) UpsertResource(name, mappingHash string) (*Resource, error) {
	existing, err := db.GetResource(name)
	if err != nil {
		return nil, fmt.Errorf("checking resource: %w", err)
	}

	if existing != nil {
		_, err := db.conn.Exec(
			`UPDATE resources SET mapping_hash = ?, indexed_at = CURRENT_TIMESTAMP WHERE id = ?`,
			mappingHash, existing.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("updating resource: %w", err)
		}
		return db.GetResource(name)
	}

	_, err = db.conn.Exec(
		`INSERT INTO resources (id, name, mapping_hash) VALUES (nextval('seq_resource_id'), ?, ?)`,
		name, mappingHash,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting resource: %w", err)
	}
	return db.GetResource(name)
}

func (db *DB) GetResource(name string) (*Resource, error) {
	var r Resource
	err := db.conn.QueryRow(
		`SELECT id, name, mapping_hash, indexed_at FROM resources WHERE name = ?`, name,
	).Scan(&r.ID, &r.Name, &r.MappingHash, &r.IndexedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (db *DB) ListResources() ([]Resource, error) {
	rows, err := db.conn.Query(`SELECT id, name, mapping_hash, indexed_at FROM resources ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var resources []Resource
	for rows.Next() {
		var r Resource
		if err := rows.Scan(&r.ID, &r.Name, &r.MappingHash, &r.IndexedAt); err != nil {
			return nil, err
		}
		resources = append(resources, r)
	}
	return resources, rows.Err()
}

// PruneResources deletes every resource not named in keep, along with its
// fields, and returns the names it removed.
func (db *DB) PruneResources(keep []string) ([]string, error) {
	existing, err := db.ListResources()
	if err != nil {
		return nil, fmt.Errorf("listing resources: %w", err)
	}

	kept := make(map[string]bool, len(keep))
	for _, name := range keep {
		kept[name] = true
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var removed []string
	for _, r := range existing {
		if kept[r.Name] {
			continue
		}
		if _, err := tx.Exec(`DELETE FROM fields WHERE resource_id = ?`, r.ID); err != nil {
			return nil, fmt.Errorf("deleting fields of %s: %w", r.Name, err)
		}
		if _, err := tx.Exec(`DELETE FROM resources WHERE id = ?`, r.ID); err != nil {
			return nil, fmt.Errorf("deleting resource %s: %w", r.Name, err)
		}
		removed = append(removed, r.Name)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return removed, nil
}

// --- Field operations ---

type Field struct {
	ID           int
	ResourceID   int
	Resource     string
	Path         string
	Name         string
	Type         string
	Depth        int
	ParentPath   string
	Alternate    bool
	Facetable    bool
	FacetPath    string
	Sortable     bool
	Analyzed     bool
	Enabled      bool
	HasSubfields bool
}

// FieldRows converts a resource walk into catalog rows. Alternate
// representations are flagged so listings can tell them from subfields.
func FieldRows(fields []*schema.Field) []Field {
	alternates := make(map[string]bool)
	for _, f := range fields {
		for _, alt := range f.AlternateRepresentations() {
			alternates[alt.Path()] = true
		}
	}

	rows := make([]Field, 0, len(fields))
	for _, f := range fields {
		facetPath, _ := f.FacetPath()
		parent := ""
		if i := strings.LastIndexByte(f.Path(), '.'); i >= 0 {
			parent = f.Path()[:i]
		}
		rows = append(rows, Field{
			Resource:     f.Resource(),
			Path:         f.Path(),
			Name:         f.Name(),
			Type:         f.Type(),
			Depth:        strings.Count(f.Path(), "."),
			ParentPath:   parent,
			Alternate:    alternates[f.Path()],
			Facetable:    f.Facetable(),
			FacetPath:    facetPath,
			Sortable:     f.Sortable(),
			Analyzed:     f.Analyzed(),
			Enabled:      f.Enabled(),
			HasSubfields: f.HasSubfields(),
		})
	}
	return rows
}

// ReplaceFields swaps every field of a resource for the given rows in one
// transaction.
func (db *DB) ReplaceFields(resourceID int, fields []Field) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM fields WHERE resource_id = ?`, resourceID); err != nil {
		return fmt.Errorf("deleting fields: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO fields (id, resource_id, path, name, type, depth, parent_path, alternate,
			facetable, facet_path, sortable, analyzed, enabled, has_subfields)
		 VALUES (nextval('seq_field_id'), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range fields {
		_, err := stmt.Exec(
			resourceID, f.Path, f.Name, f.Type, f.Depth, f.ParentPath, f.Alternate,
			f.Facetable, f.FacetPath, f.Sortable, f.Analyzed, f.Enabled, f.HasSubfields,
		)
		if err != nil {
			return fmt.Errorf("inserting field %s: %w", f.Path, err)
		}
	}

	return tx.Commit()
}

func (db *DB) CountFields(resourceID int) (int, error) {
	var count int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM fields WHERE resource_id = ?`, resourceID).Scan(&count)
	return count, err
}

// FieldQuery filters catalog rows. Zero values match everything.
type FieldQuery struct {
	Resources     []string
	Type          string
	Contains      string
	FacetableOnly bool
	SortableOnly  bool
	Limit         int
}

func (db *DB) QueryFields(q FieldQuery) ([]Field, error) {
	var where []string
	var params []interface{}

	if len(q.Resources) > 0 {
		placeholders := make([]string, len(q.Resources))
		for i, r := range q.Resources {
			placeholders[i] = "?"
			params = append(params, r)
		}
		where = append(where, fmt.Sprintf("r.name IN (%s)", strings.Join(placeholders, ",")))
	}
	if q.Type != "" {
		where = append(where, "f.type = ?")
		params = append(params, q.Type)
	}
	if q.Contains != "" {
		where = append(where, "lower(f.path) LIKE ?")
		params = append(params, "%"+strings.ToLower(q.Contains)+"%")
	}
	if q.FacetableOnly {
		where = append(where, "f.facetable")
	}
	if q.SortableOnly {
		where = append(where, "f.sortable")
	}

	query := `SELECT f.id, f.resource_id, r.name, f.path, f.name, f.type, f.depth, f.parent_path, f.alternate,
			f.facetable, f.facet_path, f.sortable, f.analyzed, f.enabled, f.has_subfields
		FROM fields f JOIN resources r ON r.id = f.resource_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY r.name, f.path"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := db.conn.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("querying fields: %w", err)
	}
	defer rows.Close()

	var fields []Field
	for rows.Next() {
		var f Field
		if err := rows.Scan(&f.ID, &f.ResourceID, &f.Resource, &f.Path, &f.Name, &f.Type, &f.Depth, &f.ParentPath,
			&f.Alternate, &f.Facetable, &f.FacetPath, &f.Sortable, &f.Analyzed, &f.Enabled, &f.HasSubfields); err != nil {
			return nil, fmt.Errorf("scanning field: %w", err)
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}
