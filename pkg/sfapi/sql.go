package sfapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Dialect selects the placeholder style of the SQL backend
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

// DialectForDriver maps a database/sql driver name to its dialect
func DialectForDriver(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return DialectPostgres, nil
	case "sqlite3", "sqlite":
		return DialectSQLite, nil
	default:
		return 0, fmt.Errorf("unsupported driver %q", driver)
	}
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// SQLStore serves all three collaborator contracts from a relational mirror of
// org metadata. Each queryable object is a table named after the object whose
// columns carry the API field names (relationship fields keep their dotted name).
// Describes live in object_describes, field_describes and child_relationships;
// metadata bodies in metadata_bodies(kind, full_name, body).
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore wraps an open database
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// OpenSQLStore opens and pings a database for the given driver
func OpenSQLStore(driver, dsn string) (*SQLStore, error) {
	dialect, err := DialectForDriver(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s snapshot: %w", driver, err)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s snapshot: %w", driver, err)
	}

	return NewSQLStore(db, dialect), nil
}

// DB returns the underlying database handle
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Close closes the database
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Services returns the store as a collaborator bundle
func (s *SQLStore) Services() Services {
	return Services{Query: s, Describe: s, Read: s}
}

func (s *SQLStore) placeholder(n int) string {
	if s.dialect == DialectSQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

func quoteIdent(name string) (string, error) {
	if !identifierPattern.MatchString(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	return `"` + name + `"`, nil
}

// buildSelect renders q as a parameterized statement
func (s *SQLStore) buildSelect(q Query) (string, []any, error) {
	table, err := quoteIdent(q.Object)
	if err != nil {
		return "", nil, err
	}

	cols := make([]string, len(q.Fields))
	for i, f := range q.Fields {
		if cols[i], err = quoteIdent(f); err != nil {
			return "", nil, err
		}
	}

	args := make([]any, 0)
	clauses := make([]string, 0, len(q.Filter))
	for _, c := range q.Filter {
		col, err := quoteIdent(c.Field)
		if err != nil {
			return "", nil, err
		}

		switch c.Op {
		case OpEq, OpLike:
			args = append(args, c.Values[0])
			clauses = append(clauses, fmt.Sprintf("%s %s %s", col, c.Op, s.placeholder(len(args))))
		case OpIn:
			marks := make([]string, len(c.Values))
			for i, v := range c.Values {
				args = append(args, v)
				marks[i] = s.placeholder(len(args))
			}
			clauses = append(clauses, fmt.Sprintf("%s IN (%s)", col, strings.Join(marks, ", ")))
		case OpIsNull:
			clauses = append(clauses, col+" IS NULL")
		default:
			return "", nil, fmt.Errorf("unsupported operator %q", c.Op)
		}
	}

	stmt := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), table)
	if len(clauses) > 0 {
		stmt += " WHERE " + strings.Join(clauses, " AND ")
	}
	return stmt, args, nil
}

// Query runs q against the mirror. Tooling and APIVersion are accepted and ignored:
// a mirror has a single view of the metadata.
func (s *SQLStore) Query(ctx context.Context, q Query) ([]Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.Filter.Empty() {
		return nil, nil
	}

	stmt, args, err := s.buildSelect(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Object, err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		values := make([]any, len(q.Fields))
		ptrs := make([]any, len(q.Fields))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", q.Object, err)
		}

		rec := make(Record, len(q.Fields))
		for i, f := range q.Fields {
			if b, ok := values[i].([]byte); ok {
				rec[f] = string(b)
			} else {
				rec[f] = values[i]
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s rows: %w", q.Object, err)
	}

	return records, nil
}

// ListObjects returns the object inventory
func (s *SQLStore) ListObjects(ctx context.Context) ([]ObjectSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, label, custom FROM object_describes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	defer rows.Close()

	objects := make([]ObjectSummary, 0)
	for rows.Next() {
		var o ObjectSummary
		if err := rows.Scan(&o.Name, &o.Label, &o.Custom); err != nil {
			return nil, fmt.Errorf("failed to scan object: %w", err)
		}
		objects = append(objects, o)
	}
	return objects, rows.Err()
}

// DescribeObject returns the fields and child relationships of an object
func (s *SQLStore) DescribeObject(ctx context.Context, name string) (*ObjectDescribe, error) {
	desc := &ObjectDescribe{}
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT name, label, custom FROM object_describes WHERE name = %s`, s.placeholder(1)),
		name,
	).Scan(&desc.Name, &desc.Label, &desc.Custom)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("object %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", name, err)
	}

	fieldRows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT name, type, reference_to, custom FROM field_describes WHERE object_name = %s ORDER BY name`, s.placeholder(1)),
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to describe fields of %s: %w", name, err)
	}
	defer fieldRows.Close()

	for fieldRows.Next() {
		var f FieldDescribe
		var refs sql.NullString
		if err := fieldRows.Scan(&f.Name, &f.Type, &refs, &f.Custom); err != nil {
			return nil, fmt.Errorf("failed to scan field of %s: %w", name, err)
		}
		if refs.Valid && refs.String != "" {
			f.ReferenceTo = strings.Split(refs.String, ",")
		}
		desc.Fields = append(desc.Fields, f)
	}
	if err := fieldRows.Err(); err != nil {
		return nil, err
	}

	childRows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT child_object, field, relationship_name FROM child_relationships WHERE parent_object = %s ORDER BY child_object, field`, s.placeholder(1)),
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to describe child relationships of %s: %w", name, err)
	}
	defer childRows.Close()

	for childRows.Next() {
		var c ChildRelationship
		var rel sql.NullString
		if err := childRows.Scan(&c.ChildObject, &c.Field, &rel); err != nil {
			return nil, fmt.Errorf("failed to scan child relationship of %s: %w", name, err)
		}
		c.RelationshipName = rel.String
		desc.ChildRelationships = append(desc.ChildRelationships, c)
	}

	return desc, childRows.Err()
}

// Read returns metadata bodies stored as JSON documents
func (s *SQLStore) Read(ctx context.Context, kind string, names []string) ([]MetadataBody, error) {
	if len(names) == 0 {
		return nil, nil
	}

	args := []any{kind}
	marks := make([]string, len(names))
	for i, n := range names {
		args = append(args, n)
		marks[i] = s.placeholder(len(args))
	}

	stmt := fmt.Sprintf(
		`SELECT full_name, body FROM metadata_bodies WHERE kind = %s AND full_name IN (%s) ORDER BY full_name`,
		s.placeholder(1), strings.Join(marks, ", "),
	)

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s metadata: %w", kind, err)
	}
	defer rows.Close()

	bodies := make([]MetadataBody, 0, len(names))
	for rows.Next() {
		var fullName string
		var raw []byte
		if err := rows.Scan(&fullName, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan %s metadata: %w", kind, err)
		}

		body := MetadataBody{Kind: kind, FullName: fullName}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &body.Body); err != nil {
				return nil, fmt.Errorf("failed to decode %s %s: %w", kind, fullName, err)
			}
		}
		bodies = append(bodies, body)
	}

	return bodies, rows.Err()
}
