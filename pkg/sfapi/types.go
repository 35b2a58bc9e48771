package sfapi

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrNotFound is returned when a requested component does not exist
	ErrNotFound = errors.New("not found")

	// ErrInsufficientAccess is returned when a component exists but cannot be read,
	// typically because it sits in a private container
	ErrInsufficientAccess = errors.New("insufficient access")
)

// Op is a filter comparison operator
type Op string

const (
	OpEq     Op = "="
	OpIn     Op = "IN"
	OpLike   Op = "LIKE"
	OpIsNull Op = "IS NULL"
)

// Condition is a single predicate over a field
type Condition struct {
	Field  string
	Op     Op
	Values []string
}

// Filter is a conjunction of conditions
type Filter []Condition

// Eq matches records whose field equals value
func Eq(field, value string) Condition {
	return Condition{Field: field, Op: OpEq, Values: []string{value}}
}

// In matches records whose field is one of values
func In(field string, values ...string) Condition {
	return Condition{Field: field, Op: OpIn, Values: values}
}

// Like matches records whose field matches a LIKE pattern
func Like(field, pattern string) Condition {
	return Condition{Field: field, Op: OpLike, Values: []string{pattern}}
}

// IsNull matches records whose field is null
func IsNull(field string) Condition {
	return Condition{Field: field, Op: OpIsNull}
}

// Empty reports whether the filter can never match, i.e. it contains an IN
// condition with no values
func (f Filter) Empty() bool {
	for _, c := range f {
		if c.Op == OpIn && len(c.Values) == 0 {
			return true
		}
	}
	return false
}

// Query describes a tabular query against the record query service
type Query struct {
	Object string
	Fields []string
	Filter Filter

	// Tooling requests the elevated query mode
	Tooling bool

	// APIVersion overrides the client default when set, e.g. "58.0"
	APIVersion string
}

// Validate checks the query is well formed
func (q Query) Validate() error {
	if q.Object == "" {
		return fmt.Errorf("query object is required")
	}
	if len(q.Fields) == 0 {
		return fmt.Errorf("query on %s selects no fields", q.Object)
	}
	for _, c := range q.Filter {
		if c.Field == "" {
			return fmt.Errorf("query on %s has a condition without a field", q.Object)
		}
		if c.Op != OpIsNull && c.Op != OpIn && len(c.Values) != 1 {
			return fmt.Errorf("condition %s %s expects exactly one value", c.Field, c.Op)
		}
	}
	return nil
}

// Record is a flat query result row keyed by field name
type Record map[string]any

// String returns the field as a string; missing and null values yield ""
func (r Record) String(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// Int returns the field as an int, or 0 when absent or not numeric
func (r Record) Int(field string) int {
	switch val := r[field].(type) {
	case float64:
		return int(val)
	case int64:
		return int(val)
	case int:
		return val
	case string:
		n, _ := strconv.Atoi(val)
		return n
	case []byte:
		n, _ := strconv.Atoi(string(val))
		return n
	}
	return 0
}

// QueryService runs tabular queries
type QueryService interface {
	Query(ctx context.Context, q Query) ([]Record, error)
}

// ObjectSummary is one entry of the object inventory
type ObjectSummary struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Custom bool   `json:"custom"`
}

// FieldDescribe is the schema-level description of a field
type FieldDescribe struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	ReferenceTo []string `json:"referenceTo"`
	Custom      bool     `json:"custom"`
}

// References reports whether the field points at the given object
func (f FieldDescribe) References(object string) bool {
	for _, ref := range f.ReferenceTo {
		if strings.EqualFold(ref, object) {
			return true
		}
	}
	return false
}

// ChildRelationship describes a field on another object that points at this one
type ChildRelationship struct {
	ChildObject      string `json:"childSObject"`
	Field            string `json:"field"`
	RelationshipName string `json:"relationshipName,omitempty"`
}

// ObjectDescribe is the schema-level description of an object
type ObjectDescribe struct {
	Name               string              `json:"name"`
	Label              string              `json:"label"`
	Custom             bool                `json:"custom"`
	Fields             []FieldDescribe     `json:"fields"`
	ChildRelationships []ChildRelationship `json:"childRelationships"`
}

// DescribeService introspects the schema
type DescribeService interface {
	ListObjects(ctx context.Context) ([]ObjectSummary, error)
	DescribeObject(ctx context.Context, name string) (*ObjectDescribe, error)
}

// MetadataBody is the full metadata of one component
type MetadataBody struct {
	Kind     string         `json:"kind"`
	FullName string         `json:"fullName"`
	Body     map[string]any `json:"body,omitempty"`

	// AccessDenied is set when the component exists but could not be read
	AccessDenied bool `json:"accessDenied,omitempty"`
}

// ReadService reads full metadata bodies. Names that do not exist are omitted from
// the result rather than reported as errors.
type ReadService interface {
	Read(ctx context.Context, kind string, names []string) ([]MetadataBody, error)
}

// Services bundles the three collaborators
type Services struct {
	Query    QueryService
	Describe DescribeService
	Read     ReadService
}

// Validate checks that every collaborator is present
func (s Services) Validate() error {
	if s.Query == nil {
		return fmt.Errorf("query service is required")
	}
	if s.Describe == nil {
		return fmt.Errorf("describe service is required")
	}
	if s.Read == nil {
		return fmt.Errorf("read service is required")
	}
	return nil
}

// Chunk splits values into slices of at most size elements
func Chunk(values []string, size int) [][]string {
	if len(values) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(values)
	}
	chunks := make([][]string, 0, (len(values)+size-1)/size)
	for start := 0; start < len(values); start += size {
		end := start + size
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[start:end])
	}
	return chunks
}
