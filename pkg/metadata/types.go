package metadata

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidEntryPoint is returned when an entry point lacks an id, name or type
var ErrInvalidEntryPoint = errors.New("invalid entry point")

// Kind is a component kind name as reported by the dependency data source
type Kind string

// Component kinds the engine gives special treatment to. Edges may carry any other
// kind string; unknown kinds flow through the walks unchanged.
const (
	KindStandardField        Kind = "StandardField"
	KindCustomField          Kind = "CustomField"
	KindCustomObject         Kind = "CustomObject"
	KindApexClass            Kind = "ApexClass"
	KindApexTrigger          Kind = "ApexTrigger"
	KindApexPage             Kind = "ApexPage"
	KindApexComponent        Kind = "ApexComponent"
	KindEmailTemplate        Kind = "EmailTemplate"
	KindFlow                 Kind = "Flow"
	KindValidationRule       Kind = "ValidationRule"
	KindWorkflowRule         Kind = "WorkflowRule"
	KindWorkflowFieldUpdate  Kind = "WorkflowFieldUpdate"
	KindWorkflowAlert        Kind = "WorkflowAlert"
	KindLayout               Kind = "Layout"
	KindFlexiPage            Kind = "FlexiPage"
	KindReport               Kind = "Report"
	KindGlobalValueSet       Kind = "GlobalValueSet"
	KindCustomMetadataRecord Kind = "CustomMetadataRecord"
	KindInstalledPackage     Kind = "InstalledPackage"
	KindStandardEntity       Kind = "StandardEntity"
)

// String returns the kind name
func (k Kind) String() string {
	return string(k)
}

// Options toggles optional, expensive enrichment paths. Each switch is independent.
type Options struct {
	// EnhanceReportData reads report metadata to classify how a field is used
	// (filter, grouping, view only).
	EnhanceReportData bool `json:"enhanceReportData" yaml:"enhance_report_data"`

	// FieldInMetadataTypes searches custom metadata type records that reference a
	// field through field-definition typed fields.
	FieldInMetadataTypes bool `json:"fieldInMetadataTypes" yaml:"field_in_metadata_types"`

	// MaxDepth bounds the number of walk levels. Zero means unlimited.
	MaxDepth int `json:"maxDepth,omitempty" yaml:"max_depth"`
}

// EntryPoint is the component under analysis
type EntryPoint struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Type    Kind    `json:"type"`
	Options Options `json:"options"`
}

// Validate checks that the entry point can seed a walk
func (e EntryPoint) Validate() error {
	switch {
	case strings.TrimSpace(e.ID) == "":
		return fmt.Errorf("%w: id is required", ErrInvalidEntryPoint)
	case strings.TrimSpace(e.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidEntryPoint)
	case strings.TrimSpace(string(e.Type)) == "":
		return fmt.Errorf("%w: type is required", ErrInvalidEntryPoint)
	case e.Type != KindStandardField && e.IsDynamic():
		return fmt.Errorf("%w: %s needs a name distinct from its id", ErrInvalidEntryPoint, e.Type)
	}
	return nil
}

// WithDefaultName fills a missing name for standard fields, whose API name is
// also their id. Other kinds keep an empty name and fail validation.
func (e EntryPoint) WithDefaultName() EntryPoint {
	if strings.TrimSpace(e.Name) == "" && e.Type == KindStandardField {
		e.Name = e.ID
	}
	return e
}

// Ref returns the entry point as an edge origin
func (e EntryPoint) Ref() Ref {
	return Ref{Name: e.Name, ID: e.ID, Type: e.Type}
}

// IsDynamic reports whether the entry point is a dynamic reference
func (e EntryPoint) IsDynamic() bool {
	return IsDynamicReference(e.ID, e.Name)
}

// Ref identifies the component an edge originates from
type Ref struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	Type Kind   `json:"type"`
}

// Pill is an advisory annotation attached during enrichment
type Pill struct {
	Label       string `json:"label"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Pill types
const (
	PillStandard = "standard"
	PillWarning  = "warning"
)

// Edge is a directed reference from ReferencedBy to the named component
type Edge struct {
	Name         string `json:"name"`
	Type         Kind   `json:"type"`
	ID           string `json:"id"`
	Namespace    string `json:"namespace,omitempty"`
	ReferencedBy Ref    `json:"referencedBy"`
	Repeated     bool   `json:"repeated"`
	Dynamic      bool   `json:"dynamic,omitempty"`
	URL          string `json:"url,omitempty"`
	Notes        string `json:"notes,omitempty"`
	Pills        []Pill `json:"pills,omitempty"`

	// SortOrder is set by enrichment to pin an edge ahead of the alphabetical order
	SortOrder *int `json:"sortOrder,omitempty"`
}

// Key returns the synthetic "name:::id" key of the edge target
func (e *Edge) Key() string {
	return NodeKey(e.Name, e.ID)
}

// DedupKey identifies structurally identical edges
func (e *Edge) DedupKey() string {
	return string(e.Type) + "|" + e.ID + "|" + e.ReferencedBy.ID
}

// AddPill appends a pill unless one with the same label is already present
func (e *Edge) AddPill(p Pill) {
	for _, existing := range e.Pills {
		if existing.Label == p.Label {
			return
		}
	}
	e.Pills = append(e.Pills, p)
}

// HasPill reports whether a pill with the given label is attached
func (e *Edge) HasPill(label string) bool {
	for _, p := range e.Pills {
		if p.Label == label {
			return true
		}
	}
	return false
}

// AppendNote adds an advisory note, separating multiple notes with "; "
func (e *Edge) AppendNote(note string) {
	if note == "" {
		return
	}
	if e.Notes == "" {
		e.Notes = note
		return
	}
	e.Notes += "; " + note
}

// Clone returns a copy of the edge that shares no pills or sort order with e
func (e Edge) Clone() Edge {
	if e.Pills != nil {
		e.Pills = append([]Pill(nil), e.Pills...)
	}
	if e.SortOrder != nil {
		order := *e.SortOrder
		e.SortOrder = &order
	}
	return e
}

// CloneEdges deep-copies a slice of edges
func CloneEdges(edges []Edge) []Edge {
	if edges == nil {
		return nil
	}
	out := make([]Edge, len(edges))
	for i := range edges {
		out[i] = edges[i].Clone()
	}
	return out
}

// Ref returns the edge target as the origin of further edges
func (e *Edge) Ref() Ref {
	return Ref{Name: e.Name, ID: e.ID, Type: e.Type}
}

// NodeKey builds the synthetic key used to disambiguate same-named components
func NodeKey(name, id string) string {
	return name + ":::" + id
}

// IsDynamicReference reports whether id and name coincide after case folding
func IsDynamicReference(id, name string) bool {
	return id != "" && strings.EqualFold(id, name)
}

// ComponentURL returns the link to a component, or "" for dynamic references
func ComponentURL(baseURL, id, name string) string {
	if baseURL == "" || id == "" || IsDynamicReference(id, name) {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/" + id
}

// SplitQualifiedName splits "Object.Field" into its object and member parts. A name
// without a dot yields an empty object.
func SplitQualifiedName(name string) (object, member string) {
	idx := strings.Index(name, ".")
	if idx == -1 {
		return "", name
	}
	return name[:idx], name[idx+1:]
}

// Warning records a degraded step: the analysis completed without its output
type Warning struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}
