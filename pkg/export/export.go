package export

import (
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/blastradius/pkg/metadata"
)

// Format names an export projection
type Format string

const (
	FormatCSV      Format = "csv"
	FormatManifest Format = "manifest"
	FormatYAML     Format = "yaml"
	FormatTable    Format = "table"
)

// DefaultAPIVersion is written into manifests when none is configured
const DefaultAPIVersion = "60.0"

// Formats lists the supported formats
func Formats() []Format {
	return []Format{FormatCSV, FormatManifest, FormatYAML, FormatTable}
}

// ParseFormat parses a format name
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats() {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// ContentType returns the media type of a format
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatManifest:
		return "application/xml"
	case FormatYAML:
		return "application/yaml"
	}
	return "text/plain; charset=utf-8"
}

// Extension returns the file extension of a format
func (f Format) Extension() string {
	switch f {
	case FormatCSV:
		return ".csv"
	case FormatManifest:
		return ".xml"
	case FormatYAML:
		return ".yaml"
	}
	return ".txt"
}

// Options tunes the projections
type Options struct {
	// APIVersion is the manifest version, DefaultAPIVersion when empty
	APIVersion string
}

// Write renders edges in the given format
func Write(w io.Writer, format Format, edges []metadata.Edge, opts Options) error {
	switch format {
	case FormatCSV:
		return CSV(w, edges)
	case FormatManifest:
		return Manifest(w, edges, opts.APIVersion)
	case FormatYAML:
		return YAML(w, edges)
	case FormatTable:
		return Table(w, edges)
	}
	return fmt.Errorf("unknown export format %q", format)
}

var csvHeader = []string{
	"name", "type", "id", "referenced by name", "referenced by type", "url", "pills", "notes",
}

// CSV writes one row per edge
func CSV(w io.Writer, edges []metadata.Edge) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, e := range edges {
		row := []string{
			e.Name,
			string(e.Type),
			e.ID,
			e.ReferencedBy.Name,
			string(e.ReferencedBy.Type),
			e.URL,
			pillLabels(e.Pills),
			e.Notes,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func pillLabels(pills []metadata.Pill) string {
	labels := make([]string, 0, len(pills))
	for _, p := range pills {
		labels = append(labels, p.Label)
	}
	return strings.Join(labels, "; ")
}

// ByKind groups the unique names of non-dynamic edges by kind, names sorted
func ByKind(edges []metadata.Edge) map[metadata.Kind][]string {
	seen := make(map[metadata.Kind]map[string]struct{})
	out := make(map[metadata.Kind][]string)
	for _, e := range edges {
		if e.Dynamic || e.Name == "" {
			continue
		}
		names, ok := seen[e.Type]
		if !ok {
			names = make(map[string]struct{})
			seen[e.Type] = names
		}
		key := strings.ToLower(e.Name)
		if _, ok := names[key]; ok {
			continue
		}
		names[key] = struct{}{}
		out[e.Type] = append(out[e.Type], e.Name)
	}
	for _, names := range out {
		sort.Strings(names)
	}
	return out
}

func sortedKinds[V any](m map[metadata.Kind]V) []metadata.Kind {
	kinds := make([]metadata.Kind, 0, len(m))
	for k := range m {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// YAML writes a {kind: [names]} document
func YAML(w io.Writer, edges []metadata.Edge) error {
	groups := ByKind(edges)
	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, kind := range sortedKinds(groups) {
		list := &yaml.Node{Kind: yaml.SequenceNode}
		for _, name := range groups[kind] {
			list.Content = append(list.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: name})
		}
		doc.Content = append(doc.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: string(kind)},
			list,
		)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode yaml manifest: %w", err)
	}
	return enc.Close()
}

// manifestTypes maps edge kinds onto the metadata type that deploys them. Kinds
// that are not deployable on their own are left out of manifests.
var manifestTypes = map[metadata.Kind]string{
	metadata.KindStandardField:        "CustomField",
	metadata.KindStandardEntity:       "CustomObject",
	metadata.KindCustomMetadataRecord: "CustomMetadata",
	metadata.KindInstalledPackage:     "",
}

type packageXML struct {
	XMLName xml.Name      `xml:"Package"`
	Xmlns   string        `xml:"xmlns,attr"`
	Types   []packageType `xml:"types"`
	Version string        `xml:"version"`
}

type packageType struct {
	Members []string `xml:"members"`
	Name    string   `xml:"name"`
}

// Manifest writes a package.xml listing every component by metadata type
func Manifest(w io.Writer, edges []metadata.Edge, apiVersion string) error {
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	members := make(map[string][]string)
	for kind, names := range ByKind(edges) {
		typeName := string(kind)
		if mapped, ok := manifestTypes[kind]; ok {
			typeName = mapped
		}
		if typeName == "" {
			continue
		}
		members[typeName] = append(members[typeName], names...)
	}

	typeNames := make([]string, 0, len(members))
	for name := range members {
		typeNames = append(typeNames, name)
	}
	sort.Strings(typeNames)

	pkg := packageXML{Xmlns: "http://soap.sforce.com/2006/04/metadata", Version: apiVersion}
	for _, name := range typeNames {
		list := members[name]
		sort.Strings(list)
		pkg.Types = append(pkg.Types, packageType{Members: list, Name: name})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "    ")
	if err := enc.Encode(pkg); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// Table writes an aligned text table
func Table(w io.Writer, edges []metadata.Edge) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tNAME\tREFERENCED BY\tFLAGS")
	for _, e := range edges {
		var flags []string
		if e.Repeated {
			flags = append(flags, "repeated")
		}
		if e.Dynamic {
			flags = append(flags, "dynamic")
		}
		for _, p := range e.Pills {
			flags = append(flags, p.Label)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Type, e.Name, e.ReferencedBy.Name, strings.Join(flags, ","))
	}
	return tw.Flush()
}
