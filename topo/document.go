// ABOUTME: Topology document wire format shared by history snapshots, persistence, and the HTTP API.
// ABOUTME: Provides strict JSON decoding, validation, canonical equality, and YAML encoding.
package topo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidDocument is returned when a document has an unexpected shape.
var ErrInvalidDocument = errors.New("invalid topology document")

// Document is the serialization unit: ordered nodes, ordered edges, and the
// groups with their resolved member lists.
type Document struct {
	Nodes  []NodeRecord  `json:"nodes" yaml:"nodes" validate:"dive"`
	Edges  []EdgeRecord  `json:"edges" yaml:"edges" validate:"dive"`
	Groups []GroupRecord `json:"groups" yaml:"groups" validate:"dive"`
}

// NodeRecord is the persisted form of a node or group node.
type NodeRecord struct {
	ID     string  `json:"id" yaml:"id" validate:"required"`
	Type   string  `json:"type" yaml:"type"`
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width" validate:"gte=0"`
	Height float64 `json:"height" yaml:"height" validate:"gte=0"`
	Parent string  `json:"parent,omitempty" yaml:"parent,omitempty"`
	Name   string  `json:"name,omitempty" yaml:"name,omitempty"`
	Data   Props   `json:"data,omitempty" yaml:"data,omitempty"`
	Attrs  Props   `json:"attrs,omitempty" yaml:"attrs,omitempty"`
}

// IsGroup reports whether the record describes a group node.
func (r NodeRecord) IsGroup() bool {
	return r.Type == TypeGroup
}

// EdgeRecord is the persisted form of an edge. Source and Target are empty
// when the endpoint no longer existed at serialization time.
type EdgeRecord struct {
	ID          string    `json:"id" yaml:"id" validate:"required"`
	Source      string    `json:"source" yaml:"source"`
	Target      string    `json:"target" yaml:"target"`
	Router      *Strategy `json:"router,omitempty" yaml:"router,omitempty" validate:"omitempty"`
	Connector   *Strategy `json:"connector,omitempty" yaml:"connector,omitempty" validate:"omitempty"`
	CustomStyle bool      `json:"customStyle,omitempty" yaml:"customStyle,omitempty"`
	CustomAttrs Props     `json:"customAttrs,omitempty" yaml:"customAttrs,omitempty"`
	Data        Props     `json:"data,omitempty" yaml:"data,omitempty"`
	Attrs       Props     `json:"attrs,omitempty" yaml:"attrs,omitempty"`
}

// GroupRecord lists a group and the ids of its members.
type GroupRecord struct {
	ID       string   `json:"id" yaml:"id" validate:"required"`
	Name     string   `json:"name" yaml:"name"`
	Children []string `json:"children" yaml:"children"`
}

var validate = validator.New()

// Validate checks the document's shape: required ids, non-negative sizes and
// unique element ids. Dangling references are not shape errors; they are
// tolerated on load.
func (d *Document) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDocument, formatValidationError(err))
	}

	seen := make(map[string]bool, len(d.Nodes)+len(d.Edges))
	for _, n := range d.Nodes {
		if seen[n.ID] {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidDocument, n.ID)
		}
		seen[n.ID] = true
	}
	for _, e := range d.Edges {
		if seen[e.ID] {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidDocument, e.ID)
		}
		seen[e.ID] = true
	}
	return nil
}

func formatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Document.")
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", field))
		case "gte":
			parts = append(parts, fmt.Sprintf("%s must be >= %s", field, fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", field))
		}
	}
	return strings.Join(parts, "; ")
}

// DecodeDocument parses a JSON document, rejecting unknown fields and
// invalid shapes. Documents written by older editors that kept type, parent,
// router and connector inside the data bag are normalized.
func DecodeDocument(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	doc.normalize()
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *Document) normalize() {
	for i := range d.Nodes {
		n := &d.Nodes[i]
		if n.Type == "" {
			n.Type = n.Data.String(keyType)
		}
		if n.Parent == "" {
			n.Parent = n.Data.String(keyParent)
		}
		if n.IsGroup() && n.Name == "" {
			n.Name = n.Data.String("name")
		}
		n.Data = stripReserved(n.Data)
	}
	for i := range d.Edges {
		e := &d.Edges[i]
		if e.Router == nil {
			e.Router = strategyFromProps(e.Data.Map("router"))
		}
		if e.Connector == nil {
			e.Connector = strategyFromProps(e.Data.Map("connector"))
		}
		if !e.CustomStyle {
			if custom, _ := e.Data["customStyle"].(bool); custom {
				e.CustomStyle = true
				e.CustomAttrs = e.Data.Map("customAttrs").Clone()
			}
		}
		if e.Data != nil {
			e.Data = e.Data.Clone()
			for _, k := range []string{"router", "connector", "customStyle", "customAttrs"} {
				delete(e.Data, k)
			}
		}
	}
	if d.Nodes == nil {
		d.Nodes = []NodeRecord{}
	}
	if d.Edges == nil {
		d.Edges = []EdgeRecord{}
	}
	if d.Groups == nil {
		d.Groups = []GroupRecord{}
	}
}

func strategyFromProps(p Props) *Strategy {
	name := p.String("name")
	if name == "" {
		return nil
	}
	return &Strategy{Name: name, Args: p.Map("args").Clone()}
}

// EncodeDocument renders the document as JSON. Map keys are emitted in
// sorted order, so equal documents encode to identical bytes.
func EncodeDocument(doc *Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// EncodeYAML renders the document as YAML for human review.
func EncodeYAML(doc *Document) ([]byte, error) {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return data, nil
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{
		Nodes:  make([]NodeRecord, len(d.Nodes)),
		Edges:  make([]EdgeRecord, len(d.Edges)),
		Groups: make([]GroupRecord, len(d.Groups)),
	}
	for i, n := range d.Nodes {
		n.Data = n.Data.Clone()
		n.Attrs = n.Attrs.Clone()
		out.Nodes[i] = n
	}
	for i, e := range d.Edges {
		e.Router = e.Router.clone()
		e.Connector = e.Connector.clone()
		e.CustomAttrs = e.CustomAttrs.Clone()
		e.Data = e.Data.Clone()
		e.Attrs = e.Attrs.Clone()
		out.Edges[i] = e
	}
	for i, gr := range d.Groups {
		gr.Children = append([]string{}, gr.Children...)
		out.Groups[i] = gr
	}
	return out
}

// Equal reports whether two documents are structurally identical.
func Equal(a, b *Document) bool {
	ab, errA := EncodeDocument(a)
	bb, errB := EncodeDocument(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}
