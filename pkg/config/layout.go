package config

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed layouts/default.json layouts/layout.schema.json
var layoutFS embed.FS

const layoutSchemaURL = "layout.schema.json"

// Layout describes what to extract from a payslip and how to tabulate it.
type Layout struct {
	Strategy  string          `json:"strategy"`
	Threshold *int            `json:"threshold"`
	Period    LayoutPeriod    `json:"period"`
	Fields    []LayoutField   `json:"fields"`
	Derived   []LayoutDerived `json:"derived"`
}

type LayoutPeriod struct {
	Mode   string `json:"mode"`
	Anchor string `json:"anchor"` // YYYY-MM
	Column string `json:"column"`
}

type LayoutField struct {
	Label    string `json:"label"`
	Key      string `json:"key"`
	Required bool   `json:"required"`
	Hidden   bool   `json:"hidden"`
	Default  string `json:"default"`
}

type LayoutDerived struct {
	Key     string `json:"key"`
	Formula string `json:"formula"`
}

// DefaultLayout returns the built-in payslip layout.
func DefaultLayout() (*Layout, error) {
	data, err := layoutFS.ReadFile("layouts/default.json")
	if err != nil {
		return nil, fmt.Errorf("read default layout: %w", err)
	}
	return ParseLayout(data)
}

// LoadLayout reads a layout file, or the built-in layout when path is empty.
func LoadLayout(path string) (*Layout, error) {
	if path == "" {
		return DefaultLayout()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout %s: %w", path, err)
	}
	l, err := ParseLayout(data)
	if err != nil {
		return nil, fmt.Errorf("layout %s: %w", path, err)
	}
	return l, nil
}

// ParseLayout validates data against the layout JSON Schema and decodes it.
func ParseLayout(data []byte) (*Layout, error) {
	schema, err := compileLayoutSchema()
	if err != nil {
		return nil, err
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("unmarshal layout: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("layout does not match schema: %w", err)
	}

	var l Layout
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&l); err != nil {
		return nil, fmt.Errorf("decode layout: %w", err)
	}
	return &l, nil
}

func compileLayoutSchema() (*jsonschema.Schema, error) {
	raw, err := layoutFS.ReadFile("layouts/layout.schema.json")
	if err != nil {
		return nil, fmt.Errorf("read layout schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(layoutSchemaURL, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add layout schema: %w", err)
	}
	schema, err := compiler.Compile(layoutSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile layout schema: %w", err)
	}
	return schema, nil
}

// ApplyOverrides replaces layout settings with non-empty environment values.
func (l *Layout) ApplyOverrides(c ExtractionConfig) {
	if c.Strategy != "" {
		l.Strategy = c.Strategy
	}
	if c.Threshold >= 0 {
		t := c.Threshold
		l.Threshold = &t
	}
	if c.PeriodMode != "" {
		l.Period.Mode = c.PeriodMode
	}
	if c.PeriodAnchor != "" {
		l.Period.Anchor = c.PeriodAnchor
	}
}

// ThresholdOr returns the layout threshold or def when unset.
func (l *Layout) ThresholdOr(def int) int {
	if l.Threshold == nil {
		return def
	}
	return *l.Threshold
}
