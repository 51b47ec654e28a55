package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	QAName      = "qa"
	ProjectName = "project"
)

// Field describes one text attribute of a task record.
type Field struct {
	Name      string `json:"name"`
	Required  bool   `json:"required,omitempty"`
	MultiLine bool   `json:"multi_line,omitempty"`
	Link      bool   `json:"link,omitempty"`
}

// Schema is the ordered field set shared by every record in a store.
type Schema struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// New validates the field list. Names must be non-empty and unique.
func New(name string, fields []Field) (Schema, error) {
	if len(fields) == 0 {
		return Schema{}, errors.New("schema has no fields")
	}
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f.Name) == "" {
			return Schema{}, errors.New("schema field name is empty")
		}
		if f.Name == "id" {
			return Schema{}, errors.New(`schema field name "id" is reserved`)
		}
		if _, ok := seen[f.Name]; ok {
			return Schema{}, fmt.Errorf("duplicate schema field %q", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	out := make([]Field, len(fields))
	copy(out, fields)
	return Schema{Name: name, Fields: out}, nil
}

func mustNew(name string, fields []Field) Schema {
	s, err := New(name, fields)
	if err != nil {
		panic(err)
	}
	return s
}

// QA is the test-case tracking field set.
func QA() Schema {
	return mustNew(QAName, []Field{
		{Name: "DRS", Required: true},
		{Name: "Descripcion", Required: true},
		{Name: "Casos de prueba"},
		{Name: "Link", Link: true},
		{Name: "Detalles", MultiLine: true},
		{Name: "Precondiciones", MultiLine: true},
		{Name: "Estado"},
		{Name: "Defecto"},
		{Name: "Comentarios", MultiLine: true},
	})
}

// Project is the project task field set.
func Project() Schema {
	return mustNew(ProjectName, []Field{
		{Name: "ID Proyecto", Required: true},
		{Name: "Nombre Tarea", Required: true},
		{Name: "Estado"},
		{Name: "Prioridad"},
		{Name: "Subtareas"},
		{Name: "Enlace", Link: true},
		{Name: "Descripción Detallada", MultiLine: true},
		{Name: "Requisitos", MultiLine: true},
		{Name: "Notas", MultiLine: true},
	})
}

var presets = map[string]func() Schema{
	QAName:      QA,
	ProjectName: Project,
}

// Lookup returns a preset schema by name (case-insensitive).
func Lookup(name string) (Schema, error) {
	fn, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Schema{}, fmt.Errorf("unknown schema %q (available: %s)", name, strings.Join(Presets(), ", "))
	}
	return fn(), nil
}

// Presets lists the built-in schema names.
func Presets() []string {
	out := make([]string, 0, len(presets))
	for k := range presets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s Schema) Names() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (s Schema) Has(name string) bool {
	_, ok := s.Field(name)
	return ok
}

func (s Schema) Required() []Field {
	return s.filter(func(f Field) bool { return f.Required })
}

func (s Schema) MultiLine() []Field {
	return s.filter(func(f Field) bool { return f.MultiLine })
}

func (s Schema) filter(keep func(Field) bool) []Field {
	var out []Field
	for _, f := range s.Fields {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}

// Blank returns a value map with every field set to "".
func (s Schema) Blank() map[string]string {
	out := make(map[string]string, len(s.Fields))
	for _, f := range s.Fields {
		out[f.Name] = ""
	}
	return out
}

// Normalize copies the schema fields out of values. Missing fields become ""
// and names outside the schema are dropped.
func (s Schema) Normalize(values map[string]string) map[string]string {
	out := s.Blank()
	for name, v := range values {
		if _, ok := out[name]; ok {
			out[name] = v
		}
	}
	return out
}

// Missing reports required fields whose value is empty after trimming.
func (s Schema) Missing(values map[string]string) []string {
	var missing []string
	for _, f := range s.Fields {
		if f.Required && strings.TrimSpace(values[f.Name]) == "" {
			missing = append(missing, f.Name)
		}
	}
	return missing
}
