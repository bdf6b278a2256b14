// Package intake holds the tax questionnaire: the section catalog, the
// answer-set model, and the resolvers that decide which sections are active
// and which fields of a section render for a given set of answers.
//
// Everything here is pure and safe for concurrent reads. A Schema is built once
// at startup and never mutated afterwards.
package intake

import "strings"

// FieldType determines the shape of a stored answer.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldNumber   FieldType = "number"
	FieldCurrency FieldType = "currency"
	FieldDate     FieldType = "date"
	FieldBoolean  FieldType = "boolean"
	FieldTextarea FieldType = "textarea"
	FieldSelect   FieldType = "select"
	FieldGroup    FieldType = "repeatable-group"
)

// Category classifies a section for the business skip rule.
type Category string

const (
	CategoryPersonal Category = "personal"
	CategoryBusiness Category = "business"
)

// Condition is a single-clause visibility rule: the owning field renders only
// when answers[Field] strictly equals Value.
type Condition struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// FieldDefinition describes one question. Required is metadata only.
type FieldDefinition struct {
	ID          string            `json:"id"`
	Label       string            `json:"label"`
	Type        FieldType         `json:"type"`
	Required    bool              `json:"required,omitempty"`
	Placeholder string            `json:"placeholder,omitempty"`
	Options     []string          `json:"options,omitempty"`
	ShowIf      *Condition        `json:"showIf,omitempty"`
	Fields      []FieldDefinition `json:"fields,omitempty"` // sub-fields of a repeatable group
}

// GatingQuestion is the yes/no prompt that toggles a section's fields.
type GatingQuestion struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// SectionDefinition is a named, ordered group of fields and one wizard step.
type SectionDefinition struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Description    string            `json:"description,omitempty"`
	Category       Category          `json:"category"`
	GatingQuestion *GatingQuestion   `json:"gatingQuestion,omitempty"`
	Fields         []FieldDefinition `json:"fields"`
}

// FilesKey returns the answer key holding a section's uploaded documents.
func FilesKey(sectionID string) string {
	return sectionID + filesSuffix
}

const filesSuffix = "_files"

// Schema is the immutable section catalog plus lookup indexes.
type Schema struct {
	sections  []SectionDefinition
	bySection map[string]int
	byField   map[string]FieldDefinition
	gating    map[string]string // gating id -> section id
}

// NewSchema indexes sections in declared order. Duplicate ids keep the first
// occurrence; Validate reports them.
func NewSchema(sections []SectionDefinition) *Schema {
	s := &Schema{
		sections:  sections,
		bySection: make(map[string]int, len(sections)),
		byField:   make(map[string]FieldDefinition),
		gating:    make(map[string]string),
	}
	for i, sec := range sections {
		if _, ok := s.bySection[sec.ID]; !ok {
			s.bySection[sec.ID] = i
		}
		if sec.GatingQuestion != nil {
			if _, ok := s.gating[sec.GatingQuestion.ID]; !ok {
				s.gating[sec.GatingQuestion.ID] = sec.ID
			}
		}
		for _, f := range sec.Fields {
			if _, ok := s.byField[f.ID]; !ok {
				s.byField[f.ID] = f
			}
		}
	}
	return s
}

// Sections returns the catalog in step order. Callers must not modify it.
func (s *Schema) Sections() []SectionDefinition {
	return s.sections
}

// Section looks up a section by id.
func (s *Schema) Section(id string) (SectionDefinition, bool) {
	i, ok := s.bySection[id]
	if !ok {
		return SectionDefinition{}, false
	}
	return s.sections[i], true
}

// Field looks up a field by its global id.
func (s *Schema) Field(id string) (FieldDefinition, bool) {
	f, ok := s.byField[id]
	return f, ok
}

// IsGatingID reports whether id is the answer key of a gating question.
func (s *Schema) IsGatingID(id string) bool {
	_, ok := s.gating[id]
	return ok
}

// FileSection returns the section owning a "<sectionId>_files" key.
func (s *Schema) FileSection(key string) (SectionDefinition, bool) {
	if !strings.HasSuffix(key, filesSuffix) {
		return SectionDefinition{}, false
	}
	return s.Section(strings.TrimSuffix(key, filesSuffix))
}

// AllowsKey reports whether key may appear in an answer set for this schema:
// a field id, a gating-question id, or a section's files key.
func (s *Schema) AllowsKey(key string) bool {
	if _, ok := s.byField[key]; ok {
		return true
	}
	if s.IsGatingID(key) {
		return true
	}
	_, ok := s.FileSection(key)
	return ok
}
