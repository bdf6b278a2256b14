package intake

// SkippedPlaceholder is shown instead of fields when a gating question is answered "no".
const SkippedPlaceholder = "This section was skipped. Select \"Yes\" above if this changes."

// ActiveSections returns the sections that are wizard steps for answers, in
// catalog order. Gating questions never remove a section; only the business
// rule and the rental-income rule do.
func ActiveSections(answers AnswerSet, sections []SectionDefinition) []SectionDefinition {
	active := make([]SectionDefinition, 0, len(sections))
	for _, sec := range sections {
		if sectionActive(sec, answers) {
			active = append(active, sec)
		}
	}
	return active
}

func sectionActive(sec SectionDefinition, answers AnswerSet) bool {
	if sec.Category == CategoryBusiness && !StrictEqual(answers[TaxTypeField], BusinessTaxType) {
		return false
	}
	if sec.ID == RentalExpensesSection {
		return hasRentalIncome(answers[RentalIncomeField])
	}
	return true
}

// hasRentalIncome treats unset, "", "0" and numeric zero as no rental income.
func hasRentalIncome(v any) bool {
	if !Truthy(v) {
		return false
	}
	if s, ok := v.(string); ok && s == "0" {
		return false
	}
	return true
}

// RenderMode says how the current section should be drawn.
type RenderMode string

const (
	// ModeGatingUnanswered: only the gating prompt, no fields, no placeholder.
	ModeGatingUnanswered RenderMode = "gating-unanswered"
	// ModeSkipped: the gating question was answered false.
	ModeSkipped RenderMode = "skipped"
	// ModeFieldsVisible: fields filtered by showIf, plus the document list.
	ModeFieldsVisible RenderMode = "fields"
)

// SectionView is the render decision for one section.
type SectionView struct {
	Section     SectionDefinition `json:"section"`
	Mode        RenderMode        `json:"mode"`
	Fields      []FieldDefinition `json:"fields"`
	Files       []UploadedFile    `json:"files"`
	Placeholder string            `json:"placeholder,omitempty"`
}

// ResolveSection computes which parts of sec render for answers. Hidden
// fields keep whatever answer they hold.
func ResolveSection(sec SectionDefinition, answers AnswerSet) SectionView {
	view := SectionView{
		Section: sec,
		Mode:    ModeFieldsVisible,
		Fields:  []FieldDefinition{},
		Files:   []UploadedFile{},
	}
	if g := sec.GatingQuestion; g != nil {
		switch v := answers[g.ID]; {
		case StrictEqual(v, false):
			view.Mode = ModeSkipped
			view.Placeholder = SkippedPlaceholder
			return view
		case !StrictEqual(v, true):
			view.Mode = ModeGatingUnanswered
			return view
		}
	}

	view.Fields = VisibleFields(sec, answers)
	if files := answers.Files(sec.ID); files != nil {
		view.Files = files
	}
	return view
}

// VisibleFields filters a section's fields by their showIf clauses, keeping
// declared order. It ignores the gating question.
func VisibleFields(sec SectionDefinition, answers AnswerSet) []FieldDefinition {
	fields := make([]FieldDefinition, 0, len(sec.Fields))
	for _, f := range sec.Fields {
		if FieldVisible(f, answers) {
			fields = append(fields, f)
		}
	}
	return fields
}

// FieldVisible evaluates a field's showIf clause. A clause that references a
// missing answer is simply unsatisfied.
func FieldVisible(f FieldDefinition, answers AnswerSet) bool {
	if f.ShowIf == nil {
		return true
	}
	return StrictEqual(answers[f.ShowIf.Field], f.ShowIf.Value)
}
