package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sectionIDs(sections []SectionDefinition) []string {
	ids := make([]string, len(sections))
	for i, s := range sections {
		ids[i] = s.ID
	}
	return ids
}

func catalogIndex(t *testing.T, id string) int {
	t.Helper()
	for i, s := range DefaultSchema().Sections() {
		if s.ID == id {
			return i
		}
	}
	t.Fatalf("section %s not in catalog", id)
	return -1
}

func TestActiveSectionsDeterministic(t *testing.T) {
	sections := DefaultSchema().Sections()
	answers := AnswerSet{TaxTypeField: BusinessTaxType, RentalIncomeField: "800", "hasVehicle": false}

	first := sectionIDs(ActiveSections(answers, sections))
	second := sectionIDs(ActiveSections(answers, sections))
	assert.Equal(t, first, second)
}

func TestActiveSectionsPreservesCatalogOrder(t *testing.T) {
	cases := []AnswerSet{
		{},
		{TaxTypeField: BusinessTaxType},
		{RentalIncomeField: "10"},
		{TaxTypeField: BusinessTaxType, RentalIncomeField: 42.0},
		{TaxTypeField: PersonalTaxType, "hasIncomeDocs": true},
	}
	for _, answers := range cases {
		active := ActiveSections(answers, DefaultSchema().Sections())
		seen := map[string]bool{}
		last := -1
		for _, s := range active {
			require.False(t, seen[s.ID], "duplicate %s", s.ID)
			seen[s.ID] = true
			idx := catalogIndex(t, s.ID)
			require.Greater(t, idx, last, "%s out of order", s.ID)
			last = idx
		}
	}
}

func TestBusinessSectionsRequireExactTaxType(t *testing.T) {
	for _, taxType := range []any{nil, "", PersonalTaxType, "personal + business (self-employed/freelance)", true} {
		answers := AnswerSet{}
		if taxType != nil {
			answers[TaxTypeField] = taxType
		}
		for _, s := range ActiveSections(answers, DefaultSchema().Sections()) {
			assert.NotEqual(t, CategoryBusiness, s.Category, "taxType=%v activated %s", taxType, s.ID)
		}
	}

	active := sectionIDs(ActiveSections(AnswerSet{TaxTypeField: BusinessTaxType}, DefaultSchema().Sections()))
	for _, s := range DefaultSchema().Sections() {
		if s.Category == CategoryBusiness {
			assert.Contains(t, active, s.ID)
		}
	}
}

func TestRentalExpensesSpecialCase(t *testing.T) {
	sections := DefaultSchema().Sections()
	absent := []AnswerSet{
		{},
		{RentalIncomeField: ""},
		{RentalIncomeField: "0"},
		{RentalIncomeField: 0.0},
		{RentalIncomeField: nil},
	}
	for _, answers := range absent {
		assert.NotContains(t, sectionIDs(ActiveSections(answers, sections)), RentalExpensesSection, "answers %v", answers)
	}

	present := []AnswerSet{
		{RentalIncomeField: "500"},
		{RentalIncomeField: 500.0},
		{RentalIncomeField: "0.00"},
	}
	for _, answers := range present {
		assert.Contains(t, sectionIDs(ActiveSections(answers, sections)), RentalExpensesSection, "answers %v", answers)
	}
}

func TestEmptySession(t *testing.T) {
	schema := DefaultSchema()
	active := ActiveSections(AnswerSet{}, schema.Sections())

	assert.Equal(t, []string{
		"tax_situation", "profile", "dependents", "income", "schedule_a_itemized", "other_info",
	}, sectionIDs(active))

	taxSituation, ok := schema.Section("tax_situation")
	require.True(t, ok)
	view := ResolveSection(taxSituation, AnswerSet{})
	assert.Equal(t, ModeFieldsVisible, view.Mode)
	// spouseName is hidden until filingStatus is answered.
	assert.Equal(t, []string{"taxType", "filingStatus", "maritalChange"}, fieldIDs(view.Fields))

	income, ok := schema.Section("income")
	require.True(t, ok)
	view = ResolveSection(income, AnswerSet{})
	assert.Equal(t, ModeGatingUnanswered, view.Mode)
	assert.Empty(t, view.Fields)
	assert.Empty(t, view.Placeholder)
}

func TestBusinessAndRentalScenario(t *testing.T) {
	answers := AnswerSet{TaxTypeField: BusinessTaxType, RentalIncomeField: "1200"}
	active := sectionIDs(ActiveSections(answers, DefaultSchema().Sections()))
	for _, id := range []string{"schedule_c_income", "business_expenses", "vehicle", "home_office", RentalExpensesSection} {
		assert.Contains(t, active, id)
	}
	assert.Len(t, active, len(DefaultSchema().Sections()))
}

func TestGatingModes(t *testing.T) {
	dependents, _ := DefaultSchema().Section("dependents")
	files := []UploadedFile{{Name: "w2.pdf", Path: "tok/dependents/1-w2.pdf", Size: 10}}

	cases := []struct {
		name   string
		gating any
		mode   RenderMode
	}{
		{"unset", nil, ModeGatingUnanswered},
		{"string true is not true", "true", ModeGatingUnanswered},
		{"false", false, ModeSkipped},
		{"true", true, ModeFieldsVisible},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			answers := AnswerSet{FilesKey("dependents"): files}
			if tc.gating != nil {
				answers["hasDependents"] = tc.gating
			}
			view := ResolveSection(dependents, answers)
			assert.Equal(t, tc.mode, view.Mode)
			switch tc.mode {
			case ModeSkipped:
				assert.Equal(t, SkippedPlaceholder, view.Placeholder)
				assert.Empty(t, view.Fields)
				assert.Empty(t, view.Files)
			case ModeFieldsVisible:
				assert.Equal(t, files, view.Files)
				assert.NotEmpty(t, view.Fields)
			default:
				assert.Empty(t, view.Fields)
				assert.Empty(t, view.Files)
			}
		})
	}
}

func TestSectionWithoutGatingAlwaysShowsFields(t *testing.T) {
	other, _ := DefaultSchema().Section("other_info")
	view := ResolveSection(other, AnswerSet{})
	assert.Equal(t, ModeFieldsVisible, view.Mode)
	assert.Len(t, view.Fields, len(other.Fields))
}

func TestShowIfStrictEquality(t *testing.T) {
	f := FieldDefinition{ID: "f", Type: FieldText, ShowIf: &Condition{Field: "x", Value: "A"}}
	assert.True(t, FieldVisible(f, AnswerSet{"x": "A"}))
	assert.False(t, FieldVisible(f, AnswerSet{"x": "a"}))
	assert.False(t, FieldVisible(f, AnswerSet{}))

	num := FieldDefinition{ID: "n", Type: FieldText, ShowIf: &Condition{Field: "x", Value: 1}}
	assert.True(t, FieldVisible(num, AnswerSet{"x": 1.0}))
	assert.False(t, FieldVisible(num, AnswerSet{"x": "1"}))
}

func TestHiddenFieldsKeepAnswers(t *testing.T) {
	dependents, _ := DefaultSchema().Section("dependents")
	answers := AnswerSet{"hasDependents": true, "childcareExpenses": "Yes", "childcareAmount": 1500.0}
	assert.Contains(t, fieldIDs(ResolveSection(dependents, answers).Fields), "childcareAmount")

	answers["childcareExpenses"] = "No"
	assert.NotContains(t, fieldIDs(ResolveSection(dependents, answers).Fields), "childcareAmount")
	assert.Equal(t, 1500.0, answers["childcareAmount"])

	answers["childcareExpenses"] = "Yes"
	assert.Contains(t, fieldIDs(ResolveSection(dependents, answers).Fields), "childcareAmount")
}

func TestDanglingShowIfIsUnsatisfied(t *testing.T) {
	sec := SectionDefinition{ID: "s", Category: CategoryPersonal, Fields: []FieldDefinition{
		{ID: "a", Type: FieldText, ShowIf: &Condition{Field: "doesNotExist", Value: "x"}},
		{ID: "b", Type: FieldText},
	}}
	assert.Equal(t, []string{"b"}, fieldIDs(ResolveSection(sec, AnswerSet{}).Fields))
}

func fieldIDs(fields []FieldDefinition) []string {
	ids := make([]string, len(fields))
	for i, f := range fields {
		ids[i] = f.ID
	}
	return ids
}
