package intake

import (
	"errors"
	"fmt"
	"slices"
)

// Validate checks the cross references the resolvers rely on by string
// identity: unique section ids, one flat field namespace shared with gating
// ids, showIf targets that exist, and select options that can match.
// It reports every problem at once.
func Validate(s *Schema) error {
	var errs []error
	sections := make(map[string]bool)
	keys := make(map[string]string) // answer key -> owning section

	claim := func(key, section string) {
		if owner, dup := keys[key]; dup {
			errs = append(errs, fmt.Errorf("answer key %q declared in %s and %s", key, owner, section))
			return
		}
		keys[key] = section
	}

	for _, sec := range s.sections {
		if sec.ID == "" {
			errs = append(errs, errors.New("section with empty id"))
			continue
		}
		if sections[sec.ID] {
			errs = append(errs, fmt.Errorf("duplicate section id %q", sec.ID))
		}
		sections[sec.ID] = true
		if sec.Category != CategoryPersonal && sec.Category != CategoryBusiness {
			errs = append(errs, fmt.Errorf("section %s: unknown category %q", sec.ID, sec.Category))
		}
		if sec.GatingQuestion != nil {
			claim(sec.GatingQuestion.ID, sec.ID)
		}
		claim(FilesKey(sec.ID), sec.ID)
		for _, f := range sec.Fields {
			if f.ID == "" {
				errs = append(errs, fmt.Errorf("section %s: field with empty id", sec.ID))
				continue
			}
			claim(f.ID, sec.ID)
			errs = append(errs, validateField(sec.ID, f)...)
		}
	}

	for _, sec := range s.sections {
		for _, f := range sec.Fields {
			if f.ShowIf == nil {
				continue
			}
			if _, ok := keys[f.ShowIf.Field]; !ok {
				errs = append(errs, fmt.Errorf("field %s: showIf references unknown field %q", f.ID, f.ShowIf.Field))
				continue
			}
			target, ok := s.byField[f.ShowIf.Field]
			if !ok || target.Type != FieldSelect {
				continue
			}
			want, isString := f.ShowIf.Value.(string)
			if !isString || !slices.Contains(target.Options, want) {
				errs = append(errs, fmt.Errorf("field %s: showIf value %v is not an option of %s", f.ID, f.ShowIf.Value, target.ID))
			}
		}
	}

	if _, ok := s.byField[TaxTypeField]; !ok {
		errs = append(errs, fmt.Errorf("catalog has no %s field", TaxTypeField))
	}
	if _, ok := s.byField[RentalIncomeField]; !ok {
		if _, hasRental := s.bySection[RentalExpensesSection]; hasRental {
			errs = append(errs, fmt.Errorf("%s section present without %s field", RentalExpensesSection, RentalIncomeField))
		}
	}
	return errors.Join(errs...)
}

func validateField(sectionID string, f FieldDefinition) []error {
	var errs []error
	switch f.Type {
	case FieldText, FieldNumber, FieldCurrency, FieldDate, FieldBoolean, FieldTextarea:
	case FieldSelect:
		if len(f.Options) == 0 {
			errs = append(errs, fmt.Errorf("%s.%s: select without options", sectionID, f.ID))
		}
	case FieldGroup:
		if len(f.Fields) == 0 {
			errs = append(errs, fmt.Errorf("%s.%s: repeatable group without columns", sectionID, f.ID))
		}
		seen := make(map[string]bool)
		for _, sf := range f.Fields {
			if seen[sf.ID] {
				errs = append(errs, fmt.Errorf("%s.%s: duplicate column %q", sectionID, f.ID, sf.ID))
			}
			seen[sf.ID] = true
			if sf.Type == FieldGroup {
				errs = append(errs, fmt.Errorf("%s.%s: nested groups are not supported", sectionID, f.ID))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("%s.%s: unknown field type %q", sectionID, f.ID, f.Type))
	}
	return errs
}
