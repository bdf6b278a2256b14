// Package export renders intakes and client lists for download by firm staff.
package export

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/stevi10623-crypto/deductly-intake/internal/intake"
	"github.com/stevi10623-crypto/deductly-intake/internal/models"
)

// Format is a download format for a single intake.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// ParseFormat maps a query value to a Format. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType returns the MIME type of a rendered file.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatJSON:
		return "application/json"
	}
	return "text/csv; charset=utf-8"
}

// SkippedStatus is the value row written for a section answered "No".
const SkippedStatus = "Skipped (User selected No)"

// Row is one label/value line of an intake export.
type Row struct {
	Label  string
	Value  string
	Header bool
}

var spacer = Row{}

var printer = message.NewPrinter(language.AmericanEnglish)

// Rows flattens an intake into label/value lines: a client block, then each
// section of the catalog in order. Business sections appear only for the
// business tax type.
func Rows(schema *intake.Schema, c *models.Client, in *models.Intake) []Row {
	answers := intake.AnswerSet{}
	status, taxYear, updated := "", "", ""
	if in != nil {
		if in.Data != nil {
			answers = in.Data
		}
		status = string(in.Status)
		if in.TaxYear != 0 {
			taxYear = strconv.Itoa(in.TaxYear)
		}
		updated = displayTime(in.UpdatedAt, "2006-01-02 15:04 MST")
	}

	rows := []Row{
		{Label: "Client Information", Header: true},
		{Label: "Name", Value: c.Name},
		{Label: "Email", Value: c.Email},
		{Label: "Status", Value: status},
		{Label: "Tax Year", Value: taxYear},
		{Label: "Last Updated", Value: updated},
		spacer,
	}

	business := intake.StrictEqual(answers[intake.TaxTypeField], intake.BusinessTaxType)
	for _, sec := range schema.Sections() {
		if sec.Category == intake.CategoryBusiness && !business {
			continue
		}
		rows = append(rows, Row{Label: strings.ToUpper(sec.Title), Header: true})
		if sec.GatingQuestion != nil && answeredNo(answers[sec.GatingQuestion.ID]) {
			rows = append(rows, Row{Label: "Status", Value: SkippedStatus}, spacer)
			continue
		}
		for _, f := range sec.Fields {
			if f.Type == intake.FieldGroup {
				rows = append(rows, groupRows(f, answers[f.ID])...)
				continue
			}
			rows = append(rows, Row{Label: f.Label, Value: FormatValue(f, answers[f.ID])})
		}
		if files := answers.Files(sec.ID); len(files) > 0 {
			names := make([]string, len(files))
			for i, file := range files {
				names[i] = file.Name
			}
			rows = append(rows, Row{Label: "Documents", Value: strings.Join(names, ", ")})
		}
		rows = append(rows, spacer)
	}
	return rows
}

func answeredNo(v any) bool {
	switch t := v.(type) {
	case bool:
		return !t
	case string:
		return t == "false"
	}
	return false
}

// groupRows writes one line per repeatable-group entry, sub-values joined in
// declared column order.
func groupRows(f intake.FieldDefinition, v any) []Row {
	var entries []map[string]any
	switch t := v.(type) {
	case []map[string]any:
		entries = t
	case []any:
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				entries = append(entries, m)
			}
		}
	}
	if len(entries) == 0 {
		return []Row{{Label: f.Label}}
	}
	out := make([]Row, 0, len(entries))
	for i, entry := range entries {
		parts := make([]string, 0, len(f.Fields))
		for _, sub := range f.Fields {
			if s := FormatValue(sub, entry[sub.ID]); s != "" {
				parts = append(parts, sub.Label+": "+s)
			}
		}
		out = append(out, Row{Label: fmt.Sprintf("%s #%d", f.Label, i+1), Value: strings.Join(parts, "; ")})
	}
	return out
}

// FormatValue renders one answer for display: currency as $1,234.56,
// booleans as Yes/No, missing values as "".
func FormatValue(f intake.FieldDefinition, v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case bool:
		if t {
			return "Yes"
		}
		return "No"
	case string:
		if f.Type == intake.FieldCurrency && t != "" {
			if n, err := strconv.ParseFloat(t, 64); err == nil {
				return Currency(n)
			}
		}
		return t
	case float64:
		if f.Type == intake.FieldCurrency {
			return Currency(t)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		if f.Type == intake.FieldCurrency {
			return Currency(float64(t))
		}
		return strconv.Itoa(t)
	case int64:
		if f.Type == intake.FieldCurrency {
			return Currency(float64(t))
		}
		return strconv.FormatInt(t, 10)
	}
	return fmt.Sprint(v)
}

// Currency formats n as US dollars with thousands separators.
func Currency(n float64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	n = math.Round(n*100) / 100
	return sign + "$" + printer.Sprintf("%.2f", n)
}

// FileName builds "<client_name>_intake.<ext>".
func FileName(clientName string, f Format) string {
	name := strings.Join(strings.Fields(clientName), "_")
	if name == "" {
		name = "client"
	}
	return name + "_intake." + string(f)
}

func displayTime(ts, layout string) string {
	if ts == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.UTC().Format(layout)
}
