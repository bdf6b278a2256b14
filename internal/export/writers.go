package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/stevi10623-crypto/deductly-intake/internal/intake"
	"github.com/stevi10623-crypto/deductly-intake/internal/models"
)

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "Intake Data"

// ExportVersion is stamped into JSON exports.
const ExportVersion = "1.0"

// WriteCSV writes rows as a two-column CSV.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	for _, r := range rows {
		if err := cw.Write([]string{r.Label, r.Value}); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes rows to a single-sheet workbook with bold section headers.
func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for i, r := range rows {
		if r == spacer {
			continue
		}
		line := i + 1
		a, b := fmt.Sprintf("A%d", line), fmt.Sprintf("B%d", line)
		if err := f.SetCellValue(SheetName, a, r.Label); err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, b, r.Value); err != nil {
			return err
		}
		if r.Header {
			if err := f.SetCellStyle(SheetName, a, b, headerStyle); err != nil {
				return err
			}
		}
	}

	for i, width := range []float64{50, 80} {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return err
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// Document is the JSON export envelope.
type Document struct {
	Client DocumentClient `json:"client"`
	Intake DocumentIntake `json:"intake"`
	Meta   DocumentMeta   `json:"meta"`
}

type DocumentClient struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Status    string `json:"status"`
	UpdatedAt string `json:"updated_at"`
}

type DocumentIntake struct {
	Status  string           `json:"status"`
	TaxYear int              `json:"tax_year"`
	Token   string           `json:"token"`
	Data    intake.AnswerSet `json:"data"`
}

type DocumentMeta struct {
	ExportDate string `json:"export_date"`
	Version    string `json:"version"`
}

// NewDocument assembles the JSON export of one client's intake.
func NewDocument(c *models.Client, in *models.Intake, now time.Time) Document {
	doc := Document{
		Client: DocumentClient{ID: c.ID, Name: c.Name, Email: c.Email, UpdatedAt: c.UpdatedAt},
		Intake: DocumentIntake{Data: intake.AnswerSet{}},
		Meta:   DocumentMeta{ExportDate: now.UTC().Format(time.RFC3339), Version: ExportVersion},
	}
	if in != nil {
		doc.Client.Status = string(in.Status)
		doc.Intake.Status = string(in.Status)
		doc.Intake.TaxYear = in.TaxYear
		doc.Intake.Token = in.Token
		if in.Data != nil {
			doc.Intake.Data = in.Data
		}
	}
	return doc
}

// WriteJSON writes an indented JSON document.
func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// ClientListHeaders is the header line of the client list CSV.
var ClientListHeaders = []string{"Client Name", "Email", "Tax Year", "Status", "Intake Token", "Last Updated"}

// NoIntakeStatus marks clients without an intake in the list export.
const NoIntakeStatus = "no_intake"

// WriteClientList writes one CSV line per client.
func WriteClientList(w io.Writer, clients []models.ClientSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ClientListHeaders); err != nil {
		return err
	}
	for _, c := range clients {
		name := c.Name
		if name == "" {
			name = "Unknown Client"
		}
		taxYear := "N/A"
		if c.TaxYear != 0 {
			taxYear = fmt.Sprint(c.TaxYear)
		}
		status := string(c.Status)
		if c.IntakeToken == "" || status == "" {
			status = NoIntakeStatus
		}
		updated := c.LastUpdated
		if updated == "" {
			updated = c.CreatedAt
		}
		updated = displayTime(updated, time.DateOnly)
		if updated == "" {
			updated = "N/A"
		}
		if err := cw.Write([]string{name, c.Email, taxYear, status, c.IntakeToken, updated}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ClientListFileName builds "clients_export_YYYY-MM-DD.csv".
func ClientListFileName(now time.Time) string {
	return "clients_export_" + now.UTC().Format(time.DateOnly) + ".csv"
}
