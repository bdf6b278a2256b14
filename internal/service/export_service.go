package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/stevi10623-crypto/deductly-intake/internal/export"
	"github.com/stevi10623-crypto/deductly-intake/internal/intake"
)

// ExportFile is a rendered download.
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

type ExportService struct {
	schema  *intake.Schema
	clients *ClientService
	now     func() time.Time
}

func NewExportService(schema *intake.Schema, clients *ClientService) *ExportService {
	return &ExportService{schema: schema, clients: clients, now: time.Now}
}

// Intake renders one client's intake in the requested format.
func (s *ExportService) Intake(ctx context.Context, actor Actor, clientID string, format export.Format) (*ExportFile, error) {
	c, it, err := s.clients.Get(ctx, actor, clientID)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	switch format {
	case export.FormatJSON:
		err = export.WriteJSON(&buf, export.NewDocument(c, it, s.now()))
	case export.FormatXLSX:
		err = export.WriteXLSX(&buf, export.Rows(s.schema, c, it))
	case export.FormatCSV:
		err = export.WriteCSV(&buf, export.Rows(s.schema, c, it))
	default:
		return nil, invalidf("unsupported export format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", format, err)
	}
	return &ExportFile{
		Name:        export.FileName(c.Name, format),
		ContentType: format.ContentType(),
		Data:        buf.Bytes(),
	}, nil
}

// ClientList renders the actor's client list as CSV.
func (s *ExportService) ClientList(ctx context.Context, actor Actor) (*ExportFile, error) {
	list, err := s.clients.List(ctx, actor)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := export.WriteClientList(&buf, list); err != nil {
		return nil, fmt.Errorf("export clients: %w", err)
	}
	return &ExportFile{
		Name:        export.ClientListFileName(s.now()),
		ContentType: export.FormatCSV.ContentType(),
		Data:        buf.Bytes(),
	}, nil
}
