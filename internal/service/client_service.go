package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stevi10623-crypto/deductly-intake/internal/models"
	"github.com/stevi10623-crypto/deductly-intake/internal/repository"
	"github.com/stevi10623-crypto/deductly-intake/internal/storage"
)

// SessionForgetter drops cached wizard state for an intake token.
type SessionForgetter interface {
	Forget(token string)
}

// ClientService manages the firm's clients and their intakes. Non-admin
// staff only see the clients they created.
type ClientService struct {
	store    *repository.Store
	files    storage.FileStore
	sessions SessionForgetter
	log      *zap.Logger
	now      func() time.Time
}

func NewClientService(store *repository.Store, files storage.FileStore, sessions SessionForgetter, log *zap.Logger) *ClientService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ClientService{store: store, files: files, sessions: sessions, log: log, now: time.Now}
}

// CreateClientInput is the payload of a new client.
type CreateClientInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	TaxYear int    `json:"taxYear"`
}

// Create stores a client and opens its intake with a fresh access token.
func (s *ClientService) Create(ctx context.Context, actor Actor, in CreateClientInput) (*models.ClientSummary, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalidf("name is required")
	}
	email := normalizeEmail(in.Email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, invalidf("invalid email %q", in.Email)
		}
	}
	year := in.TaxYear
	if year == 0 {
		year = s.now().Year()
	}
	if year < 1900 || year > 2200 {
		return nil, invalidf("invalid tax year %d", in.TaxYear)
	}

	now := s.now().UTC().Format(time.RFC3339)
	c := &models.Client{
		FirmAdminID: actor.UserID,
		Name:        name,
		Email:       email,
		Phone:       strings.TrimSpace(in.Phone),
		TaxYear:     year,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Clients.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	it := &models.Intake{
		ClientID:  c.ID,
		Token:     uuid.NewString(),
		TaxYear:   year,
		Status:    models.StatusNotStarted,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Intakes.Create(ctx, it); err != nil {
		if derr := s.store.Clients.Delete(ctx, c.ID); derr != nil {
			s.log.Warn("orphaned client after intake create failure", zap.String("client_id", c.ID), zap.Error(derr))
		}
		return nil, fmt.Errorf("create intake: %w", err)
	}
	s.log.Info("client created", zap.String("client_id", c.ID), zap.String("by", actor.UserID))
	return summarize(c, it), nil
}

// List returns the actor's clients, newest first, with their intake state.
func (s *ClientService) List(ctx context.Context, actor Actor) ([]models.ClientSummary, error) {
	owner := actor.UserID
	if actor.IsAdmin() {
		owner = ""
	}
	clients, err := s.store.Clients.List(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	out := make([]models.ClientSummary, 0, len(clients))
	for i := range clients {
		it, err := s.store.Intakes.FindByClientID(ctx, clients[i].ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("find intake: %w", err)
		}
		out = append(out, *summarize(&clients[i], it))
	}
	return out, nil
}

// Get returns one client with its intake. The intake is nil if missing.
func (s *ClientService) Get(ctx context.Context, actor Actor, clientID string) (*models.Client, *models.Intake, error) {
	c, err := s.authorize(ctx, actor, clientID)
	if err != nil {
		return nil, nil, err
	}
	it, err := s.store.Intakes.FindByClientID(ctx, c.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return c, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("find intake: %w", err)
	}
	return c, it, nil
}

// Delete removes a client, its intake and its stored documents.
func (s *ClientService) Delete(ctx context.Context, actor Actor, clientID string) error {
	c, it, err := s.Get(ctx, actor, clientID)
	if err != nil {
		return err
	}
	if it != nil {
		if s.sessions != nil {
			s.sessions.Forget(it.Token)
		}
		if err := s.deleteFiles(ctx, it.Token); err != nil {
			return err
		}
		if err := s.store.Intakes.DeleteByClientID(ctx, c.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("delete intake: %w", err)
		}
	}
	if err := s.store.Clients.Delete(ctx, c.ID); err != nil {
		return notFound(err, "client")
	}
	s.log.Info("client deleted", zap.String("client_id", c.ID), zap.String("by", actor.UserID))
	return nil
}

func (s *ClientService) deleteFiles(ctx context.Context, token string) error {
	objs, err := s.files.List(ctx, token+"/")
	if err != nil {
		return fmt.Errorf("list files: %w", err)
	}
	for _, o := range objs {
		if err := s.files.Delete(ctx, o.Key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("delete file %s: %w", o.Key, err)
		}
	}
	return nil
}

// SetStatus overwrites the intake status, e.g. to mark it reviewed.
func (s *ClientService) SetStatus(ctx context.Context, actor Actor, clientID string, status models.IntakeStatus) (*models.Intake, error) {
	if !status.Valid() {
		return nil, invalidf("unknown status %q", status)
	}
	_, it, err := s.Get(ctx, actor, clientID)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, fmt.Errorf("intake %w", ErrNotFound)
	}
	now := s.now().UTC().Format(time.RFC3339)
	submittedAt := it.SubmittedAt
	if status == models.StatusSubmitted && submittedAt == "" {
		submittedAt = now
	}
	if err := s.store.Intakes.SetStatus(ctx, it.Token, status, submittedAt, now); err != nil {
		return nil, notFound(err, "intake")
	}
	it.Status, it.SubmittedAt, it.UpdatedAt = status, submittedAt, now
	return it, nil
}

// OpenFile opens one of the client's stored documents.
func (s *ClientService) OpenFile(ctx context.Context, actor Actor, clientID, key string) (*storage.Object, error) {
	it, err := s.intakeFor(ctx, actor, clientID, key)
	if err != nil {
		return nil, err
	}
	obj, err := s.files.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("file %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open file for %s: %w", it.ClientID, err)
	}
	return obj, nil
}

// FileURL returns a short-lived direct link when the file store can sign
// URLs. ok is false otherwise.
func (s *ClientService) FileURL(ctx context.Context, actor Actor, clientID, key string, ttl time.Duration) (url string, ok bool, err error) {
	p, can := s.files.(storage.Presigner)
	if !can {
		return "", false, nil
	}
	if _, err := s.intakeFor(ctx, actor, clientID, key); err != nil {
		return "", false, err
	}
	url, err = p.PresignedURL(ctx, key, ttl)
	if err != nil {
		return "", false, fmt.Errorf("presign: %w", err)
	}
	return url, true, nil
}

func (s *ClientService) intakeFor(ctx context.Context, actor Actor, clientID, key string) (*models.Intake, error) {
	_, it, err := s.Get(ctx, actor, clientID)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, fmt.Errorf("intake %w", ErrNotFound)
	}
	if !ownsKey(it.Token, key) {
		return nil, ErrForbidden
	}
	return it, nil
}

func (s *ClientService) authorize(ctx context.Context, actor Actor, clientID string) (*models.Client, error) {
	c, err := s.store.Clients.FindByID(ctx, clientID)
	if err != nil {
		return nil, notFound(err, "client")
	}
	if !actor.IsAdmin() && c.FirmAdminID != actor.UserID {
		// hide other firms' clients
		return nil, fmt.Errorf("client %w", ErrNotFound)
	}
	return c, nil
}

func summarize(c *models.Client, it *models.Intake) *models.ClientSummary {
	sum := &models.ClientSummary{Client: *c, LastUpdated: c.UpdatedAt}
	if it != nil {
		sum.IntakeID = it.ID
		sum.IntakeToken = it.Token
		sum.Status = it.Status
		sum.TaxYear = it.TaxYear
		if it.UpdatedAt != "" {
			sum.LastUpdated = it.UpdatedAt
		}
	}
	return sum
}
