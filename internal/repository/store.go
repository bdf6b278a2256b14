// Package repository persists clients, intakes and staff users. Every store
// exists twice: on the OxiDB document server and on a SQL database.
package repository

import (
	"context"
	"errors"

	"github.com/stevi10623-crypto/deductly-intake/internal/intake"
	"github.com/stevi10623-crypto/deductly-intake/internal/models"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicate    = errors.New("duplicate key")
	ErrStaleVersion = errors.New("stale intake version")
)

type ClientStore interface {
	Create(ctx context.Context, c *models.Client) error
	FindByID(ctx context.Context, id string) (*models.Client, error)
	// List returns clients newest first. An empty firmAdminID lists all.
	List(ctx context.Context, firmAdminID string) ([]models.Client, error)
	Delete(ctx context.Context, id string) error
}

type IntakeStore interface {
	Create(ctx context.Context, in *models.Intake) error
	FindByToken(ctx context.Context, token string) (*models.Intake, error)
	FindByClientID(ctx context.Context, clientID string) (*models.Intake, error)
	// SaveAnswers overwrites the answer set when version is newer than the
	// stored one, and moves a not_started intake to in_progress.
	SaveAnswers(ctx context.Context, token string, data intake.AnswerSet, version int64, updatedAt string) error
	SetStatus(ctx context.Context, token string, status models.IntakeStatus, submittedAt, updatedAt string) error
	DeleteByClientID(ctx context.Context, clientID string) error
}

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	// List returns every user ordered by name.
	List(ctx context.Context) ([]models.User, error)
	// Update writes the name and password hash of u.
	Update(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id string) error
}

// Store bundles the three stores of one backend.
type Store struct {
	Clients ClientStore
	Intakes IntakeStore
	Users   UserStore
}
