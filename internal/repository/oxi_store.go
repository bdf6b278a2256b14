package repository

import (
	"context"
	"fmt"

	"github.com/stevi10623-crypto/deductly-intake/internal/db"
)

// NewOxiStore builds the OxiDB-backed stores and makes sure their indexes exist.
func NewOxiStore(ctx context.Context, pool *db.Pool) (*Store, error) {
	users := NewUserRepo(pool)
	clients := NewClientRepo(pool)
	intakes := NewIntakeRepo(pool)
	for name, ensure := range map[string]func(context.Context) error{
		UsersCollection:   users.EnsureIndexes,
		ClientsCollection: clients.EnsureIndexes,
		IntakesCollection: intakes.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			return nil, fmt.Errorf("ensure indexes on %s: %w", name, err)
		}
	}
	return &Store{Clients: clients, Intakes: intakes, Users: users}, nil
}
