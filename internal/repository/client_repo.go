package repository

import (
	"context"

	"github.com/stevi10623-crypto/deductly-intake/internal/db"
	"github.com/stevi10623-crypto/deductly-intake/internal/models"
	"github.com/stevi10623-crypto/deductly-intake/internal/oxidb"
)

const ClientsCollection = "_intake_clients"

type ClientRepo struct {
	pool *db.Pool
}

func NewClientRepo(pool *db.Pool) *ClientRepo {
	return &ClientRepo{pool: pool}
}

func (r *ClientRepo) EnsureIndexes(ctx context.Context) error {
	c := r.pool.Get()
	if err := ignoreExists(c.CreateUniqueIndex(ctx, ClientsCollection, "id")); err != nil {
		return err
	}
	return ignoreExists(c.CreateIndex(ctx, ClientsCollection, "firmAdminId"))
}

func (r *ClientRepo) Create(ctx context.Context, client *models.Client) error {
	newID(&client.ID)
	doc, err := toDoc(client)
	if err != nil {
		return err
	}
	_, err = r.pool.Get().Insert(ctx, ClientsCollection, doc)
	return err
}

func (r *ClientRepo) FindByID(ctx context.Context, id string) (*models.Client, error) {
	doc, err := r.pool.Get().FindOne(ctx, ClientsCollection, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	return fromDoc[models.Client](doc)
}

func (r *ClientRepo) List(ctx context.Context, firmAdminID string) ([]models.Client, error) {
	query := map[string]any{}
	if firmAdminID != "" {
		query["firmAdminId"] = firmAdminID
	}
	docs, err := r.pool.Get().Find(ctx, ClientsCollection, query, &oxidb.FindOptions{
		Sort: map[string]any{"createdAt": -1},
	})
	if err != nil {
		return nil, err
	}
	clients := make([]models.Client, 0, len(docs))
	for _, d := range docs {
		cl, err := fromDoc[models.Client](d)
		if err != nil {
			continue
		}
		clients = append(clients, *cl)
	}
	return clients, nil
}

func (r *ClientRepo) Delete(ctx context.Context, id string) error {
	n, err := r.pool.Get().Delete(ctx, ClientsCollection, map[string]any{"id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
