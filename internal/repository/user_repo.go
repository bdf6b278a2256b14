package repository

import (
	"context"
	"fmt"

	"github.com/stevi10623-crypto/deductly-intake/internal/db"
	"github.com/stevi10623-crypto/deductly-intake/internal/models"
	"github.com/stevi10623-crypto/deductly-intake/internal/oxidb"
)

const UsersCollection = "_intake_users"

type UserRepo struct {
	pool *db.Pool
}

func NewUserRepo(pool *db.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) EnsureIndexes(ctx context.Context) error {
	c := r.pool.Get()
	if err := ignoreExists(c.CreateUniqueIndex(ctx, UsersCollection, "email")); err != nil {
		return err
	}
	return ignoreExists(c.CreateUniqueIndex(ctx, UsersCollection, "id"))
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, map[string]any{"email": email})
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, map[string]any{"id": id})
}

func (r *UserRepo) findOne(ctx context.Context, query map[string]any) (*models.User, error) {
	c := r.pool.Get()
	doc, err := c.FindOne(ctx, UsersCollection, query)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	return fromDoc[models.User](doc)
}

func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	newID(&user.ID)
	doc, err := toDoc(user)
	if err != nil {
		return err
	}
	c := r.pool.Get()
	if _, err := c.Insert(ctx, UsersCollection, doc); err != nil {
		if oxidb.IsDuplicate(err) {
			return fmt.Errorf("user %s: %w", user.Email, ErrDuplicate)
		}
		return err
	}
	return nil
}

func (r *UserRepo) List(ctx context.Context) ([]models.User, error) {
	docs, err := r.pool.Get().Find(ctx, UsersCollection, map[string]any{}, &oxidb.FindOptions{
		Sort: map[string]any{"name": 1},
	})
	if err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(docs))
	for _, d := range docs {
		u, err := fromDoc[models.User](d)
		if err != nil {
			continue
		}
		users = append(users, *u)
	}
	return users, nil
}

func (r *UserRepo) Update(ctx context.Context, user *models.User) error {
	n, err := r.pool.Get().UpdateOne(ctx, UsersCollection,
		map[string]any{"id": user.ID},
		map[string]any{"$set": map[string]any{"name": user.Name, "passwordHash": user.PasswordHash}},
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	n, err := r.pool.Get().Delete(ctx, UsersCollection, map[string]any{"id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func ignoreExists(err error) error {
	if oxidb.IsExists(err) {
		return nil
	}
	return err
}
