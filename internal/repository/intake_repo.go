package repository

import (
	"context"

	"github.com/stevi10623-crypto/deductly-intake/internal/db"
	"github.com/stevi10623-crypto/deductly-intake/internal/intake"
	"github.com/stevi10623-crypto/deductly-intake/internal/models"
	"github.com/stevi10623-crypto/deductly-intake/internal/oxidb"
)

const IntakesCollection = "_intake_intakes"

type IntakeRepo struct {
	pool *db.Pool
}

func NewIntakeRepo(pool *db.Pool) *IntakeRepo {
	return &IntakeRepo{pool: pool}
}

func (r *IntakeRepo) EnsureIndexes(ctx context.Context) error {
	c := r.pool.Get()
	if err := ignoreExists(c.CreateUniqueIndex(ctx, IntakesCollection, "token")); err != nil {
		return err
	}
	return ignoreExists(c.CreateIndex(ctx, IntakesCollection, "clientId"))
}

func (r *IntakeRepo) Create(ctx context.Context, in *models.Intake) error {
	newID(&in.ID)
	if in.Data == nil {
		in.Data = intake.AnswerSet{}
	}
	doc, err := toDoc(in)
	if err != nil {
		return err
	}
	if _, err := r.pool.Get().Insert(ctx, IntakesCollection, doc); err != nil {
		if oxidb.IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *IntakeRepo) FindByToken(ctx context.Context, token string) (*models.Intake, error) {
	return r.findOne(ctx, map[string]any{"token": token})
}

func (r *IntakeRepo) FindByClientID(ctx context.Context, clientID string) (*models.Intake, error) {
	return r.findOne(ctx, map[string]any{"clientId": clientID})
}

func (r *IntakeRepo) findOne(ctx context.Context, query map[string]any) (*models.Intake, error) {
	doc, err := r.pool.Get().FindOne(ctx, IntakesCollection, query)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	return fromDoc[models.Intake](doc)
}

func (r *IntakeRepo) SaveAnswers(ctx context.Context, token string, data intake.AnswerSet, version int64, updatedAt string) error {
	c := r.pool.Get()
	n, err := c.UpdateOne(ctx, IntakesCollection,
		map[string]any{"$and": []any{
			map[string]any{"token": token},
			map[string]any{"version": map[string]any{"$lt": version}},
		}},
		map[string]any{"$set": map[string]any{
			"data":      data,
			"version":   version,
			"updatedAt": updatedAt,
		}},
	)
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.FindByToken(ctx, token); err != nil {
			return err
		}
		return ErrStaleVersion
	}
	_, err = c.UpdateOne(ctx, IntakesCollection,
		map[string]any{"$and": []any{
			map[string]any{"token": token},
			map[string]any{"status": string(models.StatusNotStarted)},
		}},
		map[string]any{"$set": map[string]any{"status": string(models.StatusInProgress)}},
	)
	return err
}

func (r *IntakeRepo) SetStatus(ctx context.Context, token string, status models.IntakeStatus, submittedAt, updatedAt string) error {
	set := map[string]any{"status": string(status), "updatedAt": updatedAt}
	if submittedAt != "" {
		set["submittedAt"] = submittedAt
	}
	n, err := r.pool.Get().UpdateOne(ctx, IntakesCollection,
		map[string]any{"token": token},
		map[string]any{"$set": set},
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *IntakeRepo) DeleteByClientID(ctx context.Context, clientID string) error {
	_, err := r.pool.Get().Delete(ctx, IntakesCollection, map[string]any{"clientId": clientID})
	return err
}
