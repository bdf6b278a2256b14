package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevi10623-crypto/deductly-intake/internal/intake"
	"github.com/stevi10623-crypto/deductly-intake/internal/models"
)

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenSQL(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "intake.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db.Store()
}

func TestRebind(t *testing.T) {
	pg := &SQLDB{postgres: true}
	assert.Equal(t, "a = $1 AND b < $2", pg.rebind("a = ? AND b < ?"))
	lite := &SQLDB{}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestOpenSQLUnknownDriver(t *testing.T) {
	_, err := OpenSQL(context.Background(), "mysql", "")
	assert.ErrorContains(t, err, "unknown sql driver")
}

func TestSQLUsers(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	u := &models.User{Email: "ann@firm.test", PasswordHash: "h", Name: "Ann", Role: models.RoleAdmin, CreatedAt: Now()}
	require.NoError(t, s.Users.Create(ctx, u))
	require.NotEmpty(t, u.ID)

	got, err := s.Users.FindByEmail(ctx, "ann@firm.test")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	got, err = s.Users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.Name)

	_, err = s.Users.FindByEmail(ctx, "nobody@firm.test")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.Users.Create(ctx, &models.User{Email: "ann@firm.test", PasswordHash: "x", Name: "Dup", Role: models.RoleStaff, CreatedAt: Now()})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestSQLUserAdministration(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	zed := &models.User{Email: "zed@firm.test", PasswordHash: "h1", Name: "Zed", Role: models.RoleStaff, CreatedAt: Now()}
	amy := &models.User{Email: "amy@firm.test", PasswordHash: "h2", Name: "Amy", Role: models.RoleStaff, CreatedAt: Now()}
	require.NoError(t, s.Users.Create(ctx, zed))
	require.NoError(t, s.Users.Create(ctx, amy))

	list, err := s.Users.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []string{"Amy", "Zed"}, []string{list[0].Name, list[1].Name})

	zed.Name, zed.PasswordHash = "Zed Z", "h3"
	require.NoError(t, s.Users.Update(ctx, zed))
	got, err := s.Users.FindByID(ctx, zed.ID)
	require.NoError(t, err)
	assert.Equal(t, "Zed Z", got.Name)
	assert.Equal(t, "h3", got.PasswordHash)

	require.NoError(t, s.Users.Delete(ctx, amy.ID))
	assert.ErrorIs(t, s.Users.Delete(ctx, amy.ID), ErrNotFound)
	assert.ErrorIs(t, s.Users.Update(ctx, amy), ErrNotFound)
}

func TestSQLClients(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	a := &models.Client{FirmAdminID: "u1", Name: "A", Email: "a@x.test", TaxYear: 2024, CreatedAt: "2025-01-01T00:00:00Z", UpdatedAt: "2025-01-01T00:00:00Z"}
	b := &models.Client{FirmAdminID: "u2", Name: "B", Email: "b@x.test", TaxYear: 2024, CreatedAt: "2025-01-02T00:00:00Z", UpdatedAt: "2025-01-02T00:00:00Z"}
	require.NoError(t, s.Clients.Create(ctx, a))
	require.NoError(t, s.Clients.Create(ctx, b))

	all, err := s.Clients.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "B", all[0].Name)

	mine, err := s.Clients.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, a.ID, mine[0].ID)

	require.NoError(t, s.Clients.Delete(ctx, a.ID))
	_, err = s.Clients.FindByID(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Clients.Delete(ctx, a.ID), ErrNotFound)
}

func TestSQLIntakeVersioning(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	in := &models.Intake{ClientID: "c1", Token: "tok", TaxYear: 2024, Status: models.StatusNotStarted, CreatedAt: Now(), UpdatedAt: Now()}
	require.NoError(t, s.Intakes.Create(ctx, in))

	answers := intake.AnswerSet{
		"firstName": "Ada",
		"income_files": []intake.UploadedFile{{Name: "w2.pdf", Path: "tok/income/1-w2.pdf", Size: 3}},
	}
	require.NoError(t, s.Intakes.SaveAnswers(ctx, "tok", answers, 2, Now()))

	got, err := s.Intakes.FindByToken(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, "Ada", got.Data["firstName"])
	assert.Equal(t, answers.Files("income"), got.Data.Files("income"))

	err = s.Intakes.SaveAnswers(ctx, "tok", intake.AnswerSet{"firstName": "Old"}, 1, Now())
	assert.ErrorIs(t, err, ErrStaleVersion)
	err = s.Intakes.SaveAnswers(ctx, "tok", intake.AnswerSet{}, 2, Now())
	assert.ErrorIs(t, err, ErrStaleVersion)
	err = s.Intakes.SaveAnswers(ctx, "missing", intake.AnswerSet{}, 9, Now())
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Intakes.SetStatus(ctx, "tok", models.StatusSubmitted, "2025-03-01T00:00:00Z", Now()))
	require.NoError(t, s.Intakes.SaveAnswers(ctx, "tok", intake.AnswerSet{"firstName": "Late"}, 3, Now()))

	got, err = s.Intakes.FindByClientID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, got.Status)
	assert.Equal(t, "2025-03-01T00:00:00Z", got.SubmittedAt)
	assert.Equal(t, "Late", got.Data["firstName"])

	require.NoError(t, s.Intakes.DeleteByClientID(ctx, "c1"))
	_, err = s.Intakes.FindByToken(ctx, "tok")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Intakes.SetStatus(ctx, "tok", models.StatusReviewed, "", Now()), ErrNotFound)
}

func TestSQLIntakeDuplicateToken(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.Intakes.Create(ctx, &models.Intake{ClientID: "c1", Token: "same", Status: models.StatusNotStarted}))
	err := s.Intakes.Create(ctx, &models.Intake{ClientID: "c2", Token: "same", Status: models.StatusNotStarted})
	assert.ErrorIs(t, err, ErrDuplicate)
}
