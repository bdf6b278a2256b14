package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevi10623-crypto/deductly-intake/internal/auth"
	"github.com/stevi10623-crypto/deductly-intake/internal/export"
	"github.com/stevi10623-crypto/deductly-intake/internal/intake"
	"github.com/stevi10623-crypto/deductly-intake/internal/models"
	"github.com/stevi10623-crypto/deductly-intake/internal/repository"
	"github.com/stevi10623-crypto/deductly-intake/internal/storage"
)

// memFiles is an in-memory storage.FileStore.
type memFiles struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemFiles() *memFiles {
	return &memFiles{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memFiles) Put(_ context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	m.types[key] = contentType
	return nil
}

func (m *memFiles) Get(_ context.Context, key string) (*storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.Object{Body: io.NopCloser(bytes.NewReader(data)), ContentType: m.types[key], Size: int64(len(data))}, nil
}

func (m *memFiles) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return storage.ErrNotFound
	}
	delete(m.objects, key)
	return nil
}

func (m *memFiles) List(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.ObjectInfo
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.ObjectInfo{Key: k, Size: int64(len(v))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

type forgetter struct{ tokens []string }

func (f *forgetter) Forget(token string) { f.tokens = append(f.tokens, token) }

type fixture struct {
	store    *repository.Store
	files    *memFiles
	forgot   *forgetter
	clients  *ClientService
	intakes  *IntakeService
	exports  *ExportService
	auth     *AuthService
	dash     *DashboardService
	clock    time.Time
	admin    Actor
	staff    Actor
	otherOrg Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sqldb, err := repository.OpenSQL(context.Background(), repository.DriverSQLite, filepath.Join(t.TempDir(), "svc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })

	f := &fixture{
		store:    sqldb.Store(),
		files:    newMemFiles(),
		forgot:   &forgetter{},
		clock:    time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC),
		admin:    Actor{UserID: "admin-1", Role: models.RoleAdmin},
		staff:    Actor{UserID: "staff-1", Role: models.RoleStaff},
		otherOrg: Actor{UserID: "staff-2", Role: models.RoleStaff},
	}
	tick := func() time.Time {
		f.clock = f.clock.Add(time.Second)
		return f.clock
	}
	schema := intake.DefaultSchema()
	f.clients = NewClientService(f.store, f.files, f.forgot, nil)
	f.clients.now = tick
	f.intakes = NewIntakeService(schema, f.store.Intakes, f.files, 16, nil)
	f.intakes.now = tick
	f.exports = NewExportService(schema, f.clients)
	f.exports.now = tick
	f.auth = NewAuthService(f.store.Users, "test-secret", time.Hour)
	f.dash = NewDashboardService(f.clients)
	return f
}

func TestAuthLoginAndSeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.auth.SeedAdmin(ctx, "Admin@Firm.test", "correct horse"))
	require.NoError(t, f.auth.SeedAdmin(ctx, "admin@firm.test", "other password"))

	res, err := f.auth.Login(ctx, "ADMIN@firm.test", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, res.User.Role)
	claims, err := auth.ValidateToken("test-secret", res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)

	_, err = f.auth.Login(ctx, "admin@firm.test", "other password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.auth.Login(ctx, "nobody@firm.test", "x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	me, err := f.auth.Me(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin@firm.test", me.Email)
	_, err = f.auth.Me(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuthCreateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.CreateUser(ctx, f.staff, "a@firm.test", "password1", "A", "")
	assert.ErrorIs(t, err, ErrForbidden)

	u, err := f.auth.CreateUser(ctx, f.admin, "a@firm.test", "password1", "A", "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, u.Role)

	_, err = f.auth.CreateUser(ctx, f.admin, "a@firm.test", "password2", "A2", "")
	assert.ErrorIs(t, err, ErrEmailTaken)
	_, err = f.auth.CreateUser(ctx, f.admin, "b@firm.test", "short", "B", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.auth.CreateUser(ctx, f.admin, "c@firm.test", "password1", "C", "owner")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAuthTeamManagement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.auth.SeedAdmin(ctx, "admin@firm.test", "admin-password"))
	adminRes, err := f.auth.Login(ctx, "admin@firm.test", "admin-password")
	require.NoError(t, err)
	admin := Actor{UserID: adminRes.User.ID, Role: models.RoleAdmin}

	bo, err := f.auth.CreateUser(ctx, admin, "bo@firm.test", "password1", "Bo", "")
	require.NoError(t, err)
	bob := Actor{UserID: bo.ID, Role: models.RoleStaff}

	team, err := f.auth.ListUsers(ctx, admin)
	require.NoError(t, err)
	require.Len(t, team, 2)
	assert.Equal(t, "Admin", team[0].Name)
	assert.Equal(t, "Bo", team[1].Name)
	_, err = f.auth.ListUsers(ctx, bob)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.auth.UpdateMe(ctx, bob, "  ", "", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.auth.UpdateMe(ctx, bob, "Bo B", "newpassword", "different")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.auth.UpdateMe(ctx, bob, "Bo B", "short", "short")
	assert.ErrorIs(t, err, ErrInvalidInput)

	me, err := f.auth.UpdateMe(ctx, bob, " Bo B ", "", "")
	require.NoError(t, err)
	assert.Equal(t, "Bo B", me.Name)
	_, err = f.auth.Login(ctx, "bo@firm.test", "password1")
	require.NoError(t, err)

	_, err = f.auth.UpdateMe(ctx, bob, "Bo B", "newpassword", "newpassword")
	require.NoError(t, err)
	_, err = f.auth.Login(ctx, "bo@firm.test", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.auth.Login(ctx, "bo@firm.test", "newpassword")
	require.NoError(t, err)

	assert.ErrorIs(t, f.auth.ResetPassword(ctx, bob, admin.UserID, "hijacked1"), ErrForbidden)
	assert.ErrorIs(t, f.auth.ResetPassword(ctx, admin, bo.ID, "short"), ErrInvalidInput)
	assert.ErrorIs(t, f.auth.ResetPassword(ctx, admin, "missing", "password9"), ErrNotFound)
	require.NoError(t, f.auth.ResetPassword(ctx, admin, bo.ID, "password9"))
	_, err = f.auth.Login(ctx, "bo@firm.test", "password9")
	require.NoError(t, err)

	assert.ErrorIs(t, f.auth.DeleteUser(ctx, bob, admin.UserID), ErrForbidden)
	assert.ErrorIs(t, f.auth.DeleteUser(ctx, admin, admin.UserID), ErrInvalidInput)
	require.NoError(t, f.auth.DeleteUser(ctx, admin, bo.ID))
	assert.ErrorIs(t, f.auth.DeleteUser(ctx, admin, bo.ID), ErrNotFound)
	_, err = f.auth.Login(ctx, "bo@firm.test", "password9")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestClientLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.clients.Create(ctx, f.staff, CreateClientInput{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.clients.Create(ctx, f.staff, CreateClientInput{Name: "X", Email: "not-an-email"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	ada, err := f.clients.Create(ctx, f.staff, CreateClientInput{Name: "Ada Lovelace", Email: "Ada@Example.test", TaxYear: 2024})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.test", ada.Email)
	assert.Equal(t, models.StatusNotStarted, ada.Status)
	assert.Len(t, ada.IntakeToken, 36)

	bob, err := f.clients.Create(ctx, f.otherOrg, CreateClientInput{Name: "Bob"})
	require.NoError(t, err)
	assert.Equal(t, 2025, bob.TaxYear)

	mine, err := f.clients.List(ctx, f.staff)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, ada.ID, mine[0].ID)

	all, err := f.clients.List(ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Bob", all[0].Name)

	_, _, err = f.clients.Get(ctx, f.otherOrg, ada.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	it, err := f.clients.SetStatus(ctx, f.staff, ada.ID, models.StatusReviewed)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReviewed, it.Status)
	_, err = f.clients.SetStatus(ctx, f.staff, ada.ID, "archived")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.intakes.UploadFile(ctx, ada.IntakeToken, "income", "w2.pdf", []byte("pdf"), "")
	require.NoError(t, err)
	_, err = f.intakes.UploadFile(ctx, bob.IntakeToken, "income", "w2.pdf", []byte("pdf"), "")
	require.NoError(t, err)

	require.NoError(t, f.clients.Delete(ctx, f.staff, ada.ID))
	assert.Equal(t, []string{ada.IntakeToken}, f.forgot.tokens)
	assert.Len(t, f.files.objects, 1)
	_, err = f.intakes.LoadIntake(ctx, ada.IntakeToken)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.clients.Delete(ctx, f.staff, ada.ID), ErrNotFound)
}

func TestIntakeBackend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.clients.Create(ctx, f.staff, CreateClientInput{Name: "Ada", TaxYear: 2024})
	require.NoError(t, err)
	tok := c.IntakeToken

	_, err = f.intakes.Load(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	answers := intake.AnswerSet{
		"firstName":    "Ada",
		"w2Count":      2.0,
		"income_files": []intake.UploadedFile{{Name: "w2.pdf", Path: tok + "/income/1-w2.pdf", Size: 3}},
	}
	require.NoError(t, f.intakes.Persist(ctx, tok, answers, 1))
	assert.ErrorIs(t, f.intakes.Persist(ctx, tok, intake.AnswerSet{}, 1), repository.ErrStaleVersion)
	assert.ErrorIs(t, f.intakes.Persist(ctx, "nope", intake.AnswerSet{}, 1), ErrNotFound)

	st, err := f.intakes.Load(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Version)
	assert.Equal(t, answers, st.Answers)

	in, err := f.intakes.LoadIntake(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, in.Status)

	require.NoError(t, f.intakes.Submit(ctx, tok))
	first, err := f.intakes.LoadIntake(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, first.Status)
	assert.NotEmpty(t, first.SubmittedAt)

	require.NoError(t, f.intakes.Submit(ctx, tok))
	again, err := f.intakes.LoadIntake(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, first.SubmittedAt, again.SubmittedAt)
}

func TestUploadAndDeleteFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.clients.Create(ctx, f.staff, CreateClientInput{Name: "Ada"})
	require.NoError(t, err)
	tok := c.IntakeToken

	_, err = f.intakes.UploadFile(ctx, tok, "nowhere", "a.pdf", []byte("x"), "")
	assert.ErrorIs(t, err, intake.ErrUnknownSection)
	_, err = f.intakes.UploadFile(ctx, tok, "income", "a.pdf", nil, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.intakes.UploadFile(ctx, tok, "income", "a.pdf", bytes.Repeat([]byte("x"), 17), "")
	assert.ErrorIs(t, err, ErrFileTooLarge)
	_, err = f.intakes.UploadFile(ctx, "nope", "income", "a.pdf", []byte("x"), "")
	assert.ErrorIs(t, err, ErrNotFound)

	up, err := f.intakes.UploadFile(ctx, tok, "income", `C:\docs\My W-2 (2024).pdf`, []byte("pdf"), "")
	require.NoError(t, err)
	assert.Equal(t, "My W-2 (2024).pdf", up.Name)
	assert.Equal(t, int64(3), up.Size)
	assert.True(t, strings.HasPrefix(up.Path, tok+"/income/"))
	assert.True(t, strings.HasSuffix(up.Path, "-My_W-2__2024_.pdf"))
	assert.Equal(t, "application/pdf", f.files.types[up.Path])

	sec, ok := SectionOfKey(tok, up.Path)
	require.True(t, ok)
	assert.Equal(t, "income", sec)
	_, ok = SectionOfKey("other", up.Path)
	assert.False(t, ok)

	obj, err := f.clients.OpenFile(ctx, f.staff, c.ID, up.Path)
	require.NoError(t, err)
	data, _ := io.ReadAll(obj.Body)
	obj.Body.Close()
	assert.Equal(t, "pdf", string(data))
	_, err = f.clients.OpenFile(ctx, f.staff, c.ID, "someone-else/income/1-a.pdf")
	assert.ErrorIs(t, err, ErrForbidden)
	_, ok, err = f.clients.FileURL(ctx, f.staff, c.ID, up.Path, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, f.intakes.DeleteFile(ctx, tok, "other/income/1-a.pdf"), ErrForbidden)
	assert.ErrorIs(t, f.intakes.DeleteFile(ctx, tok, tok+"/../x"), ErrForbidden)
	require.NoError(t, f.intakes.DeleteFile(ctx, tok, up.Path))
	require.NoError(t, f.intakes.DeleteFile(ctx, tok, up.Path))
	assert.Empty(t, f.files.objects)
}

func TestExports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.clients.Create(ctx, f.staff, CreateClientInput{Name: "Ada Lovelace", Email: "ada@example.test", TaxYear: 2024})
	require.NoError(t, err)
	require.NoError(t, f.intakes.Persist(ctx, c.IntakeToken, intake.AnswerSet{"firstName": "Ada", "hasDependents": false}, 1))

	csvFile, err := f.exports.Intake(ctx, f.staff, c.ID, export.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "Ada_Lovelace_intake.csv", csvFile.Name)
	records, err := csv.NewReader(bytes.NewReader(csvFile.Data)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Ada Lovelace"}, records[1])
	assert.Contains(t, records, []string{"First Name", "Ada"})
	assert.Contains(t, records, []string{"Status", export.SkippedStatus})

	x, err := f.exports.Intake(ctx, f.staff, c.ID, export.FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, "PK", string(x.Data[:2]))

	j, err := f.exports.Intake(ctx, f.staff, c.ID, export.FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, string(j.Data), `"token": "`+c.IntakeToken+`"`)

	_, err = f.exports.Intake(ctx, f.otherOrg, c.ID, export.FormatCSV)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := f.exports.ClientList(ctx, f.staff)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(list.Name, "clients_export_2025-02-01"))
	records, err = csv.NewReader(bytes.NewReader(list.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "in_progress", records[1][3])
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		_, err := f.clients.Create(ctx, f.staff, CreateClientInput{Name: "C" + string(rune('A'+i))})
		require.NoError(t, err)
	}
	c, err := f.clients.Create(ctx, f.otherOrg, CreateClientInput{Name: "Other"})
	require.NoError(t, err)
	require.NoError(t, f.intakes.Submit(ctx, c.IntakeToken))

	d, err := f.dash.Summary(ctx, f.staff)
	require.NoError(t, err)
	assert.Equal(t, 7, d.ClientCount)
	assert.Equal(t, 7, d.ByStatus[models.StatusNotStarted])
	assert.Equal(t, 0, d.ByStatus[models.StatusSubmitted])
	require.Len(t, d.Recent, recentClients)
	assert.Equal(t, "CG", d.Recent[0].Name)

	d, err = f.dash.Summary(ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, 8, d.ClientCount)
	assert.Equal(t, 1, d.ByStatus[models.StatusSubmitted])
}
