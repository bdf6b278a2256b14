package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/stevi10623-crypto/deductly-intake/internal/intake"
	"github.com/stevi10623-crypto/deductly-intake/internal/models"
)

// SQL drivers accepted by OpenSQL.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

var schemaStmts = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		name          TEXT NOT NULL,
		role          TEXT NOT NULL,
		created_at    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS clients (
		id            TEXT PRIMARY KEY,
		firm_admin_id TEXT NOT NULL,
		name          TEXT NOT NULL,
		email         TEXT NOT NULL,
		phone         TEXT NOT NULL DEFAULT '',
		tax_year      INTEGER NOT NULL,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS clients_firm_admin_idx ON clients(firm_admin_id)`,
	`CREATE TABLE IF NOT EXISTS intakes (
		id           TEXT PRIMARY KEY,
		client_id    TEXT NOT NULL,
		token        TEXT NOT NULL UNIQUE,
		tax_year     INTEGER NOT NULL,
		status       TEXT NOT NULL,
		data         TEXT NOT NULL,
		version      BIGINT NOT NULL DEFAULT 0,
		submitted_at TEXT NOT NULL DEFAULT '',
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS intakes_client_idx ON intakes(client_id)`,
}

// SQLDB wraps a database handle with the placeholder style of its driver.
type SQLDB struct {
	db       *sql.DB
	postgres bool
}

// OpenSQL opens a sqlite or postgres database and applies the schema.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLDB, error) {
	var name string
	switch driver {
	case DriverSQLite:
		name = "sqlite"
	case DriverPostgres:
		name = "pgx"
	default:
		return nil, fmt.Errorf("unknown sql driver %q", driver)
	}
	db, err := openDB(name, strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// a single writer avoids SQLITE_BUSY under concurrent autosaves
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	s := &SQLDB{db: db, postgres: driver == DriverPostgres}
	if err := s.migrate(ctx, driver); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLDB) migrate(ctx context.Context, driver string) error {
	if driver == DriverSQLite {
		for _, p := range []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA busy_timeout = 5000",
		} {
			if _, err := s.db.ExecContext(ctx, p); err != nil {
				return fmt.Errorf("sqlite pragma: %w", err)
			}
		}
	}
	for _, stmt := range schemaStmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Store returns the SQL-backed stores.
func (s *SQLDB) Store() *Store {
	return &Store{
		Clients: &SQLClientRepo{s},
		Intakes: &SQLIntakeRepo{s},
		Users:   &SQLUserRepo{s},
	}
}

func (s *SQLDB) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQLDB) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLDB) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLDB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// ─── Users ──────────────────────────────────────────────────────────────────

type SQLUserRepo struct{ s *SQLDB }

const userCols = `id, email, password_hash, name, role, created_at`

func (r *SQLUserRepo) Create(ctx context.Context, u *models.User) error {
	newID(&u.ID)
	_, err := r.s.exec(ctx, `INSERT INTO users (`+userCols+`) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.CreatedAt)
	return err
}

func (r *SQLUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.scan(r.s.queryRow(ctx, `SELECT `+userCols+` FROM users WHERE email = ?`, email))
}

func (r *SQLUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.scan(r.s.queryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id))
}

func (r *SQLUserRepo) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.s.db.QueryContext(ctx, `SELECT `+userCols+` FROM users ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *SQLUserRepo) Update(ctx context.Context, u *models.User) error {
	n, err := r.s.exec(ctx, `UPDATE users SET name = ?, password_hash = ? WHERE id = ?`, u.Name, u.PasswordHash, u.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLUserRepo) Delete(ctx context.Context, id string) error {
	n, err := r.s.exec(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLUserRepo) scan(row scanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// ─── Clients ────────────────────────────────────────────────────────────────

type SQLClientRepo struct{ s *SQLDB }

const clientCols = `id, firm_admin_id, name, email, phone, tax_year, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanClient(row scanner) (*models.Client, error) {
	var c models.Client
	err := row.Scan(&c.ID, &c.FirmAdminID, &c.Name, &c.Email, &c.Phone, &c.TaxYear, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *SQLClientRepo) Create(ctx context.Context, c *models.Client) error {
	newID(&c.ID)
	_, err := r.s.exec(ctx, `INSERT INTO clients (`+clientCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.FirmAdminID, c.Name, c.Email, c.Phone, c.TaxYear, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *SQLClientRepo) FindByID(ctx context.Context, id string) (*models.Client, error) {
	return scanClient(r.s.queryRow(ctx, `SELECT `+clientCols+` FROM clients WHERE id = ?`, id))
}

func (r *SQLClientRepo) List(ctx context.Context, firmAdminID string) ([]models.Client, error) {
	query := `SELECT ` + clientCols + ` FROM clients`
	var args []any
	if firmAdminID != "" {
		query += ` WHERE firm_admin_id = ?`
		args = append(args, firmAdminID)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.s.db.QueryContext(ctx, r.s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := []models.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, *c)
	}
	return clients, rows.Err()
}

func (r *SQLClientRepo) Delete(ctx context.Context, id string) error {
	n, err := r.s.exec(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ─── Intakes ────────────────────────────────────────────────────────────────

type SQLIntakeRepo struct{ s *SQLDB }

const intakeCols = `id, client_id, token, tax_year, status, data, version, submitted_at, created_at, updated_at`

func (r *SQLIntakeRepo) Create(ctx context.Context, in *models.Intake) error {
	newID(&in.ID)
	if in.Data == nil {
		in.Data = intake.AnswerSet{}
	}
	data, err := json.Marshal(in.Data)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = r.s.exec(ctx, `INSERT INTO intakes (`+intakeCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.ClientID, in.Token, in.TaxYear, string(in.Status), string(data), in.Version, in.SubmittedAt, in.CreatedAt, in.UpdatedAt)
	return err
}

func (r *SQLIntakeRepo) FindByToken(ctx context.Context, token string) (*models.Intake, error) {
	return r.scan(r.s.queryRow(ctx, `SELECT `+intakeCols+` FROM intakes WHERE token = ?`, token))
}

func (r *SQLIntakeRepo) FindByClientID(ctx context.Context, clientID string) (*models.Intake, error) {
	return r.scan(r.s.queryRow(ctx, `SELECT `+intakeCols+` FROM intakes WHERE client_id = ? ORDER BY created_at DESC LIMIT 1`, clientID))
}

func (r *SQLIntakeRepo) scan(row *sql.Row) (*models.Intake, error) {
	var (
		in     models.Intake
		status string
		data   string
	)
	err := row.Scan(&in.ID, &in.ClientID, &in.Token, &in.TaxYear, &status, &data, &in.Version, &in.SubmittedAt, &in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	in.Status = models.IntakeStatus(status)
	in.Data = intake.AnswerSet{}
	if err := json.Unmarshal([]byte(data), &in.Data); err != nil {
		return nil, fmt.Errorf("decode answers of intake %s: %w", in.ID, err)
	}
	return &in, nil
}

func (r *SQLIntakeRepo) SaveAnswers(ctx context.Context, token string, data intake.AnswerSet, version int64, updatedAt string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	n, err := r.s.exec(ctx, `UPDATE intakes
		SET data = ?, version = ?, updated_at = ?,
		    status = CASE WHEN status = ? THEN ? ELSE status END
		WHERE token = ? AND version < ?`,
		string(raw), version, updatedAt,
		string(models.StatusNotStarted), string(models.StatusInProgress),
		token, version)
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.FindByToken(ctx, token); err != nil {
			return err
		}
		return ErrStaleVersion
	}
	return nil
}

func (r *SQLIntakeRepo) SetStatus(ctx context.Context, token string, status models.IntakeStatus, submittedAt, updatedAt string) error {
	query := `UPDATE intakes SET status = ?, updated_at = ?`
	args := []any{string(status), updatedAt}
	if submittedAt != "" {
		query += `, submitted_at = ?`
		args = append(args, submittedAt)
	}
	query += ` WHERE token = ?`
	args = append(args, token)

	n, err := r.s.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLIntakeRepo) DeleteByClientID(ctx context.Context, clientID string) error {
	_, err := r.s.exec(ctx, `DELETE FROM intakes WHERE client_id = ?`, clientID)
	return err
}
