package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/dkuznetsov/authsvc/internal/domain/account"
	"github.com/dkuznetsov/authsvc/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrEmailTaken      = errors.New("email already taken")
)

const accountColumns = `id, name, email, password_hash, role, created_at, updated_at`

type AccountsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewAccountsRepo(pool *pgxpool.Pool, prom *observability.Prom) *AccountsRepo {
	return &AccountsRepo{pool: pool, prom: prom}
}

// Create inserts a new account row. The email uniqueness constraint is the
// arbiter for concurrent registrations; a violation surfaces as ErrEmailTaken.
func (r *AccountsRepo) Create(ctx context.Context, name, email, passwordHash string, role account.Role) (account.Account, error) {
	now := time.Now().UTC()

	a := account.Account{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := r.prom.ObserveDB("accounts.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO accounts (id, name, email, password_hash, role, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			a.ID, a.Name, a.Email, a.PasswordHash, a.Role, a.CreatedAt, a.UpdatedAt,
		)
		return err
	})

	if err != nil {
		var pgErr *pgconn.PgError

		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return account.Account{}, ErrEmailTaken
		}

		return account.Account{}, err
	}

	return a, nil
}

func (r *AccountsRepo) GetByEmail(ctx context.Context, email string) (account.Account, error) {
	var a account.Account

	err := r.prom.ObserveDB("accounts.get_by_email", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT `+accountColumns+` FROM accounts WHERE email = $1`,
			email,
		).Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Role, &a.CreatedAt, &a.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.Account{}, ErrAccountNotFound
		}

		return account.Account{}, err
	}

	return a, nil
}

func (r *AccountsRepo) GetByID(ctx context.Context, id string) (account.Account, error) {
	var a account.Account

	err := r.prom.ObserveDB("accounts.get_by_id", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT `+accountColumns+` FROM accounts WHERE id = $1`,
			id,
		).Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Role, &a.CreatedAt, &a.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.Account{}, ErrAccountNotFound
		}

		return account.Account{}, err
	}

	return a, nil
}

// Delete removes an account and returns the deleted row.
func (r *AccountsRepo) Delete(ctx context.Context, id string) (account.Account, error) {
	var a account.Account

	err := r.prom.ObserveDB("accounts.delete", func() error {
		return r.pool.QueryRow(ctx,
			`DELETE FROM accounts WHERE id = $1 RETURNING `+accountColumns,
			id,
		).Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Role, &a.CreatedAt, &a.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.Account{}, ErrAccountNotFound
		}

		return account.Account{}, err
	}

	return a, nil
}

func (r *AccountsRepo) SetRole(ctx context.Context, id string, role account.Role) (account.Account, error) {
	var a account.Account

	err := r.prom.ObserveDB("accounts.set_role", func() error {
		return r.pool.QueryRow(ctx,
			`UPDATE accounts SET role = $2, updated_at = NOW() WHERE id = $1
			RETURNING `+accountColumns,
			id, role,
		).Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Role, &a.CreatedAt, &a.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.Account{}, ErrAccountNotFound
		}

		return account.Account{}, err
	}

	return a, nil
}

// List returns a page of accounts in creation order.
func (r *AccountsRepo) List(ctx context.Context, skip, take int) ([]account.Account, error) {
	var out []account.Account

	err := r.prom.ObserveDB("accounts.list", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+accountColumns+` FROM accounts
			ORDER BY created_at, id
			OFFSET $1 LIMIT $2`,
			skip, take,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			var a account.Account

			err := rows.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Role, &a.CreatedAt, &a.UpdatedAt)

			if err != nil {
				return err
			}

			out = append(out, a)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	if out == nil {
		out = []account.Account{}
	}

	return out, nil
}
