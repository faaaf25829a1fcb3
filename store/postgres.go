package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id       SERIAL PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	password TEXT NOT NULL,
	role     TEXT NOT NULL
)`

const pgUniqueViolation = "23505"

// PostgresStore 基于postgres的存储
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "postgres connect")
	}
	if _, err := pool.Exec(ctx, createUsersTable); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "postgres create users table")
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := p.pool.QueryRow(ctx,
		`SELECT id, username, password, role FROM users WHERE username = $1`, username).
		Scan(&u.ID, &u.Username, &u.Password, &u.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "postgres select user")
	}
	return &u, nil
}

func (p *PostgresStore) CreateUser(ctx context.Context, u *User) error {
	err := p.pool.QueryRow(ctx,
		`INSERT INTO users (username, password, role) VALUES ($1, $2, $3) RETURNING id`,
		u.Username, u.Password, u.Role).Scan(&u.ID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrExists
	}
	if err != nil {
		return errors.Wrap(err, "postgres insert user")
	}
	return nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
