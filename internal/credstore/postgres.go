package credstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/storefront-session/internal/domain"
)

type postgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgres stores pairs in the credential_pairs table (see migrations/).
func NewPostgres(pool *pgxpool.Pool) (Backend, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres pool required")
	}
	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Load(ctx context.Context, key string) (domain.CredentialPair, error) {
	var (
		pair    domain.CredentialPair
		refresh *string
	)
	err := b.pool.QueryRow(ctx,
		`SELECT access_token, refresh_token FROM credential_pairs WHERE key = $1`, key,
	).Scan(&pair.AccessToken, &refresh)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CredentialPair{}, ErrNotFound
		}
		return domain.CredentialPair{}, err
	}
	if refresh != nil {
		pair.RefreshToken = *refresh
	}
	return pair, nil
}

func (b *postgresBackend) Save(ctx context.Context, key string, pair domain.CredentialPair) error {
	var refresh *string
	if pair.RefreshToken != "" {
		refresh = &pair.RefreshToken
	}
	_, err := b.pool.Exec(ctx, `
		INSERT INTO credential_pairs (key, access_token, refresh_token, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE
		SET access_token = EXCLUDED.access_token,
		    refresh_token = EXCLUDED.refresh_token,
		    updated_at = NOW()`,
		key, pair.AccessToken, refresh)
	return err
}

func (b *postgresBackend) Delete(ctx context.Context, key string) error {
	_, err := b.pool.Exec(ctx, `DELETE FROM credential_pairs WHERE key = $1`, key)
	return err
}

func (b *postgresBackend) CompareAndSwap(ctx context.Context, key, expectedAccess string, next domain.CredentialPair) (bool, error) {
	if next.Empty() {
		tag, err := b.pool.Exec(ctx,
			`DELETE FROM credential_pairs WHERE key = $1 AND access_token = $2`, key, expectedAccess)
		if err != nil {
			return false, err
		}
		return tag.RowsAffected() == 1, nil
	}
	var refresh *string
	if next.RefreshToken != "" {
		refresh = &next.RefreshToken
	}
	tag, err := b.pool.Exec(ctx, `
		UPDATE credential_pairs
		SET access_token = $3, refresh_token = $4, updated_at = NOW()
		WHERE key = $1 AND access_token = $2`,
		key, expectedAccess, next.AccessToken, refresh)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
