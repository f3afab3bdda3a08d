/**
 * @description
 * This file implements the PostgreSQL-backed Repository for users and
 * subscriptions. All writes that mirror external state (auth provider users,
 * billing provider subscriptions) are upserts so replays converge instead of
 * double-applying.
 */
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/therapai/backend/internal/domain"
)

// PostgresRepository is the pgx implementation of Repository.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new repository backed by the given pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the tables this service needs if they do not exist.
// Safe to run at every startup.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            email TEXT NOT NULL DEFAULT '',
            full_name TEXT NOT NULL DEFAULT '',
            subscription_tier TEXT NOT NULL DEFAULT 'free',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE TABLE IF NOT EXISTS subscriptions (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            user_id TEXT NOT NULL UNIQUE,
            plan TEXT NOT NULL DEFAULT 'free',
            status TEXT NOT NULL DEFAULT 'active',
            revenuecat_id TEXT NOT NULL DEFAULT '',
            product_id TEXT NOT NULL DEFAULT '',
            current_period_start TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            current_period_end TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE TABLE IF NOT EXISTS sessions (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            user_id TEXT NOT NULL,
            session_type TEXT NOT NULL,
            start_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            end_time TIMESTAMPTZ,
            message_count INT NOT NULL DEFAULT 0,
            total_words INT NOT NULL DEFAULT 0,
            avg_sentiment DOUBLE PRECISION NOT NULL DEFAULT 0,
            sentiment_count INT NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions (user_id, start_time DESC);
        CREATE TABLE IF NOT EXISTS messages (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            session_id UUID NOT NULL REFERENCES sessions(id),
            content TEXT NOT NULL,
            is_user BOOLEAN NOT NULL,
            audio_url TEXT,
            video_url TEXT,
            word_count INT NOT NULL DEFAULT 0,
            sentiment DOUBLE PRECISION,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE INDEX IF NOT EXISTS idx_messages_session ON messages (session_id, created_at);
        CREATE TABLE IF NOT EXISTS community_posts (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            user_id TEXT NOT NULL,
            display_name TEXT NOT NULL,
            content TEXT NOT NULL,
            heart_count INT NOT NULL DEFAULT 0,
            support_count INT NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE TABLE IF NOT EXISTS post_reactions (
            post_id UUID NOT NULL REFERENCES community_posts(id),
            user_id TEXT NOT NULL,
            kind TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (post_id, user_id)
        );
    `)
	return err
}

// UpsertUser inserts or refreshes the local mirror of an auth-provider user.
// The subscription tier is preserved on conflict; it is owned by the billing
// flow, not the auth flow.
func (r *PostgresRepository) UpsertUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	tier := user.SubscriptionTier
	if tier == "" {
		tier = domain.TierFree
	}
	query := `
        INSERT INTO users (id, email, full_name, subscription_tier)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (id) DO UPDATE SET
            email = EXCLUDED.email,
            updated_at = NOW()
        RETURNING id, email, full_name, subscription_tier, created_at, updated_at
    `
	var out domain.User
	err := r.db.QueryRow(ctx, query, user.ID, user.Email, user.FullName, tier).Scan(
		&out.ID, &out.Email, &out.FullName, &out.SubscriptionTier, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FindUserByID retrieves a user row by its id.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID string) (*domain.User, error) {
	query := `
        SELECT id, email, full_name, subscription_tier, created_at, updated_at
        FROM users
        WHERE id = $1
    `
	var out domain.User
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&out.ID, &out.Email, &out.FullName, &out.SubscriptionTier, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &out, nil
}

// UpdateUserProfile updates the editable profile fields of a user.
func (r *PostgresRepository) UpdateUserProfile(ctx context.Context, userID, fullName string) (*domain.User, error) {
	query := `
        UPDATE users
        SET full_name = $2, updated_at = NOW()
        WHERE id = $1
        RETURNING id, email, full_name, subscription_tier, created_at, updated_at
    `
	var out domain.User
	err := r.db.QueryRow(ctx, query, userID, fullName).Scan(
		&out.ID, &out.Email, &out.FullName, &out.SubscriptionTier, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &out, nil
}

// SetUserTier mirrors the subscription plan onto the user row for display.
func (r *PostgresRepository) SetUserTier(ctx context.Context, userID string, tier domain.Tier) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET subscription_tier = $2, updated_at = NOW() WHERE id = $1`, userID, tier)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetSubscriptionByUserID retrieves the subscription row for a user.
func (r *PostgresRepository) GetSubscriptionByUserID(ctx context.Context, userID string) (*domain.Subscription, error) {
	query := `
        SELECT id, user_id, plan, status, revenuecat_id, product_id,
               current_period_start, current_period_end, updated_at
        FROM subscriptions
        WHERE user_id = $1
    `
	var sub domain.Subscription
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&sub.ID, &sub.UserID, &sub.Plan, &sub.Status, &sub.RevenueCatID, &sub.ProductID,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// UpsertSubscription creates or replaces the single subscription row for a
// user. Webhook replays converge to the same row (last write wins).
func (r *PostgresRepository) UpsertSubscription(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, error) {
	start := sub.CurrentPeriodStart
	if start.IsZero() {
		start = time.Now()
	}
	end := sub.CurrentPeriodEnd
	if end.IsZero() {
		end = start
	}
	query := `
        INSERT INTO subscriptions (user_id, plan, status, revenuecat_id, product_id, current_period_start, current_period_end, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
        ON CONFLICT (user_id) DO UPDATE SET
            plan = EXCLUDED.plan,
            status = EXCLUDED.status,
            revenuecat_id = EXCLUDED.revenuecat_id,
            product_id = EXCLUDED.product_id,
            current_period_start = EXCLUDED.current_period_start,
            current_period_end = EXCLUDED.current_period_end,
            updated_at = NOW()
        RETURNING id, user_id, plan, status, revenuecat_id, product_id,
                  current_period_start, current_period_end, updated_at
    `
	var out domain.Subscription
	err := r.db.QueryRow(ctx, query,
		sub.UserID, sub.Plan, sub.Status, sub.RevenueCatID, sub.ProductID, start, end,
	).Scan(
		&out.ID, &out.UserID, &out.Plan, &out.Status, &out.RevenueCatID, &out.ProductID,
		&out.CurrentPeriodStart, &out.CurrentPeriodEnd, &out.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
