/**
 * @description
 * PostgreSQL data access for the community board. Reaction writes keep the
 * denormalized counters on the post row in step with the post_reactions table
 * inside a single transaction.
 */
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/therapai/backend/internal/domain"
)

// CreatePost inserts a new community post.
func (r *PostgresRepository) CreatePost(ctx context.Context, post *domain.CommunityPost) (*domain.CommunityPost, error) {
	query := `
        INSERT INTO community_posts (user_id, display_name, content)
        VALUES ($1, $2, $3)
        RETURNING id, user_id, display_name, content, heart_count, support_count, created_at
    `
	var out domain.CommunityPost
	err := r.db.QueryRow(ctx, query, post.UserID, post.DisplayName, post.Content).Scan(
		&out.ID, &out.UserID, &out.DisplayName, &out.Content,
		&out.HeartCount, &out.SupportCount, &out.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPosts returns recent posts, newest first, including the caller's own
// reaction when present.
func (r *PostgresRepository) ListPosts(ctx context.Context, callerUserID string, limit int) ([]domain.CommunityPost, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
        SELECT p.id, p.user_id, p.display_name, p.content, p.heart_count, p.support_count, p.created_at, pr.kind
        FROM community_posts p
        LEFT JOIN post_reactions pr ON pr.post_id = p.id AND pr.user_id = $1
        ORDER BY p.created_at DESC
        LIMIT $2
    `
	rows, err := r.db.Query(ctx, query, callerUserID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []domain.CommunityPost{}
	for rows.Next() {
		var p domain.CommunityPost
		var kind *string
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.DisplayName, &p.Content,
			&p.HeartCount, &p.SupportCount, &p.CreatedAt, &kind,
		); err != nil {
			return nil, err
		}
		if kind != nil {
			k := domain.ReactionKind(*kind)
			p.OwnReaction = &k
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// ReactToPost records or replaces the caller's reaction on a post and adjusts
// the post counters. Reacting twice with the same kind is a no-op.
func (r *PostgresRepository) ReactToPost(ctx context.Context, postID, userID string, kind domain.ReactionKind) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Checked up front so a missing post surfaces as ErrPostNotFound rather
	// than a foreign key violation on the reaction insert.
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM community_posts WHERE id = $1)`, postID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrPostNotFound
	}

	var prior *string
	err = tx.QueryRow(ctx, `SELECT kind FROM post_reactions WHERE post_id = $1 AND user_id = $2 FOR UPDATE`, postID, userID).Scan(&prior)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	if prior != nil && domain.ReactionKind(*prior) == kind {
		return tx.Commit(ctx)
	}

	if prior != nil {
		if err := adjustCounter(ctx, tx, postID, domain.ReactionKind(*prior), -1); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
        INSERT INTO post_reactions (post_id, user_id, kind)
        VALUES ($1, $2, $3)
        ON CONFLICT (post_id, user_id) DO UPDATE SET kind = EXCLUDED.kind
    `, postID, userID, kind)
	if err != nil {
		return err
	}
	if err := adjustCounter(ctx, tx, postID, kind, 1); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// RemoveReaction deletes the caller's reaction and decrements the counter.
// Removing a reaction that does not exist is a no-op.
func (r *PostgresRepository) RemoveReaction(ctx context.Context, postID, userID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var prior string
	err = tx.QueryRow(ctx, `
        DELETE FROM post_reactions WHERE post_id = $1 AND user_id = $2 RETURNING kind
    `, postID, userID).Scan(&prior)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tx.Commit(ctx)
		}
		return err
	}
	if err := adjustCounter(ctx, tx, postID, domain.ReactionKind(prior), -1); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func adjustCounter(ctx context.Context, tx pgx.Tx, postID string, kind domain.ReactionKind, delta int) error {
	column := "heart_count"
	if kind == domain.ReactionSupport {
		column = "support_count"
	}
	query := fmt.Sprintf(`UPDATE community_posts SET %s = GREATEST(%s + $2, 0) WHERE id = $1`, column, column)
	tag, err := tx.Exec(ctx, query, postID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}
