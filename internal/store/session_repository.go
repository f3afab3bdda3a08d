/**
 * @description
 * PostgreSQL data access for conversation sessions and their messages.
 * Messages are append-only; session aggregates are written by the service
 * layer through UpdateSessionAggregates.
 */
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/therapai/backend/internal/domain"
)

// CreateSession inserts a new conversation container.
func (r *PostgresRepository) CreateSession(ctx context.Context, session *domain.Session) (*domain.Session, error) {
	query := `
        INSERT INTO sessions (user_id, session_type)
        VALUES ($1, $2)
        RETURNING id, user_id, session_type, start_time, end_time, message_count, total_words, avg_sentiment, sentiment_count, created_at
    `
	var out domain.Session
	err := r.db.QueryRow(ctx, query, session.UserID, session.SessionType).Scan(
		&out.ID, &out.UserID, &out.SessionType, &out.StartTime, &out.EndTime,
		&out.MessageCount, &out.TotalWords, &out.AvgSentiment, &out.SentimentCount, &out.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FindSessionByID retrieves one session.
func (r *PostgresRepository) FindSessionByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	query := `
        SELECT id, user_id, session_type, start_time, end_time, message_count, total_words, avg_sentiment, sentiment_count, created_at
        FROM sessions
        WHERE id = $1
    `
	var out domain.Session
	err := r.db.QueryRow(ctx, query, sessionID).Scan(
		&out.ID, &out.UserID, &out.SessionType, &out.StartTime, &out.EndTime,
		&out.MessageCount, &out.TotalWords, &out.AvgSentiment, &out.SentimentCount, &out.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &out, nil
}

// ListSessionsByUser returns the most recent sessions for a user.
func (r *PostgresRepository) ListSessionsByUser(ctx context.Context, userID string, limit int) ([]domain.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
        SELECT id, user_id, session_type, start_time, end_time, message_count, total_words, avg_sentiment, sentiment_count, created_at
        FROM sessions
        WHERE user_id = $1
        ORDER BY start_time DESC
        LIMIT $2
    `
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []domain.Session{}
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.SessionType, &s.StartTime, &s.EndTime,
			&s.MessageCount, &s.TotalWords, &s.AvgSentiment, &s.SentimentCount, &s.CreatedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// CloseSession sets end_time on an open session and returns the final row.
func (r *PostgresRepository) CloseSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	query := `
        UPDATE sessions
        SET end_time = COALESCE(end_time, NOW())
        WHERE id = $1
        RETURNING id, user_id, session_type, start_time, end_time, message_count, total_words, avg_sentiment, sentiment_count, created_at
    `
	var out domain.Session
	err := r.db.QueryRow(ctx, query, sessionID).Scan(
		&out.ID, &out.UserID, &out.SessionType, &out.StartTime, &out.EndTime,
		&out.MessageCount, &out.TotalWords, &out.AvgSentiment, &out.SentimentCount, &out.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &out, nil
}

// AppendMessage inserts a message into its session.
func (r *PostgresRepository) AppendMessage(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	query := `
        INSERT INTO messages (session_id, content, is_user, audio_url, video_url, word_count, sentiment)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, session_id, content, is_user, audio_url, video_url, word_count, sentiment, created_at
    `
	var out domain.Message
	err := r.db.QueryRow(ctx, query,
		msg.SessionID, msg.Content, msg.IsUser, msg.AudioURL, msg.VideoURL, msg.WordCount, msg.Sentiment,
	).Scan(
		&out.ID, &out.SessionID, &out.Content, &out.IsUser, &out.AudioURL, &out.VideoURL,
		&out.WordCount, &out.Sentiment, &out.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMessagesBySession returns the most recent limit messages of a session,
// ordered oldest first. Callers that window conversation history rely on the
// newest turns being the ones kept.
func (r *PostgresRepository) ListMessagesBySession(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	query := `
        SELECT id, session_id, content, is_user, audio_url, video_url, word_count, sentiment, created_at
        FROM (
            SELECT id, session_id, content, is_user, audio_url, video_url, word_count, sentiment, created_at
            FROM messages
            WHERE session_id = $1
            ORDER BY created_at DESC
            LIMIT $2
        ) latest
        ORDER BY created_at
    `
	rows, err := r.db.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(
			&m.ID, &m.SessionID, &m.Content, &m.IsUser, &m.AudioURL, &m.VideoURL,
			&m.WordCount, &m.Sentiment, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// AttachMessageAudioURL backfills the audio URL of a stored message after
// voice synthesis completes.
func (r *PostgresRepository) AttachMessageAudioURL(ctx context.Context, messageID, audioURL string) error {
	tag, err := r.db.Exec(ctx, `UPDATE messages SET audio_url = $2 WHERE id = $1`, messageID, audioURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("message not found")
	}
	return nil
}

// UpdateSessionAggregates persists the incrementally maintained counters.
func (r *PostgresRepository) UpdateSessionAggregates(ctx context.Context, sessionID string, messageCount, totalWords, sentimentCount int, avgSentiment float64) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE sessions
        SET message_count = $2, total_words = $3, sentiment_count = $4, avg_sentiment = $5
        WHERE id = $1
    `, sessionID, messageCount, totalWords, sentimentCount, avgSentiment)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}
