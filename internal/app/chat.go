/**
 * @description
 * This file contains the business logic for AI chat sessions: assembling the
 * persona prompt plus conversation history, calling the generative model, and
 * persisting both sides of the exchange with their session aggregates.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/therapai/backend/internal/domain"
	"github.com/therapai/backend/internal/store"
	"github.com/therapai/backend/pkg/geminiclient"
	"github.com/therapai/backend/pkg/rabbitmq"
)

// SystemPrompt is the fixed persona attached to every model call.
const SystemPrompt = `You are TherapAI, a compassionate AI therapist specialized in supporting startup founders. ` +
	`You understand the unique pressures of building a company: fundraising stress, co-founder conflict, ` +
	`burnout, imposter syndrome, and the loneliness of leadership. Listen actively, validate feelings, ` +
	`ask thoughtful follow-up questions, and offer practical coping strategies. Never give medical, legal, ` +
	`or financial advice. If a user expresses thoughts of self-harm, gently encourage them to contact a ` +
	`crisis line or mental health professional immediately.`

// historyWindow bounds how many stored messages are replayed to the model.
const historyWindow = 20

// SessionRepository defines the database operations the chat service needs.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *domain.Session) (*domain.Session, error)
	FindSessionByID(ctx context.Context, sessionID string) (*domain.Session, error)
	ListSessionsByUser(ctx context.Context, userID string, limit int) ([]domain.Session, error)
	CloseSession(ctx context.Context, sessionID string) (*domain.Session, error)
	AppendMessage(ctx context.Context, msg *domain.Message) (*domain.Message, error)
	// ListMessagesBySession returns the most recent limit messages, oldest first.
	ListMessagesBySession(ctx context.Context, sessionID string, limit int) ([]domain.Message, error)
	UpdateSessionAggregates(ctx context.Context, sessionID string, messageCount, totalWords, sentimentCount int, avgSentiment float64) error
}

// TextGenerator is the generative model behind the chat proxy.
type TextGenerator interface {
	Generate(ctx context.Context, systemPrompt string, history []geminiclient.Content, overrideKey string) (string, error)
}

// ChatService proxies conversations to the generative model.
type ChatService struct {
	repo      SessionRepository
	generator TextGenerator
	producer  rabbitmq.Publisher
	logger    *slog.Logger
}

// NewChatService creates a new chat service. The producer may be nil.
func NewChatService(repo SessionRepository, generator TextGenerator, producer rabbitmq.Publisher, logger *slog.Logger) *ChatService {
	return &ChatService{repo: repo, generator: generator, producer: producer, logger: logger}
}

// ChatReply is the outcome of one exchange.
type ChatReply struct {
	SessionID string         `json:"session_id"`
	Message   domain.Message `json:"message"`
}

// SendMessage appends the user's message to a session (creating the session on
// the first message), forwards the conversation to the model, and persists the
// reply. Guest users get a model reply without persistence.
func (s *ChatService) SendMessage(ctx context.Context, userID, sessionID, text string, sentiment *float64, ownKey string) (*ChatReply, error) {
	if text == "" {
		return nil, errors.New("message text is required")
	}

	if domain.IsGuestID(userID) {
		history := []geminiclient.Content{{Role: "user", Parts: []geminiclient.Part{{Text: text}}}}
		reply, err := s.generator.Generate(ctx, SystemPrompt, history, ownKey)
		if err != nil {
			return nil, err
		}
		return &ChatReply{
			Message: domain.Message{Content: reply, WordCount: domain.CountWords(reply)},
		}, nil
	}

	session, err := s.resolveSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	prior, err := s.repo.ListMessagesBySession(ctx, session.ID, historyWindow)
	if err != nil {
		return nil, err
	}

	userMsg := &domain.Message{
		SessionID: session.ID,
		Content:   text,
		IsUser:    true,
		WordCount: domain.CountWords(text),
		Sentiment: sentiment,
	}
	storedUser, err := s.repo.AppendMessage(ctx, userMsg)
	if err != nil {
		return nil, err
	}

	history := buildHistory(prior, text)
	reply, err := s.generator.Generate(ctx, SystemPrompt, history, ownKey)
	if err != nil {
		return nil, err
	}

	assistantMsg := &domain.Message{
		SessionID: session.ID,
		Content:   reply,
		IsUser:    false,
		WordCount: domain.CountWords(reply),
	}
	storedReply, err := s.repo.AppendMessage(ctx, assistantMsg)
	if err != nil {
		return nil, err
	}

	s.updateAggregates(ctx, session, storedUser, storedReply)

	return &ChatReply{SessionID: session.ID, Message: *storedReply}, nil
}

func (s *ChatService) resolveSession(ctx context.Context, userID, sessionID string) (*domain.Session, error) {
	if sessionID == "" {
		return s.repo.CreateSession(ctx, &domain.Session{UserID: userID, SessionType: domain.SessionChat})
	}
	session, err := s.repo.FindSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, store.ErrSessionNotFound
	}
	if session.EndTime != nil {
		return nil, fmt.Errorf("session %s is closed", session.ID)
	}
	return session, nil
}

// buildHistory converts stored messages into model turns, oldest first, and
// appends the new user message.
func buildHistory(prior []domain.Message, text string) []geminiclient.Content {
	history := make([]geminiclient.Content, 0, len(prior)+1)
	for _, m := range prior {
		role := "model"
		if m.IsUser {
			role = "user"
		}
		history = append(history, geminiclient.Content{
			Role:  role,
			Parts: []geminiclient.Part{{Text: m.Content}},
		})
	}
	history = append(history, geminiclient.Content{
		Role:  "user",
		Parts: []geminiclient.Part{{Text: text}},
	})
	return history
}

// updateAggregates folds the exchange into the session counters. Aggregate
// write failures are logged, not surfaced: the messages are already stored.
func (s *ChatService) updateAggregates(ctx context.Context, session *domain.Session, msgs ...*domain.Message) {
	count := session.MessageCount
	words := session.TotalWords
	avg := session.AvgSentiment
	samples := session.SentimentCount
	for _, m := range msgs {
		words += m.WordCount
		count++
		if m.Sentiment != nil {
			avg = domain.RollingAverage(avg, samples, *m.Sentiment)
			samples++
		}
	}
	if err := s.repo.UpdateSessionAggregates(ctx, session.ID, count, words, samples, avg); err != nil {
		s.logger.Warn("failed to update session aggregates", "session_id", session.ID, "error", err)
	}
}

// ListSessions returns the user's recent sessions.
func (s *ChatService) ListSessions(ctx context.Context, userID string, limit int) ([]domain.Session, error) {
	return s.repo.ListSessionsByUser(ctx, userID, limit)
}

// ListMessages returns the messages of a session the user owns.
func (s *ChatService) ListMessages(ctx context.Context, userID, sessionID string) ([]domain.Message, error) {
	session, err := s.repo.FindSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, store.ErrSessionNotFound
	}
	return s.repo.ListMessagesBySession(ctx, sessionID, 0)
}

// EndSession closes a session the user owns and returns the final row. The
// final aggregates are published for downstream consumers (insights, email
// digests); publish failures are logged, the close already happened.
func (s *ChatService) EndSession(ctx context.Context, userID, sessionID string) (*domain.Session, error) {
	session, err := s.repo.FindSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, store.ErrSessionNotFound
	}
	closed, err := s.repo.CloseSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if s.producer != nil {
		evt := domain.SessionEndedEvent{
			SessionID:    closed.ID,
			UserID:       closed.UserID,
			SessionType:  string(closed.SessionType),
			MessageCount: closed.MessageCount,
			TotalWords:   closed.TotalWords,
			AvgSentiment: closed.AvgSentiment,
		}
		if err := s.producer.Publish(ctx, "session_events", "session.ended", evt); err != nil {
			s.logger.Warn("failed to publish session.ended", "session_id", closed.ID, "error", err)
		}
	}
	return closed, nil
}
