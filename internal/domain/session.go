/**
 * @description
 * This file defines the conversation models: a Session is a container for an
 * ordered, append-only list of Messages. Session aggregates (message count,
 * total words, rolling sentiment average) are maintained incrementally as
 * messages are appended.
 */
package domain

import (
	"strings"
	"time"
)

// SessionType distinguishes the modality a session was started in.
type SessionType string

const (
	SessionChat  SessionType = "chat"
	SessionVoice SessionType = "voice"
	SessionVideo SessionType = "video"
)

// Session is a conversation container owned by a single user.
type Session struct {
	ID           string      `json:"id"`
	UserID       string      `json:"user_id"`
	SessionType  SessionType `json:"session_type"`
	StartTime    time.Time   `json:"start_time"`
	EndTime      *time.Time  `json:"end_time,omitempty"`
	MessageCount int         `json:"message_count"`
	TotalWords   int         `json:"total_words"`
	AvgSentiment float64     `json:"avg_sentiment"`
	// SentimentCount is the number of samples folded into AvgSentiment.
	SentimentCount int       `json:"sentiment_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// Message is one turn of a conversation. Append-only.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Content   string    `json:"content"`
	IsUser    bool      `json:"is_user"`
	AudioURL  *string   `json:"audio_url,omitempty"`
	VideoURL  *string   `json:"video_url,omitempty"`
	WordCount int       `json:"word_count"`
	Sentiment *float64  `json:"sentiment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CountWords returns the number of whitespace-separated words in s.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// RollingAverage folds a new sample into an average over n prior samples.
func RollingAverage(avg float64, n int, sample float64) float64 {
	if n <= 0 {
		return sample
	}
	return (avg*float64(n) + sample) / float64(n+1)
}
