/**
 * @description
 * This file contains the business logic for avatar video generation. The
 * vendor API is asynchronous, so generation is modeled as an explicit state
 * machine {submitted, processing, completed, failed}. Polling runs on a Clock
 * injected at construction so tests can simulate time without real delays.
 */
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/therapai/backend/pkg/tavusclient"
)

// VideoState is one of the poll states of a generation job.
type VideoState string

const (
	VideoSubmitted  VideoState = "submitted"
	VideoProcessing VideoState = "processing"
	VideoCompleted  VideoState = "completed"
	VideoFailed     VideoState = "failed"
)

// Terminal reports whether no further polling can change the state.
func (s VideoState) Terminal() bool {
	return s == VideoCompleted || s == VideoFailed
}

// VideoJob is the client-facing view of a generation job.
type VideoJob struct {
	ID       string     `json:"id"`
	State    VideoState `json:"state"`
	VideoURL string     `json:"video_url,omitempty"`
}

// Clock abstracts time for the poll loop.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

// VideoGenerator is the avatar video vendor behind the video proxy.
type VideoGenerator interface {
	CreateVideo(ctx context.Context, script, replicaID, overrideKey string) (*tavusclient.Video, error)
	GetVideo(ctx context.Context, videoID, overrideKey string) (*tavusclient.Video, error)
}

// ErrVideoGenerationFailed is returned when a job reaches the failed state.
var ErrVideoGenerationFailed = errors.New("video generation failed")

// VideoService proxies script-to-video generation.
type VideoService struct {
	gen          VideoGenerator
	clock        Clock
	pollInterval time.Duration
	maxWait      time.Duration
	logger       *slog.Logger
}

// NewVideoService creates a new video service. A nil clock selects the wall
// clock; pollInterval and maxWait fall back to 5s and 5m.
func NewVideoService(gen VideoGenerator, clock Clock, pollInterval, maxWait time.Duration, logger *slog.Logger) *VideoService {
	if clock == nil {
		clock = realClock{}
	}
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if maxWait <= 0 {
		maxWait = 5 * time.Minute
	}
	return &VideoService{gen: gen, clock: clock, pollInterval: pollInterval, maxWait: maxWait, logger: logger}
}

// CreateVideo submits a generation job.
func (s *VideoService) CreateVideo(ctx context.Context, script, replicaID, ownKey string) (*VideoJob, error) {
	if script == "" {
		return nil, errors.New("script is required")
	}
	video, err := s.gen.CreateVideo(ctx, script, replicaID, ownKey)
	if err != nil {
		return nil, err
	}
	return jobFromVendor(video), nil
}

// GetStatus fetches the current state of a job, for clients that poll
// themselves.
func (s *VideoService) GetStatus(ctx context.Context, jobID, ownKey string) (*VideoJob, error) {
	if jobID == "" {
		return nil, errors.New("job id is required")
	}
	video, err := s.gen.GetVideo(ctx, jobID, ownKey)
	if err != nil {
		return nil, err
	}
	return jobFromVendor(video), nil
}

// AwaitVideo polls a job on a fixed interval until it reaches a terminal
// state, the wait budget is exhausted, or ctx is cancelled. An abandoned poll
// is simply no longer observed; the vendor job keeps running.
func (s *VideoService) AwaitVideo(ctx context.Context, jobID, ownKey string) (*VideoJob, error) {
	deadline := s.clock.Now().Add(s.maxWait)
	for {
		job, err := s.GetStatus(ctx, jobID, ownKey)
		if err != nil {
			return nil, err
		}
		if job.State == VideoCompleted {
			return job, nil
		}
		if job.State == VideoFailed {
			return job, ErrVideoGenerationFailed
		}
		if !s.clock.Now().Add(s.pollInterval).Before(deadline) {
			s.logger.Warn("video poll budget exhausted", "job_id", jobID, "state", string(job.State))
			return job, context.DeadlineExceeded
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-s.clock.After(s.pollInterval):
		}
	}
}

// jobFromVendor maps vendor statuses onto the poll state machine. Unknown
// vendor statuses are treated as still processing.
func jobFromVendor(v *tavusclient.Video) *VideoJob {
	job := &VideoJob{ID: v.VideoID}
	switch v.Status {
	case tavusclient.JobQueued:
		job.State = VideoSubmitted
	case tavusclient.JobReady:
		job.State = VideoCompleted
	case tavusclient.JobError, tavusclient.JobDeleted:
		job.State = VideoFailed
	default:
		job.State = VideoProcessing
	}
	if job.State == VideoCompleted {
		job.VideoURL = v.HostedURL
		if v.DownloadURL != "" {
			job.VideoURL = v.DownloadURL
		}
	}
	return job
}
