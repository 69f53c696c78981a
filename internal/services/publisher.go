// Package services: publish protocol driver
//
// This file implements the per-account publish protocol against the
// external platform: create a media container, poll its processing status
// on a fixed cadence within a per-kind wall-clock budget, then publish with
// a small bounded retry on the platform's "media not yet ready" error.
//
// Every failure is local to one account and is folded into the returned
// Outcome; nothing here aborts a batch. Network calls go through the
// injected PublishAPI so tests drive the driver with a scripted fake.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/growhub/instabulk/internal/domain"
	"github.com/growhub/instabulk/internal/graph"
)

// Failure reasons reported on Outcome. Stable strings: they end up in the
// audit log and in API responses.
const (
	ReasonCreationFailed    = "creation failed"
	ReasonProcessingError   = "processing error"
	ReasonProcessingTimeout = "processing timeout"
	ReasonPublishFailed     = "publish failed"
)

// Outcome is the result of one (post, destination account) publish attempt.
type Outcome struct {
	// AccountID is the destination account identifier.
	AccountID string `json:"account_id"`
	// AccountName is the resolved display name, or the raw ID when the
	// directory lookup was unavailable.
	AccountName string `json:"account_name"`
	// Published reports whether the post went live on this account.
	Published bool `json:"published"`
	// PostID is the external post identifier (set when Published).
	PostID string `json:"post_id,omitempty"`
	// Reason describes the failure (set when not Published).
	Reason string `json:"reason,omitempty"`
}

// Summary renders the one-line human-readable form used in audit log rows.
func (o Outcome) Summary() string {
	name := o.AccountName
	if name == "" {
		name = o.AccountID
	}
	if o.Published {
		return fmt.Sprintf("%s: published (id %s)", name, o.PostID)
	}
	return fmt.Sprintf("%s: failed: %s", name, o.Reason)
}

// PublishAPI is the platform surface the driver consumes; satisfied by
// *graph.Client.
type PublishAPI interface {
	// CreateContainer creates a media container and returns its ID.
	CreateContainer(ctx context.Context, accountID, caption, mediaURL string, kind domain.MediaKind) (string, error)
	// ContainerStatus returns the container's processing state.
	ContainerStatus(ctx context.Context, containerID string) (graph.ContainerState, error)
	// PublishContainer publishes a ready container and returns the post ID.
	PublishContainer(ctx context.Context, accountID, containerID string) (string, error)
}

// PollConfig bounds the container status poll loop. The interval is shared
// by both media kinds; the wall-clock budget differs because video
// transcoding takes materially longer than image processing (minutes, not
// seconds).
type PollConfig struct {
	// Interval between status queries.
	Interval time.Duration
	// ImageBudget is the total wait allowed for an image container.
	ImageBudget time.Duration
	// VideoBudget is the total wait allowed for a video container.
	VideoBudget time.Duration
}

// Budget returns the total wait allowed for the given media kind.
func (c PollConfig) Budget(kind domain.MediaKind) time.Duration {
	if kind == domain.MediaVideo {
		return c.VideoBudget
	}
	return c.ImageBudget
}

// DefaultPollConfig matches the platform's observed processing behavior.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval:    4 * time.Second,
		ImageBudget: 90 * time.Second,
		VideoBudget: 8 * time.Minute,
	}
}

// Publisher drives the publish protocol for one destination account.
type Publisher struct {
	// API is the platform client.
	API PublishAPI
	// Poll bounds the container status loop.
	Poll PollConfig
	// PublishRetryMax caps attempts of the publish call on the "not ready"
	// error (total attempts, including the first).
	PublishRetryMax int
	// PublishRetryBase is the linear backoff base between publish attempts.
	PublishRetryBase time.Duration

	// sleep is an injectable wait used by both the poll loop and the
	// publish retry; nil uses the real clock.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPublisher constructs a Publisher with the production numeric policy:
// 4s poll interval, 90s/8m image/video budgets, and up to 3 publish
// attempts spaced attempt×15s apart.
func NewPublisher(api PublishAPI) *Publisher {
	return &Publisher{
		API:              api,
		Poll:             DefaultPollConfig(),
		PublishRetryMax:  3,
		PublishRetryBase: 15 * time.Second,
	}
}

// PublishOne drives accountID through create → poll → publish and returns
// the per-account outcome. It never returns an error: every failure mode is
// reported on the Outcome so partial success across a fan-out is explicit.
func (p *Publisher) PublishOne(ctx context.Context, accountID, accountName, mediaURL, caption string, kind domain.MediaKind) Outcome {
	out := Outcome{AccountID: accountID, AccountName: accountName}
	lg := log.With().Str("account_id", accountID).Str("media_kind", string(kind)).Logger()

	// Step A: create the container.
	containerID, err := p.API.CreateContainer(ctx, accountID, caption, mediaURL, kind)
	if err != nil {
		lg.Warn().Err(err).Msg("container creation failed")
		out.Reason = ReasonCreationFailed
		return out
	}
	lg.Debug().Str("container_id", containerID).Msg("container created")

	// Step B: poll readiness within the per-kind budget.
	state, err := p.waitForContainer(ctx, containerID, kind)
	if err != nil {
		lg.Warn().Err(err).Str("container_id", containerID).Msg("container poll aborted")
		out.Reason = ReasonProcessingError
		return out
	}
	switch state {
	case graph.StateReady:
		// proceed to publish
	case graph.StateError:
		lg.Warn().Str("container_id", containerID).Msg("container processing error")
		out.Reason = ReasonProcessingError
		return out
	default:
		lg.Warn().Str("container_id", containerID).Dur("budget", p.Poll.Budget(kind)).Msg("container processing timeout")
		out.Reason = ReasonProcessingTimeout
		return out
	}

	// Step C: publish, retrying only the "media not yet ready" error.
	policy := RetryPolicy{
		MaxAttempts: p.PublishRetryMax,
		Backoff:     LinearBackoff(p.PublishRetryBase),
		Retryable:   graph.IsNotReady,
		Sleep:       p.sleep,
	}
	var postID string
	err = policy.Do(ctx, func(attempt int) error {
		id, perr := p.API.PublishContainer(ctx, accountID, containerID)
		if perr != nil {
			lg.Debug().Err(perr).Int("attempt", attempt).Msg("publish attempt failed")
			return perr
		}
		postID = id
		return nil
	})
	if err != nil {
		lg.Warn().Err(err).Str("container_id", containerID).Msg("publish failed")
		out.Reason = ReasonPublishFailed
		return out
	}

	lg.Info().Str("post_id", postID).Msg("published")
	out.Published = true
	out.PostID = postID
	return out
}

// waitForContainer polls the container status until it leaves processing or
// the kind's wall-clock budget is exhausted. The returned state is
// StateProcessing when the budget ran out (the container may still finish
// remotely; the pipeline just stops waiting and reports a timeout).
func (p *Publisher) waitForContainer(ctx context.Context, containerID string, kind domain.MediaKind) (graph.ContainerState, error) {
	interval := p.Poll.Interval
	if interval <= 0 {
		interval = 4 * time.Second
	}
	attempts := int(p.Poll.Budget(kind) / interval)
	if attempts < 1 {
		attempts = 1
	}

	state := graph.StateProcessing
	policy := RetryPolicy{
		MaxAttempts: attempts,
		Backoff:     FixedBackoff(interval),
		Sleep:       p.sleep,
	}
	err := policy.Do(ctx, func(int) error {
		s, serr := p.API.ContainerStatus(ctx, containerID)
		if serr != nil {
			// Treat a status query failure like "still processing": one bad
			// read must not fail a container that is about to finish.
			return fmt.Errorf("status query: %w", serr)
		}
		state = s
		if s == graph.StateProcessing {
			return fmt.Errorf("container %s still processing", containerID)
		}
		return nil
	})
	if err != nil && ctx.Err() != nil {
		return state, ctx.Err()
	}
	return state, nil
}
