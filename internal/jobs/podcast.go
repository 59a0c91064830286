// Package jobs implements C9: the background job runner that owns podcast
// synthesis, grounded on original_source's
// app/agents/new_chat/tools/podcast.py (the Redis-backed in-flight lock
// with a 1800s TTL and the pending-row-first-then-enqueue shape) and
// services/impl/execution_service_impl.go's run-bookkeeping pattern.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/surfsense-core/knowledge-core/internal/apperrors"
	"github.com/surfsense-core/knowledge-core/internal/store"
)

const podcastLockTTL = 30 * time.Minute

func podcastLockKey(searchSpaceID uuid.UUID) string {
	return fmt.Sprintf("podcast:generating:%s", searchSpaceID)
}

// Synthesizer turns source content into audio bytes plus a MIME type; the
// concrete TTS provider is out of this package's scope.
type Synthesizer interface {
	Synthesize(ctx context.Context, sourceContent, userPrompt string) (audio []byte, mimeType string, err error)
}

// PodcastRunner enqueues and executes podcast synthesis, enforcing at most
// one in-flight generation per search space.
type PodcastRunner struct {
	repo        *store.Repository
	redisClient *redis.Client
	audio       *AudioStore
	synth       Synthesizer
	tasks       chan podcastTask
}

type podcastTask struct {
	podcastID     uuid.UUID
	searchSpaceID uuid.UUID
	sourceContent string
	userPrompt    string
}

// NewPodcastRunner starts a fixed-size worker pool of width workers
// consuming from an in-process channel, the simplest durable-enough queue
// for a single-process deployment; swap tasks for a real broker without
// touching the lock or synthesis logic.
func NewPodcastRunner(repo *store.Repository, redisClient *redis.Client, audio *AudioStore, synth Synthesizer, width int) *PodcastRunner {
	if width <= 0 {
		width = 2
	}
	r := &PodcastRunner{repo: repo, redisClient: redisClient, audio: audio, synth: synth, tasks: make(chan podcastTask, 64)}
	for i := 0; i < width; i++ {
		go r.worker()
	}
	return r
}

// Enqueue pre-creates a pending Podcast row (so its id is available for
// polling immediately) and, if no generation is already in flight for
// this search space, schedules synthesis. Returns apperrors.ErrPodcastInFlight
// when one already is.
func (r *PodcastRunner) Enqueue(ctx context.Context, searchSpaceID uuid.UUID, title, sourceContent, userPrompt string) (uuid.UUID, error) {
	acquired, err := r.redisClient.SetNX(ctx, podcastLockKey(searchSpaceID), "1", podcastLockTTL).Result()
	if err != nil {
		return uuid.Nil, fmt.Errorf("jobs: acquire podcast lock: %w", err)
	}
	if !acquired {
		return uuid.Nil, apperrors.ErrPodcastInFlight
	}

	podcast := &store.Podcast{
		SearchSpaceID: searchSpaceID,
		Title:         title,
		Status:        store.PodcastStatusPending,
	}
	if err := r.repo.CreatePodcast(ctx, podcast); err != nil {
		r.redisClient.Del(ctx, podcastLockKey(searchSpaceID))
		return uuid.Nil, err
	}

	r.tasks <- podcastTask{
		podcastID:     podcast.ID,
		searchSpaceID: searchSpaceID,
		sourceContent: sourceContent,
		userPrompt:    userPrompt,
	}
	return podcast.ID, nil
}

func (r *PodcastRunner) worker() {
	for task := range r.tasks {
		r.run(task)
	}
}

func (r *PodcastRunner) run(task podcastTask) {
	// A fresh background context and a short-lived DB session per phase:
	// the synthesis call can run for minutes and must not hold a
	// connection the whole time.
	ctx := context.Background()
	defer r.redisClient.Del(ctx, podcastLockKey(task.searchSpaceID))

	if err := r.repo.UpdatePodcastStatus(ctx, task.podcastID, store.PodcastStatusGenerating, nil, nil); err != nil {
		return
	}

	audio, mimeType, err := r.synth.Synthesize(ctx, task.sourceContent, task.userPrompt)
	if err != nil {
		msg := err.Error()
		_ = r.repo.UpdatePodcastStatus(ctx, task.podcastID, store.PodcastStatusFailed, nil, &msg)
		return
	}

	key := fmt.Sprintf("podcasts/%s.%s", task.podcastID, extensionFor(mimeType))
	objectKey, err := r.audio.PutAudio(ctx, key, audio, mimeType)
	if err != nil {
		msg := err.Error()
		_ = r.repo.UpdatePodcastStatus(ctx, task.podcastID, store.PodcastStatusFailed, nil, &msg)
		return
	}

	_ = r.repo.UpdatePodcastStatus(ctx, task.podcastID, store.PodcastStatusReady, &objectKey, nil)
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "audio/wav":
		return "wav"
	case "audio/ogg":
		return "ogg"
	case "text/plain":
		return "txt"
	default:
		return "mp3"
	}
}
