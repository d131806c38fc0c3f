package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyJobPrefix = "email:queue:job:"
	keyReady     = "email:queue:ready"
	keyDelayed   = "email:queue:delayed"
	keyActive    = "email:queue:active"
	keyCompleted = "email:queue:completed"
	keyFailed    = "email:queue:failed"
	keyPaused    = "email:queue:paused"
	keyEvents    = "email:queue:events"

	// History retention mirrors the ready/failed split: keep more
	// successes for throughput inspection, fewer failures since those are
	// acted on quickly.
	completedRetention = 100
	failedRetention    = 50

	eventsRetention = 200
)

// claimScript atomically pops the best ready job and marks it active.
// Without the script two workers could pop the same id between ZRANGE and
// ZREM.
var claimScript = redis.NewScript(`
local id = redis.call('ZRANGE', KEYS[1], 0, 0)
if #id == 0 then
  return false
end
redis.call('ZREM', KEYS[1], id[1])
redis.call('ZADD', KEYS[2], ARGV[1], id[1])
return id[1]
`)

// store wraps the Redis key schema. All methods are safe for concurrent
// use; cross-key invariants that matter under concurrency go through Lua.
type store struct {
	rdb redis.UniversalClient
}

func (s *store) saveJob(ctx context.Context, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: encode job %s: %w", job.ID, err)
	}
	if err := s.rdb.Set(ctx, keyJobPrefix+job.ID, raw, 0).Err(); err != nil {
		return fmt.Errorf("queue: save job %s: %w", job.ID, err)
	}
	return nil
}

func (s *store) loadJob(ctx context.Context, id string) (*Job, error) {
	raw, err := s.rdb.Get(ctx, keyJobPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("queue: load job %s: %w", id, err)
	}
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("queue: decode job %s: %w", id, err)
	}
	return &job, nil
}

func (s *store) deleteJob(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, keyJobPrefix+id).Err()
}

// enqueue persists the job and places it in the ready or delayed set
// depending on RunAt.
func (s *store) enqueue(ctx context.Context, job *Job, now time.Time) error {
	if err := s.saveJob(ctx, job); err != nil {
		return err
	}

	if job.RunAt.After(now) {
		err := s.rdb.ZAdd(ctx, keyDelayed, redis.Z{
			Score:  float64(job.RunAt.UnixMilli()),
			Member: job.ID,
		}).Err()
		if err != nil {
			return fmt.Errorf("queue: schedule job %s: %w", job.ID, err)
		}
		return nil
	}

	err := s.rdb.ZAdd(ctx, keyReady, redis.Z{
		Score:  readyScore(job.Priority, job.EnqueuedAt),
		Member: job.ID,
	}).Err()
	if err != nil {
		return fmt.Errorf("queue: enqueue job %s: %w", job.ID, err)
	}
	return nil
}

// claim pops the highest-priority ready job id, or "" when none is ready.
func (s *store) claim(ctx context.Context, now time.Time) (string, error) {
	res, err := claimScript.Run(ctx, s.rdb,
		[]string{keyReady, keyActive},
		now.UnixMilli(),
	).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("queue: claim: %w", err)
	}
	id, _ := res.(string)
	return id, nil
}

// promoteDue moves delayed jobs whose run time has arrived into the ready
// set.
func (s *store) promoteDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.rdb.ZRangeByScore(ctx, keyDelayed, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: list due jobs: %w", err)
	}

	promoted := 0
	for _, id := range due {
		job, err := s.loadJob(ctx, id)
		if err != nil {
			// Orphaned schedule entry; drop it.
			s.rdb.ZRem(ctx, keyDelayed, id)
			continue
		}
		pipe := s.rdb.TxPipeline()
		pipe.ZRem(ctx, keyDelayed, id)
		pipe.ZAdd(ctx, keyReady, redis.Z{
			Score:  readyScore(job.Priority, job.EnqueuedAt),
			Member: id,
		})
		if _, err := pipe.Exec(ctx); err != nil {
			return promoted, fmt.Errorf("queue: promote job %s: %w", id, err)
		}
		promoted++
	}
	return promoted, nil
}

// complete moves a job from active into the completed history. The full
// job document lives in the list so the job key can be deleted; the list
// is trimmed to retention.
func (s *store) complete(ctx context.Context, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: encode job %s: %w", job.ID, err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.ZRem(ctx, keyActive, job.ID)
	pipe.Del(ctx, keyJobPrefix+job.ID)
	pipe.LPush(ctx, keyCompleted, raw)
	pipe.LTrim(ctx, keyCompleted, 0, completedRetention-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue: complete job %s: %w", job.ID, err)
	}
	return nil
}

// fail parks a job in the failed history after its attempt budget is
// exhausted.
func (s *store) fail(ctx context.Context, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: encode job %s: %w", job.ID, err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.ZRem(ctx, keyActive, job.ID)
	pipe.Del(ctx, keyJobPrefix+job.ID)
	pipe.LPush(ctx, keyFailed, raw)
	pipe.LTrim(ctx, keyFailed, 0, failedRetention-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue: fail job %s: %w", job.ID, err)
	}
	return nil
}

// reschedule moves an active job back to the delayed set for a retry.
func (s *store) reschedule(ctx context.Context, job *Job) error {
	if err := s.saveJob(ctx, job); err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.ZRem(ctx, keyActive, job.ID)
	pipe.ZAdd(ctx, keyDelayed, redis.Z{
		Score:  float64(job.RunAt.UnixMilli()),
		Member: job.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue: reschedule job %s: %w", job.ID, err)
	}
	return nil
}

// findFailed scans the failed history for a job id. Index is returned so
// the caller can remove the exact entry.
func (s *store) findFailed(ctx context.Context, id string) (*Job, string, error) {
	entries, err := s.rdb.LRange(ctx, keyFailed, 0, failedRetention-1).Result()
	if err != nil {
		return nil, "", fmt.Errorf("queue: list failed jobs: %w", err)
	}
	for _, raw := range entries {
		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			continue
		}
		if job.ID == id {
			return &job, raw, nil
		}
	}
	return nil, "", fmt.Errorf("%w: %s", ErrJobNotFound, id)
}

// findCompleted scans the completed history for a job id.
func (s *store) findCompleted(ctx context.Context, id string) (*Job, error) {
	entries, err := s.rdb.LRange(ctx, keyCompleted, 0, completedRetention-1).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: list completed jobs: %w", err)
	}
	for _, raw := range entries {
		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			continue
		}
		if job.ID == id {
			return &job, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
}

// retryFailed moves a failed job back to the ready set with a fresh
// attempt budget.
func (s *store) retryFailed(ctx context.Context, job *Job, rawEntry string, now time.Time) error {
	job.Attempt = 0
	job.Progress = 0
	job.LastError = ""
	job.FailedAt = time.Time{}
	job.EnqueuedAt = now
	job.RunAt = time.Time{}

	if err := s.saveJob(ctx, job); err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.LRem(ctx, keyFailed, 1, rawEntry)
	pipe.ZAdd(ctx, keyReady, redis.Z{
		Score:  readyScore(job.Priority, now),
		Member: job.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue: retry job %s: %w", job.ID, err)
	}
	return nil
}

// drain removes all waiting and delayed jobs. Active jobs finish normally;
// history is untouched.
func (s *store) drain(ctx context.Context) error {
	for _, key := range []string{keyReady, keyDelayed} {
		ids, err := s.rdb.ZRange(ctx, key, 0, -1).Result()
		if err != nil {
			return fmt.Errorf("queue: drain %s: %w", key, err)
		}
		pipe := s.rdb.TxPipeline()
		for _, id := range ids {
			pipe.Del(ctx, keyJobPrefix+id)
		}
		pipe.Del(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("queue: drain %s: %w", key, err)
		}
	}
	return nil
}

// reclaimStale returns active jobs claimed before the cutoff to the ready
// set. Covers workers that died mid-job.
func (s *store) reclaimStale(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := s.rdb.ZRangeByScore(ctx, keyActive, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: list stale jobs: %w", err)
	}

	reclaimed := 0
	for _, id := range stale {
		job, err := s.loadJob(ctx, id)
		if err != nil {
			s.rdb.ZRem(ctx, keyActive, id)
			continue
		}
		pipe := s.rdb.TxPipeline()
		pipe.ZRem(ctx, keyActive, id)
		pipe.ZAdd(ctx, keyReady, redis.Z{
			Score:  readyScore(job.Priority, job.EnqueuedAt),
			Member: id,
		})
		if _, err := pipe.Exec(ctx); err != nil {
			return reclaimed, fmt.Errorf("queue: reclaim job %s: %w", id, err)
		}
		reclaimed++
	}
	return reclaimed, nil
}

func (s *store) setPaused(ctx context.Context, paused bool) error {
	if paused {
		return s.rdb.Set(ctx, keyPaused, "1", 0).Err()
	}
	return s.rdb.Del(ctx, keyPaused).Err()
}

func (s *store) isPaused(ctx context.Context) (bool, error) {
	_, err := s.rdb.Get(ctx, keyPaused).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("queue: read pause flag: %w", err)
	}
	return true, nil
}

// Stats is a point-in-time snapshot of queue depths.
type Stats struct {
	Waiting   int64 `json:"waiting"`
	Delayed   int64 `json:"delayed"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Paused    bool  `json:"paused"`
}

func (s *store) stats(ctx context.Context) (Stats, error) {
	pipe := s.rdb.Pipeline()
	waiting := pipe.ZCard(ctx, keyReady)
	delayed := pipe.ZCard(ctx, keyDelayed)
	active := pipe.ZCard(ctx, keyActive)
	completed := pipe.LLen(ctx, keyCompleted)
	failed := pipe.LLen(ctx, keyFailed)
	paused := pipe.Exists(ctx, keyPaused)
	if _, err := pipe.Exec(ctx); err != nil {
		return Stats{}, fmt.Errorf("queue: stats: %w", err)
	}

	return Stats{
		Waiting:   waiting.Val(),
		Delayed:   delayed.Val(),
		Active:    active.Val(),
		Completed: completed.Val(),
		Failed:    failed.Val(),
		Paused:    paused.Val() > 0,
	}, nil
}

// Event is an append-only queue lifecycle record kept for debugging.
type Event struct {
	JobID string    `json:"job_id"`
	Kind  string    `json:"kind"`
	At    time.Time `json:"at"`
	Note  string    `json:"note,omitempty"`
}

// appendEvent records a lifecycle event. Best effort: event loss never
// fails the transition it describes.
func (s *store) appendEvent(ctx context.Context, ev Event) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return
	}
	pipe := s.rdb.Pipeline()
	pipe.LPush(ctx, keyEvents, raw)
	pipe.LTrim(ctx, keyEvents, 0, eventsRetention-1)
	_, _ = pipe.Exec(ctx)
}
