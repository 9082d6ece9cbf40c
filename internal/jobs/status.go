// Package jobs runs enrichments as jobs and records their progress in Redis
// so that a caller can poll for it.
package jobs

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"grant-insights/internal/common/errors"
	"grant-insights/internal/pipeline"
	"grant-insights/internal/redis"
)

// Job statuses as reported to callers
const (
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusFailed     = "processing-error"
)

const keyPrefix = "job:"

// Status is the polled view of a job
type Status struct {
	JobID     string                 `json:"jobid"`
	Status    string                 `json:"status"`
	Stages    []string               `json:"stages,omitempty"`
	Stage     int                    `json:"stage"`
	Progress  *pipeline.ItemProgress `json:"progress,omitempty"`
	Result    string                 `json:"result,omitempty"`
	Error     string                 `json:"error,omitempty"`
	ErrorType string                 `json:"error_type,omitempty"`
	Updated   time.Time              `json:"updated"`
}

// Store keeps one Redis hash per job. Every write refreshes the hash's TTL.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl, now: time.Now}
}

func key(id string) string {
	return keyPrefix + id
}

func (s *Store) write(ctx context.Context, id string, values map[string]interface{}) error {
	values["updated"] = s.now().UTC().Format(time.RFC3339Nano)
	if err := s.client.HSetMap(ctx, key(id), values); err != nil {
		return err
	}
	return s.client.Expire(ctx, key(id), s.ttl)
}

// Start records a new job as in progress
func (s *Store) Start(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, key(id)); err != nil {
		return err
	}
	return s.write(ctx, id, map[string]interface{}{
		"status": StatusInProgress,
		"stage":  0,
	})
}

// Complete records the dataset id produced by the job
func (s *Store) Complete(ctx context.Context, id, result string) error {
	return s.write(ctx, id, map[string]interface{}{
		"status": StatusCompleted,
		"result": result,
	})
}

// Fail records the user-facing reason for a failed job
func (s *Store) Fail(ctx context.Context, id string, cause error) error {
	return s.write(ctx, id, map[string]interface{}{
		"status":     StatusFailed,
		"error":      errors.UserMessage(cause),
		"error_type": string(errors.GetType(cause)),
	})
}

// Status reads the job's hash. Unknown and expired jobs are not found errors.
func (s *Store) Status(ctx context.Context, id string) (*Status, error) {
	fields, err := s.client.HGetAll(ctx, key(id))
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, errors.NotFoundError("job " + id)
	}

	st := &Status{
		JobID:     id,
		Status:    fields["status"],
		Result:    fields["result"],
		Error:     fields["error"],
		ErrorType: fields["error_type"],
	}
	if v, ok := fields["stage"]; ok {
		st.Stage, _ = strconv.Atoi(v)
	}
	if v := fields["stages"]; v != "" {
		_ = json.Unmarshal([]byte(v), &st.Stages)
	}
	if v := fields["progress"]; v != "" {
		var p pipeline.ItemProgress
		if json.Unmarshal([]byte(v), &p) == nil {
			st.Progress = &p
		}
	}
	if v := fields["updated"]; v != "" {
		st.Updated, _ = time.Parse(time.RFC3339Nano, v)
	}
	return st, nil
}

// Progress returns the sink that records stage progress for job id
func (s *Store) Progress(id string) *RedisProgress {
	return &RedisProgress{store: s, id: id}
}

// RedisProgress is a pipeline.ProgressSink backed by the job's hash
type RedisProgress struct {
	store *Store
	id    string
}

func (p *RedisProgress) Stages(ctx context.Context, names []string) error {
	raw, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return p.store.write(ctx, p.id, map[string]interface{}{
		"stages":   string(raw),
		"stage":    0,
		"progress": "",
	})
}

// Update records the current stage. Item progress is cleared when a stage
// finishes.
func (p *RedisProgress) Update(ctx context.Context, stage, _ int, item *pipeline.ItemProgress) error {
	progress := ""
	if item != nil {
		raw, err := json.Marshal(item)
		if err != nil {
			return err
		}
		progress = string(raw)
	}
	return p.store.write(ctx, p.id, map[string]interface{}{
		"stage":    stage,
		"progress": progress,
	})
}

var _ pipeline.ProgressSink = (*RedisProgress)(nil)
