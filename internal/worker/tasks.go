package worker

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TypeEmbedPost    = "post:embed"
	TypeFeedPoll     = "feed:poll"
	TypeIndexRebuild = "index:rebuild"
)

// EmbedPostPayload is the payload for embedding tasks
type EmbedPostPayload struct {
	PostID string `json:"post_id"`
}

// NewEmbedPostTask creates a new embedding task
func NewEmbedPostTask(payload EmbedPostPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEmbedPost, data), nil
}

func NewFeedPollTask() *asynq.Task {
	return asynq.NewTask(TypeFeedPoll, nil)
}

func NewIndexRebuildTask() *asynq.Task {
	return asynq.NewTask(TypeIndexRebuild, nil)
}
