package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TaskNotificationDeliver delivers a queued outbox notification.
const TaskNotificationDeliver = "notification.deliver"

// NotificationDeliverPayload identifies the outbox record to deliver.
type NotificationDeliverPayload struct {
	OutboxID string `json:"outboxId"`
}

// NewNotificationDeliverTask builds an asynq task for an outbox record.
func NewNotificationDeliverTask(payload NotificationDeliverPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationDeliver, data), nil
}

// ParseNotificationDeliverPayload decodes a notification delivery task.
func ParseNotificationDeliverPayload(task *asynq.Task) (NotificationDeliverPayload, error) {
	var payload NotificationDeliverPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NotificationDeliverPayload{}, err
	}
	return payload, nil
}
