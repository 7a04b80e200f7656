package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"contractor_portal_backend/internal/email"
	"contractor_portal_backend/internal/notification/outbox"
	"contractor_portal_backend/platform/config"
	"contractor_portal_backend/platform/logger"
)

// maxDeliveryAttempts is the number of tries before an outbox record is
// marked permanently failed.
const maxDeliveryAttempts = 5

// Worker consumes background tasks and delivers queued notifications.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	outbox *outbox.Repository
	sender email.Sender
	log    *logger.Logger
}

// NewWorker creates an asynq worker bound to the notification outbox.
func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, sender email.Sender, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		outbox: outbox.New(pool),
		sender: sender,
		log:    log,
	}

	mux.HandleFunc(TaskNotificationDeliver, w.handleNotificationDeliver)

	return w, nil
}

// Run processes tasks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleNotificationDeliver(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseNotificationDeliverPayload(task)
	if err != nil {
		return err
	}

	outboxID, err := uuid.Parse(payload.OutboxID)
	if err != nil {
		return err
	}

	rec, err := w.outbox.GetByID(ctx, outboxID)
	if err != nil {
		return err
	}
	if rec.Status == outbox.StatusSucceeded {
		return nil
	}

	if err := w.outbox.MarkProcessing(ctx, rec.ID); err != nil {
		return err
	}

	if err := w.sender.Send(ctx, rec.Recipient, rec.Subject, rec.Body); err != nil {
		w.log.NotificationFailure(rec.Recipient, rec.Subject, err)

		if rec.Attempts+1 >= maxDeliveryAttempts {
			if markErr := w.outbox.MarkFailed(ctx, rec.ID, err.Error()); markErr != nil {
				return markErr
			}
			return nil
		}

		lastError := err.Error()
		if markErr := w.outbox.MarkPending(ctx, rec.ID, &lastError); markErr != nil {
			return markErr
		}
		return err
	}

	return w.outbox.MarkSucceeded(ctx, rec.ID)
}
