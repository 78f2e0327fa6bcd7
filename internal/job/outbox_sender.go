package job

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"hypeledger/internal/config"
	"hypeledger/internal/model"
	"hypeledger/internal/repository"
)

// Publisher delivers one outbox message to the broker.
type Publisher interface {
	Send(topic, key, value string) error
}

// OutboxSender drains pending outbox rows to the broker in commit order per
// message key. A message that keeps failing is marked FAILED after
// MaxRetryCount attempts, which releases the messages queued behind it.
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	publisher  Publisher
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
	maxRetry   int
}

func NewOutboxSender(outboxRepo *repository.OutboxRepository, publisher Publisher, cfg config.BusinessConfig) *OutboxSender {
	s := &OutboxSender{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		stopCh:     make(chan struct{}),
		interval:   cfg.OutboxInterval,
		batchSize:  cfg.OutboxBatchSize,
		maxRetry:   cfg.MaxRetryCount,
	}
	if s.interval <= 0 {
		s.interval = 100 * time.Millisecond
	}
	if s.batchSize <= 0 {
		s.batchSize = 100
	}
	if s.maxRetry <= 0 {
		s.maxRetry = 5
	}
	return s
}

func (s *OutboxSender) Start(ctx context.Context) {
	log.Info("[OutboxSender] started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("[OutboxSender] context done, exiting")
			return
		case <-s.stopCh:
			log.Info("[OutboxSender] stopped")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// processPendingMessages sends one batch and returns how many were sent.
func (s *OutboxSender) processPendingMessages(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		log.WithError(err).Error("[OutboxSender] load pending messages")
		return 0
	}

	// a failed message holds back the rest of its key until the next tick
	blocked := make(map[string]struct{})
	sent := 0
	for _, msg := range messages {
		if _, ok := blocked[msg.MessageKey]; ok {
			continue
		}
		if s.sendMessage(ctx, msg) {
			sent++
			continue
		}
		blocked[msg.MessageKey] = struct{}{}
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	entry := log.WithFields(log.Fields{"id": msg.ID, "topic": msg.Topic, "key": msg.MessageKey})

	err := s.publisher.Send(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if updateErr := s.outboxRepo.MarkAsSent(ctx, msg.ID); updateErr != nil {
			entry.WithError(updateErr).Error("[OutboxSender] mark sent")
		} else {
			entry.Debug("[OutboxSender] message sent")
		}
		return true
	}

	entry = entry.WithError(err).WithField("retry_count", msg.RetryCount+1)
	if msg.RetryCount+1 >= s.maxRetry {
		if failErr := s.outboxRepo.MarkAsFailed(ctx, msg.ID); failErr != nil {
			entry.WithField("update_error", failErr).Error("[OutboxSender] mark failed")
		} else {
			entry.Warn("[OutboxSender] retries exhausted, message marked failed")
		}
		return false
	}

	if incErr := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); incErr != nil {
		entry.WithField("update_error", incErr).Error("[OutboxSender] increment retry count")
	}
	entry.Warn("[OutboxSender] send failed, will retry")
	return false
}
