package storage

import (
	"context"
	"encoding/json"
)

// SessionJob asks the notification generator to run for one user.
type SessionJob struct {
	UserID string `json:"userId"`
}

// QueuedSessionJob is a raw dequeued message plus the handles needed to
// delete it once processed.
type QueuedSessionJob struct {
	MessageID  string
	PopReceipt string
	Body       string
}

// EnqueueSessionJob queues a generation run for the user.
func (s *Store) EnqueueSessionJob(ctx context.Context, userID string) error {
	data, err := json.Marshal(SessionJob{UserID: userID})
	if err != nil {
		return err
	}
	_, err = s.sessionQueue.EnqueueMessage(ctx, string(data), nil)
	return err
}

// DequeueSessionJob retrieves a single queued job, nil when the queue
// is empty.
func (s *Store) DequeueSessionJob(ctx context.Context) (*QueuedSessionJob, error) {
	resp, err := s.sessionQueue.DequeueMessage(ctx, nil)
	if err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}
	msg := resp.Messages[0]
	job := &QueuedSessionJob{}
	if msg.MessageID != nil {
		job.MessageID = *msg.MessageID
	}
	if msg.PopReceipt != nil {
		job.PopReceipt = *msg.PopReceipt
	}
	if msg.MessageText != nil {
		job.Body = *msg.MessageText
	}
	return job, nil
}

// DeleteSessionJob removes a processed job from the queue.
func (s *Store) DeleteSessionJob(ctx context.Context, id, receipt string) error {
	_, err := s.sessionQueue.DeleteMessage(ctx, id, receipt, nil)
	return err
}
