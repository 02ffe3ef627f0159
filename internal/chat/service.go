// Package chat stores per-ride message boards in the key-value store.
// Each ride's board is a single JSON array capped at the most recent 50
// messages.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abelsonz/rideunited/internal/kv"
	"github.com/abelsonz/rideunited/internal/shared/apperr"
)

const maxMessages = 50

func messagesKey(rideID string) string { return "chat:" + rideID + ":messages" }

// Message is one entry on a ride's board.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Text      string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Author is the verified identity posting a message.
type Author struct {
	UserID   string
	UserName string
}

// Caller identifies who is asking to delete a message.
type Caller struct {
	UserID  string
	IsAdmin bool
}

type Service struct {
	store *kv.Store
	now   func() time.Time
}

func NewService(store *kv.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Messages returns a ride's board, oldest first. A ride with no board
// yet is an empty list, not an error.
func (s *Service) Messages(ctx context.Context, rideID string) ([]Message, error) {
	msgs, err := s.load(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs, nil
}

// Post appends a message to a ride's board, evicting the oldest entry
// once the board holds more than 50.
func (s *Service) Post(ctx context.Context, rideID, text string, author Author) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, fmt.Errorf("message text is required: %w", apperr.ErrValidation)
	}

	msg := Message{
		ID:        uuid.NewString(),
		UserID:    author.UserID,
		UserName:  author.UserName,
		Text:      text,
		CreatedAt: s.now().UTC(),
	}

	msgs, err := s.load(ctx, rideID)
	if err != nil {
		return Message{}, err
	}
	msgs = append(msgs, msg)
	if len(msgs) > maxMessages {
		msgs = msgs[len(msgs)-maxMessages:]
	}
	if err := s.store.Set(ctx, messagesKey(rideID), msgs); err != nil {
		return Message{}, fmt.Errorf("store messages: %v: %w", err, apperr.ErrStorage)
	}
	return msg, nil
}

// Delete removes a message. Authors may delete their own messages;
// admins may delete anyone's.
func (s *Service) Delete(ctx context.Context, rideID, messageID string, caller Caller) error {
	msgs, err := s.load(ctx, rideID)
	if err != nil {
		return err
	}

	idx := -1
	for i, m := range msgs {
		if m.ID == messageID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("message %s not found: %w", messageID, apperr.ErrNotFound)
	}
	if !caller.IsAdmin && msgs[idx].UserID != caller.UserID {
		return fmt.Errorf("you can only delete your own messages: %w", apperr.ErrForbidden)
	}

	msgs = append(msgs[:idx], msgs[idx+1:]...)
	if err := s.store.Set(ctx, messagesKey(rideID), msgs); err != nil {
		return fmt.Errorf("store messages: %v: %w", err, apperr.ErrStorage)
	}
	return nil
}

func (s *Service) load(ctx context.Context, rideID string) ([]Message, error) {
	var msgs []Message
	if _, err := s.store.Get(ctx, messagesKey(rideID), &msgs); err != nil {
		return nil, fmt.Errorf("load messages: %v: %w", err, apperr.ErrStorage)
	}
	return msgs, nil
}
