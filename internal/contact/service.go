// Package contact stores contact-form submissions for admin review.
package contact

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abelsonz/rideunited/internal/kv"
	"github.com/abelsonz/rideunited/internal/shared/apperr"
)

const submissionsIdx = "contact:submissions"

func submissionKey(id string) string { return "contact:" + id }

// Submission is one contact-form message. Read flips once an admin has
// seen it.
type Submission struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

type Service struct {
	store *kv.Store
	now   func() time.Time
}

func NewService(store *kv.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Create validates and stores a new submission.
func (s *Service) Create(ctx context.Context, name, email, subject, message string) (Submission, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" || strings.TrimSpace(message) == "" {
		return Submission{}, fmt.Errorf("name, email, and message are required: %w", apperr.ErrValidation)
	}

	sub := Submission{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Subject:   subject,
		Message:   message,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Set(ctx, submissionKey(sub.ID), sub); err != nil {
		return Submission{}, fmt.Errorf("store submission: %v: %w", err, apperr.ErrStorage)
	}
	if err := s.store.AppendID(ctx, submissionsIdx, sub.ID); err != nil {
		return Submission{}, fmt.Errorf("index submission: %v: %w", err, apperr.ErrStorage)
	}
	return sub, nil
}

// List returns all submissions, newest first, skipping stale index
// entries.
func (s *Service) List(ctx context.Context) ([]Submission, error) {
	ids, err := s.store.IDs(ctx, submissionsIdx)
	if err != nil {
		return nil, fmt.Errorf("list submission ids: %v: %w", err, apperr.ErrStorage)
	}
	if len(ids) == 0 {
		return []Submission{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = submissionKey(id)
	}
	payloads, err := s.store.MGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load submissions: %v: %w", err, apperr.ErrStorage)
	}

	subs := make([]Submission, 0, len(payloads))
	for _, payload := range payloads {
		if payload == nil {
			continue
		}
		var sub Submission
		if err := json.Unmarshal(payload, &sub); err != nil {
			continue
		}
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].CreatedAt.After(subs[j].CreatedAt)
	})
	return subs, nil
}

// MarkRead flags a submission as seen by an admin.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	var sub Submission
	found, err := s.store.Get(ctx, submissionKey(id), &sub)
	if err != nil {
		return fmt.Errorf("load submission: %v: %w", err, apperr.ErrStorage)
	}
	if !found {
		return fmt.Errorf("submission %s not found: %w", id, apperr.ErrNotFound)
	}
	if sub.Read {
		return nil
	}
	sub.Read = true
	if err := s.store.Set(ctx, submissionKey(id), sub); err != nil {
		return fmt.Errorf("store submission: %v: %w", err, apperr.ErrStorage)
	}
	return nil
}
