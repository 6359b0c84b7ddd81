package submission

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/daap14/adminportal/internal/notify"
)

// Service stores contact form submissions and lets staff triage them.
type Service struct {
	repo   Repository
	sender notify.Sender
	inbox  string
}

// NewService creates a submission Service that notifies inbox of new submissions.
func NewService(repo Repository, sender notify.Sender, inbox string) *Service {
	return &Service{repo: repo, sender: sender, inbox: inbox}
}

// Submit stores d and then emails the inbox and the submitter. Email failures
// are logged; the stored submission is returned either way.
func (s *Service) Submit(ctx context.Context, d notify.ContactDetails) (*Submission, error) {
	sub := &Submission{
		Name:         strings.TrimSpace(d.Name),
		Email:        strings.TrimSpace(d.Email),
		Phone:        strings.TrimSpace(d.Phone),
		Organization: strings.TrimSpace(d.Organization),
		Message:      strings.TrimSpace(d.Message),
	}
	if sub.Name == "" || sub.Email == "" || sub.Message == "" {
		return nil, ErrInvalidInput
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, err
	}
	slog.Info("contact submission stored", "submissionId", sub.ID)

	if msg, err := notify.ContactInboxEmail(s.inbox, d); err != nil {
		slog.Error("failed to render inbox notification", "error", err)
	} else if err := s.sender.Send(ctx, msg); err != nil {
		slog.Warn("failed to notify contact inbox", "submissionId", sub.ID, "error", err)
	}
	if msg, err := notify.ContactReceiptEmail(d); err != nil {
		slog.Error("failed to render contact receipt", "error", err)
	} else if err := s.sender.Send(ctx, msg); err != nil {
		slog.Warn("failed to send contact receipt", "submissionId", sub.ID, "error", err)
	}
	return sub, nil
}

// List returns submissions filtered by status; "" and "all" return everything.
func (s *Service) List(ctx context.Context, status string) ([]Submission, error) {
	if status == "all" {
		status = ""
	}
	if status != "" && !ValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	return s.repo.List(ctx, status)
}

// UpdateStatus moves a submission to status.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Submission, error) {
	if !ValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	sub, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, fmt.Errorf("updating submission status: %w", err)
	}
	return sub, nil
}

// MarkRead sets the read flag of a submission.
func (s *Service) MarkRead(ctx context.Context, id uuid.UUID, read bool) (*Submission, error) {
	sub, err := s.repo.SetRead(ctx, id, read)
	if err != nil {
		return nil, fmt.Errorf("marking submission read: %w", err)
	}
	return sub, nil
}
