package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/neattend/neattend-api/internal/dto"
	"github.com/neattend/neattend-api/internal/models"
	"github.com/neattend/neattend-api/pkg/jobs"
	"github.com/neattend/neattend-api/pkg/mailer"
)

const (
	jobTypeCredentials   = "credentials"
	jobTypeUploadSummary = "upload_summary"
)

// CredentialNotice carries the login details mailed to one onboarded account.
// The plaintext password only lives in the notice until the mail is sent.
type CredentialNotice struct {
	Name       string
	Email      string
	Identifier string
	Password   string
	Role       models.UserRole
}

type uploadSummaryNotice struct {
	ToName    string
	ToAddress string
	Kind      string
	Summary   dto.UploadSummary
}

// NotificationService dispatches onboarding emails through the background
// queue so uploads never block on mail I/O. Delivery failures are logged and
// retried by the queue; they never fail the upload that triggered them.
type NotificationService struct {
	mailer  mailer.Mailer
	queue   jobDispatcher
	logger  *zap.Logger
	enabled bool
}

// NewNotificationService constructs the notification service. The queue may
// be nil when notifications are disabled; dispatch then becomes a no-op.
func NewNotificationService(m mailer.Mailer, queue jobDispatcher, logger *zap.Logger, enabled bool) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{mailer: m, queue: queue, logger: logger, enabled: enabled}
}

// Enabled reports whether notifications will actually be dispatched.
func (s *NotificationService) Enabled() bool {
	return s != nil && s.enabled && s.mailer != nil && s.queue != nil
}

// NotifyCredentials enqueues one welcome email per created account.
func (s *NotificationService) NotifyCredentials(notices []CredentialNotice) {
	if !s.Enabled() {
		return
	}
	for _, notice := range notices {
		if err := s.queue.Enqueue(jobs.Job{Type: jobTypeCredentials, Payload: notice}); err != nil {
			s.logger.Warn("enqueue credential notification failed",
				zap.String("email", notice.Email), zap.Error(err))
		}
	}
}

// NotifyUploadSummary enqueues the post-upload digest for the initiating admin.
func (s *NotificationService) NotifyUploadSummary(toName, toAddress, kind string, summary dto.UploadSummary) {
	if !s.Enabled() || toAddress == "" {
		return
	}
	notice := uploadSummaryNotice{ToName: toName, ToAddress: toAddress, Kind: kind, Summary: summary}
	if err := s.queue.Enqueue(jobs.Job{Type: jobTypeUploadSummary, Payload: notice}); err != nil {
		s.logger.Warn("enqueue upload summary failed", zap.String("email", toAddress), zap.Error(err))
	}
}

// Handle processes one queued notification job. Wired as the queue handler.
func (s *NotificationService) Handle(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case jobTypeCredentials:
		notice, ok := job.Payload.(CredentialNotice)
		if !ok {
			return fmt.Errorf("unexpected payload %T for credential job", job.Payload)
		}
		return s.sendCredentials(ctx, notice)
	case jobTypeUploadSummary:
		notice, ok := job.Payload.(uploadSummaryNotice)
		if !ok {
			return fmt.Errorf("unexpected payload %T for summary job", job.Payload)
		}
		return s.sendUploadSummary(ctx, notice)
	default:
		return fmt.Errorf("unknown notification job type %q", job.Type)
	}
}

func (s *NotificationService) sendCredentials(ctx context.Context, notice CredentialNotice) error {
	body := fmt.Sprintf(
		"Hello %s,\n\nYour NE-ATTEND account has been created.\n\nLogin email: %s\nID: %s\nTemporary password: %s\n\nPlease sign in and change your password.\n",
		notice.Name, notice.Email, notice.Identifier, notice.Password)
	return s.mailer.Send(ctx, mailer.Message{
		ToName:    notice.Name,
		ToAddress: notice.Email,
		Subject:   "Your NE-ATTEND account",
		TextBody:  body,
	})
}

func (s *NotificationService) sendUploadSummary(ctx context.Context, notice uploadSummaryNotice) error {
	body := fmt.Sprintf(
		"Bulk %s upload finished.\n\nRows processed: %d\nCreated: %d\nFailed: %d\n",
		notice.Kind, notice.Summary.TotalRows, notice.Summary.CreatedCount, notice.Summary.FailedCount)
	for _, rowErr := range notice.Summary.RowErrors {
		for _, msg := range rowErr.Errors {
			body += fmt.Sprintf("  row %d: %s\n", rowErr.RowIndex+1, msg)
		}
	}
	return s.mailer.Send(ctx, mailer.Message{
		ToName:    notice.ToName,
		ToAddress: notice.ToAddress,
		Subject:   fmt.Sprintf("NE-ATTEND %s upload summary", notice.Kind),
		TextBody:  body,
	})
}
