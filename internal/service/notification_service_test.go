package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/neattend/neattend-api/internal/dto"
	"github.com/neattend/neattend-api/internal/models"
	"github.com/neattend/neattend-api/pkg/jobs"
	"github.com/neattend/neattend-api/pkg/mailer"
)

type mockMailer struct {
	sent    []mailer.Message
	sendErr error
}

func (m *mockMailer) Send(ctx context.Context, msg mailer.Message) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, msg)
	return nil
}

type mockQueue struct {
	jobs       []jobs.Job
	enqueueErr error
}

func (m *mockQueue) Enqueue(job jobs.Job) error {
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func TestNotificationServiceEnqueuesCredentialJobs(t *testing.T) {
	queue := &mockQueue{}
	svc := NewNotificationService(&mockMailer{}, queue, zap.NewNop(), true)

	svc.NotifyCredentials([]CredentialNotice{
		{Name: "Ana Reyes", Email: "ana@example.com", Identifier: "1001", Password: "Ana@1001", Role: models.RoleStudent},
		{Name: "Ben Cruz", Email: "ben@example.com", Identifier: "1002", Password: "Ben@1002", Role: models.RoleStudent},
	})
	require.Len(t, queue.jobs, 2)
	assert.Equal(t, "credentials", queue.jobs[0].Type)
}

func TestNotificationServiceDisabledIsNoop(t *testing.T) {
	queue := &mockQueue{}
	svc := NewNotificationService(&mockMailer{}, queue, zap.NewNop(), false)

	svc.NotifyCredentials([]CredentialNotice{{Email: "ana@example.com"}})
	svc.NotifyUploadSummary("Registrar", "registrar@neattend.edu", "students", dto.UploadSummary{})
	assert.Empty(t, queue.jobs)
	assert.False(t, svc.Enabled())

	var nilSvc *NotificationService
	assert.False(t, nilSvc.Enabled())
}

func TestNotificationServiceHandleSendsCredentialMail(t *testing.T) {
	m := &mockMailer{}
	svc := NewNotificationService(m, &mockQueue{}, zap.NewNop(), true)

	err := svc.Handle(context.Background(), jobs.Job{
		Type: "credentials",
		Payload: CredentialNotice{
			Name: "Ana Reyes", Email: "ana@example.com", Identifier: "1001", Password: "Ana@1001",
		},
	})
	require.NoError(t, err)
	require.Len(t, m.sent, 1)
	assert.Equal(t, "ana@example.com", m.sent[0].ToAddress)
	assert.Contains(t, m.sent[0].TextBody, "Ana@1001")
}

func TestNotificationServiceHandleSendsSummaryMail(t *testing.T) {
	m := &mockMailer{}
	svc := NewNotificationService(m, &mockQueue{}, zap.NewNop(), true)

	err := svc.Handle(context.Background(), jobs.Job{
		Type: "upload_summary",
		Payload: uploadSummaryNotice{
			ToName:    "Registrar",
			ToAddress: "registrar@neattend.edu",
			Kind:      "students",
			Summary:   dto.UploadSummary{TotalRows: 3, CreatedCount: 2, FailedCount: 1},
		},
	})
	require.NoError(t, err)
	require.Len(t, m.sent, 1)
	assert.Contains(t, m.sent[0].Subject, "students")
	assert.Contains(t, m.sent[0].TextBody, "Created: 2")
}

func TestNotificationServiceHandleRejectsBadJobs(t *testing.T) {
	svc := NewNotificationService(&mockMailer{}, &mockQueue{}, zap.NewNop(), true)

	err := svc.Handle(context.Background(), jobs.Job{Type: "credentials", Payload: "not a notice"})
	require.Error(t, err)

	err = svc.Handle(context.Background(), jobs.Job{Type: "mystery"})
	require.Error(t, err)
}

func TestNotificationServiceHandlePropagatesSendErrors(t *testing.T) {
	m := &mockMailer{sendErr: errors.New("smtp down")}
	svc := NewNotificationService(m, &mockQueue{}, zap.NewNop(), true)

	err := svc.Handle(context.Background(), jobs.Job{Type: "credentials", Payload: CredentialNotice{Email: "a@b.c"}})
	require.Error(t, err, "queue retries on returned errors")
}
