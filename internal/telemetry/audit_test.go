package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type publisherMock struct {
	mock.Mock
}

func (m *publisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func TestAuditEmitterPublishesEnvelope(t *testing.T) {
	pub := &publisherMock{}
	emitter := NewAuditEmitter(pub, "audit.studygroup", "studygroup-service", "test")
	userID := "6f1c2a4e-8a3b-4c5d-9e7f-0123456789ab"

	pub.On("Publish", mock.Anything, "audit.studygroup", mock.MatchedBy(func(e AuditEnvelope) bool {
		return e.EventType == "audit_log" &&
			e.Service == "studygroup-service" &&
			e.RequestID == "req-1" &&
			e.UserID != nil && *e.UserID == userID &&
			e.Payload.Action == "group.delete"
	})).Return(errors.New("broker down")).Once()

	emitter.Emit(context.Background(), "INFO", "group.delete", "deleted group", "req-1", &userID)
	pub.AssertExpectations(t)
}

func TestNilAuditEmitterIsSafe(t *testing.T) {
	var emitter *AuditEmitter
	require.NotPanics(t, func() {
		emitter.Emit(context.Background(), "INFO", "x", "y", "", nil)
	})
}

func TestInitTracerWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "studygroup-test", "")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
