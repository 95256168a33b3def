package eventstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formbridge.dev/formbridge/internal/domain"
)

func evt(submissionID string, version int, typ domain.EventType) *domain.IntakeEvent {
	return &domain.IntakeEvent{
		EventID: "evt_" + submissionID + "_" + time.Now().String(),
		Type: typ,
		SubmissionID: submissionID,
		Timestamp: time.Now(),
		Version: version,
	}
}

func TestAppend_MonotonicVersion(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "sub_1", evt("sub_1", 1, domain.EventSubmissionCreated)))
	require.NoError(t, s.Append(ctx, "sub_1", evt("sub_1", 2, domain.EventFieldUpdated)))

	err := s.Append(ctx, "sub_1", evt("sub_1", 4, domain.EventFieldUpdated))
	assert.Error(t, err)
}

func TestAppend_DuplicateEventID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	e := evt("sub_1", 1, domain.EventSubmissionCreated)

	require.NoError(t, s.Append(ctx, "sub_1", e))

	dup := evt("sub_1", 2, domain.EventFieldUpdated)
	dup.EventID = e.EventID
	assert.Error(t, s.Append(ctx, "sub_1", dup))
}

func TestQuery_FilterByType(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, "s1", evt("s1", 1, domain.EventSubmissionCreated)))
	require.NoError(t, s.Append(ctx, "s1", evt("s1", 2, domain.EventFieldUpdated)))
	require.NoError(t, s.Append(ctx, "s1", evt("s1", 3, domain.EventFieldUpdated)))

	events, err := s.Query(ctx, "s1", Filter{Types: []domain.EventType{domain.EventFieldUpdated}, Limit: -1})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestQuery_LimitZero_ReturnsEmpty_CountReflectsAll(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, "s1", evt("s1", 1, domain.EventSubmissionCreated)))
	require.NoError(t, s.Append(ctx, "s1", evt("s1", 2, domain.EventFieldUpdated)))

	events, err := s.Query(ctx, "s1", Filter{Limit: 0})
	require.NoError(t, err)
	assert.Empty(t, events)

	count, err := s.Count(ctx, "s1", Filter{Limit: 0})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestQuery_Pagination(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		require.NoError(t, s.Append(ctx, "s1", evt("s1", i, domain.EventFieldUpdated)))
	}

	page, err := s.Query(ctx, "s1", Filter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, 3, page[0].Version)
}

func TestRedact_RemovesResumeToken(t *testing.T) {
	e := &domain.IntakeEvent{Payload: map[string]any{"resumeToken": "rtok_x", "field": "a"}}
	redacted := Redact(e)
	_, hasToken := redacted.Payload["resumeToken"]
	assert.False(t, hasToken)
	assert.Equal(t, "a", redacted.Payload["field"])
}

func TestConcurrentAppends_DifferentSubmissions(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	done := make(chan struct{}, 2)

	go func() {
		_ = s.Append(ctx, "a", evt("a", 1, domain.EventSubmissionCreated))
		done <- struct{}{}
	}()
	go func() {
		_ = s.Append(ctx, "b", evt("b", 1, domain.EventSubmissionCreated))
		done <- struct{}{}
	}()
	<-done
	<-done

	countA, _ := s.Count(ctx, "a", Filter{})
	countB, _ := s.Count(ctx, "b", Filter{})
	assert.Equal(t, 1, countA)
	assert.Equal(t, 1, countB)
}
