package consumer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-loginguard/pkg/models"
)

type call struct {
	in     models.LoginInput
	at     time.Time
	source string
}

type fakeProcessor struct {
	mu    sync.Mutex
	calls []call
}

func (p *fakeProcessor) ProcessLoginAt(_ context.Context, in models.LoginInput, now time.Time, source string) *models.AuditRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call{in: in, at: now, source: source})
	return &models.AuditRecord{Raw: in, Timestamp: now, Classification: models.Normal}
}

type fakeSession struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32 { return nil }
func (s *fakeSession) MemberID() string { return "test" }
func (s *fakeSession) GenerationID() int32 { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string) {}
func (s *fakeSession) Commit() {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context { return s.ctx }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string { return "logins" }
func (c *fakeClaim) Partition() int32 { return 0 }
func (c *fakeClaim) InitialOffset() int64 { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64 { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func TestConsumeClaim_ProcessesAndSkipsMalformed(t *testing.T) {
	proc := &fakeProcessor{}
	c := newConsumer(nil, proc)
	fixed := time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	values := []string{
		`{"ip":"8.8.8.8","user_agent":"Mozilla/5.0 (X11)","identity":2,"role":"Nurse"}`,
		`not json`,
		`{"user_agent":"x","identity":2,"role":"Nurse"}`,
		`{"ip":"1.1.1.1","user_agent":"","user_id":"7","role":"Admin","timestamp":"2024-05-19T03:00:00Z"}`,
		`{"ip":"8.8.8.8","user_agent":"curl/8.0","identity":2}`,
	}
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, len(values))}
	for i, v := range values {
		claim.messages <- &sarama.ConsumerMessage{Topic: "logins", Offset: int64(i), Value: []byte(v)}
	}
	close(claim.messages)

	session := &fakeSession{ctx: context.Background()}
	require.NoError(t, c.ConsumeClaim(session, claim))

	assert.Equal(t, []int64{0, 1, 2, 3, 4}, session.marked)
	require.Len(t, proc.calls, 2)

	assert.Equal(t, "2", proc.calls[0].in.Identity)
	assert.Equal(t, fixed, proc.calls[0].at)
	assert.Equal(t, "kafka", proc.calls[0].source)

	assert.Equal(t, "7", proc.calls[1].in.Identity)
	assert.Equal(t, time.Date(2024, 5, 19, 3, 0, 0, 0, time.UTC), proc.calls[1].at.UTC())
}

func TestConsumeClaim_StopsOnSessionDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := newConsumer(nil, &fakeProcessor{})
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage)}

	done := make(chan error, 1)
	go func() { done <- c.ConsumeClaim(&fakeSession{ctx: ctx}, claim) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("ConsumeClaim did not return after cancellation")
	}
}

func TestDecodeEvent_Identity(t *testing.T) {
	in, at, err := decodeEvent([]byte(`{"ip":"1.1.1.1","user_agent":"ua","role":"Nurse","identity":"alice","user_id":3}`))
	require.NoError(t, err)
	assert.Equal(t, "alice", in.Identity)
	assert.True(t, at.IsZero())

	_, _, err = decodeEvent([]byte(`{"ip":"1.1.1.1","user_agent":"ua","role":"Nurse","identity":true}`))
	assert.ErrorIs(t, err, models.ErrWrongType)

	_, _, err = decodeEvent([]byte(`{"ip":"1.1.1.1","user_agent":"ua","role":"Nurse"}`))
	assert.ErrorIs(t, err, models.ErrMissingField)
	assert.ErrorContains(t, err, "identity")
}

func TestDecodeEvent_RequiresSameFieldsAsAPI(t *testing.T) {
	cases := map[string]string{
		"missing role":       `{"ip":"8.8.8.8","user_agent":"ua","identity":2}`,
		"missing user_agent": `{"ip":"8.8.8.8","role":"Nurse","identity":2}`,
		"missing ip":         `{"user_agent":"ua","role":"Nurse","identity":2}`,
		"numeric role":       `{"ip":"8.8.8.8","user_agent":"ua","role":3,"identity":2}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := decodeEvent([]byte(body))
			assert.Error(t, err)
		})
	}

	_, _, err := decodeEvent([]byte(`{"ip":"8.8.8.8","user_agent":"ua","role":"Nurse","identity":2,"timestamp":"yesterday"}`))
	assert.Error(t, err)
}

func TestConsumeClaim_MissingRoleIsNotClassified(t *testing.T) {
	proc := &fakeProcessor{}
	c := newConsumer(nil, proc)

	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 1)}
	claim.messages <- &sarama.ConsumerMessage{Topic: "logins", Offset: 7, Value: []byte(`{"ip":"8.8.8.8","user_agent":"ua","identity":2}`)}
	close(claim.messages)

	session := &fakeSession{ctx: context.Background()}
	require.NoError(t, c.ConsumeClaim(session, claim))

	assert.Equal(t, []int64{7}, session.marked)
	assert.Empty(t, proc.calls)
}

func TestInitialOffset(t *testing.T) {
	assert.Equal(t, sarama.OffsetOldest, initialOffset("oldest"))
	assert.Equal(t, sarama.OffsetOldest, initialOffset("OLDEST"))
	assert.Equal(t, sarama.OffsetNewest, initialOffset("newest"))
	assert.Equal(t, sarama.OffsetNewest, initialOffset(""))
}
