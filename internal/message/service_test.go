package message_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/agenthub/internal/eventbus"
	"github.com/kazz187/agenthub/internal/message"
	"github.com/kazz187/agenthub/internal/message/repositoryimpl"
	"github.com/kazz187/agenthub/pkg/cerr"
	"github.com/kazz187/agenthub/pkg/storage"
)

func newMessageService(t *testing.T) *message.Service {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return message.NewService(repositoryimpl.NewYAMLRepository(store), eventbus.New())
}

func TestSendValidation(t *testing.T) {
	svc := newMessageService(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, message.SendParams{To: "b", Type: message.TypeContext, Content: "hi"})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))

	_, err = svc.Send(ctx, message.SendParams{From: "a", To: "b", Type: "gossip", Content: "hi"})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))

	m, err := svc.Send(ctx, message.SendParams{From: "a", To: "b", Type: message.TypeContext, Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, message.PriorityNormal, m.Priority)
	assert.NotEmpty(t, m.ID)
}

func TestQueryDirectAndBroadcast(t *testing.T) {
	svc := newMessageService(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, message.SendParams{From: "a", To: "b", Type: message.TypeTask, Content: "direct"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, message.SendParams{From: "a", To: message.Broadcast, Type: message.TypeContext, Content: "everyone"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, message.SendParams{From: "b", To: "c", Type: message.TypeTask, Content: "not for b"})
	require.NoError(t, err)

	result, err := svc.Query(ctx, message.QueryParams{AgentID: "b", MarkAsRead: true})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)

	// The sender does not see its own broadcast.
	result, err = svc.Query(ctx, message.QueryParams{AgentID: "a"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Count)

	// c sees its direct message plus a's broadcast.
	result, err = svc.Query(ctx, message.QueryParams{AgentID: "c"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
}

func TestQueryMarkAsRead(t *testing.T) {
	svc := newMessageService(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, message.SendParams{From: "a", To: "b", Type: message.TypeTask, Content: "direct"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, message.SendParams{From: "a", To: message.Broadcast, Type: message.TypeContext, Content: "everyone"})
	require.NoError(t, err)

	// Peek first: nothing is marked.
	result, err := svc.Query(ctx, message.QueryParams{AgentID: "b", MarkAsRead: false})
	require.NoError(t, err)
	for _, m := range result.Messages {
		assert.False(t, m.Read)
	}

	result, err = svc.Query(ctx, message.QueryParams{AgentID: "b", MarkAsRead: true})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)

	// Direct messages stay marked; broadcasts are never mutated, so
	// another recipient still sees the broadcast unread.
	result, err = svc.Query(ctx, message.QueryParams{AgentID: "b", MarkAsRead: false})
	require.NoError(t, err)
	for _, m := range result.Messages {
		if m.To == message.Broadcast {
			assert.False(t, m.Read)
		} else {
			assert.True(t, m.Read)
		}
	}
}

func TestQueryFilters(t *testing.T) {
	svc := newMessageService(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, message.SendParams{From: "a", To: "b", Type: message.TypeTask, Content: "one"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, message.SendParams{From: "a", To: "b", Type: message.TypeQuestion, Content: "two"})
	require.NoError(t, err)

	result, err := svc.Query(ctx, message.QueryParams{AgentID: "b", Type: message.TypeQuestion})
	require.NoError(t, err)
	require.Equal(t, 1, result.Count)
	assert.Equal(t, "two", result.Messages[0].Content)

	result, err = svc.Query(ctx, message.QueryParams{AgentID: "b", Since: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Count)
}

func TestSyncRequestReply(t *testing.T) {
	svc := newMessageService(t)
	ctx := context.Background()

	// The target agent answers on the question's thread.
	go func() {
		for i := 0; i < 50; i++ {
			result, err := svc.Query(ctx, message.QueryParams{AgentID: "b", Type: message.TypeQuestion})
			if err == nil && result.Count > 0 {
				q := result.Messages[0]
				_, _ = svc.Send(ctx, message.SendParams{
					From:     "b",
					To:       q.From,
					Type:     message.TypeContext,
					Content:  "42",
					ThreadID: q.ThreadID,
				})
				return
			}
			time.Sleep(50 * time.Millisecond)
		}
	}()

	reply, err := svc.SyncRequest(ctx, "a", "b", "what is the answer?", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "42", reply.Content)
	assert.Equal(t, "b", reply.From)
	assert.NotEmpty(t, reply.ThreadID)
}

func TestSyncRequestTimeout(t *testing.T) {
	svc := newMessageService(t)
	ctx := context.Background()

	_, err := svc.SyncRequest(ctx, "a", "b", "anyone there?", 600*time.Millisecond)
	assert.True(t, cerr.IsCode(err, cerr.DeadlineExceeded))

	// The question itself was delivered and remains queryable.
	result, err := svc.Query(ctx, message.QueryParams{AgentID: "b"})
	require.NoError(t, err)
	require.Equal(t, 1, result.Count)
	assert.Equal(t, message.TypeQuestion, result.Messages[0].Type)
	assert.Equal(t, message.PriorityUrgent, result.Messages[0].Priority)
}

func TestSyncRequestRejectsBroadcast(t *testing.T) {
	svc := newMessageService(t)

	_, err := svc.SyncRequest(context.Background(), "a", message.Broadcast, "hello all", time.Second)
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
}
