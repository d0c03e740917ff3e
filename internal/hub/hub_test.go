package hub_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/agenthub/internal/agent"
	agentrepo "github.com/kazz187/agenthub/internal/agent/repositoryimpl"
	"github.com/kazz187/agenthub/internal/collab"
	"github.com/kazz187/agenthub/internal/contextstore"
	contextrepo "github.com/kazz187/agenthub/internal/contextstore/repositoryimpl"
	delegationrepo "github.com/kazz187/agenthub/internal/delegation/repositoryimpl"
	"github.com/kazz187/agenthub/internal/eventbus"
	featurerepo "github.com/kazz187/agenthub/internal/feature/repositoryimpl"
	"github.com/kazz187/agenthub/internal/hub"
	"github.com/kazz187/agenthub/internal/message"
	messagerepo "github.com/kazz187/agenthub/internal/message/repositoryimpl"
	subtaskrepo "github.com/kazz187/agenthub/internal/subtask/repositoryimpl"
	taskrepo "github.com/kazz187/agenthub/internal/task/repositoryimpl"
	tasklogrepo "github.com/kazz187/agenthub/internal/tasklog/repositoryimpl"
	"github.com/kazz187/agenthub/pkg/cerr"
	"github.com/kazz187/agenthub/pkg/storage"
)

func newHub(t *testing.T) *hub.Hub {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	bus := eventbus.New()

	agentRepo := agentrepo.NewYAMLRepository(store)
	messageRepo := messagerepo.NewYAMLRepository(store)
	engine := collab.NewEngine(
		featurerepo.NewYAMLRepository(store),
		taskrepo.NewYAMLRepository(store),
		delegationrepo.NewYAMLRepository(store),
		subtaskrepo.NewYAMLRepository(store),
		agentRepo,
		messageRepo,
		bus,
	)
	return hub.New(
		agent.NewService(agentRepo, bus),
		message.NewService(messageRepo, bus),
		contextstore.NewService(contextrepo.NewYAMLRepository(store), bus),
		engine,
		tasklogrepo.NewYAMLRepository(store),
		hub.StorageInfo{Type: "local", Path: "/tmp"},
	)
}

func register(t *testing.T, h *hub.Hub, project, role string) *hub.RegisterAgentResult {
	t.Helper()
	result, err := h.RegisterAgent(context.Background(), hub.RegisterAgentParams{
		ProjectPath: "/work/" + project,
		Role:        role,
	})
	require.NoError(t, err)
	return result
}

func TestRegisterAgentWelcome(t *testing.T) {
	h := newHub(t)
	ctx := context.Background()

	first := register(t, h, "api", "backend developer")
	assert.True(t, first.Success)
	assert.Equal(t, 0, first.Peers)
	assert.Contains(t, first.Message, first.Agent.ID)
	assert.Contains(t, first.Message, "No other agents")

	// Callers see the outcome and greeting directly on the result.
	encoded, err := json.Marshal(first)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(encoded, &fields))
	assert.Contains(t, fields, "success")
	assert.Contains(t, fields, "message")
	assert.Contains(t, fields, "agent")
	assert.Contains(t, fields, "detectedCapabilities")

	inbox, err := h.GetMessages(ctx, hub.GetMessagesParams{AgentID: first.Agent.ID})
	require.NoError(t, err)
	require.Equal(t, 1, inbox.Count)
	welcome := inbox.Messages[0]
	assert.Equal(t, hub.SystemSender, welcome.From)
	assert.Equal(t, message.TypeContext, welcome.Type)
	assert.Contains(t, welcome.Content, first.Agent.ID)
	assert.Contains(t, welcome.Content, "No other agents")

	second := register(t, h, "web", "frontend developer")
	assert.True(t, second.Success)
	assert.Equal(t, 1, second.Peers)
	assert.Contains(t, second.Message, first.Agent.ID)

	inbox, err = h.GetMessages(ctx, hub.GetMessagesParams{AgentID: second.Agent.ID})
	require.NoError(t, err)
	require.Equal(t, 1, inbox.Count)
	assert.Contains(t, inbox.Messages[0].Content, first.Agent.ID)
	assert.Contains(t, inbox.Messages[0].Content, "backend developer")
}

func TestGetMessagesMarksReadByDefault(t *testing.T) {
	h := newHub(t)
	ctx := context.Background()

	a := register(t, h, "api", "backend developer")
	b := register(t, h, "web", "frontend developer")

	_, err := h.SendMessage(ctx, hub.SendMessageParams{
		From: a.Agent.ID, To: b.Agent.ID, Type: "task", Content: "please review",
	})
	require.NoError(t, err)

	inbox, err := h.GetMessages(ctx, hub.GetMessagesParams{AgentID: b.Agent.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, inbox.Count) // welcome + direct

	peek := false
	inbox, err = h.GetMessages(ctx, hub.GetMessagesParams{AgentID: b.Agent.ID, MarkAsRead: &peek})
	require.NoError(t, err)
	for _, m := range inbox.Messages {
		assert.True(t, m.Read, "message %s should have been marked by the first query", m.ID)
	}
}

func TestGetMessagesBadSince(t *testing.T) {
	h := newHub(t)
	a := register(t, h, "api", "backend developer")

	_, err := h.GetMessages(context.Background(), hub.GetMessagesParams{
		AgentID: a.Agent.ID,
		Since:   "yesterday",
	})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
}

func TestSyncRequestTimeoutIsAnOutcome(t *testing.T) {
	h := newHub(t)
	ctx := context.Background()

	a := register(t, h, "api", "backend developer")
	b := register(t, h, "web", "frontend developer")

	result, err := h.SyncRequest(ctx, hub.SyncRequestParams{
		From:      a.Agent.ID,
		To:        b.Agent.ID,
		Topic:     "which port?",
		TimeoutMS: 600,
	})
	require.NoError(t, err)
	assert.True(t, result.TimedOut)
	assert.Nil(t, result.Response)
	assert.Contains(t, result.Detail, b.Agent.ID)

	// The question reached b's inbox regardless.
	inbox, err := h.GetMessages(ctx, hub.GetMessagesParams{AgentID: b.Agent.ID, Type: "question"})
	require.NoError(t, err)
	require.Equal(t, 1, inbox.Count)
	assert.Equal(t, "which port?", inbox.Messages[0].Content)
}

func TestCreateTaskOffersDelegations(t *testing.T) {
	h := newHub(t)
	ctx := context.Background()

	a := register(t, h, "api", "backend developer")
	b := register(t, h, "web", "frontend developer")

	f, err := h.CreateFeature(ctx, hub.CreateFeatureParams{AgentID: a.Agent.ID, Title: "payments"})
	require.NoError(t, err)

	detail, err := h.CreateTask(ctx, hub.CreateTaskParams{
		AgentID:        a.Agent.ID,
		FeatureID:      f.ID,
		Description:    "checkout page",
		AssignedAgents: []string{b.Agent.ID},
	})
	require.NoError(t, err)
	require.Len(t, detail.Delegations, 1)
	assert.Equal(t, b.Agent.ID, detail.Delegations[0].ToAgent)

	// b was notified about the offer.
	inbox, err := h.GetMessages(ctx, hub.GetMessagesParams{AgentID: b.Agent.ID, Type: "task"})
	require.NoError(t, err)
	require.Equal(t, 1, inbox.Count)
	assert.True(t, strings.Contains(inbox.Messages[0].Content, detail.Task.ID))

	accepted, err := h.AcceptDelegation(ctx, hub.DelegationResponseParams{
		AgentID:      b.Agent.ID,
		DelegationID: detail.Delegations[0].ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "accepted", string(accepted.State))
}

func TestUpdateTaskStatus(t *testing.T) {
	h := newHub(t)
	ctx := context.Background()

	a := register(t, h, "api", "backend developer")

	l, err := h.UpdateTaskStatus(ctx, hub.UpdateTaskStatusParams{
		AgentID:      a.Agent.ID,
		Task:         "migrate billing tables",
		Status:       "in-progress",
		Dependencies: []string{"schema review"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, l.ID)
	assert.Equal(t, a.Agent.ID, l.Agent)

	_, err = h.UpdateTaskStatus(ctx, hub.UpdateTaskStatusParams{
		AgentID: a.Agent.ID,
		Task:    "migrate billing tables",
		Status:  "paused",
	})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))

	_, err = h.UpdateTaskStatus(ctx, hub.UpdateTaskStatusParams{
		AgentID: a.Agent.ID,
		Status:  "started",
	})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
}

func TestSetAndGetContext(t *testing.T) {
	h := newHub(t)
	ctx := context.Background()

	a := register(t, h, "api", "backend developer")

	e, err := h.SetContext(ctx, hub.SetContextParams{
		AgentID: a.Agent.ID,
		Key:     "branch",
		Value:   "main",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, e.Version)

	single, err := h.GetContext(ctx, hub.GetContextParams{AgentID: a.Agent.ID, Key: "branch"})
	require.NoError(t, err)
	require.NotNil(t, single.Entry)
	assert.Equal(t, "main", single.Entry.Value)

	all, err := h.GetContext(ctx, hub.GetContextParams{AgentID: a.Agent.ID})
	require.NoError(t, err)
	assert.Len(t, all.Entries, 1)
}

func TestGetHubStatus(t *testing.T) {
	h := newHub(t)
	ctx := context.Background()

	a := register(t, h, "api", "backend developer")
	register(t, h, "web", "frontend developer")

	_, err := h.CreateFeature(ctx, hub.CreateFeatureParams{AgentID: a.Agent.ID, Title: "payments"})
	require.NoError(t, err)

	status, err := h.GetHubStatus(ctx, hub.GetHubStatusParams{AgentID: a.Agent.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, status.TotalAgents)
	assert.Equal(t, 1, status.TotalFeatures)
	// Two welcome messages plus the feature broadcast.
	assert.Equal(t, 3, status.TotalMessages)
	assert.Equal(t, "local", status.Storage.Type)
}
