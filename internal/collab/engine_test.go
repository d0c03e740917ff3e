package collab_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/agenthub/internal/agent"
	agentrepo "github.com/kazz187/agenthub/internal/agent/repositoryimpl"
	"github.com/kazz187/agenthub/internal/collab"
	"github.com/kazz187/agenthub/internal/delegation"
	delegationrepo "github.com/kazz187/agenthub/internal/delegation/repositoryimpl"
	"github.com/kazz187/agenthub/internal/eventbus"
	"github.com/kazz187/agenthub/internal/feature"
	featurerepo "github.com/kazz187/agenthub/internal/feature/repositoryimpl"
	messagerepo "github.com/kazz187/agenthub/internal/message/repositoryimpl"
	"github.com/kazz187/agenthub/internal/subtask"
	subtaskrepo "github.com/kazz187/agenthub/internal/subtask/repositoryimpl"
	taskrepo "github.com/kazz187/agenthub/internal/task/repositoryimpl"
	"github.com/kazz187/agenthub/pkg/cerr"
	"github.com/kazz187/agenthub/pkg/storage"
)

func newEngine(t *testing.T) (*collab.Engine, agent.Repository) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	agentRepo := agentrepo.NewYAMLRepository(store)
	engine := collab.NewEngine(
		featurerepo.NewYAMLRepository(store),
		taskrepo.NewYAMLRepository(store),
		delegationrepo.NewYAMLRepository(store),
		subtaskrepo.NewYAMLRepository(store),
		agentRepo,
		messagerepo.NewYAMLRepository(store),
		eventbus.New(),
	)
	return engine, agentRepo
}

func TestCreateFeature(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	f, err := engine.CreateFeature(ctx, collab.CreateFeatureParams{
		Title:     "payments",
		CreatedBy: "api-aaaaa",
	})
	require.NoError(t, err)
	assert.Equal(t, feature.StatusActive, f.Status)
	assert.Equal(t, "normal", f.Priority)
	assert.NotEmpty(t, f.ID)

	_, err = engine.CreateFeature(ctx, collab.CreateFeatureParams{CreatedBy: "api-aaaaa"})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
}

func TestCreateTaskRequiresActiveFeature(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	// Dangling feature id: no task must be created.
	_, err := engine.CreateTask(ctx, collab.CreateTaskParams{
		FeatureID:   "missing",
		Description: "orphan",
		CreatedBy:   "a",
	})
	assert.True(t, cerr.IsCode(err, cerr.NotFound))

	f, err := engine.CreateFeature(ctx, collab.CreateFeatureParams{Title: "payments", CreatedBy: "a"})
	require.NoError(t, err)

	tk, err := engine.CreateTask(ctx, collab.CreateTaskParams{
		FeatureID:   f.ID,
		Description: "implement checkout",
		CreatedBy:   "a",
	})
	require.NoError(t, err)
	assert.Equal(t, f.ID, tk.FeatureID)

	_, err = engine.AdvanceFeature(ctx, f.ID, feature.StatusCompleted)
	require.NoError(t, err)

	_, err = engine.CreateTask(ctx, collab.CreateTaskParams{
		FeatureID:   f.ID,
		Description: "too late",
		CreatedBy:   "a",
	})
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))

	// The feature still has only the one task.
	detail, err := engine.GetFeature(ctx, f.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Tasks, 1)
}

func TestFeatureLifecycle(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	f, err := engine.CreateFeature(ctx, collab.CreateFeatureParams{Title: "payments", CreatedBy: "a"})
	require.NoError(t, err)

	f, err = engine.AdvanceFeature(ctx, f.ID, feature.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, feature.StatusCompleted, f.Status)

	// Idempotent on the same status.
	f, err = engine.AdvanceFeature(ctx, f.ID, feature.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, feature.StatusCompleted, f.Status)

	// No reopening.
	_, err = engine.AdvanceFeature(ctx, f.ID, feature.StatusActive)
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))

	f, err = engine.AdvanceFeature(ctx, f.ID, feature.StatusArchived)
	require.NoError(t, err)
	assert.Equal(t, feature.StatusArchived, f.Status)

	_, err = engine.AdvanceFeature(ctx, f.ID, feature.StatusCompleted)
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))
}

func TestCreateDelegationsSkipsOpenPairs(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	f, err := engine.CreateFeature(ctx, collab.CreateFeatureParams{Title: "payments", CreatedBy: "a"})
	require.NoError(t, err)
	tk, err := engine.CreateTask(ctx, collab.CreateTaskParams{FeatureID: f.ID, Description: "checkout", CreatedBy: "a"})
	require.NoError(t, err)

	created, err := engine.CreateDelegations(ctx, tk.ID, []string{"b", "c"})
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, delegation.StatePending, created[0].State)

	// b already holds an open delegation for this task.
	created, err = engine.CreateDelegations(ctx, tk.ID, []string{"b", "d"})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "d", created[0].ToAgent)

	// Declining frees the pair for a new offer.
	first, err := engine.CreateDelegations(ctx, tk.ID, []string{"b"})
	require.NoError(t, err)
	assert.Empty(t, first)

	detail, err := engine.GetFeature(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, detail.Tasks, 1)
	var forB *delegation.Delegation
	for _, d := range detail.Tasks[0].Delegations {
		if d.ToAgent == "b" {
			forB = d
		}
	}
	require.NotNil(t, forB)
	_, err = engine.DeclineDelegation(ctx, forB.ID)
	require.NoError(t, err)

	again, err := engine.CreateDelegations(ctx, tk.ID, []string{"b"})
	require.NoError(t, err)
	assert.Len(t, again, 1)
}

func TestCreateDelegationsConcurrent(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	f, err := engine.CreateFeature(ctx, collab.CreateFeatureParams{Title: "payments", CreatedBy: "a"})
	require.NoError(t, err)
	tk, err := engine.CreateTask(ctx, collab.CreateTaskParams{FeatureID: f.ID, Description: "checkout", CreatedBy: "a"})
	require.NoError(t, err)

	// Concurrent offers for the same agent must not slip past each
	// other's open-delegation check.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.CreateDelegations(ctx, tk.ID, []string{"b"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	w, err := engine.GetAgentWorkload(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, w.Delegations, 1)
}

func TestAcceptDelegation(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	f, err := engine.CreateFeature(ctx, collab.CreateFeatureParams{Title: "payments", CreatedBy: "a"})
	require.NoError(t, err)
	tk, err := engine.CreateTask(ctx, collab.CreateTaskParams{FeatureID: f.ID, Description: "checkout", CreatedBy: "a"})
	require.NoError(t, err)
	created, err := engine.CreateDelegations(ctx, tk.ID, []string{"b"})
	require.NoError(t, err)

	d, err := engine.AcceptDelegation(ctx, created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, delegation.StateAccepted, d.State)

	// Accepting again is a no-op.
	d, err = engine.AcceptDelegation(ctx, created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, delegation.StateAccepted, d.State)

	// An accepted delegation cannot be declined.
	_, err = engine.DeclineDelegation(ctx, created[0].ID)
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))

	_, err = engine.AcceptDelegation(ctx, "missing")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestDeclineDelegation(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	f, err := engine.CreateFeature(ctx, collab.CreateFeatureParams{Title: "payments", CreatedBy: "a"})
	require.NoError(t, err)
	tk, err := engine.CreateTask(ctx, collab.CreateTaskParams{FeatureID: f.ID, Description: "checkout", CreatedBy: "a"})
	require.NoError(t, err)
	created, err := engine.CreateDelegations(ctx, tk.ID, []string{"b"})
	require.NoError(t, err)

	d, err := engine.DeclineDelegation(ctx, created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, delegation.StateDeclined, d.State)

	// Declining again is a no-op.
	d, err = engine.DeclineDelegation(ctx, created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, delegation.StateDeclined, d.State)

	// A declined delegation cannot be accepted.
	_, err = engine.AcceptDelegation(ctx, created[0].ID)
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))
}

func TestSubtasks(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	f, err := engine.CreateFeature(ctx, collab.CreateFeatureParams{Title: "payments", CreatedBy: "a"})
	require.NoError(t, err)
	tk, err := engine.CreateTask(ctx, collab.CreateTaskParams{FeatureID: f.ID, Description: "checkout", CreatedBy: "a"})
	require.NoError(t, err)

	created, err := engine.CreateSubtasks(ctx, tk.ID, []string{"schema", "api", "tests"}, "a")
	require.NoError(t, err)
	require.Len(t, created, 3)
	for _, st := range created {
		assert.Equal(t, subtask.StatusTodo, st.Status)
	}

	_, err = engine.CreateSubtasks(ctx, "missing", []string{"x"}, "a")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))

	st, err := engine.UpdateSubtask(ctx, created[0].ID, subtask.StatusDone, "b")
	require.NoError(t, err)
	assert.Equal(t, subtask.StatusDone, st.Status)
	assert.Equal(t, "b", st.UpdatedBy)

	// Any transition is allowed, including leaving done.
	st, err = engine.UpdateSubtask(ctx, created[0].ID, subtask.StatusBlocked, "b")
	require.NoError(t, err)
	assert.Equal(t, subtask.StatusBlocked, st.Status)

	_, err = engine.UpdateSubtask(ctx, created[0].ID, "paused", "b")
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
}

func TestGetAgentWorkload(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	f, err := engine.CreateFeature(ctx, collab.CreateFeatureParams{Title: "payments", CreatedBy: "a"})
	require.NoError(t, err)
	tk, err := engine.CreateTask(ctx, collab.CreateTaskParams{FeatureID: f.ID, Description: "checkout", CreatedBy: "a"})
	require.NoError(t, err)
	created, err := engine.CreateDelegations(ctx, tk.ID, []string{"b"})
	require.NoError(t, err)
	_, err = engine.AcceptDelegation(ctx, created[0].ID)
	require.NoError(t, err)
	subtasks, err := engine.CreateSubtasks(ctx, tk.ID, []string{"schema", "api"}, "b")
	require.NoError(t, err)
	_, err = engine.UpdateSubtask(ctx, subtasks[0].ID, subtask.StatusDone, "b")
	require.NoError(t, err)

	w, err := engine.GetAgentWorkload(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", w.AgentID)
	require.Len(t, w.Delegations, 1)
	assert.Equal(t, delegation.StateAccepted, w.Delegations[0].State)
	require.Len(t, w.Tasks, 1)
	require.Len(t, w.ActiveFeatures, 1)
	// Done subtasks are not open work.
	require.Len(t, w.OpenSubtasks, 1)
	assert.Equal(t, "api", w.OpenSubtasks[0].Description)

	// An uninvolved agent has an empty workload.
	w, err = engine.GetAgentWorkload(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, w.Delegations)
	assert.Empty(t, w.Tasks)
	assert.Empty(t, w.ActiveFeatures)
	assert.Empty(t, w.OpenSubtasks)
}

func TestListFeatures(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	f1, err := engine.CreateFeature(ctx, collab.CreateFeatureParams{Title: "one", CreatedBy: "a"})
	require.NoError(t, err)
	_, err = engine.CreateFeature(ctx, collab.CreateFeatureParams{Title: "two", CreatedBy: "a"})
	require.NoError(t, err)
	_, err = engine.AdvanceFeature(ctx, f1.ID, feature.StatusCompleted)
	require.NoError(t, err)

	all, err := engine.ListFeatures(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := engine.ListFeatures(ctx, feature.StatusActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "two", active[0].Title)

	_, err = engine.ListFeatures(ctx, "bogus")
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
}

func TestHubStatus(t *testing.T) {
	engine, agentRepo := newEngine(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, agentRepo.Create(ctx, &agent.Agent{
		ID: "a", ProjectPath: "/work/a", Role: "backend", Status: agent.StatusActive,
		LastSeen: now, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, agentRepo.Create(ctx, &agent.Agent{
		ID: "b", ProjectPath: "/work/b", Role: "frontend", Status: agent.StatusOffline,
		LastSeen: now, CreatedAt: now, UpdatedAt: now,
	}))

	_, err := engine.CreateFeature(ctx, collab.CreateFeatureParams{Title: "one", CreatedBy: "a"})
	require.NoError(t, err)

	status, err := engine.HubStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.TotalAgents)
	assert.Equal(t, 1, status.Agents[agent.StatusActive])
	assert.Equal(t, 1, status.Agents[agent.StatusOffline])
	assert.Equal(t, 1, status.TotalFeatures)
	assert.Equal(t, 1, status.Features[feature.StatusActive])
	assert.Equal(t, 0, status.TotalMessages)
}
