package collab

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kazz187/agenthub/internal/agent"
	"github.com/kazz187/agenthub/internal/delegation"
	"github.com/kazz187/agenthub/internal/eventbus"
	"github.com/kazz187/agenthub/internal/feature"
	"github.com/kazz187/agenthub/internal/message"
	"github.com/kazz187/agenthub/internal/subtask"
	"github.com/kazz187/agenthub/internal/task"
	"github.com/kazz187/agenthub/pkg/cerr"
)

// Engine drives the feature → task → delegation → subtask workflow.
// Every transition re-reads its referenced entities from storage before
// deciding; nothing is cached between calls because other processes
// write the same collections.
type Engine struct {
	featureRepo    feature.Repository
	taskRepo       task.Repository
	delegationRepo delegation.Repository
	subtaskRepo    subtask.Repository
	agentRepo      agent.Repository
	messageRepo    message.Repository
	bus            *eventbus.Bus

	// delegationMu serializes the check-and-create in CreateDelegations.
	// Without it, two concurrent offers could both miss each other's open
	// delegation and create duplicates for the same task and agent.
	delegationMu sync.Mutex
}

func NewEngine(
	featureRepo feature.Repository,
	taskRepo task.Repository,
	delegationRepo delegation.Repository,
	subtaskRepo subtask.Repository,
	agentRepo agent.Repository,
	messageRepo message.Repository,
	bus *eventbus.Bus,
) *Engine {
	return &Engine{
		featureRepo:    featureRepo,
		taskRepo:       taskRepo,
		delegationRepo: delegationRepo,
		subtaskRepo:    subtaskRepo,
		agentRepo:      agentRepo,
		messageRepo:    messageRepo,
		bus:            bus,
	}
}

type CreateFeatureParams struct {
	Title       string
	Description string
	Priority    string
	CreatedBy   string
}

func (e *Engine) CreateFeature(ctx context.Context, params CreateFeatureParams) (*feature.Feature, error) {
	if params.Title == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "title is required", nil)
	}
	if params.Priority == "" {
		params.Priority = "normal"
	}
	now := time.Now()
	f := &feature.Feature{
		ID:          ulid.Make().String(),
		Title:       params.Title,
		Description: params.Description,
		Status:      feature.StatusActive,
		Priority:    params.Priority,
		CreatedBy:   params.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.featureRepo.Create(ctx, f); err != nil {
		return nil, err
	}
	e.bus.PublishNew(eventbus.FeatureCreated, f.ID, map[string]string{"created_by": f.CreatedBy})
	return f, nil
}

// AdvanceFeature moves a feature forward along
// active → completed → archived. Reopening is not supported.
func (e *Engine) AdvanceFeature(ctx context.Context, id string, next feature.Status) (*feature.Feature, error) {
	if !next.Valid() {
		return nil, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("invalid feature status %q", next), nil)
	}
	f, err := e.featureRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Status == next {
		return f, nil
	}
	if !f.Status.CanAdvanceTo(next) {
		return nil, cerr.NewError(cerr.FailedPrecondition,
			fmt.Sprintf("feature cannot move from %s to %s", f.Status, next), nil)
	}
	f.Status = next
	f.UpdatedAt = time.Now()
	if err := e.featureRepo.Update(ctx, f); err != nil {
		return nil, err
	}
	eventType := eventbus.FeatureCompleted
	if next == feature.StatusArchived {
		eventType = eventbus.FeatureArchived
	}
	e.bus.PublishNew(eventType, f.ID, nil)
	return f, nil
}

type CreateTaskParams struct {
	FeatureID      string
	Description    string
	AssignedAgents []string
	CreatedBy      string
}

func (e *Engine) CreateTask(ctx context.Context, params CreateTaskParams) (*task.Task, error) {
	if params.Description == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "description is required", nil)
	}
	f, err := e.featureRepo.Get(ctx, params.FeatureID)
	if err != nil {
		return nil, err
	}
	if f.Status != feature.StatusActive {
		return nil, cerr.NewError(cerr.FailedPrecondition,
			fmt.Sprintf("feature %s is %s, tasks can only be created under an active feature", f.ID, f.Status), nil)
	}

	now := time.Now()
	t := &task.Task{
		ID:             ulid.Make().String(),
		FeatureID:      f.ID,
		Description:    params.Description,
		AssignedAgents: params.AssignedAgents,
		Status:         task.StatusOpen,
		CreatedBy:      params.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.taskRepo.Create(ctx, t); err != nil {
		return nil, err
	}
	e.bus.PublishNew(eventbus.TaskCreated, t.ID, map[string]string{"feature_id": f.ID})
	return t, nil
}

// CreateDelegations offers a task to each named agent. An agent that
// already holds a pending or accepted delegation for the task is
// skipped, keeping the one-open-delegation-per-pair invariant. Each
// delegation is an independent write: a crash mid-loop leaves the
// earlier ones in place, which callers must tolerate.
func (e *Engine) CreateDelegations(ctx context.Context, taskID string, toAgents []string) ([]*delegation.Delegation, error) {
	if len(toAgents) == 0 {
		return nil, cerr.NewError(cerr.InvalidArgument, "at least one agent is required", nil)
	}
	t, err := e.taskRepo.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	f, err := e.featureRepo.Get(ctx, t.FeatureID)
	if err != nil {
		return nil, err
	}
	if f.Status != feature.StatusActive {
		return nil, cerr.NewError(cerr.FailedPrecondition,
			fmt.Sprintf("feature %s is %s, its tasks cannot be delegated", f.ID, f.Status), nil)
	}

	e.delegationMu.Lock()
	defer e.delegationMu.Unlock()

	existing, err := e.delegationRepo.List(ctx, taskID, "")
	if err != nil {
		return nil, err
	}
	open := map[string]bool{}
	for _, d := range existing {
		if d.State.Open() {
			open[d.ToAgent] = true
		}
	}

	var created []*delegation.Delegation
	now := time.Now()
	for _, agentID := range toAgents {
		if agentID == "" || open[agentID] {
			continue
		}
		open[agentID] = true
		d := &delegation.Delegation{
			ID:        ulid.Make().String(),
			TaskID:    taskID,
			ToAgent:   agentID,
			State:     delegation.StatePending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := e.delegationRepo.Create(ctx, d); err != nil {
			return nil, err
		}
		e.bus.PublishNew(eventbus.DelegationCreated, d.ID, map[string]string{
			"task_id":  taskID,
			"to_agent": agentID,
		})
		created = append(created, d)
	}
	return created, nil
}

// AcceptDelegation transitions pending → accepted. Accepting an
// already-accepted delegation is a no-op that returns the existing
// state; a declined or missing delegation is an error.
func (e *Engine) AcceptDelegation(ctx context.Context, id string) (*delegation.Delegation, error) {
	d, err := e.delegationRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch d.State {
	case delegation.StateAccepted:
		return d, nil
	case delegation.StateDeclined:
		return nil, cerr.NewError(cerr.FailedPrecondition, "delegation was declined and cannot be accepted", nil)
	}
	d.State = delegation.StateAccepted
	d.UpdatedAt = time.Now()
	if err := e.delegationRepo.Update(ctx, d); err != nil {
		return nil, err
	}
	e.bus.PublishNew(eventbus.DelegationUpdated, d.ID, map[string]string{"state": string(d.State)})
	return d, nil
}

// DeclineDelegation transitions pending → declined. Declining twice is
// a no-op; an accepted delegation cannot be declined.
func (e *Engine) DeclineDelegation(ctx context.Context, id string) (*delegation.Delegation, error) {
	d, err := e.delegationRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch d.State {
	case delegation.StateDeclined:
		return d, nil
	case delegation.StateAccepted:
		return nil, cerr.NewError(cerr.FailedPrecondition, "delegation was accepted and cannot be declined", nil)
	}
	d.State = delegation.StateDeclined
	d.UpdatedAt = time.Now()
	if err := e.delegationRepo.Update(ctx, d); err != nil {
		return nil, err
	}
	e.bus.PublishNew(eventbus.DelegationUpdated, d.ID, map[string]string{"state": string(d.State)})
	return d, nil
}

func (e *Engine) CreateSubtasks(ctx context.Context, taskID string, descriptions []string, createdBy string) ([]*subtask.Subtask, error) {
	if len(descriptions) == 0 {
		return nil, cerr.NewError(cerr.InvalidArgument, "at least one subtask description is required", nil)
	}
	if _, err := e.taskRepo.Get(ctx, taskID); err != nil {
		return nil, err
	}

	now := time.Now()
	created := make([]*subtask.Subtask, 0, len(descriptions))
	for _, desc := range descriptions {
		if desc == "" {
			continue
		}
		st := &subtask.Subtask{
			ID:          ulid.Make().String(),
			TaskID:      taskID,
			Description: desc,
			Status:      subtask.StatusTodo,
			UpdatedBy:   createdBy,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := e.subtaskRepo.Create(ctx, st); err != nil {
			return nil, err
		}
		e.bus.PublishNew(eventbus.SubtaskCreated, st.ID, map[string]string{"task_id": taskID})
		created = append(created, st)
	}
	if len(created) == 0 {
		return nil, cerr.NewError(cerr.InvalidArgument, "at least one subtask description is required", nil)
	}
	return created, nil
}

func (e *Engine) UpdateSubtask(ctx context.Context, id string, status subtask.Status, updatedBy string) (*subtask.Subtask, error) {
	if !status.Valid() {
		return nil, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("invalid subtask status %q", status), nil)
	}
	st, err := e.subtaskRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	st.Status = status
	st.UpdatedBy = updatedBy
	st.UpdatedAt = time.Now()
	if err := e.subtaskRepo.Update(ctx, st); err != nil {
		return nil, err
	}
	e.bus.PublishNew(eventbus.SubtaskUpdated, st.ID, map[string]string{"status": string(status)})
	return st, nil
}

// Workload is a read-only snapshot of everything touching one agent.
type Workload struct {
	AgentID        string                   `json:"agentId"`
	ActiveFeatures []*feature.Feature       `json:"activeFeatures"`
	Tasks          []*task.Task             `json:"tasks"`
	Delegations    []*delegation.Delegation `json:"delegations"`
	OpenSubtasks   []*subtask.Subtask       `json:"openSubtasks"`
}

// GetAgentWorkload aggregates the agent's features, tasks, open
// delegations, and unfinished subtasks. Pure projection, no writes.
func (e *Engine) GetAgentWorkload(ctx context.Context, agentID string) (*Workload, error) {
	if agentID == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "agent is required", nil)
	}

	delegations, err := e.delegationRepo.List(ctx, "", agentID)
	if err != nil {
		return nil, err
	}
	var openDelegations []*delegation.Delegation
	taskIDs := map[string]bool{}
	for _, d := range delegations {
		if !d.State.Open() {
			continue
		}
		openDelegations = append(openDelegations, d)
		taskIDs[d.TaskID] = true
	}

	allTasks, err := e.taskRepo.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var tasks []*task.Task
	featureIDs := map[string]bool{}
	for _, t := range allTasks {
		if !taskIDs[t.ID] && !t.AssignedTo(agentID) {
			continue
		}
		taskIDs[t.ID] = true
		tasks = append(tasks, t)
		featureIDs[t.FeatureID] = true
	}

	allFeatures, err := e.featureRepo.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var features []*feature.Feature
	for _, f := range allFeatures {
		if f.Status != feature.StatusActive {
			continue
		}
		if !featureIDs[f.ID] && f.CreatedBy != agentID {
			continue
		}
		features = append(features, f)
	}

	allSubtasks, err := e.subtaskRepo.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var openSubtasks []*subtask.Subtask
	for _, st := range allSubtasks {
		if st.Status == subtask.StatusDone {
			continue
		}
		if !taskIDs[st.TaskID] && st.UpdatedBy != agentID {
			continue
		}
		openSubtasks = append(openSubtasks, st)
	}

	return &Workload{
		AgentID:        agentID,
		ActiveFeatures: features,
		Tasks:          tasks,
		Delegations:    openDelegations,
		OpenSubtasks:   openSubtasks,
	}, nil
}

// FeatureDetail nests a feature's tasks with their delegations and
// subtasks.
type FeatureDetail struct {
	Feature *feature.Feature `json:"feature"`
	Tasks   []*TaskDetail    `json:"tasks"`
}

type TaskDetail struct {
	Task        *task.Task               `json:"task"`
	Delegations []*delegation.Delegation `json:"delegations"`
	Subtasks    []*subtask.Subtask       `json:"subtasks"`
}

func (e *Engine) ListFeatures(ctx context.Context, status feature.Status) ([]*feature.Feature, error) {
	if status != "" && !status.Valid() {
		return nil, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("invalid feature status %q", status), nil)
	}
	return e.featureRepo.List(ctx, status)
}

func (e *Engine) GetFeature(ctx context.Context, id string) (*FeatureDetail, error) {
	f, err := e.featureRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	tasks, err := e.taskRepo.List(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	detail := &FeatureDetail{Feature: f}
	for _, t := range tasks {
		delegations, err := e.delegationRepo.List(ctx, t.ID, "")
		if err != nil {
			return nil, err
		}
		subtasks, err := e.subtaskRepo.List(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		detail.Tasks = append(detail.Tasks, &TaskDetail{
			Task:        t,
			Delegations: delegations,
			Subtasks:    subtasks,
		})
	}
	return detail, nil
}

// Status is the aggregated hub-status projection over agents, features,
// and messages.
type Status struct {
	Agents         map[agent.Status]int   `json:"agents"`
	TotalAgents    int                    `json:"totalAgents"`
	Features       map[feature.Status]int `json:"features"`
	TotalFeatures  int                    `json:"totalFeatures"`
	TotalMessages  int                    `json:"totalMessages"`
	UnreadMessages int                    `json:"unreadMessages"`
}

func (e *Engine) HubStatus(ctx context.Context) (*Status, error) {
	agents, err := e.agentRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	features, err := e.featureRepo.List(ctx, "")
	if err != nil {
		return nil, err
	}
	messages, err := e.messageRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	s := &Status{
		Agents:   make(map[agent.Status]int),
		Features: make(map[feature.Status]int),
	}
	for _, a := range agents {
		s.Agents[a.Status]++
	}
	s.TotalAgents = len(agents)
	for _, f := range features {
		s.Features[f.Status]++
	}
	s.TotalFeatures = len(features)
	s.TotalMessages = len(messages)
	for _, m := range messages {
		if m.To != message.Broadcast && !m.Read {
			s.UnreadMessages++
		}
	}
	return s, nil
}
