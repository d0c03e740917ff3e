package hub

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kazz187/agenthub/internal/agent"
	"github.com/kazz187/agenthub/internal/collab"
	"github.com/kazz187/agenthub/internal/contextstore"
	"github.com/kazz187/agenthub/internal/delegation"
	"github.com/kazz187/agenthub/internal/feature"
	"github.com/kazz187/agenthub/internal/message"
	"github.com/kazz187/agenthub/internal/subtask"
	"github.com/kazz187/agenthub/internal/tasklog"
	"github.com/kazz187/agenthub/pkg/cerr"
	"github.com/kazz187/agenthub/pkg/clog"
)

// SystemSender is the from-address of messages the hub writes itself.
const SystemSender = "hub"

// Hub is the session boundary. Every operation identifies its calling
// agent, refreshes that agent's last-seen timestamp, then dispatches to
// the underlying services. Side channels like the welcome message are
// best effort and never fail the operation that triggered them.
type Hub struct {
	agents      *agent.Service
	messages    *message.Service
	contexts    *contextstore.Service
	engine      *collab.Engine
	taskLogRepo tasklog.Repository
	storage     StorageInfo
}

// StorageInfo describes where the hub keeps its records, reported as
// part of the status projection.
type StorageInfo struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

func New(
	agents *agent.Service,
	messages *message.Service,
	contexts *contextstore.Service,
	engine *collab.Engine,
	taskLogRepo tasklog.Repository,
	storage StorageInfo,
) *Hub {
	return &Hub{
		agents:      agents,
		messages:    messages,
		contexts:    contexts,
		engine:      engine,
		taskLogRepo: taskLogRepo,
		storage:     storage,
	}
}

// touch refreshes the caller's liveness. An unregistered or failing
// caller never blocks the operation itself.
func (h *Hub) touch(ctx context.Context, agentID string) context.Context {
	if agentID == "" {
		return ctx
	}
	clog.AddAttribute(ctx, "agent", agentID)
	if err := h.agents.Touch(ctx, agentID); err != nil && !cerr.IsCode(err, cerr.NotFound) {
		slog.WarnContext(ctx, "failed to refresh agent last-seen", "error", err)
	}
	return ctx
}

type RegisterAgentParams struct {
	AgentID          string   `json:"agentId,omitempty"`
	ProjectPath      string   `json:"projectPath"`
	Role             string   `json:"role"`
	Capabilities     []string `json:"capabilities,omitempty"`
	CollaboratesWith []string `json:"collaboratesWith,omitempty"`
}

type RegisterAgentResult struct {
	Success              bool         `json:"success"`
	Agent                *agent.Agent `json:"agent"`
	Message              string       `json:"message"`
	DetectedCapabilities []string     `json:"detectedCapabilities"`
	Peers                int          `json:"peers"`
}

// RegisterAgent registers or refreshes the calling agent and greets it
// with a broadcast-free direct message naming the other agents on the
// hub.
func (h *Hub) RegisterAgent(ctx context.Context, params RegisterAgentParams) (*RegisterAgentResult, error) {
	result, err := h.agents.Register(ctx, agent.RegisterParams{
		ID:               params.AgentID,
		ProjectPath:      params.ProjectPath,
		Role:             params.Role,
		Capabilities:     params.Capabilities,
		CollaboratesWith: params.CollaboratesWith,
	})
	if err != nil {
		return nil, err
	}
	clog.AddAttribute(ctx, "agent", result.Agent.ID)

	peers, err := h.agents.List(ctx)
	if err != nil {
		return nil, err
	}
	others := make([]string, 0, len(peers))
	for _, p := range peers {
		if p.ID == result.Agent.ID {
			continue
		}
		others = append(others, fmt.Sprintf("%s (%s)", p.ID, p.Role))
	}

	welcome := fmt.Sprintf("Welcome %s. You are registered as %s.", result.Agent.ID, result.Agent.Role)
	if len(others) > 0 {
		welcome += " Other agents on this hub: " + strings.Join(others, ", ") + "."
	} else {
		welcome += " No other agents are registered yet."
	}
	if _, err := h.messages.Send(ctx, message.SendParams{
		From:    SystemSender,
		To:      result.Agent.ID,
		Type:    message.TypeContext,
		Content: welcome,
	}); err != nil {
		slog.WarnContext(ctx, "failed to send welcome message", "error", err)
	}

	return &RegisterAgentResult{
		Success:              true,
		Agent:                result.Agent,
		Message:              welcome,
		DetectedCapabilities: result.DetectedCapabilities,
		Peers:                len(others),
	}, nil
}

type SendMessageParams struct {
	From     string            `json:"from"`
	To       string            `json:"to"`
	Type     string            `json:"type"`
	Content  string            `json:"content"`
	Priority string            `json:"priority,omitempty"`
	ThreadID string            `json:"threadId,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (h *Hub) SendMessage(ctx context.Context, params SendMessageParams) (*message.Message, error) {
	ctx = h.touch(ctx, params.From)
	return h.messages.Send(ctx, message.SendParams{
		From:     params.From,
		To:       params.To,
		Type:     message.Type(params.Type),
		Content:  params.Content,
		Priority: message.Priority(params.Priority),
		ThreadID: params.ThreadID,
		Metadata: params.Metadata,
	})
}

type GetMessagesParams struct {
	AgentID string `json:"agentId"`
	Type    string `json:"type,omitempty"`
	// Since is RFC 3339; empty means no lower bound.
	Since string `json:"since,omitempty"`
	// MarkAsRead defaults to true; pass false to peek.
	MarkAsRead *bool `json:"markAsRead,omitempty"`
}

func (h *Hub) GetMessages(ctx context.Context, params GetMessagesParams) (*message.QueryResult, error) {
	ctx = h.touch(ctx, params.AgentID)

	var since time.Time
	if params.Since != "" {
		var err error
		since, err = time.Parse(time.RFC3339, params.Since)
		if err != nil {
			return nil, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("invalid since timestamp %q", params.Since), err)
		}
	}
	markAsRead := true
	if params.MarkAsRead != nil {
		markAsRead = *params.MarkAsRead
	}

	return h.messages.Query(ctx, message.QueryParams{
		AgentID:    params.AgentID,
		Type:       message.Type(params.Type),
		Since:      since,
		MarkAsRead: markAsRead,
	})
}

type SyncRequestParams struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Topic string `json:"topic"`
	// TimeoutMS caps the wait; zero applies the default.
	TimeoutMS int64 `json:"timeoutMs,omitempty"`
}

type SyncRequestResult struct {
	TimedOut bool             `json:"timedOut"`
	Response *message.Message `json:"response,omitempty"`
	Detail   string           `json:"detail,omitempty"`
}

// SyncRequest waits for the target agent to answer. A timeout is an
// outcome, not an error: the caller decides how to proceed without one.
func (h *Hub) SyncRequest(ctx context.Context, params SyncRequestParams) (*SyncRequestResult, error) {
	ctx = h.touch(ctx, params.From)
	reply, err := h.messages.SyncRequest(ctx, params.From, params.To, params.Topic,
		time.Duration(params.TimeoutMS)*time.Millisecond)
	if err != nil {
		if cerr.IsCode(err, cerr.DeadlineExceeded) {
			return &SyncRequestResult{
				TimedOut: true,
				Detail:   fmt.Sprintf("%s did not respond in time; the question was delivered and may be answered later", params.To),
			}, nil
		}
		return nil, err
	}
	return &SyncRequestResult{Response: reply}, nil
}

type SetContextParams struct {
	AgentID   string `json:"agentId"`
	Key       string `json:"key"`
	Value     any    `json:"value"`
	Namespace string `json:"namespace,omitempty"`
	TTLMS     int64  `json:"ttlMs,omitempty"`
}

func (h *Hub) SetContext(ctx context.Context, params SetContextParams) (*contextstore.Entry, error) {
	ctx = h.touch(ctx, params.AgentID)
	return h.contexts.Set(ctx, contextstore.SetParams{
		Key:       params.Key,
		Value:     params.Value,
		Agent:     params.AgentID,
		Namespace: params.Namespace,
		TTL:       params.TTLMS,
	})
}

type GetContextParams struct {
	AgentID   string `json:"agentId"`
	Key       string `json:"key,omitempty"`
	Namespace string `json:"namespace,omitempty"`
}

type GetContextResult struct {
	Entry   *contextstore.Entry   `json:"entry,omitempty"`
	Entries []*contextstore.Entry `json:"entries,omitempty"`
}

// GetContext returns a single slot when key is given, or every live
// slot in the namespace otherwise.
func (h *Hub) GetContext(ctx context.Context, params GetContextParams) (*GetContextResult, error) {
	ctx = h.touch(ctx, params.AgentID)
	if params.Key != "" {
		e, err := h.contexts.Get(ctx, params.Namespace, params.Key)
		if err != nil {
			return nil, err
		}
		return &GetContextResult{Entry: e}, nil
	}
	entries, err := h.contexts.List(ctx, params.Namespace)
	if err != nil {
		return nil, err
	}
	return &GetContextResult{Entries: entries}, nil
}

type CreateFeatureParams struct {
	AgentID     string `json:"agentId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

func (h *Hub) CreateFeature(ctx context.Context, params CreateFeatureParams) (*feature.Feature, error) {
	ctx = h.touch(ctx, params.AgentID)
	f, err := h.engine.CreateFeature(ctx, collab.CreateFeatureParams{
		Title:       params.Title,
		Description: params.Description,
		Priority:    params.Priority,
		CreatedBy:   params.AgentID,
	})
	if err != nil {
		return nil, err
	}
	h.notify(ctx, params.AgentID, message.TypeContext,
		fmt.Sprintf("%s opened feature %q (%s)", params.AgentID, f.Title, f.ID))
	return f, nil
}

type CompleteFeatureParams struct {
	AgentID   string `json:"agentId"`
	FeatureID string `json:"featureId"`
}

func (h *Hub) CompleteFeature(ctx context.Context, params CompleteFeatureParams) (*feature.Feature, error) {
	ctx = h.touch(ctx, params.AgentID)
	f, err := h.engine.AdvanceFeature(ctx, params.FeatureID, feature.StatusCompleted)
	if err != nil {
		return nil, err
	}
	h.notify(ctx, params.AgentID, message.TypeCompletion,
		fmt.Sprintf("%s completed feature %q (%s)", params.AgentID, f.Title, f.ID))
	return f, nil
}

type ArchiveFeatureParams struct {
	AgentID   string `json:"agentId"`
	FeatureID string `json:"featureId"`
}

func (h *Hub) ArchiveFeature(ctx context.Context, params ArchiveFeatureParams) (*feature.Feature, error) {
	ctx = h.touch(ctx, params.AgentID)
	return h.engine.AdvanceFeature(ctx, params.FeatureID, feature.StatusArchived)
}

type CreateTaskParams struct {
	AgentID        string   `json:"agentId"`
	FeatureID      string   `json:"featureId"`
	Description    string   `json:"description"`
	AssignedAgents []string `json:"assignedAgents,omitempty"`
}

func (h *Hub) CreateTask(ctx context.Context, params CreateTaskParams) (*collab.TaskDetail, error) {
	ctx = h.touch(ctx, params.AgentID)
	t, err := h.engine.CreateTask(ctx, collab.CreateTaskParams{
		FeatureID:      params.FeatureID,
		Description:    params.Description,
		AssignedAgents: params.AssignedAgents,
		CreatedBy:      params.AgentID,
	})
	if err != nil {
		return nil, err
	}

	// Assignees get a delegation offer right away; failures surface so
	// the caller can retry the offer explicitly.
	var delegations []*delegation.Delegation
	if len(params.AssignedAgents) > 0 {
		delegations, err = h.engine.CreateDelegations(ctx, t.ID, params.AssignedAgents)
		if err != nil {
			return nil, err
		}
		for _, d := range delegations {
			h.notifyAgent(ctx, d.ToAgent, message.TypeTask,
				fmt.Sprintf("%s delegated task %s to you: %s", params.AgentID, t.ID, t.Description))
		}
	}
	return &collab.TaskDetail{Task: t, Delegations: delegations}, nil
}

type CreateDelegationsParams struct {
	AgentID string   `json:"agentId"`
	TaskID  string   `json:"taskId"`
	To      []string `json:"to"`
}

func (h *Hub) CreateDelegations(ctx context.Context, params CreateDelegationsParams) ([]*delegation.Delegation, error) {
	ctx = h.touch(ctx, params.AgentID)
	delegations, err := h.engine.CreateDelegations(ctx, params.TaskID, params.To)
	if err != nil {
		return nil, err
	}
	for _, d := range delegations {
		h.notifyAgent(ctx, d.ToAgent, message.TypeTask,
			fmt.Sprintf("%s delegated task %s to you", params.AgentID, d.TaskID))
	}
	return delegations, nil
}

type DelegationResponseParams struct {
	AgentID      string `json:"agentId"`
	DelegationID string `json:"delegationId"`
}

func (h *Hub) AcceptDelegation(ctx context.Context, params DelegationResponseParams) (*delegation.Delegation, error) {
	ctx = h.touch(ctx, params.AgentID)
	return h.engine.AcceptDelegation(ctx, params.DelegationID)
}

func (h *Hub) DeclineDelegation(ctx context.Context, params DelegationResponseParams) (*delegation.Delegation, error) {
	ctx = h.touch(ctx, params.AgentID)
	return h.engine.DeclineDelegation(ctx, params.DelegationID)
}

type CreateSubtasksParams struct {
	AgentID      string   `json:"agentId"`
	TaskID       string   `json:"taskId"`
	Descriptions []string `json:"descriptions"`
}

func (h *Hub) CreateSubtasks(ctx context.Context, params CreateSubtasksParams) ([]*subtask.Subtask, error) {
	ctx = h.touch(ctx, params.AgentID)
	return h.engine.CreateSubtasks(ctx, params.TaskID, params.Descriptions, params.AgentID)
}

type UpdateSubtaskParams struct {
	AgentID   string `json:"agentId"`
	SubtaskID string `json:"subtaskId"`
	Status    string `json:"status"`
}

func (h *Hub) UpdateSubtask(ctx context.Context, params UpdateSubtaskParams) (*subtask.Subtask, error) {
	ctx = h.touch(ctx, params.AgentID)
	return h.engine.UpdateSubtask(ctx, params.SubtaskID, subtask.Status(params.Status), params.AgentID)
}

type UpdateTaskStatusParams struct {
	AgentID      string   `json:"agentId"`
	Task         string   `json:"task"`
	Status       string   `json:"status"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// UpdateTaskStatus appends a free-form progress ping outside the
// feature workflow. Kept for agents that report work the hub does not
// track as features.
func (h *Hub) UpdateTaskStatus(ctx context.Context, params UpdateTaskStatusParams) (*tasklog.TaskLog, error) {
	ctx = h.touch(ctx, params.AgentID)
	if params.AgentID == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "agent is required", nil)
	}
	if params.Task == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "task is required", nil)
	}
	status := tasklog.Status(params.Status)
	if !status.Valid() {
		return nil, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("invalid task status %q", params.Status), nil)
	}
	l := &tasklog.TaskLog{
		ID:           ulid.Make().String(),
		Agent:        params.AgentID,
		Task:         params.Task,
		Status:       status,
		Dependencies: params.Dependencies,
		CreatedAt:    time.Now(),
	}
	if err := h.taskLogRepo.Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

type GetAgentWorkloadParams struct {
	AgentID string `json:"agentId"`
	// Target defaults to the caller; set it to inspect a peer.
	Target string `json:"target,omitempty"`
}

func (h *Hub) GetAgentWorkload(ctx context.Context, params GetAgentWorkloadParams) (*collab.Workload, error) {
	ctx = h.touch(ctx, params.AgentID)
	target := params.Target
	if target == "" {
		target = params.AgentID
	}
	return h.engine.GetAgentWorkload(ctx, target)
}

type GetFeaturesParams struct {
	AgentID string `json:"agentId"`
	Status  string `json:"status,omitempty"`
}

func (h *Hub) GetFeatures(ctx context.Context, params GetFeaturesParams) ([]*feature.Feature, error) {
	ctx = h.touch(ctx, params.AgentID)
	return h.engine.ListFeatures(ctx, feature.Status(params.Status))
}

type GetFeatureParams struct {
	AgentID   string `json:"agentId"`
	FeatureID string `json:"featureId"`
}

func (h *Hub) GetFeature(ctx context.Context, params GetFeatureParams) (*collab.FeatureDetail, error) {
	ctx = h.touch(ctx, params.AgentID)
	return h.engine.GetFeature(ctx, params.FeatureID)
}

type GetHubStatusParams struct {
	AgentID string `json:"agentId,omitempty"`
}

type GetHubStatusResult struct {
	*collab.Status
	Storage StorageInfo `json:"storage"`
}

func (h *Hub) GetHubStatus(ctx context.Context, params GetHubStatusParams) (*GetHubStatusResult, error) {
	ctx = h.touch(ctx, params.AgentID)
	status, err := h.engine.HubStatus(ctx)
	if err != nil {
		return nil, err
	}
	return &GetHubStatusResult{Status: status, Storage: h.storage}, nil
}

// notify broadcasts a hub-authored event message on behalf of actor.
// Best effort: a failed notification is logged and swallowed.
func (h *Hub) notify(ctx context.Context, actor string, msgType message.Type, content string) {
	if _, err := h.messages.Send(ctx, message.SendParams{
		From:    SystemSender,
		To:      message.Broadcast,
		Type:    msgType,
		Content: content,
		Metadata: map[string]string{
			"actor": actor,
		},
	}); err != nil {
		slog.WarnContext(ctx, "failed to send notification", "error", err)
	}
}

func (h *Hub) notifyAgent(ctx context.Context, to string, msgType message.Type, content string) {
	if _, err := h.messages.Send(ctx, message.SendParams{
		From:     SystemSender,
		To:       to,
		Type:     msgType,
		Content:  content,
		Priority: message.PriorityUrgent,
	}); err != nil {
		slog.WarnContext(ctx, "failed to send notification", "to", to, "error", err)
	}
}
