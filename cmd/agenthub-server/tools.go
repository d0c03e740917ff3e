package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kazz187/agenthub/internal/hub"
	"github.com/kazz187/agenthub/pkg/cerr"
	"github.com/kazz187/agenthub/pkg/clog"
)

// toolHandler adapts a hub operation to the MCP tool contract: results
// render as indented JSON, errors render through cerr.ToolMessage so
// only the code and caller-safe message reach the session.
func toolHandler[In, Out any](op string, fn func(context.Context, In) (Out, error)) func(context.Context, *mcp.ServerSession, *mcp.CallToolParamsFor[In]) (*mcp.CallToolResultFor[any], error) {
	return func(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[In]) (*mcp.CallToolResultFor[any], error) {
		ctx = clog.ContextWithSlog(ctx)
		clog.AddAttribute(ctx, "operation", op)

		out, err := fn(ctx, params.Arguments)
		if err != nil {
			logToolError(ctx, err)
			return &mcp.CallToolResultFor[any]{
				IsError: true,
				Content: []mcp.Content{
					&mcp.TextContent{Text: cerr.ToolMessage(err)},
				},
			}, nil
		}

		jsonData, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			slog.ErrorContext(ctx, "failed to marshal tool result", "error", err)
			return &mcp.CallToolResultFor[any]{
				IsError: true,
				Content: []mcp.Content{
					&mcp.TextContent{Text: "[Internal] server error"},
				},
			}, nil
		}
		return &mcp.CallToolResultFor[any]{
			Content: []mcp.Content{
				&mcp.TextContent{Text: string(jsonData)},
			},
		}, nil
	}
}

func logToolError(ctx context.Context, err error) {
	var cErr *cerr.Error
	if errors.As(err, &cErr) && cErr.Code.LogsAsError() {
		clog.AddStack(ctx, cErr.Stack)
		slog.ErrorContext(ctx, "tool operation failed", "error", err)
		return
	}
	slog.InfoContext(ctx, "tool operation rejected", "error", err)
}

func registerTools(server *mcp.Server, h *hub.Hub) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "agenthub_register_agent",
		Title:       "AgentHub: Register Agent",
		Description: "Register this agent with the hub (or refresh an existing registration). Returns the agent record including its generated id; pass that id as agentId on every other tool.",
		InputSchema: registerAgentSchema,
	}, toolHandler("register_agent", h.RegisterAgent))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "agenthub_send_message",
		Title:       "AgentHub: Send Message",
		Description: "Send a message to another agent, or to every agent with to=\"all\".",
		InputSchema: sendMessageSchema,
	}, toolHandler("send_message", h.SendMessage))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "agenthub_get_messages",
		Title:       "AgentHub: Get Messages",
		Description: "Fetch messages addressed to this agent, including broadcasts from others. Direct messages are marked read unless markAsRead=false.",
		InputSchema: getMessagesSchema,
	}, toolHandler("get_messages", h.GetMessages))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "agenthub_sync_request",
		Title:       "AgentHub: Synchronous Request",
		Description: "Ask another agent a question and wait for its reply. Returns timedOut=true when no reply arrives in time; the question stays delivered.",
		InputSchema: syncRequestSchema,
	}, toolHandler("sync_request", h.SyncRequest))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "agenthub_set_context",
		Title:       "AgentHub: Set Shared Context",
		Description: "Write a shared key-value slot, optionally namespaced and with a TTL (ttlMs, up to 24h). Each write bumps the slot's version.",
		InputSchema: setContextSchema,
	}, toolHandler("set_context", h.SetContext))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "agenthub_get_context",
		Title:       "AgentHub: Get Shared Context",
		Description: "Read one shared slot by key, or every live slot in a namespace when key is omitted.",
		InputSchema: getContextSchema,
	}, toolHandler("get_context", h.GetContext))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "agenthub_create_feature",
		Title:       "AgentHub: Create Feature",
		Description: "Open a feature as the top-level unit of collaborative work.",
		InputSchema: createFeatureSchema,
	}, toolHandler("create_feature", h.CreateFeature))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "agenthub_complete_feature",
		Title:       "AgentHub: Complete Feature",
		Description: "Mark a feature completed. Completed features no longer accept tasks.",
		InputSchema: featureRefSchema,
	}, toolHandler("complete_feature", h.CompleteFeature))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "agenthub_archive_feature",
		Title:       "AgentHub: Archive Feature",
		Description: "Archive a feature. Archiving is terminal.",
		InputSchema: featureRefSchema,
	}, toolHandler("archive_feature", h.ArchiveFeature))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "agenthub_create_task",
		Title:       "AgentHub: Create Task",
		Description: "Create a task under an active feature. Listing assignedAgents also offers each of them a delegation.",
		InputSchema: createTaskSchema,
	}, toolHandler("create_task", h.CreateTask))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "agenthub_create_delegations",
		Title:       "AgentHub: Delegate Task",
		Description: "Offer an existing task to one or more agents. Agents already holding an open delegation for the task are skipped.",
		InputSchema: createDelegationsSchema,
	}, toolHandler("create_delegations", h.CreateDelegations))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "agenthub_accept_delegation",
		Title:       "AgentHub: Accept Delegation",
		Description: "Accept a delegation offered to this agent. Accepting twice is a no-op.",
		InputSchema: delegationRefSchema,
	}, toolHandler("accept_delegation", h.AcceptDelegation))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "agenthub_decline_delegation",
		Title:       "AgentHub: Decline Delegation",
		Description: "Decline a delegation offered to this agent. An accepted delegation cannot be declined.",
		InputSchema: delegationRefSchema,
	}, toolHandler("decline_delegation", h.DeclineDelegation))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "agenthub_create_subtasks",
		Title:       "AgentHub: Create Subtasks",
		Description: "Break a task into subtasks, one per description.",
		InputSchema: createSubtasksSchema,
	}, toolHandler("create_subtasks", h.CreateSubtasks))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "agenthub_update_subtask",
		Title:       "AgentHub: Update Subtask",
		Description: "Set a subtask's status (todo, in-progress, done, blocked). Any transition is allowed.",
		InputSchema: updateSubtaskSchema,
	}, toolHandler("update_subtask", h.UpdateSubtask))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "agenthub_update_task_status",
		Title:       "AgentHub: Report Task Progress",
		Description: "Append a free-form progress report for work outside the feature workflow (started, in-progress, completed, blocked).",
		InputSchema: updateTaskStatusSchema,
	}, toolHandler("update_task_status", h.UpdateTaskStatus))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "agenthub_get_agent_workload",
		Title:       "AgentHub: Get Agent Workload",
		Description: "Summarize the features, tasks, open delegations, and unfinished subtasks touching an agent. Defaults to the caller; set target to inspect a peer.",
		InputSchema: getAgentWorkloadSchema,
	}, toolHandler("get_agent_workload", h.GetAgentWorkload))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "agenthub_get_features",
		Title:       "AgentHub: List Features",
		Description: "List features, optionally filtered by status (active, completed, archived).",
		InputSchema: getFeaturesSchema,
	}, toolHandler("get_features", h.GetFeatures))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "agenthub_get_feature",
		Title:       "AgentHub: Get Feature",
		Description: "Fetch one feature with its tasks, their delegations, and their subtasks.",
		InputSchema: getFeatureSchema,
	}, toolHandler("get_feature", h.GetFeature))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "agenthub_get_hub_status",
		Title:       "AgentHub: Hub Status",
		Description: "Aggregate counts of agents by status, features by status, and messages.",
		InputSchema: getHubStatusSchema,
	}, toolHandler("get_hub_status", h.GetHubStatus))
}
