package main

import (
	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

var agentIDSchema = &jsonschema.Schema{
	Type:        "string",
	Description: "Calling agent's id, as returned by agenthub_register_agent",
}

var registerAgentSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"agentId": {
			Type:        "string",
			Description: "Existing agent id to refresh; omit to generate one from the project path",
		},
		"projectPath": {
			Type:        "string",
			Description: "Absolute path of the project this agent works in",
		},
		"role": {
			Type:        "string",
			Description: "Free-form role, e.g. \"backend developer\" or \"qa engineer\"",
		},
		"capabilities": {
			Type:        "array",
			Description: "Explicit capability list; omitted capabilities are inferred from the role",
			Items:       &jsonschema.Schema{Type: "string"},
		},
		"collaboratesWith": {
			Type:        "array",
			Description: "Agent ids this agent expects to work with",
			Items:       &jsonschema.Schema{Type: "string"},
		},
	},
	Required:             []string{"projectPath", "role"},
	AdditionalProperties: boolSchema(false),
}

var sendMessageSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"from": agentIDSchema,
		"to": {
			Type:        "string",
			Description: "Recipient agent id, or \"all\" to broadcast",
		},
		"type": {
			Type:        "string",
			Description: "Message type",
			Enum:        []interface{}{"context", "task", "question", "completion", "error"},
		},
		"content": {
			Type:        "string",
			Description: "Message body",
		},
		"priority": {
			Type:        "string",
			Description: "Delivery priority",
			Enum:        []interface{}{"urgent", "normal", "low"},
		},
		"threadId": {
			Type:        "string",
			Description: "Thread id to reply into (used by sync requests)",
		},
		"metadata": {
			Type:                 "object",
			Description:          "Additional metadata as key-value pairs",
			AdditionalProperties: boolSchema(true),
		},
	},
	Required:             []string{"from", "to", "type", "content"},
	AdditionalProperties: boolSchema(false),
}

var getMessagesSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"agentId": agentIDSchema,
		"type": {
			Type:        "string",
			Description: "Only return messages of this type",
			Enum:        []interface{}{"context", "task", "question", "completion", "error"},
		},
		"since": {
			Type:        "string",
			Description: "Only return messages at or after this RFC 3339 timestamp",
		},
		"markAsRead": {
			Type:        "boolean",
			Description: "Mark returned direct messages as read (default true)",
		},
	},
	Required:             []string{"agentId"},
	AdditionalProperties: boolSchema(false),
}

var syncRequestSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"from": agentIDSchema,
		"to": {
			Type:        "string",
			Description: "Agent id to ask; broadcast is not allowed",
		},
		"topic": {
			Type:        "string",
			Description: "The question to deliver",
		},
		"timeoutMs": {
			Type:        "integer",
			Description: "Milliseconds to wait for a reply (default 30000, max 120000)",
			Minimum:     float64Ptr(0),
		},
	},
	Required:             []string{"from", "to", "topic"},
	AdditionalProperties: boolSchema(false),
}

var setContextSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"agentId": agentIDSchema,
		"key": {
			Type:        "string",
			Description: "Slot key",
		},
		"value": {
			Description: "Arbitrary JSON value to store",
		},
		"namespace": {
			Type:        "string",
			Description: "Slot namespace (default \"default\")",
		},
		"ttlMs": {
			Type:        "integer",
			Description: "Expiry in milliseconds, up to 24 hours; omit for no expiry",
			Minimum:     float64Ptr(0),
		},
	},
	Required:             []string{"agentId", "key", "value"},
	AdditionalProperties: boolSchema(false),
}

var getContextSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"agentId": agentIDSchema,
		"key": {
			Type:        "string",
			Description: "Slot key; omit to list every live slot in the namespace",
		},
		"namespace": {
			Type:        "string",
			Description: "Slot namespace (default \"default\")",
		},
	},
	Required:             []string{"agentId"},
	AdditionalProperties: boolSchema(false),
}

var createFeatureSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"agentId": agentIDSchema,
		"title": {
			Type:        "string",
			Description: "Feature title",
		},
		"description": {
			Type:        "string",
			Description: "What the feature covers",
		},
		"priority": {
			Type:        "string",
			Description: "Feature priority (default \"normal\")",
		},
	},
	Required:             []string{"agentId", "title"},
	AdditionalProperties: boolSchema(false),
}

var featureRefSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"agentId": agentIDSchema,
		"featureId": {
			Type:        "string",
			Description: "Feature id",
		},
	},
	Required:             []string{"agentId", "featureId"},
	AdditionalProperties: boolSchema(false),
}

var createTaskSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"agentId": agentIDSchema,
		"featureId": {
			Type:        "string",
			Description: "Feature the task belongs to; must be active",
		},
		"description": {
			Type:        "string",
			Description: "What the task covers",
		},
		"assignedAgents": {
			Type:        "array",
			Description: "Agent ids to offer the task to; each receives a delegation",
			Items:       &jsonschema.Schema{Type: "string"},
		},
	},
	Required:             []string{"agentId", "featureId", "description"},
	AdditionalProperties: boolSchema(false),
}

var createDelegationsSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"agentId": agentIDSchema,
		"taskId": {
			Type:        "string",
			Description: "Task to delegate",
		},
		"to": {
			Type:        "array",
			Description: "Agent ids to offer the task to",
			Items:       &jsonschema.Schema{Type: "string"},
		},
	},
	Required:             []string{"agentId", "taskId", "to"},
	AdditionalProperties: boolSchema(false),
}

var delegationRefSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"agentId": agentIDSchema,
		"delegationId": {
			Type:        "string",
			Description: "Delegation id",
		},
	},
	Required:             []string{"agentId", "delegationId"},
	AdditionalProperties: boolSchema(false),
}

var createSubtasksSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"agentId": agentIDSchema,
		"taskId": {
			Type:        "string",
			Description: "Task to break down",
		},
		"descriptions": {
			Type:        "array",
			Description: "One subtask is created per description",
			Items:       &jsonschema.Schema{Type: "string"},
		},
	},
	Required:             []string{"agentId", "taskId", "descriptions"},
	AdditionalProperties: boolSchema(false),
}

var updateSubtaskSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"agentId": agentIDSchema,
		"subtaskId": {
			Type:        "string",
			Description: "Subtask id",
		},
		"status": {
			Type:        "string",
			Description: "New subtask status",
			Enum:        []interface{}{"todo", "in-progress", "done", "blocked"},
		},
	},
	Required:             []string{"agentId", "subtaskId", "status"},
	AdditionalProperties: boolSchema(false),
}

var updateTaskStatusSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"agentId": agentIDSchema,
		"task": {
			Type:        "string",
			Description: "Free-form task identifier or description",
		},
		"status": {
			Type:        "string",
			Description: "Progress status",
			Enum:        []interface{}{"started", "in-progress", "completed", "blocked"},
		},
		"dependencies": {
			Type:        "array",
			Description: "Tasks or agents this work is waiting on",
			Items:       &jsonschema.Schema{Type: "string"},
		},
	},
	Required:             []string{"agentId", "task", "status"},
	AdditionalProperties: boolSchema(false),
}

var getAgentWorkloadSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"agentId": agentIDSchema,
		"target": {
			Type:        "string",
			Description: "Agent id to inspect (defaults to the caller)",
		},
	},
	Required:             []string{"agentId"},
	AdditionalProperties: boolSchema(false),
}

var getFeaturesSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"agentId": agentIDSchema,
		"status": {
			Type:        "string",
			Description: "Only return features with this status",
			Enum:        []interface{}{"active", "completed", "archived"},
		},
	},
	Required:             []string{"agentId"},
	AdditionalProperties: boolSchema(false),
}

var getFeatureSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"agentId": agentIDSchema,
		"featureId": {
			Type:        "string",
			Description: "Feature id",
		},
	},
	Required:             []string{"agentId", "featureId"},
	AdditionalProperties: boolSchema(false),
}

var getHubStatusSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"agentId": agentIDSchema,
	},
	AdditionalProperties: boolSchema(false),
}

func float64Ptr(f float64) *float64 {
	return &f
}

func boolSchema(b bool) *jsonschema.Schema {
	if b {
		return &jsonschema.Schema{}
	}
	return &jsonschema.Schema{Not: &jsonschema.Schema{}}
}
