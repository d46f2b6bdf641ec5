// Package mcp implements the Model Context Protocol (MCP) server for mnemo.
// It exposes the memory workspace to AI assistants as JSON-RPC 2.0 tools over
// line-delimited stdio.
package mcp

import "encoding/json"

// RecallArgs contains arguments for the memory_recall tool.
type RecallArgs struct {
	Query string `json:"query,omitempty"` // free-text search, words OR-combined
	Tag   string `json:"tag,omitempty"`   // comma-separated tag filters, AND logic
	Type  string `json:"type,omitempty"`  // memory type code (mem, dec, fact, pref, risk, goal, q)

	// Format selects the rendering: brief, compact, context (default), json.
	Format string `json:"format,omitempty"`

	// Limit caps the result count; 0 means unlimited.
	Limit int `json:"limit,omitempty"`

	// Body includes body text in the output. Off by default to save tokens.
	Body bool `json:"body,omitempty"`

	// Sort orders results: newest, oldest, confidence, updated.
	Sort string `json:"sort,omitempty"`

	// Expand is the link-graph hop count out from the matches. Defaults to 1
	// when omitted; 0 means exact matches only.
	Expand *int `json:"expand,omitempty"`

	// Stale restricts results to expired or review-overdue memories.
	Stale bool `json:"stale,omitempty"`
}

// GetArgs contains arguments for the memory_get tool.
type GetArgs struct {
	ID string `json:"id"`
}

// AddArgs contains arguments for the memory_add tool. List-valued fields
// arrive as comma-separated strings; that is what MCP clients reliably send.
type AddArgs struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Tags       string `json:"tags"`
	Body       string `json:"body,omitempty"`
	Confidence string `json:"confidence,omitempty"`
	Source     string `json:"source,omitempty"`
	Scope      string `json:"scope,omitempty"`
	Relates    string `json:"relates,omitempty"`
	Supersedes string `json:"supersedes,omitempty"`
	ID         string `json:"id,omitempty"` // explicit ID override

	// Rebuild refreshes the snapshot index after the add. Defaults to true
	// when omitted.
	Rebuild *bool `json:"rebuild,omitempty"`
}

// UpdateArgs contains arguments for the memory_update tool.
type UpdateArgs struct {
	ID          string `json:"id"`
	Status      string `json:"status,omitempty"`
	Confidence  string `json:"confidence,omitempty"`
	Scope       string `json:"scope,omitempty"`
	ReviewAfter string `json:"review_after,omitempty"`
	Source      string `json:"source,omitempty"`
	AddTags     string `json:"add_tags,omitempty"`
	RemoveTags  string `json:"remove_tags,omitempty"`
}

// DeprecateArgs contains arguments for the memory_deprecate tool.
type DeprecateArgs struct {
	ID string `json:"id"`
	By string `json:"by,omitempty"` // replacing entity, recorded in the body
}

// TagsArgs contains arguments for the memory_tags tool.
type TagsArgs struct {
	Prefix string `json:"prefix,omitempty"`
}

// PlanArgs contains arguments for the memory_plan tool.
type PlanArgs struct {
	// Checks holds comma-separated check names; empty runs every check.
	Checks string `json:"checks,omitempty"`

	// Format is "human" (default) or "json". The json form can be edited and
	// fed back into memory_apply.
	Format string `json:"format,omitempty"`
}

// ApplyArgs contains arguments for the memory_apply tool.
type ApplyArgs struct {
	// Actions is a JSON action array, typically produced by memory_plan with
	// format=json. When omitted, a fresh plan is computed and applied.
	Actions json.RawMessage `json:"actions,omitempty"`

	// Checks limits the fresh plan to these comma-separated checks when
	// Actions is omitted.
	Checks string `json:"checks,omitempty"`

	// AutoCommit commits the directive changes to git after a successful run.
	AutoCommit bool `json:"auto_commit,omitempty"`
}

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	Result  interface{}   `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
	ID      interface{}   `json:"id"`
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
	ErrCodeServerError    = -32000
)

// InitializeResult is the response to the initialize request.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
}

// ServerInfo identifies this MCP server to the client.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerCapabilities describes what this server supports.
type ServerCapabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// ToolsCapability signals that the server exposes tools.
type ToolsCapability struct{}

// Tool describes one tool in the tools/list response.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// ToolsListResult is the response to tools/list.
type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

// ToolCallParams holds the parameters of a tools/call request.
type ToolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolCallContent is one content block in a tool call response.
type ToolCallContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolCallResult is the response payload of a tools/call request. Tool-level
// failures are reported through IsError, never as JSON-RPC errors, so the
// calling model sees the message and can correct itself.
type ToolCallResult struct {
	Content []ToolCallContent `json:"content"`
	IsError bool              `json:"isError,omitempty"`
}

func textResult(text string) *ToolCallResult {
	return &ToolCallResult{Content: []ToolCallContent{{Type: "text", Text: text}}}
}

func errorResult(text string) *ToolCallResult {
	return &ToolCallResult{
		Content: []ToolCallContent{{Type: "text", Text: text}},
		IsError: true,
	}
}
