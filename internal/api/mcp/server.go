package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/mnemo-sh/mnemo/internal/config"
	"github.com/mnemo-sh/mnemo/internal/engine"
	"github.com/mnemo-sh/mnemo/internal/executor"
	"github.com/mnemo-sh/mnemo/internal/formatter"
	"github.com/mnemo-sh/mnemo/internal/gitops"
	"github.com/mnemo-sh/mnemo/internal/planner"
	"github.com/mnemo-sh/mnemo/internal/query"
	"github.com/mnemo-sh/mnemo/internal/rst"
	"github.com/mnemo-sh/mnemo/internal/workspace"
	"github.com/mnemo-sh/mnemo/pkg/types"
)

const (
	protocolVersion = "2024-11-05"
	serverName      = "mnemo"
	serverVersion   = "1.0.0"
)

// Server implements the Model Context Protocol for one memory workspace.
// It dispatches JSON-RPC 2.0 requests to workspace operations.
type Server struct {
	ws        *workspace.Workspace
	config    *config.Config
	git       executor.Git
	limiter   *rate.Limiter
	sessionID string // unique ID generated once per server lifetime
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithConfig injects runtime configuration. Without it the server uses the
// environment-derived defaults from config.Load.
func WithConfig(cfg *config.Config) ServerOption {
	return func(s *Server) {
		s.config = cfg
	}
}

// WithGit injects the version-control collaborator used by memory_apply.
// Tests inject a fake; production call sites rely on the gitops default.
func WithGit(git executor.Git) ServerOption {
	return func(s *Server) {
		s.git = git
	}
}

// WithRateLimit overrides the tool-call rate limiter.
func WithRateLimit(requestsPerSecond float64, burst int) ServerOption {
	return func(s *Server) {
		s.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// NewServer creates an MCP server for the workspace.
func NewServer(ws *workspace.Workspace, opts ...ServerOption) *Server {
	s := &Server{
		ws:        ws,
		sessionID: uuid.New().String(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.config == nil {
		s.config = config.Load()
	}
	if s.limiter == nil {
		s.limiter = rate.NewLimiter(rate.Limit(s.config.MCP.RequestsPerSecond), s.config.MCP.Burst)
	}
	if s.git == nil {
		s.git = gitops.New(ws.Root, s.config.Git.Disabled)
	}
	return s
}

// SessionID returns the identifier generated for this server lifetime.
func (s *Server) SessionID() string {
	return s.sessionID
}

// HandleRequest processes one raw JSON-RPC request line and returns the
// serialized response. A nil response with a nil error means the request was
// a notification and nothing should be written.
func (s *Server) HandleRequest(ctx context.Context, raw []byte) ([]byte, error) {
	var req JSONRPCRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return marshalResponse(errorResponse(nil, ErrCodeParseError, "parse error: "+err.Error()))
	}
	if req.JSONRPC != "2.0" {
		return marshalResponse(errorResponse(req.ID, ErrCodeInvalidRequest, "unsupported jsonrpc version"))
	}

	switch req.Method {
	case "initialize":
		return marshalResponse(successResponse(req.ID, InitializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities:    ServerCapabilities{Tools: &ToolsCapability{}},
			ServerInfo:      ServerInfo{Name: serverName, Version: serverVersion},
		}))

	case "initialized", "notifications/initialized":
		// Notification: no response frame.
		return nil, nil

	case "tools/list":
		return marshalResponse(successResponse(req.ID, ToolsListResult{Tools: toolDefinitions()}))

	case "tools/call":
		return s.handleToolCall(ctx, req)

	default:
		return marshalResponse(errorResponse(req.ID, ErrCodeMethodNotFound, "method not found: "+req.Method))
	}
}

func (s *Server) handleToolCall(ctx context.Context, req JSONRPCRequest) ([]byte, error) {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return marshalResponse(errorResponse(req.ID, ErrCodeInvalidParams, "invalid tools/call params: "+err.Error()))
	}

	if !s.limiter.Allow() {
		return marshalResponse(successResponse(req.ID,
			errorResult("Rate limit exceeded. Slow down and retry.")))
	}

	result := s.dispatchTool(ctx, params.Name, params.Arguments)
	return marshalResponse(successResponse(req.ID, result))
}

func (s *Server) dispatchTool(ctx context.Context, name string, args json.RawMessage) *ToolCallResult {
	if len(args) == 0 {
		args = []byte("{}")
	}

	switch name {
	case "memory_recall":
		return s.toolRecall(args)
	case "memory_get":
		return s.toolGet(args)
	case "memory_add":
		return s.toolAdd(args)
	case "memory_update":
		return s.toolUpdate(args)
	case "memory_deprecate":
		return s.toolDeprecate(args)
	case "memory_tags":
		return s.toolTags(args)
	case "memory_stale":
		return s.toolStale()
	case "memory_rebuild":
		return s.toolRebuild()
	case "memory_plan":
		return s.toolPlan(args)
	case "memory_apply":
		return s.toolApply(ctx, args)
	default:
		return errorResult("Unknown tool: " + name)
	}
}

func (s *Server) snapshot() (*engine.Snapshot, *ToolCallResult) {
	snap, err := engine.LoadSnapshot(s.ws)
	if err != nil {
		return nil, errorResult(err.Error())
	}
	return snap, nil
}

func (s *Server) toolRecall(raw json.RawMessage) *ToolCallResult {
	var a RecallArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}

	snap, errRes := s.snapshot()
	if errRes != nil {
		return errRes
	}

	expand := 1
	if a.Expand != nil {
		expand = *a.Expand
	}
	results := query.Recall(snap, query.RecallOptions{
		Query:     a.Query,
		Tags:      rst.SplitList(a.Tag),
		Type:      a.Type,
		StaleOnly: a.Stale,
		Expand:    expand,
	})

	format := a.Format
	if format == "" {
		format = query.FormatContext
	}
	out, err := query.FormatSet(results, format, a.Limit, a.Body, a.Sort)
	if err != nil {
		return errorResult(err.Error())
	}
	return textResult(out)
}

func (s *Server) toolGet(raw json.RawMessage) *ToolCallResult {
	var a GetArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}
	if a.ID == "" {
		return errorResult("id is required")
	}

	snap, errRes := s.snapshot()
	if errRes != nil {
		return errRes
	}

	id := snap.ResolveID(a.ID)
	if id == "" {
		return errorResult(fmt.Sprintf("Memory '%s' not found. Use memory_recall to search.", a.ID))
	}
	return textResult(formatter.Full(snap.Entities[id]))
}

func (s *Server) toolAdd(raw json.RawMessage) *ToolCallResult {
	var a AddArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}
	if a.Title == "" {
		return errorResult("title is required")
	}
	if s.ws.FilePath(a.Type) == "" {
		return errorResult(fmt.Sprintf("Unknown memory type: %q (expected one of %s)",
			a.Type, strings.Join(types.AllTypes, ", ")))
	}

	id := a.ID
	if id == "" {
		id = rst.GenerateID(a.Type, a.Title)
	}
	// Collision check against the index when one exists; a missing index just
	// means no dedup, the rebuild below will surface real duplicates.
	if snap, err := engine.LoadSnapshot(s.ws); err == nil {
		id = rst.UniqueID(id, func(candidate string) bool {
			_, taken := snap.Entities[candidate]
			return taken
		})
	}

	content := rst.Generate(rst.Fields{
		Type:       a.Type,
		Title:      a.Title,
		ID:         id,
		Tags:       rst.SplitList(a.Tags),
		Source:     a.Source,
		Confidence: a.Confidence,
		Scope:      a.Scope,
		Body:       a.Body,
		Relates:    rst.SplitList(a.Relates),
		Supersedes: rst.SplitList(a.Supersedes),
	})
	path, err := rst.Append(s.ws, a.Type, content)
	if err != nil {
		return errorResult("write failed: " + err.Error())
	}

	msg := fmt.Sprintf("Added %s → %s", id, s.ws.Rel(path))

	if a.Rebuild == nil || *a.Rebuild {
		ok, out := engine.Rebuild(s.ws)
		if ok {
			msg += "\n" + out
		} else {
			msg += "\nWarning: Memory was added but rebuild failed — run memory_rebuild to refresh the index.\n" + out
		}
	}
	return textResult(msg)
}

func (s *Server) toolUpdate(raw json.RawMessage) *ToolCallResult {
	var a UpdateArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}
	if a.ID == "" {
		return errorResult("id is required")
	}

	fields := map[string]string{
		"status":       a.Status,
		"confidence":   a.Confidence,
		"scope":        a.Scope,
		"review_after": a.ReviewAfter,
		"source":       a.Source,
	}

	var messages []string
	failed := false
	for _, field := range []string{"status", "confidence", "scope", "review_after", "source"} {
		value := fields[field]
		if value == "" {
			continue
		}
		ok, msg := rst.SetField(s.ws, a.ID, field, value)
		messages = append(messages, msg)
		if !ok {
			failed = true
		}
	}
	if add := rst.SplitList(a.AddTags); len(add) > 0 {
		ok, msg := rst.AddTags(s.ws, a.ID, add)
		messages = append(messages, msg)
		if !ok {
			failed = true
		}
	}
	if remove := rst.SplitList(a.RemoveTags); len(remove) > 0 {
		ok, msg := rst.RemoveTags(s.ws, a.ID, remove)
		messages = append(messages, msg)
		if !ok {
			failed = true
		}
	}

	if len(messages) == 0 {
		return errorResult("No changes made. Specify at least one field to update.")
	}
	out := strings.Join(messages, "\n")
	if failed {
		return errorResult(out)
	}
	return textResult(out + "\nRun memory_rebuild to update the index.")
}

func (s *Server) toolDeprecate(raw json.RawMessage) *ToolCallResult {
	var a DeprecateArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}
	if a.ID == "" {
		return errorResult("id is required")
	}

	ok, msg := rst.Deprecate(s.ws, a.ID, a.By)
	if !ok {
		return errorResult(msg)
	}
	return textResult(msg + "\nRun memory_rebuild to update the index.")
}

func (s *Server) toolTags(raw json.RawMessage) *ToolCallResult {
	var a TagsArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}
	snap, errRes := s.snapshot()
	if errRes != nil {
		return errRes
	}
	return textResult(query.TagSummary(snap, a.Prefix))
}

func (s *Server) toolStale() *ToolCallResult {
	snap, errRes := s.snapshot()
	if errRes != nil {
		return errRes
	}
	return textResult(query.StaleReport(snap, types.Today()))
}

func (s *Server) toolRebuild() *ToolCallResult {
	ok, out := engine.Rebuild(s.ws)
	if !ok {
		return errorResult(out)
	}
	return textResult(out)
}

func (s *Server) toolPlan(raw json.RawMessage) *ToolCallResult {
	var a PlanArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}

	checks := rst.SplitList(a.Checks)
	for _, c := range checks {
		if !planner.KnownCheck(c) {
			return errorResult(fmt.Sprintf("Unknown check: %q (known: %s)",
				c, strings.Join(planner.AllChecks, ", ")))
		}
	}

	actions, err := planner.RunPlan(s.ws, checks, nil)
	if err != nil {
		return errorResult(err.Error())
	}

	format := a.Format
	if format == "" {
		format = "human"
	}
	out, err := planner.FormatPlan(actions, format)
	if err != nil {
		return errorResult(err.Error())
	}
	return textResult(out)
}

func (s *Server) toolApply(_ context.Context, raw json.RawMessage) *ToolCallResult {
	var a ApplyArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}

	var actions []types.Action
	if len(a.Actions) > 0 {
		var err error
		actions, err = types.ActionsFromJSON(a.Actions)
		if err != nil {
			return errorResult(err.Error())
		}
	} else {
		checks := rst.SplitList(a.Checks)
		for _, c := range checks {
			if !planner.KnownCheck(c) {
				return errorResult(fmt.Sprintf("Unknown check: %q (known: %s)",
					c, strings.Join(planner.AllChecks, ", ")))
			}
		}
		var err error
		actions, err = planner.RunPlan(s.ws, checks, nil)
		if err != nil {
			return errorResult(err.Error())
		}
	}

	if len(actions) == 0 {
		return textResult("No actions to apply — memory graph looks healthy.")
	}

	log.Printf("mcp: applying %d actions (session %s)", len(actions), s.sessionID)
	result := executor.New(s.ws, s.git, nil).ExecutePlan(actions, executor.Options{AutoCommit: a.AutoCommit})

	out := renderExecution(result)
	if !result.Success {
		return errorResult(out)
	}
	return textResult(out)
}

// renderExecution formats an execution result with per-action detail.
func renderExecution(r *types.ExecutionResult) string {
	var lines []string
	if r.Message != "" {
		lines = append(lines, r.Message)
	}
	for _, o := range r.Applied {
		lines = append(lines, "  ✓ "+o.Message)
	}
	for _, o := range r.Failed {
		lines = append(lines, "  ✗ "+o.Error)
	}
	for _, o := range r.Skipped {
		lines = append(lines, fmt.Sprintf("  - skipped %s: %s", o.Action.Target(), o.Error))
	}
	return strings.Join(lines, "\n")
}

func successResponse(id interface{}, result interface{}) JSONRPCResponse {
	return JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id interface{}, code int, message string) JSONRPCResponse {
	return JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: &JSONRPCError{Code: code, Message: message}}
}

func marshalResponse(resp JSONRPCResponse) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	return data, nil
}
