package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-sh/mnemo/internal/workspace"
)

func TestStdioTransportRoundTrip(t *testing.T) {
	ws, err := workspace.Init(t.TempDir())
	require.NoError(t, err)
	srv := NewServer(ws, WithGit(&fakeGit{}))

	in := strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}` + "\n" +
			`{"jsonrpc":"2.0","method":"initialized"}` + "\n" +
			`{"jsonrpc":"2.0","id":2,"method":"tools/list"}` + "\n")
	var out bytes.Buffer

	transport := NewStdioTransport(srv, in, &out)
	require.NoError(t, transport.Serve(context.Background()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2, "notification produces no response frame")

	var first rpcResponse
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.EqualValues(t, 1, first.ID)
	assert.Nil(t, first.Error)

	var second rpcResponse
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.EqualValues(t, 2, second.ID)
}

func TestStdioTransportCancelledContext(t *testing.T) {
	ws, err := workspace.Init(t.TempDir())
	require.NoError(t, err)
	srv := NewServer(ws, WithGit(&fakeGit{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	transport := NewStdioTransport(srv, strings.NewReader(""), &bytes.Buffer{})
	assert.ErrorIs(t, transport.Serve(ctx), context.Canceled)
}

func TestStdioTransportBlankLinesIgnored(t *testing.T) {
	ws, err := workspace.Init(t.TempDir())
	require.NoError(t, err)
	srv := NewServer(ws, WithGit(&fakeGit{}))

	in := strings.NewReader("\n\n" + `{"jsonrpc":"2.0","id":1,"method":"tools/list"}` + "\n")
	var out bytes.Buffer
	require.NoError(t, NewStdioTransport(srv, in, &out).Serve(context.Background()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 1)
}
