// Package gitops runs the git operations the executor relies on for
// rollback safety: stash push/pop/drop around a plan application and an
// optional auto-commit afterwards.
//
// All operations are best-effort and return booleans. Version control being
// absent, broken, or slow must never abort a plan application; a long-lived
// MCP server in a workspace with a wedged git just proceeds without rollback
// protection. Failures are logged to stderr. A circuit breaker stops the
// server from shelling out to git again and again once it is clearly broken.
package gitops

import (
	"fmt"
	"log"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// Client runs git in a fixed workspace directory.
type Client struct {
	dir      string
	disabled bool
	breaker  *gobreaker.CircuitBreaker
}

// New creates a git client for the workspace directory. When disabled is
// true every operation is a logged no-op returning false.
func New(dir string, disabled bool) *Client {
	c := &Client{dir: dir, disabled: disabled}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gitops",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("gitops: circuit breaker %s -> %s", from, to)
		},
	})
	return c
}

// run executes one git command through the breaker. Returns combined output
// and an error for non-zero exit or a tripped breaker.
func (c *Client) run(args ...string) (string, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		cmd := exec.Command("git", args...)
		cmd.Dir = c.dir
		combined, err := cmd.CombinedOutput()
		if err != nil {
			return string(combined), fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(combined)))
		}
		return string(combined), nil
	})
	s, _ := out.(string)
	return s, err
}

// StashPush stashes uncommitted changes for later rollback. Returns true
// only when a stash entry was actually created: a clean tree exits zero but
// stashes nothing, and popping in that case would restore some older stash.
func (c *Client) StashPush() bool {
	if c.disabled {
		return false
	}
	out, err := c.run("stash", "push", "-m", "mnemo apply pre-backup")
	if err != nil {
		log.Printf("gitops: stash push failed: %v", err)
		return false
	}
	return !strings.Contains(out, "No local changes to save")
}

// StashPop restores the stashed state, rolling back the workspace.
func (c *Client) StashPop() bool {
	if c.disabled {
		return false
	}
	if _, err := c.run("stash", "pop"); err != nil {
		log.Printf("gitops: stash pop failed: %v", err)
		return false
	}
	return true
}

// StashDrop discards the rollback stash after a successful apply.
func (c *Client) StashDrop() bool {
	if c.disabled {
		return false
	}
	if _, err := c.run("stash", "drop"); err != nil {
		log.Printf("gitops: stash drop failed: %v", err)
		return false
	}
	return true
}

// Commit stages the directive files and commits them. The add step is
// best-effort; only the commit result is reported.
func (c *Client) Commit(message string) bool {
	if c.disabled {
		return false
	}
	specs := []string{"memory/"}
	if matches, _ := filepath.Glob(filepath.Join(c.dir, "*.rst")); len(matches) > 0 {
		specs = append(specs, "*.rst")
	}
	if _, err := c.run(append([]string{"add", "--"}, specs...)...); err != nil {
		log.Printf("gitops: add failed: %v", err)
	}
	if _, err := c.run("commit", "-m", message); err != nil {
		log.Printf("gitops: commit failed: %v", err)
		return false
	}
	return true
}
