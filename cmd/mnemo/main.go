// cmd/mnemo is the command-line front end for the memory workspace: authoring
// and recalling memories, rebuilding the snapshot index, and running the
// maintenance planner/executor pipeline.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mnemo-sh/mnemo/internal/config"
	"github.com/mnemo-sh/mnemo/internal/workspace"
)

const version = "1.0.0"

const usageText = `mnemo — persistent memory for AI-assisted development

Usage: mnemo <command> [flags]

Authoring:
  init [dir]     Scaffold a new memory workspace
  add            Record a new memory
  update         Change metadata fields on a memory
  deprecate      Mark a memory deprecated
  review         Mark a memory reviewed and push out its review date

Recall:
  recall [words] Search memories (tag AND, text OR, graph expansion)
  get <id>       Show one memory in full
  related <id>   Walk the link graph out from one memory
  list           List memories, optionally by type or status
  tags           Show tag usage grouped by namespace
  stale          Report expired and review-overdue memories

Maintenance:
  rebuild        Re-parse directive files and refresh the snapshot index
  plan           Propose maintenance actions without changing anything
  apply          Validate and apply a maintenance plan
  watch          Rebuild automatically when directive files change
  doctor         Check workspace health

  version        Print the version

Run 'mnemo <command> -h' for command flags.
`

func main() {
	log.SetOutput(os.Stderr)
	log.SetPrefix("mnemo: ")
	log.SetFlags(0)

	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usageText)
		return 2
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "init":
		return cmdInit(rest)
	case "add":
		return cmdAdd(rest)
	case "update":
		return cmdUpdate(rest)
	case "deprecate":
		return cmdDeprecate(rest)
	case "review":
		return cmdReview(rest)
	case "recall":
		return cmdRecall(rest)
	case "get":
		return cmdGet(rest)
	case "related":
		return cmdRelated(rest)
	case "list":
		return cmdList(rest)
	case "tags":
		return cmdTags(rest)
	case "stale":
		return cmdStale(rest)
	case "rebuild":
		return cmdRebuild(rest)
	case "plan":
		return cmdPlan(rest)
	case "apply":
		return cmdApply(rest)
	case "watch":
		return cmdWatch(rest)
	case "doctor":
		return cmdDoctor(rest)
	case "version", "--version":
		fmt.Println("mnemo " + version)
		return 0
	case "help", "-h", "--help":
		fmt.Print(usageText)
		return 0
	default:
		log.Printf("unknown command %q", cmd)
		fmt.Fprint(os.Stderr, usageText)
		return 2
	}
}

// newFlagSet builds a per-command flag set with the shared -dir flag.
func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	dir := fs.String("dir", "", "workspace directory (default: $MNEMO_DIR or walk up from cwd)")
	return fs, dir
}

// openWorkspace parses flags and resolves the workspace.
func openWorkspace(fs *flag.FlagSet, dir *string, args []string) (*workspace.Workspace, int) {
	if err := fs.Parse(args); err != nil {
		return nil, 2
	}
	ws, err := workspace.Find(*dir, config.Load().Workspace.Dir)
	if err != nil {
		log.Print(err)
		return nil, 1
	}
	return ws, 0
}

func fail(err error) int {
	log.Print(err)
	return 1
}
