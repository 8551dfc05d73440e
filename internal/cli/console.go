package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/picklr-io/infraviz/internal/logging"
	"github.com/picklr-io/infraviz/internal/service"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive console for generating and deploying stacks",
	Long: `Opens an interactive console backed by a single in-process service.
Stacks and the deploy session live for the length of the console.

Available commands:
  generate <description>              Generate a new stack
  update <stack-id> <change>          Revise an existing stack
  configure <token> <org> [env]       Validate a Pulumi token and start a session
  logout                              Forget the session
  deploy <stack-id>                   Deploy a stack
  show <stack-id>                     Show a stack
  json <stack-id>                     Show a stack as JSON
  stacks                              List all stacks
  help                                Show available commands
  exit / quit                         Exit the console`,
	RunE: runConsole,
}

func runConsole(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := service.FromConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logging.Warn("failed to close service", "error", err)
		}
	}()

	if n, err := rt.Restore(ctx); err != nil {
		logging.Warn("failed to restore snapshots", "error", err)
	} else if n > 0 {
		fmt.Printf("Restored %d stack(s) from snapshots.\n", n)
	}

	c := &console{svc: rt.Service, out: cmd.OutOrStdout(), prompt: true}
	return c.run(ctx, os.Stdin)
}

// console executes REPL lines against a Service.
type console struct {
	svc    *service.Service
	out    io.Writer
	prompt bool
}

func (c *console) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(c.out, "Infraviz Console (type 'help' for commands, 'exit' to quit)")

	scanner := bufio.NewScanner(in)
	for {
		if c.prompt {
			fmt.Fprint(c.out, "infraviz> ")
		}
		if !scanner.Scan() {
			break
		}
		if done := c.exec(ctx, scanner.Text()); done {
			fmt.Fprintln(c.out, "Bye!")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return scanner.Err()
}

// exec runs one line and reports whether the console should exit.
func (c *console) exec(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	command, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	parts := strings.Fields(rest)

	switch command {
	case "exit", "quit":
		return true

	case "help":
		fmt.Fprintln(c.out, "Available commands:")
		fmt.Fprintln(c.out, "  generate <description>          - Generate a new stack")
		fmt.Fprintln(c.out, "  update <stack-id> <change>      - Revise an existing stack")
		fmt.Fprintln(c.out, "  configure <token> <org> [env]   - Start a deploy session")
		fmt.Fprintln(c.out, "  logout                          - Forget the deploy session")
		fmt.Fprintln(c.out, "  deploy <stack-id>               - Deploy a stack")
		fmt.Fprintln(c.out, "  show <stack-id>                 - Show a stack")
		fmt.Fprintln(c.out, "  json <stack-id>                 - Show a stack as JSON")
		fmt.Fprintln(c.out, "  stacks                          - List all stacks")
		fmt.Fprintln(c.out, "  exit / quit                     - Exit the console")

	case "generate":
		if rest == "" {
			fmt.Fprintln(c.out, "Usage: generate <description>")
			return false
		}
		res, err := c.svc.Generate(ctx, rest)
		if err != nil {
			fmt.Fprintf(c.out, "Error: %s\n", err)
			return false
		}
		renderGraphResult(c.out, res)

	case "update":
		if len(parts) < 2 {
			fmt.Fprintln(c.out, "Usage: update <stack-id> <change>")
			return false
		}
		change := strings.TrimSpace(strings.TrimPrefix(rest, parts[0]))
		res, err := c.svc.Update(ctx, parts[0], change)
		if err != nil {
			fmt.Fprintf(c.out, "Error: %s\n", err)
			return false
		}
		renderGraphResult(c.out, res)

	case "configure":
		if len(parts) < 2 || len(parts) > 3 {
			fmt.Fprintln(c.out, "Usage: configure <token> <org> [environment]")
			return false
		}
		env := ""
		if len(parts) == 3 {
			env = parts[2]
		}
		res := c.svc.ConfigureSession(ctx, parts[0], parts[1], env)
		fmt.Fprintln(c.out, res.Message)

	case "logout":
		c.svc.ClearSession()
		fmt.Fprintln(c.out, "Session cleared.")

	case "deploy":
		if len(parts) != 1 {
			fmt.Fprintln(c.out, "Usage: deploy <stack-id>")
			return false
		}
		renderDeployResult(c.out, c.svc.Deploy(ctx, parts[0]))

	case "show":
		if len(parts) != 1 {
			fmt.Fprintln(c.out, "Usage: show <stack-id>")
			return false
		}
		rec, ok := c.svc.Stack(parts[0])
		if !ok {
			fmt.Fprintf(c.out, "Stack %s not found.\n", parts[0])
			return false
		}
		renderRecord(c.out, rec)

	case "json":
		if len(parts) != 1 {
			fmt.Fprintln(c.out, "Usage: json <stack-id>")
			return false
		}
		rec, ok := c.svc.Stack(parts[0])
		if !ok {
			fmt.Fprintf(c.out, "Stack %s not found.\n", parts[0])
			return false
		}
		data, _ := json.MarshalIndent(rec, "", "  ")
		fmt.Fprintln(c.out, string(data))

	case "stacks":
		recs := c.svc.Stacks()
		if len(recs) == 0 {
			fmt.Fprintln(c.out, "No stacks.")
			return false
		}
		for _, rec := range recs {
			fmt.Fprintf(c.out, "  %s  %-9s  %3d resource(s)  $%.2f/mo\n",
				rec.StackID, rec.DeployStatus, len(rec.Nodes), rec.TotalCost)
		}

	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for available commands)\n", command)
	}
	return false
}
