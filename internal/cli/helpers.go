package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/picklr-io/infraviz/internal/deploy"
	"github.com/picklr-io/infraviz/internal/ir"
	"github.com/picklr-io/infraviz/internal/service"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorDim    = "\033[2m"
)

// shouldUseColor reports whether stdout gets ANSI colors. It honors
// --no-color, NO_COLOR, CLICOLOR_FORCE and CLICOLOR before TTY detection.
func shouldUseColor() bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// colorize returns code, or nothing when color is off.
func colorize(code string) string {
	if noColor {
		return ""
	}
	return code
}

// opStyle maps a preview op to its plan symbol and color.
func opStyle(op string) (symbol, color string) {
	switch op {
	case ir.OpCreate:
		return "+", colorGreen
	case ir.OpDelete:
		return "-", colorRed
	case ir.OpUpdate:
		return "~", colorYellow
	default:
		return " ", colorReset
	}
}

// renderNodes prints one line per resource with its estimated cost.
func renderNodes(w io.Writer, nodes []ir.GraphNode) {
	for _, n := range nodes {
		symbol, color := opStyle(n.Op)
		price := "      n/a"
		if n.EstimatedCost != nil {
			price = fmt.Sprintf("%9s", fmt.Sprintf("$%.2f", *n.EstimatedCost))
		}
		fmt.Fprintf(w, "%s  %s %s %s%s\n", colorize(color), symbol, price, n.ID, colorize(colorReset))
	}
}

// renderEdges prints the dependency edges, dependency first.
func renderEdges(w io.Writer, edges []ir.GraphEdge) {
	for _, e := range edges {
		fmt.Fprintf(w, "%s  %s -> %s%s\n", colorize(colorDim), e.Source, e.Target, colorize(colorReset))
	}
}

// renderGraphResult prints a generate or update result.
func renderGraphResult(w io.Writer, res *service.GraphResult) {
	fmt.Fprintln(w)
	renderNodes(w, res.Nodes)
	if len(res.Edges) > 0 {
		fmt.Fprintln(w)
		renderEdges(w, res.Edges)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, res.Summary())
	if !res.EngineAvailable {
		fmt.Fprintln(w, "(engine unavailable: resources were extracted from the program text)")
	}
}

// renderDeployResult prints a deploy outcome and its trimmed log.
func renderDeployResult(w io.Writer, res deploy.Result) {
	color := colorRed
	switch res.Status {
	case deploy.StatusDeployed:
		color = colorGreen
	case deploy.StatusNotConfigured:
		color = colorYellow
	}
	for _, line := range res.Logs {
		fmt.Fprintf(w, "  %s\n", line)
	}
	fmt.Fprintf(w, "%s%s%s: %s\n", colorize(color), res.Status, colorize(colorReset), res.Message)
}

// renderRecord prints a stored stack.
func renderRecord(w io.Writer, rec *ir.StackRecord) {
	fmt.Fprintf(w, "Stack:     %s\n", rec.StackID)
	fmt.Fprintf(w, "Status:    %s\n", rec.DeployStatus)
	fmt.Fprintf(w, "Work dir:  %s\n", rec.WorkDir)
	fmt.Fprintf(w, "Resources: %d\n", len(rec.Nodes))
	fmt.Fprintf(w, "Cost:      $%.2f/mo\n", rec.TotalCost)
	fmt.Fprintf(w, "Updated:   %s\n", rec.UpdatedAt.Format("2006-01-02 15:04:05"))
	if len(rec.Nodes) > 0 {
		fmt.Fprintln(w)
		renderNodes(w, rec.Nodes)
	}
}

// readProgram reads a program file, or stdin for "-".
func readProgram(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read program from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read program %s: %w", path, err)
	}
	return string(data), nil
}
