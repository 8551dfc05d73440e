package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/picklr-io/infraviz/internal/ir"
)

// URNPrefix namespaces every statically extracted URN.
const URNPrefix = "urn:pulumi:dev::infra::"

// declPattern matches `const name = new aws.module.Kind("resource-name"`.
// Groups: binding, provider, module, kind, resource name.
var declPattern = regexp.MustCompile(
	"(?:const|let|var)\\s+(\\w+)\\s*=\\s*new\\s+(aws|gcp|azure)\\.(\\w+)\\.(\\w+)\\s*\\(\\s*[\"'`]([^\"'`]+)[\"'`]")

type declaration struct {
	binding string
	typ     string
	urn     string
	start   int
	ref     *regexp.Regexp
}

// Static scans program text for resource declarations. It never fails.
type Static struct{}

func (Static) Extract(_ context.Context, t Target) ([]ir.PreviewEvent, error) {
	return ParseProgram(t.Program), nil
}

// ResourceType builds the engine type token, e.g. aws:ec2/vpc:Vpc.
func ResourceType(provider, module, kind string) string {
	return fmt.Sprintf("%s:%s/%s:%s", provider, strings.ToLower(module), strings.ToLower(kind), kind)
}

// ParseProgram returns one create event per distinct declaration, in
// declaration order. A declaration depends on every strictly earlier
// declaration whose binding is referenced between its own start and the next
// declaration's start. The span is a textual approximation of scope, not a
// parse.
func ParseProgram(code string) []ir.PreviewEvent {
	var decls []declaration
	seen := make(map[string]bool)

	for _, m := range declPattern.FindAllStringSubmatchIndex(code, -1) {
		binding := code[m[2]:m[3]]
		provider := code[m[4]:m[5]]
		module := code[m[6]:m[7]]
		kind := code[m[8]:m[9]]
		name := code[m[10]:m[11]]

		typ := ResourceType(provider, module, kind)
		urn := URNPrefix + typ + "::" + name
		if seen[urn] {
			continue
		}
		seen[urn] = true

		decls = append(decls, declaration{
			binding: binding,
			typ:     typ,
			urn:     urn,
			start:   m[0],
			// A bare word match also covers property access (vpc.id) and
			// list membership (dependsOn: [vpc]).
			ref: regexp.MustCompile(`\b` + regexp.QuoteMeta(binding) + `\b`),
		})
	}

	events := make([]ir.PreviewEvent, len(decls))
	for i, d := range decls {
		end := len(code)
		if i+1 < len(decls) {
			end = decls[i+1].start
		}
		body := code[d.start:end]

		var deps []string
		for _, earlier := range decls[:i] {
			if earlier.binding == d.binding {
				continue
			}
			if earlier.ref.MatchString(body) {
				deps = append(deps, earlier.urn)
			}
		}

		events[i] = ir.PreviewEvent{
			URN:          d.urn,
			Type:         d.typ,
			Op:           ir.OpCreate,
			Dependencies: deps,
		}
	}
	return events
}
