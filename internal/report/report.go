// Package report renders plans and apply results for humans: a fixed-width
// table for the terminal and a markdown summary suitable for handing to a
// pull-request description.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aymerick/raymond"
	"github.com/mattn/go-runewidth"

	"github.com/fleetform/tplsync/internal/engine"
	"github.com/fleetform/tplsync/internal/orchestrator"
)

// PlanTable renders the plan as an aligned text table, one row per path
// with a disposition and detail column.
func PlanTable(plan *engine.Plan) string {
	type row struct {
		path, action, detail string
	}

	rows := []row{{"PATH", "ACTION", "DETAIL"}}
	for _, fc := range plan.Changes {
		rows = append(rows, row{fc.Path, string(fc.Kind), detail(&fc)})
	}

	var wPath, wAction int
	for _, r := range rows {
		if w := runewidth.StringWidth(r.path); w > wPath {
			wPath = w
		}
		if w := runewidth.StringWidth(r.action); w > wAction {
			wAction = w
		}
	}

	var b strings.Builder
	for _, r := range rows {
		b.WriteString(pad(r.path, wPath))
		b.WriteString("  ")
		b.WriteString(pad(r.action, wAction))
		b.WriteString("  ")
		b.WriteString(r.detail)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(plan.Summarize().String())
	b.WriteString("\n")
	return b.String()
}

func pad(s string, w int) string {
	gap := w - runewidth.StringWidth(s)
	if gap <= 0 {
		return s
	}
	return s + strings.Repeat(" ", gap)
}

func detail(fc *engine.FileChange) string {
	switch {
	case fc.Kind == engine.ChangeError:
		return fc.Err
	case fc.Conflicted():
		return fmt.Sprintf("%d conflict(s)", countBlocking(fc))
	case len(fc.Conflicts) > 0:
		return "drift"
	case fc.Reason != "":
		return fc.Reason
	default:
		return ""
	}
}

func countBlocking(fc *engine.FileChange) int {
	n := 0
	for _, c := range fc.Conflicts {
		if c.Blocking() {
			n++
		}
	}
	return n
}

const summaryTemplate = `# Template sync: {{target}}

**State:** {{state}}

{{#if applied}}## Applied
{{#each applied}}- ` + "`{{this}}`" + `
{{/each}}
{{/if}}{{#if conflicts}}## Conflicts requiring resolution
{{#each conflicts}}### ` + "`{{path}}`" + `
{{#each items}}- {{kind}} at lines {{startLine}}-{{endLine}}{{#if blockID}} (block ` + "`{{blockID}}`" + `){{/if}}
{{/each}}
{{/each}}
{{/if}}{{#if errors}}## Errors
{{#each errors}}- ` + "`{{path}}`" + `: {{message}}
{{/each}}
{{/if}}{{#if failed}}## Write failures
{{#each failed}}- ` + "`{{path}}`" + `: {{message}}
{{/each}}
{{/if}}`

// Markdown renders an apply result as a markdown summary for PR handoff.
func Markdown(res *orchestrator.ApplyResult) (string, error) {
	var conflicts []map[string]interface{}
	var errs []map[string]interface{}

	for _, fc := range res.Plan.Changes {
		if fc.Kind == engine.ChangeError {
			errs = append(errs, map[string]interface{}{"path": fc.Path, "message": fc.Err})
			continue
		}
		var items []map[string]interface{}
		for _, c := range fc.Conflicts {
			if !c.Blocking() {
				continue
			}
			items = append(items, map[string]interface{}{
				"kind":      string(c.Kind),
				"startLine": c.StartLine,
				"endLine":   c.EndLine,
				"blockID":   c.BlockID,
			})
		}
		if len(items) > 0 {
			conflicts = append(conflicts, map[string]interface{}{
				"path":  fc.Path,
				"items": items,
			})
		}
	}

	var failed []map[string]interface{}
	for _, p := range sortedKeys(res.Failed) {
		failed = append(failed, map[string]interface{}{"path": p, "message": res.Failed[p]})
	}

	return raymond.Render(summaryTemplate, map[string]interface{}{
		"target":    res.TargetRef.String(),
		"state":     string(res.State),
		"applied":   res.Applied,
		"conflicts": conflicts,
		"errors":    errs,
		"failed":    failed,
	})
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
