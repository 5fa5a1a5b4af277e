// Package consolidate merges independent per-seat results into one combined
// artifact. The merge is deterministic and order-preserving: each seat
// becomes one section in seat order, and failed seats render a visible
// warning instead of being silently omitted.
package consolidate

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agencykit/agencykit/core"
)

// failureMarker renders in place of a failed seat's (empty) output.
const failureMarker = "⚠️ Seat failed"

// Consolidate produces the markdown-flavored prose merge that accompanies
// every execution result regardless of the requested format.
func Consolidate(goal string, results []core.SeatResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Agency Result: %s\n\n", goal)
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n---\n\n")
		}
		fmt.Fprintf(&b, "## %s (%s)\n\n", r.RoleID, r.PersonaID)
		if r.Failed() {
			fmt.Fprintf(&b, "%s: %s\n", failureMarker, r.Error)
			continue
		}
		b.WriteString(r.Output)
		b.WriteString("\n")
	}
	return b.String()
}

// Format renders the results in the requested output format. Malformed
// content degrades to an empty string; Format never fails the execution.
func Format(format core.OutputFormat, goal string, results []core.SeatResult) core.FormattedOutput {
	out := core.FormattedOutput{Format: format}
	switch format {
	case core.FormatJSON:
		out.Content = formatJSON(results)
	case core.FormatCSV:
		out.Content = formatCSV(results)
	case core.FormatText:
		out.Content = formatText(results)
	default:
		out.Format = core.FormatMarkdown
		out.Content = Consolidate(goal, results)
	}
	return out
}

func formatJSON(results []core.SeatResult) string {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}

func formatCSV(results []core.SeatResult) string {
	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write([]string{"roleId", "personaId", "status", "output"})
	for _, r := range results {
		status := "success"
		if r.Failed() {
			status = "failed"
		}
		_ = w.Write([]string{r.RoleID, r.PersonaID, status, r.Output})
	}
	w.Flush()
	if w.Error() != nil {
		return ""
	}
	return b.String()
}

func formatText(results []core.SeatResult) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		body := r.Output
		if r.Failed() {
			body = fmt.Sprintf("%s: %s", failureMarker, r.Error)
		}
		lines = append(lines, fmt.Sprintf("[%s] %s", r.RoleID, body))
	}
	return strings.Join(lines, "\n")
}
