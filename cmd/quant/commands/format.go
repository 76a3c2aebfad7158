package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/internal/execution"
	"github.com/wonny/aegis-swing/internal/pipeline"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintHeader prints a boxed command title
func PrintHeader(title string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println()
	fmt.Printf("⚠️  %s\n", message)
	fmt.Println()
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// PrintRunReport prints a weekend pipeline report
func PrintRunReport(r *pipeline.RunReport) {
	PrintHeader("Weekend pipeline " + string(r.Week))
	PrintKeyValue("State", string(r.State), 12)
	PrintKeyValue("Run ID", r.RunID, 12)
	PrintKeyValue("Instruments", fmt.Sprintf("%d (fetch failures %d)", r.Instruments, len(r.FetchFailures)), 12)
	PrintKeyValue("Signals", fmt.Sprintf("%d", r.Signals), 12)
	PrintKeyValue("Duration", r.Duration.String(), 12)
	if r.Skipped {
		PrintWarning("Week already frozen, nothing recomputed")
	}
	if r.Error != "" {
		PrintError(r.Error)
	}

	if len(r.Candidates) > 0 {
		fmt.Println()
		widths := []int{18, 10, 30}
		PrintTableHeader([]string{"Strategy", "Candidates", "Error"}, widths)
		ids := make([]string, 0, len(r.Candidates))
		for id := range r.Candidates {
			ids = append(ids, string(id))
		}
		sort.Strings(ids)
		for _, id := range ids {
			sid := contracts.StrategyID(id)
			PrintTableRow([]string{id, fmt.Sprintf("%d", r.Candidates[sid]), r.StrategyErrors[sid]}, widths)
		}
	}
	for _, w := range r.Warnings {
		fmt.Printf("   • %s\n", w)
	}
}

// PrintScanReport prints one scan window's decisions
func PrintScanReport(r *execution.ScanReport) {
	PrintHeader(fmt.Sprintf("Scan %s (%s)", r.Strategy, r.Week))
	widths := []int{8, 6, 10, 40}
	PrintTableHeader([]string{"Symbol", "Score", "Outcome", "Reasons"}, widths)
	for _, d := range append(append([]execution.Decision{}, r.Orders...), r.Skips...) {
		detail := strings.Join(d.Reasons, ", ")
		if d.Detail != "" {
			detail = strings.TrimPrefix(detail+"; "+d.Detail, "; ")
		}
		PrintTableRow([]string{d.Symbol, fmt.Sprintf("%d", d.Score), string(d.Outcome), detail}, widths)
	}
	if len(r.Deferred) > 0 {
		PrintWarning("Deferred to next window: " + strings.Join(r.Deferred, ", "))
	}
	for _, e := range r.Errors {
		PrintError(e)
	}
}
