// Package report renders dry-run reports and deletion summaries for
// export and terminal display.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/MacJediWizard/shotsweep/internal/deletion"
)

// csvHeader is the column layout consumed by downstream audit tooling.
var csvHeader = []string{
	"action", "version_id", "version_label",
	"component_id", "component_name", "role",
	"size_bytes", "locations",
}

// WriteCSV writes report rows as CSV with a header row.
func WriteCSV(w io.Writer, items []deletion.ReportItem) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, item := range items {
		record := []string{
			string(item.Action),
			item.VersionID,
			item.VersionLabel,
			item.ComponentID,
			item.ComponentName,
			string(item.Role),
			strconv.FormatInt(item.SizeBytes, 10),
			strings.Join(item.Locations, ";"),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes report rows to a file, creating or truncating it.
func WriteCSVFile(path string, items []deletion.ReportItem) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := WriteCSV(f, items); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// FormatSummary renders a deletion summary for terminal output.
func FormatSummary(s deletion.Summary, dryRun bool) string {
	var b strings.Builder
	if dryRun {
		b.WriteString("Dry run - nothing was deleted.\n")
	}
	fmt.Fprintf(&b, "Versions:   %d\n", s.VersionsDeleted)
	fmt.Fprintf(&b, "Components: %d\n", s.ComponentsDeleted)
	fmt.Fprintf(&b, "Size:       %s\n", FormatBytes(s.BytesDeleted))
	if len(s.Failures) > 0 {
		fmt.Fprintf(&b, "Failures:   %d\n", len(s.Failures))
		for _, f := range s.Failures {
			fmt.Fprintf(&b, "  %s: %s\n", f.ID, f.Reason)
		}
	}
	return b.String()
}

// FormatBytes renders a byte count in binary units.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
