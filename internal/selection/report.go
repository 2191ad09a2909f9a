package selection

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// NewTable returns a rounded table writer mirrored to w
func NewTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

// Report renders the sorted items with their labels and the savings line
func Report(w io.Writer, r *Result) {
	t := NewTable(w)
	t.SetTitle(fmt.Sprintf("%q, %d items", r.Target.SearchTerm, len(r.Sorted)))
	t.AppendHeader(table.Row{"#", "Item", "Vendor", "Rank", "Price (₺)", "Label"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight},
	})

	for i, it := range r.Sorted {
		label := r.Label(i)
		if i == r.TargetIndex {
			label = "» " + label
		}
		t.AppendRow(table.Row{i + 1, it.Name, it.VendorName, it.VendorRank, fmt.Sprintf("%.2f", it.Price), label})
	}

	t.AppendFooter(table.Row{"", "Savings", "", "", fmt.Sprintf("%.2f", r.Savings), fmt.Sprintf("%.1f%%", r.SavingsPercent)})
	t.Render()
}

// ReportStats renders a Stats summary
func ReportStats(w io.Writer, s Stats) {
	t := NewTable(w)
	t.AppendHeader(table.Row{"Count", "Min", "Max", "Avg"})
	t.AppendRow(table.Row{s.Count, fmt.Sprintf("%.2f", s.Min), fmt.Sprintf("%.2f", s.Max), fmt.Sprintf("%.2f", s.Avg)})
	t.Render()
}
