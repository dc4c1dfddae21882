package output

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/handoff-sh/handoff/pkg/escalation"
)

const reasonColumnWidth = 48

func WriteEscalationTable(w io.Writer, records []*escalation.Record) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tURGENCY\tCATEGORY\tSTATUS\tREQUESTER\tCREATED\tREASON")
	for _, r := range records {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Urgency, r.Category, r.Status, r.RequesterID,
			formatTime(r.CreatedAt), truncate(r.Reason, reasonColumnWidth))
	}
	_ = tw.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
