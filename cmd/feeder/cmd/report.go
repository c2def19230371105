package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	feeder "github.com/viruscoding/log-feeder"
)

func printReport(w io.Writer, transport string, res *feeder.Result) {
	if !res.Verified {
		fmt.Fprintf(w, "%d records sent; transport %q cannot verify delivery\n", res.Sent, transport)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Type\tValue")
	for _, row := range res.Report.Rows {
		fmt.Fprintf(tw, "%s\t%d\n", row.Label, row.Value)
	}
	tw.Flush()
}
