package history

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// timeLayout is used for timestamps in rendered output.
const timeLayout = "2006-01-02 15:04:05"

// HostMasker rewrites hostnames before they are rendered. It lets the CLI
// hide onion addresses; nil leaves them as they are.
type HostMasker func(string) string

func (m HostMasker) apply(s string) string {
	if m == nil {
		return s
	}
	return m(s)
}

// status is the text shown in the status column.
func status(e Entry) string {
	if e.Error != "" {
		return "error"
	}
	if e.StatusCode == 0 {
		return "-"
	}
	return strconv.Itoa(e.StatusCode) + " " + http.StatusText(e.StatusCode)
}

// WriteText writes entries as an aligned plain-text table.
func WriteText(w io.Writer, entries []Entry, mask HostMasker) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No fetch history.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tDOMAIN\tBACKEND\tSTATUS\tDURATION\tURL")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format(timeLayout),
			e.Domain,
			e.Backend,
			status(e),
			e.Duration.Round(time.Millisecond),
			mask.apply(e.URL),
		)
		if e.Error != "" {
			fmt.Fprintf(tw, "\t\t\t\t\t  %s\n", mask.apply(e.Error))
		}
	}
	return tw.Flush()
}

// WriteMarkdown writes entries as a GitHub Flavored Markdown report with a
// summary table, a routing pie chart and one row per fetch.
func WriteMarkdown(w io.Writer, entries []Entry, mask HostMasker) error {
	md := markdown.NewMarkdown(w)
	md.H1("torhybrid Fetch History")
	md.PlainText("")

	if len(entries) == 0 {
		md.Note("No fetch history.")
		return md.Build()
	}

	var overlay, clearnet, failed int
	for _, e := range entries {
		if e.Domain == "tor" {
			overlay++
		} else {
			clearnet++
		}
		if !e.Succeeded() {
			failed++
		}
	}

	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Fetches", strconv.Itoa(len(entries))},
			{"Through Tor", strconv.Itoa(overlay)},
			{"Direct", strconv.Itoa(clearnet)},
			{"Failed", strconv.Itoa(failed)},
		},
	})
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Routing"),
		piechart.WithShowData(true),
	)
	if overlay > 0 {
		chart.LabelAndIntValue("Tor", uint64(overlay))
	}
	if clearnet > 0 {
		chart.LabelAndIntValue("Clearnet", uint64(clearnet))
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")

	if failed > 0 {
		md.Warningf("%d of %d fetches failed.", failed, len(entries))
		md.PlainText("")
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		detail := status(e)
		if e.Error != "" {
			detail = mask.apply(e.Error)
		}
		rows = append(rows, []string{
			e.Timestamp.UTC().Format(timeLayout),
			"`" + mask.apply(e.URL) + "`",
			e.Domain,
			e.Backend,
			detail,
			e.Duration.Round(time.Millisecond).String(),
		})
	}

	md.H2("Fetches")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Time (UTC)", "URL", "Domain", "Backend", "Result", "Duration"},
		Rows:   rows,
	})

	return md.Build()
}
