package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
)

const pageWindow = 2

// pageStrip renders the pager as "1 ... 4 5 [6] 7 8 ... 20". A single page
// renders nothing.
func pageStrip(current, total int) string {
	if total <= 1 {
		return ""
	}
	if current < 1 {
		current = 1
	}
	if current > total {
		current = total
	}

	label := func(n int) string {
		if n == current {
			return "[" + strconv.Itoa(n) + "]"
		}
		return strconv.Itoa(n)
	}

	parts := []string{label(1)}
	if current-pageWindow > 2 {
		parts = append(parts, "...")
	}
	for i := max(2, current-pageWindow); i <= min(total-1, current+pageWindow); i++ {
		parts = append(parts, label(i))
	}
	if current+pageWindow < total-1 {
		parts = append(parts, "...")
	}
	parts = append(parts, label(total))

	return strings.Join(parts, " ")
}

// printTable writes rows under header with aligned columns.
func printTable(w io.Writer, header []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	_ = tw.Flush()
}

// printFooter is the summary line under every list.
func printFooter(w io.Writer, count, page, totalPages int) {
	fmt.Fprintf(w, "\n%d total", count)
	if strip := pageStrip(page, totalPages); strip != "" {
		fmt.Fprintf(w, "  page %s", strip)
	}
	fmt.Fprintln(w)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
