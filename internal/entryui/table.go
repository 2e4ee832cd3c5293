package entryui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"meetbot/internal/timetable"
)

var tableHeaderStyle = lipgloss.NewStyle().Bold(true)

// RenderTable writes the timetable listing with columns padded to the
// widest cell, measured in terminal cells.
func RenderTable(w io.Writer, entries []timetable.Entry, styled bool) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No timetable found. Please add meetings first.")
		return
	}

	header := []string{"Day", "Start", "End", "Team", "Meeting"}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Day.Title(), e.Start.String(), e.End.String(), e.Team, e.Meeting})
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if cw := runewidth.StringWidth(cell); cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	total := 0
	for _, cw := range widths {
		total += cw
	}
	total += 3 * (len(widths) - 1)

	line := formatRow(header, widths)
	if styled {
		line = tableHeaderStyle.Render(line)
	}
	fmt.Fprintln(w, "Your Timetable:")
	fmt.Fprintln(w, strings.Repeat("-", total))
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, strings.Repeat("-", total))
	for _, row := range rows {
		fmt.Fprintln(w, formatRow(row, widths))
	}
	fmt.Fprintln(w, strings.Repeat("-", total))
}

func formatRow(cells []string, widths []int) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		if i == len(cells)-1 {
			parts[i] = c
			continue
		}
		parts[i] = runewidth.FillRight(c, widths[i])
	}
	return strings.TrimRight(strings.Join(parts, " | "), " ")
}
