package entryui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"meetbot/internal/timetable"
)

type collector struct {
	entries []timetable.Entry
	err     error
}

func (c *collector) save(e timetable.Entry) error {
	if c.err != nil {
		return c.err
	}
	c.entries = append(c.entries, e)
	return nil
}

func TestRunPlain_AddsEntryWithReprompts(t *testing.T) {
	input := strings.Join([]string{
		"9",
		"1",
		"",
		"Team Rockers",
		"Maths",
		"10am",
		"10:00",
		"25:00",
		"10:50",
		"Funday",
		"monday",
		"2",
	}, "\n") + "\n"
	var out bytes.Buffer
	var c collector

	n, err := RunPlain(strings.NewReader(input), &out, c.save)
	if err != nil {
		t.Fatalf("RunPlain failed: %v", err)
	}
	if n != 1 || len(c.entries) != 1 {
		t.Fatalf("saved=%d entries=%d, want 1", n, len(c.entries))
	}
	e := c.entries[0]
	if e.Team != "Team Rockers" || e.Meeting != "Maths" || e.Start.String() != "10:00" || e.End.String() != "10:50" || e.Day != timetable.Monday {
		t.Fatalf("entry=%+v", e)
	}
	text := out.String()
	for _, want := range []string{
		"Invalid option.",
		"Team Name cannot be blank.",
		"Invalid time format. Please use HH:MM.",
		"Invalid day. Choose from Monday, Tuesday, etc.",
		"Entry added!",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Count(text, "Invalid time format") != 2 {
		t.Fatalf("expected two time reprompts:\n%s", text)
	}
}

func TestRunPlain_EOFStopsCleanly(t *testing.T) {
	var c collector
	n, err := RunPlain(strings.NewReader("1\nTeam\n"), &bytes.Buffer{}, c.save)
	if err != nil || n != 0 {
		t.Fatalf("n=%d err=%v", n, err)
	}
}

func TestRunPlain_SaveErrorIsReturned(t *testing.T) {
	c := collector{err: errors.New("disk full")}
	_, err := RunPlain(strings.NewReader("1\nT\nM\n10:00\n10:50\nmonday\n"), &bytes.Buffer{}, c.save)
	if err == nil || err.Error() != "disk full" {
		t.Fatalf("err=%v, want disk full", err)
	}
}

func typeText(m tea.Model, s string) tea.Model {
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

func press(m tea.Model, k tea.KeyType) (tea.Model, tea.Cmd) {
	return m.Update(tea.KeyMsg{Type: k})
}

func TestFormModel_SavesAndResets(t *testing.T) {
	var c collector
	var m tea.Model = newFormModel(c.save)

	for i, v := range []string{"Team Rockers", "Maths", "10:00", "10:50", "Monday"} {
		m = typeText(m, v)
		if i < fieldCount-1 {
			m, _ = press(m, tea.KeyEnter)
		}
	}
	m, _ = press(m, tea.KeyEnter)

	if len(c.entries) != 1 {
		t.Fatalf("entries=%d, want 1", len(c.entries))
	}
	fm := m.(formModel)
	if fm.saved != 1 || fm.noticeErr || fm.focus != fieldTeam {
		t.Fatalf("model after save: saved=%d noticeErr=%v focus=%d", fm.saved, fm.noticeErr, fm.focus)
	}
	if fm.value(fieldTeam) != "" {
		t.Fatalf("inputs not reset")
	}
	if !strings.Contains(fm.View(), "1 saved") {
		t.Fatalf("view missing saved count")
	}
}

func TestFormModel_InvalidEntryShowsError(t *testing.T) {
	var c collector
	var m tea.Model = newFormModel(c.save)
	m = typeText(m, "T")
	m, _ = press(m, tea.KeyTab)
	m = typeText(m, "M")
	m, _ = press(m, tea.KeyTab)
	m = typeText(m, "9:00")
	for i := 0; i < 2; i++ {
		m, _ = press(m, tea.KeyTab)
	}
	m = typeText(m, "monday")
	m, _ = press(m, tea.KeyEnter)

	fm := m.(formModel)
	if len(c.entries) != 0 || !fm.noticeErr {
		t.Fatalf("invalid entry saved or no error shown: %+v", fm.notice)
	}
}

func TestFormModel_FocusWraps(t *testing.T) {
	var m tea.Model = newFormModel((&collector{}).save)
	m, _ = press(m, tea.KeyShiftTab)
	if got := m.(formModel).focus; got != fieldDay {
		t.Fatalf("focus=%d, want %d", got, fieldDay)
	}
	_, cmd := press(m, tea.KeyEsc)
	if cmd == nil {
		t.Fatalf("esc should quit")
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(""); err != nil || m != ModeTUI {
		t.Fatalf("ParseMode(\"\")=%q,%v", m, err)
	}
	if m, err := ParseMode("PLAIN"); err != nil || m != ModePlain {
		t.Fatalf("ParseMode(PLAIN)=%q,%v", m, err)
	}
	if _, err := ParseMode("gui"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestRenderTable_AlignsWideCells(t *testing.T) {
	a, _ := timetable.NewEntry("Team Rockers", "Maths", "10:00", "10:50", "monday")
	b, _ := timetable.NewEntry("数学组", "Physics", "09:15", "10:00", "wednesday")
	var out bytes.Buffer
	RenderTable(&out, []timetable.Entry{a, b}, false)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 7 {
		t.Fatalf("lines=%d:\n%s", len(lines), out.String())
	}
	// The Meeting column starts at the same cell offset on every row.
	col := func(line string) int {
		i := strings.LastIndex(line, " | ")
		return runewidth.StringWidth(line[:i])
	}
	if col(lines[2]) != col(lines[4]) || col(lines[4]) != col(lines[5]) {
		t.Fatalf("misaligned columns:\n%s", out.String())
	}
	if !strings.Contains(lines[5], "Wednesday") {
		t.Fatalf("row missing title-cased day: %q", lines[5])
	}
}

func TestRenderTable_Empty(t *testing.T) {
	var out bytes.Buffer
	RenderTable(&out, nil, false)
	if !strings.Contains(out.String(), "No timetable found") {
		t.Fatalf("unexpected output %q", out.String())
	}
}
