package entryui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"meetbot/internal/timetable"
)

// SaveFunc persists one validated entry.
type SaveFunc func(timetable.Entry) error

const (
	promptTeam    = "Enter Team Name (e.g. Team Rockers): "
	promptMeeting = "Enter Meeting Name (e.g. Maths): "
	promptStart   = "Enter meeting start time (HH:MM, 24-hour): "
	promptEnd     = "Enter meeting end time (HH:MM, 24-hour): "
	promptDay     = "Enter day of week (Monday/Tuesday/...): "
)

// RunPlain is the line-prompt entry loop used when no terminal UI is
// available. It returns the number of entries saved.
func RunPlain(in io.Reader, out io.Writer, save SaveFunc) (int, error) {
	if save == nil {
		return 0, errors.New("save func is nil")
	}
	p := &prompter{sc: bufio.NewScanner(in), out: out}
	saved := 0
	for {
		op, ok := p.ask("1. Add a meeting entry\n2. Done adding\nEnter option: ")
		if !ok || op == "2" {
			return saved, p.err()
		}
		if op != "1" {
			fmt.Fprintln(out, "Invalid option.")
			continue
		}

		e, ok := p.readEntry()
		if !ok {
			return saved, p.err()
		}
		if err := save(e); err != nil {
			return saved, err
		}
		saved++
		if e.Inverted() {
			fmt.Fprintln(out, "Note: end time is not after start time; the bot will leave immediately.")
		}
		fmt.Fprintln(out, "Entry added!")
		fmt.Fprintln(out)
	}
}

type prompter struct {
	sc  *bufio.Scanner
	out io.Writer
}

func (p *prompter) ask(prompt string) (string, bool) {
	fmt.Fprint(p.out, prompt)
	if !p.sc.Scan() {
		fmt.Fprintln(p.out)
		return "", false
	}
	return strings.TrimSpace(p.sc.Text()), true
}

func (p *prompter) err() error {
	return p.sc.Err()
}

// askUntil re-prompts until check accepts the answer.
func (p *prompter) askUntil(prompt string, check func(string) string) (string, bool) {
	for {
		v, ok := p.ask(prompt)
		if !ok {
			return "", false
		}
		if msg := check(v); msg != "" {
			fmt.Fprintln(p.out, msg)
			continue
		}
		return v, true
	}
}

func (p *prompter) readEntry() (timetable.Entry, bool) {
	team, ok := p.askUntil(promptTeam, checkName("Team Name"))
	if !ok {
		return timetable.Entry{}, false
	}
	meeting, ok := p.askUntil(promptMeeting, checkName("Meeting Name"))
	if !ok {
		return timetable.Entry{}, false
	}
	start, ok := p.askUntil(promptStart, checkClock)
	if !ok {
		return timetable.Entry{}, false
	}
	end, ok := p.askUntil(promptEnd, checkClock)
	if !ok {
		return timetable.Entry{}, false
	}
	day, ok := p.askUntil(promptDay, checkDay)
	if !ok {
		return timetable.Entry{}, false
	}
	e, err := timetable.NewEntry(team, meeting, start, end, day)
	if err != nil {
		// Each field was checked above.
		fmt.Fprintln(p.out, err)
		return timetable.Entry{}, false
	}
	return e, true
}

func checkName(label string) func(string) string {
	return func(v string) string {
		if strings.TrimSpace(v) == "" {
			return label + " cannot be blank."
		}
		return ""
	}
}

func checkClock(v string) string {
	if _, err := timetable.ParseClock(v); err != nil {
		return "Invalid time format. Please use HH:MM."
	}
	return ""
}

func checkDay(v string) string {
	if _, err := timetable.ParseDay(v); err != nil {
		return "Invalid day. Choose from Monday, Tuesday, etc."
	}
	return ""
}
