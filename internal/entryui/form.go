package entryui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"meetbot/internal/timetable"
)

type Mode string

const (
	ModeTUI   Mode = "tui"
	ModePlain Mode = "plain"
)

// ParseMode accepts "tui" or "plain"; blank means tui.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(ModeTUI):
		return ModeTUI, nil
	case string(ModePlain):
		return ModePlain, nil
	default:
		return "", fmt.Errorf("unknown ui mode %q (use tui or plain)", raw)
	}
}

// IsTerminal reports whether both ends are attached to a TTY.
func IsTerminal(in io.Reader, out io.Writer) bool {
	fi, ok := in.(*os.File)
	if !ok || fi == nil || !term.IsTerminal(int(fi.Fd())) {
		return false
	}
	fo, ok := out.(*os.File)
	return ok && fo != nil && term.IsTerminal(int(fo.Fd()))
}

var (
	formTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	formLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	formFocusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	formOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	formErrStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	formHelpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const (
	fieldTeam = iota
	fieldMeeting
	fieldStart
	fieldEnd
	fieldDay
	fieldCount
)

var fieldLabels = [fieldCount]string{"Team", "Meeting", "Start (HH:MM)", "End (HH:MM)", "Day"}

var fieldPlaceholders = [fieldCount]string{"Team Rockers", "Maths", "10:00", "10:50", "Monday"}

type formModel struct {
	inputs [fieldCount]textinput.Model
	focus  int
	save   SaveFunc

	saved     int
	notice    string
	noticeErr bool
	err       error
}

func newFormModel(save SaveFunc) formModel {
	m := formModel{save: save}
	for i := range m.inputs {
		in := textinput.New()
		in.Placeholder = fieldPlaceholders[i]
		in.Prompt = "› "
		in.CharLimit = 120
		m.inputs[i] = in
	}
	m.inputs[fieldStart].CharLimit = 5
	m.inputs[fieldEnd].CharLimit = 5
	m.inputs[0].Focus()
	return m
}

func (m formModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m formModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "tab", "down":
			m.setFocus(m.focus + 1)
			return m, nil
		case "shift+tab", "up":
			m.setFocus(m.focus - 1)
			return m, nil
		case "enter":
			if m.focus < fieldCount-1 {
				m.setFocus(m.focus + 1)
				return m, nil
			}
			return m.submit()
		}
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *formModel) setFocus(i int) {
	i = (i + fieldCount) % fieldCount
	m.inputs[m.focus].Blur()
	m.focus = i
	m.inputs[m.focus].Focus()
}

func (m formModel) value(i int) string {
	return strings.TrimSpace(m.inputs[i].Value())
}

func (m formModel) submit() (tea.Model, tea.Cmd) {
	e, err := timetable.NewEntry(m.value(fieldTeam), m.value(fieldMeeting), m.value(fieldStart), m.value(fieldEnd), m.value(fieldDay))
	if err != nil {
		m.notice = err.Error()
		m.noticeErr = true
		return m, nil
	}
	if err := m.save(e); err != nil {
		m.err = err
		return m, tea.Quit
	}
	m.saved++
	m.notice = "Entry added: " + e.String()
	if e.Inverted() {
		m.notice += " (ends at or before start; the bot will leave immediately)"
	}
	m.noticeErr = false
	for i := range m.inputs {
		m.inputs[i].Reset()
	}
	m.setFocus(0)
	return m, nil
}

func (m formModel) View() string {
	var b strings.Builder
	b.WriteString(formTitleStyle.Render("Add a meeting entry"))
	b.WriteString("\n\n")
	for i, in := range m.inputs {
		label := formLabelStyle.Render(fieldLabels[i])
		if i == m.focus {
			label = formFocusStyle.Render(fieldLabels[i])
		}
		b.WriteString(label)
		b.WriteString("\n")
		b.WriteString(in.View())
		b.WriteString("\n\n")
	}
	if m.notice != "" {
		style := formOKStyle
		if m.noticeErr {
			style = formErrStyle
		}
		b.WriteString(style.Render(m.notice))
		b.WriteString("\n\n")
	}
	b.WriteString(formHelpStyle.Render(fmt.Sprintf("tab/shift+tab move • enter next/save • esc done • %d saved", m.saved)))
	b.WriteString("\n")
	return b.String()
}

// RunForm runs the full-screen entry form until the operator presses esc.
// It returns the number of entries saved.
func RunForm(ctx context.Context, in io.Reader, out io.Writer, save SaveFunc) (int, error) {
	if save == nil {
		return 0, errors.New("save func is nil")
	}
	if f, ok := out.(*os.File); ok {
		if !term.IsTerminal(int(f.Fd())) {
			return 0, fmt.Errorf("stdout is not a TTY; use --ui=plain")
		}
	}
	prog := tea.NewProgram(
		newFormModel(save),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	final, err := prog.Run()
	if fm, ok := final.(formModel); ok {
		if err == nil {
			err = fm.err
		}
		return fm.saved, err
	}
	return 0, err
}
