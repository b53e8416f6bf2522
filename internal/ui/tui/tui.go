// Package tui is an interactive call viewer fed by a transport channel.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zboralski/jniscope/internal/transport"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(highlight).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().Foreground(special)

	detailStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), true, false, false, false).
			BorderForeground(subtle)

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#969B86", Dark: "#696969"})
)

const (
	detailHeight = 8
	chromeHeight = 4 // title, filter line, help and the detail border
)

var columns = []table.Column{
	{Title: "#", Width: 6},
	{Title: "tid", Width: 5},
	{Title: "+ms", Width: 8},
	{Title: "table", Width: 7},
	{Title: "method", Width: 32},
	{Title: "ret", Width: 20},
}

type callMsg struct{ m *transport.Message }

type doneMsg struct{}

// waitForCall reads the next message off src.
func waitForCall(src <-chan *transport.Message) tea.Cmd {
	return func() tea.Msg {
		m, ok := <-src
		if !ok {
			return doneMsg{}
		}
		return callMsg{m}
	}
}

// Model lists intercepted calls and shows the selected one in full.
type Model struct {
	src     <-chan *transport.Message
	title   string
	calls   []*transport.Message
	visible []int // indexes into calls that pass the filter

	table  table.Model
	detail viewport.Model

	filterMode bool
	filterText string
	follow     bool
	done       bool
}

// New returns a viewer reading from src until it is closed.
func New(title string, src <-chan *transport.Message) *Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(styles)

	return &Model{
		src:    src,
		title:  title,
		table:  t,
		detail: viewport.New(80, detailHeight),
		follow: true,
	}
}

func (m *Model) Init() tea.Cmd {
	return waitForCall(m.src)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case callMsg:
		m.calls = append(m.calls, msg.m)
		if m.matches(msg.m) {
			m.visible = append(m.visible, len(m.calls)-1)
			m.table.SetRows(append(m.table.Rows(), row(len(m.calls)-1, msg.m)))
			if m.follow {
				m.table.GotoBottom()
			}
		}
		m.refreshDetail()
		return m, waitForCall(m.src)

	case doneMsg:
		m.done = true
		return m, nil

	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width)
		m.table.SetHeight(max(msg.Height-detailHeight-chromeHeight, 3))
		m.detail.Width = msg.Width
		m.refreshDetail()

	case tea.KeyMsg:
		if m.filterMode {
			switch msg.String() {
			case "enter":
				m.filterMode = false
			case "esc":
				m.filterMode = false
				m.filterText = ""
				m.applyFilter()
			case "backspace":
				if len(m.filterText) > 0 {
					m.filterText = m.filterText[:len(m.filterText)-1]
					m.applyFilter()
				}
			case "ctrl+c":
				return m, tea.Quit
			default:
				if len(msg.String()) == 1 {
					m.filterText += msg.String()
					m.applyFilter()
				}
			}
			return m, nil
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "/":
			m.filterMode = true
		case "f":
			m.follow = !m.follow
		case "esc":
			if m.filterText != "" {
				m.filterText = ""
				m.applyFilter()
			}
		case "J":
			m.detail.LineDown(1)
		case "K":
			m.detail.LineUp(1)
		default:
			m.table, cmd = m.table.Update(msg)
			m.follow = m.table.Cursor() == len(m.visible)-1
			m.refreshDetail()
		}
	}

	return m, cmd
}

func (m *Model) View() string {
	status := fmt.Sprintf("%d calls", len(m.calls))
	if m.filterText != "" {
		status = fmt.Sprintf("%d/%d calls", len(m.visible), len(m.calls))
	}
	if m.done {
		status += ", finished"
	}
	header := titleStyle.Render(m.title) + " " + statusStyle.Render(status)

	filter := ""
	if m.filterMode || m.filterText != "" {
		filter = "filter: " + m.filterText
		if m.filterMode {
			filter += "█"
		}
	}

	help := helpStyle.Render("↑/↓ select • / filter • f follow • J/K scroll detail • q quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		filter,
		m.table.View(),
		detailStyle.Render(m.detail.View()),
		help,
	)
}

// Selected returns the highlighted call, or nil.
func (m *Model) Selected() *transport.Message {
	c := m.table.Cursor()
	if c < 0 || c >= len(m.visible) {
		return nil
	}
	return m.calls[m.visible[c]]
}

func (m *Model) matches(msg *transport.Message) bool {
	if m.filterText == "" {
		return true
	}
	f := strings.ToLower(m.filterText)
	return strings.Contains(strings.ToLower(msg.Method.Name), f) ||
		strings.Contains(strings.ToLower(msg.Method.Java), f) ||
		strings.Contains(strings.ToLower(msg.CallType), f)
}

func (m *Model) applyFilter() {
	m.visible = m.visible[:0]
	rows := make([]table.Row, 0, len(m.calls))
	for i, c := range m.calls {
		if m.matches(c) {
			m.visible = append(m.visible, i)
			rows = append(rows, row(i, c))
		}
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(max(len(rows)-1, 0))
	}
	m.refreshDetail()
}

func (m *Model) refreshDetail() {
	sel := m.Selected()
	if sel == nil {
		m.detail.SetContent("")
		return
	}
	var b strings.Builder
	b.WriteString(transport.Format(sel, true))
	for i, a := range sel.Args {
		if a.Data != "" {
			fmt.Fprintf(&b, "\narg%d %s: %s", i, a.Type, a.Data)
		}
	}
	if sel.Ret.Data != "" {
		fmt.Fprintf(&b, "\nret %s: %s", sel.Ret.Type, sel.Ret.Data)
	}
	m.detail.SetContent(b.String())
}

func row(i int, m *transport.Message) table.Row {
	method := m.Method.Name
	if m.Method.Java != "" {
		method += " " + m.Method.Java
	}
	ret := ""
	if m.Method.Ret != "void" {
		ret = m.Ret.Value
		if m.Ret.Metadata != "" {
			ret += " " + m.Ret.Metadata
		}
	}
	return table.Row{
		fmt.Sprint(i + 1),
		fmt.Sprint(m.ThreadID),
		fmt.Sprint(m.Timestamp),
		m.CallType,
		method,
		ret,
	}
}

// Run shows the viewer until the user quits or ctx is cancelled.
func Run(ctx context.Context, title string, src <-chan *transport.Message) error {
	p := tea.NewProgram(New(title, src), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
