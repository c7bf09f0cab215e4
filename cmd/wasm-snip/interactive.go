package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	snerr "github.com/wippyai/wasm-snip/errors"
	"github.com/wippyai/wasm-snip/wasm"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	pickedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const pickerWindow = 20

type pickItem struct {
	name     string
	funcIdx  uint32
	selected bool
}

type pickerModel struct {
	filter  textinput.Model
	items   []pickItem
	visible []int // indices into items matching the filter
	cursor  int
	done    bool
	aborted bool
}

func newPickerModel(items []pickItem) *pickerModel {
	ti := textinput.New()
	ti.Placeholder = "filter"
	ti.Prompt = "/"

	m := &pickerModel{filter: ti, items: items}
	m.refilter()
	return m
}

func (m *pickerModel) refilter() {
	query := strings.ToLower(m.filter.Value())
	m.visible = m.visible[:0]
	for i, item := range m.items {
		if query == "" || strings.Contains(strings.ToLower(item.name), query) {
			m.visible = append(m.visible, i)
		}
	}
	if m.cursor >= len(m.visible) {
		m.cursor = 0
	}
}

func (m *pickerModel) Init() tea.Cmd {
	return nil
}

func (m *pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.filter.Focused() {
		switch key.String() {
		case "enter", "esc":
			m.filter.Blur()
			return m, nil
		case "ctrl+c":
			m.aborted = true
			return m, tea.Quit
		default:
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			m.refilter()
			return m, cmd
		}
	}

	switch key.String() {
	case "q", "esc", "ctrl+c":
		m.aborted = true
		return m, tea.Quit
	case "enter":
		m.done = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}
	case " ":
		if len(m.visible) > 0 {
			item := &m.items[m.visible[m.cursor]]
			item.selected = !item.selected
		}
	case "/":
		m.filter.Focus()
		return m, textinput.Blink
	}

	return m, nil
}

func (m *pickerModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("wasm-snip: pick functions to snip"))
	b.WriteString("\n\n")
	b.WriteString(m.filter.View())
	b.WriteString("\n\n")

	start := 0
	if m.cursor >= pickerWindow {
		start = m.cursor - pickerWindow + 1
	}
	end := start + pickerWindow
	if end > len(m.visible) {
		end = len(m.visible)
	}

	for vi := start; vi < end; vi++ {
		item := m.items[m.visible[vi]]

		mark := "[ ]"
		if item.selected {
			mark = pickedStyle.Render("[x]")
		}
		line := fmt.Sprintf("%s %s", mark, item.name)
		if vi == m.cursor {
			line = cursorStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if len(m.visible) == 0 {
		b.WriteString(helpStyle.Render("no functions match"))
		b.WriteByte('\n')
	}

	selected := 0
	for _, item := range m.items {
		if item.selected {
			selected++
		}
	}
	b.WriteByte('\n')
	b.WriteString(helpStyle.Render(fmt.Sprintf(
		"%d selected | space: toggle | /: filter | enter: snip | q: abort", selected)))
	b.WriteByte('\n')

	return b.String()
}

// pickFunctions runs the interactive selector over the module's named
// functions and returns the chosen names.
func pickFunctions(data []byte) ([]string, error) {
	m, err := wasm.ParseModule(data)
	if err != nil {
		return nil, snerr.ParseFailed("module", err)
	}
	if m.Names == nil || len(m.Names.Funcs) == 0 {
		return nil, snerr.MissingNameData()
	}

	items := make([]pickItem, 0, len(m.Names.Funcs))
	for funcIdx, name := range m.Names.Funcs {
		items = append(items, pickItem{name: name, funcIdx: funcIdx})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].funcIdx < items[j].funcIdx })

	p := tea.NewProgram(newPickerModel(items))
	final, err := p.Run()
	if err != nil {
		return nil, err
	}

	picker := final.(*pickerModel)
	if picker.aborted {
		return nil, fmt.Errorf("selection aborted")
	}

	var names []string
	for _, item := range picker.items {
		if item.selected {
			names = append(names, item.name)
		}
	}
	return names, nil
}
