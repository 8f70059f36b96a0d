package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hupe1980/pagegrid"
	"github.com/hupe1980/pagegrid/invalidate"
	"github.com/hupe1980/pagegrid/provider"
	"github.com/hupe1980/pagegrid/resource"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

const (
	rowHeaderWidth = 10
	chromeLines    = 3 // title, column headers, status
)

// notifyMsg carries a page notification onto the UI loop.
type notifyMsg func()

// notifier delivers manager notifications to the bubbletea loop.
type notifier struct {
	ch   chan func()
	done chan struct{}
}

func newNotifier(buffer int) *notifier {
	return &notifier{ch: make(chan func(), buffer), done: make(chan struct{})}
}

// dispatch is installed with pagegrid.WithDispatcher.
func (n *notifier) dispatch(fn func()) {
	select {
	case n.ch <- fn:
	case <-n.done:
	}
}

func (n *notifier) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case fn := <-n.ch:
			return notifyMsg(fn)
		case <-n.done:
			return nil
		}
	}
}

func (n *notifier) stop() { close(n.done) }

type model struct {
	title   string
	rows    *pagegrid.ListManager[string]
	cols    *pagegrid.ListManager[string]
	cells   *pagegrid.GridManager[string]
	ctrl    *resource.Controller
	metrics *pagegrid.BasicMetricsCollector
	notify  *notifier
	dirty   *invalidate.Set
	unsubs  []func()

	top, left     int
	width, height int
	colWidth      int
	updated       int
	headerDirty   bool
}

func newModel(src *source, cfg Config, logger *pagegrid.Logger, n *notifier) (*model, error) {
	mcfg, err := cfg.View.managerConfig()
	if err != nil {
		return nil, err
	}

	m := &model{
		title:    src.title,
		ctrl:     cfg.Fetch.controller(),
		metrics:  &pagegrid.BasicMetricsCollector{},
		notify:   n,
		dirty:    invalidate.New(),
		colWidth: cfg.View.ColumnWidth,
		width:    80,
		height:   24,
	}
	opts := func(name string) []pagegrid.Option {
		return []pagegrid.Option{
			pagegrid.WithConfig(mcfg),
			pagegrid.WithName(name),
			pagegrid.WithLogger(logger),
			pagegrid.WithController(m.ctrl),
			pagegrid.WithMetricsCollector(m.metrics),
			pagegrid.WithDispatcher(n.dispatch),
		}
	}

	if m.rows, err = pagegrid.NewListManager(src.rows, opts("rows")...); err != nil {
		return nil, err
	}
	if m.cols, err = pagegrid.NewListManager(src.cols, opts("columns")...); err != nil {
		return nil, err
	}
	if m.cells, err = pagegrid.NewGridManager(src.cells, opts("cells")...); err != nil {
		return nil, err
	}

	m.unsubs = append(m.unsubs,
		m.rows.Subscribe(func(ev pagegrid.PageEvent) { m.dirty.AddRange(ev.Range) }),
		m.cols.Subscribe(func(pagegrid.PageEvent) { m.headerDirty = true }),
		m.cells.Subscribe(func(ev pagegrid.GridEvent) { m.dirty.AddRange(ev.Range.Rows) }),
	)
	return m, nil
}

func (m *model) close() {
	for _, unsub := range m.unsubs {
		unsub()
	}
	m.notify.stop()
	_ = m.cells.Close()
	_ = m.cols.Close()
	_ = m.rows.Close()
}

func (m *model) Init() tea.Cmd { return m.notify.wait() }

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case notifyMsg:
		msg()
		visible := m.visibleRows()
		for i := range m.dirty.Drain() {
			if visible.Contains(i) {
				m.updated++
			}
		}
		if m.headerDirty {
			m.headerDirty = false
			m.updated++
		}
		return m, m.notify.wait()

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.clamp()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			m.top--
		case "down", "j":
			m.top++
		case "left", "h":
			m.left--
		case "right", "l":
			m.left++
		case "pgup":
			m.top -= m.pageRows()
		case "pgdown", " ":
			m.top += m.pageRows()
		case "home", "g":
			m.top, m.left = 0, 0
		case "end", "G":
			m.top = m.cells.RowCount()
		case "r":
			m.rows.Invalidate()
			m.cols.Invalidate()
			m.cells.Invalidate()
		}
		m.clamp()
	}
	return m, nil
}

func (m *model) clamp() {
	m.top = max(0, min(m.top, m.cells.RowCount()-m.pageRows()))
	m.left = max(0, min(m.left, m.cells.ColumnCount()-m.pageCols()))
}

func (m *model) pageRows() int { return max(1, m.height-chromeLines) }

func (m *model) pageCols() int { return max(1, (m.width-rowHeaderWidth)/(m.colWidth+1)) }

func (m *model) visibleRows() provider.Range {
	return provider.Range{Start: m.top, Count: m.pageRows()}.Intersect(provider.Range{Count: m.cells.RowCount()})
}

func (m *model) visibleCols() provider.Range {
	return provider.Range{Start: m.left, Count: m.pageCols()}.Intersect(provider.Range{Count: m.cells.ColumnCount()})
}

func (m *model) View() string {
	rows, cols := m.visibleRows(), m.visibleCols()

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteByte('\n')

	b.WriteString(strings.Repeat(" ", rowHeaderWidth))
	for c := cols.Start; c < cols.End(); c++ {
		b.WriteByte(' ')
		b.WriteString(m.cell(m.cols.GetItem(c), m.colWidth, headerStyle))
	}
	b.WriteByte('\n')

	for r := rows.Start; r < rows.End(); r++ {
		b.WriteString(m.cell(m.rows.GetItem(r), rowHeaderWidth, headerStyle))
		for c := cols.Start; c < cols.End(); c++ {
			b.WriteByte(' ')
			b.WriteString(m.cell(m.cells.GetItem(r, c), m.colWidth, lipgloss.NewStyle()))
		}
		b.WriteByte('\n')
	}

	b.WriteString(statusStyle.Render(m.status(rows, cols)))
	return b.String()
}

func (m *model) cell(it pagegrid.Item[string], width int, style lipgloss.Style) string {
	var text string
	switch it.Status() {
	case pagegrid.ItemReady:
		text = it.ValueOr("")
	case pagegrid.ItemFailed:
		style = failedStyle
		text = "!"
	default:
		style = pendingStyle
		text = "…"
	}
	return style.Width(width).MaxWidth(width).Render(truncate(text, width))
}

func (m *model) status(rows, cols provider.Range) string {
	st := m.metrics.GetStats()
	return fmt.Sprintf("rows %d-%d of %d | cols %d-%d of %d | fetches %d (%d in flight) | hit %.0f%% | updated %d | r refresh  q quit",
		rows.Start+1, rows.End(), m.cells.RowCount(),
		cols.Start+1, cols.End(), m.cells.ColumnCount(),
		m.ctrl.Started(), m.ctrl.InFlight(), st.HitRate()*100, m.updated)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}
