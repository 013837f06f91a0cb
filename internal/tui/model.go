package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"marketdash/internal/route"
	"marketdash/internal/view"
	"marketdash/pkg/dashapi"
)

// Styles.
var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	flashStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
)

// Messages.
type settledMsg struct {
	screen *Screen
	gen    uint64
}

type mode int

const (
	modeBrowse mode = iota
	modePrompt      // typing a route
	modeInput       // typing probe text
)

// Model.
type model struct {
	sess   *Session
	ctx    context.Context
	screen *Screen
	back   []route.Route // navigation history, oldest first

	viewport viewport.Model
	spinner  spinner.Model
	prompt   textinput.Model
	input    textinput.Model
	mode     mode
	flash    string

	ready         bool
	width, height int
	logger        *slog.Logger
}

func newModel(ctx context.Context, sess *Session, start route.Route) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	prompt := textinput.New()
	prompt.Prompt = "go: "
	prompt.Placeholder = "/market/BTC-USD"
	prompt.CharLimit = 120

	input := textinput.New()
	input.Prompt = "text: "
	input.Placeholder = "Enter text to analyze"
	input.CharLimit = 2000

	m := model{
		sess:    sess,
		ctx:     ctx,
		spinner: sp,
		prompt:  prompt,
		input:   input,
		logger:  sess.Log,
	}
	m.screen = Open(ctx, sess, start)
	if m.screen.AcceptsText() {
		m.mode = modeInput
		m.input.Focus()
	}
	return m
}

func (m model) Init() tea.Cmd {
	m.logger.Info("open", "route", m.screen.Route.String())
	return tea.Batch(m.spinner.Tick, waitCmd(m.screen, m.screen.Start()), textinput.Blink)
}

// waitCmd delivers settledMsg once t's run is finished. A nil ticket needs
// no wait.
func waitCmd(sc *Screen, t *view.Ticket) tea.Cmd {
	if t == nil {
		return nil
	}
	return func() tea.Msg {
		<-t.Done()
		return settledMsg{screen: sc, gen: t.Gen}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.screen.Close()
			return m, tea.Quit
		}
		switch m.mode {
		case modePrompt:
			return m.updatePrompt(msg)
		case modeInput:
			return m.updateInput(msg)
		}
		m.flash = ""

		switch msg.String() {
		case "q":
			m.screen.Close()
			return m, tea.Quit
		case ":", "g":
			m.mode = modePrompt
			m.prompt.SetValue("")
			return m, m.prompt.Focus()
		case "i":
			if m.screen.AcceptsText() {
				m.mode = modeInput
				return m, m.input.Focus()
			}
			return m, nil
		case "r":
			cmd = waitCmd(m.screen, m.screen.Retry())
			m.refresh()
			return m, cmd
		case "t", "T":
			delta := 1
			if msg.String() == "T" {
				delta = -1
			}
			return m, m.settleOn(m.screen.CycleTimeframe(delta))
		case "]", "[":
			delta := 1
			if msg.String() == "[" {
				delta = -1
			}
			return m, m.settleOn(m.screen.CycleSymbol(delta))
		case "left":
			return m, m.step(-1)
		case "right":
			return m, m.step(1)
		case "tab":
			return m, m.navigate(nextTab(m.screen.Route, m.sess.Config.Dashboard.DefaultTicker), true)
		case "b", "backspace":
			return m, m.goBack()
		case "h":
			return m, m.navigate(route.Route{Kind: route.Home}, true)
		case "s":
			return m, m.navigate(route.Route{Kind: route.Sentiment}, true)
		case "p", "n":
			pol := dashapi.PolarityPositive
			if msg.String() == "n" {
				pol = dashapi.PolarityNegative
			}
			return m, m.navigate(route.Route{Kind: route.Articles, Date: m.screen.SelectedDate(), Polarity: pol}, true)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerH := 1
		footerH := 2 // status line + key help
		vpHeight := m.height - headerH - footerH
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.refresh()
		return m, nil

	case settledMsg:
		if msg.screen != m.screen {
			return m, nil
		}
		st, banner := m.screen.Status()
		m.logger.Info("settled", "route", m.screen.Route.String(), "gen", msg.gen, "status", st.String(), "message", banner)
		m.refresh()
		m.viewport.GotoTop()
		return m, nil

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		if st, _ := m.screen.Status(); st == view.Loading {
			m.refresh()
		}
		return m, cmd
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeBrowse
		m.prompt.Blur()
		return m, nil
	case "enter":
		path := m.prompt.Value()
		m.mode = modeBrowse
		m.prompt.Blur()
		r, err := route.Parse(path)
		if err != nil {
			m.flash = err.Error()
			return m, nil
		}
		return m, m.navigate(r, true)
	}
	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

func (m model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeBrowse
		m.input.Blur()
		return m, nil
	case "enter":
		t, err := m.screen.Submit(m.input.Value())
		if err == nil {
			m.input.SetValue("")
		}
		m.refresh()
		return m, waitCmd(m.screen, t)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// navigate replaces the current screen with r and starts its load. push
// records the current route for going back.
func (m *model) navigate(r route.Route, push bool) tea.Cmd {
	if push {
		m.back = append(m.back, m.screen.Route)
	}
	m.screen.Close()
	m.screen = Open(m.ctx, m.sess, r)
	m.logger.Info("open", "route", r.String())

	m.input.Blur()
	m.mode = modeBrowse
	var focus tea.Cmd
	if m.screen.AcceptsText() {
		m.mode = modeInput
		focus = m.input.Focus()
	}

	cmd := waitCmd(m.screen, m.screen.Start())
	m.refresh()
	m.viewport.GotoTop()
	return tea.Batch(cmd, focus)
}

func (m *model) goBack() tea.Cmd {
	if len(m.back) == 0 {
		return nil
	}
	r := m.back[len(m.back)-1]
	m.back = m.back[:len(m.back)-1]
	return m.navigate(r, false)
}

func (m *model) step(delta int) tea.Cmd {
	return m.settleOn(m.screen.Step(delta))
}

// settleOn redraws the current screen's new Loading state and waits for t.
func (m *model) settleOn(t *view.Ticket) tea.Cmd {
	if t == nil {
		return nil
	}
	m.refresh()
	return waitCmd(m.screen, t)
}

// nextTab cycles the top-level sections, or a ticker's market pages when on
// one of them.
func nextTab(r route.Route, defaultTicker string) route.Route {
	switch r.Kind {
	case route.Market:
		if r.Ticker == "" {
			return route.Route{Kind: route.Reports}
		}
		return route.Route{Kind: route.SMA, Ticker: r.Ticker}
	case route.SMA:
		return route.Route{Kind: route.RSI, Ticker: r.Ticker}
	case route.RSI:
		return route.Route{Kind: route.MACD, Ticker: r.Ticker}
	case route.MACD:
		return route.Route{Kind: route.Reports}
	case route.Home:
		if defaultTicker != "" {
			return route.Route{Kind: route.Market, Ticker: strings.ToUpper(defaultTicker)}
		}
		return route.Route{Kind: route.Reports}
	case route.Reports, route.Report, route.Articles:
		return route.Route{Kind: route.Sentiment}
	}
	return route.Route{Kind: route.Home}
}

func (m *model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.screen.Render(m.width, m.spinner.View()))
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}

	st, _ := m.screen.Status()
	headerText := fmt.Sprintf(" marketdash  %s    %s    %s ",
		m.screen.Route.String(), strings.ToLower(st.String()), m.sess.Config.API.BaseURL)
	headerBar := headerStyle.Render(padOrTrunc(headerText, m.width))

	var statusLine string
	switch {
	case m.mode == modePrompt:
		statusLine = m.prompt.View()
	case m.screen.AcceptsText():
		statusLine = m.input.View()
	case m.flash != "":
		statusLine = flashStyle.Render(m.flash)
	}

	pct := m.viewport.ScrollPercent() * 100
	footerLeft := " q quit  : go  tab next  b back  r retry  h home  s sentiment  p/n articles  left/right report"
	switch {
	case m.mode != modeBrowse:
		footerLeft = " enter submit  esc cancel  ctrl+c quit"
	case m.screen.Route.Kind == route.Market:
		footerLeft = " q quit  : go  tab next  b back  r retry  h home  s sentiment  t/T timeframe  [/] symbol"
	}
	footerRight := fmt.Sprintf("%.0f%% ", pct)
	gap := m.width - len(footerLeft) - len(footerRight)
	if gap < 0 {
		gap = 0
	}
	footerText := footerLeft + strings.Repeat(" ", gap) + footerRight
	footerBar := footerStyle.Render(padOrTrunc(footerText, m.width))

	return headerBar + "\n" + m.viewport.View() + "\n" + padOrTrunc(statusLine, m.width) + "\n" + footerBar
}

// padOrTrunc pads s with spaces to width, or truncates it.
func padOrTrunc(s string, width int) string {
	w := lipgloss.Width(s)
	if w >= width {
		if w > width {
			return truncateANSI(s, width)
		}
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

func truncateANSI(s string, width int) string {
	return lipgloss.NewStyle().MaxWidth(width).Render(s)
}

// Run starts the full-screen dashboard at start and blocks until the user
// quits.
func Run(ctx context.Context, sess *Session, start route.Route) error {
	p := tea.NewProgram(
		newModel(ctx, sess, start),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err := p.Run()
	return err
}
