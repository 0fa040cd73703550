// Command rama-top starts an Application the same way the framework's main
// binary does, but renders a live terminal dashboard of its listeners and
// process health instead of structured log lines.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ramaframework/rama/internal/app"
	"github.com/ramaframework/rama/internal/config"
	"github.com/ramaframework/rama/internal/core/ports"
	"github.com/ramaframework/rama/pkg/format"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.Load(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rama-top: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rama-top: failed to create application: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := application.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "rama-top: failed to start application: %v\n", err)
		os.Exit(1)
	}
	defer application.Stop(context.Background())

	program := tea.NewProgram(newModel(ctx, application.Stats()))
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "rama-top: %v\n", err)
		os.Exit(1)
	}
}

const refreshInterval = time.Second

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	upStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	downStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
)

const maxRecentEvents = 8

type model struct {
	stats ports.StatsCollector

	events    <-chan ports.ConnectionEvent
	unsub     func()
	recent    []ports.ConnectionEvent
	listeners []ports.ListenerStatus
	socks5    bool
	process   ports.ProcessSnapshot
}

func newModel(ctx context.Context, stats ports.StatsCollector) model {
	events, unsub := stats.Events(ctx)
	return model{stats: stats, events: events, unsub: unsub}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tick(), m.refresh, m.waitForEvent)
}

func (m model) waitForEvent() tea.Msg {
	ev, ok := <-m.events
	if !ok {
		return nil
	}
	return ev
}

func (m model) refresh() tea.Msg {
	return snapshotMsg{
		listeners: m.stats.Listeners(),
		socks5:    m.stats.SOCKS5Enabled(),
		process:   m.stats.Process(),
	}
}

type snapshotMsg struct {
	listeners []ports.ListenerStatus
	socks5    bool
	process   ports.ProcessSnapshot
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" || msg.String() == "esc" {
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(tick(), m.refresh)
	case snapshotMsg:
		m.listeners = msg.listeners
		m.socks5 = msg.socks5
		m.process = msg.process
	case ports.ConnectionEvent:
		m.recent = append(m.recent, msg)
		if len(m.recent) > maxRecentEvents {
			m.recent = m.recent[len(m.recent)-maxRecentEvents:]
		}
		return m, m.waitForEvent
	}
	return m, nil
}

func (m model) View() string {
	out := titleStyle.Render("rama-top") + "\n\n"
	out += labelStyle.Render(fmt.Sprintf("listeners: %d", len(m.listeners))) + "\n"

	for _, ln := range m.listeners {
		status := upStyle.Render("up")
		flags := ""
		if ln.TLS {
			flags += " tls"
		}
		if ln.ProxyProtocol {
			flags += " proxy-protocol"
		}
		out += fmt.Sprintf("  %-12s %-24s %s%s\n", ln.Name, ln.Address, status, flags)
	}

	socksLine := downStyle.Render("disabled")
	if m.socks5 {
		socksLine = upStyle.Render("enabled")
	}
	out += labelStyle.Render("socks5: ") + socksLine + "\n\n"

	out += labelStyle.Render(fmt.Sprintf(
		"heap %s (in-use %s)  goroutines %d (%s)  uptime %s  mem %s",
		format.Bytes(m.process.HeapAlloc),
		format.Bytes(m.process.HeapInuse),
		m.process.NumGoroutines,
		m.process.GoroutineHealth,
		format.Duration(m.process.Uptime),
		m.process.MemoryPressure,
	)) + "\n\n"

	out += labelStyle.Render("recent connections:") + "\n"
	if len(m.recent) == 0 {
		out += footerStyle.Render("  (none yet)") + "\n"
	}
	for i := len(m.recent) - 1; i >= 0; i-- {
		ev := m.recent[i]
		stage := downStyle.Render(ev.Stage)
		if ev.Stage == "accepted" {
			stage = upStyle.Render(ev.Stage)
		}
		out += fmt.Sprintf("  %s  %-8s %-12s %-22s %s\n", ev.At.Format("15:04:05"), ev.Protocol, ev.Listener, ev.RemoteAddr, stage)
	}
	out += "\n"

	out += footerStyle.Render("q to quit")
	return out
}
