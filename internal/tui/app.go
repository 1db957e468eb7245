// Package tui renders the dashboard in the terminal.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"ai-newsletter/internal/feed"
	"ai-newsletter/internal/model"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

// Feed is the controller surface the terminal UI drives.
type Feed interface {
	Load(ctx context.Context) error
	Snapshot() feed.Snapshot
	SetSourceFilter(value string)
	SetSavedOnly(enabled bool)
	ToggleSave(ctx context.Context, id string) bool
	Subscribe(r feed.Renderer)
}

// App never mutates the controller inside Update. Every change runs as a
// command, and the resulting view arrives back as a snapshotMsg through
// the Bridge.
type App struct {
	ctx    context.Context
	feed   Feed
	logger *zap.Logger

	snapshot feed.Snapshot
	cursor   int
	width    int
	height   int
	loading  bool
	status   string
	spinner  spinner.Model
}

func NewApp(ctx context.Context, f Feed, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = spinnerStyle

	return &App{
		ctx:      ctx,
		feed:     f,
		logger:   logger.With(zap.String("component", "tui")),
		snapshot: f.Snapshot(),
		loading:  true,
		spinner:  sp,
		width:    80,
		height:   24,
	}
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, f Feed, logger *zap.Logger) error {
	app := NewApp(ctx, f, logger)
	bridge := &Bridge{}
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.Attach(p)
	f.Subscribe(bridge)

	_, err := p.Run()
	return err
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.loadCmd(), a.spinner.Tick)
}

func (a *App) loadCmd() tea.Cmd {
	f, ctx := a.feed, a.ctx
	return func() tea.Msg {
		// Outcome is delivered through the renderer notifications.
		_ = f.Load(ctx)
		return nil
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case snapshotMsg:
		a.loading = false
		a.snapshot = msg.snapshot
		if a.cursor >= len(a.snapshot.Articles) {
			a.cursor = max(0, len(a.snapshot.Articles)-1)
		}
		return a, nil

	case loadFailedMsg:
		a.loading = false
		a.status = ""
		a.snapshot = a.feed.Snapshot()
		if a.snapshot.Error == "" {
			a.snapshot.State = feed.StateError
			a.snapshot.Error = msg.message
		}
		return a, nil

	case spinner.TickMsg:
		if a.loading {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		return a, nil
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "j", "down":
		if a.cursor < len(a.snapshot.Articles)-1 {
			a.cursor++
		}
		return a, nil
	case "k", "up":
		if a.cursor > 0 {
			a.cursor--
		}
		return a, nil
	case "tab":
		return a, a.filterCmd(a.nextSource())
	case "s":
		enabled := !a.snapshot.Filter.SavedOnly
		f := a.feed
		return a, func() tea.Msg {
			f.SetSavedOnly(enabled)
			return nil
		}
	case " ", "enter":
		art, ok := a.selected()
		if !ok {
			return a, nil
		}
		f, ctx, id := a.feed, a.ctx, art.ID
		return a, func() tea.Msg {
			f.ToggleSave(ctx, id)
			return nil
		}
	case "o":
		if art, ok := a.selected(); ok {
			a.status = art.URL
		}
		return a, nil
	case "r":
		if a.loading {
			return a, nil
		}
		a.loading = true
		a.status = "Reloading..."
		return a, tea.Batch(a.loadCmd(), a.spinner.Tick)
	}

	if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= len(a.snapshot.Sources) {
		return a, a.filterCmd(a.snapshot.Sources[n-1])
	}
	return a, nil
}

func (a *App) filterCmd(source string) tea.Cmd {
	f := a.feed
	return func() tea.Msg {
		f.SetSourceFilter(source)
		return nil
	}
}

func (a *App) nextSource() string {
	sources := a.snapshot.Sources
	if len(sources) == 0 {
		return model.FilterAll
	}
	for i, s := range sources {
		if s == a.snapshot.Filter.Source {
			return sources[(i+1)%len(sources)]
		}
	}
	return sources[0]
}

func (a *App) selected() (model.ArticleView, bool) {
	if a.cursor < 0 || a.cursor >= len(a.snapshot.Articles) {
		return model.ArticleView{}, false
	}
	return a.snapshot.Articles[a.cursor], true
}

func (a *App) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("AI Newsletter"))
	b.WriteString("\n")
	b.WriteString(updatedStyle.Render(a.snapshot.LastUpdated))
	b.WriteString("\n\n")
	b.WriteString(a.renderTabs())
	b.WriteString("\n\n")

	switch a.snapshot.State {
	case feed.StateError:
		b.WriteString(errorStyle.Render(a.snapshot.Error))
		b.WriteString("\n\n")
	case feed.StateLoading:
		b.WriteString(" " + a.spinner.View() + " Loading articles...\n")
	case feed.StateEmptyFilter:
		b.WriteString(emptyStyle.Render("No articles match the current filter"))
		b.WriteString("\n")
	}

	b.WriteString(a.renderList())
	b.WriteString("\n")
	b.WriteString(a.renderStatusBar())
	return b.String()
}

func (a *App) renderTabs() string {
	tabs := make([]string, 0, len(a.snapshot.Sources)+1)
	for i, s := range a.snapshot.Sources {
		label := fmt.Sprintf("%d %s", i+1, model.SourceLabel(s))
		if s == a.snapshot.Filter.Source {
			tabs = append(tabs, tabActiveStyle.Render(label))
		} else {
			tabs = append(tabs, tabInactiveStyle.Render(label))
		}
	}
	saved := fmt.Sprintf("saved only (%d)", a.snapshot.SavedCount)
	if a.snapshot.Filter.SavedOnly {
		tabs = append(tabs, tabActiveStyle.Render(saved))
	} else {
		tabs = append(tabs, tabInactiveStyle.Render(saved))
	}
	return " " + lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

// listHeight is how many article rows fit between the tabs and the status bar.
func (a *App) listHeight() int {
	return max(3, a.height-10)
}

func (a *App) renderList() string {
	articles := a.snapshot.Articles
	if len(articles) == 0 {
		return ""
	}

	rows := a.listHeight()
	start := 0
	if a.cursor >= rows {
		start = a.cursor - rows + 1
	}
	end := min(len(articles), start+rows)

	var b strings.Builder
	for i := start; i < end; i++ {
		art := articles[i]
		heart := "♡"
		if art.Saved {
			heart = heartStyle.Render("♥")
		}
		titleStyle := itemTitleStyle
		prefix := "  "
		if i == a.cursor {
			titleStyle = itemSelectedStyle
			prefix = "> "
		}
		title := truncate(art.Title, max(10, a.width-40))
		fmt.Fprintf(&b, "%s%s %s  %s  %s\n",
			prefix, heart, titleStyle.Render(title),
			itemSourceStyle.Render(art.SourceLabel),
			itemTimeStyle.Render(art.TimeAgo))
	}

	if art, ok := a.selected(); ok && art.Description != "" {
		b.WriteString("\n")
		b.WriteString(descStyle.Width(max(20, a.width-4)).Render(art.Description))
		b.WriteString("\n")
	}
	return b.String()
}

func (a *App) renderStatusBar() string {
	left := fmt.Sprintf("%d of %d articles", len(a.snapshot.Articles), a.snapshot.Total)
	if a.status != "" {
		left += " · " + a.status
	}
	right := "j/k move  tab/1-9 source  s saved  space save  o url  r reload  q quit"

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		return statusBarStyle.Render(left)
	}
	return statusBarStyle.Width(a.width).Render(left + strings.Repeat(" ", gap) + right)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
