// ABOUTME: Root bubbletea model for the propdesk console
// ABOUTME: Every screen switch passes the route guard; teardowns restart at the login screen

package tui

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/markalston/propdesk/internal/client"
	"github.com/markalston/propdesk/internal/guard"
	"github.com/markalston/propdesk/internal/session"
	"github.com/markalston/propdesk/internal/tui/styles"
)

const (
	minTerminalWidth = 80
	toastTTL         = 6 * time.Second
)

// Runner is the realtime listener as the console sees it
type Runner interface {
	Run(ctx context.Context) error
}

// Deps are the collaborators the console drives
type Deps struct {
	Client   *client.Client
	Guard    *guard.Guard
	Bridge   *Bridge
	Listener Runner
	Logger   *slog.Logger
}

// signedInMsg is the result of a sign-in attempt
type signedInMsg struct {
	identity session.Identity
	err      error
}

// screenLoadedMsg carries data for the screen at path. seq ties it to
// the load that produced it so late results are dropped.
type screenLoadedMsg struct {
	seq  int
	path string
	data *screenData
	err  error
}

// toastExpiredMsg hides the toast it was scheduled for
type toastExpiredMsg struct {
	seq int
}

// listenerStoppedMsg is sent when the realtime listener returns
type listenerStoppedMsg struct {
	err error
}

// App is the root model
type App struct {
	ctx      context.Context
	client   *client.Client
	store    *session.Store
	guard    *guard.Guard
	listener Runner
	logger   *slog.Logger

	route guard.Route
	tabs  []guard.Route

	// Login screen
	inputs    []textinput.Model
	focus     int
	loginErr  string
	signingIn bool

	// Current screen
	loading    bool
	spinner    spinner.Model
	data       *screenData
	loadErr    error
	loadSeq    int
	lastUpdate time.Time

	// Frame
	toast     *client.Notice
	toastSeq  int
	badges    map[session.Slot]int
	live      bool
	listening bool

	width  int
	height int
}

// New creates the root model. Nothing is loaded until Init.
func New(ctx context.Context, deps Deps) *App {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	g := deps.Guard
	if g == nil {
		g = guard.New(deps.Client.Session(), logger)
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.StatusOK

	a := &App{
		ctx:      ctx,
		client:   deps.Client,
		store:    deps.Client.Session(),
		guard:    g,
		listener: deps.Listener,
		logger:   logger,
		spinner:  s,
		badges:   make(map[session.Slot]int),
	}
	a.inputs = newLoginInputs()
	return a
}

func newLoginInputs() []textinput.Model {
	user := textinput.New()
	user.Placeholder = "username"
	user.CharLimit = 64
	user.Prompt = "  "

	pass := textinput.New()
	pass.Placeholder = "password"
	pass.CharLimit = 128
	pass.Prompt = "  "
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '•'

	return []textinput.Model{user, pass}
}

// Init lands on the session's home area, or login
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.navigate(a.guard.Landing()), a.startListener())
}

// Update handles messages and routes them to the current screen
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.route.Path == guard.PathLogin {
			return a, a.updateLogin(msg)
		}
		return a, a.handleKey(msg)

	case spinner.TickMsg:
		if !a.loading && !a.signingIn {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case signedInMsg:
		return a, a.handleSignedIn(msg)

	case screenLoadedMsg:
		if msg.seq != a.loadSeq || msg.path != a.route.Path {
			return a, nil
		}
		a.loading = false
		a.loadErr = msg.err
		if msg.err == nil {
			a.data = msg.data
			a.lastUpdate = time.Now()
		}
		return a, nil

	case noticeMsg:
		n := msg.notice
		a.toast = &n
		a.toastSeq++
		seq := a.toastSeq
		return a, tea.Tick(toastTTL, func(time.Time) tea.Msg {
			return toastExpiredMsg{seq: seq}
		})

	case toastExpiredMsg:
		if msg.seq == a.toastSeq {
			a.toast = nil
		}
		return a, nil

	case hardNavigateMsg:
		a.logger.Info("Hard navigation", "path", msg.path)
		a.reset()
		return a, a.navigate(msg.path)

	case slotMsg:
		return a, a.handleSlot(msg)

	case listenerStatusMsg:
		a.live = msg.connected
		return a, nil

	case listenerStoppedMsg:
		a.listening = false
		a.live = false
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			a.logger.Warn("Realtime listener stopped", "error", msg.err)
		}
		return a, nil
	}

	return a, nil
}

// navigate moves to path through the guard and starts loading the screen
// the guard lands on
func (a *App) navigate(path string) tea.Cmd {
	route := a.guard.Resolve(path)
	a.route = route
	a.data = nil
	a.loadErr = nil
	a.loadSeq++
	for _, slot := range refreshSlots[route.Path] {
		delete(a.badges, slot)
	}

	if a.store.IsAuthenticated() {
		a.tabs = guard.ForRole(guard.Routes, a.store.CurrentRole())
	} else {
		a.tabs = nil
	}

	if route.Path == guard.PathLogin {
		a.loading = false
		return a.focusInput(0)
	}
	a.loading = true
	return tea.Batch(a.spinner.Tick, a.load(route.Path))
}

// reset discards everything tied to the previous session's screens
func (a *App) reset() {
	a.route = guard.Route{}
	a.tabs = nil
	a.data = nil
	a.loadErr = nil
	a.loadSeq++
	a.loading = false
	a.lastUpdate = time.Time{}
	a.badges = make(map[session.Slot]int)
	a.inputs = newLoginInputs()
	a.focus = 0
	a.loginErr = ""
	a.signingIn = false
}

// load fetches the data for the screen at path
func (a *App) load(path string) tea.Cmd {
	a.loadSeq++
	seq := a.loadSeq
	ctx := a.ctx
	c := a.client
	role := a.store.CurrentRole()
	return func() tea.Msg {
		data, err := fetch(ctx, c, path, role)
		return screenLoadedMsg{seq: seq, path: path, data: data, err: err}
	}
}

// startListener runs the realtime listener until logout or shutdown
func (a *App) startListener() tea.Cmd {
	if a.listener == nil || a.listening || !a.store.IsAuthenticated() {
		return nil
	}
	a.listening = true
	ctx := a.ctx
	l := a.listener
	return func() tea.Msg {
		return listenerStoppedMsg{err: l.Run(ctx)}
	}
}

// handleSlot counts an update as a badge, or reloads the visible list
// when the update concerns it
func (a *App) handleSlot(msg slotMsg) tea.Cmd {
	if msg.event == nil {
		delete(a.badges, msg.slot)
		return nil
	}
	if a.route.Path == "" || a.route.Path == guard.PathLogin {
		return nil
	}
	for _, slot := range refreshSlots[a.route.Path] {
		if slot == msg.slot {
			a.logger.Debug("Refreshing screen for update", "path", a.route.Path, "slot", msg.slot)
			return a.load(a.route.Path)
		}
	}
	a.badges[msg.slot]++
	return nil
}

// handleKey processes shortcuts on authenticated screens
func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch key := msg.String(); key {
	case "q":
		return tea.Quit
	case "r":
		if a.loading {
			return nil
		}
		a.loading = true
		return tea.Batch(a.spinner.Tick, a.load(a.route.Path))
	case "tab", "right":
		return a.cycleTab(1)
	case "shift+tab", "left":
		return a.cycleTab(-1)
	case "x":
		a.logger.Info("Signing out")
		a.client.SignOut()
		a.reset()
		return a.navigate(guard.PathLogin)
	default:
		if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
			i := int(key[0] - '1')
			if i < len(a.tabs) {
				return a.navigate(a.tabs[i].Path)
			}
		}
	}
	return nil
}

func (a *App) cycleTab(step int) tea.Cmd {
	if len(a.tabs) == 0 {
		return nil
	}
	cur := 0
	for i, t := range a.tabs {
		if t.Path == a.route.Path {
			cur = i
			break
		}
	}
	next := (cur + step + len(a.tabs)) % len(a.tabs)
	return a.navigate(a.tabs[next].Path)
}

// updateLogin handles keys on the login screen
func (a *App) updateLogin(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab", "down":
		return a.focusInput((a.focus + 1) % len(a.inputs))
	case "shift+tab", "up":
		return a.focusInput((a.focus + len(a.inputs) - 1) % len(a.inputs))
	case "esc":
		a.loginErr = ""
		return nil
	case "enter":
		if a.focus == 0 && a.inputs[1].Value() == "" {
			return a.focusInput(1)
		}
		return a.submitLogin()
	}

	var cmd tea.Cmd
	a.inputs[a.focus], cmd = a.inputs[a.focus].Update(msg)
	return cmd
}

func (a *App) focusInput(i int) tea.Cmd {
	a.focus = i
	var cmd tea.Cmd
	for j := range a.inputs {
		if j == i {
			cmd = a.inputs[j].Focus()
		} else {
			a.inputs[j].Blur()
		}
	}
	return cmd
}

// submitLogin signs in with the form values
func (a *App) submitLogin() tea.Cmd {
	if a.signingIn {
		return nil
	}
	creds := client.Credentials{
		Username: strings.TrimSpace(a.inputs[0].Value()),
		Password: a.inputs[1].Value(),
	}
	a.signingIn = true
	a.loginErr = ""
	ctx := a.ctx
	c := a.client
	return tea.Batch(a.spinner.Tick, func() tea.Msg {
		id, err := c.SignIn(ctx, creds)
		return signedInMsg{identity: id, err: err}
	})
}

func (a *App) handleSignedIn(msg signedInMsg) tea.Cmd {
	a.signingIn = false
	if msg.err != nil {
		a.inputs[1].SetValue("")
		// Pipeline failures already raised a notice
		if _, ok := client.ClassOf(msg.err); !ok {
			a.loginErr = msg.err.Error()
		}
		return a.focusInput(1)
	}
	a.logger.Info("Signed in", "user", msg.identity.Username(), "role", msg.identity.Role())
	a.inputs = newLoginInputs()
	a.focus = 0
	return tea.Batch(a.navigate(a.guard.Landing()), a.startListener())
}

// Run starts the console and blocks until the user quits or ctx ends
func Run(ctx context.Context, deps Deps) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if deps.Bridge == nil {
		deps.Bridge = NewBridge()
	}
	stop, err := deps.Bridge.WatchSlots(deps.Client.Session().Notifications())
	if err != nil {
		return err
	}
	defer stop()

	app := New(ctx, deps)
	p := tea.NewProgram(
		app,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	deps.Bridge.Attach(p)
	defer deps.Bridge.Close()

	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
