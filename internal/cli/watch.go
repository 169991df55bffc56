package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/partboard/partboard/pkg/autosave"
	"github.com/partboard/partboard/pkg/board"
	"github.com/partboard/partboard/pkg/catalog"
	"github.com/partboard/partboard/pkg/collab"
	"github.com/partboard/partboard/pkg/layout"
)

// watchPollInterval is how often the project file's mtime is checked.
const watchPollInterval = time.Second

// watchCommand creates the watch command: a live TUI that re-lays the board
// out whenever the project file changes and autosaves through the debounced
// coordinator.
func (c *CLI) watchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [project-id] [project.json]",
		Short: "Watch a project file and autosave its board",
		Long: `Watch a project file and autosave its board.

Whenever the project file changes, the layout engine regenerates the
diagram (keeping user-added elements) and the autosave coordinator persists
it after a quiet interval. The TUI shows the live save status.

With collab.endpoint configured, the session also joins the project's
collaboration channel: regenerated elements broadcast to peers, peer edits
feed the autosave path, and the roster shows who else is on the board.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWatch(cmd.Context(), args[0], args[1])
		},
	}
	return cmd
}

func (c *CLI) runWatch(ctx context.Context, projectID, path string) error {
	s, err := c.newStore(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	state := autosave.NewBoardStateStore(s, projectID)
	coord := autosave.NewCoordinator(state, projectID, autosave.Options{
		Primary:  s,
		Debounce: c.Config.Save.Debounce(),
		Logger:   c.Logger,
	})
	defer coord.Close()

	if err := coord.Hydrate(ctx); err != nil {
		return fmt.Errorf("hydrate board: %w", err)
	}

	statusCh := make(chan autosave.Status, 16)
	unsub := coord.Subscribe(func(st autosave.Status) {
		select {
		case statusCh <- st:
		default:
		}
	})
	defer unsub()

	collabCh := make(chan tea.Msg, 16)
	bridge := c.newCollabBridge(projectID, watchCollabHandlers(collabCh))
	if bridge != nil {
		connectCtx, cancel := context.WithTimeout(ctx, defaultStoreTimeout)
		if err := bridge.Connect(connectCtx); err != nil {
			c.Logger.Warn("collab connect failed; working locally", "err", err)
		}
		cancel()
		defer bridge.Disconnect()
	}

	m := newWatchModel(projectID, path, c.newEngine(false), state, coord, statusCh, bridge, collabCh)
	prog := tea.NewProgram(m, tea.WithContext(ctx))
	if _, err := prog.Run(); err != nil {
		return err
	}

	// Flush anything still pending before the store closes.
	if state.HasUnsavedChanges() {
		flushCtx, cancel := context.WithTimeout(context.Background(), defaultStoreTimeout)
		defer cancel()
		return coord.ForceSave(flushCtx)
	}
	return nil
}

// =============================================================================
// Collaboration Wiring
// =============================================================================

// peerPalette assigns roster colors; index derived from the user name.
var peerPalette = []string{"#e64980", "#4c6ef5", "#0ca678", "#f59f00", "#7048e8"}

func peerColor(name string) string {
	var h uint32
	for _, r := range name {
		h = h*31 + uint32(r)
	}
	return peerPalette[h%uint32(len(peerPalette))]
}

// collabURL joins the configured endpoint with a project's channel path.
func collabURL(endpoint, projectID string) string {
	return strings.TrimSuffix(endpoint, "/") + "/ws/projects/" + projectID
}

// newCollabBridge builds the peer bridge for a project, or nil when no
// collab endpoint is configured.
func (c *CLI) newCollabBridge(projectID string, handlers collab.Handlers) *collab.Bridge {
	endpoint := c.Config.Collab.Endpoint
	if endpoint == "" {
		return nil
	}

	userName := c.Config.Collab.UserName
	if userName == "" {
		userName = "guest"
	}
	self := collab.Peer{
		UserID:   uuid.NewString(),
		UserName: userName,
		Color:    peerColor(userName),
	}

	url := collabURL(endpoint, projectID)
	dial := func(ctx context.Context) (collab.Transport, error) {
		return collab.DialWS(ctx, url)
	}
	return collab.NewBridge(self, dial, handlers, c.Logger)
}

// watchCollabHandlers converts bridge callbacks into TUI messages. Handlers
// run on the bridge's read goroutine, so they only post to the channel.
func watchCollabHandlers(ch chan tea.Msg) collab.Handlers {
	return collab.Handlers{
		OnElements: func(sender collab.Peer, elements []board.Element) {
			select {
			case ch <- watchPeerElementsMsg{sender: sender, elements: elements}:
			default:
			}
		},
		OnRosterChange: func(roster []collab.Peer) {
			select {
			case ch <- watchRosterMsg(roster):
			default:
			}
		},
	}
}

// =============================================================================
// WatchModel - Autosave Status TUI
// =============================================================================

type watchStatusMsg autosave.Status

type watchTickMsg time.Time

type watchReloadMsg struct {
	elements int
	err      error
}

type watchRosterMsg []collab.Peer

type watchPeerElementsMsg struct {
	sender   collab.Peer
	elements []board.Element
}

type watchReconnectMsg struct{ err error }

// watchModel is the bubbletea model for the watch TUI.
type watchModel struct {
	projectID string
	path      string

	engine *layout.Engine
	state  *autosave.BoardStateStore
	coord  *autosave.Coordinator

	statusCh chan autosave.Status
	status   autosave.Status

	bridge   *collab.Bridge
	collabCh chan tea.Msg
	peers    []collab.Peer

	elements   int
	lastReload time.Time
	mtime      time.Time
	reloadErr  error
}

func newWatchModel(projectID, path string, engine *layout.Engine, state *autosave.BoardStateStore, coord *autosave.Coordinator, statusCh chan autosave.Status, bridge *collab.Bridge, collabCh chan tea.Msg) watchModel {
	m := watchModel{
		projectID: projectID,
		path:      path,
		engine:    engine,
		state:     state,
		coord:     coord,
		statusCh:  statusCh,
		status:    coord.Status(),
		bridge:    bridge,
		collabCh:  collabCh,
		elements:  len(state.InitialData().Elements),
	}
	if info, err := os.Stat(path); err == nil {
		m.mtime = info.ModTime()
	}
	return m
}

func (m watchModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.waitStatus(), m.tick(), m.reload()}
	if m.bridge != nil {
		cmds = append(cmds, m.waitCollab())
	}
	return tea.Batch(cmds...)
}

func (m watchModel) waitStatus() tea.Cmd {
	return func() tea.Msg {
		return watchStatusMsg(<-m.statusCh)
	}
}

func (m watchModel) waitCollab() tea.Cmd {
	return func() tea.Msg {
		return <-m.collabCh
	}
}

func (m watchModel) tick() tea.Cmd {
	return tea.Tick(watchPollInterval, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

// reload re-reads the project file, regenerates the layout, and feeds the
// result into the autosave path and to connected peers. User-added elements
// survive.
func (m watchModel) reload() tea.Cmd {
	return func() tea.Msg {
		project, err := catalog.ReadProjectFile(m.path)
		if err != nil {
			return watchReloadMsg{err: err}
		}

		regenerated := m.engine.LayoutProject(project)
		current := m.state.InitialData()
		merged := layout.MergeRegenerated(current, regenerated)

		m.coord.NotifyChange(merged, current.AppState, current.Files)
		if m.bridge != nil {
			m.bridge.BroadcastElements(merged)
		}
		return watchReloadMsg{elements: len(merged)}
	}
}

func (m watchModel) reconnect() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), defaultStoreTimeout)
		defer cancel()
		return watchReconnectMsg{err: m.bridge.Connect(ctx)}
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "s":
			return m, func() tea.Msg {
				ctx, cancel := context.WithTimeout(context.Background(), defaultStoreTimeout)
				defer cancel()
				_ = m.coord.ForceSave(ctx)
				return nil
			}
		case "r":
			if m.bridge != nil && !m.bridge.Connected() {
				return m, m.reconnect()
			}
		}

	case watchStatusMsg:
		m.status = autosave.Status(msg)
		return m, m.waitStatus()

	case watchTickMsg:
		info, err := os.Stat(m.path)
		if err == nil && info.ModTime().After(m.mtime) {
			m.mtime = info.ModTime()
			return m, tea.Batch(m.tick(), m.reload())
		}
		return m, m.tick()

	case watchReloadMsg:
		m.reloadErr = msg.err
		if msg.err == nil {
			m.elements = msg.elements
			m.lastReload = time.Now()
		}
		return m, nil

	case watchRosterMsg:
		m.peers = msg
		return m, m.waitCollab()

	case watchPeerElementsMsg:
		// Peer edits land in the local state and ride the same autosave path
		// as file reloads.
		current := m.state.InitialData()
		m.coord.NotifyChange(msg.elements, current.AppState, current.Files)
		m.elements = len(msg.elements)
		return m, m.waitCollab()

	case watchReconnectMsg:
		if msg.err != nil {
			m.reloadErr = msg.err
		}
		return m, nil
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("partboard watch"))
	b.WriteString("\n")
	help := "s save now  q quit"
	if m.bridge != nil {
		help = "s save now  r reconnect  q quit"
	}
	b.WriteString(StyleDim.Render(help))
	b.WriteString("\n\n")

	b.WriteString(renderKV("project", m.projectID))
	b.WriteString(renderKV("file", m.path))
	b.WriteString(renderKV("elements", fmt.Sprintf("%d", m.elements)))
	if !m.lastReload.IsZero() {
		b.WriteString(renderKV("reloaded", m.lastReload.Format("15:04:05")))
	}
	b.WriteString(renderKV("status", renderStatus(m.status)))
	if m.bridge != nil {
		b.WriteString(renderKV("peers", renderCollab(m.bridge.Connected(), m.peers)))
	}

	if m.reloadErr != nil {
		b.WriteString("\n")
		b.WriteString(StyleError.Render(iconError + " " + m.reloadErr.Error()))
		b.WriteString("\n")
	}

	return b.String()
}

func renderKV(key, value string) string {
	return fmt.Sprintf("  %s %s\n", StyleDim.Render(fmt.Sprintf("%-10s", key)), value)
}

func renderStatus(st autosave.Status) string {
	switch st.Kind {
	case autosave.StatusSaved:
		if st.SavedAt.IsZero() {
			return StyleSuccess.Render("saved")
		}
		return StyleSuccess.Render("saved at " + st.SavedAt.Local().Format("15:04:05"))
	case autosave.StatusSaving:
		return StyleValue.Render("saving...")
	case autosave.StatusUnsaved:
		return StyleWarning.Render("unsaved changes")
	case autosave.StatusError:
		return StyleError.Render("error: " + st.Message)
	default:
		return StyleDim.Render(st.Kind)
	}
}

func renderCollab(connected bool, peers []collab.Peer) string {
	if !connected {
		return StyleWarning.Render("offline (press r to reconnect)")
	}
	if len(peers) == 0 {
		return StyleValue.Render("online, just you")
	}
	names := make([]string, len(peers))
	for i, p := range peers {
		names[i] = p.UserName
	}
	return StyleSuccess.Render(fmt.Sprintf("online with %s", strings.Join(names, ", ")))
}
