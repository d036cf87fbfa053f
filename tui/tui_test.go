package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	"fiveradio/model"
	"fiveradio/player"

	tea "github.com/charmbracelet/bubbletea"
)

type stubStream struct{ done chan struct{} }

func (s *stubStream) Play() error           { return nil }
func (s *stubStream) Pause()                {}
func (s *stubStream) SetGain(float64)       {}
func (s *stubStream) Done() <-chan struct{} { return s.done }
func (s *stubStream) Err() error            { return nil }
func (s *stubStream) Close() error          { return nil }

type stubBackend struct{}

func (stubBackend) Open(ctx context.Context, url string) (player.Stream, error) {
	return &stubStream{done: make(chan struct{})}, nil
}

var testStations = []model.Station{
	{ID: "jazz", Name: "Jazz FM", Frequency: "88.5", Genre: "Jazz", Artist: "Live Radio", Track: "Now Playing", StreamURL: "https://radio.test/jazz"},
	{ID: "talk", Name: "Talk Radio", Frequency: "90.1", Genre: "Talk", StreamURL: "https://radio.test/talk"},
	{ID: "blue", Name: "Blue Note", Frequency: "101.3", Genre: "Jazz", StreamURL: "https://radio.test/blue"},
}

func newTestModel(t *testing.T) (Model, *player.Controller) {
	t.Helper()
	ctrl := player.NewController(stubBackend{})
	t.Cleanup(ctrl.Close)
	return NewModel(testStations, ctrl), ctrl
}

func press(t *testing.T, m Model, msg tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	next, ok := updated.(Model)
	if !ok {
		t.Fatalf("unexpected model type %T", updated)
	}
	return next, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestCursorAndGenreFocus(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if m.cursor != 2 {
		t.Errorf("expected cursor clamped to 2, got %d", m.cursor)
	}

	m.cursor = 0
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyUp})
	if m.focus != FocusGenre {
		t.Fatal("expected up at the top to focus the genre line")
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.focus != FocusStations || m.genres[m.currentGenre] != "Jazz" {
		t.Fatalf("expected Jazz selected, got %q", m.genres[m.currentGenre])
	}
	if len(m.visible) != 2 || m.visible[1].ID != "blue" {
		t.Errorf("unexpected filtered stations %+v", m.visible)
	}
}

func TestGenreQuickSwitch(t *testing.T) {
	m, _ := newTestModel(t)

	if got := strings.Join(m.genres, ","); got != "All,Jazz,Talk" {
		t.Fatalf("genres = %s", got)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	if len(m.visible) != 1 || m.visible[0].ID != "talk" {
		t.Errorf("expected only talk, got %+v", m.visible)
	}
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	if m.currentGenre != 2 {
		t.Errorf("expected to stay on the last genre, got %d", m.currentGenre)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	if len(m.visible) != len(testStations) {
		t.Errorf("expected all stations, got %d", len(m.visible))
	}
}

func TestPlayPauseStop(t *testing.T) {
	m, ctrl := newTestModel(t)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected a play command")
	}
	cmd()

	if cur, _ := ctrl.CurrentStation(); cur.ID != "talk" || !ctrl.IsPlaying() {
		t.Fatalf("expected talk playing, got %q %s", cur.ID, ctrl.State())
	}

	m, _ = press(t, m, runes("p"))
	if ctrl.State() != player.StatePaused {
		t.Errorf("expected paused, got %s", ctrl.State())
	}
	m, _ = press(t, m, runes("p"))
	if ctrl.State() != player.StatePlaying {
		t.Errorf("expected playing, got %s", ctrl.State())
	}

	press(t, m, runes("s"))
	if ctrl.State() != player.StateIdle {
		t.Errorf("expected idle, got %s", ctrl.State())
	}
}

func TestVolumeKeys(t *testing.T) {
	m, ctrl := newTestModel(t)

	m, _ = press(t, m, runes("5"))
	if ctrl.Volume() != 0.5 {
		t.Errorf("expected 0.5, got %v", ctrl.Volume())
	}
	m, _ = press(t, m, runes("+"))
	if ctrl.Volume() != 0.55 {
		t.Errorf("expected 0.55, got %v", ctrl.Volume())
	}

	m, _ = press(t, m, runes("m"))
	if !ctrl.IsMuted() || !strings.Contains(m.View(), "🔇") {
		t.Error("expected muted")
	}
	m, _ = press(t, m, runes("-"))
	if ctrl.IsMuted() || ctrl.Volume() != 0.5 {
		t.Errorf("volume change should unmute, muted=%v volume=%v", ctrl.IsMuted(), ctrl.Volume())
	}

	m, _ = press(t, m, runes("9"))
	for i := 0; i < 5; i++ {
		m, _ = press(t, m, runes("+"))
	}
	if ctrl.Volume() != 1 {
		t.Errorf("expected volume clamped to 1, got %v", ctrl.Volume())
	}
}

func TestEventsUpdateStatus(t *testing.T) {
	m, ctrl := newTestModel(t)

	ctrl.PlayStation(context.Background(), model.Station{ID: "mute", Name: "Silent FM"})

	var err player.ErrorEvent
	for len(m.events.ch) > 0 {
		ev := <-m.events.ch
		if e, ok := ev.(player.ErrorEvent); ok {
			err = e
		}
		updated, cmd := m.Update(playerEventMsg{event: ev})
		m = updated.(Model)
		if cmd == nil {
			t.Fatal("expected the model to keep listening for events")
		}
	}

	if err.Message == "" || m.errorMessage != err.Message {
		t.Errorf("expected error message to be shown, got %q", m.errorMessage)
	}
	if !strings.Contains(m.View(), "Silent FM") {
		t.Error("expected view to mention the station")
	}
}

func TestViewAndSpectrum(t *testing.T) {
	m, _ := newTestModel(t)

	updated, cmd := m.Update(spectrumTickMsg{})
	m = updated.(Model)
	if cmd == nil {
		t.Error("expected the spectrum tick to reschedule")
	}
	if len(m.spectrum) != 20 {
		t.Errorf("expected 20 bands, got %d", len(m.spectrum))
	}

	view := m.View()
	for _, want := range []string{"Five Radio", "Jazz FM", "88.5", "70%"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestQuit(t *testing.T) {
	m, ctrl := newTestModel(t)
	ctrl.PlayStation(context.Background(), testStations[0])

	_, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	// Playback is stopped by teardown once the program exits.
	if ctrl.State() == player.StateIdle {
		t.Error("expected playback to continue until teardown")
	}
}

func TestTeardown(t *testing.T) {
	m, ctrl := newTestModel(t)
	ctrl.PlayStation(context.Background(), testStations[0])

	wait := waitForEvent(m.events.ch)
	for len(m.events.ch) > 0 {
		<-m.events.ch
	}

	got := make(chan tea.Msg, 1)
	go func() { got <- wait() }()

	m.teardown()

	select {
	case msg := <-got:
		if msg != nil {
			t.Errorf("expected nil message after teardown, got %T", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event wait still blocked after teardown")
	}
	if ctrl.State() != player.StateIdle {
		t.Errorf("expected playback stopped, got %s", ctrl.State())
	}

	// Events after teardown are dropped, not sent on the closed channel.
	m.events.send(player.MuteChanged{Muted: true})
	ctrl.PlayStation(context.Background(), testStations[1])
	m.teardown()
}
