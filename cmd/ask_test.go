package cmd

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestAskModelCtrlCCancelsGeneration(t *testing.T) {
	cancelled := false
	m := newAskModel(make(chan string), func() { cancelled = true })

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !cancelled {
		t.Fatal("ctrl+c did not cancel the generation")
	}
	if cmd == nil {
		t.Fatal("ctrl+c did not quit the view")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("ctrl+c command = %T, want tea.QuitMsg", cmd())
	}
}

func TestAskModelAccumulatesChunks(t *testing.T) {
	m := newAskModel(make(chan string), func() {
		t.Fatal("streaming must not cancel the generation")
	})

	next, _ := m.Update(chunkMsg("Hel"))
	next, _ = next.Update(chunkMsg("lo"))
	next, cmd := next.Update(doneMsg{})

	got := next.(askModel)
	if !got.done {
		t.Fatal("doneMsg did not finish the view")
	}
	if got.content.String() != "Hello" {
		t.Fatalf("content = %q, want %q", got.content.String(), "Hello")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("done command = %T, want tea.QuitMsg", cmd())
	}
}
