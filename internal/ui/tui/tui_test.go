package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zboralski/jniscope/internal/transport"
)

func call(name, java string) *transport.Message {
	return &transport.Message{
		CallType: "JNIEnv",
		ThreadID: 1,
		Method:   transport.MethodInfo{Name: name, Ret: "jint", Java: java},
		Ret:      transport.Arg{Type: "jint", Value: "7"},
	}
}

func feed(t *testing.T, m *Model, msgs ...tea.Msg) {
	t.Helper()
	for _, msg := range msgs {
		if _, cmd := m.Update(msg); cmd == nil {
			if _, ok := msg.(callMsg); ok {
				t.Fatal("call message did not re-arm the reader")
			}
		}
	}
}

func TestCallsAppendAndFollow(t *testing.T) {
	m := New("jniscope", make(chan *transport.Message))
	feed(t, m, callMsg{call("FindClass", "")}, callMsg{call("CallIntMethod", "inc(I)I")})

	if got := len(m.table.Rows()); got != 2 {
		t.Fatalf("rows = %d", got)
	}
	if sel := m.Selected(); sel == nil || sel.Method.Name != "CallIntMethod" {
		t.Errorf("selected = %+v, want the newest call", sel)
	}
	if !strings.Contains(m.View(), "2 calls") {
		t.Errorf("view missing count:\n%s", m.View())
	}
}

func TestFilter(t *testing.T) {
	m := New("jniscope", make(chan *transport.Message))
	feed(t, m,
		callMsg{call("FindClass", "")},
		callMsg{call("CallIntMethod", "inc(I)I")},
		callMsg{call("GetMethodID", "")},
	)

	keys := []tea.Msg{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")}}
	for _, r := range "inc" {
		keys = append(keys, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	keys = append(keys, tea.KeyMsg{Type: tea.KeyEnter})
	feed(t, m, keys...)

	if m.filterMode {
		t.Error("enter should leave filter mode")
	}
	if got := len(m.table.Rows()); got != 1 {
		t.Fatalf("filtered rows = %d, want 1", got)
	}
	if sel := m.Selected(); sel == nil || sel.Method.Java != "inc(I)I" {
		t.Errorf("selected = %+v", sel)
	}

	// later calls are filtered on arrival
	feed(t, m, callMsg{call("NewStringUTF", "")})
	if got := len(m.table.Rows()); got != 1 {
		t.Errorf("rows after unmatched call = %d", got)
	}

	feed(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if got := len(m.table.Rows()); got != 4 {
		t.Errorf("rows after clearing filter = %d", got)
	}
}

func TestDoneAndQuit(t *testing.T) {
	src := make(chan *transport.Message, 1)
	m := New("jniscope", src)
	close(src)
	if msg := m.Init()(); msg != (doneMsg{}) {
		t.Fatalf("closed source produced %T", msg)
	}
	feed(t, m, doneMsg{})
	if !strings.Contains(m.View(), "finished") {
		t.Error("view does not show completion")
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}
