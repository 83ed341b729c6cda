package eventlog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/capitalize-ai/movie-ticketing-assistant/internal/model"
)

func TestAppendOnly(t *testing.T) {
	l := New()
	const n = 5
	for i := 0; i < n; i++ {
		e := l.Append(model.Event{Role: model.RoleUser, Content: fmt.Sprintf("m%d", i)})
		if e.ID == "" {
			t.Fatalf("append %d: no ID assigned", i)
		}
	}

	snap := l.Snapshot()
	if len(snap) != n {
		t.Fatalf("snapshot length = %d, want %d", len(snap), n)
	}
	for i, e := range snap {
		if e.Content != fmt.Sprintf("m%d", i) {
			t.Errorf("event %d content = %q", i, e.Content)
		}
	}

	snap[0].Content = "mutated"
	if l.Snapshot()[0].Content != "m0" {
		t.Fatal("snapshot aliases log storage")
	}
}

func TestReplaceLastKeepsLength(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		l.Append(model.Event{Role: model.RoleAssistant, Content: fmt.Sprintf("m%d", i)})
	}
	before := l.Snapshot()

	if _, err := l.ReplaceLast(model.Event{Role: model.RoleAssistant, Content: "done"}); err != nil {
		t.Fatalf("ReplaceLast: %v", err)
	}

	after := l.Snapshot()
	if len(after) != len(before) {
		t.Fatalf("length changed from %d to %d", len(before), len(after))
	}
	for i := 0; i < len(before)-1; i++ {
		if after[i] != before[i] {
			t.Errorf("event %d changed: %+v -> %+v", i, before[i], after[i])
		}
	}
	if after[2].Content != "done" {
		t.Fatalf("trailing content = %q, want done", after[2].Content)
	}
}

func TestReplaceLastOnEmptyLog(t *testing.T) {
	if _, err := New().ReplaceLast(model.Event{}); !errors.Is(err, ErrEmptyLog) {
		t.Fatalf("err = %v, want ErrEmptyLog", err)
	}
}

func TestTxnLifecycle(t *testing.T) {
	var commits []State
	conv := NewConversation("chat-1", []model.Event{{ID: "e0", Role: model.RoleSystem, Content: "sys"}},
		func(_ context.Context, s State) { commits = append(commits, s) })

	txn := conv.Begin()
	if _, err := txn.Append(model.Event{Role: model.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if got := len(txn.Get().Events); got != 2 {
		t.Fatalf("uncommitted append not visible: %d events", got)
	}
	if len(commits) != 0 {
		t.Fatal("commit hook ran before Done")
	}

	state, err := txn.Done(context.Background(), model.Event{Role: model.RoleAssistant, Content: "hello"})
	if err != nil {
		t.Fatalf("Done: %v", err)
	}
	if state.Version != 1 || len(state.Events) != 3 || state.ChatID != "chat-1" {
		t.Fatalf("committed state = %+v", state)
	}
	if len(commits) != 1 || commits[0].Version != 1 {
		t.Fatalf("commits = %+v", commits)
	}

	if _, err := txn.Append(model.Event{Role: model.RoleUser}); !errors.Is(err, ErrCommitted) {
		t.Fatalf("Append after Done err = %v", err)
	}
	if _, err := txn.ReplaceLast(model.Event{}); !errors.Is(err, ErrCommitted) {
		t.Fatalf("ReplaceLast after Done err = %v", err)
	}
	if _, err := txn.Done(context.Background()); !errors.Is(err, ErrCommitted) {
		t.Fatalf("second Done err = %v", err)
	}
	if !txn.Committed() {
		t.Fatal("Committed() = false after Done")
	}

	next, err := conv.Begin().Done(context.Background())
	if err != nil || next.Version != 2 {
		t.Fatalf("second txn = %+v, %v", next, err)
	}
}
