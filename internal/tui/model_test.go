package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"interviewsim/internal/interview"
)

type mockInterviewer struct {
	respondErr error
	answers    []string
}

func (m *mockInterviewer) Start(context.Context, *interview.Session) (string, error) {
	return "What is polymorphism?", nil
}

func (m *mockInterviewer) Respond(_ context.Context, _ *interview.Session, answer string) (string, error) {
	if m.respondErr != nil {
		return "", m.respondErr
	}
	m.answers = append(m.answers, answer)
	return "And encapsulation?", nil
}

func (m *mockInterviewer) Feedback(context.Context, *interview.Session) (string, error) {
	return "Good basics.", nil
}

type mockTranscriber struct{}

func (mockTranscriber) TranscribeAnswer(context.Context, string) (string, error) {
	return "spoken answer", nil
}

func newModel(iv Interviewer, tr Transcriber) Model {
	s := interview.NewSession(interview.SessionConfig{ID: "iv-1"})
	m := New(context.Background(), iv, tr, s, "OOP interview")
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return updated.(Model)
}

// feed runs cmd and passes its message back through Update.
func feed(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	updated, _ := m.Update(cmd())
	return updated.(Model)
}

func typeLine(m Model, s string) (Model, tea.Cmd) {
	m.input.SetValue(s)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return updated.(Model), cmd
}

func TestModel_StartAndAnswer(t *testing.T) {
	iv := &mockInterviewer{}
	m := newModel(iv, nil)
	if !m.busy {
		t.Fatal("model should be busy until the first question arrives")
	}

	m = feed(t, m, m.startCmd())
	if m.busy || len(m.entries) != 1 || m.entries[0].text != "What is polymorphism?" {
		t.Fatalf("unexpected state after start: busy=%v entries=%+v", m.busy, m.entries)
	}

	m, cmd := typeLine(m, "Many forms")
	if !m.busy || m.input.Value() != "" {
		t.Fatal("submitting should clear input and mark busy")
	}
	m = feed(t, m, cmd)
	if len(iv.answers) != 1 || iv.answers[0] != "Many forms" {
		t.Fatalf("answer not sent: %v", iv.answers)
	}
	if len(m.entries) != 3 || m.entries[2].text != "And encapsulation?" {
		t.Fatalf("unexpected entries: %+v", m.entries)
	}
	if !strings.Contains(m.View(), "OOP interview") {
		t.Fatal("header missing from view")
	}
}

func TestModel_FailedAnswerIsRestored(t *testing.T) {
	iv := &mockInterviewer{respondErr: errors.New("timeout")}
	m := newModel(iv, nil)
	m = feed(t, m, m.startCmd())

	m, cmd := typeLine(m, "my answer")
	m = feed(t, m, cmd)
	if len(m.entries) != 1 {
		t.Fatalf("failed answer must not be shown as recorded: %+v", m.entries)
	}
	if m.input.Value() != "my answer" || !strings.Contains(m.status, "timeout") {
		t.Fatalf("expected restored input and error status, got %q / %q", m.input.Value(), m.status)
	}
}

func TestModel_IgnoresInputWhileBusy(t *testing.T) {
	m := newModel(&mockInterviewer{}, nil)
	_, cmd := typeLine(m, "too early")
	if cmd != nil {
		t.Fatal("no command expected while busy")
	}
}

func TestModel_Feedback(t *testing.T) {
	m := newModel(&mockInterviewer{}, nil)
	m = feed(t, m, m.startCmd())
	m, cmd := typeLine(m, "/feedback")
	m = feed(t, m, cmd)
	last := m.entries[len(m.entries)-1]
	if last.who != "Feedback" || last.text != "Good basics." {
		t.Fatalf("unexpected feedback entry: %+v", last)
	}
}

func TestModel_Audio(t *testing.T) {
	iv := &mockInterviewer{}
	m := newModel(iv, mockTranscriber{})
	m = feed(t, m, m.startCmd())

	m, cmd := typeLine(m, "/audio answer.m4a")
	updated, next := m.Update(cmd())
	m = updated.(Model)
	m = feed(t, m, next)
	if len(iv.answers) != 1 || iv.answers[0] != "spoken answer" {
		t.Fatalf("transcribed answer not sent: %v", iv.answers)
	}
}

func TestModel_AudioWithoutTranscriber(t *testing.T) {
	m := newModel(&mockInterviewer{}, nil)
	m = feed(t, m, m.startCmd())
	m, cmd := typeLine(m, "/audio answer.m4a")
	if cmd != nil || m.busy {
		t.Fatal("audio must be rejected without a transcriber")
	}
}

func TestModel_Quit(t *testing.T) {
	m := newModel(&mockInterviewer{}, nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}
}
