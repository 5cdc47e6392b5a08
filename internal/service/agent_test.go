package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"yobot/internal/model"

	"go.uber.org/zap"
)

func retrieved(ids ...int64) []model.RetrievedListing {
	out := make([]model.RetrievedListing, len(ids))
	for i, id := range ids {
		out[i] = model.RetrievedListing{Listing: model.Listing{ID: id, Location: "Quito", Neighborhood: "Centro"}}
	}
	return out
}

func TestAnsweringAgent_Answer(t *testing.T) {
	chat := &fakeChat{reply: "  La propiedad 3 cuesta $180.000.  "}
	history := NewHistoryStore(10)
	agent := NewAnsweringAgent(chat, history, MaxReplyLength, nil, zap.NewNop())

	reply, err := agent.Answer(context.Background(), retrieved(3, 8), "¿Cuánto cuesta?", "+200")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if reply != "La propiedad 3 cuesta $180.000." {
		t.Errorf("reply = %q", reply)
	}

	prompt := chat.prompts[0]
	for _, want := range []string{"Yobot", "1600 caracteres", "Almacenar la información", "transporte público", "ID:3", "ID:8"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "%!") {
		t.Errorf("system prompt has a formatting error: %q", prompt)
	}

	turns := chat.history[0]
	if len(turns) != 1 || turns[0].Role != model.RoleUser || turns[0].Content != "¿Cuánto cuesta?" {
		t.Errorf("first call history = %v", turns)
	}
	if got := history.Get("+200"); len(got) != 2 {
		t.Errorf("history has %d turns after success, want 2", len(got))
	}
}

func TestAnsweringAgent_ThreadsHistory(t *testing.T) {
	chat := &fakeChat{reply: "respuesta"}
	agent := NewAnsweringAgent(chat, NewHistoryStore(10), MaxReplyLength, nil, zap.NewNop())

	ctx := context.Background()
	if _, err := agent.Answer(ctx, retrieved(1), "primera", "s"); err != nil {
		t.Fatal(err)
	}
	if _, err := agent.Answer(ctx, retrieved(1), "segunda", "s"); err != nil {
		t.Fatal(err)
	}

	second := chat.history[1]
	if len(second) != 3 {
		t.Fatalf("second call saw %d turns, want 3", len(second))
	}
	if second[0].Content != "primera" || second[1].Content != "respuesta" || second[2].Content != "segunda" {
		t.Errorf("second call history = %v", second)
	}
}

func TestAnsweringAgent_TruncatesLongReplies(t *testing.T) {
	chat := &fakeChat{reply: strings.Repeat("ñ", 2000)}
	agent := NewAnsweringAgent(chat, NewHistoryStore(10), MaxReplyLength, nil, zap.NewNop())

	reply, err := agent.Answer(context.Background(), retrieved(1), "hola", "s")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if n := utf8.RuneCountInString(reply); n != MaxReplyLength {
		t.Errorf("reply has %d characters, want %d", n, MaxReplyLength)
	}
}

func TestAnsweringAgent_Failures(t *testing.T) {
	tests := []struct {
		name string
		chat *fakeChat
	}{
		{name: "Provider error", chat: &fakeChat{err: errors.New("503 from provider")}},
		{name: "Empty reply", chat: &fakeChat{reply: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := NewHistoryStore(10)
			agent := NewAnsweringAgent(tt.chat, history, MaxReplyLength, NewMetrics(), zap.NewNop())

			reply, err := agent.Answer(context.Background(), retrieved(1), "hola", "s")
			if err == nil {
				t.Fatal("expected error")
			}
			if reply != ApologyMessage {
				t.Errorf("reply = %q, want apology", reply)
			}
			if len(history.Get("s")) != 0 {
				t.Error("failed turns must not be added to history")
			}
		})
	}
}

func TestNewAnsweringAgent_ClampsLimit(t *testing.T) {
	agent := NewAnsweringAgent(&fakeChat{}, NewHistoryStore(1), 5000, nil, zap.NewNop())
	if agent.maxReply != MaxReplyLength {
		t.Errorf("maxReply = %d, want %d", agent.maxReply, MaxReplyLength)
	}
}

func TestBuildSystemPrompt_NoListings(t *testing.T) {
	prompt := BuildSystemPrompt(nil, 1600)
	if !strings.Contains(prompt, "no hay propiedades") {
		t.Error("prompt should say there are no listings")
	}
}

func TestBuildSystemPrompt_Limit(t *testing.T) {
	prompt := BuildSystemPrompt(nil, 900)
	if n := strings.Count(prompt, "900 caracteres"); n != 2 {
		t.Errorf("limit appears %d times, want 2", n)
	}
	if strings.Contains(prompt, "1600") {
		t.Error("prompt should use the configured limit")
	}
}
