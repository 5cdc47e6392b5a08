package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"yobot/internal/model"

	"go.uber.org/zap"
)

type fakeInteractions struct {
	turns    chan model.TurnRecord
	handoffs chan model.HandoffEvent
}

func newFakeInteractions() *fakeInteractions {
	return &fakeInteractions{
		turns:    make(chan model.TurnRecord, 16),
		handoffs: make(chan model.HandoffEvent, 16),
	}
}

func (f *fakeInteractions) LogConversationTurn(ctx context.Context, turn model.TurnRecord) error {
	f.turns <- turn
	return nil
}

func (f *fakeInteractions) LogHandoff(ctx context.Context, event model.HandoffEvent) error {
	f.handoffs <- event
	return nil
}

type assistantFixture struct {
	assistant *Assistant
	states    *StateTracker
	embedder  *fakeEmbedder
	chat      *fakeChat
	notifier  *fakeNotifier
	publisher *fakePublisher
}

func newAssistantFixture(t *testing.T) *assistantFixture {
	t.Helper()
	logger := zap.NewNop()

	cat := mustCatalog(
		entry(1, "Quito", "Cumbayá", 1, 0),
		entry(2, "Quito", "La Floresta", 0.8, 0.2),
		entry(3, "Guayaquil", "Samborondón", 0, 1),
	)
	reader := staticCatalog{cat: cat}
	agents := NewAgentDirectory(map[int64]string{
		1: "+593991111111",
		3: "+593993333333",
		7: "+593997777777",
	}, logger)

	f := &assistantFixture{
		states:    NewStateTracker(),
		embedder:  &fakeEmbedder{def: []float32{0, 1}},
		chat:      &fakeChat{reply: "La propiedad 3 en Samborondón tiene 2 habitaciones."},
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
	}
	f.assistant = NewAssistant(AssistantDeps{
		States:     f.states,
		Classifier: NewIntentClassifier(keywordModel{}, nil, logger),
		Retriever:  NewRetriever(f.embedder, DefaultTopK, nil),
		Agent:      NewAnsweringAgent(f.chat, NewHistoryStore(10), MaxReplyLength, nil, logger),
		Handoff:    NewHandoffResolver(reader, agents),
		Catalog:    reader,
		Notifier:   f.notifier,
		Publisher:  f.publisher,
		Logger:     logger,
	})
	return f
}

func TestAssistant_HandoffFlow(t *testing.T) {
	f := newAssistantFixture(t)
	ctx := context.Background()

	reply := f.assistant.HandleMessage(ctx, "+100", "Quiero hablar con un agente")
	if reply.Route != model.RouteHandoffPrompt || reply.Body != HandoffPromptMessage {
		t.Fatalf("first reply = %+v", reply)
	}
	if reply.Intent != model.IntentContactAgent {
		t.Errorf("intent = %s, want CONTACT_AGENT", reply.Intent)
	}
	if f.states.Get("+100") != model.StateAwaitingPropertyID {
		t.Fatalf("state = %s, want AWAITING_PROPERTY_ID", f.states.Get("+100"))
	}

	reply = f.assistant.HandleMessage(ctx, "+100", " 1 ")
	if reply.Route != model.RouteHandoffDone || !reply.AgentNotified {
		t.Fatalf("second reply = %+v", reply)
	}
	if reply.Body != HandoffSuccessMessage {
		t.Errorf("body = %q", reply.Body)
	}
	if reply.State != model.StateNone || f.states.Get("+100") != model.StateNone {
		t.Errorf("state after handoff = %s, want NONE", f.states.Get("+100"))
	}

	sent := f.notifier.messages()
	if len(sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(sent))
	}
	if sent[0].to != "+593991111111" {
		t.Errorf("notified %q, want the agent of property 1", sent[0].to)
	}
	for _, want := range []string{"+100", "1", "Quito", "Cumbayá"} {
		if !strings.Contains(sent[0].body, want) {
			t.Errorf("notification %q missing %q", sent[0].body, want)
		}
	}

	if len(f.publisher.events) != 1 {
		t.Fatalf("published %d events, want 1", len(f.publisher.events))
	}
	ev := f.publisher.events[0]
	if ev.PropertyID != 1 || ev.Sender != "+100" || !ev.Notified || ev.EventID == "" {
		t.Errorf("event = %+v", ev)
	}
	if len(f.chat.prompts) != 0 {
		t.Error("handoff turns must not call the language model")
	}
}

func TestAssistant_SandboxIsIsolated(t *testing.T) {
	f := newAssistantFixture(t)
	ctx := context.Background()
	sandboxNotifier := &fakeNotifier{}
	sandbox := f.assistant.Sandbox(sandboxNotifier)

	reply := sandbox.HandleMessage(ctx, "+100", "Quiero hablar con un agente")
	if reply.Route != model.RouteHandoffPrompt {
		t.Fatalf("first reply = %+v", reply)
	}
	if f.states.Get("+100") != model.StateNone {
		t.Errorf("live state = %s, want NONE", f.states.Get("+100"))
	}

	reply = sandbox.HandleMessage(ctx, "+100", "1")
	if reply.Route != model.RouteHandoffDone {
		t.Fatalf("second reply = %+v", reply)
	}
	if sent := f.notifier.messages(); len(sent) != 0 {
		t.Errorf("live notifier sent %v", sent)
	}
	if sent := sandboxNotifier.messages(); len(sent) != 1 || sent[0].to != "+593991111111" {
		t.Errorf("sandbox notifier sent %v", sent)
	}
	if len(f.publisher.events) != 0 {
		t.Errorf("sandbox published %d events", len(f.publisher.events))
	}

	// A live conversation in progress is not advanced by the sandbox
	f.assistant.HandleMessage(ctx, "+200", "Quiero hablar con un agente")
	sandbox.HandleMessage(ctx, "+200", "casas en samborondón")
	if f.states.Get("+200") != model.StateAwaitingPropertyID {
		t.Errorf("live state = %s, want AWAITING_PROPERTY_ID", f.states.Get("+200"))
	}
	if n := f.assistant.Agent.history.Sessions(); n != 0 {
		t.Errorf("live history has %d sessions, want 0", n)
	}
	if n := sandbox.Agent.history.Sessions(); n != 1 {
		t.Errorf("sandbox history has %d sessions, want 1", n)
	}
}

func TestAssistant_HandoffOutcomes(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantRoute model.Route
		wantBody  string
	}{
		{name: "Cancel", input: "cancelar", wantRoute: model.RouteHandoffCancel, wantBody: HandoffCancelMessage},
		{name: "Cancel with punctuation", input: "¡Cancelar!", wantRoute: model.RouteHandoffCancel, wantBody: HandoffCancelMessage},
		{name: "Not numeric", input: "la casa azul", wantRoute: model.RouteHandoffBadID, wantBody: InvalidPropertyMessage},
		{name: "Negative", input: "-1", wantRoute: model.RouteHandoffBadID, wantBody: InvalidPropertyMessage},
		{name: "No agent", input: "2", wantRoute: model.RouteHandoffMiss, wantBody: "ID 2"},
		{name: "Agent without listing", input: "7", wantRoute: model.RouteHandoffMiss, wantBody: "ID 7"},
		{name: "Unknown", input: "999", wantRoute: model.RouteHandoffMiss, wantBody: "ID 999"},
		{name: "Digits beyond int64", input: " 99999999999999999999 ", wantRoute: model.RouteHandoffMiss, wantBody: "ID 99999999999999999999."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAssistantFixture(t)
			f.states.Set("+100", model.StateAwaitingPropertyID)

			reply := f.assistant.HandleMessage(context.Background(), "+100", tt.input)
			if reply.Route != tt.wantRoute {
				t.Errorf("route = %s, want %s", reply.Route, tt.wantRoute)
			}
			if !strings.Contains(reply.Body, tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", reply.Body, tt.wantBody)
			}
			if f.states.Get("+100") != model.StateNone {
				t.Errorf("state = %s, want NONE", f.states.Get("+100"))
			}
			if n := len(f.notifier.messages()); n != 0 {
				t.Errorf("sent %d notifications, want 0", n)
			}
			if len(f.chat.prompts) != 0 {
				t.Error("handoff turns must not call the language model")
			}
		})
	}
}

func TestAssistant_AnswersQuestions(t *testing.T) {
	f := newAssistantFixture(t)

	reply := f.assistant.HandleMessage(context.Background(), "+200", "¿Qué casas tienen en Samborondón?")
	if reply.Route != model.RouteAnswer {
		t.Fatalf("route = %s, want answer", reply.Route)
	}
	if reply.Intent != model.IntentOther {
		t.Errorf("intent = %s, want OTHER", reply.Intent)
	}
	if reply.Body == "" || utf8.RuneCountInString(reply.Body) > MaxReplyLength {
		t.Errorf("reply length = %d", utf8.RuneCountInString(reply.Body))
	}
	if !strings.Contains(reply.Body, "3") {
		t.Errorf("reply %q does not mention listing 3", reply.Body)
	}
	if len(reply.ListingIDs) != 3 || reply.ListingIDs[0] != 3 {
		t.Errorf("listing ids = %v, want listing 3 first", reply.ListingIDs)
	}
	if !strings.Contains(f.chat.prompts[0], "ID:3") {
		t.Error("system prompt does not carry the retrieved listings")
	}
	if f.states.Get("+200") != model.StateNone {
		t.Errorf("state = %s, want NONE", f.states.Get("+200"))
	}
	if len(f.embedder.inputs) != 1 || f.embedder.inputs[0] != "casas samborondón" {
		t.Errorf("embedded %q, want the normalized query", f.embedder.inputs)
	}
}

func TestAssistant_Failures(t *testing.T) {
	t.Run("Retrieval", func(t *testing.T) {
		f := newAssistantFixture(t)
		f.embedder.err = errors.New("embedding service down")

		reply := f.assistant.HandleMessage(context.Background(), "+200", "casas en Quito")
		if reply.Route != model.RouteFailure || reply.Body != ApologyMessage {
			t.Errorf("reply = %+v", reply)
		}
		if len(f.chat.prompts) != 0 {
			t.Error("language model called after retrieval failure")
		}
	})

	t.Run("Generation", func(t *testing.T) {
		f := newAssistantFixture(t)
		f.chat.err = errors.New("rate limited")

		reply := f.assistant.HandleMessage(context.Background(), "+200", "casas en Quito")
		if reply.Route != model.RouteFailure || reply.Body != ApologyMessage {
			t.Errorf("reply = %+v", reply)
		}
	})

	t.Run("Agent delivery", func(t *testing.T) {
		f := newAssistantFixture(t)
		f.notifier.err = errors.New("twilio unavailable")
		f.states.Set("+100", model.StateAwaitingPropertyID)

		reply := f.assistant.HandleMessage(context.Background(), "+100", "3")
		if reply.Route != model.RouteFailure || reply.Body != ApologyMessage || reply.AgentNotified {
			t.Errorf("reply = %+v", reply)
		}
		if f.states.Get("+100") != model.StateNone {
			t.Errorf("state = %s, want NONE", f.states.Get("+100"))
		}
		if len(f.publisher.events) != 1 || f.publisher.events[0].Notified {
			t.Errorf("events = %+v, want one un-notified event", f.publisher.events)
		}
	})
}

func TestAssistant_RecordsInteractions(t *testing.T) {
	f := newAssistantFixture(t)
	log := newFakeInteractions()
	f.assistant.Interactions = log
	f.states.Set("+100", model.StateAwaitingPropertyID)

	reply := f.assistant.HandleMessage(context.Background(), "+100", "3")

	select {
	case turn := <-log.turns:
		if turn.TurnID != reply.TurnID || turn.Route != model.RouteHandoffDone {
			t.Errorf("turn = %+v", turn)
		}
	case <-time.After(time.Second):
		t.Fatal("turn was not logged")
	}
	select {
	case ev := <-log.handoffs:
		if ev.PropertyID != 3 || ev.AgentPhone != "+593993333333" {
			t.Errorf("handoff = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("handoff was not logged")
	}
}

func TestAssistant_SendersAreIndependent(t *testing.T) {
	f := newAssistantFixture(t)
	ctx := context.Background()

	f.assistant.HandleMessage(ctx, "+100", "quiero hablar con un agente")
	reply := f.assistant.HandleMessage(ctx, "+200", "3")
	if reply.Route != model.RouteAnswer {
		t.Errorf("+200 route = %s, want answer", reply.Route)
	}
	if f.states.Get("+100") != model.StateAwaitingPropertyID {
		t.Errorf("+100 state = %s, want AWAITING_PROPERTY_ID", f.states.Get("+100"))
	}
}

func TestAssistant_ConcurrentSenders(t *testing.T) {
	f := newAssistantFixture(t)
	ctx := context.Background()

	senders := []string{"+101", "+102", "+103", "+104", "+105"}
	var wg sync.WaitGroup
	for _, s := range senders {
		wg.Add(1)
		go func(sender string) {
			defer wg.Done()
			f.assistant.HandleMessage(ctx, sender, "necesito un agente")
			f.assistant.HandleMessage(ctx, sender, "1")
		}(s)
	}
	wg.Wait()

	if n := len(f.notifier.messages()); n != len(senders) {
		t.Errorf("sent %d notifications, want %d", n, len(senders))
	}
	if f.states.Pending() != 0 {
		t.Errorf("%d senders still pending", f.states.Pending())
	}
	if n := f.states.locks.size(); n != 0 {
		t.Errorf("%d sender locks leaked", n)
	}
}
