package service

import (
	"context"
	"strings"
	"sync"

	"yobot/internal/catalog"
	"yobot/internal/model"
)

func intPtr(i int) *int {
	return &i
}

type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	def     []float32
	err     error
	inputs  []string
}

func (f *fakeEmbedder) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, texts...)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = f.def
		}
	}
	return out, nil
}

type fakeChat struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
	history [][]model.ChatTurn
}

func (f *fakeChat) Generate(ctx context.Context, systemPrompt string, history []model.ChatTurn) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, systemPrompt)
	f.history = append(f.history, history)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeModel struct {
	logits []float32
	err    error
	texts  []string
}

func (f *fakeModel) Name() string { return "fake" }

func (f *fakeModel) Logits(ctx context.Context, text string) ([]float32, error) {
	f.texts = append(f.texts, text)
	return f.logits, f.err
}

// keywordModel returns CONTACT_AGENT logits when the normalized text contains "agente"
type keywordModel struct{}

func (keywordModel) Name() string { return "keyword" }

func (keywordModel) Logits(ctx context.Context, text string) ([]float32, error) {
	for _, w := range strings.Fields(text) {
		if w == "agente" {
			return []float32{2.5, -1}, nil
		}
	}
	return []float32{-1, 2.5}, nil
}

type sentMessage struct {
	to   string
	body string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeNotifier) Send(ctx context.Context, to, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, sentMessage{to: to, body: body})
	return "SM123", nil
}

func (f *fakeNotifier) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	events []model.HandoffEvent
}

func (f *fakePublisher) PublishHandoff(ctx context.Context, event model.HandoffEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

type staticCatalog struct {
	cat *catalog.Catalog
}

func (s staticCatalog) Current() *catalog.Catalog { return s.cat }

func mustCatalog(entries ...catalog.Entry) *catalog.Catalog {
	c, err := catalog.New(entries)
	if err != nil {
		panic(err)
	}
	return c
}

func entry(id int64, location, neighborhood string, vec ...float32) catalog.Entry {
	return catalog.Entry{
		Listing: model.Listing{
			ID:           id,
			Location:     location,
			Neighborhood: neighborhood,
			Price:        "$100.000",
			Bedrooms:     intPtr(2),
		},
		Embedding: vec,
	}
}
