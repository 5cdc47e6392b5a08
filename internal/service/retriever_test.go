package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"yobot/internal/catalog"
	"yobot/internal/model"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "Identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "Orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "Opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "Scaled", a: []float32{1, 1}, b: []float32{5, 5}, want: 1},
		{name: "Zero vector", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
		{name: "Length mismatch", a: []float32{1}, b: []float32{1, 1}, want: 0},
		{name: "Empty", a: nil, b: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("CosineSimilarity = %f, want %f", got, tt.want)
			}
		})
	}
}

func testCatalog() *catalog.Catalog {
	return mustCatalog(
		entry(1, "Quito", "Cumbayá", 0, 1),
		entry(2, "Quito", "La Carolina", 1, 0),
		entry(3, "Quito", "González Suárez", 0.9, 0.1),
		entry(4, "Guayaquil", "Samborondón", 0.7, 0.7),
		entry(5, "Quito", "Tumbaco", -1, 0),
		entry(6, "Quito", "El Batán", 0.4, 0.6),
		entry(7, "Cuenca", "El Centro", 0.2, 0.9),
	)
}

func TestRetriever_Retrieve(t *testing.T) {
	embedder := &fakeEmbedder{def: []float32{1, 0}}
	r := NewRetriever(embedder, 5, nil)

	hits, err := r.Retrieve(context.Background(), testCatalog(), "Casa en la González Suárez")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	if len(hits) != 5 {
		t.Fatalf("got %d hits, want 5", len(hits))
	}
	want := []int64{2, 3, 4, 6, 7}
	got := model.ListingIDs(hits)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Errorf("scores not non-increasing at %d: %v", i, hits)
		}
	}
	if hits[0].Rendering == "" {
		t.Error("hits should carry the listing rendering")
	}

	// The query is normalized before embedding.
	if len(embedder.inputs) != 1 || embedder.inputs[0] != "casa gonzález suárez" {
		t.Errorf("embedded %q, want normalized query", embedder.inputs)
	}
}

func TestRetriever_TiesKeepCatalogOrder(t *testing.T) {
	cat := mustCatalog(
		entry(10, "A", "a", 1, 0),
		entry(11, "B", "b", 0, 1),
		entry(12, "C", "c", 1, 0),
		entry(13, "D", "d", 2, 0),
		entry(14, "E", "e", 1, 0),
	)
	r := NewRetriever(&fakeEmbedder{def: []float32{1, 0}}, 3, nil)

	hits, err := r.Retrieve(context.Background(), cat, "x")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	got := model.ListingIDs(hits)
	want := []int64{10, 12, 13}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestRetriever_Deterministic(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{def: []float32{0.3, 0.8}}, 5, nil)
	cat := testCatalog()

	first, err := r.Retrieve(context.Background(), cat, "departamento")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := r.Retrieve(context.Background(), cat, "departamento")
		if err != nil {
			t.Fatalf("Retrieve failed: %v", err)
		}
		a, b := model.ListingIDs(first), model.ListingIDs(again)
		for j := range a {
			if a[j] != b[j] {
				t.Fatalf("run %d order %v differs from %v", i, b, a)
			}
		}
	}
}

func TestRetriever_SmallCatalogsAndNoDuplicates(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{def: []float32{1, 0}}, DefaultTopK, nil)

	for n := 0; n <= 7; n++ {
		entries := make([]catalog.Entry, n)
		for i := 0; i < n; i++ {
			entries[i] = entry(int64(100+i), "X", "x", float32(i), 1)
		}
		cat := mustCatalog(entries...)

		hits, err := r.Retrieve(context.Background(), cat, "consulta")
		if err != nil {
			t.Fatalf("n=%d: Retrieve failed: %v", n, err)
		}
		want := n
		if want > DefaultTopK {
			want = DefaultTopK
		}
		if len(hits) != want {
			t.Errorf("n=%d: got %d hits, want %d", n, len(hits), want)
		}
		seen := map[int64]bool{}
		for _, h := range hits {
			if seen[h.Listing.ID] {
				t.Errorf("n=%d: duplicate id %d", n, h.Listing.ID)
			}
			seen[h.Listing.ID] = true
		}
	}
}

func TestRetriever_Errors(t *testing.T) {
	boom := errors.New("provider down")
	r := NewRetriever(&fakeEmbedder{err: boom}, 5, nil)
	if _, err := r.Retrieve(context.Background(), testCatalog(), "hola"); !errors.Is(err, boom) {
		t.Errorf("error = %v, want provider error", err)
	}

	r = NewRetriever(&fakeEmbedder{def: []float32{1, 0, 0}}, 5, nil)
	if _, err := r.Retrieve(context.Background(), testCatalog(), "hola"); !errors.Is(err, catalog.ErrDimensionMismatch) {
		t.Errorf("error = %v, want ErrDimensionMismatch", err)
	}
}

func TestNewRetriever_DefaultsK(t *testing.T) {
	if r := NewRetriever(&fakeEmbedder{}, 0, nil); r.k != DefaultTopK {
		t.Errorf("k = %d, want %d", r.k, DefaultTopK)
	}
}
