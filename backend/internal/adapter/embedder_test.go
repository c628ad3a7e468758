package adapter

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 1}, []float32{1, 0, 1}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0.0},
		{"empty", []float32{}, []float32{}, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CosineSimilarity(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("CosineSimilarity = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestVectorCache(t *testing.T) {
	cache := NewVectorCache()

	if _, ok := cache.Get("u1"); ok {
		t.Error("Expected miss for unknown user")
	}

	cache.Put("u1", map[string]DocVector{"n1": {Vector: []float32{0.1, 0.2}, Content: "note one"}})
	docs, ok := cache.Get("u1")
	if !ok {
		t.Fatal("Expected hit after Put")
	}
	if len(docs) != 1 {
		t.Fatalf("Expected 1 doc, got %d", len(docs))
	}
	if docs["n1"].Content != "note one" {
		t.Errorf("Expected cached content, got %q", docs["n1"].Content)
	}

	// Mutating the returned map must not touch the cache
	docs["n2"] = DocVector{Vector: []float32{0.3}}
	again, _ := cache.Get("u1")
	if len(again) != 1 {
		t.Error("Cache contents changed through returned map")
	}

	cache.Invalidate("u1")
	if _, ok := cache.Get("u1"); ok {
		t.Error("Expected miss after Invalidate")
	}
	if cache.Size() != 0 {
		t.Errorf("Expected empty cache, got size %d", cache.Size())
	}
}
