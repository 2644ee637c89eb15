package httpembed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEmbedBatchFiltersEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req wireRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(req.Input) != 2 {
			t.Fatalf("Input length = %d, want 2 (empty strings filtered)", len(req.Input))
		}
		if req.OutputDimension != fixedDimension {
			t.Errorf("OutputDimension = %d, want %d", req.OutputDimension, fixedDimension)
		}
		resp := wireResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: []float32{float32(i)}, Index: i})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Model: "m"})
	out, err := c.EmbedBatch(t.Context(), []string{"a", "", "b"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3", len(out))
	}
	if len(out[1]) != fixedDimension {
		t.Errorf("empty input should yield a zero-vector of length %d, got %d", fixedDimension, len(out[1]))
	}
}

func TestDimensionsAndModelID(t *testing.T) {
	c := New(Config{Model: "embed-v1"})
	if c.Dimensions() != fixedDimension {
		t.Errorf("Dimensions() = %d, want %d", c.Dimensions(), fixedDimension)
	}
	if c.ModelID() != "embed-v1" {
		t.Errorf("ModelID() = %q, want embed-v1", c.ModelID())
	}
}
