package reconcile

import (
	"context"
	"testing"

	"github.com/halcyon-ai/recall/pkg/graph"
	"github.com/halcyon-ai/recall/pkg/provider/embeddings/mock"
	"github.com/halcyon-ai/recall/pkg/provider/llm"
	llmmock "github.com/halcyon-ai/recall/pkg/provider/llm/mock"
)

func TestReconcileSkipsWhenNoCandidatesAboveBar(t *testing.T) {
	store := newFakeStore()
	chat := &llmmock.Provider{}
	embed := &mock.Provider{EmbedResult: []float32{1, 0}}
	r := New(chat, embed, store, 0.45)

	contradictions, err := r.Reconcile(context.Background(), "new1", "Always use metric units")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if contradictions != nil {
		t.Errorf("expected no contradictions with an empty store, got %v", contradictions)
	}
	if len(chat.CompleteCalls) != 0 {
		t.Errorf("expected no chat call when there are no candidates above the bar, got %d", len(chat.CompleteCalls))
	}
}

func TestReconcileAppliesSupersession(t *testing.T) {
	store := newFakeStore()
	old := graph.NewNode(graph.NodeInstruction, "rule", "Always use imperial units", graph.SourceUser)
	old.ID = "old1"
	store.addNode(old)
	store.embeddings["old1"] = []float32{1, 0}

	chat := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: `{"results": [{"id": "old1", "verdict": "SUPERSEDES", "reason": "replaces unit preference"}], "question": null}`,
	}}
	embed := &mock.Provider{EmbedResult: []float32{1, 0}}
	r := New(chat, embed, store, 0.45)

	contradictions, err := r.Reconcile(context.Background(), "new1", "Always use metric units")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(contradictions) != 0 {
		t.Errorf("expected no contradictions, got %v", contradictions)
	}
	oldNode, _ := store.GetNode(context.Background(), "old1")
	if !oldNode.IsSuperseded() {
		t.Error("expected old1 to be marked superseded")
	}
}

func TestReconcileSurfacesContradiction(t *testing.T) {
	store := newFakeStore()
	old := graph.NewNode(graph.NodeInstruction, "rule", "Never commit directly to main", graph.SourceUser)
	old.ID = "old2"
	store.addNode(old)
	store.embeddings["old2"] = []float32{1, 0}

	chat := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: `{"results": [{"id": "old2", "verdict": "CONTRADICTION", "reason": "directly conflicts"}], "question": "Should commits to main now be allowed?"}`,
	}}
	embed := &mock.Provider{EmbedResult: []float32{1, 0}}
	r := New(chat, embed, store, 0.45)

	contradictions, err := r.Reconcile(context.Background(), "new2", "Always commit directly to main")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(contradictions) != 1 {
		t.Fatalf("expected 1 contradiction, got %d", len(contradictions))
	}
	if contradictions[0].Question == "" {
		t.Error("expected the suggested question to be propagated")
	}
	oldNode, _ := store.GetNode(context.Background(), "old2")
	if oldNode.IsSuperseded() {
		t.Error("expected old2 left unsuperseded on a contradiction verdict")
	}
}

func TestReconcileSkipsSelfAndAlreadySuperseded(t *testing.T) {
	store := newFakeStore()
	newNode := graph.NewNode(graph.NodeInstruction, "rule", "Always use metric units", graph.SourceUser)
	newNode.ID = "self1"
	store.addNode(newNode)
	store.embeddings["self1"] = []float32{1, 0}

	supersededBy := "x"
	stale := graph.NewNode(graph.NodeInstruction, "rule", "Always use imperial units", graph.SourceUser)
	stale.ID = "stale1"
	stale.SupersededBy = &supersededBy
	store.addNode(stale)
	store.embeddings["stale1"] = []float32{1, 0}

	chat := &llmmock.Provider{}
	embed := &mock.Provider{EmbedResult: []float32{1, 0}}
	r := New(chat, embed, store, 0.45)

	_, err := r.Reconcile(context.Background(), "self1", "Always use metric units")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(chat.CompleteCalls) != 0 {
		t.Errorf("expected no chat call since the only candidates are self and a superseded node, got %d", len(chat.CompleteCalls))
	}
}
