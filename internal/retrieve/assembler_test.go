package retrieve

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/halcyon-ai/recall/pkg/graph"
)

func TestAssembleOrdersSections(t *testing.T) {
	store := newFakeStore()
	dave := graph.NewNode(graph.NodeEntity, graph.SubtypePerson, "Dave Chen", graph.SourceUser)
	dave.ID = "dave"
	store.addNode(dave)

	fact := graph.NewNode(graph.NodeFact, "", "Dave handles the Brightwell account", graph.SourceUser)
	fact.ID = "fact1"
	store.addNode(fact)

	ctx := context.Background()
	candidates := []graph.ScoredNode{
		{Node: graph.Node{ID: "dave"}, Score: 0.9},
		{Node: graph.Node{ID: "fact1"}, Score: 0.8},
	}

	out, err := assemble(ctx, store, candidates)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(out.Sections) != 2 {
		t.Fatalf("expected 2 sections (People & things, Facts), got %d: %+v", len(out.Sections), out.Sections)
	}
	if out.Sections[0].Heading != "People & things" {
		t.Errorf("expected first section to be People & things, got %q", out.Sections[0].Heading)
	}
	if out.Sections[1].Heading != "Facts" {
		t.Errorf("expected second section to be Facts, got %q", out.Sections[1].Heading)
	}
	if !strings.Contains(out.Context, "Dave Chen") || !strings.Contains(out.Context, "Brightwell") {
		t.Errorf("expected context to contain both entity and fact content, got: %s", out.Context)
	}
}

func TestAssembleDropsSupersededNodes(t *testing.T) {
	store := newFakeStore()
	supersededBy := "new-id"
	old := graph.NewNode(graph.NodeFact, "", "stale fact", graph.SourceUser)
	old.ID = "old"
	old.SupersededBy = &supersededBy
	store.addNode(old)

	out, err := assemble(context.Background(), store, []graph.ScoredNode{{Node: graph.Node{ID: "old"}, Score: 0.9}})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(out.Sections) != 0 {
		t.Fatalf("expected superseded node to be dropped, got sections: %+v", out.Sections)
	}
}

func TestPromoteDuePlansMovesToEvents(t *testing.T) {
	store := newFakeStore()
	past := time.Now().UTC().Add(-48 * time.Hour)
	plan := graph.NewNode(graph.NodePlan, "", "Submit quarterly report", graph.SourceUser)
	plan.ID = "plan1"
	plan.ValidFrom = &past
	store.addNode(plan)

	out, err := assemble(context.Background(), store, []graph.ScoredNode{{Node: graph.Node{ID: "plan1"}, Score: 0.7}})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(out.Sections) != 1 || out.Sections[0].Heading != "Events" {
		t.Fatalf("expected promoted plan to surface under Events, got: %+v", out.Sections)
	}
	if !strings.Contains(out.Context, "now past") {
		t.Errorf("expected promoted plan annotation, got: %s", out.Context)
	}

	stored, _ := store.GetNode(context.Background(), "plan1")
	if stored.Type != graph.NodeEvent {
		t.Errorf("expected underlying node type rewritten to event, got %q", stored.Type)
	}
}

func TestPromoteDuePlansLeavesFuturePlansAlone(t *testing.T) {
	store := newFakeStore()
	future := time.Now().UTC().Add(48 * time.Hour)
	plan := graph.NewNode(graph.NodePlan, "", "Book travel", graph.SourceUser)
	plan.ID = "plan2"
	plan.ValidFrom = &future
	store.addNode(plan)

	out, err := assemble(context.Background(), store, []graph.ScoredNode{{Node: graph.Node{ID: "plan2"}, Score: 0.7}})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(out.Sections) != 1 || out.Sections[0].Heading != "Upcoming plans" {
		t.Fatalf("expected future plan to remain under Upcoming plans, got: %+v", out.Sections)
	}
}

func TestEntitySectionExcludesRelationshipsAlreadyPresentElsewhere(t *testing.T) {
	store := newFakeStore()
	dave := graph.NewNode(graph.NodeEntity, graph.SubtypePerson, "Dave Chen", graph.SourceUser)
	dave.ID = "dave"
	store.addNode(dave)

	acme := graph.NewNode(graph.NodeEntity, graph.SubtypeOrg, "Acme Corp", graph.SourceUser)
	acme.ID = "acme"
	store.addNode(acme)

	store.addEdge(graph.Edge{ID: "e1", SourceID: "dave", TargetID: "acme", EdgeType: graph.EdgeWorksFor})

	// acme is both a top-level candidate AND a relationship target of dave;
	// it should appear once under People & things, not duplicated in the
	// indented relationship listing.
	out, err := assemble(context.Background(), store, []graph.ScoredNode{
		{Node: graph.Node{ID: "dave"}, Score: 0.9},
		{Node: graph.Node{ID: "acme"}, Score: 0.5},
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	count := strings.Count(out.Context, "Acme Corp")
	if count != 1 {
		t.Errorf("expected Acme Corp to appear exactly once, got %d occurrences in:\n%s", count, out.Context)
	}
}
