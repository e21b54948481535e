package subtopics

import (
	"fmt"
	"reflect"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/openscout/orchestrator/internal/agents"
)

func withSubtopics(name string, subs ...string) agents.Result {
	return agents.Result{AgentName: name, Subtopics: subs}
}

func TestIdentifyUnionsAndDedupes(t *testing.T) {
	id := NewIdentifier(zaptest.NewLogger(t))

	results := []agents.Result{
		withSubtopics("general", "Quantum error correction", "Qubit hardware"),
		withSubtopics("academic", "quantum error correction", "Shor's algorithm"),
	}

	got := id.Identify("Quantum computing", results, 0, 3)
	want := []string{"Quantum error correction", "Qubit hardware", "Shor's algorithm"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Identify = %v, want %v", got, want)
	}
}

func TestIdentifyDropsParentEchoes(t *testing.T) {
	id := NewIdentifier(zaptest.NewLogger(t))

	results := []agents.Result{
		withSubtopics("general",
			"Quantum computing",         // equal to parent
			"quantum",                   // substring of parent
			"Quantum cryptography",      // genuinely new
			"  ",                        // blank
		),
	}

	got := id.Identify("Quantum computing", results, 1, 3)
	want := []string{"Quantum cryptography"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Identify = %v, want %v", got, want)
	}
}

func TestIdentifyCapsPerRound(t *testing.T) {
	id := NewIdentifier(zaptest.NewLogger(t))

	var subs []string
	for i := 0; i < MaxPerRound+4; i++ {
		subs = append(subs, fmt.Sprintf("Subtopic %d", i))
	}
	got := id.Identify("Parent", []agents.Result{withSubtopics("general", subs...)}, 0, 3)
	if len(got) != MaxPerRound {
		t.Errorf("len(Identify) = %d, want %d", len(got), MaxPerRound)
	}
}

func TestIdentifyEmptyAtMaxDepth(t *testing.T) {
	id := NewIdentifier(zaptest.NewLogger(t))

	results := []agents.Result{withSubtopics("general", "Something new")}
	if got := id.Identify("Parent", results, 3, 3); got != nil {
		t.Errorf("Identify at max depth = %v, want nil", got)
	}
	if got := id.Identify("Parent", results, 5, 3); got != nil {
		t.Errorf("Identify past max depth = %v, want nil", got)
	}
}
