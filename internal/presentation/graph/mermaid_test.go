package graph_test

import (
	"testing"

	"github.com/aretw0/coachflow/internal/presentation/graph"
	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequence(t *testing.T, nodes ...domain.MessageNode) *domain.Sequence {
	t.Helper()
	seq, err := domain.NewSequence("intro", nodes, "")
	require.NoError(t, err)
	return seq
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		nodes    []domain.MessageNode
		overlay  *graph.Overlay
		contains []string
	}{
		{
			name: "Node shapes",
			nodes: []domain.MessageNode{
				{ID: "1", Kind: domain.KindBot, Text: "Hi", NextMessageID: "2"},
				{ID: "2", Kind: domain.KindAutoroute, Routes: []domain.RouteRule{{IsDefault: true, NextMessageID: "3"}}},
				{ID: "3", Kind: domain.KindDataAction, NextMessageID: "4"},
				{ID: "4", Kind: domain.KindTextInput, Text: "Name?", NextMessageID: "5"},
				{ID: "5", Kind: domain.KindBot, Text: "Bye"},
			},
			contains: []string{
				`1(("1: Hi"))`,
				`2{"2: autoroute"}`,
				`3[["3: dataAction"]]`,
				`4[/"4: Name?"/]`,
				`5["5: Bye"]`,
				`1 --> 2`,
				`2 -- "default" --> 3`,
			},
		},
		{
			name: "Condition escaping and id sanitisation",
			nodes: []domain.MessageNode{
				{ID: "check-in", Kind: domain.KindAutoroute, Routes: []domain.RouteRule{
					{Condition: `user.mood == "great"`, NextMessageID: "yay.1"},
				}},
				{ID: "yay.1", Kind: domain.KindBot, Text: `Say "hi"`},
			},
			contains: []string{
				`check_in -- "user.mood == 'great'" --> yay_1`,
				`yay_1["yay.1: Say 'hi'"]`,
			},
		},
		{
			name: "Cross-sequence jump",
			nodes: []domain.MessageNode{
				{ID: "1", Kind: domain.KindChoice, Text: "Go?", Choices: []domain.Choice{
					{Text: "Week two", SequenceID: "week2", NextMessageID: "w2"},
				}, SequenceID: "week1"},
			},
			contains: []string{
				`1 -. "Week two" .-> seq_week2__w2`,
				`1 -.-> seq_week1`,
				`seq_week2__w2(["week2#w2"])`,
				`seq_week1(["week1"])`,
			},
		},
		{
			name: "Overlay",
			nodes: []domain.MessageNode{
				{ID: "1", Kind: domain.KindBot, Text: "Hi", NextMessageID: "2"},
				{ID: "2", Kind: domain.KindChoice, Text: "Ok?", Choices: []domain.Choice{{Text: "Ok"}}},
			},
			overlay: &graph.Overlay{VisitedNodes: []string{"1", "1", "ghost"}, CurrentNode: "2"},
			contains: []string{
				"class 1 visited;",
				"class 2 current;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(sequence(t, tt.nodes...), tt.overlay)
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
			assert.NotContains(t, got, "ghost")
		})
	}
}

func TestGenerateMermaid_TruncatesLongText(t *testing.T) {
	got := graph.GenerateMermaid(sequence(t, domain.MessageNode{
		ID:   "1",
		Kind: domain.KindBot,
		Text: "This message is definitely longer than thirty-two characters",
	}), nil)
	assert.Contains(t, got, `"1: This message is definitely lo..."`)
}
