package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/coachflow/pkg/adapters/memory"
	"github.com/aretw0/coachflow/pkg/domain"
	contract "github.com/aretw0/coachflow/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLoader_Contract(t *testing.T) {
	loader := memory.NewLoader(map[string]string{
		"start": `{"sequenceId":"start","messages":[{"id":"1","type":"bot","text":"Hello World"}]}`,
		"end":   "sequenceId: end\nmessages:\n  - id: a\n    type: bot\n  - id: b\n    type: bot\n",
	})

	contract.SequenceLoaderContractTest(t, loader, map[string]int{"start": 1, "end": 2})
}

func TestMemoryLoader_FromSequences(t *testing.T) {
	seq, err := domain.NewSequence("built", []domain.MessageNode{{ID: "1", Kind: domain.KindBot}}, "")
	require.NoError(t, err)

	loader := memory.NewFromSequences(seq)
	contract.SequenceLoaderContractTest(t, loader, map[string]int{"built": 1})
}

func TestMemoryLoader_ParseErrorIsPerDocument(t *testing.T) {
	loader := memory.NewLoader(map[string]string{
		"good": `{"sequenceId":"good","messages":[{"id":"1","type":"bot"}]}`,
		"bad":  `{"sequenceId":"bad","messages":[{"id":"1","type":"nope"}]}`,
	})
	ctx := context.Background()

	_, err := loader.Load(ctx, "bad")
	var pe *domain.ParseError
	assert.ErrorAs(t, err, &pe)

	seq, err := loader.Load(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, "good", seq.ID)
}
