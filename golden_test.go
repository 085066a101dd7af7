package coachflow_test

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/aretw0/coachflow"
	"github.com/aretw0/coachflow/pkg/adapters/memory"
	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/aretw0/coachflow/pkg/ports"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

const onboardingDoc = `
sequenceId: onboarding
messages:
  - id: a
    type: bot
    text: "Hi {user.name|there} ||| Glad you came"
    nextMessageId: b
  - id: b
    type: choice
    text: How do you feel?
    storeKey: user.mood
    choices:
      - text: Great
        value: great
        nextMessageId: c
      - text: Meh
        value: meh
        nextMessageId: c
  - id: c
    type: dataAction
    dataActions:
      - type: increment
        key: user.checkins
    nextMessageId: r
  - id: r
    type: autoroute
    routes:
      - condition: "user.mood == 'great'"
        nextMessageId: g
      - isDefault: true
        nextMessageId: m
  - id: g
    type: bot
    text: "Love that, you are {user.mood}!"
    nextMessageId: n
  - id: m
    type: bot
    text: Thanks for being honest.
    nextMessageId: n
  - id: n
    type: textInput
    text: What should I call you?
    storeKey: user.name
    nextMessageId: w
  - id: w
    type: bot
    text: "Nice to meet you, {user.name}."
    sequenceId: week1
`

const week1Doc = `
sequenceId: week1
messages:
  - id: w1
    type: bot
    text: "Week one starts now, {user.name}. Check-ins so far: {user.checkins}"
`

// transcript prints every flow result the way a chat host would see it.
type transcript struct {
	bytes.Buffer
}

func (tr *transcript) step(title string, res *domain.TraversalResult) {
	fmt.Fprintf(tr, "## %s\n", title)
	for _, m := range res.Messages {
		fmt.Fprintf(tr, "[%s] %s: %s\n", m.ID, m.Kind, m.Text)
		for i, c := range m.Choices {
			fmt.Fprintf(tr, "  %d) %s\n", i+1, c.Text)
		}
	}
	if res.AwaitingInput {
		fmt.Fprintf(tr, "awaiting: %s (sequence %s)\n", res.AwaitingNodeID, res.SequenceID)
	} else {
		fmt.Fprintf(tr, "end (sequence %s)\n", res.SequenceID)
	}
}

func TestGolden_OnboardingTranscript(t *testing.T) {
	ctx := context.Background()
	loader := memory.NewLoader(map[string]string{
		"onboarding": onboardingDoc,
		"week1":      week1Doc,
	})
	engine, err := coachflow.New("",
		coachflow.WithLoader(loader),
		coachflow.WithEntry("onboarding", ""),
		coachflow.WithFormatters(ports.Formatters{
			"user.mood": {"great": "feeling great", "meh": "so-so"},
		}),
	)
	require.NoError(t, err)

	var tr transcript

	res, err := engine.Start(ctx, "golden", "", "")
	require.NoError(t, err)
	tr.step("start", res)

	first := 0
	res, err = engine.Respond(ctx, "golden", res.AwaitingNodeID, domain.Response{ChoiceIndex: &first})
	require.NoError(t, err)
	tr.step("respond b choice="+strconv.Itoa(first+1), res)

	res, err = engine.Respond(ctx, "golden", res.AwaitingNodeID, domain.Response{Text: "Ana"})
	require.NoError(t, err)
	tr.step(`respond n text="Ana"`, res)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "onboarding", tr.Bytes())
}
