package compiler

import (
	"testing"

	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_JSON(t *testing.T) {
	doc := `{
		"sequenceId": "onboarding",
		"messages": [
			{"id": 1, "type": "bot", "text": "Hi {user.name|friend}!|||Ready?", "nextMessageId": 2,
			 "animation": {"name": "fade", "delayMs": 300}},
			{"id": 2, "type": "autoroute", "routes": [
				{"condition": "user.streak > 0", "nextMessageId": "3"},
				{"isDefault": "true", "sequenceId": "intro", "nextMessageId": "welcome"}
			]},
			{"id": 3, "type": "dataAction", "dataActions": [
				{"type": "increment", "key": "user.streak", "value": 2},
				{"type": "set", "key": "user.ratio", "value": 1.5},
				{"type": "set", "key": "task.nextDate", "value": "NEXT_ACTIVE_DATE"},
				{"type": "trigger", "event": "streak_updated", "data": {"count": 3}}
			], "nextMessageId": "4"},
			{"id": "4", "type": "choice", "text": "How do you feel?", "storeKey": "user.mood",
			 "choices": [{"text": "Great", "value": "great"}, {"text": "Meh", "nextMessageId": "5"}]},
			{"id": "5", "type": "textInput", "text": "Tell me more"}
		]
	}`

	seq, err := NewParser().Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "onboarding", seq.ID)
	assert.Equal(t, 5, seq.Len())
	assert.Equal(t, "1", seq.EntryID())

	first, ok := seq.Node("1")
	require.True(t, ok)
	assert.Equal(t, domain.KindBot, first.Kind)
	assert.Equal(t, "2", first.NextMessageID)
	require.NotNil(t, first.Animation)
	assert.Equal(t, 300, first.Animation.DelayMs)

	route, _ := seq.Node("2")
	require.Len(t, route.Routes, 2)
	assert.True(t, route.Routes[1].IsDefault)
	assert.Equal(t, "intro#welcome", route.Routes[1].Target())

	action, _ := seq.Node("3")
	require.Len(t, action.DataActions, 4)
	assert.Equal(t, domain.Int(2), action.DataActions[0].Value)
	assert.Equal(t, domain.Float(1.5), action.DataActions[1].Value)
	assert.Equal(t, domain.String("NEXT_ACTIVE_DATE"), action.DataActions[2].Value)
	assert.Equal(t, "streak_updated", action.DataActions[3].Event)
	assert.Equal(t, map[string]any{"count": int64(3)}, action.DataActions[3].Data)
	assert.Nil(t, action.DataActions[3].Value)

	choice, _ := seq.Node("4")
	assert.Equal(t, "great", choice.Choices[0].StoredValue())
	assert.Equal(t, "Meh", choice.Choices[1].StoredValue())
}

func TestParse_YAML(t *testing.T) {
	doc := `
sequenceId: checkin
entryMessageId: b
messages:
  - id: a
    type: bot
    text: unused
  - id: b
    type: dataAction
    dataActions:
      - type: append
        key: user.badges
        value: [early, 3]
    nextMessageId: c
  - id: c
    type: image
    imageUrl: https://example.com/cup.png
`
	seq, err := NewParser().Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "checkin", seq.ID)
	assert.Equal(t, "b", seq.EntryID())

	b, _ := seq.Node("b")
	assert.Equal(t, domain.List{domain.String("early"), domain.Int(3)}, b.DataActions[0].Value)

	c, _ := seq.Node("c")
	assert.Equal(t, domain.KindImage, c.Kind)
	assert.Equal(t, "https://example.com/cup.png", c.ImageURL)
}

func TestParseNamed_FallbackID(t *testing.T) {
	seq, err := NewParser().ParseNamed("from-file", []byte(`{"messages":[{"id":"1","type":"bot"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "from-file", seq.ID)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		wantPath string
		wantMsg  string
	}{
		{
			name:    "Empty",
			doc:     "   ",
			wantMsg: "empty document",
		},
		{
			name:    "Missing sequence id",
			doc:     `{"messages":[{"id":"1","type":"bot"}]}`,
			wantMsg: "missing sequenceId",
		},
		{
			name:     "No messages",
			doc:      `{"sequenceId":"s","messages":[]}`,
			wantPath: "messages",
		},
		{
			name:     "Unknown type",
			doc:      `{"sequenceId":"s","messages":[{"id":"1","type":"video"}]}`,
			wantPath: "messages[0].type",
		},
		{
			name:     "Missing id",
			doc:      `{"sequenceId":"s","messages":[{"id":"1","type":"bot"},{"type":"bot"}]}`,
			wantPath: "messages[1].id",
		},
		{
			name:     "Duplicate ids",
			doc:      `{"sequenceId":"s","messages":[{"id":"1","type":"bot"},{"id":1,"type":"bot"}]}`,
			wantMsg:  "duplicate message id",
			wantPath: "messages",
		},
		{
			name:     "Route without target",
			doc:      `{"sequenceId":"s","messages":[{"id":"1","type":"autoroute","routes":[{"condition":"x"}]}]}`,
			wantPath: "messages[0].routes[0]",
		},
		{
			name:     "Choice without options",
			doc:      `{"sequenceId":"s","messages":[{"id":"1","type":"choice"}]}`,
			wantPath: "messages[0].choices",
		},
		{
			name:     "Unknown action",
			doc:      `{"sequenceId":"s","messages":[{"id":"1","type":"dataAction","dataActions":[{"type":"multiply","key":"a.b"}]}]}`,
			wantPath: "messages[0].dataActions[0]",
		},
		{
			name:     "Trigger without event",
			doc:      `{"sequenceId":"s","messages":[{"id":"1","type":"dataAction","dataActions":[{"type":"trigger"}]}]}`,
			wantPath: "messages[0].dataActions[0]",
			wantMsg:  "missing event",
		},
		{
			name:    "Broken JSON",
			doc:     `{"sequenceId": `,
			wantMsg: "failed to decode json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser().Parse([]byte(tt.doc))
			require.Error(t, err)

			var pe *domain.ParseError
			require.ErrorAs(t, err, &pe)
			if tt.wantPath != "" {
				assert.Equal(t, tt.wantPath, pe.Path)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}
