package compiler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Parser is responsible for converting raw sequence documents into a Sequence.
// Documents are JSON or YAML objects of the form
//
//	{"sequenceId": "...", "entryMessageId": "...", "messages": [...]}
type Parser struct{}

// NewParser creates a new parser instance.
func NewParser() *Parser {
	return &Parser{}
}

type rawDocument struct {
	SequenceID     string           `mapstructure:"sequenceId"`
	ID             string           `mapstructure:"id"`
	EntryMessageID string           `mapstructure:"entryMessageId"`
	Messages       []map[string]any `mapstructure:"messages"`
}

// rawNode mirrors domain.MessageNode except for data actions, whose values
// are decoded into domain.Value by hand.
type rawNode struct {
	ID            string             `mapstructure:"id"`
	Kind          string             `mapstructure:"type"`
	Text          string             `mapstructure:"text"`
	ContentKey    string             `mapstructure:"contentKey"`
	NextMessageID string             `mapstructure:"nextMessageId"`
	SequenceID    string             `mapstructure:"sequenceId"`
	Routes        []domain.RouteRule `mapstructure:"routes"`
	DataActions   []map[string]any   `mapstructure:"dataActions"`
	Choices       []domain.Choice    `mapstructure:"choices"`
	StoreKey      string             `mapstructure:"storeKey"`
	ImageURL      string             `mapstructure:"imageUrl"`
	Animation     *domain.Animation  `mapstructure:"animation"`
}

type rawAction struct {
	Kind  string         `mapstructure:"type"`
	Key   string         `mapstructure:"key"`
	Value any            `mapstructure:"value"`
	Event string         `mapstructure:"event"`
	Data  map[string]any `mapstructure:"data"`
}

// Parse decodes a JSON or YAML sequence document.
func (p *Parser) Parse(data []byte) (*domain.Sequence, error) {
	return p.ParseNamed("", data)
}

// ParseNamed is like Parse but uses fallbackID when the document does not
// carry its own sequenceId (e.g. the id comes from the file name).
func (p *Parser) ParseNamed(fallbackID string, data []byte) (*domain.Sequence, error) {
	raw, err := decodeDocument(data)
	if err != nil {
		return nil, &domain.ParseError{SequenceID: fallbackID, Err: err}
	}
	return p.ParseMap(fallbackID, raw)
}

// ParseMap builds a Sequence from an already decoded document.
func (p *Parser) ParseMap(fallbackID string, raw map[string]any) (*domain.Sequence, error) {
	var doc rawDocument
	if err := weakDecode(raw, &doc); err != nil {
		return nil, &domain.ParseError{SequenceID: fallbackID, Err: err}
	}

	id := doc.SequenceID
	if id == "" {
		id = doc.ID
	}
	if id == "" {
		id = fallbackID
	}
	if id == "" {
		return nil, &domain.ParseError{Err: errors.New("document missing sequenceId")}
	}
	if len(doc.Messages) == 0 {
		return nil, &domain.ParseError{SequenceID: id, Path: "messages", Err: errors.New("sequence has no messages")}
	}

	messages := make([]domain.MessageNode, 0, len(doc.Messages))
	for i, m := range doc.Messages {
		path := fmt.Sprintf("messages[%d]", i)
		node, err := parseNode(m, path)
		if err != nil {
			var pe *domain.ParseError
			if errors.As(err, &pe) {
				pe.SequenceID = id
				return nil, pe
			}
			return nil, &domain.ParseError{SequenceID: id, Path: path, Err: err}
		}
		messages = append(messages, node)
	}

	seq, err := domain.NewSequence(id, messages, doc.EntryMessageID)
	if err != nil {
		return nil, &domain.ParseError{SequenceID: id, Path: "messages", Err: err}
	}
	return seq, nil
}

func decodeDocument(data []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty document")
	}

	var raw map[string]any
	if trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode json: %w", err)
		}
		return raw, nil
	}
	if err := yaml.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode yaml: %w", err)
	}
	if raw == nil {
		return nil, errors.New("document is not an object")
	}
	return raw, nil
}

func parseNode(m map[string]any, path string) (domain.MessageNode, error) {
	var rn rawNode
	if err := weakDecode(m, &rn); err != nil {
		return domain.MessageNode{}, err
	}
	if rn.ID == "" {
		return domain.MessageNode{}, &domain.ParseError{Path: path + ".id", Err: errors.New("message missing id")}
	}

	kind := domain.MessageKind(rn.Kind)
	if !kind.Valid() {
		return domain.MessageNode{}, &domain.ParseError{Path: path + ".type", Err: fmt.Errorf("unknown message type %q", rn.Kind)}
	}

	node := domain.MessageNode{
		ID:            rn.ID,
		Kind:          kind,
		Text:          rn.Text,
		ContentKey:    rn.ContentKey,
		NextMessageID: rn.NextMessageID,
		SequenceID:    rn.SequenceID,
		Routes:        rn.Routes,
		Choices:       rn.Choices,
		StoreKey:      rn.StoreKey,
		ImageURL:      rn.ImageURL,
		Animation:     rn.Animation,
	}

	for i, r := range node.Routes {
		if r.NextMessageID == "" && r.SequenceID == "" {
			return domain.MessageNode{}, &domain.ParseError{
				Path: fmt.Sprintf("%s.routes[%d]", path, i),
				Err:  errors.New("route has no nextMessageId or sequenceId"),
			}
		}
	}

	if kind == domain.KindChoice && len(node.Choices) == 0 {
		return domain.MessageNode{}, &domain.ParseError{Path: path + ".choices", Err: errors.New("choice message has no choices")}
	}
	for i, c := range node.Choices {
		if c.Text == "" {
			return domain.MessageNode{}, &domain.ParseError{
				Path: fmt.Sprintf("%s.choices[%d]", path, i),
				Err:  errors.New("choice has no text"),
			}
		}
	}

	for i, a := range rn.DataActions {
		actionPath := fmt.Sprintf("%s.dataActions[%d]", path, i)
		action, err := parseAction(a)
		if err != nil {
			return domain.MessageNode{}, &domain.ParseError{Path: actionPath, Err: err}
		}
		node.DataActions = append(node.DataActions, action)
	}

	return node, nil
}

func parseAction(m map[string]any) (domain.DataActionSpec, error) {
	var ra rawAction
	if err := weakDecode(m, &ra); err != nil {
		return domain.DataActionSpec{}, err
	}

	kind := domain.ActionKind(ra.Kind)
	if !kind.Valid() {
		return domain.DataActionSpec{}, fmt.Errorf("unknown action type %q", ra.Kind)
	}

	spec := domain.DataActionSpec{
		Kind:  kind,
		Key:   ra.Key,
		Event: ra.Event,
	}
	if _, present := m["value"]; present {
		spec.Value = domain.FromAny(ra.Value)
	}
	if len(ra.Data) > 0 {
		if normalized, ok := domain.ToAny(domain.FromAny(ra.Data)).(map[string]any); ok {
			spec.Data = normalized
		}
	}

	switch {
	case kind == domain.ActionTrigger && spec.Event == "":
		return domain.DataActionSpec{}, errors.New("trigger action missing event")
	case kind != domain.ActionTrigger && spec.Key == "":
		return domain.DataActionSpec{}, fmt.Errorf("%s action missing key", kind)
	}
	return spec, nil
}

// weakDecode decodes loosely typed document maps: numeric ids become strings
// and "true"/"false" strings become booleans.
func weakDecode(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
