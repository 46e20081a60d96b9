package event

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	eventWrapperModule = "event"
	eventWrapperName   = "EventWrapper"

	scheduledExecutionName = "RequestScheduledExecution"
)

// Packages holds the on-chain package addresses events may originate from.
type Packages struct {
	Primitives Address `json:"primitives" yaml:"primitives"`
	Interface  Address `json:"interface" yaml:"interface"`
	Workflow   Address `json:"workflow" yaml:"workflow"`
}

// Contains reports whether the address is one of the known packages.
func (p *Packages) Contains(address Address) bool {
	return address == p.Primitives || address == p.Interface || address == p.Workflow
}

// WrapperType returns the fully qualified EventWrapper type used to filter
// the event query.
func (p *Packages) WrapperType() string {
	return fmt.Sprintf("%s::%s::%s", p.Primitives, eventWrapperModule, eventWrapperName)
}

// structTag is a parsed on-chain type of the form
// address::module::name<param, ...>.
type structTag struct {
	Address Address
	Module  string
	Name    string
	Params  []string
}

// parseStructTag splits a type representation into its address, module,
// name and top-level type parameters.
func parseStructTag(repr string) (*structTag, error) {
	repr = strings.TrimSpace(repr)
	base := repr
	var params []string
	if open := strings.Index(repr, "<"); open != -1 {
		if !strings.HasSuffix(repr, ">") {
			return nil, fmt.Errorf("unbalanced type parameters in %q", repr)
		}
		base = repr[:open]
		var err error
		if params, err = splitTypeParams(repr[open+1 : len(repr)-1]); err != nil {
			return nil, fmt.Errorf("invalid type parameters in %q: %w", repr, err)
		}
	}
	parts := strings.Split(base, "::")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, fmt.Errorf("invalid type %q, expected address::module::name", repr)
	}
	return &structTag{
		Address: Address(parts[0]),
		Module:  parts[1],
		Name:    parts[2],
		Params:  params,
	}, nil
}

// splitTypeParams splits a comma-separated parameter list at nesting
// depth zero.
func splitTypeParams(list string) ([]string, error) {
	var params []string
	depth, start := 0, 0
	for i := 0; i < len(list); i++ {
		switch list[i] {
		case '<':
			depth++
		case '>':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced angle brackets")
			}
		case ',':
			if depth == 0 {
				params = append(params, strings.TrimSpace(list[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced angle brackets")
	}
	if tail := strings.TrimSpace(list[start:]); tail != "" {
		params = append(params, tail)
	}
	return params, nil
}

// Parser turns raw event nodes into typed events. Only events emitted by
// one of the known packages and wrapped in the primitives EventWrapper are
// accepted.
type Parser struct {
	packages Packages
	kinds    *Kinds
}

// NewParser returns a parser for events from the given packages.
func NewParser(packages Packages) *Parser {
	return &Parser{packages: packages, kinds: NewKinds()}
}

// Parse decodes a single event. The payload is the contents JSON object
// whose "event" key holds the wrapped event fields.
func (p *Parser) Parse(sequence uint64, txDigest string, packageID Address, typeRepr string, payload json.RawMessage) (*Event, error) {
	if !p.packages.Contains(packageID) {
		return nil, fmt.Errorf("event from unknown package %q", packageID)
	}
	wrapper, err := parseStructTag(typeRepr)
	if err != nil {
		return nil, err
	}
	if wrapper.Address != p.packages.Primitives || wrapper.Module != eventWrapperModule || wrapper.Name != eventWrapperName {
		return nil, fmt.Errorf("event type %q is not the primitives EventWrapper", typeRepr)
	}
	if len(wrapper.Params) == 0 {
		return nil, fmt.Errorf("EventWrapper in %q has no event type parameter", typeRepr)
	}
	inner, err := parseStructTag(wrapper.Params[0])
	if err != nil {
		return nil, err
	}
	name, err := normalizeEventName(inner)
	if err != nil {
		return nil, err
	}

	var contents struct {
		Event json.RawMessage `json:"event"`
	}
	if err := json.Unmarshal(payload, &contents); err != nil {
		return nil, fmt.Errorf("malformed event contents: %w", err)
	}
	if len(contents.Event) == 0 {
		return nil, fmt.Errorf("event contents missing the event payload")
	}
	data, err := p.kinds.New(name)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(contents.Event, data); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return &Event{
		TxDigest: txDigest,
		Sequence: sequence,
		Generics: inner.Params,
		Kind:     name,
		Data:     data,
	}, nil
}

// normalizeEventName maps the generic RequestScheduledExecution wrapper to
// the event name matching its payload type.
func normalizeEventName(inner *structTag) (string, error) {
	if inner.Name != scheduledExecutionName {
		return inner.Name, nil
	}
	if len(inner.Params) == 0 {
		return "", fmt.Errorf("%s is missing a type parameter", scheduledExecutionName)
	}
	payload, err := parseStructTag(inner.Params[0])
	if err != nil {
		return "", err
	}
	switch payload.Name {
	case "OccurrenceScheduledEvent":
		return "RequestScheduledOccurrenceEvent", nil
	case "RequestWalkExecutionEvent":
		return "RequestScheduledWalkEvent", nil
	}
	return "", fmt.Errorf("unsupported %s payload: %s", scheduledExecutionName, payload.Name)
}
