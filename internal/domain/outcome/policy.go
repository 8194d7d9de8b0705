package outcome

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Action selects how a classified result reaches the client.
type Action string

// Policy actions.
const (
	// ActionAcknowledge answers 200 with a generated reference number.
	ActionAcknowledge Action = "acknowledge"
	// ActionRelay passes the upstream status and body through verbatim.
	ActionRelay Action = "relay"
	// ActionRelayJSON relays only a parseable JSON body, otherwise acknowledges.
	ActionRelayJSON Action = "relay_json"
)

// Sentinel errors for policy construction.
var (
	ErrUnknownAction = errors.New("unknown policy action")
	ErrInvalidRule   = errors.New("invalid status rule")
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionAcknowledge, ActionRelay, ActionRelayJSON:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

// Rule maps an inclusive status range to an action.
type Rule struct {
	From   int
	To     int
	Action Action
	Note   string
}

// Matches reports whether status falls in the rule's range.
func (r Rule) Matches(status int) bool {
	return status >= r.From && status <= r.To
}

// Decision is the action chosen for one result.
type Decision struct {
	Action Action
	Note   string
}

// Policy is an ordered status table; the first matching rule wins and
// unmatched statuses use the fallback action.
type Policy struct {
	rules    []Rule
	fallback Action
}

// DefaultRules returns the standard masking table.
func DefaultRules() []Rule {
	return []Rule{
		{From: 200, To: 299, Action: ActionRelayJSON},
		{From: http.StatusUnauthorized, To: http.StatusUnauthorized, Action: ActionAcknowledge},
		{From: http.StatusForbidden, To: http.StatusForbidden, Action: ActionAcknowledge},
		{From: http.StatusInternalServerError, To: http.StatusInternalServerError, Action: ActionAcknowledge, Note: NotePendingManual},
	}
}

// DefaultPolicy returns DefaultRules with a relay fallback.
func DefaultPolicy() *Policy {
	return &Policy{rules: DefaultRules(), fallback: ActionRelay}
}

// NewPolicy validates rules and builds a Policy.
func NewPolicy(rules []Rule, fallback Action) (*Policy, error) {
	if _, err := ParseAction(string(fallback)); err != nil {
		return nil, err
	}
	out := make([]Rule, 0, len(rules))
	for i, r := range rules {
		if r.From > r.To {
			return nil, fmt.Errorf("%w: rule %d range %d-%d", ErrInvalidRule, i, r.From, r.To)
		}
		if _, err := ParseAction(string(r.Action)); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		out = append(out, r)
	}
	return &Policy{rules: out, fallback: fallback}, nil
}

// Rules returns a copy of the table.
func (p *Policy) Rules() []Rule {
	return append([]Rule(nil), p.rules...)
}

// Decide picks the action for an upstream status.
func (p *Policy) Decide(status int) Decision {
	for _, r := range p.rules {
		if r.Matches(status) {
			return Decision{Action: r.Action, Note: r.Note}
		}
	}
	return Decision{Action: p.fallback}
}

// Resolve renders the client reply for r. The returned Decision carries the
// action actually applied, so a relay_json that fell back reports acknowledge.
func (p *Policy) Resolve(r Result, reference string) (Reply, Decision) {
	switch r.Kind {
	case KindLocalError:
		return jsonReply(http.StatusInternalServerError, ClientResponse{
			Success: false,
			Message: MessageLocalError,
			Error:   r.Err.Error(),
		}), Decision{}
	case KindUnreachable:
		d := Decision{Action: ActionAcknowledge}
		return acknowledge(reference, d.Note), d
	}

	d := p.Decide(r.Status)
	switch d.Action {
	case ActionRelayJSON:
		if len(r.Body) > 0 && json.Valid(r.Body) {
			return Reply{Status: r.Status, ContentType: "application/json", Body: r.Body}, d
		}
		d.Action = ActionAcknowledge
		return acknowledge(reference, d.Note), d
	case ActionRelay:
		ct := r.ContentType
		if ct == "" {
			ct = "text/plain; charset=utf-8"
			if json.Valid(r.Body) {
				ct = "application/json"
			}
		}
		return Reply{Status: r.Status, ContentType: ct, Body: r.Body}, d
	default:
		return acknowledge(reference, d.Note), d
	}
}

// Masked reports whether an upstream failure was hidden from the client.
func Masked(k Kind, d Decision) bool {
	return k != KindDelivered && k != KindLocalError && d.Action == ActionAcknowledge
}

func acknowledge(reference, note string) Reply {
	return jsonReply(http.StatusOK, ClientResponse{
		Success:         true,
		Message:         MessageAccepted,
		ReferenceNumber: reference,
		Note:            note,
	})
}

func jsonReply(status int, body ClientResponse) Reply {
	// ClientResponse holds only strings and a bool; Marshal cannot fail.
	raw, _ := json.Marshal(body)
	return Reply{Status: status, ContentType: "application/json", Body: raw}
}
