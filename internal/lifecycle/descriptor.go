package lifecycle

import (
	"fmt"

	"gxpcore.org/internal/record"
)

// Rule is one legal transition: From --Action--> To, gated by Permission.
type Rule struct {
	From       record.Status
	Action     record.Action
	To         record.Status
	Permission string
}

type transitionKey struct {
	from   record.Status
	action record.Action
}

// Descriptor declares a record type's state machine: its status alphabet,
// terminal statuses and the full transition table. Terminal statuses have no
// outgoing rules by construction, and self-loops are not modeled.
type Descriptor struct {
	Type record.Type

	states      map[record.Status]struct{}
	terminal    map[record.Status]struct{}
	transitions map[transitionKey]record.Status
	permissions map[record.Action]string
}

// NewDescriptor validates and builds a descriptor from declared rules.
func NewDescriptor(t record.Type, states, terminal []record.Status, rules []Rule) (*Descriptor, error) {
	d := &Descriptor{
		Type:        t,
		states:      make(map[record.Status]struct{}, len(states)),
		terminal:    make(map[record.Status]struct{}, len(terminal)),
		transitions: make(map[transitionKey]record.Status, len(rules)),
		permissions: make(map[record.Action]string, len(rules)),
	}
	for _, s := range states {
		d.states[s] = struct{}{}
	}
	for _, s := range terminal {
		if _, ok := d.states[s]; !ok {
			return nil, fmt.Errorf("lifecycle: %s: terminal status %q not in state set", t, s)
		}
		d.terminal[s] = struct{}{}
	}
	for _, r := range rules {
		if _, ok := d.states[r.From]; !ok {
			return nil, fmt.Errorf("lifecycle: %s: rule from unknown status %q", t, r.From)
		}
		if _, ok := d.states[r.To]; !ok {
			return nil, fmt.Errorf("lifecycle: %s: rule to unknown status %q", t, r.To)
		}
		if _, ok := d.terminal[r.From]; ok {
			return nil, fmt.Errorf("lifecycle: %s: terminal status %q has outgoing rule", t, r.From)
		}
		if r.From == r.To {
			return nil, fmt.Errorf("lifecycle: %s: self-loop on %q", t, r.From)
		}
		if r.Permission == "" {
			return nil, fmt.Errorf("lifecycle: %s: rule %q/%s has no permission", t, r.From, r.Action)
		}
		key := transitionKey{from: r.From, action: r.Action}
		if _, dup := d.transitions[key]; dup {
			return nil, fmt.Errorf("lifecycle: %s: duplicate rule %q/%s", t, r.From, r.Action)
		}
		if perm, ok := d.permissions[r.Action]; ok && perm != r.Permission {
			return nil, fmt.Errorf("lifecycle: %s: action %s mapped to two permissions", t, r.Action)
		}
		d.transitions[key] = r.To
		d.permissions[r.Action] = r.Permission
	}
	return d, nil
}

// HasState reports whether s belongs to the declared alphabet.
func (d *Descriptor) HasState(s record.Status) bool {
	_, ok := d.states[s]
	return ok
}

// IsTerminal reports whether s is a terminal status.
func (d *Descriptor) IsTerminal(s record.Status) bool {
	_, ok := d.terminal[s]
	return ok
}

// Next resolves the target status for (from, action) if the transition is legal.
func (d *Descriptor) Next(from record.Status, action record.Action) (record.Status, bool) {
	to, ok := d.transitions[transitionKey{from: from, action: action}]
	return to, ok
}

// Permission returns the permission code gating the action.
func (d *Descriptor) Permission(action record.Action) (string, bool) {
	perm, ok := d.permissions[action]
	return perm, ok
}

// ActionsFrom lists the actions legal from the given status.
func (d *Descriptor) ActionsFrom(from record.Status) []record.Action {
	var actions []record.Action
	for key := range d.transitions {
		if key.from == from {
			actions = append(actions, key.action)
		}
	}
	return actions
}
