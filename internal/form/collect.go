package form

import "strings"

// Outcome is the result of one submission
type Outcome int

const (
	// OutcomeAccepted means the value was recorded and the cursor advanced
	OutcomeAccepted Outcome = iota
	// OutcomeRejected means the value was empty or blank; nothing changed
	OutcomeRejected
	// OutcomeIgnored means every field was already answered; nothing changed
	OutcomeIgnored
)

// String returns a string representation of the Outcome
func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// RejectionMessage is shown when a blank answer is submitted
const RejectionMessage = "Input cannot be empty. Please enter a valid response."

// State is the progress of one session through its field list.
// len(Answers) == Cursor and Completed == (Cursor == len(fields)) always hold.
type State struct {
	Cursor    int     `json:"cursor"`
	Answers   Answers `json:"answers"`
	Completed bool    `json:"completed"`
}

// NewState returns the initial state for fields. A list without fields
// starts out completed.
func NewState(fields FieldList) State {
	return State{
		Cursor:    0,
		Answers:   Answers{},
		Completed: len(fields) == 0,
	}
}

// Prompt returns the field whose turn it is
func (s State) Prompt(fields FieldList) (Field, bool) {
	if s.Completed || s.Cursor >= len(fields) {
		return Field{}, false
	}
	return fields[s.Cursor], true
}

// Submit offers value for the current field and returns the next state.
// The state passed in is never modified.
func Submit(fields FieldList, state State, value string) (State, Outcome) {
	if state.Completed || state.Cursor >= len(fields) {
		return state, OutcomeIgnored
	}
	if strings.TrimSpace(value) == "" {
		return state, OutcomeRejected
	}

	next := State{
		Cursor:  state.Cursor + 1,
		Answers: state.Answers.Clone(),
	}
	next.Answers[fields[state.Cursor].Name] = value
	next.Completed = next.Cursor == len(fields)

	return next, OutcomeAccepted
}

// Collector holds a field list together with its current state
type Collector struct {
	fields FieldList
	state  State
}

// NewCollector starts collecting answers for fields
func NewCollector(fields FieldList) *Collector {
	return &Collector{
		fields: fields,
		state:  NewState(fields),
	}
}

// Fields returns the field list being walked
func (c *Collector) Fields() FieldList {
	return c.fields
}

// State returns the current state
func (c *Collector) State() State {
	return c.state
}

// Prompt returns the field whose turn it is, if any
func (c *Collector) Prompt() (Field, bool) {
	return c.state.Prompt(c.fields)
}

// Submit offers value for the current field
func (c *Collector) Submit(value string) Outcome {
	next, outcome := Submit(c.fields, c.state, value)
	c.state = next
	return outcome
}

// Completed reports whether every field has been answered
func (c *Collector) Completed() bool {
	return c.state.Completed
}

// Progress returns the number of answered fields and the total
func (c *Collector) Progress() (answered, total int) {
	return c.state.Cursor, len(c.fields)
}
