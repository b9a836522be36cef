// Package session keeps form filling sessions in memory and runs the
// extract, collect and write steps for the shells.
package session

import (
	"sync"
	"time"

	"github.com/a3tai/mcp-pdf-formfill/internal/form"
)

// Session is one document being filled in
type Session struct {
	mu sync.Mutex

	ID        string
	Source    string
	CreatedAt time.Time

	document  []byte
	fields    form.FieldList
	state     form.State
	emptyForm bool
}

func newSession(id, source string, document []byte, fields form.FieldList, emptyForm bool) *Session {
	return &Session{
		ID:        id,
		Source:    source,
		CreatedAt: time.Now(),
		document:  document,
		fields:    fields,
		state:     form.NewState(fields),
		emptyForm: emptyForm,
	}
}

// Status is a snapshot of a session
type Status struct {
	ID        string        `json:"id"`
	Source    string        `json:"source"`
	Cursor    int           `json:"cursor"`
	Total     int           `json:"total"`
	Completed bool          `json:"completed"`
	EmptyForm bool          `json:"empty_form,omitempty"`
	Field     string        `json:"field,omitempty"`
	Prompt    string        `json:"prompt,omitempty"`
	Answers   []form.Answer `json:"answers"`
}

// SubmitResult reports what happened to one answer
type SubmitResult struct {
	Outcome string `json:"outcome"`
	Message string `json:"message,omitempty"`
	Status
}

// status must be called with s.mu held
func (s *Session) status() *Status {
	st := &Status{
		ID:        s.ID,
		Source:    s.Source,
		Cursor:    s.state.Cursor,
		Total:     len(s.fields),
		Completed: s.state.Completed,
		EmptyForm: s.emptyForm,
		Answers:   s.state.Answers.Ordered(s.fields),
	}
	if field, ok := s.state.Prompt(s.fields); ok {
		st.Field = field.Name
		st.Prompt = field.Prompt
	}
	return st
}

// Status returns a snapshot of the session
func (s *Session) Status() *Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status()
}

// Fields returns the ordered text fields of the session's document
func (s *Session) Fields() form.FieldList {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fields
}

// submit runs one collector turn
func (s *Session) submit(value string) *SubmitResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, outcome := form.Submit(s.fields, s.state, value)
	s.state = next

	result := &SubmitResult{Outcome: outcome.String()}
	switch outcome {
	case form.OutcomeRejected:
		result.Message = form.RejectionMessage
	case form.OutcomeIgnored:
		result.Message = "form is already completed"
	}
	result.Status = *s.status()
	return result
}

// snapshot returns the document and a copy of the answers for writing
func (s *Session) snapshot() ([]byte, form.Answers, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.document, s.state.Answers.Clone(), s.state.Completed
}
