// Package form reads the text fields of an AcroForm, walks them one prompt at
// a time and writes the collected answers back into the document.
package form

import "fmt"

// Field is one fillable text field of a document
type Field struct {
	Name         string `json:"name"`
	Prompt       string `json:"prompt"`
	ObjectNumber int    `json:"object_number,omitempty"`
	Value        string `json:"value,omitempty"`
	MaxLen       int    `json:"max_len,omitempty"`
	Pages        []int  `json:"pages,omitempty"`
}

// FieldList is the ordered list of text fields. Order is the order the
// fields are met in the document's field tree and is never changed.
type FieldList []Field

// Len returns the number of fields
func (fl FieldList) Len() int {
	return len(fl)
}

// Names returns the field identifiers in order
func (fl FieldList) Names() []string {
	names := make([]string, len(fl))
	for i, f := range fl {
		names[i] = f.Name
	}
	return names
}

// Lookup finds a field by identifier
func (fl FieldList) Lookup(name string) (Field, bool) {
	for _, f := range fl {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// At returns the field at index i
func (fl FieldList) At(i int) (Field, error) {
	if i < 0 || i >= len(fl) {
		return Field{}, fmt.Errorf("field index %d out of range (%d fields)", i, len(fl))
	}
	return fl[i], nil
}

// Answers maps field identifiers to the values entered by the user
type Answers map[string]string

// Clone returns a copy that shares no storage with a
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Answer is one entry of an ordered answer listing
type Answer struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Ordered lists the answers in field order. Fields without an answer are skipped.
func (a Answers) Ordered(fields FieldList) []Answer {
	out := make([]Answer, 0, len(a))
	for _, f := range fields {
		if v, ok := a[f.Name]; ok {
			out = append(out, Answer{Name: f.Name, Value: v})
		}
	}
	return out
}
