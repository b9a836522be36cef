package form

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// ReadValues returns the /V of every terminal field, keyed by fully
// qualified name. It parses with ledongthuc/pdf so that a filled document
// can be checked by a reader other than the one that wrote it.
func ReadValues(data []byte) (values map[string]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			values = nil
			err = newError(ErrorTypeParse, "failed to read back form values", fmt.Errorf("%v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, newError(ErrorTypeParse, "failed to open PDF for read-back", err)
	}

	values = make(map[string]string)
	fields := reader.Trailer().Key("Root").Key("AcroForm").Key("Fields")
	for i := 0; i < fields.Len(); i++ {
		collectValues(fields.Index(i), "", values, 0)
	}
	return values, nil
}

func collectValues(v pdf.Value, parentName string, values map[string]string, depth int) {
	if v.Kind() != pdf.Dict || depth > maxFieldDepth {
		return
	}

	name := v.Key("T").Text()
	fullName := name
	if parentName != "" && name != "" {
		fullName = parentName + "." + name
	} else if name == "" {
		fullName = parentName
	}

	kids := v.Key("Kids")
	hasChildFields := false
	for i := 0; i < kids.Len(); i++ {
		kid := kids.Index(i)
		if kid.Key("T").Kind() == pdf.String {
			hasChildFields = true
			collectValues(kid, fullName, values, depth+1)
		}
	}
	if hasChildFields || fullName == "" {
		return
	}

	val := v.Key("V")
	switch val.Kind() {
	case pdf.String:
		values[fullName] = val.Text()
	case pdf.Name:
		values[fullName] = val.Name()
	default:
		values[fullName] = ""
	}
}

// Verify checks that every answer reads back from data unchanged
func Verify(data []byte, answers Answers) error {
	values, err := ReadValues(data)
	if err != nil {
		return err
	}
	for name, want := range answers {
		got, ok := values[name]
		if !ok {
			return fmt.Errorf("field %q missing from filled document", name)
		}
		if got != want {
			return fmt.Errorf("field %q reads %q, expected %q", name, got, want)
		}
	}
	return nil
}
