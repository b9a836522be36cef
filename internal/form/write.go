package form

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Download naming for the filled document
const (
	FilledFileName = "filled_form.pdf"
	FilledMIMEType = "application/pdf"
)

// Writer fills the text fields of a document using pdfcpu
type Writer struct {
	extractor *Extractor
	debugMode bool
}

// NewWriter creates a new form writer
func NewWriter(debugMode bool) *Writer {
	return &Writer{
		extractor: NewExtractor(false),
		debugMode: debugMode,
	}
}

// fillGroup mirrors pdfcpu's JSON form data layout
type fillGroup struct {
	Forms []fillForm `json:"forms"`
}

type fillForm struct {
	TextFields []fillTextField `json:"textfield"`
}

type fillTextField struct {
	Pages  []int  `json:"pages"`
	ID     string `json:"id"`
	Name   string `json:"name"`
	Value  string `json:"value"`
	Locked bool   `json:"locked"`
}

// WriteBytes fills an in-memory document
func (w *Writer) WriteBytes(data []byte, answers Answers) ([]byte, error) {
	return w.Write(bytes.NewReader(data), answers)
}

// Write returns a copy of the document read from rs with every answered text
// field set to its answer. Answers naming anything but a text field of the
// document are not written. The result depends only on the document and the
// answers.
func (w *Writer) Write(rs io.ReadSeeker, answers Answers) ([]byte, error) {
	ctx, err := readContext(rs)
	if err != nil {
		return nil, err
	}

	nodes, err := w.extractor.walkFields(ctx)
	if err != nil {
		return nil, err
	}

	set, err := setShadowed(ctx, nodes, answers)
	if err != nil {
		return nil, err
	}

	payload := fillPayload(nodes, answers)
	if len(payload.Forms[0].TextFields) == 0 {
		if w.debugMode {
			log.Printf("No answers for pdfcpu to fill, serializing document with %d direct value(s)", set)
		}
		return serialize(ctx)
	}

	if set > 0 {
		// pdfcpu fills from a reader, so hand it the document as modified so far.
		modified, err := serialize(ctx)
		if err != nil {
			return nil, err
		}
		rs = bytes.NewReader(modified)
	} else if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, newError(ErrorTypeWrite, "failed to rewind document", err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, newError(ErrorTypeWrite, "failed to encode form data", err)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	var out bytes.Buffer
	if err := api.FillForm(rs, bytes.NewReader(data), &out, conf); err != nil {
		if !errors.Is(err, api.ErrNoFormFieldsAffected) {
			return nil, newError(ErrorTypeWrite, "failed to fill form", err)
		}
		// Every answer already matches the document.
		if _, err := rs.Seek(0, io.SeekStart); err != nil {
			return nil, newError(ErrorTypeWrite, "failed to rewind document", err)
		}
		ctx, err := readContext(rs)
		if err != nil {
			return nil, err
		}
		return serialize(ctx)
	}

	if w.debugMode {
		log.Printf("Filled %d text field(s), %d bytes written", len(payload.Forms[0].TextFields)+set, out.Len())
	}

	return out.Bytes(), nil
}

func serialize(ctx *model.Context) ([]byte, error) {
	var out bytes.Buffer
	if err := api.WriteContext(ctx, &out); err != nil {
		return nil, newError(ErrorTypeWrite, "failed to serialize document", err)
	}
	return out.Bytes(), nil
}

// setShadowed writes the answers of fields pdfcpu cannot address straight
// into their dictionaries and asks viewers to regenerate appearances.
// It returns the number of fields set.
func setShadowed(ctx *model.Context, nodes []fieldNode, answers Answers) (int, error) {
	set := 0
	for _, n := range nodes {
		if !n.shadowed || n.fieldType != FieldTypeText || n.dict == nil {
			continue
		}
		value, ok := answers[n.field.Name]
		if !ok {
			continue
		}
		s, err := types.EscapedUTF16String(value)
		if err != nil {
			return 0, newError(ErrorTypeWrite, fmt.Sprintf("failed to encode value of %q", n.field.Name), err)
		}
		n.dict["V"] = types.StringLiteral(*s)
		set++
	}
	if set == 0 {
		return 0, nil
	}

	rootDict, err := ctx.Catalog()
	if err != nil {
		return 0, newError(ErrorTypeWrite, "failed to get catalog", err)
	}
	if obj, found := rootDict.Find("AcroForm"); found {
		acroFormDict, err := ctx.DereferenceDict(obj)
		if err == nil && acroFormDict != nil {
			acroFormDict["NeedAppearances"] = types.Boolean(true)
		}
	}
	return set, nil
}

// fillPayload selects the answered text fields pdfcpu can address, in
// document order
func fillPayload(nodes []fieldNode, answers Answers) fillGroup {
	textFields := make([]fillTextField, 0, len(answers))
	for _, n := range nodes {
		if n.fieldType != FieldTypeText || n.shadowed {
			continue
		}
		value, ok := answers[n.field.Name]
		if !ok {
			continue
		}
		tf := fillTextField{
			Pages: n.field.Pages,
			ID:    n.fillID,
			Name:  n.field.Name,
			Value: value,
		}
		if tf.Pages == nil {
			tf.Pages = []int{}
		}
		textFields = append(textFields, tf)
	}
	return fillGroup{Forms: []fillForm{{TextFields: textFields}}}
}
