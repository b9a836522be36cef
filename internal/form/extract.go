package form

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Field type tags of the AcroForm /FT entry
const (
	FieldTypeText      = "Tx"
	FieldTypeButton    = "Btn"
	FieldTypeChoice    = "Ch"
	FieldTypeSignature = "Sig"
)

// maxFieldDepth bounds the descent into /Kids
const maxFieldDepth = 32

// Extractor reads the text fields of a document using pdfcpu
type Extractor struct {
	debugMode bool
}

// NewExtractor creates a new field extractor
func NewExtractor(debugMode bool) *Extractor {
	return &Extractor{
		debugMode: debugMode,
	}
}

// ExtractFile extracts the text fields of the PDF at filePath
func (e *Extractor) ExtractFile(filePath string) (FieldList, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, newError(ErrorTypeParse, "failed to open PDF file", err).WithPath(filePath)
	}
	defer file.Close()

	fields, err := e.Extract(file)
	if fe, ok := err.(*Error); ok {
		return fields, fe.WithPath(filePath)
	}
	return fields, err
}

// ExtractBytes extracts the text fields of an in-memory PDF
func (e *Extractor) ExtractBytes(data []byte) (FieldList, error) {
	return e.Extract(bytes.NewReader(data))
}

// Extract returns the document's text fields in field-tree order.
// A document without text fields yields an empty list and an EmptyForm error.
func (e *Extractor) Extract(rs io.ReadSeeker) (FieldList, error) {
	ctx, err := readContext(rs)
	if err != nil {
		return FieldList{}, err
	}

	nodes, err := e.walkFields(ctx)
	if err != nil {
		return FieldList{}, err
	}

	fields := make(FieldList, 0, len(nodes))
	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n.fieldType != FieldTypeText {
			if e.debugMode {
				log.Printf("Skipping field %q (type: %s)", n.field.Name, n.fieldType)
			}
			continue
		}
		// The first field of a name owns the answer.
		if seen[n.field.Name] {
			if e.debugMode {
				log.Printf("Skipping duplicate field %q (object: %d)", n.field.Name, n.field.ObjectNumber)
			}
			continue
		}
		seen[n.field.Name] = true
		fields = append(fields, n.field)
	}

	if len(fields) == 0 {
		return fields, newError(ErrorTypeEmptyForm, "document has no fillable text fields", nil)
	}

	if e.debugMode {
		log.Printf("Extracted %d text field(s) out of %d", len(fields), len(nodes))
	}

	return fields, nil
}

// readContext parses a document with relaxed validation
func readContext(rs io.ReadSeeker) (*model.Context, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(rs, conf)
	if err != nil {
		return nil, newError(ErrorTypeParse, "failed to read PDF context", err)
	}

	if err := ctx.EnsurePageCount(); err != nil {
		return nil, newError(ErrorTypeParse, "failed to ensure page count", err)
	}

	return ctx, nil
}

// fieldNode is a terminal field of any type met during the walk
type fieldNode struct {
	field     Field
	fieldType string
	dict      types.Dict
	// fillID is the object-number chain pdfcpu uses as field id
	fillID string
	// shadowed is set for a field that is its own widget under a parent
	// carrying /FT Tx or /FT Btn. pdfcpu fills such widgets as part of the
	// parent and never reaches the field itself.
	shadowed bool
}

// fieldWalker carries the state of one walk over the field tree
type fieldWalker struct {
	ctx       *model.Context
	pages     map[int]int
	visited   map[int]bool
	nodes     []fieldNode
	debugMode bool
}

// walkFields visits every terminal field reachable from /AcroForm /Fields
func (e *Extractor) walkFields(ctx *model.Context) ([]fieldNode, error) {
	rootDict, err := ctx.Catalog()
	if err != nil {
		return nil, newError(ErrorTypeParse, "failed to get catalog", err)
	}

	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return nil, nil
	}

	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil {
		return nil, newError(ErrorTypeParse, "failed to dereference AcroForm", err)
	}
	if acroFormDict == nil {
		return nil, nil
	}

	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		return nil, nil
	}

	fieldsArray, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, newError(ErrorTypeParse, "failed to dereference Fields array", err)
	}

	w := &fieldWalker{
		ctx:       ctx,
		pages:     widgetPages(ctx, rootDict),
		visited:   make(map[int]bool),
		debugMode: e.debugMode,
	}

	for i, fieldObj := range fieldsArray {
		if err := w.visit(fieldObj, parentInfo{}, 0); err != nil && e.debugMode {
			log.Printf("Error processing field %d: %v", i, err)
		}
	}

	return w.nodes, nil
}

// parentInfo is what a field inherits from its parent
type parentInfo struct {
	name      string
	fieldType string
	fillID    string
	// ownType is the parent's own /FT entry, not an inherited one
	ownType string
}

// visit descends into one field dictionary
func (w *fieldWalker) visit(obj types.Object, parent parentInfo, depth int) error {
	if depth > maxFieldDepth {
		return fmt.Errorf("field tree deeper than %d levels", maxFieldDepth)
	}

	objNr := objectNumber(obj)
	if objNr > 0 {
		if w.visited[objNr] {
			return fmt.Errorf("field object %d visited twice", objNr)
		}
		w.visited[objNr] = true
	}

	fieldDict, err := w.ctx.DereferenceDict(obj)
	if err != nil {
		return fmt.Errorf("failed to dereference field: %w", err)
	}
	if fieldDict == nil {
		return nil
	}

	name := w.stringEntry(fieldDict, "T")
	fullName := name
	if parent.name != "" && name != "" {
		fullName = parent.name + "." + name
	} else if name == "" {
		fullName = parent.name
	}

	ownType := w.nameEntry(fieldDict, "FT")
	fieldType := parent.fieldType
	if ownType != "" {
		fieldType = ownType
	}

	fillID := parent.fillID
	if objNr > 0 {
		if fillID != "" {
			fillID += "."
		}
		fillID += strconv.Itoa(objNr)
	}

	// Kids carrying /T are child fields, the rest are widget annotations.
	var widgets []int
	if kidsObj, found := fieldDict.Find("Kids"); found {
		kids, err := w.ctx.DereferenceArray(kidsObj)
		if err != nil {
			return fmt.Errorf("failed to dereference Kids of %q: %w", fullName, err)
		}
		var childFields []types.Object
		for _, kid := range kids {
			kidDict, err := w.ctx.DereferenceDict(kid)
			if err != nil || kidDict == nil {
				continue
			}
			if _, hasName := kidDict.Find("T"); hasName {
				childFields = append(childFields, kid)
				continue
			}
			if nr := objectNumber(kid); nr > 0 {
				widgets = append(widgets, nr)
			}
		}
		if len(childFields) > 0 {
			self := parentInfo{name: fullName, fieldType: fieldType, fillID: fillID, ownType: ownType}
			for _, child := range childFields {
				if err := w.visit(child, self, depth+1); err != nil && w.debugMode {
					log.Printf("Error processing kid of %q: %v", fullName, err)
				}
			}
			return nil
		}
	}
	merged := len(widgets) == 0
	if merged && objNr > 0 {
		widgets = append(widgets, objNr)
	}

	if fullName == "" {
		fullName = fmt.Sprintf("field_%d", len(w.nodes))
	}

	field := Field{
		Name:         fullName,
		Prompt:       w.stringEntry(fieldDict, "TU"),
		ObjectNumber: objNr,
		Pages:        w.pagesOf(widgets),
	}
	if fieldType == FieldTypeText {
		field.Value = w.stringEntry(fieldDict, "V")
		if maxLenObj, found := fieldDict.Find("MaxLen"); found {
			if maxLen, err := w.ctx.DereferenceInteger(maxLenObj); err == nil && maxLen != nil {
				field.MaxLen = int(*maxLen)
			}
		}
	}

	if w.debugMode {
		log.Printf("Found field: %s (type: %s, object: %d)", field.Name, fieldType, objNr)
	}

	w.nodes = append(w.nodes, fieldNode{
		field:     field,
		fieldType: fieldType,
		dict:      fieldDict,
		fillID:    fillID,
		shadowed:  merged && (parent.ownType == FieldTypeText || parent.ownType == FieldTypeButton),
	})
	return nil
}

func (w *fieldWalker) stringEntry(d types.Dict, key string) string {
	obj, found := d.Find(key)
	if !found {
		return ""
	}
	s, err := w.ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil)
	if err != nil {
		return ""
	}
	return s
}

func (w *fieldWalker) nameEntry(d types.Dict, key string) string {
	obj, found := d.Find(key)
	if !found {
		return ""
	}
	n, err := w.ctx.DereferenceName(obj, model.V10, nil)
	if err != nil {
		return ""
	}
	return string(n)
}

// pagesOf maps widget object numbers to sorted, distinct page numbers
func (w *fieldWalker) pagesOf(widgets []int) []int {
	seen := make(map[int]bool)
	var pages []int
	for _, nr := range widgets {
		p, ok := w.pages[nr]
		if !ok || seen[p] {
			continue
		}
		seen[p] = true
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

// widgetPages walks the page tree and maps annotation object numbers to
// 1-based page numbers
func widgetPages(ctx *model.Context, rootDict types.Dict) map[int]int {
	result := make(map[int]int)

	pagesObj, found := rootDict.Find("Pages")
	if !found {
		return result
	}

	pageNr := 0
	visited := make(map[int]bool)

	var walk func(obj types.Object, depth int)
	walk = func(obj types.Object, depth int) {
		if depth > maxFieldDepth {
			return
		}
		if nr := objectNumber(obj); nr > 0 {
			if visited[nr] {
				return
			}
			visited[nr] = true
		}
		d, err := ctx.DereferenceDict(obj)
		if err != nil || d == nil {
			return
		}

		if kidsObj, found := d.Find("Kids"); found {
			kids, err := ctx.DereferenceArray(kidsObj)
			if err != nil {
				return
			}
			for _, kid := range kids {
				walk(kid, depth+1)
			}
			return
		}

		pageNr++
		annotsObj, found := d.Find("Annots")
		if !found {
			return
		}
		annots, err := ctx.DereferenceArray(annotsObj)
		if err != nil {
			return
		}
		for _, a := range annots {
			if nr := objectNumber(a); nr > 0 {
				result[nr] = pageNr
			}
		}
	}
	walk(pagesObj, 0)

	return result
}

// objectNumber returns the object number of an indirect reference, or 0
func objectNumber(obj types.Object) int {
	switch ref := obj.(type) {
	case types.IndirectRef:
		return int(ref.ObjectNumber)
	case *types.IndirectRef:
		if ref != nil {
			return int(ref.ObjectNumber)
		}
	}
	return 0
}
