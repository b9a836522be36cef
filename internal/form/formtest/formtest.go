// Package formtest builds small AcroForm documents for tests.
package formtest

import (
	"fmt"
	"strings"
)

// Field describes one field of a generated document
type Field struct {
	Name    string
	Tooltip string
	// Type is the /FT tag. Empty means Tx for top-level fields and
	// inherited for children.
	Type     string
	Value    string
	Page     int
	Children []Field
}

// Document describes a generated document
type Document struct {
	Pages      int
	Fields     []Field
	NoAcroForm bool
}

// TextForm builds a one-page document with a text field per name/tooltip pair
func TextForm(nameTooltipPairs ...string) []byte {
	doc := Document{Pages: 1}
	for i := 0; i+1 < len(nameTooltipPairs); i += 2 {
		doc.Fields = append(doc.Fields, Field{
			Name:    nameTooltipPairs[i],
			Tooltip: nameTooltipPairs[i+1],
		})
	}
	return Build(doc)
}

// Blank builds a document with pages but no form
func Blank(pages int) []byte {
	return Build(Document{Pages: pages, NoAcroForm: true})
}

const (
	catalogObj  = 1
	pagesObj    = 2
	acroFormObj = 3
	fontObj     = 4
	firstPage   = 5
)

type builder struct {
	objects map[int]string
	next    int
	annots  map[int][]int
	pages   int
	row     map[int]int
}

// Build renders doc as a PDF with a classic xref table
func Build(doc Document) []byte {
	if doc.Pages < 1 {
		doc.Pages = 1
	}

	b := &builder{
		objects: make(map[int]string),
		next:    firstPage + 2*doc.Pages,
		annots:  make(map[int][]int),
		pages:   doc.Pages,
		row:     make(map[int]int),
	}

	var topLevel []int
	for _, f := range doc.Fields {
		if f.Type == "" {
			f.Type = "Tx"
		}
		topLevel = append(topLevel, b.addField(f, 0))
	}

	catalog := "<< /Type /Catalog /Pages 2 0 R"
	if !doc.NoAcroForm {
		catalog += " /AcroForm 3 0 R"
		b.objects[acroFormObj] = fmt.Sprintf(
			"<< /Fields [%s] /DA (/Helv 0 Tf 0 g) /DR << /Font << /Helv 4 0 R >> >> >>", refs(topLevel))
	} else {
		b.objects[acroFormObj] = "<< >>"
	}
	b.objects[catalogObj] = catalog + " >>"
	b.objects[fontObj] = "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>"

	var kids []int
	for p := 1; p <= doc.Pages; p++ {
		pageNr := firstPage + 2*(p-1)
		contentNr := pageNr + 1
		kids = append(kids, pageNr)

		content := fmt.Sprintf("BT /Helv 12 Tf 72 760 Td (Page %d) Tj ET\n", p)
		b.objects[contentNr] = fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(content), content)

		page := fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /Helv 4 0 R >> >> /Contents %d 0 R", contentNr)
		if annots := b.annots[p]; len(annots) > 0 {
			page += fmt.Sprintf(" /Annots [%s]", refs(annots))
		}
		b.objects[pageNr] = page + " >>"
	}
	b.objects[pagesObj] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", refs(kids), len(kids))

	return b.render()
}

// addField allocates f and its children and returns f's object number
func (b *builder) addField(f Field, parent int) int {
	nr := b.next
	b.next++

	var sb strings.Builder
	sb.WriteString("<<")
	if f.Name != "" {
		fmt.Fprintf(&sb, " /T %s", literal(f.Name))
	}
	if f.Type != "" {
		fmt.Fprintf(&sb, " /FT /%s", f.Type)
	}
	if f.Tooltip != "" {
		fmt.Fprintf(&sb, " /TU %s", literal(f.Tooltip))
	}
	if parent > 0 {
		fmt.Fprintf(&sb, " /Parent %d 0 R", parent)
	}

	if len(f.Children) > 0 {
		var kids []int
		for _, c := range f.Children {
			kids = append(kids, b.addField(c, nr))
		}
		fmt.Fprintf(&sb, " /Kids [%s] >>", refs(kids))
		b.objects[nr] = sb.String()
		return nr
	}

	page := f.Page
	if page < 1 || page > b.pages {
		page = 1
	}
	y := 700 - 30*b.row[page]
	b.row[page]++

	switch f.Type {
	case "Btn":
		state := "Off"
		if f.Value != "" {
			state = f.Value
		}
		fmt.Fprintf(&sb, " /V /%s /AS /%s", state, state)
	default:
		if f.Value != "" {
			fmt.Fprintf(&sb, " /V %s", literal(f.Value))
		}
		sb.WriteString(" /DA (/Helv 12 Tf 0 g)")
	}
	fmt.Fprintf(&sb, " /Type /Annot /Subtype /Widget /F 4 /Rect [72 %d 300 %d] /P %d 0 R >>",
		y, y+20, firstPage+2*(page-1))

	b.objects[nr] = sb.String()
	b.annots[page] = append(b.annots[page], nr)
	return nr
}

func (b *builder) render() []byte {
	size := b.next
	offsets := make([]int, size)

	var sb strings.Builder
	sb.WriteString("%PDF-1.7\n")
	for nr := 1; nr < size; nr++ {
		body, ok := b.objects[nr]
		if !ok {
			body = "null"
		}
		offsets[nr] = sb.Len()
		fmt.Fprintf(&sb, "%d 0 obj\n%s\nendobj\n", nr, body)
	}

	xrefStart := sb.Len()
	fmt.Fprintf(&sb, "xref\n0 %d\n0000000000 65535 f \n", size)
	for nr := 1; nr < size; nr++ {
		fmt.Fprintf(&sb, "%010d 00000 n \n", offsets[nr])
	}
	fmt.Fprintf(&sb, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", size, xrefStart)

	return []byte(sb.String())
}

func refs(nrs []int) string {
	parts := make([]string, len(nrs))
	for i, nr := range nrs {
		parts[i] = fmt.Sprintf("%d 0 R", nr)
	}
	return strings.Join(parts, " ")
}

func literal(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return "(" + r.Replace(s) + ")"
}
