package render

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"gopkg.in/yaml.v3"
)

var layoutPlaceholder = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// Layout describes a printable form. Text in elements may reference
// placeholders as {name}.
type Layout struct {
	Orientation string    `yaml:"orientation"`
	Size        string    `yaml:"size"`
	Margins     Margins   `yaml:"margins"`
	Font        Font      `yaml:"font"`
	Elements    []Element `yaml:"elements"`
}

// Margins in millimetres.
type Margins struct {
	Left  float64 `yaml:"left"`
	Top   float64 `yaml:"top"`
	Right float64 `yaml:"right"`
}

// Font selects a core PDF font.
type Font struct {
	Family string  `yaml:"family"`
	Size   float64 `yaml:"size"`
}

// Element is one block of the form.
type Element struct {
	Type    string   `yaml:"type"`
	Text    string   `yaml:"text"`
	Label   string   `yaml:"label"`
	Value   string   `yaml:"value"`
	Align   string   `yaml:"align"`
	Height  float64  `yaml:"height"`
	Headers []string `yaml:"headers"`
	Cells   []string `yaml:"cells"`
	Rows    int      `yaml:"rows"`
}

// ParseLayout decodes a YAML layout and applies defaults.
func ParseLayout(raw []byte) (*Layout, error) {
	var layout Layout
	if err := yaml.Unmarshal(raw, &layout); err != nil {
		return nil, fmt.Errorf("%w: decode layout: %v", ErrRender, err)
	}
	if layout.Orientation == "" {
		layout.Orientation = "P"
	}
	if layout.Size == "" {
		layout.Size = "A4"
	}
	if layout.Margins == (Margins{}) {
		layout.Margins = Margins{Left: 15, Top: 15, Right: 15}
	}
	if layout.Font.Family == "" {
		layout.Font.Family = "Arial"
	}
	if layout.Font.Size == 0 {
		layout.Font.Size = 11
	}
	return &layout, nil
}

// PDFRenderer draws layouts with gofpdf. Fixed PDF forms are not filled in
// place: each one is described by a YAML layout named "<template>.pdf.yaml"
// stored beside the DOCX templates, and the form is redrawn from that layout
// with the record values.
type PDFRenderer struct{}

// NewPDFRenderer constructs a PDF renderer.
func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

// Render draws the layout in raw with values substituted.
func (r *PDFRenderer) Render(raw []byte, values map[string]string) ([]byte, error) {
	layout, err := ParseLayout(raw)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New(layout.Orientation, "mm", layout.Size, "")
	pdf.SetMargins(layout.Margins.Left, layout.Margins.Top, layout.Margins.Right)
	pdf.SetAutoPageBreak(true, layout.Margins.Top)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	width, _ := pdf.GetPageSize()
	body := width - layout.Margins.Left - layout.Margins.Right
	lineHeight := layout.Font.Size * 0.55

	fill := func(text string) string {
		return tr(substitute(text, values))
	}

	for i, el := range layout.Elements {
		switch el.Type {
		case "title":
			pdf.SetFont(layout.Font.Family, "B", layout.Font.Size+3)
			pdf.CellFormat(0, 10, tr(strings.ToUpper(substitute(el.Text, values))), "", 1, alignOr(el.Align, "C"), false, 0, "")
			pdf.Ln(4)
		case "heading":
			pdf.SetFont(layout.Font.Family, "B", layout.Font.Size+1)
			pdf.CellFormat(0, 8, fill(el.Text), "B", 1, alignOr(el.Align, "L"), false, 0, "")
			pdf.Ln(2)
		case "text":
			pdf.SetFont(layout.Font.Family, "", layout.Font.Size)
			pdf.MultiCell(0, lineHeight, fill(el.Text), "", alignOr(el.Align, "J"), false)
			pdf.Ln(2)
		case "field":
			pdf.SetFont(layout.Font.Family, "B", layout.Font.Size)
			labelWidth := body * 0.35
			pdf.CellFormat(labelWidth, lineHeight+1, fill(el.Label), "", 0, "L", false, 0, "")
			pdf.SetFont(layout.Font.Family, "", layout.Font.Size)
			pdf.MultiCell(body-labelWidth, lineHeight+1, fill(el.Value), "B", "L", false)
		case "checkbox":
			pdf.SetFont(layout.Font.Family, "", layout.Font.Size)
			x, y := pdf.GetX(), pdf.GetY()
			pdf.Rect(x, y+1, 4, 4, "D")
			if strings.TrimSpace(substitute(el.Value, values)) != "" {
				pdf.SetFont(layout.Font.Family, "B", layout.Font.Size)
				pdf.Text(x+0.9, y+4.2, "X")
				pdf.SetFont(layout.Font.Family, "", layout.Font.Size)
			}
			pdf.SetX(x + 6)
			pdf.CellFormat(0, 6, fill(el.Label), "", 1, "L", false, 0, "")
		case "table":
			drawTable(pdf, layout, el, body, values, tr)
		case "spacer":
			pdf.Ln(heightOr(el.Height, 6))
		case "line":
			y := pdf.GetY() + 2
			pdf.Line(layout.Margins.Left, y, width-layout.Margins.Right, y)
			pdf.Ln(4)
		case "signature":
			pdf.Ln(heightOr(el.Height, 18))
			lineWidth := body * 0.45
			x := layout.Margins.Left + (body-lineWidth)/2
			y := pdf.GetY()
			pdf.Line(x, y, x+lineWidth, y)
			pdf.SetFont(layout.Font.Family, "", layout.Font.Size-1)
			pdf.CellFormat(0, 6, fill(el.Label), "", 1, "C", false, 0, "")
		default:
			return nil, fmt.Errorf("%w: element %d has unknown type %q", ErrRender, i, el.Type)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("%w: write pdf: %v", ErrRender, err)
	}
	return buf.Bytes(), nil
}

func drawTable(pdf *gofpdf.Fpdf, layout *Layout, el Element, body float64, values map[string]string, tr func(string) string) {
	columns := len(el.Headers)
	if columns == 0 {
		columns = len(el.Cells)
	}
	if columns == 0 {
		return
	}
	colWidth := body / float64(columns)

	if len(el.Headers) > 0 {
		pdf.SetFont(layout.Font.Family, "B", layout.Font.Size-1)
		for _, header := range el.Headers {
			pdf.CellFormat(colWidth, 7, tr(header), "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.SetFont(layout.Font.Family, "", layout.Font.Size-1)
	for n := 1; n <= el.Rows; n++ {
		for _, cell := range el.Cells {
			text := strings.ReplaceAll(cell, "{n}", strconv.Itoa(n))
			pdf.CellFormat(colWidth, 6, tr(substitute(text, values)), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(2)
}

// substitute replaces {name} markers; unknown names become "".
func substitute(text string, values map[string]string) string {
	return layoutPlaceholder.ReplaceAllStringFunc(text, func(token string) string {
		return values[token[1:len(token)-1]]
	})
}

func alignOr(align, fallback string) string {
	if align == "" {
		return fallback
	}
	return align
}

func heightOr(h, fallback float64) float64 {
	if h <= 0 {
		return fallback
	}
	return h
}
