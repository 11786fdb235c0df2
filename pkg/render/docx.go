package render

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Delimiters wrap placeholder names inside templates.
type Delimiters struct {
	Open  string
	Close string
}

var (
	Curly  = Delimiters{Open: "{", Close: "}"}
	Square = Delimiters{Open: "[", Close: "]"}
	Angle  = Delimiters{Open: "<<", Close: ">>"}
)

// DelimitersFor maps a catalog delimiter name to its tokens. Unknown names use
// curly braces.
func DelimitersFor(name string) Delimiters {
	switch strings.ToLower(name) {
	case "square":
		return Square
	case "angle":
		return Angle
	default:
		return Curly
	}
}

const (
	tagGap   = `(?:<[^>]+>)*`
	nameChar = `[A-Za-z0-9_]`
)

var (
	xmlTag  = regexp.MustCompile(`<[^>]+>`)
	tagPart = regexp.MustCompile(`^<(/?)([A-Za-z0-9_:.-]+)[^>]*?(/?)>$`)
)

// runMarkup lists the elements Word scatters between the pieces of a split
// placeholder. Anything else, such as revision marks or hyperlinks, keeps the
// placeholder unmerged.
var runMarkup = map[string]bool{
	"w:r":                     true,
	"w:t":                     true,
	"w:rPr":                   true,
	"w:proofErr":              true,
	"w:bookmarkStart":         true,
	"w:bookmarkEnd":           true,
	"w:lastRenderedPageBreak": true,
	"w:softHyphen":            true,
}

// DOCXRenderer fills placeholders in the text parts of a .docx package.
type DOCXRenderer struct {
	openXML    string
	closeXML   string
	split      *regexp.Regexp
	token      *regexp.Regexp
	wellFormed *regexp.Regexp
}

// NewDOCXRenderer constructs a renderer for one delimiter style.
func NewDOCXRenderer(delims Delimiters) *DOCXRenderer {
	openXML, closeXML := escapeXML(delims.Open), escapeXML(delims.Close)
	return &DOCXRenderer{
		openXML:    openXML,
		closeXML:   closeXML,
		split:      regexp.MustCompile(tokenPattern(delims.Open) + `(?:` + nameChar + `|<[^>]+>)+?` + tokenPattern(delims.Close)),
		token:      regexp.MustCompile(regexp.QuoteMeta(openXML) + nameChar + `+` + regexp.QuoteMeta(closeXML)),
		wellFormed: regexp.MustCompile(`^` + regexp.QuoteMeta(openXML) + nameChar + `+` + regexp.QuoteMeta(closeXML) + `$`),
	}
}

// Render returns a copy of the template with every placeholder replaced.
// Placeholders without a value are blanked.
func (r *DOCXRenderer) Render(template []byte, values map[string]string) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(template), int64(len(template)))
	if err != nil {
		return nil, fmt.Errorf("%w: read docx package: %v", ErrRender, err)
	}

	out := &bytes.Buffer{}
	writer := zip.NewWriter(out)
	for _, file := range reader.File {
		if err := r.copyPart(writer, file, values); err != nil {
			_ = writer.Close()
			return nil, fmt.Errorf("%w: %v", ErrRender, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%w: close docx package: %v", ErrRender, err)
	}
	return out.Bytes(), nil
}

func (r *DOCXRenderer) copyPart(writer *zip.Writer, file *zip.File, values map[string]string) error {
	part, err := writer.CreateHeader(&zip.FileHeader{Name: file.Name, Method: file.Method, Modified: file.Modified})
	if err != nil {
		return fmt.Errorf("create %s: %w", file.Name, err)
	}
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", file.Name, err)
	}
	defer src.Close()

	if !isTextPart(file.Name) {
		if _, err := io.Copy(part, src); err != nil {
			return fmt.Errorf("copy %s: %w", file.Name, err)
		}
		return nil
	}

	content, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", file.Name, err)
	}
	if _, err := io.WriteString(part, r.fill(string(content), values)); err != nil {
		return fmt.Errorf("write %s: %w", file.Name, err)
	}
	return nil
}

func (r *DOCXRenderer) fill(xml string, values map[string]string) string {
	xml = r.mergeSplitPlaceholders(xml)
	return r.token.ReplaceAllStringFunc(xml, func(token string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(token, r.openXML), r.closeXML)
		return textValue(values[name])
	})
}

// mergeSplitPlaceholders joins placeholders that Word split across several runs,
// keeping the formatting of the first run. Only run boundaries are removed; a
// placeholder spanning any other element is left as is.
func (r *DOCXRenderer) mergeSplitPlaceholders(xml string) string {
	return r.split.ReplaceAllStringFunc(xml, func(match string) string {
		if !strings.Contains(match, "<") || !onlyRunBoundaries(xmlTag.FindAllString(match, -1)) {
			return match
		}
		clean := xmlTag.ReplaceAllString(match, "")
		if !r.wellFormed.MatchString(clean) {
			return match
		}
		return clean
	})
}

// onlyRunBoundaries reports whether removing tags leaves the surrounding
// markup balanced: every tag is run markup, and the elements it closes are
// exactly the ones it reopens.
func onlyRunBoundaries(tags []string) bool {
	var opened, closed []string
	inProps := 0
	for _, tag := range tags {
		parts := tagPart.FindStringSubmatch(tag)
		if parts == nil {
			return false
		}
		closing, name, selfClosing := parts[1] == "/", parts[2], parts[3] == "/"
		if inProps == 0 && !runMarkup[name] {
			return false
		}
		switch {
		case selfClosing:
		case closing:
			if name == "w:rPr" {
				if inProps == 0 {
					return false
				}
				inProps--
			}
			if n := len(opened); n > 0 {
				if opened[n-1] != name {
					return false
				}
				opened = opened[:n-1]
				continue
			}
			closed = append(closed, name)
		default:
			if name == "w:rPr" {
				inProps++
			}
			opened = append(opened, name)
		}
	}
	if inProps != 0 || len(opened) != len(closed) {
		return false
	}
	for i, name := range closed {
		if opened[len(opened)-1-i] != name {
			return false
		}
	}
	return true
}

// tokenPattern matches the XML-escaped delimiter, allowing run boundaries
// between its characters.
func tokenPattern(token string) string {
	parts := make([]string, 0, len(token))
	for _, ch := range token {
		parts = append(parts, regexp.QuoteMeta(escapeXML(string(ch))))
	}
	return strings.Join(parts, tagGap)
}

func isTextPart(name string) bool {
	return name == "word/document.xml" ||
		strings.HasPrefix(name, "word/header") ||
		strings.HasPrefix(name, "word/footer") ||
		name == "word/footnotes.xml"
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}

// textValue escapes a value for a w:t element, turning newlines into breaks.
func textValue(value string) string {
	escaped := escapeXML(value)
	if !strings.Contains(escaped, "\n") {
		return escaped
	}
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	return strings.ReplaceAll(escaped, "\n", `</w:t><w:br/><w:t xml:space="preserve">`)
}
