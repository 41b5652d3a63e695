package fields

import (
	"html"
	"regexp"
	"strings"
)

const descriptionLimit = 500

var (
	lineBreakRe  = regexp.MustCompile(`(?i)<\s*(?:br\s*/?|/p|/div|/tr|/li)\s*>`)
	tagRe        = regexp.MustCompile(`<[^>]*>`)
	spaceRunRe   = regexp.MustCompile(`[ \t]+`)
	newlineRunRe = regexp.MustCompile(`\n{2,}`)

	phoneRe    = regexp.MustCompile(`(?i)RAMAL\s*:?\s*:?\s*(\d+)`)
	locationRe = regexp.MustCompile(`(?i)LOCALIZA[ÇC][ÃA]O\s*:?\s*(.+)`)
	requestRe  = regexp.MustCompile(`(?is)DESCRI[ÇC][ÃA]O DO PEDIDO\s*:?\s*(.+?)(?:\n\s*ARQUIVO|\z)`)
	fileRe     = regexp.MustCompile(`(?i)ARQUIVO\s*:?\s*(.+)`)
)

// CleanHTML strips tags and entities and collapses whitespace, keeping line
// structure (block-closing tags become newlines) so the description
// formatter can still find its labelled sections.
func CleanHTML(content string) string {
	s := lineBreakRe.ReplaceAllString(content, "\n")
	s = tagRe.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = spaceRunRe.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = newlineRunRe.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}

// ExtractPhone pulls the extension number that follows a RAMAL label out of
// the (raw or cleaned) ticket description. Returns "" when absent.
func ExtractPhone(raw string) string {
	m := phoneRe.FindStringSubmatch(CleanHTML(raw))
	if m == nil {
		return ""
	}
	return m[1]
}

// structuredMarkers flag form-generated descriptions.
var structuredMarkers = []string{"Dados do formulário", "LOCALIZAÇÃO", "RAMAL"}

// FormatDescription renders a ticket description for display.
//
// Form-generated descriptions (recognised by their labels) are reduced to
// the labelled fields, one per line, in a fixed order. Free-text
// descriptions are capped at 500 characters. The function is idempotent:
// formatting an already formatted description changes nothing.
func FormatDescription(raw string) string {
	clean := CleanHTML(raw)

	if isStructured(clean) {
		return formatStructured(clean)
	}

	runes := []rune(clean)
	if len(runes) <= descriptionLimit {
		return clean
	}
	return string(runes[:descriptionLimit-3]) + "..."
}

func isStructured(clean string) bool {
	for _, marker := range structuredMarkers {
		if strings.Contains(clean, marker) {
			return true
		}
	}
	return false
}

func formatStructured(clean string) string {
	var lines []string

	if m := locationRe.FindStringSubmatch(clean); m != nil {
		lines = append(lines, "LOCALIZAÇÃO: "+firstLine(m[1]))
	}
	if phone := phoneRe.FindStringSubmatch(clean); phone != nil {
		lines = append(lines, "RAMAL: "+phone[1])
	}
	if m := requestRe.FindStringSubmatch(clean); m != nil {
		// Inner newlines are flattened so re-formatting sees one line.
		text := strings.Join(strings.Fields(m[1]), " ")
		if text != "" {
			lines = append(lines, "DESCRIÇÃO DO PEDIDO: "+text)
		}
	}
	if m := fileRe.FindStringSubmatch(clean); m != nil {
		lines = append(lines, "ARQUIVO: "+firstLine(m[1]))
	}

	if len(lines) == 0 {
		return clean
	}
	return strings.Join(lines, "\n")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
