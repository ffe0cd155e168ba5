package site

import (
	"html/template"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/quillscribe/portal/internal/model"
)

// unitless lists theme keys rendered without a px suffix.
var unitless = map[string]bool{
	"lineHeight": true,
}

// ThemeVariables renders theme settings as CSS custom properties, e.g.
// header.logoSize becomes "--header-logo-size: 40px;". Only letter keys are
// emitted.
func ThemeVariables(theme model.ThemeSettings) template.CSS {
	sections := make([]string, 0, len(theme))
	for section := range theme {
		sections = append(sections, section)
	}
	sort.Strings(sections)

	var b strings.Builder
	for _, section := range sections {
		if !isIdent(section) {
			continue
		}
		values := theme[section]
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			if !isIdent(key) {
				continue
			}
			b.WriteString("--")
			b.WriteString(kebab(section))
			b.WriteByte('-')
			b.WriteString(kebab(key))
			b.WriteString(": ")
			b.WriteString(strconv.FormatFloat(values[key], 'f', -1, 64))
			if !unitless[key] {
				b.WriteString("px")
			}
			b.WriteString(";")
		}
	}
	return template.CSS(b.String())
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// kebab converts camelCase to kebab-case.
func kebab(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
