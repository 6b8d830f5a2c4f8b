package docx

import (
	"bytes"
	"encoding/xml"
	"sort"
	"strings"
)

// Fill replaces every {{KEY}} token in the main document part of a DOCX
// archive with the XML-escaped value for KEY. Tokens without a value are
// left in place, so markers such as DefaultMarker survive filling.
//
// Substitution works on the raw XML text: a token split across runs by the
// editor is not replaced.
func Fill(data []byte, values map[string]string) ([]byte, error) {
	pkg, err := Open(data)
	if err != nil {
		return nil, err
	}
	raw, _ := pkg.Part(DocumentPart)
	pkg.SetPart(DocumentPart, []byte(Replace(string(raw), values)))
	return pkg.Bytes()
}

// Replace substitutes {{KEY}} tokens in xmlText. Keys are applied in sorted
// order so the result does not depend on map iteration.
func Replace(xmlText string, values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{{"+k+"}}", escape(values[k]))
	}
	return strings.NewReplacer(pairs...).Replace(xmlText)
}

func escape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s)) // writes to a bytes.Buffer do not fail
	return buf.String()
}
