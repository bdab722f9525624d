package services

import (
	"errors"
	"html"
	"sort"
	"strings"
	"unicode/utf8"
)

// RequestURLVar is always available to the base template as %REQUEST_URL%.
const RequestURLVar = "REQUEST_URL"

var errInvalidUTF8 = errors.New("template is not valid UTF-8")

// TransformIndexHTML replaces %KEY% tokens in the base template with public client
// values. Values are HTML-escaped. Tokens with no matching key are left alone.
func TransformIndexHTML(requestURL, page string, vars map[string]string) (string, error) {
	if !utf8.ValidString(page) {
		return "", errInvalidUTF8
	}

	keys := make([]string, 0, len(vars)+1)
	for k := range vars {
		if k != RequestURLVar {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*(len(keys)+1))
	pairs = append(pairs, "%"+RequestURLVar+"%", html.EscapeString(requestURL))
	for _, k := range keys {
		pairs = append(pairs, "%"+k+"%", html.EscapeString(vars[k]))
	}

	return strings.NewReplacer(pairs...).Replace(page), nil
}
