package page

import "strings"

const (
	emailMarker      = "let EMAIL"
	tokenMarker      = "let UID2TOKEN"
	tokenPlaceholder = "UID2_TOKEN"
	nullPlaceholder  = "null"
)

// Render rewrites the marker lines of a template with the email and token.
// Each line gets the first rule that applies:
//
//	"let EMAIL"     first "null" becomes the quoted email
//	"let UID2TOKEN" first "null" becomes the quoted token
//	"UID2_TOKEN"    first occurrence becomes the raw token
//
// A marker only counts when it starts after column 0; a line that begins with
// the marker is left alone. Line order and count are preserved.
func Render(text, email, token string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		switch {
		case strings.Index(line, emailMarker) > 0:
			lines[i] = strings.Replace(line, nullPlaceholder, quote(email), 1)
		case strings.Index(line, tokenMarker) > 0:
			lines[i] = strings.Replace(line, nullPlaceholder, quote(token), 1)
		case strings.Index(line, tokenPlaceholder) > 0:
			lines[i] = strings.Replace(line, tokenPlaceholder, token, 1)
		}
	}
	return strings.Join(lines, "\n")
}

func quote(s string) string {
	return `"` + s + `"`
}
