package templates

import (
	"fmt"

	"github.com/a-h/templ"
)

func reportURL(date string) templ.SafeURL {
	return templ.SafeURL(fmt.Sprintf("/api/v1/report/%s/html", date))
}

func downloadURL(date, format string) templ.SafeURL {
	return templ.SafeURL(fmt.Sprintf("/api/v1/report/%s/download/%s", date, format))
}

func esc(s string) string {
	return templ.EscapeString(s)
}
