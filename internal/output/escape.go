package output

import (
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

var copyEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

// EscapeCopyValue formats one catalog cell for PostgreSQL COPY text format.
// nil is NULL (\N), dates are written as YYYY-MM-DD and array cells as JSON.
func EscapeCopyValue(val any) string {
	switch v := val.(type) {
	case nil:
		return `\N`
	case string:
		return copyEscaper.Replace(v)
	case time.Time:
		return v.Format(time.DateOnly)
	case []any:
		b, err := json.Marshal(v)
		if err != nil {
			return copyEscaper.Replace(fmt.Sprint(v))
		}
		return copyEscaper.Replace(string(b))
	case fmt.Stringer:
		return copyEscaper.Replace(v.String())
	}
	return copyEscaper.Replace(fmt.Sprint(val))
}
