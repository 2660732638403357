package cmdutil

import (
	"encoding/json"
	"io"
)

// WriteJSON writes v as JSON to w, followed by a newline. acichat-client
// streams one ACIP event per line this way; acichat-server's --show-config
// uses the pretty=true form to dump its resolved configuration for
// debugging before it starts listening.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
