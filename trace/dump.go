package trace

import (
	"encoding/json"

	"github.com/tidwall/pretty"
)

// Dump renders r as indented, colorless JSON for operator inspection (log
// files, debug output). It never fails: encoding errors produce
// a JSON object carrying the error message instead of an empty result.
func Dump(r Record) []byte {
	raw, err := json.Marshal(r)
	if err != nil {
		raw, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	return pretty.Pretty(raw)
}
