package event

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// MaxPayloadChars bounds the serialized size of an event payload (§3).
// Payloads larger than this are replaced by a {truncated, originalLength,
// preview} object before the event ever reaches a Sink.
const MaxPayloadChars = 4_000

// Bound serializes p and, if it exceeds MaxPayloadChars, returns a
// replacement payload of the form {truncated: true, originalLength,
// preview} instead. p is returned unchanged (same map) when it already
// fits.
//
// The replacement is assembled with sjson (schema-less JSON writes) and
// read back with gjson, rather than round-tripping through a Go struct —
// this is the one place in the harness where a payload's shape is not
// known ahead of time, so building it field-by-field is a better fit than
// encoding/json's static marshaling.
func Bound(p Payload) (Payload, error) {
	if p == nil {
		return nil, nil
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	rawStr := string(raw)
	if utf8.RuneCountInString(rawStr) <= MaxPayloadChars {
		return p, nil
	}

	preview := headRunes(rawStr, MaxPayloadChars/4)

	doc := "{}"
	doc, err = sjson.Set(doc, "truncated", true)
	if err != nil {
		return nil, err
	}
	doc, err = sjson.Set(doc, "originalLength", utf8.RuneCountInString(rawStr))
	if err != nil {
		return nil, err
	}
	doc, err = sjson.Set(doc, "preview", preview)
	if err != nil {
		return nil, err
	}

	out := Payload{}
	gjson.Parse(doc).ForEach(func(key, value gjson.Result) bool {
		out[key.String()] = value.Value()
		return true
	})

	return out, nil
}

func headRunes(s string, n int) string {
	if n <= 0 || n >= utf8.RuneCountInString(s) {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
