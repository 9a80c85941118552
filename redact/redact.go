package redact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"

	"github.com/hupe1980/rlmharness/core"
)

// Result is the outcome of redacting one piece of text: the text to use in
// place of the original (unchanged if no redaction was needed), and a
// record of whether redaction occurred.
type Result struct {
	Text       string
	Redacted   bool
	Original   int    // original length in runes, only meaningful if Redacted
	Digest     string // sha256 hex digest of the full original text, only if Redacted
}

// redactionMarkerPattern recognizes text already produced by Text, so
// re-redacting an already-redacted string is a no-op: without this, a
// marker embedding a 64-char digest can itself exceed threshold on a
// second pass and get redacted again around a digest of the marker
// rather than of the original text.
var redactionMarkerPattern = regexp.MustCompile(`\n\.\.\. \[redacted \d+ chars, sha256:[0-9a-f]{64}\] \.\.\.\n`)

// Text redacts s against threshold using headChars/tailChars from policy: if
// len(s) <= threshold it passes through unchanged; otherwise it returns
// head(headChars) + a marker naming the omitted character count and a
// SHA-256 digest of the full text + tail(tailChars).
func Text(s string, threshold, headChars, tailChars int) Result {
	if redactionMarkerPattern.MatchString(s) {
		return Result{Text: s}
	}

	runes := []rune(s)
	if len(runes) <= threshold {
		return Result{Text: s}
	}

	digest := sha256Hex(s)
	omitted := len(runes) - headChars - tailChars
	if omitted < 0 {
		omitted = 0
	}

	head := safeSlice(runes, 0, headChars)
	tail := safeSlice(runes, len(runes)-tailChars, len(runes))
	marker := fmt.Sprintf("\n... [redacted %d chars, sha256:%s] ...\n", omitted, digest)

	return Result{
		Text:     head + marker + tail,
		Redacted: true,
		Original: len(runes),
		Digest:   digest,
	}
}

// Prompt redacts an outbound LM prompt/message text using policy.MaxPromptChars.
func Prompt(s string, policy core.RedactionPolicy) Result {
	return Text(s, policy.MaxPromptChars, policy.HeadChars, policy.TailChars)
}

// ReplOutput redacts REPL stdout/stderr using policy.MaxReplOutputChars.
func ReplOutput(s string, policy core.RedactionPolicy) Result {
	return Text(s, policy.MaxReplOutputChars, policy.HeadChars, policy.TailChars)
}

// contextPreviewMarkerPattern recognizes text already produced by
// ContextPreview, mirroring redactionMarkerPattern's idempotence guard.
var contextPreviewMarkerPattern = regexp.MustCompile(`\n\.\.\. \[redacted \d+ chars, sha256:[0-9a-f]{64}\]$`)

// ContextPreview truncates a context preview head-only (no tail) with a
// digest, using policy.MaxContextPreviewChars.
func ContextPreview(s string, policy core.RedactionPolicy) Result {
	if contextPreviewMarkerPattern.MatchString(s) {
		return Result{Text: s}
	}

	runes := []rune(s)
	if len(runes) <= policy.MaxContextPreviewChars {
		return Result{Text: s}
	}

	digest := sha256Hex(s)
	head := safeSlice(runes, 0, policy.MaxContextPreviewChars)
	omitted := len(runes) - policy.MaxContextPreviewChars

	return Result{
		Text:     fmt.Sprintf("%s\n... [redacted %d chars, sha256:%s]", head, omitted, digest),
		Redacted: true,
		Original: len(runes),
		Digest:   digest,
	}
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func safeSlice(runes []rune, from, to int) string {
	if from < 0 {
		from = 0
	}
	if to > len(runes) {
		to = len(runes)
	}
	if from >= to {
		return ""
	}
	return string(runes[from:to])
}
