package core

// DirectiveKind is the tag of a Final directive (§3).
type DirectiveKind string

const (
	// DirectiveFinal marks a FINAL(<answer>) directive; Value holds the
	// literal answer text.
	DirectiveFinal DirectiveKind = "final"
	// DirectiveFinalVar marks a FINAL_VAR(<name>) directive; Value holds
	// the (trimmed, unquoted) variable name to resolve via the Worker.
	DirectiveFinalVar DirectiveKind = "final_var"
	// DirectiveFallbackText marks a synthesized fallback outcome: the
	// iteration limit was reached and no directive was ever parsed, so the
	// raw fallback response is used verbatim as the answer.
	DirectiveFallbackText DirectiveKind = "fallback_text"
)

// Directive is the terminal marker that ends the root iteration loop.
type Directive struct {
	Kind  DirectiveKind
	Value string
}
