// Package replparse extracts REPL code blocks and terminal directives from
// root LM output (§4.2), plus the truncate helper used elsewhere to bound
// text before it is embedded in a follow-up prompt.
package replparse
