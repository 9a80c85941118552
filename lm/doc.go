// Package lm defines the text-in/text-out LM Client contract used for both
// the root model driving the harness loop and the sub model answering
// bridge subcalls (§4.1). Provider adapters live in lm/anthropic and
// lm/openai; MockClient supports tests and examples without network access.
package lm
