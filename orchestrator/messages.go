package orchestrator

import (
	"fmt"
	"strings"

	"github.com/hupe1980/rlmharness/core"
	"github.com/hupe1980/rlmharness/lm"
	"github.com/hupe1980/rlmharness/replparse"
)

const systemPrompt = `You are working inside a persistent code interpreter (REPL). You may call four helper functions from your code:

  llm_query(prompt, model=None)          - ask a sub-model a question, returns its text response
  llm_query_batched(prompts, model=None) - ask several questions at once, returns a list of responses in order
  FINAL_VAR(name)                        - declare that the answer is the value of the named variable
  SHOW_VARS()                            - list the variables currently defined in the namespace

Write your reasoning and code in fenced ` + "```repl" + ` blocks; the code executes against a persistent namespace that carries over between turns. When you are done, end your response with a line starting with FINAL_VAR(<name>) or FINAL(<answer>).`

func contextPreamble(meta core.ContextMeta) string {
	var b strings.Builder
	b.WriteString("The run has been given a context payload with the following shape:\n")
	fmt.Fprintf(&b, "- type: %s\n", meta.Type)
	fmt.Fprintf(&b, "- totalChars: %d\n", meta.TotalChars)
	fmt.Fprintf(&b, "- itemCount: %d\n", meta.ItemCount)
	if meta.Compacted != nil {
		fmt.Fprintf(&b, "- lengths: compacted over %d items (min=%d, max=%d, total=%d)\n",
			meta.Compacted.Count, meta.Compacted.Min, meta.Compacted.Max, meta.Compacted.Total)
	} else if len(meta.ItemLengths) > 0 {
		fmt.Fprintf(&b, "- lengths: %v\n", meta.ItemLengths)
	}
	b.WriteString("Inspect the `question` and `context` variables in the REPL before doing anything else.")
	return b.String()
}

func turnInstruction(iterationIndex int) string {
	lead := "Continue from prior execution outputs."
	if iterationIndex == 0 {
		lead = "Start by reading the question and context variables in the REPL."
	}
	return lead + " Write REPL code in a fenced ```repl block, or finish with FINAL(...) / FINAL_VAR(...)."
}

// executionMessage renders the post-exec transcript block appended after
// each executed code block (§4.8).
func executionMessage(code string, result core.ReplExecutionResult, maxOutputChars int) string {
	stdout := replparse.Truncate(result.Stdout, maxOutputChars)
	stderr := replparse.Truncate(result.Stderr, maxOutputChars)

	vars := "(none)"
	if len(result.VariableNames) > 0 {
		vars = strings.Join(result.VariableNames, ", ")
	}

	var b strings.Builder
	b.WriteString("Code executed:\n```python\n")
	b.WriteString(code)
	b.WriteString("\n```\n\nREPL output:\nSTDOUT:\n")
	b.WriteString(stdout)
	b.WriteString("\n\nSTDERR:\n")
	b.WriteString(stderr)
	b.WriteString("\n\nVariables now available: ")
	b.WriteString(vars)
	return b.String()
}

func finalDirectiveDemand() string {
	return "You have reached the iteration limit. Respond now with a terminal directive: FINAL(<answer>) or FINAL_VAR(<name>)."
}

// history accumulates the ordered message list passed to the root LM
// across iterations (§4.8).
type history struct {
	messages []lm.Message
}

func newHistory(meta core.ContextMeta) *history {
	h := &history{}
	h.messages = append(h.messages,
		lm.Message{Role: lm.RoleSystem, Text: systemPrompt},
		lm.Message{Role: lm.RoleAssistant, Text: contextPreamble(meta)},
	)
	return h
}

func (h *history) appendUser(text string) {
	h.messages = append(h.messages, lm.Message{Role: lm.RoleUser, Text: text})
}

func (h *history) appendAssistant(text string) {
	h.messages = append(h.messages, lm.Message{Role: lm.RoleAssistant, Text: text})
}

func (h *history) input() lm.Input {
	return lm.Input{Messages: append([]lm.Message(nil), h.messages...)}
}
