// Package bridge implements the LM Bridge Server (§4.4): a loopback-only
// HTTP server exposing /llm_query and /llm_query_batched to the child
// interpreter process. Business-level failures (budget exhaustion, LM
// errors) never surface as 5xx; they are serialized into an "Error: ..."
// response string so the interpreter loop continues deterministically. A
// 5xx is reserved for infrastructure failures the interpreter cannot act
// on.
package bridge
