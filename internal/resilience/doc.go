// Package resilience puts retry, ordered fallback and per-backend circuit breaking in
// front of request/response backends such as LLM APIs.
//
// A Client is built once from a validated Config and then used exactly like a single
// backend. Internally every call walks the configured backends in order:
//
//   - classify maps a failure onto Retryable, Recoverable or NonRecoverable
//   - circuitbreaker tracks each backend and skips the ones that keep failing
//   - retry repeats Retryable failures on the same backend after a fixed delay
//   - failover moves to the next backend, or aborts on a NonRecoverable failure
//
// Usage Example:
//
//	client, err := resilience.New(resilience.Config[llm.Request, llm.Response]{
//	    Primary:   &resilience.Backend[llm.Request, llm.Response]{Name: "claude", Adapter: claude},
//	    Fallbacks: []resilience.Backend[llm.Request, llm.Response]{{Name: "openai", Adapter: openai}},
//	    Options:   resilience.DefaultOptions(),
//	})
//	if err != nil {
//	    return err
//	}
//	resp, err := client.Send(ctx, llm.Request{Prompt: "hello"})
package resilience
