// Package resilience provides fault tolerance primitives for calls to
// unreliable external dependencies: per-attempt timeouts, retry with
// exponential backoff and jitter, circuit breakers, and a bounded
// registry that maps dependency names to breaker instances.
//
// The package is framework-agnostic. Callers supply an opaque operation
// and a stable context name identifying the logical dependency (for
// example "openai", "notion-export", "database"); the package never
// inspects request or response payloads.
//
// The layers compose through a Manager owned by the application's
// composition root:
//
//	mgr, err := resilience.NewManager(resilience.ManagerConfig{})
//	if err != nil {
//	    return err
//	}
//
//	summary, err := resilience.Do(ctx, mgr, "openai", resilience.AIProviderProfile(),
//	    func(ctx context.Context) (string, error) {
//	        return client.Summarize(ctx, article)
//	    })
//
// Each layer is independently optional: a call may request only a
// timeout, only retries, only a breaker, or the full stack. Errors are
// typed; see IsRetryable for the default transient-failure classifier.
package resilience
