// Package resilience provides the admission and retry primitives that sit
// between inbound bot messages and slow upstream APIs.
//
// # Patterns
//
//   - AdmissionController: per-identity sliding-window limiter. Commands and
//     menu selections are exempt. Denied requests are not recorded.
//
//   - Retry: bounded exponential backoff. Exhaustion is reported as an absent
//     Outcome, never as a panic.
//
//   - Bulkhead: limits concurrent upstream calls.
//
//   - Executor: composes bulkhead, a process-wide rate limit, retry and a
//     per-attempt timeout.
//
// # Usage
//
//	limiter, err := resilience.NewAdmissionController(resilience.DefaultAdmissionConfig())
//	if err != nil {
//	    return err
//	}
//	if !limiter.Admit(senderID) {
//	    return notifyThrottled(ctx, senderID)
//	}
//
//	retry, err := resilience.NewRetry(resilience.DefaultRetryConfig())
//	if err != nil {
//	    return err
//	}
//	exec := resilience.NewExecutor(
//	    resilience.WithRetry(retry),
//	    resilience.WithTimeout(30*time.Second),
//	)
//
//	out := resilience.Run(ctx, exec, func(ctx context.Context) (string, error) {
//	    return completer.Complete(ctx, prompt)
//	})
//	answer, ok := out.Get()
//	if !ok {
//	    return replyError(ctx)
//	}
package resilience
