/*
Package sandbox runs untrusted scripts on top of vm.Context.

A Runtime owns one context and serializes access to it. Every execution is
bounded by a timeout, its completion value is dumped to plain Go data and
its console output is returned alongside. The globals require, process,
module and exports are removed, and timers are inert.

Pool keeps a fixed set of runtimes for one-shot executions and resets each
one on release, so no state survives between requests. Long-lived state
belongs to the session package, which holds a Runtime per session.

# Usage

	pool, err := sandbox.NewPool(sandbox.DefaultConfig(), 4)
	if err != nil {
		return err
	}
	defer pool.Close()

	result, err := pool.Execute(ctx, "[1, 2, 3].map(x => x * 2)")
*/
package sandbox
