/*
Package executor drives multi-node operation execution.

Given a session and a feasible allocation plan, the executor establishes a
secure channel through the external security coordinator, dispatches the
operation to every planned node concurrently under the operation's deadline,
and collects per-node outcomes. The status rules are strict: all nodes
succeed - Completed; some succeed - PartiallyCompleted; none succeed -
Failed.

Cancellation stops dispatch to not-yet-started nodes and marks nodes that
never confirmed as abandoned; in-flight calls are not forcibly aborted but
their results are classified once they return or time out. A
deadline-guarded finalization step guarantees the session always reaches a
terminal status.
*/
package executor
