/*
Package session tracks coordination sessions: the named, time-stamped records
of in-flight multi-node operations.

Sessions follow a strict state machine:

	Planning -> InProgress -> Completed
	Planning -> InProgress -> PartiallyCompleted
	Planning -> InProgress -> Failed
	Planning -> Failed

Invalid transitions are rejected. When a session reaches a terminal status
its summary is handed to the metrics sink immediately; the session itself
stays queryable for a bounded retention window before the background pruning
loop removes it, so history is never silently lost.

Finalize backs the deadline-guarded cleanup path: whatever happens during
execution or cancellation, a created session always ends in one of the three
terminal states.
*/
package session
