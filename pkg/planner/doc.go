/*
Package planner turns an operation's resource requirements and a topology
snapshot into a per-node allocation plan.

Validation runs first: every target node must report the required capability
at or above the minimum availability threshold. A failing node makes the
whole plan infeasible, with the node and capability named in the result;
the planner never substitutes a different node.

Allocation is greedy proportional: each node's share of the operation's
total requirement is proportional to its reported available fraction, with
integer remainders handed to the highest-availability node (ties broken by
node ID). The same inputs therefore always yield byte-identical plans, which
callers rely on when re-planning after partial failures.
*/
package planner
