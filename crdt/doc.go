/*
Package crdt implements the state-based value containers used to merge
replicated fields: a last-writer-wins register, a last-writer-wins map with
independent per-field winners, and a multi-value register that keeps every
causally concurrent write.

Merge on every container is pure: it returns a newly allocated value and never
modifies either operand, and it is commutative, associative and idempotent.

CAUTION: LWWRegister.Update and LWWMap.Set mutate the receiver in place and
are not synchronized. Callers that write the same instance from several
goroutines must serialize access themselves, e.g. with the owning record's
mutex. Values returned by Merge may be shared read-only once returned.

Last-writer-wins ordering compares (timestamp, node id) lexicographically:
the later timestamp wins and, on equal timestamps, the node id that sorts
higher by byte-wise comparison wins. An identical tag never replaces the
stored value, so retransmitted writes are no-ops.
*/
package crdt
