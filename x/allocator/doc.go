/*
Package allocator implements period-based distribution of a token issuance
budget across a dynamic set of registered targets.

The Registry owns the target list. Every target holds a per-period rate of
one of two kinds: an allocator rate, funded by minting from the issuance
budget, or a self rate, minted by the target itself and tracked for
accounting only. A distinguished default target, always stored at position
zero, absorbs whatever part of the budget is not explicitly allocated, so
that the sum of all allocator rates is the full issuance budget at all
times.

The Allocator drives distribution: it computes the periods elapsed since
the last distribution and either pays every target its full rate (with the
default target receiving the remainder) or, when accrued funding is not
sufficient, degrades all non-default targets proportionally. While an
external pause condition holds, no periods accrue and self-minted amounts
are queued for later reconciliation.

Targets are notified of rate changes at most once per period through a
synchronous callback. Callbacks run inside registry mutations and are
guarded against reentrant registry access.
*/
package allocator
