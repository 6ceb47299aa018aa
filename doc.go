/*
Package issuance defines the common interfaces that tie together the
period-based token issuance engine: the key-value store abstractions that
every stateful component runs against, the Address type used to identify
accounts and allocation targets, and the BlockInfo structure that carries
the current period and logger into every operation.

The actual engines live under subpackages: x/allocator drives the
per-period distribution of an issuance budget across registered targets,
x/reservoir computes compounding reward accrual and reconciles it across
two settlement domains, and x/cash provides the token ledger both of them
mint through. The fixmath package holds the checked fixed-point arithmetic
used by the reservoir.
*/
package issuance
