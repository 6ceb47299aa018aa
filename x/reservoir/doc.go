/*
Package reservoir implements compounding reward accrual and its split
across two settlement domains.

The Reservoir snapshots reward growth since the last update using a
fixed-point compounding rate and mints the amount due for the upcoming
interval, corrected for the drift between the planned and the actual
accrual when a drip happens earlier or later than its nominal schedule.
The share of rewards routed to the second domain is escrowed and handed
to an external message relay as a payload carrying a strictly increasing
nonce. The Counterpart applies those payloads on the other domain in
exact nonce order; the relay may retry, it may never reorder.
*/
package reservoir
