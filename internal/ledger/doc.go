// Package ledger tracks generation spend as append-only entries.
//
// Every completed backend attempt appends one (batch, job, amount) entry —
// including attempts whose artifacts are later discarded. The Ledger
// interface is injected into the pipeline so billing consumers can swap in a
// persistent implementation; the in-memory accumulator ships as the default
// summing layer and test double.
package ledger
