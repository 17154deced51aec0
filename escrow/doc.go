/*
Package escrow implements a deterministic escrow settlement engine.

A transaction holds a party's deposited value, native or token, under a
commitment derived from the deal's terms. Funds leave the escrow only when
a quorum of the authorized signers (buyer, seller and an optional
moderator) signs off on a specific distribution, or when the timelock
fallback lets the seller claim after the configured timeout.

The Controller is the single caller-facing surface. All mutating
operations run on a store cache-wrap that is written only on full success,
so a failed call never leaves partial state behind.
*/
package escrow
