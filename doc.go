/*
Package escrowd provides the shared kernel for the escrowd settlement
engine: party identities (Condition and Address), second-precision time
values and the Clock collaborator.

The escrow domain logic lives in the escrow package. Persisted state is
written through the store package. Recoverable signatures are implemented
in the crypto package.
*/
package escrowd
