/*
Package funds is a reference implementation of the asset transfer
capabilities the escrow engine depends on. It keeps native and token
balances as wallet records in the same KVStore the engine writes, so
transfers participate in the engine's per-call atomicity.

Deployments with their own custody systems implement the mover interfaces
directly and ignore this package.
*/
package funds
