/*
Package errors implements custom error interfaces for escrowd.

Error kinds are registered once, with a unique numeric code, and every
error created during runtime wraps one of the registered kinds. A failed
call can therefore always be classified with a stable, distinguishable
kind using the Is method, while the human readable message carries the
call specific details.
*/
package errors
