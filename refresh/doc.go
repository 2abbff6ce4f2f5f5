// Package refresh is the refresh-token ledger: creation, rotation, revocation and replay
// detection for the opaque long-lived tokens exchanged for new access tokens.
//
// # State machine
//
// A token is Active until it is rotated (revoked with a replacement reference), revoked
// outright (logout, replay, invalid subject) or it expires. Expiry is detected lazily at use.
// Each rotation links the parent to its child, so the tokens of one session form a singly
// linked chain in which at most one token is Active.
//
// Presenting a token that is no longer Active because it was rotated or revoked is treated
// as theft: every still-Active descendant is revoked and a SuspiciousActivity event is
// recorded. A rotation that loses a race against a concurrent rotation of the same parent is
// handled the same way, so one parent never yields two live children.
//
// # Storage
//
// [RedisStore] keeps each token as a hash keyed by id, an index from the SHA-256 of the token
// value to the id, and a per-user id set. Rotation and revocation run as Lua scripts so the
// state check and the writes are one atomic step. Token values are never stored. Records are
// retained after revocation and expiry.
package refresh
