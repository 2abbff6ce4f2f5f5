// Package password hashes and verifies account passwords.
//
// New hashes are argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Legacy bcrypt hashes ($2a$, $2b$, $2y$) are accepted by [Hasher.Verify] so accounts imported
// from older systems can still sign in; [Hasher.NeedsUpgrade] flags them (and argon2id hashes
// made with weaker parameters) so the engine can rehash after a successful login.
//
// This package never stores passwords and never logs them.
package password
