// Package password hashes and verifies administrator passwords and enforces
// the complexity policy.
//
// New hashes are argon2id in PHC form with unpadded base64 fields:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Stored hashes are dispatched by [Identify]. Padded argon2id fields and
// bcrypt hashes imported from the previous deployment still verify;
// [Hasher.NeedsUpgrade] reports them, together with argon2id hashes made
// with weaker parameters, so the caller can re-hash after the next
// successful login.
//
// This package never stores passwords and never logs them.
package password
