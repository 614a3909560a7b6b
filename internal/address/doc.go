// Package address derives deterministic account addresses for the social
// ledger program.
//
// Every record the program owns lives at an address computed from a fixed
// set of seeds and the program id. There is no index table: the hash IS the
// lookup, and the runtime's refusal to initialise an address twice is what
// makes "one profile per owner" and "one like per (post, user)" hold.
//
// # Derivation
//
//	addr = SHA256(seed_0 || ... || seed_n || program_id || "ProgramDerivedAddress")
//
// A digest that decodes as a valid ed25519 point is rejected, since an
// on-curve address could have a private key. FindProgramAddress appends a
// single disambiguation byte (the bump) as the last seed and scans it from
// 255 downward until the digest falls off the curve.
//
// # Seed conventions
//
//	profile: "profile", owner
//	post:    "post", author, le64(post_id)
//	like:    "like", post address, user
//
// These must not change: clients derive the same addresses off-ledger.
package address
