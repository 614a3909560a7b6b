// Package harness runs YAML ledger scenarios end to end.
//
// A scenario names its users, optionally presets records the program could
// only reach slowly (a counter at its maximum), then submits a list of
// instructions through the real runtime and checks each outcome.
//
// # Scenario Format
//
//	name: worked_example
//	description: "Profiles, posts and likes"
//	users: [alice, bob]
//	presets:
//	  - profile: { owner: alice, username: alice, last_post_id: 7 }
//	steps:
//	  - action: create_profile
//	    user: alice
//	    username: alice
//	  - action: create_post
//	    user: alice
//	    content: "hello"
//	    post_id: 1          # optional; defaults to last_post_id + 1
//	  - action: like_post
//	    user: bob
//	    author: alice
//	    post_id: 1
//	    expect: InitializationConflict
//	assertions:
//	  - type: profile
//	    owner: alice
//	    expect: { last_post_id: 1 }
//	  - type: like
//	    author: alice
//	    post_id: 1
//	    user: bob
//	    exists: true
//
// expect is "ok" (the default) or the error code the step must fail with.
//
// # Assertion Types
//
//   - profile: fields of the profile owned by owner
//   - post: fields of post post_id by author
//   - like: whether user's like of a post exists
//   - log_count: number of logged transactions, optionally by status
//   - trace_count: number of steps with an action and outcome
//
// # Deterministic Testing
//
// Keys are derived from user names and nonces are sequential per scenario,
// so transaction ids, sequence numbers and the final state hash are the same
// on every run. Snapshot renders the trace and state hash compared against
// golden files.
package harness
