// Package ledger implements the delivery idempotency ledger.
//
// A claim row asserts exclusive ownership of one delivery attempt for one
// (event, celebration type, channel) key. The protocol is claim-before-send:
//
//  1. HasBeenClaimed: any claim for (event, type) exists → skip early.
//  2. per channel, ClaimExists → skip the channel.
//  3. InsertClaim(pending), guarded by the store's unique index. Losing a
//     concurrent insert yields AlreadyClaimed, never an error.
//  4. dispatch.
//  5. Finalize → success | failed.
//
// Step 3 is the only safety mechanism; steps 1 and 2 save work. A crash
// between 3 and 5 leaves a pending claim that keeps blocking the key until an
// operator resets it.
package ledger
