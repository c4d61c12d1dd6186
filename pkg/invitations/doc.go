// Package invitations issues and redeems the eight character codes that let a
// new user join an existing tenant with a preassigned role.
//
// An invitation is redeemed by the signup flow in three steps: Validate the
// code, bind the user, then MarkUsed. The steps are not transactional; a crash
// after binding leaves the invitation redeemable again.
//
// Codes are only unique among unused invitations. Expired unused invitations
// are removed by PurgeExpired, which the janitor runs nightly.
package invitations
