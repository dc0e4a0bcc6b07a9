// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth derives and checks the secrets that gate the polls API.

Nothing here touches the database. Admin keys and share slugs are HMACs of
the poll ID, so they can be recomputed on every request instead of stored:

	key := auth.GenerateAdminKey(pollID, cfg.AdminKeySalt)    // X-Admin-Key
	slug := auth.GenerateShareSlug(pollID, cfg.PollSlugSalt)  // base62, at most 11 chars

Rotating either salt invalidates every key or slug issued under it.

Voter tokens are the only random secrets. One is minted per claimed username
and stored on the username_claim row; it is what lets a voter replace a ballot:

	token, err := auth.GenerateVoterToken()

The /admin endpoints compare X-Site-Admin-Token against the configured value
with ValidateSiteAdminToken. An empty configuration yields ErrSiteAdminDisabled.

HashIP keeps a 64-bit salted digest of the client address on each ballot.
InputsHash fingerprints the sorted ballot IDs behind a result snapshot.
*/
package auth
