package model

import "errors"

// Claim length failures. They are detected before any rate gate runs, so
// rejecting a claim never consumes quota.
var (
	ErrClaimTooShort = errors.New("claim too short")
	ErrClaimTooLong  = errors.New("claim too long")
)
