// Package state provides filesystem-backed storage implementations.
package state

import "github.com/user/claimline/internal/types"

// Compile-time interface compliance checks.
var _ types.ClaimRepository = (*ClaimStore)(nil)
var _ types.ClaimIDGenerator = (*Sequence)(nil)
var _ types.DocumentStore = (*FileDocumentStore)(nil)
var _ types.DocumentStore = (*S3DocumentStore)(nil)
var _ types.UsageLedger = (*UsageLedger)(nil)
