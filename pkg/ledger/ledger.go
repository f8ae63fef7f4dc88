package ledger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Status tracks the lifecycle of an upload token.
//
// A token starts pending and leaves that state exactly once: either a
// successful upload redeems it, or the expiry scheduler marks it expired.
// The two outcomes are reported identically to uploaders but kept distinct
// here for the admin projection.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRedeemed Status = "redeemed"
	StatusExpired  Status = "expired"
)

// Used reports whether the token has left the pending state.
func (s Status) Used() bool {
	return s != StatusPending
}

var (
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenUsed     = errors.New("token already used")
	ErrTokenExpired  = errors.New("token expired")
)

// Record is one payment-redeemable upload credit.
//
// FileName, BlobID, BlobObjectID and Wallet are write-once: they are set
// only by the upload that redeemed this token.
type Record struct {
	Token        string     `json:"token"`
	CreatedAt    time.Time  `json:"createdAt"`
	Status       Status     `json:"status"`
	UsedAt       *time.Time `json:"usedAt,omitempty"`
	FileName     string     `json:"fileName,omitempty"`
	BlobID       string     `json:"blobId,omitempty"`
	BlobObjectID string     `json:"blobObjectId,omitempty"`
	Wallet       string     `json:"walletAddress,omitempty"`
}

// Stats are aggregate counts over the ledger for the admin projection.
type Stats struct {
	Total    int `json:"totalTransactions"`
	Used     int `json:"usedTransactions"`
	Unused   int `json:"unusedTransactions"`
	Redeemed int `json:"redeemedTransactions"`
	Expired  int `json:"expiredTransactions"`
}

// BlobInfo carries the write-once fields recorded after a successful
// remote store.
type BlobInfo struct {
	FileName     string
	BlobID       string
	BlobObjectID string
	Wallet       string
}

// Ledger is the registry of issued tokens and their redemption state.
//
// Implementations must serialize Redeem per token: two concurrent uploads
// presenting the same token must see exactly one succeed.
type Ledger interface {
	// Issue inserts a new pending record. The caller guarantees id
	// uniqueness; NewToken provides sufficient entropy for that.
	Issue(ctx context.Context, id string) error

	// Lookup returns the record for id, or ErrTokenNotFound.
	Lookup(ctx context.Context, id string) (*Record, error)

	// Redeem atomically transitions a pending token to redeemed.
	// Returns ErrTokenNotFound, ErrTokenUsed (prior redemption) or
	// ErrTokenExpired on failure.
	Redeem(ctx context.Context, id string) (*Record, error)

	// Expire marks a still-pending token expired. A token that was
	// already redeemed or expired is left untouched.
	Expire(ctx context.Context, id string) error

	// Attach records the blob fields onto an already-redeemed token.
	Attach(ctx context.Context, id string, info BlobInfo) error

	// All returns every record in insertion order.
	All(ctx context.Context) ([]*Record, error)

	// FindByBlobID resolves a blob identifier back to its record via
	// linear scan, or ErrTokenNotFound.
	FindByBlobID(ctx context.Context, blobID string) (*Record, error)

	// Stats returns aggregate counts over the ledger.
	Stats(ctx context.Context) (Stats, error)
}

// NewToken generates an unguessable token identifier: 32 bytes from
// crypto/rand, hex-encoded.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
