package models

import "time"

// Member represents an account that can pay expenses and settle debts.
// The ID is the member's wallet-style identifier and is the only attribute
// the ledger core ever looks at.
type Member struct {
	// ID is the unique, opaque identifier for the member.
	ID string

	// CredentialHash is the bcrypt hash of the member's credential.
	// Used only by the auth layer to establish caller identity.
	CredentialHash string

	// CreatedAt is the Unix timestamp when the member was registered.
	CreatedAt int64
}

// NewMember creates a member with the given id and credential hash.
func NewMember(id, credentialHash string) *Member {
	return &Member{
		ID:             id,
		CredentialHash: credentialHash,
		CreatedAt:      time.Now().Unix(),
	}
}
