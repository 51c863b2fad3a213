package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account identity and activation state. The ledger core only ever mutates
// Active; everything else is owned by the account-opening collaborator.
// Credentials are stored opaque and never interpreted here.
type Account struct {
	ID             uuid.UUID
	Number         int64
	Document       string
	Name           string
	Active         bool
	CredentialHash string
	CredentialSalt string
	CreatedAt      time.Time
}
