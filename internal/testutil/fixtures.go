package testutil

import (
	"database/sql"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/bankmore/ledger/internal/domain"
)

var nextAccountNumber atomic.Int64

// SeedAccount inserts an account with a bcrypt credential hash. Account
// numbers and documents are generated sequentially so fixtures never collide
// on the unique constraints.
func SeedAccount(t *testing.T, db *sql.DB, name string, active bool) *domain.Account {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash credential: %v", err)
	}

	n := nextAccountNumber.Add(1)
	a := &domain.Account{
		ID:             uuid.New(),
		Number:         1000 + n,
		Document:       uuid.NewString()[:11],
		Name:           name,
		Active:         active,
		CredentialHash: string(hash),
		CredentialSalt: uuid.NewString(),
		CreatedAt:      time.Now().UTC(),
	}

	_, err = db.Exec(
		`INSERT INTO accounts (id, number, document, name, active, credential_hash, credential_salt, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.Number, a.Document, a.Name, a.Active, a.CredentialHash, a.CredentialSalt, a.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed account %s: %v", name, err)
	}
	return a
}

// SeedBalance gives an account an opening balance by inserting a credit
// movement; balances are always derived from movements, never set directly.
func SeedBalance(t *testing.T, db *sql.DB, accountID uuid.UUID, amount string) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO movements (id, account_id, kind, amount, created_at)
		 VALUES ($1, $2, 'credit', $3, $4)`,
		uuid.New(), accountID, decimal.RequireFromString(amount), time.Now().UTC(),
	)
	if err != nil {
		t.Fatalf("seed balance: %v", err)
	}
}

func GetBalance(t *testing.T, db *sql.DB, accountID uuid.UUID) decimal.Decimal {
	t.Helper()

	var balance decimal.Decimal
	err := db.QueryRow(
		`SELECT COALESCE(SUM(CASE kind WHEN 'credit' THEN amount ELSE -amount END), 0)
		 FROM movements WHERE account_id = $1`, accountID,
	).Scan(&balance)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	return balance
}

func CountMovements(t *testing.T, db *sql.DB, accountID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM movements WHERE account_id = $1`, accountID,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count movements: %v", err)
	}
	return count
}

func CountFees(t *testing.T, db *sql.DB, accountID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM fees WHERE account_id = $1`, accountID,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count fees: %v", err)
	}
	return count
}
