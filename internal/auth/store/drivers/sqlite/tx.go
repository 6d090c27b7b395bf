package sqlite

import (
	"database/sql"

	"github.com/aussiebroadwan/mentorlink/internal/auth/store"
)

// Tx scopes repository calls to one transaction. It is only valid inside
// Store.WithTx.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Accounts() store.Accounts { return &accountsRepo{q: t.tx} }
