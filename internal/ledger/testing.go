package ledger

import "github.com/shopspring/decimal"

// SeedBalance overwrites an account balance directly when the store is the
// in-memory implementation. Test helper only.
func SeedBalance(s Store, id string, balance decimal.Decimal) {
	if mem, ok := s.(*memoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		account := mem.accounts[id]
		account.Balance = balance
		mem.accounts[id] = account
	}
}
