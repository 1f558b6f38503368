package flashloan

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryLedger is an in-process Ledger with snapshot semantics. It backs
// the settlement tests and the end-to-end scenario harness.
type MemoryLedger struct {
	mu        sync.Mutex
	balances  map[common.Address]map[common.Address]*big.Int
	snapshots []map[common.Address]map[common.Address]*big.Int
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

// SetBalance seeds an account balance.
func (l *MemoryLedger) SetBalance(token, account common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[token] == nil {
		l.balances[token] = make(map[common.Address]*big.Int)
	}
	l.balances[token][account] = new(big.Int).Set(amount)
}

func (l *MemoryLedger) BalanceOf(token, account common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if bal, ok := l.balances[token][account]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

func (l *MemoryLedger) Transfer(token, from, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amount.Sign() < 0 {
		return fmt.Errorf("negative transfer amount")
	}

	fromBal := l.balances[token][from]
	if fromBal == nil || fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance: %s has %s, needs %s",
			from.Hex(), fromBal, amount)
	}

	// A self-transfer moves nothing; writing both sides would credit the
	// account twice.
	if from == to {
		return nil
	}

	if l.balances[token] == nil {
		l.balances[token] = make(map[common.Address]*big.Int)
	}
	toBal := l.balances[token][to]
	if toBal == nil {
		toBal = new(big.Int)
	}

	l.balances[token][from] = new(big.Int).Sub(fromBal, amount)
	l.balances[token][to] = new(big.Int).Add(toBal, amount)
	return nil
}

// Snapshot records the full balance state and returns its id.
func (l *MemoryLedger) Snapshot() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	copied := make(map[common.Address]map[common.Address]*big.Int, len(l.balances))
	for token, accounts := range l.balances {
		copied[token] = make(map[common.Address]*big.Int, len(accounts))
		for account, bal := range accounts {
			copied[token][account] = new(big.Int).Set(bal)
		}
	}

	l.snapshots = append(l.snapshots, copied)
	return len(l.snapshots) - 1
}

// RevertTo restores the balance state recorded at id, discarding it and
// any later snapshots.
func (l *MemoryLedger) RevertTo(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if id < 0 || id >= len(l.snapshots) {
		return
	}

	l.balances = l.snapshots[id]
	l.snapshots = l.snapshots[:id]
}
