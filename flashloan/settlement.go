package flashloan

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/lumafi/flasharb/types"
)

// State is a stage in the atomic settlement sequence.
type State int

const (
	StateBorrowed State = iota
	StateLeg1Swapped
	StateLeg2Swapped
	StateRepaid
	StateProfitDistributed
	StateReverted
)

func (s State) String() string {
	switch s {
	case StateBorrowed:
		return "borrowed"
	case StateLeg1Swapped:
		return "leg1_swapped"
	case StateLeg2Swapped:
		return "leg2_swapped"
	case StateRepaid:
		return "repaid"
	case StateProfitDistributed:
		return "profit_distributed"
	case StateReverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// Ledger is the balance store the settlement runs against. Snapshot and
// RevertTo provide the atomicity guarantee: any failure between borrow and
// repayment undoes every effect, including the loan itself.
type Ledger interface {
	BalanceOf(token, account common.Address) *big.Int
	Transfer(token, from, to common.Address, amount *big.Int) error
	Snapshot() int
	RevertTo(id int)
}

// Venue executes one swap instruction on behalf of trader and returns the
// amount of tokenOut received.
type Venue interface {
	ExecuteSwap(trader common.Address, instr types.SwapInstruction) (*big.Int, error)
}

// Receipt describes a completed (or reverted) settlement.
type Receipt struct {
	FinalState   State
	Profit       *big.Int
	Repaid       *big.Int
	RevertReason string
}

// Engine drives the borrow -> swap -> swap -> repay -> distribute sequence.
// It never completes with the loan underwater: if the post-leg-2 balance
// cannot cover principal plus premium, every effect is rolled back.
type Engine struct {
	mu         sync.Mutex
	ledger     Ledger
	venues     map[common.Address]Venue
	pool       common.Address
	account    common.Address
	owner      common.Address
	recipient  common.Address
	premiumBps int64
	logger     *zap.Logger
}

// NewEngine creates a settlement engine. pool lends the principal, account
// is the executing identity, owner may redirect profit distribution.
// Venues are keyed by router address.
func NewEngine(ledger Ledger, venues map[common.Address]Venue, pool, account, owner common.Address, premiumBps int64, logger *zap.Logger) *Engine {
	return &Engine{
		ledger:     ledger,
		venues:     venues,
		pool:       pool,
		account:    account,
		owner:      owner,
		premiumBps: premiumBps,
		logger:     logger,
	}
}

// SetRecipient redirects profit distribution. Only the owner may call.
func (e *Engine) SetRecipient(caller, recipient common.Address) error {
	if caller != e.owner {
		return fmt.Errorf("caller %s is not the owner", caller.Hex())
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.recipient = recipient
	return nil
}

// Settle runs the full sequence for one flash loan. Profit goes to the
// configured recipient, defaulting to initiator. The returned error is
// non-nil exactly when the receipt's final state is StateReverted.
func (e *Engine) Settle(initiator, asset common.Address, amount *big.Int, leg1, leg2 types.SwapInstruction) (*Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	recipient := e.recipient
	if recipient == (common.Address{}) {
		recipient = initiator
	}

	snapshot := e.ledger.Snapshot()
	preBalance := new(big.Int).Set(e.ledger.BalanceOf(asset, e.account))

	revert := func(state State, reason string) (*Receipt, error) {
		e.ledger.RevertTo(snapshot)
		e.logger.Warn("settlement reverted",
			zap.String("at_state", state.String()),
			zap.String("reason", reason))
		return &Receipt{FinalState: StateReverted, RevertReason: reason},
			fmt.Errorf("settlement reverted at %s: %s", state, reason)
	}

	// Borrow: the full principal must be available to leg 1.
	if err := e.ledger.Transfer(asset, e.pool, e.account, amount); err != nil {
		return revert(StateBorrowed, fmt.Sprintf("borrow failed: %v", err))
	}

	out1, err := e.executeLeg(leg1)
	if err != nil {
		return revert(StateBorrowed, err.Error())
	}
	e.logger.Debug("leg 1 swapped", zap.String("amount_out", out1.String()))

	out2, err := e.executeLeg(leg2)
	if err != nil {
		return revert(StateLeg1Swapped, err.Error())
	}
	e.logger.Debug("leg 2 swapped", zap.String("amount_out", out2.String()))

	// Repay: the non-negotiable invariant. The sequence never completes
	// with the loan underwater.
	owed := MinRepayment(amount, e.premiumBps)
	balance := e.ledger.BalanceOf(asset, e.account)
	if balance.Cmp(new(big.Int).Add(preBalance, owed)) < 0 {
		return revert(StateLeg2Swapped, fmt.Sprintf(
			"insufficient repayment: balance %s, owed %s", balance, owed))
	}
	if err := e.ledger.Transfer(asset, e.account, e.pool, owed); err != nil {
		return revert(StateLeg2Swapped, fmt.Sprintf("repayment failed: %v", err))
	}

	// Distribute: any surplus above repayment goes to the recipient.
	profit := new(big.Int).Sub(e.ledger.BalanceOf(asset, e.account), preBalance)
	if profit.Sign() > 0 {
		if err := e.ledger.Transfer(asset, e.account, recipient, profit); err != nil {
			return revert(StateRepaid, fmt.Sprintf("distribution failed: %v", err))
		}
	}

	e.logger.Info("settlement complete",
		zap.String("asset", asset.Hex()),
		zap.String("principal", amount.String()),
		zap.String("repaid", owed.String()),
		zap.String("profit", profit.String()),
		zap.String("recipient", recipient.Hex()))

	return &Receipt{
		FinalState: StateProfitDistributed,
		Profit:     profit,
		Repaid:     owed,
	}, nil
}

// executeLeg runs one swap and enforces its declared minimum. A short fill
// is not retained; it forces the whole sequence to revert.
func (e *Engine) executeLeg(instr types.SwapInstruction) (*big.Int, error) {
	params := instr.Params()
	venue, ok := e.venues[params.Router]
	if !ok {
		return nil, fmt.Errorf("no venue for router %s", params.Router.Hex())
	}

	out, err := venue.ExecuteSwap(e.account, instr)
	if err != nil {
		return nil, fmt.Errorf("%s swap failed: %v", instr.Kind(), err)
	}
	if out.Cmp(params.MinAmountOut) < 0 {
		return nil, fmt.Errorf("%s swap output %s below minimum %s",
			instr.Kind(), out, params.MinAmountOut)
	}

	return out, nil
}
