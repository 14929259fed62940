package event

import (
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// 阶段名称，与 escrow.Phase 的字符串形式一致
const (
	PhaseFunding   = "Funding"
	PhaseSucceeded = "Succeeded"
	PhaseFailed    = "Failed"
)

// State 由事件日志重建出的状态
type State struct {
	Phase          string
	TotalRaised    uint64
	HeldBalance    uint64
	TotalWithdrawn uint64
	TotalRefunded  uint64
	TokenSupply    *uint256.Int
	Tokens         map[common.Address]*uint256.Int
}

// Replay 按顺序回放事件，重建托管与份额账本状态
//
// 日志必须从序号 1 开始且连续；违反阶段规则的事件视为日志损坏。
func Replay(records []Record) (*State, error) {
	s := &State{
		Phase:       PhaseFunding,
		TokenSupply: uint256.NewInt(0),
		Tokens:      make(map[common.Address]*uint256.Int),
	}

	for i, r := range records {
		if r.Seq != uint64(i)+1 {
			return nil, fmt.Errorf("record %d: expected seq %d, got %d", i, i+1, r.Seq)
		}
		if err := s.apply(r); err != nil {
			return nil, fmt.Errorf("record %d (%s): %w", r.Seq, r.Name, err)
		}
	}
	return s, nil
}

func (s *State) apply(r Record) error {
	switch r.Name {
	case Contributed:
		if s.Phase != PhaseFunding {
			return fmt.Errorf("contribution in phase %s", s.Phase)
		}
		if r.Tokens == nil {
			return fmt.Errorf("missing minted tokens")
		}
		if s.TotalRaised > math.MaxUint64-r.Amount {
			return fmt.Errorf("total raised overflow")
		}
		s.TotalRaised += r.Amount
		s.HeldBalance += r.Amount
		s.TokenSupply.Add(s.TokenSupply, r.Tokens)
		s.credit(r.Account, r.Tokens)

	case FundingClosed:
		if s.Phase != PhaseFunding {
			return fmt.Errorf("close in phase %s", s.Phase)
		}
		if r.TotalRaised != s.TotalRaised {
			return fmt.Errorf("closed with raised %d, replayed %d", r.TotalRaised, s.TotalRaised)
		}
		s.Phase = PhaseSucceeded

	case Finalized:
		if s.Phase != PhaseFunding {
			return fmt.Errorf("finalize in phase %s", s.Phase)
		}
		if r.Outcome != PhaseSucceeded && r.Outcome != PhaseFailed {
			return fmt.Errorf("unknown outcome %q", r.Outcome)
		}
		if r.TotalRaised != s.TotalRaised {
			return fmt.Errorf("finalized with raised %d, replayed %d", r.TotalRaised, s.TotalRaised)
		}
		s.Phase = r.Outcome

	case Withdrawn:
		if s.Phase != PhaseSucceeded {
			return fmt.Errorf("withdrawal in phase %s", s.Phase)
		}
		if r.Amount > s.HeldBalance {
			return fmt.Errorf("withdrawal %d exceeds held %d", r.Amount, s.HeldBalance)
		}
		s.HeldBalance -= r.Amount
		s.TotalWithdrawn += r.Amount

	case Refunded:
		if s.Phase != PhaseFailed {
			return fmt.Errorf("refund in phase %s", s.Phase)
		}
		if r.Amount > s.HeldBalance {
			return fmt.Errorf("refund %d exceeds held %d", r.Amount, s.HeldBalance)
		}
		if r.Tokens == nil {
			return fmt.Errorf("missing burned tokens")
		}
		if err := s.debit(r.Account, r.Tokens); err != nil {
			return err
		}
		s.TokenSupply.Sub(s.TokenSupply, r.Tokens)
		s.HeldBalance -= r.Amount
		s.TotalRefunded += r.Amount

	default:
		return fmt.Errorf("unknown event")
	}
	return nil
}

func (s *State) credit(account common.Address, amount *uint256.Int) {
	bal, ok := s.Tokens[account]
	if !ok {
		bal = uint256.NewInt(0)
		s.Tokens[account] = bal
	}
	bal.Add(bal, amount)
}

func (s *State) debit(account common.Address, amount *uint256.Int) error {
	bal, ok := s.Tokens[account]
	if !ok || bal.Lt(amount) {
		return fmt.Errorf("burn exceeds replayed balance of %s", account.Hex())
	}
	bal.Sub(bal, amount)
	if bal.IsZero() {
		delete(s.Tokens, account)
	}
	return nil
}
