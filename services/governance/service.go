// Package governance 基于份额代币投票权的提案表决
//
// 治理模块只读取份额代币账本的投票权接口，对托管没有任何写权限。
// 每个提案在创建时固定一个快照时间点，投票权一律按该时间点读取，
// 因此表决进行中的铸造/销毁不会追溯改变已投出的票。
package governance

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"github.com/weisyn/campaign-escrow-go/services"
	"github.com/weisyn/campaign-escrow-go/types"
)

var (
	ErrBelowThreshold   = types.Sentinel(types.ErrorCodeBelowThreshold)
	ErrProposalExists   = types.Sentinel(types.ErrorCodeProposalExists)
	ErrUnknownProposal  = types.Sentinel(types.ErrorCodeUnknownProposal)
	ErrProposalInactive = types.Sentinel(types.ErrorCodeProposalInactive)
	ErrAlreadyVoted     = types.Sentinel(types.ErrorCodeAlreadyVoted)
	ErrInvalidSupport   = types.Sentinel(types.ErrorCodeInvalidSupport)
	ErrInvalidParams    = types.Sentinel(types.ErrorCodeInvalidParams)
)

// VotesReader 投票权只读接口（由 token.Ledger 实现）
type VotesReader interface {
	Votes(account common.Address) *uint256.Int
	PastVotes(account common.Address, t time.Time) (*uint256.Int, error)
	PastTotalSupply(t time.Time) (*uint256.Int, error)
	Clock() time.Time
}

// Support 投票选项
type Support uint8

const (
	Against Support = iota
	For
	Abstain
)

func (s Support) String() string {
	switch s {
	case Against:
		return "Against"
	case For:
		return "For"
	case Abstain:
		return "Abstain"
	default:
		return "Unknown"
	}
}

// State 提案状态
type State uint8

const (
	StatePending State = iota
	StateActive
	StateDefeated
	StateSucceeded
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateActive:
		return "Active"
	case StateDefeated:
		return "Defeated"
	case StateSucceeded:
		return "Succeeded"
	default:
		return "Unknown"
	}
}

// Proposal 提案
type Proposal struct {
	ID          common.Hash
	Proposer    common.Address
	Description string
	Snapshot    time.Time // 投票权读取时间点；晚于该时间点才开始投票
	Deadline    time.Time // 投票截止（含）
}

// Tally 计票
type Tally struct {
	Against *uint256.Int
	For     *uint256.Int
	Abstain *uint256.Int
}

type proposalState struct {
	Proposal
	tally  Tally
	voters map[common.Address]Support
}

// Governor 提案与表决
type Governor struct {
	mu        sync.RWMutex
	votes     VotesReader
	params    services.GovernanceConfig
	proposals map[common.Hash]*proposalState
	logger    zerolog.Logger
}

// Option Governor 选项
type Option func(*Governor)

// WithLogger 设置日志器
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Governor) {
		g.logger = logger.With().Str("component", "governance").Logger()
	}
}

// New 创建 Governor；时间统一取自 VotesReader.Clock
func New(votes VotesReader, params services.GovernanceConfig, opts ...Option) (*Governor, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if params.ProposalThreshold == nil {
		params.ProposalThreshold = uint256.NewInt(0)
	}

	g := &Governor{
		votes:     votes,
		params:    params,
		proposals: make(map[common.Hash]*proposalState),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Params 治理参数
func (g *Governor) Params() services.GovernanceConfig {
	return g.params
}
