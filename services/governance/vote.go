package governance

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/weisyn/campaign-escrow-go/types"
	"github.com/weisyn/campaign-escrow-go/utils"
)

// CastVote 投票，权重为投票者在提案快照时间点的投票权
func (g *Governor) CastVote(voter common.Address, id common.Hash, support Support) (*uint256.Int, error) {
	if support > Abstain {
		return nil, types.NewError(types.ErrorCodeInvalidSupport, "", map[string]interface{}{"support": uint8(support)})
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.proposals[id]
	if !ok {
		return nil, unknownProposal(id)
	}

	// 1. 只能在 Active 状态投票
	if state := g.stateLocked(p); state != StateActive {
		return nil, types.NewError(types.ErrorCodeProposalInactive, "", map[string]interface{}{
			"id":    id.Hex(),
			"state": state.String(),
		})
	}

	// 2. 每个地址只能投一次
	if _, voted := p.voters[voter]; voted {
		return nil, types.NewError(types.ErrorCodeAlreadyVoted, "", map[string]interface{}{
			"voter": utils.AddressToBase58(voter),
		})
	}

	// 3. 按快照读取权重
	weight, err := g.votes.PastVotes(voter, p.Snapshot)
	if err != nil {
		return nil, err
	}

	switch support {
	case Against:
		p.tally.Against.Add(p.tally.Against, weight)
	case For:
		p.tally.For.Add(p.tally.For, weight)
	case Abstain:
		p.tally.Abstain.Add(p.tally.Abstain, weight)
	}
	p.voters[voter] = support

	g.logger.Debug().
		Str("id", id.Hex()).
		Str("voter", utils.ShortAddress(voter)).
		Str("support", support.String()).
		Str("weight", weight.Dec()).
		Msg("vote cast")
	return weight, nil
}

// HasVoted 是否已投票
func (g *Governor) HasVoted(id common.Hash, voter common.Address) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.proposals[id]
	if !ok {
		return false
	}
	_, voted := p.voters[voter]
	return voted
}

// Tally 当前计票
func (g *Governor) Tally(id common.Hash) (*Tally, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.proposals[id]
	if !ok {
		return nil, unknownProposal(id)
	}
	return &Tally{
		Against: new(uint256.Int).Set(p.tally.Against),
		For:     new(uint256.Int).Set(p.tally.For),
		Abstain: new(uint256.Int).Set(p.tally.Abstain),
	}, nil
}

// State 提案状态
func (g *Governor) State(id common.Hash) (State, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.proposals[id]
	if !ok {
		return 0, unknownProposal(id)
	}
	return g.stateLocked(p), nil
}

// Quorum 时间点 snapshot 的法定票数 = 总供应量 * numerator / denominator
func (g *Governor) Quorum(id common.Hash) (*uint256.Int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.proposals[id]
	if !ok {
		return nil, unknownProposal(id)
	}
	return g.quorumLocked(p)
}

func (g *Governor) stateLocked(p *proposalState) State {
	now := g.votes.Clock()
	if !now.After(p.Snapshot) {
		return StatePending
	}
	if !now.After(p.Deadline) {
		return StateActive
	}

	quorum, err := g.quorumLocked(p)
	if err != nil {
		return StateDefeated
	}
	participation := new(uint256.Int).Add(p.tally.For, p.tally.Abstain)
	if participation.Lt(quorum) || !p.tally.For.Gt(p.tally.Against) {
		return StateDefeated
	}
	return StateSucceeded
}

func (g *Governor) quorumLocked(p *proposalState) (*uint256.Int, error) {
	supply, err := g.votes.PastTotalSupply(p.Snapshot)
	if err != nil {
		return nil, err
	}
	q, _ := new(uint256.Int).MulDivOverflow(supply,
		uint256.NewInt(g.params.QuorumNumerator),
		uint256.NewInt(g.params.QuorumDenominator))
	return q, nil
}
