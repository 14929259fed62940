package governance

import (
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/weisyn/campaign-escrow-go/types"
	"github.com/weisyn/campaign-escrow-go/utils"
)

// ProposalID 提案 ID = keccak256(proposer || description)
func ProposalID(proposer common.Address, description string) common.Hash {
	return ethcrypto.Keccak256Hash(proposer.Bytes(), []byte(description))
}

// Propose 创建提案
//
// **规则**：
// - 提案者当前投票权不低于 ProposalThreshold
// - Snapshot = now + VotingDelay，Deadline = Snapshot + VotingPeriod
func (g *Governor) Propose(proposer common.Address, description string) (*Proposal, error) {
	// 1. 门槛
	votes := g.votes.Votes(proposer)
	if votes.Lt(g.params.ProposalThreshold) {
		return nil, types.NewError(types.ErrorCodeBelowThreshold, "", map[string]interface{}{
			"proposer":  utils.AddressToBase58(proposer),
			"votes":     votes.Dec(),
			"threshold": g.params.ProposalThreshold.Dec(),
		})
	}

	id := ProposalID(proposer, description)
	now := g.votes.Clock()

	g.mu.Lock()
	defer g.mu.Unlock()

	// 2. 去重
	if _, ok := g.proposals[id]; ok {
		return nil, types.NewError(types.ErrorCodeProposalExists, "", map[string]interface{}{"id": id.Hex()})
	}

	// 3. 固定快照时间点
	snapshot := now.Add(g.params.VotingDelay)
	p := &proposalState{
		Proposal: Proposal{
			ID:          id,
			Proposer:    proposer,
			Description: description,
			Snapshot:    snapshot,
			Deadline:    snapshot.Add(g.params.VotingPeriod),
		},
		tally: Tally{
			Against: uint256.NewInt(0),
			For:     uint256.NewInt(0),
			Abstain: uint256.NewInt(0),
		},
		voters: make(map[common.Address]Support),
	}
	g.proposals[id] = p

	g.logger.Info().
		Str("id", id.Hex()).
		Str("proposer", utils.ShortAddress(proposer)).
		Time("snapshot", p.Snapshot).
		Time("deadline", p.Deadline).
		Msg("proposal created")

	out := p.Proposal
	return &out, nil
}

// Proposal 查询提案
func (g *Governor) Proposal(id common.Hash) (*Proposal, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.proposals[id]
	if !ok {
		return nil, unknownProposal(id)
	}
	out := p.Proposal
	return &out, nil
}

func unknownProposal(id common.Hash) error {
	return types.NewError(types.ErrorCodeUnknownProposal, "", map[string]interface{}{"id": id.Hex()})
}
