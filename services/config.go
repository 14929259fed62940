package services

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/weisyn/campaign-escrow-go/types"
	"github.com/weisyn/campaign-escrow-go/utils"
)

// Config 募资活动的运行时配置
//
// **说明**：
// - Campaign 段在活动生命周期内固定不变（构造参数）
// - Governance 段只影响外部治理模块，与托管资金逻辑无关
// - Feed 段只在示例程序中使用，用于暴露事件推送端点
type Config struct {
	Campaign   CampaignConfig
	Governance GovernanceConfig
	Feed       FeedConfig
}

// CampaignConfig 募资活动构造参数
type CampaignConfig struct {
	// 份额代币展示名称与符号
	Name   string
	Symbol string

	// 运营方：可提前结束募资、成功后提取资金
	Operator common.Address

	// 目标金额（原生最小单位）
	Goal uint64

	// 截止时间（绝对时间），构造时必须严格晚于当前时间
	Deadline time.Time
}

// GovernanceConfig 治理参数
type GovernanceConfig struct {
	VotingDelay       time.Duration
	VotingPeriod      time.Duration
	QuorumNumerator   uint64
	QuorumDenominator uint64

	// 提案门槛（份额代币最小单位）
	ProposalThreshold *uint256.Int
}

// FeedConfig 事件推送配置
type FeedConfig struct {
	// 监听地址，空表示不启动
	Addr string
}

// DefaultGovernanceConfig 返回默认治理参数
func DefaultGovernanceConfig() GovernanceConfig {
	return GovernanceConfig{
		VotingDelay:       24 * time.Hour,
		VotingPeriod:      7 * 24 * time.Hour,
		QuorumNumerator:   4,
		QuorumDenominator: 100,
		ProposalThreshold: uint256.NewInt(0),
	}
}

// Validate 校验活动参数；now 为构造时的当前时间
func (c CampaignConfig) Validate(now time.Time) error {
	var problems []string
	if strings.TrimSpace(c.Name) == "" {
		problems = append(problems, "name is required")
	}
	if strings.TrimSpace(c.Symbol) == "" {
		problems = append(problems, "symbol is required")
	}
	if c.Operator == (common.Address{}) {
		problems = append(problems, "operator must not be the zero address")
	}
	if c.Goal == 0 {
		problems = append(problems, "goal must be greater than 0")
	}
	if !c.Deadline.After(now) {
		problems = append(problems, "deadline must be in the future")
	}
	if len(problems) > 0 {
		return types.NewError(types.ErrorCodeInvalidCampaign, strings.Join(problems, "; "), nil)
	}
	return nil
}

// Validate 校验治理参数
func (g GovernanceConfig) Validate() error {
	var problems []string
	if g.VotingPeriod <= 0 {
		problems = append(problems, "voting period must be positive")
	}
	if g.VotingDelay < 0 {
		problems = append(problems, "voting delay must not be negative")
	}
	if g.QuorumDenominator == 0 {
		problems = append(problems, "quorum denominator must be positive")
	} else if g.QuorumNumerator > g.QuorumDenominator {
		problems = append(problems, "quorum numerator exceeds denominator")
	}
	if len(problems) > 0 {
		return types.NewError(types.ErrorCodeInvalidParams, strings.Join(problems, "; "), nil)
	}
	return nil
}

// fileConfig TOML 文件结构
type fileConfig struct {
	Campaign struct {
		Name     string    `toml:"name"`
		Symbol   string    `toml:"symbol"`
		Operator string    `toml:"operator"`
		Goal     uint64    `toml:"goal"`
		Deadline time.Time `toml:"deadline"`
	} `toml:"campaign"`
	Governance struct {
		VotingDelay       string `toml:"voting_delay"`
		VotingPeriod      string `toml:"voting_period"`
		QuorumNumerator   uint64 `toml:"quorum_numerator"`
		QuorumDenominator uint64 `toml:"quorum_denominator"`
		ProposalThreshold string `toml:"proposal_threshold"`
	} `toml:"governance"`
	Feed struct {
		Addr string `toml:"addr"`
	} `toml:"feed"`
}

// LoadConfig 从 TOML 文件加载配置
//
// 地址支持 0x 十六进制或 Base58Check；时长使用 Go duration 字符串（如 "72h"）；
// 未填写的治理参数使用 DefaultGovernanceConfig。
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	return ParseConfig(string(data))
}

// ParseConfig 解析 TOML 配置内容
func ParseConfig(data string) (*Config, error) {
	var raw fileConfig
	if _, err := toml.Decode(data, &raw); err != nil {
		return nil, types.Wrap(types.ErrorCodeConfigInvalid, err, nil)
	}

	cfg := &Config{
		Campaign: CampaignConfig{
			Name:     raw.Campaign.Name,
			Symbol:   raw.Campaign.Symbol,
			Goal:     raw.Campaign.Goal,
			Deadline: raw.Campaign.Deadline,
		},
		Governance: DefaultGovernanceConfig(),
		Feed:       FeedConfig{Addr: raw.Feed.Addr},
	}

	// 1. 运营方地址
	if raw.Campaign.Operator != "" {
		operator, err := utils.ParseAddress(raw.Campaign.Operator)
		if err != nil {
			return nil, types.Wrap(types.ErrorCodeConfigInvalid, fmt.Errorf("campaign.operator: %w", err), nil)
		}
		cfg.Campaign.Operator = operator
	}

	// 2. 治理参数
	g := raw.Governance
	if g.VotingDelay != "" {
		d, err := time.ParseDuration(g.VotingDelay)
		if err != nil {
			return nil, types.Wrap(types.ErrorCodeConfigInvalid, fmt.Errorf("governance.voting_delay: %w", err), nil)
		}
		cfg.Governance.VotingDelay = d
	}
	if g.VotingPeriod != "" {
		d, err := time.ParseDuration(g.VotingPeriod)
		if err != nil {
			return nil, types.Wrap(types.ErrorCodeConfigInvalid, fmt.Errorf("governance.voting_period: %w", err), nil)
		}
		cfg.Governance.VotingPeriod = d
	}
	if g.QuorumDenominator != 0 {
		cfg.Governance.QuorumNumerator = g.QuorumNumerator
		cfg.Governance.QuorumDenominator = g.QuorumDenominator
	}
	if g.ProposalThreshold != "" {
		threshold, err := uint256.FromDecimal(g.ProposalThreshold)
		if err != nil {
			return nil, types.Wrap(types.ErrorCodeConfigInvalid, fmt.Errorf("governance.proposal_threshold: %w", err), nil)
		}
		cfg.Governance.ProposalThreshold = threshold
	}

	if err := cfg.Governance.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
