package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Layer 常量：错误产生的组件
const (
	LayerEscrow     = "campaign-escrow"
	LayerLedger     = "claim-ledger"
	LayerCustody    = "custody"
	LayerGovernance = "governance"
	LayerConfig     = "config"
)

// Class 错误类别
//
// 授权失败（ClassAuthorization）与阶段不匹配（ClassPhase）是两类主要错误，
// 调用方可以通过 ClassOf 区分。
type Class string

const (
	ClassAuthorization Class = "authorization"
	ClassPhase         Class = "phase"
	ClassValidation    Class = "validation"
	ClassDeadline      Class = "deadline"
	ClassFunds         Class = "funds"
	ClassTransfer      Class = "transfer"
	ClassReentrancy    Class = "reentrancy"
	ClassConfig        Class = "config"
	ClassInternal      Class = "internal"
)

// ErrorCode 错误码常量（稳定，对外可见）
const (
	// 托管
	ErrorCodeNotOperator         = "ESCROW_NOT_OPERATOR"
	ErrorCodeNotFunding          = "ESCROW_NOT_FUNDING"
	ErrorCodeNotSucceeded        = "ESCROW_NOT_SUCCEEDED"
	ErrorCodeNotFailed           = "ESCROW_NOT_FAILED"
	ErrorCodeZeroAmount          = "ESCROW_ZERO_AMOUNT"
	ErrorCodeDeadlinePassed      = "ESCROW_DEADLINE_PASSED"
	ErrorCodeDeadlineNotReached  = "ESCROW_DEADLINE_NOT_REACHED"
	ErrorCodeGoalNotReached      = "ESCROW_GOAL_NOT_REACHED"
	ErrorCodeInsufficientCustody = "ESCROW_INSUFFICIENT_CUSTODY"
	ErrorCodeTransferFailed      = "ESCROW_TRANSFER_FAILED"
	ErrorCodeReentrantCall       = "ESCROW_REENTRANT_CALL"
	ErrorCodeUnsolicitedTransfer = "ESCROW_UNSOLICITED_TRANSFER"
	ErrorCodeRaisedOverflow      = "ESCROW_RAISED_OVERFLOW"
	ErrorCodeInvalidCampaign     = "ESCROW_INVALID_CAMPAIGN"
	ErrorCodeInvalidRequest      = "ESCROW_INVALID_REQUEST"
	ErrorCodeInsufficientFunds   = "CUSTODY_INSUFFICIENT_FUNDS"
	ErrorCodeRecipientRejected   = "CUSTODY_RECIPIENT_REJECTED"
	ErrorCodeInvalidAccount      = "CUSTODY_INVALID_ACCOUNT"

	// 份额代币账本
	ErrorCodeNotMinter             = "LEDGER_NOT_MINTER"
	ErrorCodeInsufficientBalance   = "LEDGER_INSUFFICIENT_BALANCE"
	ErrorCodeInsufficientAllowance = "LEDGER_INSUFFICIENT_ALLOWANCE"
	ErrorCodeZeroAddress           = "LEDGER_ZERO_ADDRESS"
	ErrorCodePermitExpired         = "LEDGER_PERMIT_EXPIRED"
	ErrorCodeInvalidSignature      = "LEDGER_INVALID_SIGNATURE"
	ErrorCodeFutureLookup          = "LEDGER_FUTURE_LOOKUP"
	ErrorCodeSupplyOverflow        = "LEDGER_SUPPLY_OVERFLOW"

	// 治理
	ErrorCodeBelowThreshold   = "GOV_BELOW_PROPOSAL_THRESHOLD"
	ErrorCodeProposalExists   = "GOV_PROPOSAL_EXISTS"
	ErrorCodeUnknownProposal  = "GOV_UNKNOWN_PROPOSAL"
	ErrorCodeProposalInactive = "GOV_PROPOSAL_NOT_ACTIVE"
	ErrorCodeAlreadyVoted     = "GOV_ALREADY_VOTED"
	ErrorCodeInvalidSupport   = "GOV_INVALID_SUPPORT"
	ErrorCodeInvalidParams    = "GOV_INVALID_PARAMS"

	// 配置
	ErrorCodeConfigInvalid = "CONFIG_INVALID"

	ErrorCodeInternal = "COMMON_INTERNAL_ERROR"
)

type codeInfo struct {
	layer   string
	class   Class
	message string
}

var registry = map[string]codeInfo{
	ErrorCodeNotOperator:         {LayerEscrow, ClassAuthorization, "caller is not the campaign operator"},
	ErrorCodeNotFunding:          {LayerEscrow, ClassPhase, "campaign is not in the funding phase"},
	ErrorCodeNotSucceeded:        {LayerEscrow, ClassPhase, "campaign has not succeeded"},
	ErrorCodeNotFailed:           {LayerEscrow, ClassPhase, "campaign has not failed"},
	ErrorCodeZeroAmount:          {LayerEscrow, ClassValidation, "amount must be greater than 0"},
	ErrorCodeDeadlinePassed:      {LayerEscrow, ClassDeadline, "funding deadline has passed"},
	ErrorCodeDeadlineNotReached:  {LayerEscrow, ClassDeadline, "funding deadline has not passed yet"},
	ErrorCodeGoalNotReached:      {LayerEscrow, ClassFunds, "funding goal has not been reached"},
	ErrorCodeInsufficientCustody: {LayerEscrow, ClassFunds, "amount exceeds held balance"},
	ErrorCodeTransferFailed:      {LayerEscrow, ClassTransfer, "outward transfer failed"},
	ErrorCodeReentrantCall:       {LayerEscrow, ClassReentrancy, "reentrant call rejected"},
	ErrorCodeUnsolicitedTransfer: {LayerEscrow, ClassValidation, "unsolicited transfer rejected"},
	ErrorCodeRaisedOverflow:      {LayerEscrow, ClassValidation, "contribution overflows total raised"},
	ErrorCodeInvalidCampaign:     {LayerEscrow, ClassConfig, "invalid campaign parameters"},
	ErrorCodeInvalidRequest:      {LayerEscrow, ClassValidation, "request is required"},
	ErrorCodeInsufficientFunds:   {LayerCustody, ClassFunds, "insufficient funds"},
	ErrorCodeRecipientRejected:   {LayerCustody, ClassTransfer, "recipient rejected transfer"},
	ErrorCodeInvalidAccount:      {LayerCustody, ClassValidation, "invalid account"},

	ErrorCodeNotMinter:             {LayerLedger, ClassAuthorization, "caller is not the minter"},
	ErrorCodeInsufficientBalance:   {LayerLedger, ClassFunds, "insufficient token balance"},
	ErrorCodeInsufficientAllowance: {LayerLedger, ClassFunds, "insufficient allowance"},
	ErrorCodeZeroAddress:           {LayerLedger, ClassValidation, "zero address not allowed"},
	ErrorCodePermitExpired:         {LayerLedger, ClassDeadline, "permit expired"},
	ErrorCodeInvalidSignature:      {LayerLedger, ClassAuthorization, "invalid permit signature"},
	ErrorCodeFutureLookup:          {LayerLedger, ClassValidation, "timepoint is not yet final"},
	ErrorCodeSupplyOverflow:        {LayerLedger, ClassValidation, "token supply overflow"},

	ErrorCodeBelowThreshold:   {LayerGovernance, ClassAuthorization, "proposer votes below proposal threshold"},
	ErrorCodeProposalExists:   {LayerGovernance, ClassValidation, "proposal already exists"},
	ErrorCodeUnknownProposal:  {LayerGovernance, ClassValidation, "unknown proposal"},
	ErrorCodeProposalInactive: {LayerGovernance, ClassPhase, "proposal is not active"},
	ErrorCodeAlreadyVoted:     {LayerGovernance, ClassValidation, "voter already voted"},
	ErrorCodeInvalidSupport:   {LayerGovernance, ClassValidation, "invalid vote type"},
	ErrorCodeInvalidParams:    {LayerGovernance, ClassConfig, "invalid governance parameters"},

	ErrorCodeConfigInvalid: {LayerConfig, ClassConfig, "invalid configuration"},
}

// EscrowError 结构化错误
//
// 每个被拒绝的操作都返回一个 EscrowError，Code 稳定且与拒绝条件一一对应。
// errors.Is 按 Code 比较，因此可以直接与包级哨兵错误比较。
type EscrowError struct {
	Code        string
	Layer       string
	Class       Class
	UserMessage string
	Detail      string
	Details     map[string]interface{}
	TraceID     string
	Timestamp   string
	Err         error
}

func (e *EscrowError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.UserMessage)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EscrowError) Unwrap() error {
	return e.Err
}

// Is 按错误码比较
func (e *EscrowError) Is(target error) bool {
	t, ok := target.(*EscrowError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinel 返回只带错误码的哨兵错误，用于 errors.Is 比较
func Sentinel(code string) *EscrowError {
	info := lookup(code)
	return &EscrowError{
		Code:        code,
		Layer:       info.layer,
		Class:       info.class,
		UserMessage: info.message,
	}
}

// NewError 创建带追踪 ID 与时间戳的错误
func NewError(code string, detail string, details map[string]interface{}) *EscrowError {
	info := lookup(code)
	if details == nil {
		details = make(map[string]interface{})
	}
	return &EscrowError{
		Code:        code,
		Layer:       info.layer,
		Class:       info.class,
		UserMessage: info.message,
		Detail:      detail,
		Details:     details,
		TraceID:     uuid.New().String(),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

// Wrap 创建错误并保留底层原因
func Wrap(code string, cause error, details map[string]interface{}) *EscrowError {
	e := NewError(code, "", details)
	e.Err = cause
	return e
}

// Errorf 创建错误，Detail 由格式化字符串生成
func Errorf(code string, format string, args ...interface{}) *EscrowError {
	return NewError(code, fmt.Sprintf(format, args...), nil)
}

// IsEscrowError 检查错误链中是否包含 EscrowError
func IsEscrowError(err error) (*EscrowError, bool) {
	var escrowErr *EscrowError
	if errors.As(err, &escrowErr) {
		return escrowErr, true
	}
	return nil, false
}

// CodeOf 返回错误码；非 EscrowError 返回空字符串
func CodeOf(err error) string {
	if e, ok := IsEscrowError(err); ok {
		return e.Code
	}
	return ""
}

// ClassOf 返回错误类别；非 EscrowError 返回空字符串
func ClassOf(err error) Class {
	if e, ok := IsEscrowError(err); ok {
		return e.Class
	}
	return ""
}

func lookup(code string) codeInfo {
	if info, ok := registry[code]; ok {
		return info
	}
	return codeInfo{layer: LayerEscrow, class: ClassInternal, message: "internal error"}
}
