package escrow

import "github.com/weisyn/campaign-escrow-go/types"

// 哨兵错误，配合 errors.Is 使用
var (
	ErrNotOperator         = types.Sentinel(types.ErrorCodeNotOperator)
	ErrNotFunding          = types.Sentinel(types.ErrorCodeNotFunding)
	ErrNotSucceeded        = types.Sentinel(types.ErrorCodeNotSucceeded)
	ErrNotFailed           = types.Sentinel(types.ErrorCodeNotFailed)
	ErrZeroAmount          = types.Sentinel(types.ErrorCodeZeroAmount)
	ErrDeadlinePassed      = types.Sentinel(types.ErrorCodeDeadlinePassed)
	ErrDeadlineNotReached  = types.Sentinel(types.ErrorCodeDeadlineNotReached)
	ErrGoalNotReached      = types.Sentinel(types.ErrorCodeGoalNotReached)
	ErrInsufficientCustody = types.Sentinel(types.ErrorCodeInsufficientCustody)
	ErrTransferFailed      = types.Sentinel(types.ErrorCodeTransferFailed)
	ErrReentrantCall       = types.Sentinel(types.ErrorCodeReentrantCall)
	ErrUnsolicitedTransfer = types.Sentinel(types.ErrorCodeUnsolicitedTransfer)
	ErrRaisedOverflow      = types.Sentinel(types.ErrorCodeRaisedOverflow)
	ErrInvalidCampaign     = types.Sentinel(types.ErrorCodeInvalidCampaign)
	ErrInvalidRequest      = types.Sentinel(types.ErrorCodeInvalidRequest)
)
