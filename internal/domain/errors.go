package domain

import (
	"errors"
	"fmt"
)

// ErrCollaboratorUnavailable marks a failed or malformed answer from the
// external predictor. Callers fall back to a local strategy.
var ErrCollaboratorUnavailable = errors.New("prediction collaborator unavailable")

// RejectReason names the risk predicate that refused a proposal.
type RejectReason string

const (
	ReasonCooldownActive         RejectReason = "CooldownActive"
	ReasonMaxPositionsReached    RejectReason = "MaxPositionsReached"
	ReasonDailyLossLimitBreached RejectReason = "DailyLossLimitBreached"
	ReasonDailyVolumeExceeded    RejectReason = "DailyVolumeExceeded"
	ReasonInsufficientBalance    RejectReason = "InsufficientBalance"
)

// RiskRejection is returned by the risk gate. It is an expected outcome,
// not a fault.
type RiskRejection struct {
	Reason RejectReason
	Detail string
}

func (e *RiskRejection) Error() string {
	if e.Detail == "" {
		return "risk rejection: " + string(e.Reason)
	}
	return fmt.Sprintf("risk rejection: %s: %s", e.Reason, e.Detail)
}

// Is matches any RiskRejection with the same reason.
func (e *RiskRejection) Is(target error) bool {
	t, ok := target.(*RiskRejection)
	return ok && t.Reason == e.Reason
}

var (
	ErrCooldownActive         = &RiskRejection{Reason: ReasonCooldownActive}
	ErrMaxPositionsReached    = &RiskRejection{Reason: ReasonMaxPositionsReached}
	ErrDailyLossLimitBreached = &RiskRejection{Reason: ReasonDailyLossLimitBreached}
	ErrDailyVolumeExceeded    = &RiskRejection{Reason: ReasonDailyVolumeExceeded}
	ErrInsufficientBalance    = &RiskRejection{Reason: ReasonInsufficientBalance}
)

// LedgerCode identifies a ledger failure.
type LedgerCode string

const (
	CodeInvalidAmount       LedgerCode = "InvalidAmount"
	CodeInvalidPrice        LedgerCode = "InvalidPrice"
	CodeInvalidSide         LedgerCode = "InvalidSide"
	CodeTradeNotFound       LedgerCode = "TradeNotFound"
	CodeTradeNotOpen        LedgerCode = "TradeNotOpen"
	CodeBelowMinimumBalance LedgerCode = "BelowMinimumBalance"
)

// LedgerError is returned by the ledger. No state was changed when it is
// returned.
type LedgerError struct {
	Code    LedgerCode
	TradeID string
	Detail  string
}

func (e *LedgerError) Error() string {
	msg := "ledger: " + string(e.Code)
	if e.TradeID != "" {
		msg += " (trade " + e.TradeID + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is matches any LedgerError with the same code.
func (e *LedgerError) Is(target error) bool {
	t, ok := target.(*LedgerError)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidAmount       = &LedgerError{Code: CodeInvalidAmount}
	ErrInvalidPrice        = &LedgerError{Code: CodeInvalidPrice}
	ErrInvalidSide         = &LedgerError{Code: CodeInvalidSide}
	ErrTradeNotFound       = &LedgerError{Code: CodeTradeNotFound}
	ErrTradeNotOpen        = &LedgerError{Code: CodeTradeNotOpen}
	ErrBelowMinimumBalance = &LedgerError{Code: CodeBelowMinimumBalance}
)

// RejectionKind classifies err for callers that report rejections as data
// ("risk", "ledger", "" when err is neither) together with its code.
func RejectionKind(err error) (kind, code string) {
	var rr *RiskRejection
	if errors.As(err, &rr) {
		return "risk", string(rr.Reason)
	}
	var le *LedgerError
	if errors.As(err, &le) {
		return "ledger", string(le.Code)
	}
	return "", ""
}
