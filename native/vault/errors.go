package vault

import (
	"errors"
	"fmt"
)

// Kind groups failure codes so callers can decide how to react without
// enumerating every code.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindValidation failures are caller-correctable.
	KindValidation
	// KindArithmetic failures come from a checked operation overflowing.
	KindArithmetic
	// KindConcurrency failures signal a re-entered vault.
	KindConcurrency
	// KindAuthorization failures reject the caller identity.
	KindAuthorization
	// KindNotFound failures reference a vault that does not exist.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindArithmetic:
		return "arithmetic"
	case KindConcurrency:
		return "concurrency"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Code identifies a specific failure.
type Code uint16

const (
	CodeInvalidAmount Code = iota + 1
	CodeAmountTooLarge
	CodeAmountTooSmall
	CodeInvalidBackingRatio
	CodeBackingRatioTooLarge
	CodeMintAmountTooSmall
	CodeMintAmountTooLarge
	CodeMathOverflow
	CodeRiftPaused
	CodeReentrancyDetected
	CodeInvalidOraclePrice
	CodeOraclePriceTooLarge
	CodeStaleOracle
	CodeUnauthorizedOracle
	CodeUnauthorized
	CodeRebalanceNotDue
	CodeVaultNotEmpty
	CodeVaultNotFound
	CodeVaultExists
	CodeInvalidPolicy
	CodeBuybackSlippage
	CodeInsufficientReserves
	CodeInvalidName
	CodeInvalidAsset
	CodeFeeTransfer
)

var codeMessages = map[Code]string{
	CodeInvalidAmount:        "amount must be positive",
	CodeAmountTooLarge:       "amount exceeds maximum",
	CodeAmountTooSmall:       "amount below minimum",
	CodeInvalidBackingRatio:  "backing ratio must be positive",
	CodeBackingRatioTooLarge: "backing ratio exceeds maximum",
	CodeMintAmountTooSmall:   "converted amount rounds to zero",
	CodeMintAmountTooLarge:   "converted amount exceeds maximum",
	CodeMathOverflow:         "arithmetic overflow",
	CodeRiftPaused:           "vault paused",
	CodeReentrancyDetected:   "reentrancy detected",
	CodeInvalidOraclePrice:   "invalid oracle price",
	CodeOraclePriceTooLarge:  "oracle price exceeds maximum",
	CodeStaleOracle:          "oracle sample is stale",
	CodeUnauthorizedOracle:   "oracle not authorised",
	CodeUnauthorized:         "caller not authorised",
	CodeRebalanceNotDue:      "rebalance not due",
	CodeVaultNotEmpty:        "vault still has wrapped supply",
	CodeVaultNotFound:        "vault not found",
	CodeVaultExists:          "vault already exists",
	CodeInvalidPolicy:        "invalid vault policy",
	CodeBuybackSlippage:      "buyback returned less than minimum",
	CodeInsufficientReserves: "insufficient vault reserves",
	CodeInvalidName:          "invalid vault name",
	CodeInvalidAsset:         "invalid asset pair",
	CodeFeeTransfer:          "fee cascade transfer failed",
}

// Kind classifies the code.
func (c Code) Kind() Kind {
	switch c {
	case CodeMathOverflow:
		return KindArithmetic
	case CodeReentrancyDetected:
		return KindConcurrency
	case CodeUnauthorizedOracle, CodeUnauthorized:
		return KindAuthorization
	case CodeVaultNotFound:
		return KindNotFound
	case 0, CodeFeeTransfer:
		// Collaborator failures carry their own cause in Err.
		return KindUnknown
	default:
		return KindValidation
	}
}

func (c Code) String() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return fmt.Sprintf("code %d", uint16(c))
}

// Error is the typed failure returned by every vault operation. Component
// names the part of the engine that raised it.
type Error struct {
	Component string
	Code      Code
	Detail    string
	Err       error
}

func (e *Error) Error() string {
	prefix := "vault"
	if e.Component != "" {
		prefix = "vault " + e.Component
	}
	msg := prefix + ": " + e.Code.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same code, so the package sentinels
// work with errors.Is regardless of component or detail.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Kind classifies the failure.
func (e *Error) Kind() Kind {
	if e == nil {
		return KindUnknown
	}
	return e.Code.Kind()
}

// KindOf extracts the failure class from any error chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind()
	}
	return KindUnknown
}

func sentinel(code Code) *Error { return &Error{Code: code} }

var (
	ErrInvalidAmount        = sentinel(CodeInvalidAmount)
	ErrAmountTooLarge       = sentinel(CodeAmountTooLarge)
	ErrAmountTooSmall       = sentinel(CodeAmountTooSmall)
	ErrInvalidBackingRatio  = sentinel(CodeInvalidBackingRatio)
	ErrBackingRatioTooLarge = sentinel(CodeBackingRatioTooLarge)
	ErrMintAmountTooSmall   = sentinel(CodeMintAmountTooSmall)
	ErrMintAmountTooLarge   = sentinel(CodeMintAmountTooLarge)
	ErrMathOverflow         = sentinel(CodeMathOverflow)
	ErrRiftPaused           = sentinel(CodeRiftPaused)
	ErrReentrancyDetected   = sentinel(CodeReentrancyDetected)
	ErrInvalidOraclePrice   = sentinel(CodeInvalidOraclePrice)
	ErrOraclePriceTooLarge  = sentinel(CodeOraclePriceTooLarge)
	ErrStaleOracle          = sentinel(CodeStaleOracle)
	ErrUnauthorizedOracle   = sentinel(CodeUnauthorizedOracle)
	ErrUnauthorized         = sentinel(CodeUnauthorized)
	ErrRebalanceNotDue      = sentinel(CodeRebalanceNotDue)
	ErrVaultNotEmpty        = sentinel(CodeVaultNotEmpty)
	ErrVaultNotFound        = sentinel(CodeVaultNotFound)
	ErrVaultExists          = sentinel(CodeVaultExists)
	ErrInvalidPolicy        = sentinel(CodeInvalidPolicy)
	ErrBuybackSlippage      = sentinel(CodeBuybackSlippage)
	ErrInsufficientReserves = sentinel(CodeInsufficientReserves)
	ErrInvalidName          = sentinel(CodeInvalidName)
	ErrInvalidAsset         = sentinel(CodeInvalidAsset)
	ErrFeeTransfer          = sentinel(CodeFeeTransfer)
)

var errNilState = errors.New("vault engine: state not configured")

func fail(component string, code Code, format string, args ...interface{}) *Error {
	e := &Error{Component: component, Code: code}
	if format != "" {
		e.Detail = fmt.Sprintf(format, args...)
	}
	return e
}

func wrapFail(component string, code Code, err error) *Error {
	return &Error{Component: component, Code: code, Err: err}
}
