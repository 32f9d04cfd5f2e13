package proof

import (
	"errors"

	"finproof/config"
	"finproof/exchange"
	"finproof/ledger"
	"finproof/submission"
)

// 进程退出码
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitInputMissing = 2
	ExitUnavailable  = 3
	ExitAuth         = 4
	ExitLedger       = 5
)

// ErrLock 身份锁获取失败
var ErrLock = errors.New("identity lock unavailable")

// ErrUpload 加密上传失败
var ErrUpload = errors.New("upload failed")

// ExitCode 致命错误映射到退出码
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, submission.ErrInputMissing):
		return ExitInputMissing
	case errors.Is(err, exchange.ErrAuth), errors.Is(err, config.ErrMissingCredential):
		return ExitAuth
	case errors.Is(err, exchange.ErrUnavailable):
		return ExitUnavailable
	case errors.Is(err, ledger.ErrLedger):
		return ExitLedger
	default:
		return ExitFailure
	}
}
