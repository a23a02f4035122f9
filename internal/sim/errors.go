package sim

import (
	"errors"
	"fmt"
)

// 行级错误：当前信号被跳过，模拟继续。
var (
	// 价格解析
	ErrPriceNotFound = errors.New("no price found")
	ErrInvalidPrice  = errors.New("invalid price")
	ErrNegativePrice = errors.New("negative price")

	// BUY 路径
	ErrZeroPositionSize     = errors.New("position size is zero")
	ErrNoCashAvailable      = errors.New("no cash available")
	ErrInvalidAllocation    = errors.New("allocated cash is zero or negative")
	ErrFeesExceedAllocation = errors.New("target amount after fees is zero or negative")
	ErrInvalidShareCount    = errors.New("share count is zero or negative")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrZeroTotalShares      = errors.New("total shares is zero")

	// SELL 路径
	ErrNoPosition           = errors.New("no position found")
	ErrInvalidGrossProceeds = errors.New("gross proceeds are zero or negative")
	ErrFeesExceedProceeds   = errors.New("net proceeds after fees are zero or negative")
	ErrZeroCostBasis        = errors.New("cost basis is zero")
)

// ErrIntegrity 运行结束后的结构完整性错误，对整个 run 是致命的。
var ErrIntegrity = errors.New("trade log integrity violation")

var rejectionKinds = []error{
	ErrPriceNotFound, ErrInvalidPrice, ErrNegativePrice,
	ErrZeroPositionSize, ErrNoCashAvailable, ErrInvalidAllocation,
	ErrFeesExceedAllocation, ErrInvalidShareCount, ErrInsufficientFunds,
	ErrZeroTotalShares, ErrNoPosition, ErrInvalidGrossProceeds,
	ErrFeesExceedProceeds, ErrZeroCostBasis,
}

// IsRejection 判断错误是否为可恢复的行级拒绝。
func IsRejection(err error) bool {
	for _, kind := range rejectionKinds {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// rejectf 将哨兵错误包上 symbol@timestamp 上下文和可读说明。
func rejectf(kind error, symbol string, ts int64, format string, v ...any) error {
	if format == "" {
		return fmt.Errorf("%s@%d: %w", symbol, ts, kind)
	}
	return fmt.Errorf("%s@%d: %w: %s", symbol, ts, kind, fmt.Sprintf(format, v...))
}
