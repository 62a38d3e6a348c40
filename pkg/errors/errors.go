// Package errors 提供统一错误辅助，不依赖 internal
package errors

import (
	"errors"
	"fmt"
)

// 哨兵错误：读路径用 Is 判断后本地恢复为结构化结果，写路径透传给调用方
var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidArg = errors.New("invalid argument")

	// ErrValidation 输入不合法（缺少 org / hash 格式错误等）
	ErrValidation = errors.New("validation failed")
	// ErrConsistency 双账本数据不一致（声称 verified 但校验失败）
	ErrConsistency = errors.New("cross-ledger inconsistency")
	// ErrLedgerTimeout 账本写入超时，结果不明：既不能当成功也不能当失败
	ErrLedgerTimeout = errors.New("ledger write timed out")
	// ErrStorage Blob 存储不可用
	ErrStorage = errors.New("blob storage unavailable")
	// ErrDuplicate 存储层唯一约束冲突（同一 hash 已有 verified 记录）
	ErrDuplicate = errors.New("duplicate record")
	// ErrOrgBanned 组织被封禁且未到期
	ErrOrgBanned = errors.New("organization banned")
)

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// IsAmbiguous 写入结果是否不明（超时类）：不可盲目重试，由事件同步收敛
func IsAmbiguous(err error) bool {
	return errors.Is(err, ErrLedgerTimeout)
}
