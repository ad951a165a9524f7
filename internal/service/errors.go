package service

import (
	"errors"
)

// ============================================================================
// 服务层错误分类
// ============================================================================
//
// 六类业务错误，handler 层按 errors.Is 映射为统一的业务码：
//   授权错误     ErrUnauthorized
//   状态错误     repository.ErrInvoiceStatusInvalid / ErrTransferStatusInvalid
//   参数错误     ErrInvalidParam（包装具体原因）
//   流动性错误   ErrInsufficientLiquidity
//   重复处理     repository.ErrAlreadyFunded / ErrAlreadyRepaid
//   系统熔断     ErrSystemPaused
//
// 所有错误都同步返回并整体中止操作，不存在部分落库的中间态
// ============================================================================

var (
	ErrUnauthorized          = errors.New("无权限执行该操作")
	ErrInvalidParam          = errors.New("参数不合法")
	ErrInsufficientLiquidity = errors.New("可用流动性不足")
	ErrSystemPaused          = errors.New("系统已熔断，暂停所有变更操作")
	ErrValueStale            = errors.New("远端价值上报已过期，估值不可靠")
	ErrRebalanceCooldown     = errors.New("再平衡冷却中，请稍后重试")
)
