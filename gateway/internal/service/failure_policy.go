package service

import "go.uber.org/zap"

/*
FailurePolicy 外部调用失败时的处理策略
限流走 FailOpen：基础设施故障时放行请求；
设备绑定持久化走 FailClosed：失败即终止请求，避免设备计数与客户端认知不一致。
*/
type FailurePolicy int

const (
	FailOpen FailurePolicy = iota
	FailClosed
)

func (p FailurePolicy) String() string {
	if p == FailOpen {
		return "fail-open"
	}
	return "fail-closed"
}

/*
Apply 根据策略处理错误
返回 true 表示调用方应继续（放行），false 表示应终止。err 为空时总是继续。
*/
func (p FailurePolicy) Apply(log *zap.Logger, op string, err error) bool {
	if err == nil {
		return true
	}
	if p == FailOpen {
		log.Warn("外部存储不可用，按策略放行", zap.String("op", op), zap.String("policy", p.String()), zap.Error(err))
		return true
	}
	log.Error("外部存储不可用，按策略拒绝", zap.String("op", op), zap.String("policy", p.String()), zap.Error(err))
	return false
}
