package service

import (
	"fmt"
	"net/http"
)

/* 拒绝码，作为 JSON 响应中的 error 字段 */
const (
	CodeRateLimited         = "RATE_LIMITED"
	CodeUANotAllowed        = "UA_NOT_ALLOWED"
	CodeMissingToken        = "MISSING_TOKEN"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeUserBanned          = "USER_BANNED"
	CodeDeviceNotAuthorized = "DEVICE_NOT_AUTHORIZED"
	CodeDeviceBindingFailed = "DEVICE_BINDING_FAILED"
	CodeConfigUnavailable   = "CONFIG_UNAVAILABLE"
)

/*
GatewayError 请求终止错误
功能：携带 HTTP 状态码、机器可读的 code 与给人看的 hint，
拒绝类错误 Err 为空；持久化类错误通过 Err 保留底层原因用于日志。
*/
type GatewayError struct {
	Status int
	Code   string
	Hint   string
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Hint, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Hint)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func deny(status int, code, hint string) *GatewayError {
	return &GatewayError{Status: status, Code: code, Hint: hint}
}

func internal(code, hint string, err error) *GatewayError {
	return &GatewayError{Status: http.StatusInternalServerError, Code: code, Hint: hint, Err: err}
}
