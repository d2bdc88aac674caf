package response

import (
	"errors"
	"net/http"

	"vidora/gateway/internal/service"

	"github.com/gin-gonic/gin"
)

/*
ErrorBody 统一错误响应
error 为机器可读的错误码，hint 为给用户看的提示
*/
type ErrorBody struct {
	Error string `json:"error"`
	Hint  string `json:"hint"`
}

/* NoStore 禁止客户端与中间代理缓存 */
func NoStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
}

/* Error 输出错误响应并终止后续处理 */
func Error(c *gin.Context, status int, code, hint string) {
	NoStore(c)
	c.AbortWithStatusJSON(status, ErrorBody{Error: code, Hint: hint})
}

/*
GatewayError 把网关错误转换为响应
非 *service.GatewayError 的错误一律按 500 处理，不向客户端暴露内部信息
*/
func GatewayError(c *gin.Context, err error) {
	var ge *service.GatewayError
	if errors.As(err, &ge) {
		Error(c, ge.Status, ge.Code, ge.Hint)
		return
	}
	Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "服务器内部错误")
}

/* JSON 输出不可缓存的 JSON 响应 */
func JSON(c *gin.Context, status int, data interface{}) {
	NoStore(c)
	c.JSON(status, data)
}
