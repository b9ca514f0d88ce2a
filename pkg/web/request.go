package web

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	weberrors "github.com/lk2023060901/xdooria-dungeon/pkg/web/errors"
)

// BindAndValidate 绑定并校验请求，返回 false 时已写出 CodeInvalidParams
//
// 校验失败的提示列出字段的 json 名和未通过的规则，如 "invalid fields: player_id(required)"。
func BindAndValidate(c *gin.Context, obj any) bool {
	err := c.ShouldBind(obj)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		Fail(c, weberrors.CodeInvalidParams, "malformed request: "+err.Error())
		return false
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field()+"("+fe.Tag()+")")
	}
	Fail(c, weberrors.CodeInvalidParams, "invalid fields: "+strings.Join(fields, ", "))
	return false
}
