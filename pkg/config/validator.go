package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// FieldError 单个字段校验失败，Field 使用 YAML 键路径，如 drops[0].item_id
type FieldError struct {
	Field string
	Rule  string
	Param string
}

func (e *FieldError) Error() string {
	switch e.Rule {
	case "required":
		return fmt.Sprintf("%s is required", e.Field)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", e.Field, e.Param)
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", e.Field, e.Param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", e.Field, e.Param)
	case "ltefield":
		return fmt.Sprintf("%s must not exceed %s", e.Field, e.Param)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", e.Field, e.Param)
	case "datetime":
		return fmt.Sprintf("%s must match layout %s", e.Field, e.Param)
	default:
		return fmt.Sprintf("%s failed rule %s", e.Field, e.Rule)
	}
}

// Is 让 errors.Is(err, ErrValidationFailed) 对任一字段错误成立
func (e *FieldError) Is(target error) bool {
	return target == ErrValidationFailed
}

var validate = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
})

// Validate 按 validate tag 校验结构体，所有失败的字段合并为一个错误返回
func Validate(cfg any) error {
	if cfg == nil {
		return ErrNilConfig
	}

	err := validate().Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	errs := make([]error, len(fieldErrs))
	for i, fe := range fieldErrs {
		errs[i] = &FieldError{Field: yamlPath(fe), Rule: fe.Tag(), Param: fe.Param()}
	}
	return errors.Join(errs...)
}

// yamlPath 去掉 Namespace 开头的结构体类型名
func yamlPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
