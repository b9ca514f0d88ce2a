package config

import (
	"fmt"
	"reflect"
)

// MergeConfig 把 src 中的非零字段覆盖到 dst 上，返回 dst
//
// 典型用法是 MergeConfig(DefaultConfig(), cfg)：调用方只写与默认值不同的字段。
// 因为零值被视为"未设置"，false、0 和空字符串无法覆盖非零默认值，
// 需要关闭某个默认开启的选项时应把配置项设计成默认为零值。
//
// 任一参数为 nil 时直接返回另一个，两者都为 nil 返回 ErrNilConfig。
func MergeConfig[T any](dst, src *T) (*T, error) {
	switch {
	case dst == nil && src == nil:
		return nil, fmt.Errorf("merge: %w", ErrNilConfig)
	case dst == nil:
		return src, nil
	case src == nil:
		return dst, nil
	}

	if err := overlay(reflect.ValueOf(dst).Elem(), reflect.ValueOf(src).Elem(), ""); err != nil {
		return nil, err
	}
	return dst, nil
}

// overlay 递归覆盖，path 只用于错误信息
// 结构体和指针逐字段下钻，map 按键合并，切片与标量整体替换
func overlay(dst, src reflect.Value, path string) error {
	if !src.IsValid() || unset(src) {
		return nil
	}
	if dst.Kind() != src.Kind() {
		return fmt.Errorf("merge %s: kind mismatch %s vs %s", fieldPath(path), dst.Kind(), src.Kind())
	}

	switch dst.Kind() {
	case reflect.Struct:
		t := src.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			target := dst.FieldByName(f.Name)
			if !target.CanSet() {
				continue
			}
			if err := overlay(target, src.Field(i), joinPath(path, f.Name)); err != nil {
				return err
			}
		}
		return nil

	case reflect.Ptr:
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return overlay(dst.Elem(), src.Elem(), path)

	case reflect.Map:
		if dst.IsNil() {
			dst.Set(reflect.MakeMapWithSize(dst.Type(), src.Len()))
		}
		iter := src.MapRange()
		for iter.Next() {
			k, v := iter.Key(), iter.Value()
			existing := dst.MapIndex(k)
			if !existing.IsValid() {
				dst.SetMapIndex(k, v)
				continue
			}
			// map 元素不可寻址，先拷出来合并再写回
			merged := reflect.New(dst.Type().Elem()).Elem()
			merged.Set(existing)
			if err := overlay(merged, v, joinPath(path, fmt.Sprint(k.Interface()))); err != nil {
				return err
			}
			dst.SetMapIndex(k, merged)
		}
		return nil

	default:
		if dst.CanSet() {
			dst.Set(src)
		}
		return nil
	}
}

// unset 判断 src 字段是否视为未设置
// 空切片和空 map 也算未设置，yaml 中写 `key: []` 不会清空默认值
func unset(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	default:
		return v.IsZero()
	}
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

func fieldPath(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}
