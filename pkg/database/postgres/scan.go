package postgres

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// columnIndex 列名到结构体字段下标，按类型缓存
var columnIndex sync.Map // reflect.Type -> map[string]int

// columnsOf 返回结构体类型的列映射
// 列名取 db tag，缺省时取字段名的 snake_case，db:"-" 与未导出字段不参与映射
func columnsOf(t reflect.Type) map[string]int {
	if cached, ok := columnIndex.Load(t); ok {
		return cached.(map[string]int)
	}

	cols := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Tag.Get("db")
		switch name {
		case "-":
			continue
		case "":
			name = toSnakeCase(f.Name)
		}
		cols[name] = i
	}

	actual, _ := columnIndex.LoadOrStore(t, cols)
	return actual.(map[string]int)
}

// scanOne 要求结果恰好一行并扫描到 dest（结构体指针）
// 零行返回 ErrNoRows，多行返回 pgx.ErrTooManyRows
func scanOne(rows pgx.Rows, dest any) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		rows.Close()
		return fmt.Errorf("dest must be a non-nil pointer to struct, got %T", dest)
	}
	target := v.Elem()
	cols := columnsOf(target.Type())

	_, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (struct{}, error) {
		return struct{}{}, row.Scan(scanTargets(row.FieldDescriptions(), target, cols)...)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNoRows
	}
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	return nil
}

// scanTargets 按结果列顺序给出扫描目标，结构体中没有的列扫描后丢弃
func scanTargets(fds []pgconn.FieldDescription, target reflect.Value, cols map[string]int) []any {
	targets := make([]any, len(fds))
	for i, fd := range fds {
		if idx, ok := cols[fd.Name]; ok {
			targets[i] = target.Field(idx).Addr().Interface()
			continue
		}
		var discard any
		targets[i] = &discard
	}
	return targets
}

// toSnakeCase LastResetDate -> last_reset_date
func toSnakeCase(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
