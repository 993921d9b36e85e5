package services

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// 元数据长度上限
const (
	metaMaxKey     = 80
	metaMaxString  = 2000
	metaMaxOutput  = 4000
	truncateSuffix = "…(truncated)"
)

// 命令输出类字段允许更长
var outputMetaKeys = map[string]struct{}{
	"output":         {},
	"artisan_output": {},
}

// SanitizeMeta 递归限制元数据大小：key 截断到 80 字符，字符串截断到 2000（输出类 4000），其他类型转字符串
func SanitizeMeta(meta map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(meta))
	for k, v := range meta {
		key := truncateRunes(k, metaMaxKey)
		limit := metaMaxString
		if _, ok := outputMetaKeys[key]; ok {
			limit = metaMaxOutput
		}
		out[key] = sanitizeValue(v, limit)
	}
	return out
}

func sanitizeValue(v interface{}, limit int) interface{} {
	switch val := v.(type) {
	case nil, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return val
	case string:
		return Truncate(val, limit)
	case map[string]interface{}:
		return SanitizeMeta(val)
	case map[string]string:
		m := make(map[string]interface{}, len(val))
		for k, s := range val {
			m[k] = s
		}
		return SanitizeMeta(m)
	case []interface{}:
		items := make([]interface{}, len(val))
		for i, item := range val {
			items[i] = sanitizeValue(item, metaMaxString)
		}
		return items
	case []string:
		items := make([]interface{}, len(val))
		for i, item := range val {
			items[i] = Truncate(item, metaMaxString)
		}
		return items
	case error:
		return Truncate(val.Error(), limit)
	case fmt.Stringer:
		return Truncate(val.String(), limit)
	default:
		return Truncate(fmt.Sprint(val), limit)
	}
}

// Truncate 去掉首尾空白后按字符数截断
func Truncate(value string, max int) string {
	value = strings.TrimSpace(value)
	if utf8.RuneCountInString(value) <= max {
		return value
	}
	return truncateRunes(value, max) + truncateSuffix
}

func truncateRunes(value string, max int) string {
	if utf8.RuneCountInString(value) <= max {
		return value
	}
	runes := []rune(value)
	return string(runes[:max])
}

// mergeMeta 深度合并，后者覆盖前者
func mergeMeta(base, override map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		if bm, ok := out[k].(map[string]interface{}); ok {
			if om, ok := v.(map[string]interface{}); ok {
				out[k] = mergeMeta(bm, om)
				continue
			}
		}
		out[k] = v
	}
	return out
}
