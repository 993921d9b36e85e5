package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeMeta(t *testing.T) {
	longKey := strings.Repeat("k", 100)
	in := map[string]interface{}{
		"nil":    nil,
		"bool":   true,
		"int":    42,
		"float":  1.5,
		"str":    "  padded  ",
		"long":   strings.Repeat("é", 2500),
		"output": strings.Repeat("o", 3500),
		longKey:  "v",
		"nested": map[string]interface{}{"artisan_output": strings.Repeat("a", 4500)},
		"err":    errors.New("boom"),
		"list":   []string{"a", "b"},
	}

	out := SanitizeMeta(in)

	assert.Nil(t, out["nil"])
	assert.Equal(t, true, out["bool"])
	assert.Equal(t, 42, out["int"])
	assert.Equal(t, 1.5, out["float"])
	assert.Equal(t, "padded", out["str"])
	assert.Equal(t, "boom", out["err"])
	assert.Equal(t, []interface{}{"a", "b"}, out["list"])

	long := out["long"].(string)
	assert.Equal(t, 2000+len([]rune(truncateSuffix)), len([]rune(long)))
	assert.True(t, strings.HasSuffix(long, truncateSuffix))

	// 输出类字段 4000 以内不截断
	assert.Equal(t, 3500, len(out["output"].(string)))

	_, hasLong := out[longKey]
	assert.False(t, hasLong)
	assert.Equal(t, "v", out[strings.Repeat("k", 80)])

	nested := out["nested"].(map[string]interface{})
	assert.Equal(t, 4000+len([]rune(truncateSuffix)), len([]rune(nested["artisan_output"].(string))))
}

func TestSanitizeMetaIsIdempotent(t *testing.T) {
	in := map[string]interface{}{
		"long":   strings.Repeat("x", 3000) + "   ",
		"output": "  " + strings.Repeat("y", 9000),
		"nested": map[string]interface{}{"deep": strings.Repeat("z", 2001)},
		strings.Repeat("q", 120): 1,
	}

	once := SanitizeMeta(in)
	twice := SanitizeMeta(once)
	assert.Equal(t, once, twice)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate(" abc ", 3))
	assert.Equal(t, "ab"+truncateSuffix, Truncate("abc", 2))
	assert.Equal(t, "日本"+truncateSuffix, Truncate("日本語", 2))
}
