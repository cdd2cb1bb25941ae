package keywords

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract_FrequencyThenFirstOccurrence(t *testing.T) {
	got := Extract("buy buy milk milk milk tomorrow", DefaultLimit)
	assert.Equal(t, []string{"milk", "buy", "tomorrow"}, got)
}

func TestExtract_DropsStopwordsShortTermsAndNumbers(t *testing.T) {
	got := Extract("I need to call the bank at 9 about 2024 taxes", DefaultLimit)
	assert.Equal(t, []string{"need", "call", "bank", "taxes"}, got)
}

func TestExtract_Limit(t *testing.T) {
	got := Extract("alpha beta gamma delta epsilon zeta eta theta", 3)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, got)

	got = Extract("alpha beta gamma delta epsilon zeta eta theta", 0)
	assert.Len(t, got, DefaultLimit)
}

func TestExtract_Empty(t *testing.T) {
	assert.Empty(t, Extract("", DefaultLimit))
	assert.Empty(t, Extract("the a of", DefaultLimit))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"hello", "world", "go1", "24"}, Tokenize("Hello, WORLD! go1.24"))
	// 汉字与拉丁字母分段
	assert.Equal(t, []string{"学习", "golang"}, Tokenize("学习Golang"))
	// 长汉字段切分为二元组
	assert.Equal(t, []string{"机器", "器学", "学习", "习笔", "笔记"}, Tokenize("机器学习笔记"))
}
