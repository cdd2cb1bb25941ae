// Package keywords 从短文本中提取关键词，用于 AI 不可用时的启发式标签。
package keywords

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultLimit 是启发式标签的默认数量。
const DefaultLimit = 5

// 短于该长度（按 rune 计）的词被忽略
const minTermLen = 2

// 连续汉字超过该长度时切分为二元组
const maxHanRun = 4

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		a an and are as at be been but by can could did do does for from had has have he her his how i if in
		into is it its just me my no not of on or our she so than that the their them then there these they
		this to too up us was we were what when where which who why will with would you your yours also about
		after again all am any because before being both each few more most other over own same should some
		such through under until very while only out off once here those let get got
		的 了 和 是 在 我 有 就 不 人 都 一个 上 也 很 到 说 要 去 你 会 着 没有 看 好 自己 这 那 我们 你们 他们
		这个 那个 什么 因为 所以 但是 如果 还是 或者 已经 可以 一下 一些
	`) {
		stopwords[w] = struct{}{}
	}
}

// IsStopword 判断 term 是否为停用词。
func IsStopword(term string) bool {
	_, ok := stopwords[term]
	return ok
}

// Tokenize 把文本切分为小写词项：连续的字母或数字组成一个词项，
// 汉字单独成段，长度超过 4 的汉字段切分为相邻二元组。
func Tokenize(text string) []string {
	var (
		tokens []string
		buf    []rune
		han    bool
	)
	emit := func() {
		if len(buf) == 0 {
			return
		}
		if han && len(buf) > maxHanRun {
			for i := 0; i+1 < len(buf); i++ {
				tokens = append(tokens, string(buf[i:i+2]))
			}
		} else {
			tokens = append(tokens, string(buf))
		}
		buf = buf[:0]
	}

	for _, r := range strings.ToLower(text) {
		isHan := unicode.Is(unicode.Han, r)
		if !isHan && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			emit()
			continue
		}
		if len(buf) > 0 && isHan != han {
			emit()
		}
		han = isHan
		buf = append(buf, r)
	}
	emit()
	return tokens
}

// Extract 返回出现频率最高的至多 limit 个非停用词，频率相同时按首次出现顺序排列。
func Extract(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultLimit
	}

	type term struct {
		word  string
		count int
		first int
	}
	index := make(map[string]int)
	var terms []term

	for pos, tok := range Tokenize(text) {
		if !candidate(tok) {
			continue
		}
		if i, ok := index[tok]; ok {
			terms[i].count++
			continue
		}
		index[tok] = len(terms)
		terms = append(terms, term{word: tok, count: 1, first: pos})
	}

	sort.SliceStable(terms, func(i, j int) bool {
		if terms[i].count != terms[j].count {
			return terms[i].count > terms[j].count
		}
		return terms[i].first < terms[j].first
	})

	if len(terms) > limit {
		terms = terms[:limit]
	}
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = t.word
	}
	return out
}

func candidate(tok string) bool {
	if utf8.RuneCountInString(tok) < minTermLen {
		return false
	}
	if IsStopword(tok) {
		return false
	}
	// 纯数字没有标签意义
	for _, r := range tok {
		if !unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
