// Package tagger assigns keyword category tags to article text. Tagging is
// a pure function over a fixed bilingual rule table: identical input always
// yields identical output, and a call costs well under a millisecond.
package tagger

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// MaxTags caps how many categories a single article can receive.
const MaxTags = 5

// contentLimit bounds how much body text is scanned, in runes.
const contentLimit = 2000

// titleWeight multiplies title matches relative to content matches.
const titleWeight = 3

// rawRules maps each category to its keyword list. Latin keywords are
// matched on word boundaries; CJK keywords are matched as substrings.
// A trailing space in a keyword is deliberate ("ev ", "sec ") and keeps
// the match from swallowing longer words.
var rawRules = map[string][]string{
	"ai": {
		"ai", "llm", "gpt", "openai", "anthropic", "deepseek", "claude",
		"gemini", "machine learning", "deep learning", "neural network",
		"transformer", "大模型", "人工智能", "chatgpt",
	},
	"crypto": {
		"bitcoin", "btc", "ethereum", "eth", "blockchain", "web3",
		"defi", "nft", "solana", "加密", "比特币", "币圈", "crypto",
	},
	"macro": {
		"fed", "federal reserve", "interest rate", "inflation", "gdp",
		"cpi", "ppi", "treasury", "yield curve", "recession",
		"宏观", "美联储", "利率", "通胀", "降息", "加息",
	},
	"geopolitics": {
		"sanctions", "tariff", "trade war", "geopolitic",
		"制裁", "关税", "贸易战", "台海", "地缘",
	},
	"china-market": {
		"a-share", "a股", "沪深", "港股", "北向资金", "中概",
		"上证", "深证", "恒生", "hsi", "hang seng",
	},
	"us-market": {
		"s&p 500", "s&p500", "nasdaq", "dow jones", "美股",
		"纳斯达克", "标普", "wall street", "nyse",
	},
	"sector/tech": {
		"semiconductor", "nvidia", "chip", "gpu", "tsmc", "asml",
		"芯片", "半导体", "台积电",
	},
	"sector/finance": {
		"bank", "fintech", "insurance", "银行", "金融", "保险",
	},
	"sector/energy": {
		"oil", "solar", "lithium", "ev ", "electric vehicle",
		"能源", "新能源", "电池", "光伏", "石油",
	},
	"trading": {
		"trading", "quant", "options", "futures", "hedge fund",
		"交易", "量化", "期权", "期货", "对冲",
	},
	"regulation": {
		"sec ", "compliance", "antitrust", "regulation",
		"监管", "合规", "反垄断",
	},
	"earnings": {
		"earnings", "revenue", "eps", "quarterly results", "guidance",
		"财报", "营收", "业绩", "净利润",
	},
	"commodities": {
		"gold", "silver", "copper", "iron ore", "crude oil",
		"黄金", "白银", "大宗商品", "原油",
	},
}

var rules = compileRules()

// Categories returns the fixed category list, sorted.
func Categories() []string {
	cats := make([]string, 0, len(rawRules))
	for cat := range rawRules {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	return cats
}

func compileRules() map[string][]*regexp.Regexp {
	compiled := make(map[string][]*regexp.Regexp, len(rawRules))
	for cat, keywords := range rawRules {
		patterns := make([]*regexp.Regexp, 0, len(keywords))
		for _, kw := range keywords {
			patterns = append(patterns, regexp.MustCompile(keywordPattern(kw)))
		}
		compiled[cat] = patterns
	}
	return compiled
}

// keywordPattern builds a case-insensitive pattern for one keyword. Word
// boundaries are added only next to Latin word characters, so "ai" never
// matches inside "said" while CJK keywords match anywhere.
func keywordPattern(kw string) string {
	var b strings.Builder
	b.WriteString(`(?i)`)
	runes := []rune(kw)
	if isWordRune(runes[0]) {
		b.WriteString(`\b`)
	}
	b.WriteString(regexp.QuoteMeta(kw))
	if isWordRune(runes[len(runes)-1]) {
		b.WriteString(`\b`)
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return r == '_' || (r <= unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)))
}

// Tag scores the title and content against every category and returns up
// to MaxTags category names, highest score first, ties broken by name.
func Tag(title, content string) []string {
	title = strings.TrimSpace(title)
	content = truncateRunes(strings.TrimSpace(content), contentLimit)

	scores := make(map[string]int)
	for cat, patterns := range rules {
		total := 0
		for _, p := range patterns {
			total += len(p.FindAllStringIndex(title, -1)) * titleWeight
			total += len(p.FindAllStringIndex(content, -1))
		}
		if total > 0 {
			scores[cat] = total
		}
	}

	tags := make([]string, 0, len(scores))
	for cat := range scores {
		tags = append(tags, cat)
	}
	sort.Slice(tags, func(i, j int) bool {
		if scores[tags[i]] != scores[tags[j]] {
			return scores[tags[i]] > scores[tags[j]]
		}
		return tags[i] < tags[j]
	})

	if len(tags) > MaxTags {
		tags = tags[:MaxTags]
	}
	return tags
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
