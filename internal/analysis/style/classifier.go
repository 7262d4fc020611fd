// Package style 为待朗读文本逐句选择 SSML 表达风格。
package style

import (
	"regexp"
	"strings"
)

// Name 是 mstts:express-as 支持的风格名。
type Name string

const (
	Cheerful   Name = "cheerful"
	Friendly   Name = "friendly"
	Assistant  Name = "assistant"
	Empathetic Name = "empathetic"
	Hopeful    Name = "hopeful"
	Excited    Name = "excited"
)

// Category 是句子的内容类别。
type Category string

const (
	Greeting   Category = "greeting"
	Weather    Category = "weather"
	Scheduling Category = "scheduling"
	Caution    Category = "caution"
	Suggestion Category = "suggestion"
	HelpOffer  Category = "help-offer"
	Enthusiasm Category = "enthusiasm"
	General    Category = "general"
)

// DefaultDegree 是未命中任何规则时的风格强度。
const DefaultDegree = 1.3

// Decision 给出单句的风格判定结果。
type Decision struct {
	Sentence string
	Category Category
	Style    Name
	Degree   float64
}

type rule struct {
	category Category
	style    Name
	degree   float64
	pattern  *regexp.Regexp
}

// rules 按优先级排列，第一条命中的规则生效。
var rules = []rule{
	newRule(Greeting, Cheerful, 1.4,
		"hello", "hi", "hey", "good morning", "good afternoon", "good evening", "welcome", "greetings", "howdy"),
	newRule(Weather, Friendly, 1.2,
		"weather", "sunny", "rain", "raining", "rainy", "cloudy", "forecast", "temperature", "degrees", "snow", "windy", "storm", "humid"),
	newRule(Scheduling, Assistant, 1.0,
		"schedule", "scheduled", "meeting", "appointment", "calendar", "agenda", "deadline", "o'clock", "tomorrow at", "today at"),
	newRule(Caution, Empathetic, 1.2,
		"careful", "caution", "warning", "remember", "reminder", "don't forget", "do not forget", "make sure", "be sure", "watch out"),
	newRule(Suggestion, Hopeful, 1.3,
		"suggest", "recommend", "you could", "you might", "how about", "consider", "maybe try", "why not"),
	newRule(HelpOffer, Friendly, 1.4,
		"help", "assist", "let me know", "happy to", "glad to", "anything else"),
	newRule(Enthusiasm, Excited, 1.6,
		"great", "awesome", "amazing", "fantastic", "wonderful", "exciting", "excited", "congratulations", "wow", "incredible"),
}

func newRule(category Category, style Name, degree float64, keywords ...string) rule {
	quoted := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		quoted = append(quoted, regexp.QuoteMeta(kw))
	}
	pattern := regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	return rule{category: category, style: style, degree: degree, pattern: pattern}
}

// Classify 判定单句风格。
func Classify(sentence string) Decision {
	trimmed := strings.TrimSpace(sentence)
	for _, r := range rules {
		if r.pattern.MatchString(trimmed) {
			return Decision{Sentence: trimmed, Category: r.category, Style: r.style, Degree: r.degree}
		}
	}

	// 连续感叹视为兴奋语气。
	if strings.Count(trimmed, "!") >= 2 {
		return Decision{Sentence: trimmed, Category: Enthusiasm, Style: Excited, Degree: 1.6}
	}

	return Decision{Sentence: trimmed, Category: General, Style: Friendly, Degree: DefaultDegree}
}

// Segment 将文本切句后逐句判定风格，保持原有顺序。
func Segment(text string) []Decision {
	sentences := SplitSentences(text)
	decisions := make([]Decision, 0, len(sentences))
	for _, sentence := range sentences {
		decisions = append(decisions, Classify(sentence))
	}
	return decisions
}

// SplitSentences 以句末标点与换行切分文本，保留标点。
// 小数点等后面紧跟非空白字符的标点不切分。
func SplitSentences(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var sentences []string
	var b strings.Builder
	flush := func() {
		if chunk := strings.TrimSpace(b.String()); chunk != "" {
			sentences = append(sentences, chunk)
		}
		b.Reset()
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '\n', '\r':
			flush()
		case '.', '!', '?':
			b.WriteRune(r)
			// 吞掉连续的句末标点与右引号，如 "?!" 或 `."`
			for i+1 < len(runes) && isTrailingPunct(runes[i+1]) {
				i++
				b.WriteRune(runes[i])
			}
			if i+1 >= len(runes) || isSpace(runes[i+1]) {
				flush()
			}
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return sentences
}

func isTrailingPunct(r rune) bool {
	switch r {
	case '.', '!', '?', '"', '\'', ')', '”', '’':
		return true
	}
	return false
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
