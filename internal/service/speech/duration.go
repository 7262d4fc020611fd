package speech

import (
	"strings"
	"time"
)

// wordsPerSecond 是常速英语朗读的平均语速。
const wordsPerSecond = 2.5

// EstimateDuration 按词数估算朗读时长，rate 为语速倍率。
func EstimateDuration(text string, rate float64) time.Duration {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	if rate <= 0 {
		rate = 1
	}
	seconds := float64(words) / (wordsPerSecond * rate)
	return time.Duration(seconds * float64(time.Second))
}
