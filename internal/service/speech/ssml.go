package speech

import (
	"bytes"
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/zhouzirui/voicelink/internal/analysis/style"
)

// Segment 是一段带风格的待合成文本。
type Segment struct {
	Text   string
	Style  string
	Degree float64
}

// SegmentsFrom 把逐句风格判定转换为合成分段。
func SegmentsFrom(decisions []style.Decision) []Segment {
	segments := make([]Segment, 0, len(decisions))
	for _, d := range decisions {
		segments = append(segments, Segment{Text: d.Sentence, Style: string(d.Style), Degree: d.Degree})
	}
	return segments
}

// BuildSSML renders one voice element with an express-as block per segment.
// When expressive is false the segments are emitted as plain text.
func BuildSSML(voice, language string, segments []Segment, expressive bool) string {
	if language == "" {
		language = "en-US"
	}

	var b strings.Builder
	b.WriteString(`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xmlns:mstts="https://www.w3.org/2001/mstts" xml:lang="`)
	b.WriteString(escapeAttr(language))
	b.WriteString(`"><voice name="`)
	b.WriteString(escapeAttr(voice))
	b.WriteString(`">`)

	for i, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if !expressive || seg.Style == "" {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(escapeText(text))
			continue
		}
		b.WriteString(`<mstts:express-as style="`)
		b.WriteString(escapeAttr(seg.Style))
		b.WriteString(`" styledegree="`)
		b.WriteString(formatDegree(seg.Degree))
		b.WriteString(`">`)
		b.WriteString(escapeText(text))
		b.WriteString(`</mstts:express-as>`)
	}

	b.WriteString(`</voice></speak>`)
	return b.String()
}

// formatDegree 将强度限制在服务端接受的 0.01 到 2 之间。
func formatDegree(degree float64) string {
	if degree <= 0 {
		degree = 1
	}
	if degree < 0.01 {
		degree = 0.01
	}
	if degree > 2 {
		degree = 2
	}
	return strconv.FormatFloat(degree, 'f', -1, 64)
}

func escapeText(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func escapeAttr(s string) string {
	return escapeText(s)
}
