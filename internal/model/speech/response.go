package speech

import "time"

// SpeakResponse 是一次合成的结果摘要。
type SpeakResponse struct {
	Path       string            `json:"path"` // cloud, cloud-styled, local, none
	Voice      string            `json:"voice,omitempty"`
	DurationMS int64             `json:"durationMs"`
	Segments   []SegmentDecision `json:"segments,omitempty"`
	CloudError string            `json:"cloudError,omitempty"`
	Skipped    bool              `json:"skipped,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// SegmentDecision 描述单个句子的风格判定。
type SegmentDecision struct {
	Text     string  `json:"text"`
	Category string  `json:"category"`
	Style    string  `json:"style"`
	Degree   float64 `json:"degree"`
}

// HealthResponse 报告合成链路的可用情况。
type HealthResponse struct {
	Cloud        bool   `json:"cloud"`
	Local        bool   `json:"local"`
	DefaultVoice string `json:"defaultVoice"`
}
