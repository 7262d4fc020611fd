package chat

import "time"

// EnvelopeType 区分分组内消息的用途。
type EnvelopeType string

const (
	EnvelopeTranscript EnvelopeType = "transcript"
	EnvelopeReply      EnvelopeType = "reply"
)

// Envelope is the JSON payload exchanged in the shared group.
// 入站解码只依赖 data / text 两个字段，其余字段供其他参与方使用。
type Envelope struct {
	Type     EnvelopeType `json:"type"`
	Text     string       `json:"text,omitempty"`
	Data     string       `json:"data,omitempty"`
	Metadata *Metadata    `json:"metadata,omitempty"`
	SentAt   time.Time    `json:"sentAt"`
}

// Metadata carries the sender's preference snapshot so responders can shape replies.
type Metadata struct {
	Personality    string `json:"personality,omitempty"`
	ResponseLength string `json:"responseLength,omitempty"`
	Formality      string `json:"formality,omitempty"`
	Voice          string `json:"voice,omitempty"`
	CustomPrompt   string `json:"customPrompt,omitempty"`
}

// Content 返回信封中的正文，data 优先于 text。
func (e Envelope) Content() string {
	if e.Data != "" {
		return e.Data
	}
	return e.Text
}
