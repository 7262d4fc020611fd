package chat

import "time"

// Sender 标识消息来源。
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one entry of the message log. Entries are immutable and only cleared as a whole.
type Message struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Sender     Sender    `json:"sender"`
	Timestamp  time.Time `json:"timestamp"`
	IsAudio    bool      `json:"isAudio"`
	Processing bool      `json:"processing,omitempty"`
}
