package preferences

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zhouzirui/voicelink/internal/model/chat"
)

// StorageKey 是偏好记录的固定持久化键。
const StorageKey = "voice-assistant-preferences"

// ErrInvalid 表示偏好字段取值不合法。
var ErrInvalid = errors.New("invalid preferences")

// Preferences is the persisted user preference record.
type Preferences struct {
	Personality    string `json:"personality"`
	ResponseLength string `json:"responseLength"`
	Formality      string `json:"formality"`
	Voice          string `json:"voice"`
	CustomPrompt   string `json:"customPrompt"`
	VoiceEnabled   bool   `json:"voiceEnabled"`
	AutoSpeak      bool   `json:"autoSpeak"`
}

var (
	responseLengths = []string{"short", "medium", "long"}
	formalities     = []string{"casual", "neutral", "formal"}
)

// Defaults returns the preferences used before anything has been saved.
func Defaults() Preferences {
	return Preferences{
		Personality:    "friendly",
		ResponseLength: "medium",
		Formality:      "casual",
		Voice:          "en-US-JennyNeural",
		VoiceEnabled:   true,
		AutoSpeak:      true,
	}
}

// Normalize 去除首尾空白并为空字段补默认值。
func (p Preferences) Normalize() Preferences {
	def := Defaults()
	p.Personality = orDefault(strings.ToLower(strings.TrimSpace(p.Personality)), def.Personality)
	p.ResponseLength = orDefault(strings.ToLower(strings.TrimSpace(p.ResponseLength)), def.ResponseLength)
	p.Formality = orDefault(strings.ToLower(strings.TrimSpace(p.Formality)), def.Formality)
	p.Voice = orDefault(strings.TrimSpace(p.Voice), def.Voice)
	p.CustomPrompt = strings.TrimSpace(p.CustomPrompt)
	return p
}

// Validate 检查枚举字段。
func (p Preferences) Validate() error {
	if !contains(responseLengths, p.ResponseLength) {
		return fmt.Errorf("%w: responseLength %q", ErrInvalid, p.ResponseLength)
	}
	if !contains(formalities, p.Formality) {
		return fmt.Errorf("%w: formality %q", ErrInvalid, p.Formality)
	}
	if len(p.CustomPrompt) > 2000 {
		return fmt.Errorf("%w: customPrompt too long", ErrInvalid)
	}
	return nil
}

// Metadata builds the snapshot sent along with outbound transcripts.
func (p Preferences) Metadata() *chat.Metadata {
	return &chat.Metadata{
		Personality:    p.Personality,
		ResponseLength: p.ResponseLength,
		Formality:      p.Formality,
		Voice:          p.Voice,
		CustomPrompt:   p.CustomPrompt,
	}
}

// ShouldSpeak 表示入站消息是否需要朗读。
func (p Preferences) ShouldSpeak() bool {
	return p.VoiceEnabled && p.AutoSpeak
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func contains(items []string, value string) bool {
	for _, item := range items {
		if item == value {
			return true
		}
	}
	return false
}
