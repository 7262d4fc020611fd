package assistant

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/voicelink/internal/model/chat"
	"github.com/zhouzirui/voicelink/internal/model/persona"
)

// PromptTemplate 定义某个性格预设的提示词结构。
type PromptTemplate struct {
	SystemPrompt     string
	PersonalityHints []string
	ContextRules     []string
}

// PromptManager 管理各性格预设的提示词模板。
type PromptManager struct {
	templates map[string]*PromptTemplate
}

// NewPromptManager 创建带默认模板的管理器。
func NewPromptManager() *PromptManager {
	manager := &PromptManager{
		templates: make(map[string]*PromptTemplate),
	}
	manager.loadDefaultTemplates()
	return manager
}

// GetPromptTemplate 返回性格预设对应的模板。
func (pm *PromptManager) GetPromptTemplate(personaID string) (*PromptTemplate, error) {
	template, exists := pm.templates[personaID]
	if !exists {
		return nil, fmt.Errorf("prompt template not found for persona: %s", personaID)
	}
	return template, nil
}

// BuildSystemPrompt 组合性格预设与发送方偏好，生成系统提示词。
func (pm *PromptManager) BuildSystemPrompt(p persona.Persona, meta *chat.Metadata) string {
	var builder strings.Builder

	template, err := pm.GetPromptTemplate(p.ID)
	if err != nil {
		builder.WriteString(pm.buildBasicSystemPrompt(p))
	} else {
		builder.WriteString(fmt.Sprintf(`%s

Personality: %s (%s)

Personality hints:
- %s

Conversation rules:
- %s`,
			template.SystemPrompt,
			p.Name,
			p.Tone,
			strings.Join(template.PersonalityHints, "\n- "),
			strings.Join(template.ContextRules, "\n- "),
		))
	}

	builder.WriteString("\n\n")
	builder.WriteString(voiceRules)

	if meta != nil {
		if rule := lengthRule(meta.ResponseLength); rule != "" {
			builder.WriteString("\n- ")
			builder.WriteString(rule)
		}
		if rule := formalityRule(meta.Formality); rule != "" {
			builder.WriteString("\n- ")
			builder.WriteString(rule)
		}
		if custom := strings.TrimSpace(meta.CustomPrompt); custom != "" {
			builder.WriteString("\n\nAdditional instructions from the user:\n")
			builder.WriteString(custom)
		}
	}
	return builder.String()
}

const voiceRules = `Your reply will be read aloud by a speech synthesizer:
- Write plain sentences. No markdown, lists, code, emoji or URLs.
- End every sentence with punctuation so it can be voiced with its own style.`

func lengthRule(length string) string {
	switch length {
	case "short":
		return "Answer in one or two short sentences."
	case "medium":
		return "Answer in at most four sentences."
	case "long":
		return "A detailed answer of up to eight sentences is fine."
	default:
		return ""
	}
}

func formalityRule(formality string) string {
	switch formality {
	case "casual":
		return "Use a relaxed, casual register. Contractions are welcome."
	case "neutral":
		return "Use a neutral, polite register."
	case "formal":
		return "Use a formal register and avoid slang and contractions."
	default:
		return ""
	}
}

// buildBasicSystemPrompt 在没有模板时生成基础提示词。
func (pm *PromptManager) buildBasicSystemPrompt(p persona.Persona) string {
	return fmt.Sprintf(`You are a %s voice assistant.

Tone: %s
Hint: %s

Stay in this personality for the whole conversation.`,
		strings.ToLower(p.Name),
		p.Tone,
		p.PromptHint,
	)
}

// loadDefaultTemplates 加载内置性格预设的模板。
func (pm *PromptManager) loadDefaultTemplates() {
	pm.templates["friendly"] = &PromptTemplate{
		SystemPrompt: `You are a friendly voice assistant who talks like a helpful friend.`,
		PersonalityHints: []string{
			"Be warm and encouraging",
			"Greet the user back when they greet you",
			"Offer a follow-up suggestion when it helps",
		},
		ContextRules: []string{
			"Keep the conversation light and natural",
			"Ask a clarifying question when the request is ambiguous",
		},
	}

	pm.templates["professional"] = &PromptTemplate{
		SystemPrompt: `You are a professional voice assistant focused on accurate, efficient answers.`,
		PersonalityHints: []string{
			"Lead with the key fact or action",
			"Avoid filler and small talk",
			"State assumptions explicitly",
		},
		ContextRules: []string{
			"Prefer concrete times, numbers and names",
			"Say plainly when you do not know something",
		},
	}

	pm.templates["enthusiastic"] = &PromptTemplate{
		SystemPrompt: `You are an enthusiastic voice assistant with lots of positive energy.`,
		PersonalityHints: []string{
			"Celebrate good news and progress",
			"Use lively wording without exaggerating facts",
			"Keep momentum with an upbeat closing line",
		},
		ContextRules: []string{
			"Stay accurate even when excited",
			"Match the user's energy",
		},
	}

	pm.templates["calm"] = &PromptTemplate{
		SystemPrompt: `You are a calm, reassuring voice assistant.`,
		PersonalityHints: []string{
			"Use short, gentle sentences",
			"Acknowledge feelings before giving advice",
			"Never rush the user",
		},
		ContextRules: []string{
			"Give one step at a time",
			"Remind the user of important cautions kindly",
		},
	}
}
