package assistant

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/voicelink/internal/model/chat"
)

const historyLimit = 10

// Generator 通过 eino 链调用大模型生成回复。
type Generator struct {
	chain   compose.Runnable[map[string]any, *schema.Message]
	prompts *PromptManager
	logger  zerolog.Logger
}

var _ Replier = (*Generator)(nil)

// NewGenerator 编译 "模板 → 模型" 链。
func NewGenerator(ctx context.Context, chatModel model.BaseChatModel, logger zerolog.Logger) (*Generator, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Generator{
		chain:   runnable,
		prompts: NewPromptManager(),
		logger:  logger.With().Str("component", "assistant-llm").Logger(),
	}, nil
}

// Reply 生成一条回复。
func (g *Generator) Reply(ctx context.Context, req Request) (string, error) {
	input := buildChainInput(g.prompts, req)

	response, err := g.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	g.logger.Debug().
		Str("persona", req.Persona.ID).
		Int("history", len(req.History)).
		Int("length", len(response.Content)).
		Msg("generated reply")
	return response.Content, nil
}

func buildChainInput(prompts *PromptManager, req Request) map[string]any {
	return map[string]any{
		"system":  prompts.BuildSystemPrompt(req.Persona, req.Metadata),
		"history": buildHistoryMessages(req.History),
		"query":   req.Query,
	}
}

func buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > historyLimit {
		startIdx = len(messages) - historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Sender {
		case chat.SenderUser:
			history = append(history, schema.UserMessage(msg.Text))
		case chat.SenderAssistant:
			history = append(history, schema.AssistantMessage(msg.Text, nil))
		}
	}
	return history
}
