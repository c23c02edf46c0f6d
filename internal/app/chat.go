package app

import (
	"context"
	"strings"
	"time"

	"ayursutra/internal/chatbot"
	"ayursutra/pkg/domain"
)

// Exchange is a visitor message together with the bot reply it produced.
type Exchange struct {
	User domain.ChatMessage `json:"user"`
	Bot  domain.ChatMessage `json:"bot"`
}

// AppendChatMessage adds one turn to the chat log.
func (a *App) AppendChatMessage(ctx context.Context, message, sender string) (domain.ChatMessage, error) {
	return a.appendChatMessage(ctx, message, sender, a.now().UTC())
}

func (a *App) appendChatMessage(ctx context.Context, message, sender string, ts time.Time) (domain.ChatMessage, error) {
	if strings.TrimSpace(message) == "" {
		return domain.ChatMessage{}, invalid("message", "is required")
	}
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return domain.ChatMessage{}, invalid("sender", "is required")
	}
	return a.store.AppendChatMessage(ctx, domain.ChatMessage{
		Message:   message,
		Sender:    sender,
		Timestamp: ts,
	})
}

// ChatHistory returns the chat log oldest first.
func (a *App) ChatHistory(ctx context.Context) ([]domain.ChatMessage, error) {
	return a.store.ListChatMessages(ctx)
}

// AskBot logs a visitor message, then logs and returns the canned reply.
// The reply is stamped strictly after the question so history keeps the pair
// in order even on stores with microsecond timestamps.
func (a *App) AskBot(ctx context.Context, message string) (Exchange, error) {
	userMsg, err := a.AppendChatMessage(ctx, message, domain.SenderUser)
	if err != nil {
		return Exchange{}, err
	}
	replyAt := a.now().UTC()
	if floor := userMsg.Timestamp.Add(time.Microsecond); replyAt.Before(floor) {
		replyAt = floor
	}
	botMsg, err := a.appendChatMessage(ctx, chatbot.Reply(message), domain.SenderBot, replyAt)
	if err != nil {
		return Exchange{}, err
	}
	return Exchange{User: userMsg, Bot: botMsg}, nil
}
