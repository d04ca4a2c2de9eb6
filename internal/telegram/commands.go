package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ppiankov/claimgate/internal/extract"
	"github.com/ppiankov/claimgate/internal/model"
	"github.com/ppiankov/claimgate/internal/pipeline"
	"github.com/ppiankov/claimgate/internal/ratelimit"
	"github.com/ppiankov/claimgate/internal/render"
)

const (
	previewLength  = 100
	quickMaxLength = 500
)

// Analyzer is the pipeline surface the bot uses
type Analyzer interface {
	Analyze(ctx context.Context, req pipeline.Request) (*model.Result, error)
	LimiterStats(identifier string) ratelimit.Status
	GlobalStats() ratelimit.Status
	Forget(identifier string)
}

// Replier sends a threaded reply
type Replier interface {
	Reply(chatID int64, messageID int, text string) error
}

// Options configures a CommandHandler
type Options struct {
	AutoAnalyze   bool
	RespondToBots bool
	AdminChatIDs  []int64
}

// CommandHandler turns chat messages into pipeline requests.
type CommandHandler struct {
	analyzer    Analyzer
	renderer    *render.Renderer
	replier     Replier
	opts        Options
	admins      map[int64]bool
	botUsername string
	logger      *slog.Logger
}

// NewCommandHandler creates a CommandHandler. The replier is attached by New.
func NewCommandHandler(analyzer Analyzer, renderer *render.Renderer, opts Options, logger *slog.Logger) *CommandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	admins := make(map[int64]bool, len(opts.AdminChatIDs))
	for _, id := range opts.AdminChatIDs {
		admins[id] = true
	}
	return &CommandHandler{
		analyzer: analyzer,
		renderer: renderer,
		opts:     opts,
		admins:   admins,
		logger:   logger,
	}
}

// Handle dispatches one incoming message
func (h *CommandHandler) Handle(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.From == nil {
		return
	}
	if msg.From.IsBot && !h.opts.RespondToBots {
		return
	}

	if msg.IsCommand() {
		h.handleCommand(ctx, msg)
		return
	}

	if msg.ReplyToMessage != nil && h.mentionsBot(msg) {
		h.handleReplyWithMention(ctx, msg)
		return
	}

	if h.opts.AutoAnalyze && msg.Text != "" {
		h.handleAutomatic(ctx, msg)
	}
}

func (h *CommandHandler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "verify", "factcheck", "truthiness":
		h.handleAnalyze(ctx, msg, model.ModeVerify, false)
	case "quick", "quickcheck":
		h.handleAnalyze(ctx, msg, model.ModeVerify, true)
	case "expose", "debunk":
		h.handleAnalyze(ctx, msg, model.ModeExpose, false)
	case "limits", "stats":
		h.handleLimits(msg)
	case "reset":
		h.handleReset(msg)
	case "help", "start":
		h.reply(msg, helpText)
	case "ping":
		h.reply(msg, "🏓 Pong!")
	default:
		// Unknown commands are ignored; group chats carry other bots' commands.
	}
}

// commandClaim takes the command arguments, falling back to the message the
// command replies to
func commandClaim(msg *tgbotapi.Message) string {
	claim := strings.TrimSpace(msg.CommandArguments())
	if claim == "" && msg.ReplyToMessage != nil {
		claim = strings.TrimSpace(messageText(msg.ReplyToMessage))
	}
	return claim
}

func (h *CommandHandler) handleAnalyze(ctx context.Context, msg *tgbotapi.Message, mode model.Mode, quick bool) {
	claim := commandClaim(msg)
	if claim == "" {
		h.reply(msg, fmt.Sprintf("❓ Please provide a claim. Usage: /%s <claim>", msg.Command()))
		return
	}
	if quick && len([]rune(claim)) > quickMaxLength {
		h.reply(msg, "❌ Claim too long for quick check. Use /verify for longer claims.")
		return
	}

	result, err := h.analyzer.Analyze(ctx, pipeline.Request{
		Identifier: identifierOf(msg),
		Text:       claim,
		Mode:       mode,
	})
	if err != nil {
		h.reply(msg, FormatError(err))
		return
	}

	if quick {
		h.reply(msg, "⚡ "+render.Quick(result))
		return
	}
	h.reply(msg, h.renderer.Text(Preview(claim), result, false))
}

func (h *CommandHandler) handleReplyWithMention(ctx context.Context, msg *tgbotapi.Message) {
	original := messageText(msg.ReplyToMessage)
	if strings.TrimSpace(original) == "" {
		h.reply(msg, "❌ Original message not found.")
		return
	}
	combined := original + "\n" + msg.Text

	result, err := h.analyzer.Analyze(ctx, pipeline.Request{
		Identifier: identifierOf(msg),
		Text:       combined,
		Mode:       model.ModeVerify,
	})
	if err != nil {
		h.reply(msg, FormatError(err))
		return
	}
	h.reply(msg, h.renderer.Text(Preview(combined), result, false))
}

// handleAutomatic stays silent on every failure so busy chats are not spammed
func (h *CommandHandler) handleAutomatic(ctx context.Context, msg *tgbotapi.Message) {
	result, err := h.analyzer.Analyze(ctx, pipeline.Request{
		Identifier: identifierOf(msg),
		Text:       msg.Text,
		Mode:       model.ModeVerify,
		Automatic:  true,
	})
	if err != nil {
		if !errors.Is(err, pipeline.ErrNotTriggered) {
			h.logger.Debug("automatic analysis skipped", "chat_id", msg.Chat.ID, "error", err)
		}
		return
	}
	h.reply(msg, h.renderer.Text(Preview(msg.Text), result, true))
}

func (h *CommandHandler) handleLimits(msg *tgbotapi.Message) {
	id := identifierOf(msg)
	h.reply(msg, FormatLimits(h.analyzer.LimiterStats(id), h.analyzer.GlobalStats()))
}

func (h *CommandHandler) handleReset(msg *tgbotapi.Message) {
	if !h.admins[msg.Chat.ID] {
		h.reply(msg, "❌ This command is restricted to admin chats.")
		return
	}
	target := strings.TrimSpace(msg.CommandArguments())
	if target == "" && msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		target = identifierOf(msg.ReplyToMessage)
	}
	if target == "" {
		h.reply(msg, "Usage: /reset <user_id> (or reply to the user's message)")
		return
	}
	h.analyzer.Forget(target)
	h.reply(msg, fmt.Sprintf("✅ Rate limit reset for %s.", target))
}

func (h *CommandHandler) mentionsBot(msg *tgbotapi.Message) bool {
	if h.botUsername == "" {
		return false
	}
	mention := "@" + strings.ToLower(h.botUsername)
	for _, e := range msg.Entities {
		if e.Type != "mention" {
			continue
		}
		if strings.ToLower(entityText(msg.Text, e)) == mention {
			return true
		}
	}
	return false
}

func (h *CommandHandler) reply(msg *tgbotapi.Message, text string) {
	if h.replier == nil {
		return
	}
	if err := h.replier.Reply(msg.Chat.ID, msg.MessageID, text); err != nil {
		h.logger.Warn("telegram reply failed", "chat_id", msg.Chat.ID, "error", err)
	}
}

// FormatError turns a pipeline failure into a chat reply
func FormatError(err error) string {
	if rl, ok := pipeline.IsRateLimited(err); ok {
		wait := rl.RetryAfter.Round(time.Second)
		if rl.Scope == pipeline.ScopeGlobal {
			return fmt.Sprintf("⏰ The bot is busy right now. Try again in %s.", wait)
		}
		return fmt.Sprintf("⏰ You have reached your request limit. Try again in %s.", wait)
	}
	switch {
	case errors.Is(err, pipeline.ErrClaimTooShort):
		return "❌ Claim is too short. Please provide a more detailed statement."
	case errors.Is(err, pipeline.ErrClaimTooLong):
		return "❌ Claim is too long. Please shorten it."
	case pipeline.IsServiceUnavailable(err), errors.Is(err, context.DeadlineExceeded):
		return "❌ The analysis service is unavailable. Please try again later."
	default:
		return "❌ An error occurred while processing your request."
	}
}

// FormatLimits renders a user's quota next to the global one
func FormatLimits(user, global ratelimit.Status) string {
	var b strings.Builder
	b.WriteString("📊 Rate limits\n\n")
	fmt.Fprintf(&b, "You: %d/%d remaining", user.Remaining, user.Limit)
	if user.Remaining < user.Limit {
		fmt.Fprintf(&b, " (resets in %s)", user.ResetIn.Round(time.Second))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Global: %d/%d remaining this minute", global.Remaining, global.Limit)
	if global.Remaining < global.Limit {
		fmt.Fprintf(&b, " (resets in %s)", global.ResetIn.Round(time.Second))
	}
	return b.String()
}

// Preview shortens a claim for display
func Preview(claim string) string {
	return extract.Truncate(claim, previewLength)
}

func identifierOf(msg *tgbotapi.Message) string {
	if msg.From == nil {
		return strconv.FormatInt(msg.Chat.ID, 10)
	}
	return strconv.FormatInt(msg.From.ID, 10)
}

func messageText(msg *tgbotapi.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}

// entityText slices an entity out of text. Offsets count UTF-16 units.
func entityText(text string, e tgbotapi.MessageEntity) string {
	units := utf16.Encode([]rune(text))
	if e.Offset < 0 || e.Offset+e.Length > len(units) {
		return ""
	}
	return string(utf16.Decode(units[e.Offset : e.Offset+e.Length]))
}

const helpText = `🔍 Claim analysis bot

/verify <claim> - assess how accurate a claim is
/expose <claim> - debunk-first analysis of a claim
/quick <claim> - one-line verdict
/limits - show your remaining requests
/reset <user_id> - clear a user's rate limit (admin chats)

Reply to a message and mention me to analyze it.`
