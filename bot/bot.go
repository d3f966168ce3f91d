// Package bot is the Telegram front end: it routes commands to static texts
// and runs free-text messages through the scraper.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/use-agent/tgsearch/config"
	"github.com/use-agent/tgsearch/limiter"
	"github.com/use-agent/tgsearch/models"
)

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Searcher runs one search.
type Searcher interface {
	Search(ctx context.Context, query string, page int) ([]models.ResultRecord, error)
}

type commandHandler func(b *Bot, ctx context.Context, msg *tgbotapi.Message)

type command struct {
	name        string
	description string
	handle      commandHandler
}

// Bot answers Telegram updates. Each search runs on its own goroutine so a
// slow scrape never blocks other chats.
type Bot struct {
	api      API
	search   Searcher
	limits   *limiter.Registry
	commands []command

	inflight sync.WaitGroup
}

// New creates a Bot around an existing API client.
func New(api API, search Searcher, cfg config.BotConfig) *Bot {
	return &Bot{
		api:    api,
		search: search,
		limits: limiter.New(cfg.ChatRPS, cfg.ChatBurst, time.Hour),
		commands: []command{
			{"start", "Welcome and quick start", (*Bot).handleStart},
			{"help", "How to use this bot", (*Bot).handleHelp},
			{"search", "Search Telegram channels", (*Bot).handleSearchCommand},
		},
	}
}

// NewFromConfig authorizes against the Bot API with cfg.Token.
func NewFromConfig(cfg config.BotConfig, search Searcher) (*Bot, error) {
	_ = tgbotapi.SetLogger(slogBotLogger{})

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("bot: authorize: %w", err)
	}
	api.Debug = cfg.Debug

	slog.Info("telegram bot authorized", "username", api.Self.UserName)
	return New(api, search, cfg), nil
}

// RegisterCommands publishes the command menu shown by Telegram clients.
func (b *Bot) RegisterCommands() error {
	menu := make([]tgbotapi.BotCommand, 0, len(b.commands))
	for _, c := range b.commands {
		menu = append(menu, tgbotapi.BotCommand{Command: c.name, Description: c.description})
	}
	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(menu...)); err != nil {
		return fmt.Errorf("bot: set commands: %w", err)
	}
	return nil
}

// Start long-polls for updates until ctx is done or the update channel
// closes, then waits for in-flight searches to finish.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	slog.Info("telegram bot started, waiting for updates")

	go b.limits.SweepEvery(10*time.Minute, ctx.Done())
	defer b.inflight.Wait()

	for {
		select {
		case <-ctx.Done():
			slog.Info("telegram bot shutting down")
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil {
				b.handleMessage(ctx, update.Message)
			}
		}
	}
}

// handleMessage routes commands and treats any other text as a query.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}

	if msg.IsCommand() {
		name := msg.Command()
		for _, c := range b.commands {
			if c.name == name {
				c.handle(b, ctx, msg)
				return
			}
		}
		b.reply(msg, unknownCommandText, false)
		return
	}

	query := strings.TrimSpace(msg.Text)
	if query == "" {
		return
	}
	if strings.HasPrefix(query, "/") {
		b.reply(msg, unknownCommandText, false)
		return
	}
	b.startSearch(ctx, msg, query)
}

func (b *Bot) handleStart(_ context.Context, msg *tgbotapi.Message) {
	b.reply(msg, startText, true)
}

func (b *Bot) handleHelp(_ context.Context, msg *tgbotapi.Message) {
	b.reply(msg, helpText, true)
}

// handleSearchCommand prompts for keywords, or searches right away when
// they follow the command ("/search golang").
func (b *Bot) handleSearchCommand(ctx context.Context, msg *tgbotapi.Message) {
	if query := strings.TrimSpace(msg.CommandArguments()); query != "" {
		b.startSearch(ctx, msg, query)
		return
	}
	b.reply(msg, searchPromptText, true)
}

// startSearch acknowledges the query and runs the search in the background.
func (b *Bot) startSearch(ctx context.Context, msg *tgbotapi.Message, query string) {
	chatKey := strconv.FormatInt(msg.Chat.ID, 10)
	if !b.limits.Allow(chatKey) {
		slog.Info("chat rate limited", "chat_id", msg.Chat.ID)
		b.reply(msg, slowDownText, false)
		return
	}

	b.reply(msg, fmt.Sprintf("🔍 Searching for: %s\nPlease wait…", query), false)
	if _, err := b.api.Request(tgbotapi.NewChatAction(msg.Chat.ID, tgbotapi.ChatTyping)); err != nil {
		slog.Debug("chat action failed", "chat_id", msg.Chat.ID, "error", err)
	}

	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		b.runSearch(ctx, msg, query)
	}()
}

func (b *Bot) runSearch(ctx context.Context, msg *tgbotapi.Message, query string) {
	start := time.Now()
	records, err := b.search.Search(ctx, query, 1)
	if err != nil {
		slog.Warn("bot search failed",
			"chat_id", msg.Chat.ID,
			"query", query,
			"error", err,
		)
		b.reply(msg, formatError(err), true)
		return
	}

	slog.Info("bot search answered",
		"chat_id", msg.Chat.ID,
		"query", query,
		"results", len(records),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	if len(records) == 0 {
		b.reply(msg, noMatchesText, false)
		return
	}
	b.reply(msg, formatResults(query, records), true)
}

// reply answers msg. html switches on HTML parse mode; link previews are
// always off so result lists stay compact.
func (b *Bot) reply(msg *tgbotapi.Message, text string, html bool) {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyToMessageID = msg.MessageID
	out.AllowSendingWithoutReply = true
	out.DisableWebPagePreview = true
	if html {
		out.ParseMode = tgbotapi.ModeHTML
	}
	if _, err := b.api.Send(out); err != nil {
		slog.Error("failed to send message", "chat_id", msg.Chat.ID, "error", err)
	}
}

// slogBotLogger routes the bot library's log output through slog.
type slogBotLogger struct{}

func (slogBotLogger) Println(v ...interface{}) {
	slog.Debug(strings.TrimSpace(fmt.Sprintln(v...)), "component", "tgbotapi")
}

func (slogBotLogger) Printf(format string, v ...interface{}) {
	slog.Debug(fmt.Sprintf(format, v...), "component", "tgbotapi")
}
