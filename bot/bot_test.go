package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/use-agent/tgsearch/config"
	"github.com/use-agent/tgsearch/models"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	requests []tgbotapi.Chattable
	updates  chan tgbotapi.Update
	stopped  bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 8)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), f.sent...)
}

type fakeSearcher struct {
	mu      sync.Mutex
	records []models.ResultRecord
	err     error
	queries []string
}

func (s *fakeSearcher) Search(_ context.Context, query string, _ int) ([]models.ResultRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	return s.records, s.err
}

func testBotConfig() config.BotConfig {
	return config.BotConfig{ChatRPS: 100, ChatBurst: 100}
}

func textMessage(text string) *tgbotapi.Message {
	return &tgbotapi.Message{MessageID: 7, Chat: &tgbotapi.Chat{ID: 42}, Text: text}
}

func commandMessage(text string) *tgbotapi.Message {
	m := textMessage(text)
	n := len(text)
	if i := strings.IndexByte(text, ' '); i >= 0 {
		n = i
	}
	m.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: n}}
	return m
}

func TestCommands(t *testing.T) {
	tests := []struct {
		text     string
		wantText string
		wantHTML bool
	}{
		{"/start", startText, true},
		{"/help", helpText, true},
		{"/search", searchPromptText, true},
		{"/help@tgsearch_bot", helpText, true},
		{"/weather", unknownCommandText, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			api := newFakeAPI()
			b := New(api, &fakeSearcher{}, testBotConfig())

			b.handleMessage(context.Background(), commandMessage(tt.text))

			msgs := api.messages()
			if len(msgs) != 1 {
				t.Fatalf("sent %d messages, want 1", len(msgs))
			}
			if msgs[0].Text != tt.wantText {
				t.Errorf("text = %q", msgs[0].Text)
			}
			if (msgs[0].ParseMode == tgbotapi.ModeHTML) != tt.wantHTML {
				t.Errorf("ParseMode = %q", msgs[0].ParseMode)
			}
			if msgs[0].ChatID != 42 || msgs[0].ReplyToMessageID != 7 {
				t.Errorf("reply routed to chat %d / message %d", msgs[0].ChatID, msgs[0].ReplyToMessageID)
			}
		})
	}
}

func TestSearch_Results(t *testing.T) {
	api := newFakeAPI()
	s := &fakeSearcher{records: []models.ResultRecord{
		{Title: "Go <News>", Link: "https://t.me/golang"},
		{Title: "Rust", Link: "https://t.me/rust"},
	}}
	b := New(api, s, testBotConfig())

	b.handleMessage(context.Background(), textMessage("  golang  "))
	b.inflight.Wait()

	msgs := api.messages()
	if len(msgs) != 2 {
		t.Fatalf("sent %d messages, want ack + results", len(msgs))
	}
	if !strings.Contains(msgs[0].Text, "Searching for: golang") {
		t.Errorf("ack = %q", msgs[0].Text)
	}

	res := msgs[1]
	if res.ParseMode != tgbotapi.ModeHTML || !res.DisableWebPagePreview {
		t.Errorf("ParseMode = %q, previews disabled = %v", res.ParseMode, res.DisableWebPagePreview)
	}
	for _, want := range []string{
		"(2 found)",
		`1. <a href="https://t.me/golang">Go &lt;News&gt;</a>`,
		`2. <a href="https://t.me/rust">Rust</a>`,
	} {
		if !strings.Contains(res.Text, want) {
			t.Errorf("results missing %q:\n%s", want, res.Text)
		}
	}
	if len(s.queries) != 1 || s.queries[0] != "golang" {
		t.Errorf("queries = %v", s.queries)
	}

	var typing bool
	for _, r := range api.requests {
		if _, ok := r.(tgbotapi.ChatActionConfig); ok {
			typing = true
		}
	}
	if !typing {
		t.Error("expected a typing chat action")
	}
}

func TestSearch_CommandWithArguments(t *testing.T) {
	api := newFakeAPI()
	s := &fakeSearcher{}
	b := New(api, s, testBotConfig())

	b.handleMessage(context.Background(), commandMessage("/search crypto news"))
	b.inflight.Wait()

	if len(s.queries) != 1 || s.queries[0] != "crypto news" {
		t.Errorf("queries = %v", s.queries)
	}
}

func TestSearch_NoMatches(t *testing.T) {
	api := newFakeAPI()
	b := New(api, &fakeSearcher{records: []models.ResultRecord{}}, testBotConfig())

	b.handleMessage(context.Background(), textMessage("zzzz"))
	b.inflight.Wait()

	msgs := api.messages()
	if got := msgs[len(msgs)-1].Text; got != noMatchesText {
		t.Errorf("last reply = %q", got)
	}
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"driver", &models.DriverInitializationError{Attempts: []models.StrategyFailure{
			{Strategy: "default", Err: errors.New("chrome not found")},
		}}, "could not be started"},
		{"timeout", models.NewScrapeError(models.ErrCodeTimeout, "deadline", nil), "timed out"},
		{"other", errors.New("<boom>"), "&lt;boom&gt;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI()
			b := New(api, &fakeSearcher{err: tt.err}, testBotConfig())

			b.handleMessage(context.Background(), textMessage("golang"))
			b.inflight.Wait()

			msgs := api.messages()
			last := msgs[len(msgs)-1]
			if !strings.HasPrefix(last.Text, "❌ Search failed") || !strings.Contains(last.Text, tt.want) {
				t.Errorf("reply = %q, want it to mention %q", last.Text, tt.want)
			}
		})
	}
}

func TestSearch_RateLimitedPerChat(t *testing.T) {
	api := newFakeAPI()
	s := &fakeSearcher{}
	b := New(api, s, config.BotConfig{ChatRPS: 0.001, ChatBurst: 1})

	b.handleMessage(context.Background(), textMessage("one"))
	b.handleMessage(context.Background(), textMessage("two"))
	b.inflight.Wait()

	if len(s.queries) != 1 {
		t.Errorf("ran %d searches, want 1", len(s.queries))
	}
	var slowed bool
	for _, m := range api.messages() {
		if m.Text == slowDownText {
			slowed = true
		}
	}
	if !slowed {
		t.Error("second query should be told to slow down")
	}

	other := textMessage("three")
	other.Chat.ID = 99
	b.handleMessage(context.Background(), other)
	b.inflight.Wait()
	if len(s.queries) != 2 {
		t.Error("other chats must not be throttled")
	}
}

func TestSlashTextWithoutCommandEntity(t *testing.T) {
	api := newFakeAPI()
	s := &fakeSearcher{}
	b := New(api, s, testBotConfig())

	b.handleMessage(context.Background(), textMessage("/ not a command"))
	b.inflight.Wait()

	if len(s.queries) != 0 {
		t.Error("slash-prefixed text must not be searched")
	}
}

func TestRegisterCommands(t *testing.T) {
	api := newFakeAPI()
	b := New(api, &fakeSearcher{}, testBotConfig())

	if err := b.RegisterCommands(); err != nil {
		t.Fatal(err)
	}
	cfg, ok := api.requests[0].(tgbotapi.SetMyCommandsConfig)
	if !ok {
		t.Fatalf("request = %T", api.requests[0])
	}
	var names []string
	for _, c := range cfg.Commands {
		names = append(names, c.Command)
	}
	if strings.Join(names, ",") != "start,help,search" {
		t.Errorf("commands = %v", names)
	}
}

func TestStart_StopsOnCancel(t *testing.T) {
	api := newFakeAPI()
	s := &fakeSearcher{}
	b := New(api, s, testBotConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Start(ctx) }()

	api.updates <- tgbotapi.Update{Message: textMessage("golang")}
	deadline := time.Now().Add(2 * time.Second)
	for {
		s.mu.Lock()
		n := len(s.queries)
		s.mu.Unlock()
		if n == 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if !api.stopped {
		t.Error("update polling was not stopped")
	}
	if len(s.queries) != 1 {
		t.Errorf("queries = %v", s.queries)
	}
}

func TestFormatResults_FitsMessageLimit(t *testing.T) {
	records := make([]models.ResultRecord, 20)
	for i := range records {
		records[i] = models.ResultRecord{
			Title: strings.Repeat("Ж", 300),
			Link:  "https://t.me/channel",
		}
	}

	text := formatResults("q", records)
	if n := utf8.RuneCountInString(text); n > maxMessageLen {
		t.Errorf("message is %d characters, limit %d", n, maxMessageLen)
	}
	if !strings.HasSuffix(text, resultsFooter) {
		t.Error("footer dropped")
	}
}
