package bot

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/use-agent/tgsearch/models"
)

// maxMessageLen is Telegram's limit on message text, in characters.
const maxMessageLen = 4096

// maxErrorLen keeps error replies short; driver errors list every strategy.
const maxErrorLen = 800

const (
	startText = "👋 Welcome to the <b>Telegram channel search bot</b>!\n\n" +
		"<b>Quick start:</b>\n" +
		"1️⃣ Send the keywords you want to search for\n" +
		"2️⃣ Wait while the bot searches\n" +
		"3️⃣ Tap a result to open the channel or group\n\n" +
		"<b>Example:</b> send <code>programming</code> to find programming channels.\n\n" +
		"📖 Send /help for details."

	helpText = "🔍 <b>Telegram channel search bot</b>\n\n" +
		"Send any keywords and the bot searches public Telegram channels and groups by name, description and topic.\n\n" +
		"<b>Commands:</b>\n" +
		"• /start - welcome message\n" +
		"• /help - this help\n" +
		"• /search - start a search (or <code>/search keywords</code>)\n\n" +
		"<b>Results:</b>\n" +
		"✓ each result has the channel or group name and a direct link\n" +
		"✓ duplicates are removed\n" +
		"✓ at most 20 results are shown\n\n" +
		"💡 No results? Try different or shorter keywords."

	searchPromptText = "🔍 <b>Start a search</b>\n\n" +
		"Send the keywords you want to search for, for example:\n" +
		"• python\n• programming\n• movies\n• investing\n• games"

	unknownCommandText = "Unknown command. Send /help to see what I can do."

	noMatchesText = "⚠️ No matching channels or groups found.\n\n" +
		"💡 Try different keywords or a shorter query."

	slowDownText = "⏳ You are searching too fast. Please wait a moment and try again."

	resultsFooter = "\n💬 Send more keywords to search again."
)

// formatResults renders records as a numbered HTML list. Lines that would
// push the message past Telegram's size limit are dropped.
func formatResults(query string, records []models.ResultRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 <b>Results for: %s</b> (%d found)\n\n",
		tgbotapi.EscapeText(tgbotapi.ModeHTML, query), len(records))

	budget := maxMessageLen - utf8.RuneCountInString(resultsFooter)
	for i, rec := range records {
		line := fmt.Sprintf("%d. <a href=\"%s\">%s</a>\n",
			i+1, html.EscapeString(rec.Link), tgbotapi.EscapeText(tgbotapi.ModeHTML, rec.Title))
		if utf8.RuneCountInString(b.String())+utf8.RuneCountInString(line) > budget {
			break
		}
		b.WriteString(line)
	}
	b.WriteString(resultsFooter)
	return b.String()
}

// formatError renders a failed search for the user.
func formatError(err error) string {
	reason := "the search failed"
	var driverErr *models.DriverInitializationError
	var scrapeErr *models.ScrapeError
	switch {
	case errors.As(err, &driverErr):
		reason = "the search browser could not be started"
	case errors.As(err, &scrapeErr) && scrapeErr.Code == models.ErrCodeTimeout:
		reason = "the search timed out"
	}

	detail := err.Error()
	if utf8.RuneCountInString(detail) > maxErrorLen {
		detail = string([]rune(detail)[:maxErrorLen]) + "…"
	}
	return fmt.Sprintf("❌ Search failed: %s.\n\n<b>Error:</b>\n<pre>%s</pre>",
		reason, tgbotapi.EscapeText(tgbotapi.ModeHTML, detail))
}
