package command

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nidhogg/linkbot/internal/shortener"
)

const (
	successColor  = 0x00ff00
	successTitle  = "URL Shortened!"
	successFooter = "Powered by your Local URL shortener"
	viaLabel      = "Your Localhost API"
)

// UsageTips is appended to every error reply.
const UsageTips = "**💡 Tips:**\n" +
	"• Make sure URLs start with http:// or https://\n" +
	"• Check that the URL is complete (e.g., https://google.com not https://google.)\n" +
	"• Custom codes must be 3-20 characters (letters, numbers, hyphens, underscores only)"

// SuccessReply renders a shortened URL as an embed.
func SuccessReply(res *shortener.Result, now time.Time) *Reply {
	return &Reply{
		Embed: &Embed{
			Title: successTitle,
			Color: successColor,
			Fields: []EmbedField{
				{Name: "Original", Value: res.OriginalURL},
				{Name: "Shortened", Value: res.ShortURL},
				{Name: "Via", Value: viaLabel, Inline: true},
				{Name: "Total Clicks", Value: strconv.Itoa(res.TotalClicks), Inline: true},
			},
			Footer:    successFooter,
			Timestamp: now.UTC(),
		},
	}
}

// ErrorReply renders any failure followed by UsageTips.
func ErrorReply(err error) *Reply {
	return &Reply{Content: errorText(err) + "\n\n" + UsageTips}
}

func errorText(err error) string {
	se, ok := shortener.AsError(err)
	if !ok || se.Kind != shortener.KindValidationFailed {
		return "❌ **Error:** " + err.Error()
	}
	if len(se.Details) == 0 {
		return "❌ **Validation Error:** Please check your input format."
	}

	lines := make([]string, 0, len(se.Details))
	for _, d := range se.Details {
		line := fmt.Sprintf("• **%s:** %s", d.Path, d.Msg)
		if d.Value != "" {
			line += fmt.Sprintf(" (You entered: \"%s\")", d.Value)
		}
		lines = append(lines, line)
	}
	return "❌ **Validation Error:**\n" + strings.Join(lines, "\n")
}
