package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"PstrykSentinel/internal/calculator"
	"PstrykSentinel/internal/coordinator"
	"PstrykSentinel/internal/model"
)

const maxListedHours = 6

// FormatPriceReport renders both directions of a snapshot for Telegram.
func FormatPriceReport(snap *model.PriceSnapshot) string {
	if snap == nil {
		return "⏳ No price data yet."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("⚡ <b>Pstryk prices</b> | %s\n", snap.GeneratedAt.Format("2006-01-02 15:04")))
	if snap.Stale {
		b.WriteString(fmt.Sprintf("⚠️ Using stale data (retrieved %s)\n", snap.RetrievedAt.Format("2006-01-02 15:04")))
	}
	for _, dir := range model.Directions {
		b.WriteString("\n")
		writeDirection(&b, snap.Direction(dir))
	}
	return b.String()
}

func writeDirection(b *strings.Builder, ds *model.DirectionSnapshot) {
	title := "Buy"
	if ds.Direction == model.DirectionSell {
		title = "Sell"
	}
	b.WriteString(fmt.Sprintf("💡 <b>%s</b>\n", title))

	if ds.CurrentPrice == nil {
		b.WriteString("  Current: n/a\n")
	} else {
		b.WriteString(fmt.Sprintf("  Current (%02d:00): %s%s\n", ds.CurrentPrice.Hour(), formatPrice(ds.CurrentPrice.Price), flag(ds)))
		if pos, ok := dayPosition(ds); ok {
			b.WriteString(fmt.Sprintf("  Position in today's range: %.0f%%\n", pos*100))
		}
	}
	if ds.NextHourPrice != nil {
		b.WriteString(fmt.Sprintf("  Next (%02d:00): %s\n", ds.NextHourPrice.Hour(), formatPrice(ds.NextHourPrice.Price)))
	}
	if avg, err := calculator.Mean(todayPrices(ds)); err == nil {
		b.WriteString(fmt.Sprintf("  Today's average: %s\n", formatPrice(avg)))
	}
	b.WriteString(fmt.Sprintf("  🟢 Cheap: %s\n", formatHours(ds.CheapHours)))
	b.WriteString(fmt.Sprintf("  🔴 Expensive: %s\n", formatHours(ds.ExpensiveHours)))
	if ds.PricesTomorrow.IsEmpty() {
		b.WriteString("  Tomorrow: not published yet\n")
	}
}

func flag(ds *model.DirectionSnapshot) string {
	switch {
	case ds.IsCheap:
		return " 🟢"
	case ds.IsExpensive:
		return " 🔴"
	default:
		return ""
	}
}

func todayPrices(ds *model.DirectionSnapshot) []decimal.Decimal {
	prices := make([]decimal.Decimal, len(ds.PricesToday.Points))
	for i, p := range ds.PricesToday.Points {
		prices[i] = p.Price
	}
	return prices
}

func dayPosition(ds *model.DirectionSnapshot) (float64, bool) {
	low, high, err := calculator.DayRange(todayPrices(ds))
	if err != nil {
		return 0, false
	}
	pos, err := calculator.RangePosition(ds.CurrentPrice.Price, low, high)
	if err != nil {
		return 0, false
	}
	return pos, true
}

func formatPrice(p decimal.Decimal) string {
	return p.StringFixed(4) + " PLN/kWh"
}

func formatHours(hours []model.HourEntry) string {
	if len(hours) == 0 {
		return "none"
	}
	parts := make([]string, 0, maxListedHours+1)
	for i, h := range hours {
		if i == maxListedHours {
			parts = append(parts, fmt.Sprintf("+%d more", len(hours)-maxListedHours))
			break
		}
		parts = append(parts, h.Time.Format("Mon 15:04"))
	}
	return strings.Join(parts, ", ")
}

// FormatStatus renders coordinator health.
func FormatStatus(st coordinator.Status) string {
	var b strings.Builder
	b.WriteString("📦 <b>Refresh status</b>\n\n")
	b.WriteString(fmt.Sprintf("State: %s\n", st.State))
	if st.LastOutcome != "" {
		b.WriteString(fmt.Sprintf("Last outcome: %s\n", st.LastOutcome))
	}
	b.WriteString(fmt.Sprintf("Cycles: %d\n", st.Cycles))
	b.WriteString(fmt.Sprintf("Last attempt: %s\n", formatTime(st.LastAttemptAt)))
	b.WriteString(fmt.Sprintf("Last success: %s\n", formatTime(st.LastSuccessAt)))
	if st.AuthFailed {
		b.WriteString("🔑 API token rejected\n")
	}
	if st.LastError != "" {
		b.WriteString(fmt.Sprintf("Last error: %s\n", html.EscapeString(st.LastError)))
	}
	return b.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format("2006-01-02 15:04:05")
}

// FormatAuthAlert is sent when the API starts rejecting the token.
func FormatAuthAlert(lastErr string) string {
	return fmt.Sprintf("🔑 <b>Pstryk API token rejected</b>\n\nPrices are no longer refreshed. "+
		"Update pstryk.api_token and restart.\n\n<code>%s</code>", html.EscapeString(lastErr))
}

// FormatRecovered is sent on the first good cycle after an auth failure.
func FormatRecovered(outcome model.State) string {
	return fmt.Sprintf("✅ <b>Pstryk API reachable again</b> (outcome: %s)", outcome)
}

// HelpText lists the supported bot commands.
const HelpText = "Commands:\n/prices - current prices and cheap/expensive hours\n/refresh - fetch prices now\n/status - refresh status"
