package bot

import (
	"fmt"
	"strings"

	"newsrelay/internal/model"
)

const (
	statusActive   = "active"
	statusInactive = "inactive"
	previewLimit   = 700
)

// FormatQueueItem formats a moderation item for review.
func FormatQueueItem(item model.ModerationItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Item %s\nQueued: %s\n", item.ID, item.Created().Format("2006-01-02 15:04"))
	if item.FilterID != model.ZeroRuleID {
		fmt.Fprintf(&b, "Rule: %s\n", item.FilterID)
	} else {
		b.WriteString("Rule: default action\n")
	}
	if item.Media != nil {
		fmt.Fprintf(&b, "Media: %s\n", *item.Media)
	}
	b.WriteString("\n")
	b.WriteString(preview(item.Text))
	return b.String()
}

// FormatRules formats the rule set in evaluation order.
func FormatRules(rules []model.FilterRule, settings model.Settings) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Default action: %s\n", settings.DefaultAction)
	if len(rules) == 0 {
		b.WriteString("\nNo rules yet. Use /addrule to add one.")
		return b.String()
	}
	b.WriteString("\nRules (highest priority first):\n")
	for _, r := range rules {
		status := statusActive
		if !r.Active {
			status = statusInactive
		}
		fmt.Fprintf(&b, "  [%d] %s %q (%s) [%s]\n", r.Priority, r.Action, r.Keyword, r.MatchType, status)
	}
	return b.String()
}

// FormatStats formats daily counters and filter hits.
func FormatStats(days []model.DailyAggregate, hits []model.FilterAggregate) string {
	var b strings.Builder
	b.WriteString("Date        pub  rej  mod  flt\n")
	var total model.DailyAggregate
	for _, d := range days {
		fmt.Fprintf(&b, "%s %4d %4d %4d %4d\n", d.Date, d.Published, d.Rejected, d.Moderated, d.Filtered)
		total.Published += d.Published
		total.Rejected += d.Rejected
		total.Moderated += d.Moderated
		total.Filtered += d.Filtered
	}
	fmt.Fprintf(&b, "Total      %4d %4d %4d %4d\n", total.Published, total.Rejected, total.Moderated, total.Filtered)

	counts := make(map[string]int)
	var notes []string
	for _, day := range hits {
		for _, h := range day.Items {
			if _, ok := counts[h.Note]; !ok {
				notes = append(notes, h.Note)
			}
			counts[h.Note] += h.Count
		}
	}
	if len(notes) == 0 {
		return b.String()
	}
	b.WriteString("\nFilter hits:\n")
	for _, n := range notes {
		fmt.Fprintf(&b, "  %s: %d\n", n, counts[n])
	}
	return b.String()
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLimit {
		return s
	}
	return string(r[:previewLimit-1]) + "…"
}
