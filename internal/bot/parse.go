package bot

import (
	"fmt"
	"strconv"
	"strings"

	"newsrelay/internal/model"
)

const (
	defaultStatsDays = 7
	maxStatsDays     = 90
)

// RuleArgs holds the parsed arguments of /addrule.
type RuleArgs struct {
	Action    model.Action
	Priority  int
	MatchType model.MatchType
	Keyword   string
}

// ParseRuleCommand parses arguments for /addrule.
// Format: <publish|reject|moderation> <priority> [-re] <keyword...>
func ParseRuleCommand(args string) (RuleArgs, error) {
	parts := strings.Fields(args)
	if len(parts) < 3 {
		return RuleArgs{}, fmt.Errorf("usage: <publish|reject|moderation> <priority> [-re] <keyword>")
	}

	action := model.Action(strings.ToLower(parts[0]))
	if !action.Valid() {
		return RuleArgs{}, fmt.Errorf("invalid action %q, use: publish, reject, moderation", parts[0])
	}

	priority, err := strconv.Atoi(parts[1])
	if err != nil {
		return RuleArgs{}, fmt.Errorf("invalid priority %q", parts[1])
	}

	matchType := model.MatchSubstring
	rest := parts[2:]
	if rest[0] == "-re" {
		matchType = model.MatchRegex
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return RuleArgs{}, fmt.Errorf("keyword is required")
	}

	return RuleArgs{
		Action:    action,
		Priority:  priority,
		MatchType: matchType,
		Keyword:   strings.Join(rest, " "),
	}, nil
}

// ParseIDArg extracts a moderation item ID from a command argument string.
func ParseIDArg(args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "", fmt.Errorf("item ID is required")
	}
	return fields[0], nil
}

// ParseDaysArg parses the optional day count of /stats.
func ParseDaysArg(args string) (int, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return defaultStatsDays, nil
	}
	days, err := strconv.Atoi(strings.Fields(s)[0])
	if err != nil || days < 1 || days > maxStatsDays {
		return 0, fmt.Errorf("days must be between 1 and %d", maxStatsDays)
	}
	return days, nil
}

// ParseActionArg parses the argument of /default.
func ParseActionArg(args string) (model.Action, error) {
	a := model.Action(strings.ToLower(strings.TrimSpace(args)))
	if !a.Valid() {
		return "", fmt.Errorf("usage: /default <publish|reject|moderation>")
	}
	return a, nil
}
