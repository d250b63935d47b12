package decision

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Parse extracts an action from free provider text. It tries, in order: the
// whole text as JSON, the first JSON object embedded in it (fences
// allowed), "key: value" lines, and finally action keywords in prose. The
// result is still raw and must go through Sanitize.
func Parse(text string) (Response, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Response{}, fmt.Errorf("%w: empty text", ErrUnparseable)
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(text), &m); err == nil {
		if r, ok := fromMap(m); ok {
			return r, nil
		}
	}
	if obj := extractJSONObject(text); obj != "" {
		m = nil
		if err := json.Unmarshal([]byte(obj), &m); err == nil {
			if r, ok := fromMap(m); ok {
				return r, nil
			}
		}
	}
	if r, ok := parseKeyValues(text); ok {
		return r, nil
	}
	if r, ok := parseProse(text); ok {
		return r, nil
	}
	return Response{}, fmt.Errorf("%w: %.80q", ErrUnparseable, text)
}

func extractJSONObject(s string) string {
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			s = rest[:end]
		}
	}
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	end := strings.LastIndexByte(s, '}')
	if end <= start {
		return ""
	}
	return strings.TrimSpace(s[start : end+1])
}

var (
	actionKeys    = []string{"action", "move", "decision"}
	amountKeys    = []string{"amount", "raise_to", "raiseto", "raise_amount", "size", "bet"}
	reasoningKeys = []string{"reasoning", "reason", "explanation", "rationale"}
)

func lookup(m map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		for mk, v := range m {
			if strings.EqualFold(mk, k) && v != nil {
				return v, true
			}
		}
	}
	return nil, false
}

func fromMap(m map[string]any) (Response, bool) {
	raw, ok := lookup(m, actionKeys)
	if !ok {
		return Response{}, false
	}
	action, ok := raw.(string)
	if !ok || strings.TrimSpace(action) == "" {
		return Response{}, false
	}

	r := Response{Action: strings.ToLower(strings.TrimSpace(action))}
	if v, ok := lookup(m, amountKeys); ok {
		r.Amount = toInt(v)
	}
	// "raise to 300" in the action field itself.
	if kind, _ := normalizeAction(r.Action); kind == "" {
		if pr, ok := parseProse(r.Action); ok {
			r.Action = pr.Action
			if r.Amount == nil {
				r.Amount = pr.Amount
			}
		}
	}
	if v, ok := lookup(m, reasoningKeys); ok {
		if s, ok := v.(string); ok {
			r.Reasoning = s
		}
	}
	return r, true
}

func toInt(v any) *int {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		n := saturate(math.Round(x))
		return &n
	case string:
		x = strings.TrimSpace(strings.ReplaceAll(x, ",", ""))
		if n, err := strconv.Atoi(x); err == nil {
			return &n
		}
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return toInt(f)
		}
	}
	return nil
}

// saturate converts x to int, pinning values outside the int range to its
// bounds so oversized amounts still clamp to the top of a raise range.
func saturate(x float64) int {
	switch {
	case x >= math.MaxInt:
		return math.MaxInt
	case x <= math.MinInt:
		return math.MinInt
	}
	return int(x)
}

var keyValueLine = regexp.MustCompile(`^\s*[-*]?\s*"?([A-Za-z_]+)"?\s*[:=]\s*(.+?)\s*,?\s*$`)

// parseKeyValues handles YAML-ish replies such as "action: raise\namount: 300".
func parseKeyValues(text string) (Response, bool) {
	m := make(map[string]any)
	for _, line := range strings.Split(text, "\n") {
		match := keyValueLine.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		key := strings.ToLower(match[1])
		if _, seen := m[key]; !seen {
			m[key] = strings.Trim(match[2], `"'`)
		}
	}
	return fromMap(m)
}

var (
	proseAction = regexp.MustCompile(`(?i)\b(all[\s-]?in|shove|fold|check|call|raise|bet)(?:s|ing|ed)?\b`)
	proseNumber = regexp.MustCompile(`\d[\d,]*`)
)

// parseProse picks the last action keyword in the text, since reasoning
// usually precedes the conclusion. A raise takes the first number after it.
func parseProse(text string) (Response, bool) {
	matches := proseAction.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return Response{}, false
	}
	last := matches[len(matches)-1]
	word := strings.ToLower(text[last[2]:last[3]])

	r := Response{Reasoning: strings.TrimSpace(text)}
	switch {
	case strings.HasPrefix(word, "all"):
		r.Action = "allin"
	case word == "shove":
		r.Action = "allin"
	case word == "bet":
		r.Action = "raise"
	default:
		r.Action = word
	}
	if r.Action == "raise" {
		if num := proseNumber.FindString(text[last[1]:]); num != "" {
			r.Amount = toInt(num)
		}
	}
	return r, true
}
