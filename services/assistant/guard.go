package assistant

import (
	"regexp"
	"sort"
	"strings"
)

// InjectionKind names a family of prompt injection patterns
type InjectionKind string

const (
	InjectionSystemPromptLeak    InjectionKind = "system_prompt_leak"
	InjectionRoleManipulation    InjectionKind = "role_manipulation"
	InjectionInstructionOverride InjectionKind = "instruction_override"
	InjectionJailbreak           InjectionKind = "jailbreak"
	InjectionDelimiterAttack     InjectionKind = "delimiter_attack"
)

// rejectThreshold is the confidence at or above which a message is refused
const rejectThreshold = 0.8

type injectionRule struct {
	kind       InjectionKind
	confidence float64
	patterns   []*regexp.Regexp
}

var injectionRules = []injectionRule{
	{
		kind:       InjectionSystemPromptLeak,
		confidence: 0.9,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|all|above|prior)\s+(instructions?|prompts?|commands?)`),
			regexp.MustCompile(`(?i)(show|reveal|print|repeat)\s+(me\s+)?(your|the)\s+(system|original|initial|hidden)\s+(prompt|instructions?)`),
			regexp.MustCompile(`(?i)what\s+(is|are|was|were)\s+(your|the)\s+(system|original|initial)\s+(prompt|instructions?)`),
		},
	},
	{
		kind:       InjectionRoleManipulation,
		confidence: 0.85,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)assume\s+(the\s+)?(role|identity)\s+of`),
			regexp.MustCompile(`(?i)pretend\s+(to\s+)?be\s+(a|an)\b`),
			regexp.MustCompile(`(?i)from\s+now\s+on[,]?\s+(you|your)\s+(are|will)`),
		},
	},
	{
		kind:       InjectionInstructionOverride,
		confidence: 0.9,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)disregard\s+(all|previous|above|any)\s+(instructions?|rules|commands?)`),
			regexp.MustCompile(`(?i)override\s+(all|previous|system)\s+(instructions?|rules|settings?)`),
			regexp.MustCompile(`(?i)forget\s+(everything|all\s+previous|what\s+you\s+learned)`),
		},
	},
	{
		kind:       InjectionJailbreak,
		confidence: 0.95,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bDAN\s+mode`),
			regexp.MustCompile(`(?i)developer\s+mode`),
			regexp.MustCompile(`(?i)jailbreak`),
			regexp.MustCompile(`(?i)without\s+(any|ethical|moral)\s+(restrictions?|limitations?|guidelines?)`),
		},
	},
	{
		kind:       InjectionDelimiterAttack,
		confidence: 0.8,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(\[/?SYSTEM\]|\[/?ASSISTANT\])`),
			regexp.MustCompile(`(<\|system\|>|<\|assistant\|>|<\|end\|>)`),
			regexp.MustCompile(`###\s*(SYSTEM|ASSISTANT|INSTRUCTION)`),
		},
	},
}

// DetectInjection returns the highest-confidence injection family matched by
// text, or ok=false when nothing reaches the rejection threshold.
func DetectInjection(text string) (kind InjectionKind, ok bool) {
	best := 0.0
	for _, rule := range injectionRules {
		if rule.confidence < rejectThreshold || rule.confidence <= best {
			continue
		}
		for _, p := range rule.patterns {
			if p.MatchString(text) {
				kind, best = rule.kind, rule.confidence
				break
			}
		}
	}
	return kind, best > 0
}

// Redaction placeholders
const (
	redactedCard   = "[REDACTED_CARD]"
	redactedEmail  = "[REDACTED_EMAIL]"
	redactedSecret = "[REDACTED_SECRET]"
)

var (
	emailPattern     = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)
	cardPattern      = regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)
	cardDigitsFilter = strings.NewReplacer(" ", "", "-", "")

	// Only prefixes specific enough to never hit order text
	secretPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bsk-(?:proj-|ant-)?[A-Za-z0-9_\-]{20,}`),
		regexp.MustCompile(`\b[sr]k_(?:live|test)_[A-Za-z0-9]{16,}\b`),
		regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
		regexp.MustCompile(`\bAIza[0-9A-Za-z\-_]{35}\b`),
		regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}\b`),
		regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9\-]{10,}`),
		regexp.MustCompile(`\beyJ[A-Za-z0-9_\-]+\.eyJ[A-Za-z0-9_\-]+\.[A-Za-z0-9_\-]+`),
		regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`),
	}
)

type redactSpan struct {
	start, end  int
	placeholder string
}

// RedactPII masks email addresses, Luhn-valid card numbers and well-known
// credential formats before text leaves the service. It returns the redacted
// text and the number of spans replaced.
func RedactPII(text string) (string, int) {
	var spans []redactSpan

	for _, p := range secretPatterns {
		for _, m := range p.FindAllStringIndex(text, -1) {
			spans = append(spans, redactSpan{m[0], m[1], redactedSecret})
		}
	}
	for _, m := range cardPattern.FindAllStringIndex(text, -1) {
		if luhnValid(cardDigitsFilter.Replace(text[m[0]:m[1]])) {
			spans = append(spans, redactSpan{m[0], m[1], redactedCard})
		}
	}
	for _, m := range emailPattern.FindAllStringIndex(text, -1) {
		spans = append(spans, redactSpan{m[0], m[1], redactedEmail})
	}
	if len(spans) == 0 {
		return text, 0
	}

	// Keep the leftmost span of any overlapping group, preferring the longer
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})
	kept := spans[:0]
	lastEnd := -1
	for _, s := range spans {
		if s.start < lastEnd {
			continue
		}
		kept = append(kept, s)
		lastEnd = s.end
	}

	// Replace from the end so earlier offsets stay valid
	out := text
	for i := len(kept) - 1; i >= 0; i-- {
		s := kept[i]
		out = out[:s.start] + s.placeholder + out[s.end:]
	}
	return out, len(kept)
}

func luhnValid(digits string) bool {
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
