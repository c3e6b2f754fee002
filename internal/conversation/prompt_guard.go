package conversation

import (
	"regexp"
	"strings"
)

// GuardResult is the outcome of scanning a user message before it reaches a model.
type GuardResult struct {
	// Blocked messages are handled by the deterministic extractor and templates only.
	Blocked bool
	// Score is a heuristic risk score between 0 and 1.
	Score   float64
	Reasons []string
	// Sanitized is the text to hand to the model when not blocked.
	Sanitized string
}

type guardPattern struct {
	re     *regexp.Regexp
	reason string
	weight float64
}

const (
	guardBlockThreshold = 0.7
	guardWarnThreshold  = 0.3
)

var guardPatterns = []guardPattern{
	{regexp.MustCompile(`(?i)(ignore|disregard|forget)\s+(all\s+)?(previous|prior|above|earlier|your)\s+(instructions?|rules?|prompts?|guidelines?)`), "injection:ignore_instructions", 0.9},
	{regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|my)\s+`), "injection:role_reassignment", 0.7},
	{regexp.MustCompile(`(?i)new\s+(role|instructions?)\s*:|system\s*prompt\s*:|<<\s*sys(tem)?\s*>>`), "injection:new_role", 0.9},
	{regexp.MustCompile(`(?i)(override|bypass)\s+(your\s+)?(system|instructions?|rules?|safety|filters?|guidelines?)`), "injection:override", 0.8},
	{regexp.MustCompile(`(?i)(pretend|imagine|assume)\s+(that\s+)?(you\s+)?(are|have|don'?t\s+have)\s+(no\s+)?(rules?|restrictions?|limits?|filters?|safety)`), "injection:pretend_no_rules", 0.9},
	{regexp.MustCompile(`(?i)jailbreak|DAN\s*mode|developer\s*mode|god\s*mode`), "injection:jailbreak_keyword", 0.9},

	{regexp.MustCompile(`(?i)(reveal|show|print|repeat|tell\s+me|what\s+(is|are))\s+(your\s+)?(system\s+prompt|instructions|hidden\s+prompt|initial\s+prompt)`), "exfiltration:system_prompt", 0.8},
	{regexp.MustCompile(`(?i)(list|show|give|tell)\s+(me\s+)?(all\s+)?(the\s+)?(other\s+)?(patients?|clients?)('?s)?\s+(data|info|names?|records?|appointments?|inquiries)`), "exfiltration:patient_data", 0.7},
	{regexp.MustCompile(`(?i)\b(api|secret|refresh|oauth|database|db|gemini|google)\s*(key|token|secret|password|credential)s?\b`), "exfiltration:credentials", 0.8},
	{regexp.MustCompile(`(?i)therapist'?s?\s+(calendar\s+)?(token|credentials?|password)`), "exfiltration:calendar_credentials", 0.8},

	{regexp.MustCompile(`(?i)\[/?INST\]|\[/?SYS\]|<\|im_start\|>|<\|im_end\|>|<\|system\|>|<\|user\|>|<\|assistant\|>`), "context:special_tokens", 0.9},
	{regexp.MustCompile(`(?i)###\s*(system|instruction|human|assistant|user)\s*:`), "context:role_markers", 0.7},
	{regexp.MustCompile(`(?i)the\s+real\s+(instructions?|task|prompt)\s+(is|starts?|begins?)`), "context:real_instructions", 0.8},
	{regexp.MustCompile(`<\s*(script|iframe|object|embed|svg|form)\b`), "obfuscation:html_injection", 0.6},
	{regexp.MustCompile(`(?i)base64\s*(encode|decode|:)`), "obfuscation:encoding", 0.4},
}

var (
	specialTokenPattern = regexp.MustCompile(`(?i)\[/?INST\]|\[/?SYS\]|<\|im_start\|>|<\|im_end\|>|<\|system\|>|<\|user\|>|<\|assistant\|>`)
	roleMarkerPattern   = regexp.MustCompile(`(?i)###\s*(system|instruction|human|assistant|user)\s*:`)
	htmlTagPattern      = regexp.MustCompile(`<\s*(script|iframe|object|embed|svg|form)\b[^>]*>`)
)

// ScanMessage scores text for prompt injection and prepares a sanitized copy.
func ScanMessage(message string) GuardResult {
	if strings.TrimSpace(message) == "" {
		return GuardResult{Sanitized: message}
	}

	var reasons []string
	maxWeight := 0.0
	for _, p := range guardPatterns {
		if p.re.MatchString(message) {
			reasons = append(reasons, p.reason)
			if p.weight > maxWeight {
				maxWeight = p.weight
			}
		}
	}

	// Each extra signal adds 0.1, capped at 1.
	score := maxWeight
	if len(reasons) > 1 {
		score = min(maxWeight+float64(len(reasons)-1)*0.1, 1.0)
	}

	result := GuardResult{Score: score, Reasons: reasons, Sanitized: message}
	switch {
	case score >= guardBlockThreshold:
		result.Blocked = true
	case score >= guardWarnThreshold:
		result.Sanitized = sanitizeForLLM(message)
	}
	return result
}

func sanitizeForLLM(message string) string {
	cleaned := specialTokenPattern.ReplaceAllString(message, "")
	cleaned = roleMarkerPattern.ReplaceAllString(cleaned, "")
	cleaned = htmlTagPattern.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}
