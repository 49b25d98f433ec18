package interview

import (
	"fmt"
	"strings"
)

var Difficulties = []string{"beginner", "intermediate", "advanced"}

const DefaultDifficulty = "intermediate"

// PromptBuilder renders the prompts sent to the LLM for each interview step.
type PromptBuilder struct {
	difficulty  string
	domainNames map[string]string // domain id -> display name
}

type PromptConfig struct {
	Difficulty  string
	DomainNames map[string]string
}

func NewPromptBuilder(cfg PromptConfig) *PromptBuilder {
	level := cfg.Difficulty
	if level == "" {
		level = DefaultDifficulty
	}
	return &PromptBuilder{difficulty: level, domainNames: cfg.DomainNames}
}

// ValidDifficulty reports whether level is a known difficulty.
func ValidDifficulty(level string) bool {
	for _, d := range Difficulties {
		if d == level {
			return true
		}
	}
	return false
}

func (p *PromptBuilder) Difficulty() string { return p.difficulty }

func (p *PromptBuilder) difficultyDirective() string {
	switch p.difficulty {
	case "beginner":
		return "## Difficulty: Beginner\nAsk about definitions and fundamentals. Give hints when the candidate is stuck."
	case "advanced":
		return "## Difficulty: Advanced\nAsk about trade-offs, failure modes and design at scale. Push back on vague answers."
	default:
		return "## Difficulty: Intermediate\nMix conceptual questions with practical scenarios. Ask one follow-up when an answer is incomplete."
	}
}

// Topic names the interview subject for the given domain ids.
func (p *PromptBuilder) Topic(domains []string) string {
	if len(domains) == 0 {
		return "software engineering"
	}
	names := make([]string, len(domains))
	for i, d := range domains {
		if n, ok := p.domainNames[d]; ok && n != "" {
			names[i] = n
		} else {
			names[i] = d
		}
	}
	return strings.Join(names, ", ")
}

// OpeningQuery is the retrieval query used before the first question.
func (p *PromptBuilder) OpeningQuery(domains []string) string {
	return fmt.Sprintf("%s interview questions on %s", p.difficulty, p.Topic(domains))
}

func (p *PromptBuilder) Opening(domains []string, context string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are starting a technical interview on %s.\n\n", p.Topic(domains))
	sb.WriteString(p.difficultyDirective())
	writeContext(&sb, context)
	sb.WriteString("\n\nGreet the candidate in one sentence and ask the first question. Ask exactly one question.")
	return sb.String()
}

func (p *PromptBuilder) Turn(domains []string, answer, context string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Technical interview on %s.\n\n", p.Topic(domains))
	sb.WriteString(p.difficultyDirective())
	writeContext(&sb, context)
	sb.WriteString("\n\n## Candidate Answer\n")
	sb.WriteString(answer)
	sb.WriteString("\n\nBriefly react to the answer, correcting anything wrong using the reference material, then ask the next question. Ask exactly one question.")
	return sb.String()
}

func (p *PromptBuilder) Feedback(domains []string, transcript string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Below is the transcript of a %s technical interview on %s.\n\n", p.difficulty, p.Topic(domains))
	sb.WriteString("## Transcript\n")
	sb.WriteString(transcript)
	sb.WriteString("\n\nAssess the candidate. List strengths, gaps with the correct explanation, and topics to study next. End with an overall rating from 1 to 5.")
	return sb.String()
}

func writeContext(sb *strings.Builder, context string) {
	if context == "" {
		return
	}
	sb.WriteString("\n\n## Reference Material\n")
	sb.WriteString(context)
}
