package agents

import "strings"

// QueryOptimizer turns a topic into 6-10 query variants for one strategy.
type QueryOptimizer func(topic string, rctx ResearchContext) []string

// noiseWords are stripped before composing variants; they add nothing to a
// federated search query.
var noiseWords = map[string]struct{}{
	"please": {}, "help": {}, "how": {}, "do": {}, "i": {}, "can": {},
	"you": {}, "me": {}, "my": {}, "the": {}, "a": {}, "an": {}, "is": {},
	"are": {}, "was": {}, "were": {}, "be": {}, "what": {}, "about": {},
}

// cleanTopic removes noise words, falling back to the original when
// filtering would gut the topic.
func cleanTopic(topic string) string {
	words := strings.Fields(topic)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if _, noisy := noiseWords[strings.ToLower(w)]; noisy && len(words) > 2 {
			continue
		}
		kept = append(kept, w)
	}
	cleaned := strings.Join(kept, " ")
	if len(cleaned) < len(topic)/3 {
		return topic
	}
	return cleaned
}

func levelSuffix(rctx ResearchContext) string {
	switch rctx.UserLevel {
	case "beginner":
		return "for beginners"
	case "advanced":
		return "advanced"
	default:
		return "introduction"
	}
}

func generalOptimizer(topic string, rctx ResearchContext) []string {
	t := cleanTopic(topic)
	return []string{
		t,
		t + " overview",
		t + " explained",
		"what is " + t,
		t + " key concepts",
		t + " guide",
		t + " " + levelSuffix(rctx),
	}
}

func academicOptimizer(topic string, rctx ResearchContext) []string {
	t := cleanTopic(topic)
	variants := []string{
		t + " research paper",
		t + " peer reviewed study",
		t + " journal article",
		t + " literature review",
		t + " methodology",
		t + " empirical findings",
	}
	if rctx.UserLevel == "advanced" {
		variants = append(variants, t+" state of the art survey")
	}
	return variants
}

func computationalOptimizer(topic string, rctx ResearchContext) []string {
	t := cleanTopic(topic)
	return []string{
		t + " formula",
		t + " algorithm",
		t + " mathematical model",
		t + " calculation example",
		t + " data analysis",
		t + " technical specification",
	}
}

func videoOptimizer(topic string, rctx ResearchContext) []string {
	t := cleanTopic(topic)
	variants := []string{
		t + " tutorial",
		t + " video course",
		t + " lecture",
		t + " explained video",
		t + " walkthrough",
		t + " crash course",
	}
	if rctx.LearningStyle == "visual" {
		variants = append(variants, t+" animated explanation")
	}
	return variants
}

func communityOptimizer(topic string, rctx ResearchContext) []string {
	t := cleanTopic(topic)
	return []string{
		t + " discussion",
		t + " reddit",
		t + " forum",
		t + " experiences",
		t + " pros and cons",
		t + " common mistakes",
		t + " best practices",
	}
}
