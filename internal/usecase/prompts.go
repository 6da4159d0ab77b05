package usecase

import (
	"fmt"
	"strings"

	"NewsDigest/internal/domain"
)

const synthesisSystemPrompt = `You summarize AI and technology news articles and videos for a daily digest.

Write a concise summary of 2-3 sentences that captures the key points, the main takeaway and why it matters.
The content may be a video transcript or a blog post. Readers follow AI research, product updates and industry news.
Use clear, professional language. Do not add opinions or speculation.
You may propose a shorter digest title when the original title is too long.`

const synthesisUserTemplate = `Create a digest entry for this content:

Title: %s
Source: %s
URL: %s

Content:
%s

Respond with ONLY a valid JSON object (no other text) in this exact format:
{"digest_title": "short punchy title", "summary": "2-3 sentence summary of key points"}

- digest_title: a short, relevant title (max 200 characters)
- summary: a 2-3 sentence summary of the key points`

const curatorSystemPrompt = `You curate AI and technology news for one reader.

Rank the digest items by how relevant they are to the reader's profile.
Give every item a relevance score between 0.0 and 1.0 and a rank (1 = most relevant).
Favour items matching the interests and especially the focus areas.
Push items about excluded topics to the bottom with low scores.
Take the quality and importance of the content into account.

Respond with ONLY a valid JSON object. No other text.`

const curatorUserTemplate = `User Profile:
Name: %s
Interests: %s
Focus Areas: %s
Exclude: %s

Digest items to rank (ID is the digest_id to use in your response):
%s

Respond with this exact JSON format:
{"ranked_articles": [{"digest_id": <id>, "rank": <1-based rank>, "score": <0.0-1.0>, "relevance_reason": "<brief reason>"}, ...], "total_processed": <number of items>}

Include ALL digest items in ranked_articles, ordered by relevance (rank 1 = most relevant).`

const teaserSystemPrompt = `You write the teaser paragraph of a daily digest email.

Write 2-3 sentences describing what is in today's digest.
Mention only themes and topics that appear in the listed articles and refer to the reader's interests where relevant.
Keep it natural and inviting without hype. Do not include a greeting or a sign-off.

Respond with ONLY the teaser text. No quotes, labels or formatting.`

const teaserUserTemplate = `User interests: %s

Article titles in today's digest:
%s

Write the teaser paragraph:`

const truncationMarker = "\n\n[Content truncated for length...]"

func synthesisPrompt(item domain.CandidateItem, content string) string {
	return fmt.Sprintf(synthesisUserTemplate, item.Title, item.SourceName, item.OriginID, content)
}

func curatorPrompt(profile domain.UserProfile, entries []domain.DigestEntry, excerpt int) string {
	return fmt.Sprintf(curatorUserTemplate,
		profile.Name,
		strings.Join(profile.Interests, ", "),
		joinOrNone(profile.FocusAreas),
		joinOrNone(profile.ExcludeTopics),
		formatCandidates(entries, excerpt),
	)
}

func teaserPrompt(profile domain.UserProfile, articles []domain.DigestArticle, maxTitles int) string {
	lines := make([]string, 0, maxTitles+1)
	for i, a := range articles {
		if i == maxTitles {
			lines = append(lines, fmt.Sprintf("... and %d more", len(articles)-maxTitles))
			break
		}
		lines = append(lines, "- "+a.Title)
	}
	return fmt.Sprintf(teaserUserTemplate, strings.Join(profile.Interests, ", "), strings.Join(lines, "\n"))
}

func formatCandidates(entries []domain.DigestEntry, excerpt int) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] ID: %d\n", i+1, e.ID)
		fmt.Fprintf(&b, "    Title: %s\n", e.Title)
		fmt.Fprintf(&b, "    Source: %s\n", e.SourceName)
		fmt.Fprintf(&b, "    Summary: %s", excerptOf(e.Summary, excerpt))
	}
	return b.String()
}

func excerptOf(text string, limit int) string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

// truncateContent caps text at budget characters and appends the truncation marker.
func truncateContent(text string, budget int) string {
	runes := []rune(text)
	if budget <= 0 || len(runes) <= budget {
		return text
	}
	return string(runes[:budget]) + truncationMarker
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "None"
	}
	return strings.Join(values, ", ")
}
