package openai

import (
	"fmt"
	"strings"

	"github.com/unclebandit/outreach-backend/internal/model"
)

const systemPrompt = `You are an expert B2B cold email copywriter. Output only valid JSON with "subject" and "body".`

// BuildPrompt writes the user prompt for one draft.
func BuildPrompt(req model.DraftRequest) string {
	var b strings.Builder
	tone := req.Tone
	if tone == "" {
		tone = "professional"
	}
	objective := req.Context
	if objective == "" {
		objective = "General outreach"
	}

	fmt.Fprintf(&b, "Write a %s email for %s outreach.\n\n", tone, useCaseLabel(req.UseCase))
	fmt.Fprintf(&b, "CAMPAIGN OBJECTIVE: %s\n\n", objective)
	if req.Seed > 0 {
		fmt.Fprintf(&b, "Variation seed: %d. Vary the subject style and the opening so drafts differ.\n\n", req.Seed)
	}

	if req.Reference != "" {
		fmt.Fprintf(&b, "REFERENCE STORY: %s\n", req.Reference)
		b.WriteString("When you mention that client, write {{reference_company}}. Never use {{company}} for the reference client.\n\n")
	} else {
		b.WriteString("No reference story is provided. Do not mention any past client and do not use {{reference_company}}.\n\n")
	}

	switch req.UseCase {
	case model.UseCaseFollowUp:
		b.WriteString("The prospect has not replied. Re-engage in 2-3 sentences with a fresh angle.\n")
		if req.OriginalEmail != "" {
			fmt.Fprintf(&b, "Original email (do not repeat it):\n%s\n", req.OriginalEmail)
		}
	case model.UseCaseReply:
		b.WriteString("The prospect replied. Answer their message directly and propose a concrete next step.\n")
		if req.OriginalEmail != "" {
			fmt.Fprintf(&b, "Their reply:\n%s\n", req.OriginalEmail)
		}
	default:
		b.WriteString("This is the first email. Open with something specific to {{company}} or {{position}}.\n")
	}

	b.WriteString("\nREQUIREMENTS:\n")
	b.WriteString("- Subject under 60 characters.\n")
	b.WriteString("- Body of 3-4 short paragraphs, under 150 words.\n")
	b.WriteString("- Use placeholders exactly as {{name}}, {{company}}, {{position}}, {{valueProposition}}, {{senderName}}.\n")
	b.WriteString("- No links. End with a low-friction question.\n")
	if req.SenderName != "" {
		fmt.Fprintf(&b, "- Sign off as %s.\n", req.SenderName)
	}
	b.WriteString(`Output ONLY JSON: {"subject": "...", "body": "..."}`)
	return b.String()
}

func useCaseLabel(u model.UseCase) string {
	switch u {
	case model.UseCaseFollowUp:
		return "follow-up"
	case model.UseCaseReply:
		return "reply"
	default:
		return "initial"
	}
}
