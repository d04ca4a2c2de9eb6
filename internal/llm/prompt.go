package llm

import (
	"fmt"
	"unicode/utf8"

	"github.com/ppiankov/claimgate/internal/model"
)

// PromptBuilder wraps a normalized claim in the instruction template for
// its mode
type PromptBuilder struct {
	minLength int
	maxLength int
}

// NewPromptBuilder creates a builder accepting claims of [minLength, maxLength] runes
func NewPromptBuilder(minLength, maxLength int) *PromptBuilder {
	return &PromptBuilder{minLength: minLength, maxLength: maxLength}
}

// CheckLength rejects claims outside the configured bounds
func (b *PromptBuilder) CheckLength(claim string) error {
	n := utf8.RuneCountInString(claim)
	if n < b.minLength {
		return fmt.Errorf("%w: %d characters, minimum is %d", model.ErrClaimTooShort, n, b.minLength)
	}
	if n > b.maxLength {
		return fmt.Errorf("%w: %d characters, maximum is %d", model.ErrClaimTooLong, n, b.maxLength)
	}
	return nil
}

// Build returns the prompt for mode
func (b *PromptBuilder) Build(mode model.Mode, claim string) (string, error) {
	if err := b.CheckLength(claim); err != nil {
		return "", err
	}

	switch mode {
	case model.ModeVerify:
		return fmt.Sprintf(verifyTemplate, claim), nil
	case model.ModeExpose:
		return fmt.Sprintf(exposeTemplate, claim), nil
	default:
		return "", fmt.Errorf("unknown analysis mode: %q", mode)
	}
}

const verifyTemplate = `You are an expert fact-checker. Analyze the following claim thoroughly and provide a comprehensive fact-check.

CLAIM TO ANALYZE:
"%s"

Provide your analysis in the following structured format:

ACCURACY: [True/Mostly True/Mixed/Mostly False/False/Insufficient Evidence]

CONFIDENCE: [0-100]%% (How confident are you in this assessment?)

EXPLANATION: [A detailed explanation of your fact-check, including:
- What aspects of the claim are accurate or inaccurate
- What evidence supports or contradicts the claim
- Any important context or nuances
- Why you reached this conclusion]

SOURCES: [List 2-4 reliable sources that support your analysis, one per line. Use brief descriptions rather than URLs]

GUIDELINES:
- Be objective and evidence-based
- Consider multiple perspectives
- Distinguish between facts and opinions
- Note any missing context that affects accuracy
- If the claim is too vague or subjective to fact-check, say so
- For claims about current events, acknowledge if information may be rapidly evolving
- Be precise about what exactly is true or false in complex claims
`

const exposeTemplate = `You are an expert investigative analyst. Your task is to AGGRESSIVELY attempt to debunk and disprove the following claim. Try your absolute best to find flaws, contradictions, or evidence against it.

CLAIM TO EXPOSE:
"%s"

INSTRUCTIONS:
1. First, try your hardest to debunk this claim using:
   - Scientific evidence that contradicts it
   - Logical fallacies in the reasoning
   - Historical counterexamples
   - Expert consensus that opposes it
   - Data that disproves it

2. Only if you CANNOT debunk the claim (it appears to be well-supported), switch to supporting it with strong evidence.

Provide your analysis in the following structured format:

EXPOSE_TYPE: [DEBUNKED/SUPPORTED]

CONFIDENCE: [0-100]%% (How confident are you in your analysis?)

ANALYSIS: [A detailed analysis explaining:
- If DEBUNKED: all the ways this claim is false, misleading, or problematic
- If SUPPORTED: why you could not debunk it and the strong evidence supporting it
- Key evidence and reasoning for your conclusion]

EVIDENCE: [List 2-4 pieces of evidence that support your analysis, one per line]

GUIDELINES:
- Be aggressive in your debunking attempt first
- Only support the claim if you genuinely cannot find credible ways to debunk it
- Distinguish between weak and strong evidence
- If the claim is partially true, focus on the problematic aspects
`
