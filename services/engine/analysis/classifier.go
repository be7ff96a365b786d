// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/inkwell-ai/inkwell/services/llm"
)

// ErrModelUnavailable indicates the classifier backend failed to load
// or is unreachable. The analyzer degrades instead of failing the
// whole document.
var ErrModelUnavailable = errors.New("classifier model unavailable")

// Verdict is the classifier's judgment for one sentence.
type Verdict struct {
	Flag        bool     `json:"flag"`
	Label       string   `json:"label"`
	Highlighted []string `json:"highlighted"`
	Explanation []string `json:"explanation"`
}

// Classifier labels sentences for bias and loaded language. The
// response is guaranteed same-length and same-order as the input;
// callers treat any length mismatch as a contract violation.
type Classifier interface {
	Classify(ctx context.Context, sentences []string) ([]Verdict, error)
}

// Bias label taxonomy. LabelNeutral marks clean sentences.
const (
	LabelNeutral         = "neutral"
	LabelFraming         = "framing"
	LabelOvergeneral     = "overgeneralization"
	LabelEmotionalAttack = "emotional_attack"
	LabelNegativeWording = "negative_wording"
	LabelAdHominem       = "ad_hominem"
	LabelMockery         = "mockery"
	LabelNegativeAnalogy = "negative_analogy"
	LabelBlameShifting   = "blame_shifting"
	LabelExtremePortray  = "extreme_portrayal"
	LabelUnverifiedClaim = "unverified_claim"
	LabelProfanity       = "profanity"
	LabelUnavailable     = "unavailable"
)

// labelExplanations maps each label to a reader-facing description
// attached to flagged sentences.
var labelExplanations = map[string]string{
	LabelFraming:         "loaded wording or deliberate framing of a contested point",
	LabelOvergeneral:     "hasty generalization or leap from a single case to a group",
	LabelEmotionalAttack: "emotionally charged or exaggerated denunciation",
	LabelNegativeWording: "gratuitously negative word choice",
	LabelAdHominem:       "attack on a person or group rather than the argument",
	LabelMockery:         "mockery, sarcasm, or derision",
	LabelNegativeAnalogy: "comparison to a negatively charged object or event",
	LabelBlameShifting:   "wholesale shifting of responsibility onto the other side",
	LabelExtremePortray:  "extreme portrayal of a situation or person",
	LabelUnverifiedClaim: "claim whose accuracy is unclear or hard to verify",
	LabelProfanity:       "profanity or abusive language",
}

// ExplanationFor returns the reader-facing description of a label, or
// "" for labels without one (neutral, unavailable).
func ExplanationFor(label string) string {
	return labelExplanations[label]
}

const classifierSystemPrompt = `You are a language analyst reviewing draft news copy sentence by sentence.
For each input sentence decide whether it contains biased or loaded language.
Allowed labels: framing, overgeneralization, emotional_attack, negative_wording,
ad_hominem, mockery, negative_analogy, blame_shifting, extreme_portrayal,
unverified_claim, profanity, neutral.
Set "flag" true only when the label is not neutral. "highlighted" lists the exact
problematic phrases copied from the sentence; it is empty for neutral sentences.
Respond with a JSON object of the form
{"results": [{"flag": bool, "label": string, "highlighted": [string]}]}
with exactly one result per input sentence, in input order, and nothing else.`

// classifyResponse is the JSON shape the model must return.
type classifyResponse struct {
	Results []struct {
		Flag        bool     `json:"flag"`
		Label       string   `json:"label"`
		Highlighted []string `json:"highlighted"`
	} `json:"results"`
}

// LLMClassifier implements Classifier over a JSON-mode chat model.
//
// A fine-tuned sequence classifier can replace this behind the same
// interface without touching the analyzer.
type LLMClassifier struct {
	client llm.Client
}

var _ Classifier = (*LLMClassifier)(nil)

// NewLLMClassifier builds a classifier over the given model client.
func NewLLMClassifier(client llm.Client) *LLMClassifier {
	return &LLMClassifier{client: client}
}

// Classify implements Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, sentences []string) ([]Verdict, error) {
	if len(sentences) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(sentences)
	if err != nil {
		return nil, fmt.Errorf("marshal sentences: %w", err)
	}

	var user strings.Builder
	user.WriteString("Sentences to review, as a JSON array:\n")
	user.Write(payload)

	temp := float32(0)
	req := llm.UserMessage(classifierSystemPrompt, user.String())
	req.Temperature = &temp

	resp, err := llm.CompleteInto[classifyResponse](ctx, c.client, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if len(resp.Results) != len(sentences) {
		return nil, fmt.Errorf("classifier returned %d results for %d sentences",
			len(resp.Results), len(sentences))
	}

	verdicts := make([]Verdict, len(resp.Results))
	for i, r := range resp.Results {
		label := r.Label
		if label == "" {
			label = LabelNeutral
		}
		v := Verdict{
			Flag:        r.Flag,
			Label:       label,
			Highlighted: r.Highlighted,
		}
		if v.Highlighted == nil {
			v.Highlighted = []string{}
		}
		if expl := ExplanationFor(label); expl != "" {
			v.Explanation = []string{expl}
		} else {
			v.Explanation = []string{}
		}
		verdicts[i] = v
	}
	return verdicts, nil
}
