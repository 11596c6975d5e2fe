package gemini

import "testing"

func TestParseVerdict(t *testing.T) {
	raw := `{"is_real_incident": true, "category": "Fire", "severity": "HIGH", "confidence": 0.92, "reasoning": "Visible flames and smoke."}`
	v, err := ParseVerdict(raw)
	if err != nil {
		t.Fatalf("ParseVerdict: %v", err)
	}
	if !v.IsRealIncident {
		t.Error("expected a real incident")
	}
	if v.Category != "fire" {
		t.Errorf("category = %q, want fire", v.Category)
	}
	if v.Severity != "high" {
		t.Errorf("severity = %q, want high", v.Severity)
	}
	if v.Confidence != 0.92 {
		t.Errorf("confidence = %v, want 0.92", v.Confidence)
	}
}

func TestParseVerdictCodeFence(t *testing.T) {
	raw := "```json\n{\"is_real_incident\": false, \"category\": \"other\", \"severity\": \"low\", \"confidence\": 0.3, \"reasoning\": \"Shadow, not smoke.\"}\n```"
	v, err := ParseVerdict(raw)
	if err != nil {
		t.Fatalf("ParseVerdict: %v", err)
	}
	if v.IsRealIncident {
		t.Error("expected a false alarm")
	}
	if v.Reasoning != "Shadow, not smoke." {
		t.Errorf("reasoning = %q", v.Reasoning)
	}
}

func TestParseVerdictNormalizesUnknownVocabulary(t *testing.T) {
	raw := `{"is_real_incident": true, "category": "vehicular collision", "severity": "catastrophic", "confidence": 1.7, "reasoning": "Two cars collided."}`
	v, err := ParseVerdict(raw)
	if err != nil {
		t.Fatalf("ParseVerdict: %v", err)
	}
	if v.Category != "other" {
		t.Errorf("category = %q, want other", v.Category)
	}
	if v.Severity != "low" {
		t.Errorf("severity = %q, want low", v.Severity)
	}
	if v.Confidence != 1 {
		t.Errorf("confidence = %v, want clamp to 1", v.Confidence)
	}
}

func TestParseVerdictRejectsMissingReasoning(t *testing.T) {
	if _, err := ParseVerdict(`{"is_real_incident": true, "category": "fire", "severity": "high", "confidence": 0.9, "reasoning": "  "}`); err == nil {
		t.Fatal("expected error for missing reasoning")
	}
	if _, err := ParseVerdict("not json"); err == nil {
		t.Fatal("expected error for malformed reply")
	}
}

func TestParseClassification(t *testing.T) {
	raw := `{"category": "flood", "severity": "medium", "confidence": -0.2, "reasoning": "Street flooding reported."}`
	c, err := ParseClassification(raw)
	if err != nil {
		t.Fatalf("ParseClassification: %v", err)
	}
	if c.Category != "flood" || c.Severity != "medium" {
		t.Errorf("got %s/%s, want flood/medium", c.Category, c.Severity)
	}
	if c.Confidence != 0 {
		t.Errorf("confidence = %v, want clamp to 0", c.Confidence)
	}
}

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"{\"a\":1}":                  `{"a":1}`,
		"```json\n{\"a\":1}\n```":    `{"a":1}`,
		"```\n{\"a\":1}\n```":        `{"a":1}`,
		"  \n{\"a\":1}\n  ":          `{"a":1}`,
	}
	for in, want := range cases {
		if got := stripFences(in); got != want {
			t.Errorf("stripFences(%q) = %q, want %q", in, got, want)
		}
	}
}
