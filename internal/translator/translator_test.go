package translator

import (
	"strings"
	"testing"
)

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(Config{Model: "gpt-4o"}); err == nil {
		t.Fatalf("expected error for missing api key")
	}
	if _, err := New(Config{APIKey: "key"}); err == nil {
		t.Fatalf("expected error for missing model")
	}
}

func TestNewBuildsPromptsForTargetLanguage(t *testing.T) {
	tr, err := New(Config{APIKey: "key", Model: "gpt-4o", TargetLanguage: "German"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(tr.translatePrompt, "German") {
		t.Fatalf("translate prompt must mention the target language: %q", tr.translatePrompt)
	}
	if !strings.Contains(tr.verifyPrompt, "German") {
		t.Fatalf("verify prompt must mention the target language: %q", tr.verifyPrompt)
	}
	if !strings.Contains(tr.translatePrompt, "<tg-spoiler>") {
		t.Fatalf("tag whitelist missing from translate prompt")
	}
}

func TestNewDefaultsTargetLanguage(t *testing.T) {
	tr, err := New(Config{APIKey: "key", Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(tr.translatePrompt, "Ukrainian") {
		t.Fatalf("default target language not applied")
	}
}

func TestNewFallbackClientOnlyWhenDistinct(t *testing.T) {
	tr, err := New(Config{APIKey: "key", Model: "gpt-4o", BaseURL: "https://a", FallbackBaseURL: "https://a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.fallback != nil {
		t.Fatalf("identical fallback endpoint must not create a second client")
	}

	tr, err = New(Config{APIKey: "key", Model: "gpt-4o", BaseURL: "https://a", FallbackBaseURL: "https://b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.fallback == nil {
		t.Fatalf("distinct fallback endpoint must create a second client")
	}
}
