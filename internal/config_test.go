package internal

import (
	"strings"
	"testing"
	"time"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := NewDefaultConfig()
	err := cfg.ApplyEnv(env(map[string]string{
		"GIST_USERNAME":          "octocat",
		"GITHUB_TOKEN":           "ghp_x",
		"GIST_CACHE":             "false",
		"GIST_CACHE_TTL_LIST_MS": "1500",
		"GIST_CACHE_TTL_GIST_MS": "60000",
		"GRAPH_MAX_NODES":        "12",
		"FETCH_CONCURRENCY":      "3",
		"POSTS_PER_PAGE":         "9",
		"SITE_URL":               "https://example.test",
		"SITE_TITLE":             "Example",
		"SITE_DESCRIPTION":       "desc",
		"CI":                     "true",
	}))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Source.Username != "octocat" || cfg.Source.Token != "ghp_x" {
		t.Errorf("source = %+v", cfg.Source)
	}
	if cfg.Cache.Enabled {
		t.Error("GIST_CACHE=false should disable the cache")
	}
	if cfg.Cache.ListTTL != 1500*time.Millisecond || cfg.Cache.GistTTL != time.Minute {
		t.Errorf("ttls = %v / %v", cfg.Cache.ListTTL, cfg.Cache.GistTTL)
	}
	if cfg.Build.GraphMaxNodes != 12 || cfg.Build.Concurrency != 3 || cfg.Build.PostsPerPage != 9 {
		t.Errorf("build = %+v", cfg.Build)
	}
	if !cfg.Build.FailOnEmpty {
		t.Error("CI should enable fail_on_empty")
	}
	if cfg.Site.URL != "https://example.test" || cfg.Site.Title != "Example" || cfg.Site.Description != "desc" {
		t.Errorf("site = %+v", cfg.Site)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("overridden config should validate: %v", err)
	}
}

func TestApplyEnv_KeepsDefaultsWhenUnset(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.ApplyEnv(env(map[string]string{"CI": "false", "GIST_USERNAME": ""})); err != nil {
		t.Fatal(err)
	}
	def := NewDefaultConfig()
	if cfg.Source.Username != def.Source.Username || cfg.Build.FailOnEmpty || !cfg.Cache.Enabled {
		t.Errorf("unset variables changed config: %+v", cfg)
	}
}

func TestApplyEnv_BadNumber(t *testing.T) {
	cfg := NewDefaultConfig()
	err := cfg.ApplyEnv(env(map[string]string{"FETCH_CONCURRENCY": "many"}))
	if err == nil || !strings.Contains(err.Error(), "FETCH_CONCURRENCY") {
		t.Fatalf("err = %v, want FETCH_CONCURRENCY parse error", err)
	}
}

func TestValidate_RejectsBadBuild(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Build.Concurrency = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero concurrency should fail")
	}

	cfg = NewDefaultConfig()
	cfg.Site.URL = "not a url"
	if err := cfg.Validate(); err == nil {
		t.Error("bad site url should fail")
	}

	cfg = NewDefaultConfig()
	cfg.Cache.Dir = ""
	if err := cfg.Validate(); err == nil {
		t.Error("enabled cache without dir should fail")
	}
	cfg.Cache.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled cache needs no dir: %v", err)
	}
}
