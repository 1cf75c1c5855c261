package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTags(t *testing.T) {
	assert.Equal(t, []string{"ai", "cli", "go"}, ExtractTags("Tools #go #CLI and #AI #ai"))
	assert.Equal(t, []string{}, ExtractTags("no tags here"))
	assert.Equal(t, []string{"snake_case", "v2"}, ExtractTags("#v2 #snake_case"))
}

func TestTagCache_Idempotent(t *testing.T) {
	c := NewTagCache()
	first := c.Extract("Demo #AI #ai #b")
	second := c.Extract("Demo #AI #ai #b")
	assert.Equal(t, []string{"ai", "b"}, first)
	assert.Equal(t, first, second)

	// Callers own their copy.
	first[0] = "mutated"
	assert.Equal(t, []string{"ai", "b"}, c.Extract("Demo #AI #ai #b"))
}

func TestCleanDescription(t *testing.T) {
	assert.Equal(t, "Demo", CleanDescription("Demo #test"))
	assert.Equal(t, "A post about tools", CleanDescription("#go A   post #cli about\ttools #x"))
	assert.Equal(t, "", CleanDescription("#only #tags"))
}
