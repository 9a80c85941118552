package redact

import (
	"strings"
	"testing"

	"github.com/hupe1980/rlmharness/core"
	"github.com/stretchr/testify/assert"
)

func TestText_PassthroughUnderThreshold(t *testing.T) {
	r := Text("short", 100, 10, 10)
	assert.False(t, r.Redacted)
	assert.Equal(t, "short", r.Text)
}

func TestText_RedactsOverThreshold(t *testing.T) {
	s := strings.Repeat("a", 50) + strings.Repeat("b", 50) + strings.Repeat("c", 50)
	r := Text(s, 60, 10, 10)
	assert.True(t, r.Redacted)
	assert.Equal(t, 150, r.Original)
	assert.True(t, strings.HasPrefix(r.Text, strings.Repeat("a", 10)))
	assert.True(t, strings.HasSuffix(r.Text, strings.Repeat("c", 10)))
	assert.Contains(t, r.Text, r.Digest)
}

func TestText_Idempotent(t *testing.T) {
	s := strings.Repeat("x", 10_000)
	once := Text(s, 100, 20, 20)
	twice := Text(once.Text, 100, 20, 20)
	assert.Equal(t, once.Text, twice.Text)
}

func TestContextPreview_HeadOnly(t *testing.T) {
	policy := core.DefaultRedactionPolicy()
	s := strings.Repeat("y", policy.MaxContextPreviewChars*2)
	r := ContextPreview(s, policy)
	assert.True(t, r.Redacted)
	assert.True(t, strings.HasPrefix(r.Text, strings.Repeat("y", 10)))
	assert.False(t, strings.HasSuffix(r.Text, "y"))
}
