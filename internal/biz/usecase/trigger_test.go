package usecase

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devricklin/chat-relay/internal/biz/domain"
)

func namedIdentity(t *testing.T, name string) *domain.Identity {
	t.Helper()
	id := domain.NewIdentity()
	require.NoError(t, id.Set(name))
	return id
}

func TestShouldTrigger_PrivateWithoutConfig(t *testing.T) {
	e := NewTriggerEvaluator(TriggerConfig{}, domain.NewIdentity())

	for _, text := range []string{"hello", "x", "@Bot hi", "/something", "  "} {
		assert.True(t, e.ShouldTrigger(text, true), text)
	}
}

func TestShouldTrigger_PrivateKeyword(t *testing.T) {
	e := NewTriggerEvaluator(TriggerConfig{PrivateTriggerKeyword: "gpt."}, domain.NewIdentity())

	assert.True(t, e.ShouldTrigger("gpt. hello", true))
	assert.True(t, e.ShouldTrigger("hello gpt. there", true))
	assert.False(t, e.ShouldTrigger("gptx hello", true), "keyword is matched literally")
	assert.False(t, e.ShouldTrigger("hello", true))
}

func TestShouldTrigger_PrivateSharedPatternWins(t *testing.T) {
	cfg := TriggerConfig{
		PrivateTriggerKeyword: "kw",
		SharedTriggerPattern:  regexp.MustCompile(`^ask:`),
	}
	e := NewTriggerEvaluator(cfg, domain.NewIdentity())

	assert.True(t, e.ShouldTrigger("ask: hi", true))
	assert.False(t, e.ShouldTrigger("kw hi", true))
}

func TestShouldTrigger_GroupMention(t *testing.T) {
	e := NewTriggerEvaluator(TriggerConfig{}, namedIdentity(t, "Bot"))

	tests := []struct {
		text string
		want bool
	}{
		{"@Bot hello", true},
		{"@Bot\u2005hello", true},
		{"@Bot  hello", true},
		{"@Bothello", false},
		{"@bot hello", false},
		{"hi @Bot hello", false},
		{"hello", false},
		{"@Bot", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.ShouldTrigger(tt.text, false), tt.text)
	}
}

func TestShouldTrigger_GroupNameIsQuoted(t *testing.T) {
	e := NewTriggerEvaluator(TriggerConfig{}, namedIdentity(t, "a.b"))

	assert.True(t, e.ShouldTrigger("@a.b hi", false))
	assert.False(t, e.ShouldTrigger("@axb hi", false))
}

func TestShouldTrigger_GroupUnsetIdentity(t *testing.T) {
	id := domain.NewIdentity()
	e := NewTriggerEvaluator(TriggerConfig{}, id)

	assert.False(t, e.ShouldTrigger("@Bot hello", false))

	require.NoError(t, id.Set("Bot"))
	assert.True(t, e.ShouldTrigger("@Bot hello", false), "name set after construction is honored")
}

func TestShouldTrigger_GroupSharedPattern(t *testing.T) {
	cfg := TriggerConfig{SharedTriggerPattern: regexp.MustCompile(`^gpt`)}
	e := NewTriggerEvaluator(cfg, namedIdentity(t, "Bot"))

	assert.True(t, e.ShouldTrigger("@Bot gpt tell me", false))
	assert.False(t, e.ShouldTrigger("@Bot tell me", false))
	assert.False(t, e.ShouldTrigger("gpt tell me", false))
}

func TestTriggerConfig_PrivatePattern(t *testing.T) {
	assert.Nil(t, TriggerConfig{}.PrivatePattern())

	p := TriggerConfig{PrivateTriggerKeyword: "a+b"}.PrivatePattern()
	require.NotNil(t, p)
	assert.Equal(t, `a\+b`, p.String())
}

func TestReplaceFirst(t *testing.T) {
	re := regexp.MustCompile(`o`)
	assert.Equal(t, "fo", replaceFirst(re, "foo"))
	assert.Equal(t, "bar", replaceFirst(re, "bar"))
	assert.Equal(t, "foo", replaceFirst(nil, "foo"))
}
