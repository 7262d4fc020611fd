package preferences

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFillsDefaults(t *testing.T) {
	p := Preferences{Personality: "  Calm ", CustomPrompt: "  be brief "}.Normalize()

	assert.Equal(t, "calm", p.Personality)
	assert.Equal(t, "medium", p.ResponseLength)
	assert.Equal(t, "casual", p.Formality)
	assert.Equal(t, "en-US-JennyNeural", p.Voice)
	assert.Equal(t, "be brief", p.CustomPrompt)
	require.NoError(t, p.Validate())
}

func TestValidateRejectsUnknownEnums(t *testing.T) {
	p := Defaults()
	p.ResponseLength = "endless"
	err := p.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))

	p = Defaults()
	p.Formality = "royal"
	assert.ErrorIs(t, p.Validate(), ErrInvalid)
}

func TestShouldSpeak(t *testing.T) {
	p := Defaults()
	assert.True(t, p.ShouldSpeak())

	p.AutoSpeak = false
	assert.False(t, p.ShouldSpeak())
}

func TestMetadataSnapshot(t *testing.T) {
	p := Defaults()
	p.CustomPrompt = "talk like a pirate"
	meta := p.Metadata()

	assert.Equal(t, "friendly", meta.Personality)
	assert.Equal(t, "talk like a pirate", meta.CustomPrompt)
}
