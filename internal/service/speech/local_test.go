package speech

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sayOutput = `Albert              en_US    # Hello! My name is Albert.
Bad News            en_US    # Hello! My name is Bad News.
Daniel              en_GB    # Hello! My name is Daniel.
Samantha            en_US    # Hello! My name is Samantha.
Thomas              fr_FR    # Bonjour, je m’appelle Thomas.
`

const espeakOutput = `Pty Language       Age/Gender VoiceName          File                 Other Languages
 5  en-gb           --/M      English_(Great_Britain) gmw/en
 5  en-us           --/M      English_(America)  gmw/en-US
 5  fr-fr           --/F      French_(France)    roa/fr
`

func TestParseSayVoices(t *testing.T) {
	voices := parseSayVoices(sayOutput)
	require.Len(t, voices, 5)
	assert.Equal(t, LocalVoice{Name: "Bad News", Lang: "en_US"}, voices[1])
	assert.Equal(t, LocalVoice{Name: "Thomas", Lang: "fr_FR"}, voices[4])
}

func TestParseEspeakVoices(t *testing.T) {
	voices := parseEspeakVoices(espeakOutput)
	require.Len(t, voices, 3)
	assert.Equal(t, LocalVoice{Name: "English_(America)", Lang: "en-us", Gender: Male}, voices[1])
	assert.Equal(t, Female, voices[2].Gender)
}

type recordedCommand struct {
	name string
	args []string
}

func TestExecSynthesizerSpeakArgs(t *testing.T) {
	var calls []recordedCommand
	run := func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, recordedCommand{name: name, args: args})
		return nil, nil
	}

	say := newExecSynthesizer("say", run, zerolog.Nop())
	require.NoError(t, say.Speak(context.Background(), Utterance{Text: "hello", Voice: LocalVoice{Name: "Samantha"}, Rate: 1}))

	espeak := newExecSynthesizer("espeak-ng", run, zerolog.Nop())
	require.NoError(t, espeak.Speak(context.Background(), Utterance{
		Text:   "hello",
		Voice:  LocalVoice{Lang: "en-us", Gender: Female},
		Rate:   1.2,
		Pitch:  1,
		Volume: 1,
	}))

	require.NoError(t, espeak.Speak(context.Background(), Utterance{Text: "   "}))

	require.Len(t, calls, 2)
	assert.Equal(t, recordedCommand{name: "say", args: []string{"-v", "Samantha", "-r", "175", "hello"}}, calls[0])
	assert.Equal(t, recordedCommand{name: "espeak-ng", args: []string{"-v", "en-us+f3", "-s", "210", "-p", "50", "-a", "100", "hello"}}, calls[1])
}

func TestExecSynthesizerVoices(t *testing.T) {
	run := func(_ context.Context, name string, args ...string) ([]byte, error) {
		if name == "say" {
			return []byte(sayOutput), nil
		}
		return []byte(espeakOutput), nil
	}

	voices, err := newExecSynthesizer("say", run, zerolog.Nop()).Voices(context.Background())
	require.NoError(t, err)
	assert.Len(t, voices, 5)

	voices, err = newExecSynthesizer("espeak", run, zerolog.Nop()).Voices(context.Background())
	require.NoError(t, err)
	assert.Len(t, voices, 3)
}

func TestEstimateDuration(t *testing.T) {
	assert.Equal(t, time.Duration(0), EstimateDuration("  ", 1))
	assert.Equal(t, 2*time.Second, EstimateDuration("one two three four five", 1))
	assert.Equal(t, time.Second, EstimateDuration("one two three four five", 2))
}
