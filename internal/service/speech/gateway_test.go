package speech

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/voicelink/internal/analysis/style"
)

type fakeCloud struct {
	mu    sync.Mutex
	ssml  []string
	errOn func(ssml string) error
}

func (f *fakeCloud) Synthesize(_ context.Context, ssml string) ([]byte, error) {
	f.mu.Lock()
	f.ssml = append(f.ssml, ssml)
	f.mu.Unlock()
	if f.errOn != nil {
		if err := f.errOn(ssml); err != nil {
			return nil, err
		}
	}
	return []byte("audio"), nil
}

type fakePlayer struct {
	played int
	err    error
}

func (p *fakePlayer) Play(context.Context, []byte, string) error {
	p.played++
	return p.err
}

type fakeLocal struct {
	voices     []LocalVoice
	voicesErr  error
	utterances []Utterance
}

func (l *fakeLocal) Voices(context.Context) ([]LocalVoice, error) {
	return l.voices, l.voicesErr
}

func (l *fakeLocal) Speak(_ context.Context, u Utterance) error {
	l.utterances = append(l.utterances, u)
	return nil
}

func newTestGateway(cloud CloudSynthesizer, player AudioPlayer, local LocalSynthesizer) *Gateway {
	return NewGateway(Config{Voice: "en-US-JennyNeural", Language: "en-US"}, cloud, player, local, zerolog.Nop())
}

func TestSpeakWithoutCloudUsesLocalVoice(t *testing.T) {
	local := &fakeLocal{voices: []LocalVoice{{Name: "Daniel", Lang: "en_GB"}, {Name: "Samantha", Lang: "en_US"}}}
	g := newTestGateway(nil, nil, local)

	res, err := g.Speak(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Equal(t, PathLocal, res.Path)
	assert.Equal(t, "Samantha", res.Voice)
	require.Len(t, local.utterances, 1)
	assert.Equal(t, "hello", local.utterances[0].Text)
	assert.Equal(t, 1.0, local.utterances[0].Rate)
}

func TestSpeakUsesCloudWithDefaultStyle(t *testing.T) {
	cloud := &fakeCloud{}
	player := &fakePlayer{}
	local := &fakeLocal{}
	g := newTestGateway(cloud, player, local)

	res, err := g.Speak(context.Background(), "  hi there  ", "")
	require.NoError(t, err)
	assert.Equal(t, PathCloud, res.Path)
	assert.Equal(t, 1, player.played)
	assert.Empty(t, local.utterances)
	require.Len(t, cloud.ssml, 1)
	assert.Contains(t, cloud.ssml[0], `<mstts:express-as style="friendly" styledegree="1.3">hi there</mstts:express-as>`)
}

func TestSpeakFallsBackWhenCloudFails(t *testing.T) {
	cloud := &fakeCloud{errOn: func(string) error { return &APIError{StatusCode: 401} }}
	local := &fakeLocal{voices: []LocalVoice{{Name: "Samantha", Lang: "en_US"}}}
	g := newTestGateway(cloud, &fakePlayer{}, local)

	res, err := g.Speak(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Equal(t, PathLocal, res.Path)
	assert.Contains(t, res.CloudError, "401")
	assert.Len(t, local.utterances, 1)
}

func TestSpeakFallsBackWhenPlaybackFails(t *testing.T) {
	local := &fakeLocal{voices: []LocalVoice{{Name: "Samantha", Lang: "en_US"}}}
	g := newTestGateway(&fakeCloud{}, &fakePlayer{err: errors.New("no device")}, local)

	res, err := g.Speak(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Equal(t, PathLocal, res.Path)
}

func TestSpeakSkipsWithoutEnglishVoice(t *testing.T) {
	local := &fakeLocal{voices: []LocalVoice{{Name: "Thomas", Lang: "fr_FR"}}}
	g := newTestGateway(nil, nil, local)

	res, err := g.Speak(context.Background(), "hello", "")
	assert.ErrorIs(t, err, ErrNoLocalVoice)
	assert.True(t, IsSkipped(err))
	assert.Equal(t, PathNone, res.Path)
	assert.Empty(t, local.utterances)
}

func TestSpeakWithoutAnySynthesizer(t *testing.T) {
	g := newTestGateway(nil, nil, nil)
	_, err := g.Speak(context.Background(), "hello", "")
	assert.ErrorIs(t, err, ErrSynthesisUnavailable)
}

func TestSpeakEmptyTextIsNoop(t *testing.T) {
	cloud := &fakeCloud{}
	g := newTestGateway(cloud, &fakePlayer{}, nil)
	res, err := g.Speak(context.Background(), "   ", "")
	require.NoError(t, err)
	assert.Equal(t, PathNone, res.Path)
	assert.Empty(t, cloud.ssml)
}

func TestSpeakStyledBuildsOneDocument(t *testing.T) {
	cloud := &fakeCloud{}
	g := newTestGateway(cloud, &fakePlayer{}, nil)

	res, err := g.SpeakStyled(context.Background(), "Good morning! The weather is sunny.", "en-US-AriaNeural")
	require.NoError(t, err)
	assert.Equal(t, PathCloudStyled, res.Path)
	require.Len(t, res.Decisions, 2)
	assert.Equal(t, style.Cheerful, res.Decisions[0].Style)
	assert.Equal(t, style.Friendly, res.Decisions[1].Style)

	require.Len(t, cloud.ssml, 1)
	doc := cloud.ssml[0]
	assert.Contains(t, doc, `<voice name="en-US-AriaNeural">`)
	assert.Equal(t, 2, strings.Count(doc, "<mstts:express-as"))
	assert.Less(t, strings.Index(doc, `style="cheerful"`), strings.Index(doc, `style="friendly"`))
}

func TestSpeakStyledFallsBackToPlainSpeak(t *testing.T) {
	cloud := &fakeCloud{errOn: func(ssml string) error {
		if strings.Count(ssml, "<mstts:express-as") > 1 {
			return errors.New("styled synthesis rejected")
		}
		return nil
	}}
	g := newTestGateway(cloud, &fakePlayer{}, nil)

	res, err := g.SpeakStyled(context.Background(), "Hello there. Let me know if you need help.", "")
	require.NoError(t, err)
	assert.Equal(t, PathCloud, res.Path)
	require.Len(t, cloud.ssml, 2)
	assert.Contains(t, cloud.ssml[1], "Hello there. Let me know if you need help.")
	assert.Len(t, res.Decisions, 2)
}

func TestSpeakStyledWithoutCloudSpeaksLocally(t *testing.T) {
	local := &fakeLocal{voices: []LocalVoice{{Name: "Samantha", Lang: "en_US"}}}
	g := newTestGateway(nil, nil, local)

	res, err := g.SpeakStyled(context.Background(), "Great news!! We won.", "")
	require.NoError(t, err)
	assert.Equal(t, PathLocal, res.Path)
	require.Len(t, local.utterances, 1)
	assert.Equal(t, "Great news!! We won.", local.utterances[0].Text)
}
