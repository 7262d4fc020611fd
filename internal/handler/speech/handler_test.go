package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	prefmodel "github.com/zhouzirui/voicelink/internal/model/preferences"
	speechmodel "github.com/zhouzirui/voicelink/internal/model/speech"
	speechsvc "github.com/zhouzirui/voicelink/internal/service/speech"
)

type fakeSpeechService struct {
	voice  string
	styled bool
	err    error
}

func (f *fakeSpeechService) Speak(_ context.Context, text, voice string) (speechsvc.Result, error) {
	f.voice = voice
	if f.err != nil {
		return speechsvc.Result{Path: speechsvc.PathNone}, f.err
	}
	return speechsvc.Result{Path: speechsvc.PathCloud, Voice: voice, Duration: 1200 * time.Millisecond}, nil
}

func (f *fakeSpeechService) SpeakStyled(ctx context.Context, text, voice string) (speechsvc.Result, error) {
	f.styled = true
	res, err := f.Speak(ctx, text, voice)
	res.Path = speechsvc.PathCloudStyled
	return res, err
}

func (f *fakeSpeechService) CloudEnabled() bool   { return true }
func (f *fakeSpeechService) LocalEnabled() bool   { return false }
func (f *fakeSpeechService) DefaultVoice() string { return "en-US-JennyNeural" }

type fakePreferences struct {
	prefs prefmodel.Preferences
	err   error
}

func (f fakePreferences) Load(context.Context) (prefmodel.Preferences, error) { return f.prefs, f.err }

func setupRouter(svc SpeechService, prefs PreferenceSource) *chi.Mux {
	r := chi.NewRouter()
	New(svc, prefs, zerolog.Nop()).RegisterRoutes(r)
	return r
}

func postJSON(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload)))
	return resp
}

func TestSpeakUsesPreferenceVoiceWhenMissing(t *testing.T) {
	svc := &fakeSpeechService{}
	prefs := prefmodel.Defaults()
	prefs.Voice = "en-US-GuyNeural"
	r := setupRouter(svc, fakePreferences{prefs: prefs})

	resp := postJSON(r, "/speech/speak", speechmodel.SpeakRequest{Text: "Hello there."})

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if svc.voice != "en-US-GuyNeural" {
		t.Fatalf("expected preference voice, got %q", svc.voice)
	}
	var body speechmodel.SpeakResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body.Path != "cloud" || body.DurationMS != 1200 {
		t.Fatalf("unexpected response: %+v", body)
	}
}

func TestSpeakStyled(t *testing.T) {
	svc := &fakeSpeechService{}
	r := setupRouter(svc, nil)

	resp := postJSON(r, "/speech/speak", speechmodel.SpeakRequest{Text: "Hi.", Voice: "en-US-AriaNeural", Styled: true})

	if resp.Code != http.StatusOK || !svc.styled {
		t.Fatalf("expected styled synthesis, code %d", resp.Code)
	}
	if svc.voice != "en-US-AriaNeural" {
		t.Fatalf("expected explicit voice, got %q", svc.voice)
	}
}

func TestSpeakRequiresText(t *testing.T) {
	r := setupRouter(&fakeSpeechService{}, nil)

	resp := postJSON(r, "/speech/speak", speechmodel.SpeakRequest{Text: "   "})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSpeakSkippedWithoutVoice(t *testing.T) {
	svc := &fakeSpeechService{err: fmt.Errorf("speak: %w", speechsvc.ErrNoLocalVoice)}
	r := setupRouter(svc, nil)

	resp := postJSON(r, "/speech/speak", speechmodel.SpeakRequest{Text: "Hello."})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body speechmodel.SpeakResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !body.Skipped || body.Path != "none" {
		t.Fatalf("expected skipped response, got %+v", body)
	}
}

func TestSpeakFailure(t *testing.T) {
	svc := &fakeSpeechService{err: errors.New("no engine")}
	r := setupRouter(svc, fakePreferences{err: errors.New("store down")})

	resp := postJSON(r, "/speech/speak", speechmodel.SpeakRequest{Text: "Hello."})
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}
	if svc.voice != "" {
		t.Fatalf("expected empty voice when preferences fail, got %q", svc.voice)
	}
}

func TestClassify(t *testing.T) {
	r := setupRouter(&fakeSpeechService{}, nil)

	resp := postJSON(r, "/speech/classify", speechmodel.ClassifyRequest{Text: "Hello there! Be careful on the roads."})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var segments []speechmodel.SegmentDecision
	if err := json.Unmarshal(resp.Body.Bytes(), &segments); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Category != "greeting" || segments[1].Category != "caution" {
		t.Fatalf("unexpected categories: %+v", segments)
	}
}

func TestHealth(t *testing.T) {
	r := setupRouter(&fakeSpeechService{}, nil)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/speech/health", nil))

	var health speechmodel.HealthResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !health.Cloud || health.Local || health.DefaultVoice != "en-US-JennyNeural" {
		t.Fatalf("unexpected health: %+v", health)
	}
}
