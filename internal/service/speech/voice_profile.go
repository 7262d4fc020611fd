package speech

import (
	"strings"
)

// Gender 是音色的性别标签。
type Gender string

const (
	Female Gender = "female"
	Male   Gender = "male"
)

// VoiceProfile 描述一个云端神经网络音色。
type VoiceProfile struct {
	ID          string
	Locale      string
	Gender      Gender
	Descriptors []string
	Styles      bool
}

// neuralVoices 是已知云端音色的静态表，用于本地回退时挑选相近的系统音色。
var neuralVoices = map[string]VoiceProfile{
	"en-US-JennyNeural":   {ID: "en-US-JennyNeural", Locale: "en-US", Gender: Female, Descriptors: []string{"warm", "friendly", "clear"}, Styles: true},
	"en-US-AriaNeural":    {ID: "en-US-AriaNeural", Locale: "en-US", Gender: Female, Descriptors: []string{"expressive", "bright"}, Styles: true},
	"en-US-SaraNeural":    {ID: "en-US-SaraNeural", Locale: "en-US", Gender: Female, Descriptors: []string{"soft", "calm"}, Styles: true},
	"en-US-NancyNeural":   {ID: "en-US-NancyNeural", Locale: "en-US", Gender: Female, Descriptors: []string{"confident", "mature"}, Styles: true},
	"en-US-AvaNeural":     {ID: "en-US-AvaNeural", Locale: "en-US", Gender: Female, Descriptors: []string{"natural", "conversational"}},
	"en-US-GuyNeural":     {ID: "en-US-GuyNeural", Locale: "en-US", Gender: Male, Descriptors: []string{"steady", "professional"}, Styles: true},
	"en-US-DavisNeural":   {ID: "en-US-DavisNeural", Locale: "en-US", Gender: Male, Descriptors: []string{"deep", "relaxed"}, Styles: true},
	"en-US-TonyNeural":    {ID: "en-US-TonyNeural", Locale: "en-US", Gender: Male, Descriptors: []string{"upbeat", "casual"}, Styles: true},
	"en-US-JasonNeural":   {ID: "en-US-JasonNeural", Locale: "en-US", Gender: Male, Descriptors: []string{"friendly", "youthful"}, Styles: true},
	"en-GB-SoniaNeural":   {ID: "en-GB-SoniaNeural", Locale: "en-GB", Gender: Female, Descriptors: []string{"polished", "british"}, Styles: true},
	"en-GB-RyanNeural":    {ID: "en-GB-RyanNeural", Locale: "en-GB", Gender: Male, Descriptors: []string{"cheerful", "british"}, Styles: true},
	"en-AU-NatashaNeural": {ID: "en-AU-NatashaNeural", Locale: "en-AU", Gender: Female, Descriptors: []string{"bright", "australian"}},
}

// 系统音色名中常见的性别线索。
var (
	feminineMarkers = []string{
		"female", "woman", "samantha", "karen", "victoria", "zira", "susan", "hazel", "jenny", "aria",
		"sara", "moira", "tessa", "fiona", "serena", "zoe", "allison", "ava", "kathy", "vicki", "+f",
	}
	masculineMarkers = []string{
		"male", "daniel", "alex", "david", "mark", "george", "fred", "tom", "oliver", "guy",
		"davis", "james", "rishi", "ralph", "bruce", "+m",
	}
)

// LookupVoice 返回云端音色的静态描述。
func LookupVoice(id string) (VoiceProfile, bool) {
	profile, ok := neuralVoices[strings.TrimSpace(id)]
	return profile, ok
}

// SupportsStyles 判断音色是否支持 express-as 风格；未知音色按支持处理。
func SupportsStyles(voice string) bool {
	profile, ok := LookupVoice(voice)
	if !ok {
		return strings.HasSuffix(strings.TrimSpace(voice), "Neural")
	}
	return profile.Styles
}

// ResolveLocalVoice picks a system voice close to the preferred cloud voice.
// Gender hints win, then any English voice; false means nothing usable.
func ResolveLocalVoice(voices []LocalVoice, preferredID string) (LocalVoice, bool) {
	if len(voices) == 0 {
		return LocalVoice{}, false
	}

	gender := Female
	locale := "en"
	if profile, ok := LookupVoice(preferredID); ok {
		gender = profile.Gender
		locale = strings.ToLower(profile.Locale)
	}

	var english []LocalVoice
	for _, v := range voices {
		if isEnglish(v.Lang) {
			english = append(english, v)
		}
	}

	// 同一地区优先。
	for _, pool := range [][]LocalVoice{filterLocale(english, locale), english} {
		for _, v := range pool {
			if matchesGender(v, gender) {
				return v, true
			}
		}
	}

	if len(english) > 0 {
		return english[0], true
	}
	return LocalVoice{}, false
}

func matchesGender(v LocalVoice, gender Gender) bool {
	if v.Gender != "" {
		return v.Gender == gender
	}
	name := strings.ToLower(v.Name)
	feminine := containsAny(name, feminineMarkers)
	if gender == Female {
		return feminine
	}
	// "female" 含有 "male"，需排除女性线索。
	return !feminine && containsAny(name, masculineMarkers)
}

func filterLocale(voices []LocalVoice, locale string) []LocalVoice {
	var out []LocalVoice
	for _, v := range voices {
		if normalizeLocale(v.Lang) == locale {
			out = append(out, v)
		}
	}
	return out
}

func isEnglish(lang string) bool {
	return strings.HasPrefix(normalizeLocale(lang), "en")
}

func normalizeLocale(lang string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(lang)), "_", "-")
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
