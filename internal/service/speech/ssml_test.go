package speech

import (
	"strings"
	"testing"
)

func TestBuildSSMLStyledSegments(t *testing.T) {
	got := BuildSSML("en-US-JennyNeural", "en-US", []Segment{
		{Text: "Good morning!", Style: "cheerful", Degree: 1.4},
		{Text: "The weather is sunny.", Style: "friendly", Degree: 1.2},
	}, true)

	want := `<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xmlns:mstts="https://www.w3.org/2001/mstts" xml:lang="en-US">` +
		`<voice name="en-US-JennyNeural">` +
		`<mstts:express-as style="cheerful" styledegree="1.4">Good morning!</mstts:express-as>` +
		`<mstts:express-as style="friendly" styledegree="1.2">The weather is sunny.</mstts:express-as>` +
		`</voice></speak>`
	if got != want {
		t.Fatalf("BuildSSML() =\n%s\nwant\n%s", got, want)
	}
}

func TestBuildSSMLEscapesText(t *testing.T) {
	got := BuildSSML("en-US-GuyNeural", "", []Segment{{Text: `Tom & "Jerry" <3`, Style: "friendly", Degree: 1.3}}, true)
	if !strings.Contains(got, "Tom &amp; &#34;Jerry&#34; &lt;3") {
		t.Fatalf("text not escaped: %s", got)
	}
	if !strings.Contains(got, `xml:lang="en-US"`) {
		t.Fatalf("default language missing: %s", got)
	}
}

func TestBuildSSMLWithoutStyles(t *testing.T) {
	got := BuildSSML("en-US-AvaNeural", "en-US", []Segment{
		{Text: "Hello.", Style: "cheerful", Degree: 1.4},
		{Text: "Bye.", Style: "friendly", Degree: 1.3},
	}, false)
	if strings.Contains(got, "express-as") {
		t.Fatalf("unexpected express-as: %s", got)
	}
	if !strings.Contains(got, `<voice name="en-US-AvaNeural">Hello. Bye.</voice>`) {
		t.Fatalf("plain text not joined: %s", got)
	}
}

func TestFormatDegree(t *testing.T) {
	cases := map[float64]string{
		1.3: "1.3",
		0:   "1",
		5:   "2",
		1:   "1",
	}
	for in, want := range cases {
		if got := formatDegree(in); got != want {
			t.Errorf("formatDegree(%v) = %s, want %s", in, got, want)
		}
	}
}
