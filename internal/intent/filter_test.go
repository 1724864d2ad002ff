package intent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify_Greetings(t *testing.T) {
	f := New()
	for _, in := range []string{
		"hi", "Hello", "  hey ", "hi there", "hello there", "hey everyone", "hi folks",
		"hello hello", "hi hi", "hello hello there", "hi there hi",
		"good morning", "Good  Afternoon", "good evening", "greetings", "greeting", "howdy",
		"hi, po", "hello can you assist", "hey i need clearance",
	} {
		got := f.Classify(in)
		require.True(t, got.Matched, in)
		require.Equal(t, Greeting, got.Intent, in)
		require.Equal(t, CategoryGreeting, got.Category, in)
		require.Equal(t, GreetingResponse, got.Response, in)
	}
}

func TestClassify_LooseGreetingTokenBoundary(t *testing.T) {
	f := New()

	four := f.Classify("hi i need clearance")
	require.True(t, four.Matched)
	require.Equal(t, Greeting, four.Intent)

	five := f.Classify("hi i need a clearance")
	require.False(t, five.Matched)

	require.False(t, f.Classify("hi, can I get a clearance").Matched)
}

func TestClassify_KeywordCategories(t *testing.T) {
	f := New()
	cases := map[string]string{
		"can you help me with permits please":  Help,
		"what can you do":                       Help,
		"what are your hours":                   OfficeHours,
		"when do you open on saturdays":         OfficeHours,
		"what is the schedule for vaccinations": OfficeHours,
		"thanks a lot":                          ClosingRemarks,
		"ok":                                    ClosingRemarks,
		"got it, salamat":                       ClosingRemarks,
	}
	for in, want := range cases {
		got := f.Classify(in)
		require.True(t, got.Matched, in)
		require.Equal(t, want, got.Intent, in)
		require.Equal(t, CategoryGeneralInfo, got.Category, in)
	}
}

func TestClassify_HelpBeatsClosingRemarks(t *testing.T) {
	got := New().Classify("okay so i need some help with the certificate")
	require.Equal(t, Help, got.Intent)
}

func TestClassify_NoMatch(t *testing.T) {
	f := New()
	for _, in := range []string{
		"", "   ", "zzz123 unrelated gibberish", "i want to book a venue for the fiesta",
		"this is about my certificate of residency",
	} {
		require.False(t, f.Classify(in).Matched, in)
	}
}
