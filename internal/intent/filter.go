// Package intent short-circuits a handful of conversational intents before
// the dataset is consulted.
package intent

import (
	"regexp"
	"strings"
)

// Intent keys reported by the filter.
const (
	Greeting       = "greeting"
	Help           = "help"
	OfficeHours    = "office_hours"
	ClosingRemarks = "closing_remarks"
)

// Display categories.
const (
	CategoryGreeting    = "greeting"
	CategoryGeneralInfo = "general_info"
)

// Canned responses.
const (
	GreetingResponse = "Hello! I am the Commu-Bot. I'm here to help you with information about our barangay services, including:\n\n" +
		"• Barangay Clearance\n• Indigency Certificates\n• Permits\n• Health and Emergency Services\n" +
		"• Office Hours\n• Event Information\n• Live Chat with Agent\n• And much more!\n\nHow can I assist you today?"
	HelpResponse = "I can help you with information on several barangay documents and services:\n\n" +
		"• Barangay Clearance\n• Certificate of Residency\n• Indigency Certificate\n• Permits\n• Office Hours\n" +
		"• Location\n• Health and Emergency Services\n• Event Information\n• Live Chat with Agent\n\n" +
		"Which document or service do you need help with?"
	OfficeHoursResponse = "Our barangay office is open Monday to Friday, 8:00 AM to 5:00 PM. " +
		"For urgent matters, you can contact our emergency hotline."
	ClosingResponse = "Great! If you want more assistance just enter Hi/Help!"
)

// maxLooseGreetingTokens bounds the "short message mentioning hi/hello/hey" rule.
const maxLooseGreetingTokens = 4

var greetingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(hi|hello|hey)$`),
	regexp.MustCompile(`^(hi|hello|hey)\s+(there|everyone|all|guys|folks)$`),
	regexp.MustCompile(`^good\s+(morning|afternoon|evening)$`),
	regexp.MustCompile(`^(greetings?|howdy)$`),
	regexp.MustCompile(`^(hi|hello|hey)\s+(hi|hello|hey)(\s+(there|everyone|all))?$`),
	regexp.MustCompile(`^(hi|hello|hey)\s+(there|everyone|all)\s+(hi|hello|hey)$`),
}

var greetingWords = map[string]bool{"hi": true, "hello": true, "hey": true}

// Result is the outcome of Classify. Intent, Category and Response are set
// only when Matched.
type Result struct {
	Matched  bool
	Intent   string
	Category string
	Response string
}

type keywordRule struct {
	intent   string
	category string
	response string
	phrases  []string
}

// Filter classifies utterances into the essential intents.
type Filter struct {
	rules []keywordRule
}

// New returns a Filter with the built-in keyword lists.
func New() *Filter {
	return &Filter{rules: []keywordRule{
		{
			intent: Help, category: CategoryGeneralInfo, response: HelpResponse,
			phrases: []string{"help", "what can you do", "what do you do", "assist", "guide"},
		},
		{
			intent: OfficeHours, category: CategoryGeneralInfo, response: OfficeHoursResponse,
			phrases: []string{"office hours", "hours", "open", "close", "time", "schedule"},
		},
		{
			intent: ClosingRemarks, category: CategoryGeneralInfo, response: ClosingResponse,
			phrases: []string{
				"thanks", "thank you", "thankyou", "thank u", "ty", "tys",
				"okay", "ok", "noted", "alright", "great", "cool", "got it",
			},
		},
	}}
}

// Classify reports the first essential intent the utterance matches:
// greeting, then help, office hours and closing remarks. Keyword phrases
// match on whole words, so "ok" does not fire inside "book".
func (f *Filter) Classify(utterance string) Result {
	text := strings.ToLower(strings.TrimSpace(utterance))
	if text == "" {
		return Result{}
	}
	words := tokens(text)

	if isGreeting(text, words) {
		return Result{Matched: true, Intent: Greeting, Category: CategoryGreeting, Response: GreetingResponse}
	}

	padded := " " + strings.Join(words, " ") + " "
	for _, rule := range f.rules {
		for _, phrase := range rule.phrases {
			if strings.Contains(padded, " "+phrase+" ") {
				return Result{Matched: true, Intent: rule.intent, Category: rule.category, Response: rule.response}
			}
		}
	}
	return Result{}
}

func isGreeting(text string, words []string) bool {
	normalized := strings.Join(strings.Fields(text), " ")
	for _, p := range greetingPatterns {
		if p.MatchString(normalized) {
			return true
		}
	}
	if len(strings.Fields(text)) > maxLooseGreetingTokens {
		return false
	}
	for _, w := range words {
		if greetingWords[w] {
			return true
		}
	}
	return false
}

// tokens splits on whitespace and trims punctuation from each word.
func tokens(text string) []string {
	fields := strings.Fields(text)
	out := fields[:0:0]
	for _, f := range fields {
		w := strings.TrimFunc(f, func(r rune) bool {
			return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
		})
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}
