package twiml

import "fmt"

// Webhook paths referenced from generated documents.
const (
	ProcessAction = "/api/voice/process"
	WelcomeAction = "/api/voice/welcome"
)

// Fixed voice prompts.
const (
	promptAfterBeep  = "Please ask your question after the beep."
	promptAnother    = "Do you have another question?"
	promptAnything   = "Is there anything else I can help you with?"
	promptNotCaught  = "I didn't catch that. Could you please repeat?"
	errorServiceText = "Sorry, there was an error with our service. Please try again later."
	errorRequestText = "Sorry, there was an error processing your request. Please try again."
	smsErrorText     = "Sorry, there was an error processing your request."
)

// Builder produces the TwiML documents the webhooks return. Institution
// names the school in the welcome greeting; Language sets the speech
// recognition locale on Gather verbs.
type Builder struct {
	Institution string
	Language    string
}

func (b Builder) gather(prompt any) Gather {
	lang := b.Language
	if lang == "" {
		lang = "en-IN"
	}
	return Gather{
		Input:         "speech",
		Action:        ProcessAction,
		Method:        "POST",
		SpeechTimeout: "auto",
		Language:      lang,
		Verbs:         []any{prompt},
	}
}

// spoken returns a Play verb when audioURL is set, otherwise a Say fallback
// so the call still works when speech synthesis is unavailable.
func spoken(text, audioURL string) any {
	if audioURL != "" {
		return Play{URL: audioURL}
	}
	return Say{Text: text}
}

// Greeting is the spoken welcome line. Callers synthesizing audio for the
// welcome document use this, so the played clip and the Say fallback read
// the same.
func (b Builder) Greeting() string {
	institution := b.Institution
	if institution == "" {
		institution = "the university"
	}
	return fmt.Sprintf("Welcome to the %s support chatbot. How can I help you today?", institution)
}

// Welcome greets a new caller and gathers their first question. When no
// speech input arrives the call redirects back to the welcome webhook.
func (b Builder) Welcome(audioURL string) (string, error) {
	r := &Response{Verbs: []any{
		spoken(b.Greeting(), audioURL),
		b.gather(spoken(promptAfterBeep, "")),
		Redirect{URL: WelcomeAction},
	}}
	return r.Render()
}

// Reply speaks an answer and gathers the caller's next question.
// A one second pause after played audio keeps the follow-up prompt from
// cutting into the answer.
func (b Builder) Reply(message, audioURL string) (string, error) {
	verbs := []any{spoken(message, audioURL)}
	if audioURL != "" {
		verbs = append(verbs, Pause{Length: 1})
	}
	verbs = append(verbs, b.gather(spoken(promptAnother, "")))

	r := &Response{Verbs: verbs}
	return r.Render()
}

// NoInput reprompts a caller whose speech was not transcribed.
func (b Builder) NoInput() (string, error) {
	return b.Reply(promptNotCaught, "")
}

// SMS wraps a chatbot answer in a messaging response.
func SMS(body string) (string, error) {
	r := &Response{Verbs: []any{Message{Body: body}}}
	return r.Render()
}

// SMSError is the messaging response for a failed SMS webhook.
func SMSError() (string, error) {
	return SMS(smsErrorText)
}

// WelcomeError apologizes and hangs up when the welcome webhook fails.
func WelcomeError() (string, error) {
	r := &Response{Verbs: []any{Say{Text: errorServiceText}, Hangup{}}}
	return r.Render()
}

// ProcessError apologizes and hangs up when answering the caller fails.
func ProcessError() (string, error) {
	r := &Response{Verbs: []any{Say{Text: errorRequestText}, Hangup{}}}
	return r.Render()
}
