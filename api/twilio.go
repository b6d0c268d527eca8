package api

import (
	"net/http"

	"github.com/campusbot/campusbot/internal/log"
	"github.com/campusbot/campusbot/internal/twiml"
)

// Session ID prefixes for webhook channels. The sender's phone number
// keys the conversation, so each caller or texter gets their own history.
const (
	SMSSessionPrefix   = "sms_"
	VoiceSessionPrefix = "voice_"
)

// TwilioHandler handles the Twilio SMS and voice webhooks.
//
// Endpoints:
//   - POST /api/sms           - inbound SMS
//   - POST /api/voice/welcome - inbound call greeting
//   - POST /api/voice/process - caller speech turn
//
// Twilio retries webhooks that fail, so every handler answers 200 with a
// TwiML document; failures are expressed as spoken or texted apologies.
type TwilioHandler struct {
	answerer Answerer
	speaker  Speaker
	builder  twiml.Builder
	logger   log.Logger
}

// NewTwilioHandler creates a new Twilio webhook handler.
func NewTwilioHandler(answerer Answerer, speaker Speaker, builder twiml.Builder, logger log.Logger) *TwilioHandler {
	return &TwilioHandler{answerer: answerer, speaker: speaker, builder: builder, logger: logger}
}

// RegisterRoutes registers webhook routes on the given mux.
func (h *TwilioHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sms", h.handleSMS)
	mux.HandleFunc("POST "+twiml.WelcomeAction, h.handleWelcome)
	mux.HandleFunc("POST "+twiml.ProcessAction, h.handleProcess)
}

// speak is a best-effort clip for text, or "" when synthesis is off.
func (h *TwilioHandler) speak(r *http.Request, text string) string {
	if h.speaker == nil {
		return ""
	}
	return h.speaker.SynthesizeBestEffort(r.Context(), text)
}

func (h *TwilioHandler) handleSMS(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.smsError(w, "parsing form", err)
		return
	}
	body := r.FormValue("Body")
	from := r.FormValue("From")
	sessionID := SMSSessionPrefix + from

	answer, err := h.answerer.Answer(r.Context(), sessionID, body)
	if err != nil {
		h.smsError(w, "answering sms", err)
		return
	}

	doc, err := twiml.SMS(answer)
	if err != nil {
		h.smsError(w, "rendering sms reply", err)
		return
	}
	h.logger.Info("sms answered", "session_id", sessionID)
	writeTwiML(w, doc)
}

// smsError texts a fixed apology. Blank messages land here too via
// chat.ErrEmptyQuery, which matches how an empty SMS should read to the
// sender.
func (h *TwilioHandler) smsError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, "error", err)
	doc, rerr := twiml.SMSError()
	if rerr != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeTwiML(w, doc)
}

func (h *TwilioHandler) handleWelcome(w http.ResponseWriter, r *http.Request) {
	audio := h.speak(r, h.builder.Greeting())
	doc, err := h.builder.Welcome(audio)
	if err != nil {
		h.logger.Error("rendering welcome", "error", err)
		h.voiceError(w, twiml.WelcomeError)
		return
	}
	writeTwiML(w, doc)
}

func (h *TwilioHandler) handleProcess(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.logger.Error("parsing voice form", "error", err)
		h.voiceError(w, twiml.ProcessError)
		return
	}
	from := r.FormValue("From")
	speech := r.FormValue("SpeechResult")

	// No transcription: reprompt instead of answering an empty question.
	if speech == "" {
		doc, err := h.builder.NoInput()
		if err != nil {
			h.logger.Error("rendering reprompt", "error", err)
			h.voiceError(w, twiml.ProcessError)
			return
		}
		writeTwiML(w, doc)
		return
	}

	sessionID := VoiceSessionPrefix + from
	answer, err := h.answerer.Answer(r.Context(), sessionID, speech)
	if err != nil {
		h.logger.Error("answering voice turn", "session_id", sessionID, "error", err)
		h.voiceError(w, twiml.ProcessError)
		return
	}

	doc, err := h.builder.Reply(answer, h.speak(r, answer))
	if err != nil {
		h.logger.Error("rendering voice reply", "error", err)
		h.voiceError(w, twiml.ProcessError)
		return
	}
	h.logger.Info("voice turn answered", "session_id", sessionID)
	writeTwiML(w, doc)
}

// voiceError speaks a fixed apology and hangs up.
func (h *TwilioHandler) voiceError(w http.ResponseWriter, render func() (string, error)) {
	doc, err := render()
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeTwiML(w, doc)
}
