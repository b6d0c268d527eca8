// Package twiml renders the Twilio markup returned by the SMS and voice
// webhooks. Only the verbs the webhooks actually use are modeled.
package twiml

import (
	"encoding/xml"
	"fmt"
)

// Header is the XML declaration Twilio expects before the <Response> element.
const Header = xml.Header

// ContentType is the MIME type for TwiML payloads.
const ContentType = "text/xml"

// Response is the TwiML document root. Verbs are rendered in order.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

// Say speaks text with Twilio's built-in TTS.
type Say struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

// Play streams an audio file to the caller.
type Play struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

// Pause waits silently for the given number of seconds.
type Pause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr"`
}

// Gather collects speech input and posts the transcription to Action.
type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr"`
	Action        string   `xml:"action,attr"`
	Method        string   `xml:"method,attr"`
	SpeechTimeout string   `xml:"speechTimeout,attr"`
	Language      string   `xml:"language,attr"`
	Verbs         []any
}

// Redirect transfers control of the call to another webhook URL.
type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	URL     string   `xml:",chardata"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Message sends an SMS reply.
type Message struct {
	XMLName xml.Name `xml:"Message"`
	Body    string   `xml:",chardata"`
}

// Render marshals the response with the XML declaration prepended.
func (r *Response) Render() (string, error) {
	out, err := xml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshaling twiml: %w", err)
	}
	return Header + string(out), nil
}
