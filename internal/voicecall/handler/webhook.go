package handler

import (
	"strings"

	"voice-server/internal/apierrors"
	"voice-server/internal/assistant"
	"voice-server/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/twilio/twilio-go/twiml"
)

const (
	callPath         = "/twilio/call"
	processAudioPath = "/twilio/process_audio"

	// minSpeechLength mirrors the streaming binding's noise gate.
	minSpeechLength = 2
)

const (
	greetingMessage = "Hello! I'm Luna, your personal productivity assistant. How can I help you today?"
	repeatMessage   = "I didn't catch that. Could you please repeat?"
	noInputMessage  = "I didn't hear anything. Please try again."
	errorMessage    = "I'm sorry, I encountered an error processing your request. Please try again."
	closingMessage  = "Thank you for using Luna! Have a great day!"
)

// exitPhrases end the call when contained anywhere in the utterance,
// case-insensitively.
var exitPhrases = []string{
	"exit", "goodbye", "bye", "that's it", "that is it", "thank you",
	"thanks", "done", "finished", "end call", "hang up",
}

// HandleIncomingCall answers a new inbound call with a speech gather. On
// continuation loops the greeting is suppressed so the caller is not
// re-introduced every turn.
func (h *Handler) HandleIncomingCall(c *gin.Context) {
	isContinuation := c.Query("is_continuation") == "true"

	var inner []twiml.Element
	if !isContinuation {
		inner = append(inner, &twiml.VoiceSay{Message: greetingMessage, Voice: h.voice.TwimlVoice})
	}

	h.respondTwiML(c, h.withNoInputFallback(h.speechGather(inner...)))
}

// HandleProcessAudio receives one finalized utterance from the telephony
// provider's speech recognition and returns the next voice response
// document. The caller always hears something: a re-prompt, the agent's
// reply, a closing remark, or an apology.
func (h *Handler) HandleProcessAudio(c *gin.Context) {
	transcript := c.PostForm("SpeechResult")
	callSid := c.PostForm("CallSid")

	ctx := observability.WithFields(c.Request.Context(),
		observability.Field{Key: "call_sid", Value: callSid},
		observability.Field{Key: "transcript", Value: transcript},
	)
	h.logger.Info(ctx, "Processing webhook utterance")

	if len(strings.TrimSpace(transcript)) < minSpeechLength {
		say := &twiml.VoiceSay{Message: repeatMessage, Voice: h.voice.TwimlVoice}
		h.respondTwiML(c, h.withNoInputFallback(h.speechGather(say)))
		return
	}

	if containsExitPhrase(transcript) {
		h.logger.Info(ctx, "Exit phrase detected, ending call")
		h.agent.EndThread(assistant.ThreadID(callSid))
		h.respondTwiML(c, []twiml.Element{
			&twiml.VoiceSay{Message: closingMessage, Voice: h.voice.TwimlVoice},
			&twiml.VoiceHangup{},
		})
		return
	}

	reply, err := h.agent.Reply(ctx, assistant.ThreadID(callSid), transcript)
	if err != nil {
		h.logger.Error(ctx, "Agent reply failed", err)
		say := &twiml.VoiceSay{Message: errorMessage, Voice: h.voice.TwimlVoice}
		h.respondTwiML(c, h.withNoInputFallback(h.speechGather(say)))
		return
	}

	say := &twiml.VoiceSay{Message: reply, Voice: h.voice.TwimlVoice}
	h.respondTwiML(c, h.withNoInputFallback(h.speechGather(say)))
}

// speechGather builds the standard speech-input gather used by every
// webhook response: barge-in enabled so the caller can interrupt.
func (h *Handler) speechGather(inner ...twiml.Element) *twiml.VoiceGather {
	return &twiml.VoiceGather{
		Input:         "speech",
		Action:        h.voice.WebhookBaseURL + processAudioPath,
		Method:        "POST",
		SpeechTimeout: "auto",
		Timeout:       "10",
		BargeIn:       "true",
		InnerElements: inner,
	}
}

// withNoInputFallback appends the no-speech fallback: a prompt and a
// redirect back into the call loop as a continuation.
func (h *Handler) withNoInputFallback(gather *twiml.VoiceGather) []twiml.Element {
	return []twiml.Element{
		gather,
		&twiml.VoiceSay{Message: noInputMessage, Voice: h.voice.TwimlVoice},
		&twiml.VoiceRedirect{
			Url:    h.voice.WebhookBaseURL + callPath + "?is_continuation=true",
			Method: "POST",
		},
	}
}

func (h *Handler) respondTwiML(c *gin.Context, elements []twiml.Element) {
	result, err := twiml.Voice(elements)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.Header("Content-Type", "text/xml")
	c.String(200, result)
}

func containsExitPhrase(transcript string) bool {
	lowered := strings.ToLower(transcript)
	for _, phrase := range exitPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}
