// Package types provides shared type definitions used across the chatbot packages.
// This package exists to break import cycles between perception, articulation, and session.
// Types in this package should be foundational data structures with no complex dependencies.
package types

import "strings"

// =============================================================================
// INTENT TYPES
// =============================================================================

// IntentType tags what the user is asking about.
type IntentType string

const (
	IntentQuoteRequest   IntentType = "quote_request"
	IntentBrochure       IntentType = "brochure"
	IntentDatacenter     IntentType = "datacenter"
	IntentSecurity       IntentType = "security"
	IntentCloud          IntentType = "cloud"
	IntentManaged        IntentType = "managed"
	IntentPOS            IntentType = "pos"
	IntentVoIP           IntentType = "voip"
	IntentCabling        IntentType = "cabling"
	IntentWifi           IntentType = "wifi"
	IntentServices       IntentType = "services"
	IntentPartners       IntentType = "partners"
	IntentCapabilities   IntentType = "capabilities"
	IntentHowAreYou      IntentType = "how_are_you"
	IntentGreeting       IntentType = "greeting"
	IntentThanks         IntentType = "thanks"
	IntentJoke           IntentType = "joke"
	IntentWeather        IntentType = "weather"
	IntentSmallTalk      IntentType = "small_talk"
	IntentGeneralInquiry IntentType = "general_inquiry"
)

// AllIntentTypes lists every intent in classifier priority order, ending with the fallback.
var AllIntentTypes = []IntentType{
	IntentQuoteRequest, IntentBrochure,
	IntentDatacenter, IntentSecurity, IntentCloud, IntentManaged, IntentPOS, IntentVoIP, IntentCabling, IntentWifi,
	IntentServices, IntentPartners,
	IntentCapabilities, IntentHowAreYou, IntentGreeting, IntentThanks, IntentJoke, IntentWeather, IntentSmallTalk,
	IntentGeneralInquiry,
}

// IsBusiness reports whether the intent concerns one of the offered service lines.
func (t IntentType) IsBusiness() bool {
	switch t {
	case IntentDatacenter, IntentSecurity, IntentCloud, IntentManaged,
		IntentPOS, IntentVoIP, IntentCabling, IntentWifi:
		return true
	}
	return false
}

// IsConversational reports whether the intent is social rather than service oriented.
func (t IntentType) IsConversational() bool {
	switch t {
	case IntentGreeting, IntentThanks, IntentHowAreYou, IntentCapabilities,
		IntentJoke, IntentWeather, IntentSmallTalk, IntentGeneralInquiry:
		return true
	}
	return false
}

// ParseIntentType maps a tag back to an IntentType, defaulting to general_inquiry.
func ParseIntentType(s string) IntentType {
	s = strings.TrimSpace(strings.ToLower(s))
	for _, t := range AllIntentTypes {
		if string(t) == s {
			return t
		}
	}
	return IntentGeneralInquiry
}

// Entities are opportunistically extracted from an utterance.
type Entities struct {
	Services    []string `json:"services,omitempty" yaml:"services,omitempty"`
	CompanySize string   `json:"company_size,omitempty" yaml:"company_size,omitempty"` // small, medium, large
	Urgency     string   `json:"urgency,omitempty" yaml:"urgency,omitempty"`           // high, medium, low
}

// IsEmpty reports whether nothing was extracted.
func (e *Entities) IsEmpty() bool {
	return e == nil || (len(e.Services) == 0 && e.CompanySize == "" && e.Urgency == "")
}

// Intent is the classification of a single utterance. It is not retained
// beyond the turn that produced it; only its Type reaches the history.
type Intent struct {
	Type       IntentType `json:"type"`
	Confidence float64    `json:"confidence"`
	Entities   *Entities  `json:"entities,omitempty"`
}

// =============================================================================
// SENTIMENT
// =============================================================================

// Sentiment is the coarse polarity of an utterance.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// SentimentAnalysis is the analyzer output for one utterance.
type SentimentAnalysis struct {
	Sentiment           Sentiment `json:"sentiment"`
	Confidence          float64   `json:"confidence"`
	EmotionalIndicators []string  `json:"emotional_indicators"`
}

// =============================================================================
// TONE
// =============================================================================

// Tone selects how the final text is phrased.
type Tone string

const (
	ToneFormal       Tone = "formal"
	ToneFriendly     Tone = "friendly"
	ToneEnthusiastic Tone = "enthusiastic"
	ToneEmpathetic   Tone = "empathetic"
)

// =============================================================================
// ENGINE OUTPUT
// =============================================================================

// BotResponse is what the engine hands back to its host for one user turn.
type BotResponse struct {
	Response               string     `json:"response"`
	FollowUps              []string   `json:"follow_ups,omitempty"`
	ShouldShowQuickReplies bool       `json:"should_show_quick_replies"`
	ShouldShowForm         bool       `json:"should_show_form"`
	Sentiment              Sentiment  `json:"sentiment,omitempty"`
	Tone                   Tone       `json:"tone,omitempty"`
	Intent                 IntentType `json:"intent"`
	Stage                  Stage      `json:"stage"`
}
