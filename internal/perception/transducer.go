package perception

import (
	"regexp"

	"chatbot/internal/logging"
	"chatbot/internal/types"
)

// =============================================================================
// INTENT CORPUS - Ordered keyword/regex rule sets
// =============================================================================
// Rule sets are checked in declaration order and the first match wins, so the
// specific business intents sit ahead of the generic conversational ones.

// IntentEntry defines one intent with its patterns and keywords.
type IntentEntry struct {
	Intent   types.IntentType
	Patterns []*regexp.Regexp // Matched against normalized text
	Keywords []string         // Whole-word phrases, weaker evidence than patterns
}

const (
	patternConfidence   = 0.9
	keywordConfidence   = 0.6
	keywordBonus        = 0.05
	keywordCeiling      = 0.85
	carryoverConfidence = 0.6
	fallbackConfidence  = 0.3
)

func rx(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// IntentCorpus is the default rule-set table in priority order.
var IntentCorpus = []IntentEntry{
	{
		Intent: types.IntentQuoteRequest,
		Patterns: rx(
			`\b(quote|quotes|quotation|estimate|estimates|proposal)\b`,
			`\b(get|request|need|want|like|send)\b.{0,30}\b(pricing|price list|price sheet)\b`,
			`\bpricing for\b`,
		),
		Keywords: []string{"ballpark", "rfq", "bid", "costing"},
	},
	{
		Intent: types.IntentBrochure,
		Patterns: rx(
			`\bbrochures?\b`,
			`\b(catalog|catalogue|datasheet|data sheet|spec sheet|pdf)\b`,
			`\bsend me (some )?(info|information|material|details)\b`,
		),
		Keywords: []string{"literature", "download", "flyer"},
	},
	{
		Intent: types.IntentDatacenter,
		Patterns: rx(
			`\bdata ?cent(er|re)s?\b`,
			`\bserver rooms?\b`,
			`\b(colocation|colo|server racks?)\b`,
		),
		Keywords: []string{"cooling", "racks", "rack", "ups", "pdu", "hvac", "servers", "server", "power distribution"},
	},
	{
		Intent: types.IntentSecurity,
		Patterns: rx(
			`\b(cyber ?security|firewalls?|cctv|surveillance|access control|penetration test|pen test)\b`,
			`\b(hacked|ransomware|malware|phishing|breach)\b`,
		),
		Keywords: []string{"security", "secure", "camera", "cameras", "alarm", "vulnerability", "vulnerabilities", "antivirus"},
	},
	{
		Intent: types.IntentCloud,
		Patterns: rx(
			`\b(cloud|aws|azure|google cloud|saas|iaas)\b`,
			`\b(office|microsoft) 365\b`,
		),
		Keywords: []string{"hosting", "backup", "backups", "virtualization", "migrate", "migration"},
	},
	{
		Intent: types.IntentManaged,
		Patterns: rx(
			`\bmanaged (it|services?|network)\b`,
			`\b(help ?desk|it support|msp|outsourc\w*)\b`,
		),
		Keywords: []string{"monitoring", "maintenance", "support contract", "around the clock", "patching"},
	},
	{
		Intent: types.IntentPOS,
		Patterns: rx(
			`\b(pos|point of sale|cash registers?|card terminals?|payment terminals?)\b`,
		),
		Keywords: []string{"till", "tills", "checkout", "retail", "restaurant"},
	},
	{
		Intent: types.IntentVoIP,
		Patterns: rx(
			`\b(voip|pbx|sip trunk\w*|telephony|phone systems?|call cent(er|re)s?)\b`,
		),
		Keywords: []string{"phones", "phone", "voicemail", "extensions", "phone lines"},
	},
	{
		Intent: types.IntentCabling,
		Patterns: rx(
			`\b(cabling|structured wiring|patch panels?|cat ?5e?|cat ?6a?)\b`,
			`\b(fiber|fibre) (optic|optics|install\w*|run|runs)\b`,
		),
		Keywords: []string{"cable", "cables", "wiring", "ethernet", "fiber", "fibre", "network drops", "conduit"},
	},
	{
		Intent: types.IntentWifi,
		Patterns: rx(
			`\b(wi ?fi|wireless|access points?|wlan|hotspots?)\b`,
		),
		Keywords: []string{"signal", "coverage", "dead zone", "dead zones", "mesh", "router", "internet"},
	},
	{
		Intent: types.IntentServices,
		Patterns: rx(
			`\bwhat do you (guys )?(do|offer|provide|sell)\b`,
			`\bwhat can you (offer|provide)\b`,
			`\b(your )?(services|solutions|offerings)\b`,
		),
		Keywords: []string{"offer", "provide"},
	},
	{
		Intent: types.IntentPartners,
		Patterns: rx(
			`\b(partners?|partnerships?|vendors?|certified|certifications?|resellers?)\b`,
		),
		Keywords: []string{"cisco", "ubiquiti", "fortinet", "meraki", "aruba", "dell", "brands"},
	},
	{
		Intent: types.IntentCapabilities,
		Patterns: rx(
			`\bwhat can you (do|help)\b`,
			`\bhow can you help\b`,
			`\b(who|what) are you\b`,
			`\bare you (a )?(bot|robot|human|real|person|ai)\b`,
		),
	},
	{
		Intent: types.IntentHowAreYou,
		Patterns: rx(
			`\bhow (are|r) (you|u|ya)\b`,
			`\bhow('s| is) (it going|your day|everything)\b`,
			`\bhow are things\b`,
			`\b(what's|whats) up\b`,
		),
	},
	{
		Intent:   types.IntentGreeting,
		Patterns: greetingOpeners,
	},
	{
		Intent: types.IntentThanks,
		Patterns: rx(
			`\b(thanks|thank you|thank u|thx|ty|cheers|much appreciated|appreciate it)\b`,
		),
	},
	{
		Intent: types.IntentJoke,
		Patterns: rx(
			`\b(jokes?|make me laugh|something funny|funny)\b`,
		),
	},
	{
		Intent: types.IntentWeather,
		Patterns: rx(
			`\b(weather|raining|rainy|sunny|snowing|forecast|cold outside|hot outside)\b`,
		),
	},
	{
		Intent: types.IntentSmallTalk,
		Patterns: rx(
			`\b(bye|goodbye|see you|see ya|good night|nice to meet you|your name|who made you)\b`,
			`\b(favou?rite|bored|lol|haha|hehe)\b`,
		),
	},
}

var greetingOpeners = rx(
	`^(hi|hello|hey|hiya|howdy|greetings|yo|hallo|heya)\b`,
	`^good (morning|afternoon|evening|day)\b`,
)

// ellipticalPatterns mark utterances that only make sense against the current topic.
var ellipticalPatterns = rx(
	`\b(how much|cost|costs|price|prices|pricing|budget)\b`,
	`\b(tell me more|more (info|information|details)|what else|go on)\b`,
	`\b(how long|how does (it|that) work|what about|what's involved|whats involved)\b`,
	`\b(can you do (it|that)|do you do (it|that)|is that possible|sounds good|interested)\b`,
)

// =============================================================================
// CLASSIFIER
// =============================================================================

// Classifier maps normalized text plus session context to exactly one intent.
type Classifier struct {
	corpus []IntentEntry
}

// NewClassifier returns a classifier over the default corpus.
func NewClassifier() *Classifier {
	return &Classifier{corpus: IntentCorpus}
}

// NewClassifierWithCorpus uses a custom ordered corpus.
func NewClassifierWithCorpus(corpus []IntentEntry) *Classifier {
	return &Classifier{corpus: corpus}
}

// DetectIntent is total: every input yields an intent, general_inquiry when nothing matches.
// ctx may be nil.
func (c *Classifier) DetectIntent(normalized string, ctx *types.ConversationContext) types.Intent {
	intent := types.Intent{Type: types.IntentGeneralInquiry, Confidence: fallbackConfidence}

	if entry, conf, ok := c.match(normalized); ok {
		intent.Type = entry.Intent
		intent.Confidence = conf
	} else if ctx != nil && ctx.CurrentTopic.IsBusiness() && isElliptical(normalized) {
		intent.Type = ctx.CurrentTopic
		intent.Confidence = carryoverConfidence
	}

	if entities := c.ExtractEntities(normalized); !entities.IsEmpty() {
		intent.Entities = &entities
	}

	logging.PerceptionDebug("intent=%s confidence=%.2f input_len=%d", intent.Type, intent.Confidence, len(normalized))
	return intent
}

// match returns the first rule set in corpus order that fires.
func (c *Classifier) match(normalized string) (IntentEntry, float64, bool) {
	if normalized == "" {
		return IntentEntry{}, 0, false
	}
	for _, entry := range c.corpus {
		if conf, ok := scoreEntry(entry, normalized); ok {
			return entry, conf, true
		}
	}
	return IntentEntry{}, 0, false
}

// scoreEntry: a pattern hit is strong evidence; keyword hits add up to a ceiling.
func scoreEntry(entry IntentEntry, normalized string) (float64, bool) {
	for _, p := range entry.Patterns {
		if p.MatchString(normalized) {
			return patternConfidence, true
		}
	}
	hits := 0
	for _, kw := range entry.Keywords {
		if containsWord(normalized, kw) {
			hits++
		}
	}
	if hits == 0 {
		return 0, false
	}
	conf := keywordConfidence + keywordBonus*float64(hits-1)
	if conf > keywordCeiling {
		conf = keywordCeiling
	}
	return conf, true
}

func isElliptical(normalized string) bool {
	for _, p := range ellipticalPatterns {
		if p.MatchString(normalized) {
			return true
		}
	}
	return false
}

// =============================================================================
// ENTITY EXTRACTION
// =============================================================================

var headcountPattern = regexp.MustCompile(`\b(\d{1,6})\s*(employees|staff|people|users|seats|workers|desks|person team|man team)\b`)

var companySizeWords = []struct {
	size    string
	phrases []string
}{
	{"large", []string{"enterprise", "corporation", "multinational", "large company", "large organization", "large organisation", "campus", "multiple sites", "nationwide", "hundreds of"}},
	{"medium", []string{"mid size", "mid sized", "medium sized", "growing business", "several offices"}},
	{"small", []string{"small business", "small office", "startup", "start up", "home office", "sole trader", "family business", "small team", "small shop"}},
}

var urgencyWords = []struct {
	level   string
	phrases []string
}{
	{"high", []string{"urgent", "urgently", "asap", "as soon as possible", "emergency", "immediately", "right away", "right now", "critical", "is down", "went down", "outage", "today"}},
	{"medium", []string{"this week", "next week", "this month", "soon", "shortly", "in a few weeks"}},
	{"low", []string{"no rush", "no hurry", "eventually", "next year", "someday", "just browsing", "just looking", "planning ahead", "in the future"}},
}

// ExtractEntities pulls services, company size, and urgency hints from keyword co-occurrence.
func (c *Classifier) ExtractEntities(normalized string) types.Entities {
	var e types.Entities
	if normalized == "" {
		return e
	}

	for _, entry := range c.corpus {
		if !entry.Intent.IsBusiness() {
			continue
		}
		if _, ok := scoreEntry(entry, normalized); ok {
			e.Services = append(e.Services, string(entry.Intent))
		}
	}

	e.CompanySize = companySize(normalized)
	e.Urgency = urgency(normalized)
	return e
}

func companySize(normalized string) string {
	if m := headcountPattern.FindStringSubmatch(normalized); m != nil {
		n := 0
		for _, d := range m[1] {
			n = n*10 + int(d-'0')
		}
		switch {
		case n < 50:
			return "small"
		case n < 250:
			return "medium"
		default:
			return "large"
		}
	}
	for _, group := range companySizeWords {
		for _, p := range group.phrases {
			if containsWord(normalized, p) {
				return group.size
			}
		}
	}
	return ""
}

func urgency(normalized string) string {
	for _, group := range urgencyWords {
		for _, p := range group.phrases {
			if containsWord(normalized, p) {
				return group.level
			}
		}
	}
	return ""
}
