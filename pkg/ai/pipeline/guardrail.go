package pipeline

import "regexp"

// RefusalText is spoken instead of answering an out-of-scope question.
const RefusalText = "I'm here to help with the project and this meeting, so I can't help with that one. " +
	"Please reach out to the right professional or your manager for it."

// Topic areas the assistant declines without consulting the model.
var guardrailPatterns = map[string]*regexp.Regexp{
	"medical":       regexp.MustCompile(`(?i)\b(diagnos\w*|symptoms?|prescri\w+|medication|dosage|should i see a doctor|medical advice|is it cancer|treatment for)\b`),
	"legal":         regexp.MustCompile(`(?i)\b(legal advice|(should|can|could) (i|we) (sue|press charges)|sue (him|her|them|my \w+)|(should|do) (i|we) (need|get|hire) (a |an )?(lawyer|attorney)|(file|start) a lawsuit|is it legal (for me )?to|break(ing)? the law|custody)\b`),
	"financial":     regexp.MustCompile(`(?i)\b(invest(ing|ment)? advice|should i (buy|sell) (more )?(shares|stocks?|crypto\w*|bitcoin)|should i invest|stock (tips?|picks?)|(buy|sell|invest in) (crypto(currency|currencies)?|bitcoin)|crypto(currency)? (tips?|advice)|retirement (fund|savings) advice|tax advice|(should i|can i afford to) (get|refinance|pay off) (a |my )?mortgage)\b`),
	"credentials":   regexp.MustCompile(`(?i)\b(what(['’]s| is)|tell me|give me|share|send me|read out) (the |my |our |your )?(admin |root |wifi |database |prod(uction)? )?(password|passcode|api key|secret key|access token|credentials|credit card( number)?|social security number|ssn)\b`),
	"opinion":       regexp.MustCompile(`(?i)\b(your (personal )?opinion (of|on|about)|what do you (personally )?think (of|about) (him|her|them)|do you like (him|her|them)|who (should|would) you vote)\b`),
	"mental_health": regexp.MustCompile(`(?i)\b(depress\w*|anxiety|suicid\w*|self[- ]harm|panic attacks?|therap(y|ist)|mental health)\b`),
	"relationships": regexp.MustCompile(`(?i)\b(my (boyfriend|girlfriend|husband|wife|partner|ex)|dating|break up with|divorce|relationship advice)\b`),
}

// Guardrail reports the topic area an utterance falls in, if any.
func Guardrail(utterance string) (string, bool) {
	for _, topic := range guardrailOrder {
		if guardrailPatterns[topic].MatchString(utterance) {
			return topic, true
		}
	}
	return "", false
}

var guardrailOrder = []string{"credentials", "medical", "mental_health", "legal", "financial", "relationships", "opinion"}
