package model

// Intent is the coarse classification of an inbound message
type Intent string

const (
	IntentContactAgent Intent = "CONTACT_AGENT"
	IntentOther        Intent = "OTHER"
)

// IntentLabels maps classifier logit positions to intents.
// Index 0 is CONTACT_AGENT and index 1 is OTHER.
var IntentLabels = [2]Intent{IntentContactAgent, IntentOther}

// IsValid reports whether i is one of the known intents
func (i Intent) IsValid() bool {
	return i == IntentContactAgent || i == IntentOther
}
