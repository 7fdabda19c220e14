package intake

import (
	"regexp"
	"strings"
)

// Confirmation tokens a patient may send to accept a pending doctor
// consultation offer.
var confirmTokens = map[string]struct{}{
	"1":         {},
	"确认1":       {},
	"确认 1":      {},
	"confirm1":  {},
	"confirm 1": {},
}

// Phrases that signal the patient wants a human doctor. Matched on the
// whitespace-stripped message so spacing tricks do not dodge the detector.
var doctorRequestPhrases = []string{
	"找医生",
	"要医生",
	"转医生",
	"必须医生",
	"非要医生",
	"一定要医生",
	"医生亲自",
	"真人医生",
	"联系医生",
	"找专家",
	"找主治",
}

var whitespacePattern = regexp.MustCompile(`\s+`)

// isConfirmation reports whether the message is a consultation confirmation.
func isConfirmation(message string) bool {
	normalized := strings.ToLower(strings.TrimSpace(message))
	_, ok := confirmTokens[normalized]
	return ok
}

// wantsDoctor reports whether the message asks for a human doctor.
func wantsDoctor(message string) bool {
	stripped := whitespacePattern.ReplaceAllString(message, "")
	for _, phrase := range doctorRequestPhrases {
		if strings.Contains(stripped, phrase) {
			return true
		}
	}
	return false
}
