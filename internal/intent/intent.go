// Package intent classifies free-text chat input. Every matcher is a pure
// function over trimmed, lower-cased text so the vocabularies live in one
// place and can be tested without a conversation.
package intent

import (
	"regexp"
	"strings"

	"github.com/user/claimline/internal/claim"
)

var (
	cancelKeywords  = []string{"ยกเลิก", "cancel", "เริ่มใหม่", "restart"}
	triggerKeywords = []string{"เช็คสิทธิ์เคลมด่วน", "เช็คสิทธิ์", "เคลม", "claim", "insurance"}
	cdKeywords      = []string{"รถ", "ชน", "เฉี่ยว", "ขโมย", "หาย", "car", "vehicle", "accident", "damage", "crash"}
	hKeywords       = []string{"เจ็บ", "ป่วย", "ผ่าตัด", "โรงพยาบาล", "health", "sick", "hospital", "medical", "surgery"}
	submitKeywords  = []string{"ส่งคำร้อง", "submit"}

	customerPhrases   = []string{"ของฉัน", "ฝ่ายเรา", "mine", "ours", "our side"}
	customerWords     = []string{"my"}
	otherPartyPhrases = []string{"คู่กรณี", "อีกฝ่าย", "counterpart", "other party", "their"}
)

// Detection is the outcome of claim-type keyword detection.
type Detection int

const (
	DetectNone Detection = iota
	DetectCD
	DetectH
	DetectAmbiguous
)

func (d Detection) String() string {
	switch d {
	case DetectCD:
		return "CD"
	case DetectH:
		return "H"
	case DetectAmbiguous:
		return "ambiguous"
	}
	return "none"
}

// ClaimType returns the claim type for a clean detection.
func (d Detection) ClaimType() (claim.Type, bool) {
	switch d {
	case DetectCD:
		return claim.TypeCD, true
	case DetectH:
		return claim.TypeH, true
	}
	return "", false
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// IsCancel reports whether text asks to abandon the current conversation.
func IsCancel(text string) bool {
	return containsAny(normalize(text), cancelKeywords)
}

// DetectClaimType tests text against the vehicle-damage and health
// vocabularies independently. Matches in both yield DetectAmbiguous.
func DetectClaimType(text string) Detection {
	t := normalize(text)
	cd := containsAny(t, cdKeywords)
	h := containsAny(t, hKeywords)
	switch {
	case cd && h:
		return DetectAmbiguous
	case cd:
		return DetectCD
	case h:
		return DetectH
	}
	return DetectNone
}

// IsTrigger reports whether text should start a claim: an explicit start
// phrase or any claim-type keyword.
func IsTrigger(text string) bool {
	if containsAny(normalize(text), triggerKeywords) {
		return true
	}
	return DetectClaimType(text) != DetectNone
}

// IsSubmit reports whether text is the submit command.
func IsSubmit(text string) bool {
	return containsAny(normalize(text), submitKeywords)
}

// Chooser labels offered when the claim type could not be detected.
const (
	ChoiceCD = "รถยนต์ (CD)"
	ChoiceH  = "สุขภาพ (H)"
)

// ParseClaimTypeChoice validates a reply to the claim-type chooser. Only the
// two chooser labels, or the bare type codes, are accepted.
func ParseClaimTypeChoice(text string) (claim.Type, bool) {
	t := strings.TrimSpace(text)
	switch {
	case t == ChoiceCD || strings.EqualFold(t, string(claim.TypeCD)):
		return claim.TypeCD, true
	case t == ChoiceH || strings.EqualFold(t, string(claim.TypeH)):
		return claim.TypeH, true
	}
	return "", false
}

// ParseCounterpart accepts exactly one of the two counterpart labels.
func ParseCounterpart(text string) (claim.Counterpart, bool) {
	switch strings.TrimSpace(text) {
	case claim.LabelHasCounterpart:
		return claim.CounterpartYes, true
	case claim.LabelNoCounterpart:
		return claim.CounterpartNo, true
	}
	return claim.CounterpartUnknown, false
}

// Ownership labels offered when a driving license needs an owner.
const (
	OwnerCustomerLabel   = "ของฉัน (ฝ่ายเรา)"
	OwnerOtherPartyLabel = "คู่กรณี (อีกฝ่าย)"
)

// ParseOwnership maps an ownership answer to a driving-license slot key.
// The customer phrases are checked first because "ไม่มีคู่กรณี" contains
// "คู่กรณี". A bare "my" is weaker than an other-party phrase, so
// "my counterpart's" names the other party.
func ParseOwnership(text string) (string, bool) {
	t := normalize(text)
	switch {
	case containsAny(t, customerPhrases):
		return claim.SlotDrivingLicenseCustomer, true
	case containsAny(t, otherPartyPhrases):
		return claim.SlotDrivingLicenseOtherParty, true
	case hasWord(t, customerWords):
		return claim.SlotDrivingLicenseCustomer, true
	}
	return "", false
}

func hasWord(t string, words []string) bool {
	for _, f := range strings.FieldsFunc(t, func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	}) {
		for _, w := range words {
			if f == w {
				return true
			}
		}
	}
	return false
}

// SelectionPrefix precedes a plate or policy number in selection replies.
const SelectionPrefix = "เลือกทะเบียน"

// ParseSelection strips the selection prefix from a candidate-selection reply.
func ParseSelection(text string) string {
	t := strings.TrimSpace(text)
	t = strings.TrimPrefix(t, SelectionPrefix)
	return strings.TrimSpace(t)
}

var nationalIDPattern = regexp.MustCompile(`^\d{13}$`)

// CleanIdentifier removes the dashes and spaces customers type inside IDs
// and plates.
func CleanIdentifier(text string) string {
	return strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(text))
}

// NationalID returns the 13-digit national ID in text, if text is exactly one.
func NationalID(text string) (string, bool) {
	cleaned := CleanIdentifier(text)
	if nationalIDPattern.MatchString(cleaned) {
		return cleaned, true
	}
	return "", false
}
