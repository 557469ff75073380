package conversation

import (
	"fmt"
	"strings"

	"github.com/user/claimline/internal/claim"
	"github.com/user/claimline/internal/intent"
	"github.com/user/claimline/internal/policy"
	"github.com/user/claimline/internal/session"
	"github.com/user/claimline/internal/types"
)

const (
	msgCancelled = "🔄 ยกเลิกการเคลมแล้ว / Claim cancelled.\n" +
		"พิมพ์ 'เคลม' เพื่อเริ่มใหม่ / Type 'claim' to start over."
	msgWelcome = "👋 ยินดีต้อนรับสู่บริการแจ้งเคลม / Welcome to claims intake.\n\n" +
		"พิมพ์ 'เคลม' เพื่อเริ่มแจ้งเคลม / Type 'claim' to start.\n" +
		"พิมพ์ 'ยกเลิก' เพื่อเริ่มใหม่ได้ทุกเมื่อ / Type 'cancel' to start over at any time."
	msgChooseClaimType  = "❓ กรุณาเลือกประเภทการเคลม / Please select a claim type:"
	msgSystemError      = "❌ ระบบขัดข้อง กรุณาติดต่อเจ้าหน้าที่ / System error. Please contact support."
	msgTypeClaimToStart = "ℹ️ กรุณาพิมพ์ 'เคลม' เพื่อเริ่มขั้นตอน / Type 'claim' to start."
	msgImageFailed      = "❌ ไม่สามารถรับรูปภาพได้ กรุณาลองใหม่ / Could not receive the image, please resend."
	msgCheckingIdentity = "🔍 กำลังตรวจสอบข้อมูลจากรูปภาพ... / Reading your photo..."
	msgAnalysing        = "🔍 กำลังวิเคราะห์เอกสาร... / Analysing document..."

	msgPolicyNotFound = "❌ ไม่พบข้อมูลกรมธรรม์ กรุณาตรวจสอบข้อมูลอีกครั้ง\n\n" +
		"❌ Policy not found. Please check your information and try again."
	msgUnreadableIdentity = "❌ ไม่พบข้อมูลในรูปภาพ\n" +
		"กรุณาส่งรูปบัตรประชาชน หรือพิมพ์เลขบัตร 13 หลัก\n\n" +
		"❌ Could not read image.\n" +
		"Please send a clear ID card photo or type your 13-digit ID number."
	msgPolicyExpired = "⚠️ กรมธรรม์หมดอายุ / Policy expired.\n" +
		"กรุณาติดต่อ %s เพื่อต่ออายุ\n\n" +
		"Please contact your insurer to renew."
	msgPolicyInactive   = "⚠️ กรมธรรม์ไม่ได้ใช้งาน / Policy inactive. Contact your insurer."
	msgSelectVehicle    = "🚘 พบรถยนต์หลายคัน กรุณาเลือก / Several vehicles found, please select:"
	msgSelectionMissing = "❌ ไม่พบทะเบียนที่เลือก กรุณาเลือกอีกครั้ง / Vehicle not found. Please try again."

	msgCounterpartQuestion = "🚘 พบข้อมูลรถยนต์แล้ว! / Vehicle found!\n\n" +
		"❓ มีคู่กรณีหรือไม่? / Is there a counterpart vehicle?\n" +
		"กรุณาเลือก / Please select:"
	msgChooseFromButtons = "❌ กรุณาเลือกจากปุ่ม / Please choose from buttons:"

	msgOwnershipInvalid = "⚠️ กรุณาเลือก / Please select:"
	msgOwnershipTaken   = "⚠️ มีใบขับขี่ฝั่ง '%s' อยู่แล้ว / Driving license for '%s' already uploaded.\n" +
		"กรุณาเลือกฝั่งที่ถูกต้อง / Please select the correct side:"
	msgNoPending = "⚠️ ไม่พบข้อมูลรอยืนยัน / No pending data. Please re-upload."

	msgBothLicenses = "ℹ️ ได้รับใบขับขี่ทั้งสองฝ่ายแล้ว ไม่ได้บันทึกรูปนี้ / " +
		"Both driving licenses are already received. This photo was not saved."

	msgLicensePending = "⚠️ ยังมีใบขับขี่ที่รอยืนยันเจ้าของ ไม่ได้บันทึกรูปนี้ / " +
		"A driving license is still waiting for its owner. This photo was not saved; please answer first, then resend it."

	msgStoreFailed      = "❌ บันทึกเอกสารไม่สำเร็จ กรุณาส่งใหม่ / Could not save the document, please resend."
	msgUploadReminder   = "📷 กรุณาส่งรูปเอกสาร หรือพิมพ์ 'ส่งคำร้อง' เมื่อครบ / Please send a document photo, or type 'submit' when done."
	msgSubmitPrompt     = "🎉 เอกสารครบแล้ว! / All documents received!\nกด 'ส่งคำร้อง' เพื่อยืนยัน หรือพิมพ์รายละเอียดเพิ่มเติม / Tap 'submit' to confirm or type extra details."
	msgNoteSaved        = "📝 บันทึกรายละเอียดแล้ว / Note saved."
	msgSubmitted        = "✅ ส่งคำร้องสำเร็จ / Claim submitted.\nClaim ID: %s\nเจ้าหน้าที่จะติดต่อกลับโดยเร็ว / Our team will contact you shortly."
	msgAlreadySubmitted = "✅ คำร้อง %s ส่งแล้ว / Claim submitted.\n" +
		"พิมพ์ 'เคลม' เพื่อเริ่มคำร้องใหม่ / Type 'claim' to start a new one."
	msgReminder = "⏰ คำร้อง %s ยังขาดเอกสาร / Claim %s is still missing documents:\n%s\n\n" +
		"กรุณาส่งรูปเพื่อดำเนินการต่อ / Send a photo to continue."
)

// SubmitChoice is the quick-reply label offered once documents are complete.
const SubmitChoice = "ส่งคำร้อง"

var (
	claimTypeChoices   = []string{intent.ChoiceCD, intent.ChoiceH}
	counterpartChoices = []string{claim.LabelHasCounterpart, claim.LabelNoCounterpart}
	ownershipChoices   = []string{intent.OwnerCustomerLabel, intent.OwnerOtherPartyLabel}
)

func typeName(t claim.Type) string {
	if t == claim.TypeH {
		return "สุขภาพ / Health"
	}
	return "รถยนต์ / Vehicle damage"
}

func claimCreated(claimID string, t claim.Type) string {
	return fmt.Sprintf("📄 เปิดคำร้องแล้ว / Claim opened.\nClaim ID: %s\nประเภท / Type: %s", claimID, typeName(t))
}

func identityRequest(t claim.Type) string {
	if t == claim.TypeH {
		return "🪪 กรุณายืนยันตัวตน / Please verify your identity.\n" +
			"พิมพ์เลขบัตรประชาชน 13 หลัก หรือส่งรูปบัตรประชาชน\n" +
			"Type your 13-digit ID number or send a photo of your ID card."
	}
	return "🪪 กรุณายืนยันตัวตน / Please verify your identity.\n" +
		"พิมพ์เลขบัตรประชาชน 13 หลัก ทะเบียนรถ หรือชื่อผู้เอาประกัน หรือส่งรูปบัตร/ป้ายทะเบียน\n" +
		"Type your 13-digit ID, plate number or name, or send a photo of your ID card or plate."
}

func policyCard(p *policy.Policy) string {
	var b strings.Builder
	b.WriteString("📋 พบข้อมูลกรมธรรม์ / Policy found\n")
	fmt.Fprintf(&b, "เลขกรมธรรม์ / Policy: %s\n", p.PolicyNumber)
	fmt.Fprintf(&b, "ผู้เอาประกัน / Insured: %s\n", p.FullName())
	if p.Plate != "" {
		fmt.Fprintf(&b, "ทะเบียน / Plate: %s\n", p.Plate)
	}
	if vehicle := strings.TrimSpace(p.VehicleBrand + " " + p.VehicleModel); vehicle != "" {
		fmt.Fprintf(&b, "รถยนต์ / Vehicle: %s\n", vehicle)
	}
	if p.CoverageType != "" {
		fmt.Fprintf(&b, "ความคุ้มครอง / Coverage: %s\n", p.CoverageType)
	}
	if p.EndDate != "" {
		fmt.Fprintf(&b, "สิ้นสุด / Expires: %s\n", p.EndDate)
	}
	b.WriteString("บริษัท / Insurer: " + p.InsuranceCompany)
	return b.String()
}

func selectionChoices(candidates []policy.Policy) []string {
	out := make([]string, 0, len(candidates))
	for i := range candidates {
		out = append(out, intent.SelectionPrefix+" "+candidates[i].Label())
	}
	return out
}

func selectionPrompt(candidates []policy.Policy) types.OutboundMessage {
	var b strings.Builder
	b.WriteString(msgSelectVehicle)
	for i := range candidates {
		p := &candidates[i]
		line := p.Label()
		if vehicle := strings.TrimSpace(p.VehicleBrand + " " + p.VehicleModel); vehicle != "" {
			line += " " + vehicle
		}
		b.WriteString("\n• " + line)
	}
	return types.OutboundMessage{Text: b.String(), Choices: selectionChoices(candidates)}
}

func countUploads(slot string, uploaded map[string]string) int {
	n := 0
	for key := range uploaded {
		if key == slot || strings.HasPrefix(key, slot+"_") {
			n++
		}
	}
	return n
}

func checklistLine(slot string, uploaded map[string]string) string {
	n := countUploads(slot, uploaded)
	mark := "⬜"
	if n > 0 {
		mark = "✅"
	}
	line := mark + " " + claim.SlotLabel(slot)
	if claim.Category(slot).MultiInstance() && n > 0 {
		line += fmt.Sprintf(" (%d)", n)
	}
	return line
}

// checklist renders the required and optional slots with their upload state.
func checklist(s *session.Session) string {
	var b strings.Builder
	b.WriteString("📋 รายการเอกสาร / Document checklist")
	for _, slot := range claim.RequiredSlots(s.ClaimType, s.Counterpart) {
		b.WriteString("\n" + checklistLine(slot, s.UploadedDocs))
	}
	if optional := claim.OptionalSlots(s.ClaimType); len(optional) > 0 {
		b.WriteString("\n\nไม่บังคับ / Optional:")
		for _, slot := range optional {
			b.WriteString("\n" + checklistLine(slot, s.UploadedDocs))
		}
	}
	return b.String()
}

func bulletList(slots []string) string {
	lines := make([]string, len(slots))
	for i, slot := range slots {
		lines[i] = "  • " + claim.SlotLabel(slot)
	}
	return strings.Join(lines, "\n")
}

func missingDocuments(missing []string) string {
	return "⚠️ ยังไม่ครบเอกสาร / Documents still missing:\n" +
		bulletList(missing) +
		"\n\nกรุณาอัปโหลดให้ครบ / Please upload all required documents."
}

func unknownDocument(missing []string) string {
	text := "❌ ไม่รู้จักเอกสาร / Unknown document type"
	if len(missing) > 0 {
		text += "\n\nเอกสารที่ยังขาด / Still missing:\n" + bulletList(missing)
	}
	return text + "\n\nกรุณาส่งรูปใหม่ / Please resend a correct document photo."
}

func documentReceived(slot string, s *session.Session) string {
	return "✅ ได้รับเอกสารแล้ว / Document received: " + claim.SlotLabel(slot) + "\n\n" + checklist(s)
}

func ownershipQuestion(fields map[string]any) types.OutboundMessage {
	text := "🪪 ได้รับใบขับขี่แล้ว / Driving license received."
	for _, key := range []string{"full_name_th", "full_name_en"} {
		if name, ok := fields[key].(string); ok && strings.TrimSpace(name) != "" {
			text += "\nชื่อ / Name: " + strings.TrimSpace(name)
			break
		}
	}
	text += "\n\n❓ ใบขับขี่นี้เป็นของใคร? / Whose driving license is this?"
	return types.OutboundMessage{Text: text, Choices: ownershipChoices}
}

func submitPrompt() types.OutboundMessage {
	return types.OutboundMessage{Text: msgSubmitPrompt, Choices: []string{SubmitChoice}}
}

// Reminder is the nudge pushed to sessions idling with documents missing.
func Reminder(s *session.Session) types.OutboundMessage {
	return types.Text(fmt.Sprintf(msgReminder, s.ClaimID, s.ClaimID, bulletList(s.MissingDocs())))
}
