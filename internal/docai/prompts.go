package docai

import (
	"fmt"
	"sort"
	"strings"

	"github.com/user/claimline/internal/claim"
)

var classifyPrompt = func() string {
	names := make([]string, 0, len(claim.Categories))
	for _, c := range claim.Categories {
		names = append(names, "  - "+string(c))
	}
	sort.Strings(names)
	return `You are a document classifier for an insurance claims system.
Examine this image and classify it into exactly ONE of the following categories:

` + strings.Join(names, "\n") + `
  - unknown

Return ONLY the category name: a single lowercase string with underscores, no spaces,
no markdown, no quotes, no punctuation.

Examples of correct output:
  driving_license
  vehicle_damage_photo
  citizen_id_card
  unknown
`
}()

const commonRules = `
Rules:
- Thai documents use Buddhist Era (พ.ศ.). Convert ALL dates to Gregorian by subtracting 543.
  Example: พ.ศ. 2563 → 2020. Return all dates as YYYY-MM-DD.
- If a field cannot be read clearly, return null. NEVER guess or fabricate values.
- Return ONLY valid JSON. No markdown code fences, no prose, no explanation.
`

var extractPrompts = map[claim.Category]string{
	claim.CategoryDrivingLicense: `Extract fields from this Thai driving license image.
Return JSON only:
{
  "full_name_th": "<Thai full name or null>",
  "full_name_en": "<English full name or null>",
  "license_id": "<8-digit license number or null>",
  "citizen_id": "<13-digit citizen ID or null>",
  "date_of_birth": "<YYYY-MM-DD or null>",
  "issue_date": "<YYYY-MM-DD or null>",
  "expiry_date": "<YYYY-MM-DD or null>"
}`,

	claim.CategoryVehicleRegistration: `Extract fields from this Thai vehicle registration document.
Return JSON only:
{
  "plate": "<license plate text or null>",
  "province": "<province name in Thai or null>",
  "vehicle_type": "<vehicle type in Thai or null>",
  "brand": "<manufacturer brand or null>",
  "chassis_number": "<17-character VIN / chassis number or null>",
  "engine_number": "<engine number or null>",
  "model_year": "<4-digit year or null>"
}`,

	claim.CategoryCitizenIDCard: `Extract fields from this Thai national ID card.
Return JSON only:
{
  "full_name_th": "<Thai full name or null>",
  "full_name_en": "<English full name or null>",
  "citizen_id": "<13-digit citizen ID or null>",
  "date_of_birth": "<YYYY-MM-DD or null>",
  "issue_date": "<YYYY-MM-DD or null>",
  "expiry_date": "<YYYY-MM-DD or null>"
}`,

	claim.CategoryMedicalCertificate: `Extract fields from this medical certificate.
Return JSON only:
{
  "patient_name": "<patient full name or null>",
  "diagnosis": "<diagnosis description or null>",
  "treatment": "<treatment description or null>",
  "doctor_name": "<doctor full name or null>",
  "hospital": "<hospital name or null>",
  "date": "<YYYY-MM-DD or null>"
}`,

	claim.CategoryItemisedBill: `Extract fields from this itemised medical bill.
Return JSON only:
{
  "line_items": [
    {"description": "<item description>", "amount": <numeric THB>}
  ],
  "total": <numeric THB total or null>
}`,

	claim.CategoryDischargeSummary: `Extract fields from this hospital discharge summary.
Return JSON only:
{
  "diagnosis": "<primary diagnosis or null>",
  "treatment": "<treatment summary or null>",
  "admission_date": "<YYYY-MM-DD or null>",
  "discharge_date": "<YYYY-MM-DD or null>"
}`,

	claim.CategoryReceipt: `Extract fields from this medical receipt or payment receipt.
Return JSON only:
{
  "hospital_name": "<hospital or clinic name or null>",
  "billing_number": "<billing/receipt number or null>",
  "total_paid": <numeric THB or null>,
  "date": "<YYYY-MM-DD or null>",
  "items": [
    {"description": "<item description>", "amount": <numeric THB>}
  ]
}`,

	claim.CategoryVehicleDamagePhoto: `Analyse this vehicle damage photo.
GPS coordinates are added separately from the photo metadata.
Return JSON only:
{
  "damage_location": "<location on vehicle e.g. ประตูซ้ายหน้า or null>",
  "damage_description": "<description of damage in Thai or null>",
  "severity": "minor" | "moderate" | "severe" | null
}`,

	claim.CategoryVehicleLocationPhoto: `Analyse this vehicle location photo.
GPS coordinates are added separately from the photo metadata.
Return JSON only:
{
  "location_description": "<road/area description in Thai or null>",
  "road_conditions": "<road condition e.g. แห้ง, เปียก or null>",
  "weather_conditions": "<weather e.g. แดด, ฝนตก, เมฆมาก or null>"
}`,
}

func extractPrompt(c claim.Category) (string, bool) {
	p, ok := extractPrompts[c]
	if !ok {
		return "", false
	}
	return p + "\n" + commonRules, true
}

const identityPrompt = `Analyse this image. Determine if it is a Thai national ID card, a Thai driving
license or a Thai vehicle registration plate.

Return ONLY valid JSON in this exact format, no markdown, no prose:
{
  "type": "id_card" | "driving_license" | "license_plate" | "unknown",
  "value": "<13-digit national ID number OR license plate text OR null>"
}

Rules:
1. National ID card: extract the 13-digit ID number (digits only, no dashes or spaces).
2. Driving license: extract the 13-digit citizen ID printed on it (digits only).
3. Vehicle plate or registration: extract the plate characters (e.g. "1กข1234"), no province.
4. If the image is unclear or none of the above: type = "unknown", value = null.
5. Never mask digits with asterisks (*). Return ALL digits.
`

func summaryPrompt(req SummaryRequest, extracted string) string {
	var b strings.Builder
	b.WriteString("Generate a concise bilingual (Thai + English) claim summary in Markdown.\n")
	fmt.Fprintf(&b, "Claim ID: %s\n", req.ClaimID)
	fmt.Fprintf(&b, "Type: %s\n", req.ClaimType)
	fmt.Fprintf(&b, "Has counterpart: %s\n", req.Counterpart.Label())
	policyNumber := req.PolicyNumber
	if policyNumber == "" {
		policyNumber = "N/A"
	}
	fmt.Fprintf(&b, "Policy number: %s\n", policyNumber)
	fmt.Fprintf(&b, "Extracted data: %s\n", extracted)
	if req.AdditionalInfo != "" {
		fmt.Fprintf(&b, "Customer note: %s\n", req.AdditionalInfo)
	}
	fmt.Fprintf(&b, "\nFormat:\n# ข้อมูลสรุปการเคลม / Claim Summary\n## %s\n…sections…\n", req.ClaimID)
	return b.String()
}
