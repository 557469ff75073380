package claim

import (
	"strconv"
	"strings"
)

// Category is a document class returned by the classifier.
type Category string

const (
	CategoryDrivingLicense       Category = "driving_license"
	CategoryVehicleRegistration  Category = "vehicle_registration"
	CategoryCitizenIDCard        Category = "citizen_id_card"
	CategoryReceipt              Category = "receipt"
	CategoryMedicalCertificate   Category = "medical_certificate"
	CategoryItemisedBill         Category = "itemised_bill"
	CategoryDischargeSummary     Category = "discharge_summary"
	CategoryVehicleDamagePhoto   Category = "vehicle_damage_photo"
	CategoryVehicleLocationPhoto Category = "vehicle_location_photo"
	CategoryUnknown              Category = "unknown"
)

// Categories is the closed set the classifier may return, excluding unknown.
var Categories = []Category{
	CategoryDrivingLicense,
	CategoryVehicleRegistration,
	CategoryCitizenIDCard,
	CategoryReceipt,
	CategoryMedicalCertificate,
	CategoryItemisedBill,
	CategoryDischargeSummary,
	CategoryVehicleDamagePhoto,
	CategoryVehicleLocationPhoto,
}

// Valid reports whether c belongs to the closed category set.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// MultiInstance reports whether a claim may hold several uploads of c.
func (c Category) MultiInstance() bool {
	return c == CategoryVehicleDamagePhoto || c == CategoryReceipt
}

// Slot keys that do not share a category name.
const (
	SlotDrivingLicenseCustomer   = "driving_license_customer"
	SlotDrivingLicenseOtherParty = "driving_license_other_party"
)

var (
	requiredCDWithCounterpart = []string{
		SlotDrivingLicenseCustomer,
		SlotDrivingLicenseOtherParty,
		string(CategoryVehicleRegistration),
		string(CategoryVehicleDamagePhoto),
	}
	requiredCDNoCounterpart = []string{
		SlotDrivingLicenseCustomer,
		string(CategoryVehicleRegistration),
		string(CategoryVehicleDamagePhoto),
	}
	requiredH = []string{
		string(CategoryCitizenIDCard),
		string(CategoryMedicalCertificate),
		string(CategoryItemisedBill),
		string(CategoryReceipt),
	}
	optionalCD = []string{string(CategoryVehicleLocationPhoto)}
	optionalH  = []string{string(CategoryDischargeSummary)}
)

// RequiredSlots returns the ordered required slot keys for a claim. A CD
// claim whose counterpart answer is still unknown uses the no-counterpart list.
func RequiredSlots(t Type, c Counterpart) []string {
	var src []string
	switch t {
	case TypeCD:
		if c == CounterpartYes {
			src = requiredCDWithCounterpart
		} else {
			src = requiredCDNoCounterpart
		}
	case TypeH:
		src = requiredH
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// OptionalSlots returns slot keys that are accepted but never block submission.
func OptionalSlots(t Type) []string {
	var src []string
	switch t {
	case TypeCD:
		src = optionalCD
	case TypeH:
		src = optionalH
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// MissingDocs lists the required slot keys not yet satisfied by uploaded.
// A required key is satisfied by an exact slot key or by any uploaded key
// that has it as a prefix, so one numbered damage photo satisfies
// vehicle_damage_photo.
func MissingDocs(t Type, c Counterpart, uploaded map[string]string) []string {
	var missing []string
	for _, req := range RequiredSlots(t, c) {
		if !satisfied(req, uploaded) {
			missing = append(missing, req)
		}
	}
	return missing
}

func satisfied(required string, uploaded map[string]string) bool {
	if _, ok := uploaded[required]; ok {
		return true
	}
	for key := range uploaded {
		if strings.HasPrefix(key, required) {
			return true
		}
	}
	return false
}

// SlotKey picks the storage slot for an upload of category c. Driving
// licenses map to the customer slot; multi-instance categories get a 1-based
// running count scoped to the category.
func SlotKey(c Category, uploaded map[string]string) string {
	switch {
	case c == CategoryDrivingLicense:
		return SlotDrivingLicenseCustomer
	case c.MultiInstance():
		prefix := string(c)
		n := 0
		for key := range uploaded {
			if strings.HasPrefix(key, prefix) {
				n++
			}
		}
		return prefix + "_" + strconv.Itoa(n+1)
	default:
		return string(c)
	}
}

// BaseKey strips the running count from a multi-instance slot key, so
// "receipt_2" becomes "receipt". Other keys are returned unchanged.
func BaseKey(slot string) string {
	for _, c := range Categories {
		if !c.MultiInstance() {
			continue
		}
		prefix := string(c) + "_"
		if strings.HasPrefix(slot, prefix) {
			if _, err := strconv.Atoi(slot[len(prefix):]); err == nil {
				return string(c)
			}
		}
	}
	return slot
}

var slotLabels = map[string]string{
	SlotDrivingLicenseCustomer:           "ใบขับขี่ (ของคุณ) / Your driving license",
	SlotDrivingLicenseOtherParty:         "ใบขับขี่ (คู่กรณี) / Other party's driving license",
	string(CategoryVehicleRegistration):  "เล่มทะเบียนรถ / Vehicle registration",
	string(CategoryVehicleDamagePhoto):   "รูปความเสียหาย / Damage photo",
	string(CategoryVehicleLocationPhoto): "รูปสถานที่เกิดเหตุ / Location photo",
	string(CategoryCitizenIDCard):        "บัตรประชาชน / Citizen ID card",
	string(CategoryMedicalCertificate):   "ใบรับรองแพทย์ / Medical certificate",
	string(CategoryItemisedBill):         "ใบแจงค่าใช้จ่าย / Itemised bill",
	string(CategoryReceipt):              "ใบเสร็จรับเงิน / Receipt",
	string(CategoryDischargeSummary):     "สรุปการรักษา / Discharge summary",
	string(CategoryDrivingLicense):       "ใบขับขี่ / Driving license",
}

// SlotLabel returns a bilingual display name for a slot key.
func SlotLabel(slot string) string {
	base := BaseKey(slot)
	label, ok := slotLabels[base]
	if !ok {
		return slot
	}
	if base != slot {
		return label + " #" + slot[len(base)+1:]
	}
	return label
}
