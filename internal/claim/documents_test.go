package claim

import (
	"reflect"
	"testing"
)

func TestRequiredSlotsTable(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		cp   Counterpart
		want []string
	}{
		{"cd with counterpart", TypeCD, CounterpartYes, []string{"driving_license_customer", "driving_license_other_party", "vehicle_registration", "vehicle_damage_photo"}},
		{"cd without counterpart", TypeCD, CounterpartNo, []string{"driving_license_customer", "vehicle_registration", "vehicle_damage_photo"}},
		{"cd unanswered", TypeCD, CounterpartUnknown, []string{"driving_license_customer", "vehicle_registration", "vehicle_damage_photo"}},
		{"health", TypeH, CounterpartUnknown, []string{"citizen_id_card", "medical_certificate", "itemised_bill", "receipt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RequiredSlots(tt.typ, tt.cp)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("RequiredSlots = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRequiredSlotsReturnsCopy(t *testing.T) {
	got := RequiredSlots(TypeH, CounterpartUnknown)
	got[0] = "tampered"
	if RequiredSlots(TypeH, CounterpartUnknown)[0] != "citizen_id_card" {
		t.Fatal("caller mutated the slot table")
	}
}

func TestOptionalSlots(t *testing.T) {
	if got := OptionalSlots(TypeCD); !reflect.DeepEqual(got, []string{"vehicle_location_photo"}) {
		t.Errorf("CD optional = %v", got)
	}
	if got := OptionalSlots(TypeH); !reflect.DeepEqual(got, []string{"discharge_summary"}) {
		t.Errorf("H optional = %v", got)
	}
}

func TestMissingDocsPrefixSatisfaction(t *testing.T) {
	uploaded := map[string]string{
		"driving_license_customer": "a.jpg",
		"vehicle_registration":     "b.jpg",
		"vehicle_damage_photo_1":   "c.jpg",
		"vehicle_damage_photo_2":   "d.jpg",
		"vehicle_damage_photo_3":   "e.jpg",
	}
	if missing := MissingDocs(TypeCD, CounterpartNo, uploaded); len(missing) != 0 {
		t.Fatalf("expected nothing missing, got %v", missing)
	}

	withCounterpart := MissingDocs(TypeCD, CounterpartYes, uploaded)
	if !reflect.DeepEqual(withCounterpart, []string{"driving_license_other_party"}) {
		t.Errorf("expected only other-party license missing, got %v", withCounterpart)
	}
}

func TestMissingDocsOptionalNeverBlocks(t *testing.T) {
	uploaded := map[string]string{
		"citizen_id_card":     "a.jpg",
		"medical_certificate": "b.jpg",
		"itemised_bill":       "c.jpg",
		"receipt_1":           "d.jpg",
	}
	if missing := MissingDocs(TypeH, CounterpartUnknown, uploaded); len(missing) != 0 {
		t.Fatalf("expected complete without discharge summary, got %v", missing)
	}
	uploaded["discharge_summary"] = "e.jpg"
	if missing := MissingDocs(TypeH, CounterpartUnknown, uploaded); len(missing) != 0 {
		t.Fatalf("optional upload changed completeness: %v", missing)
	}
}

func TestMissingDocsMonotonic(t *testing.T) {
	sequence := []string{
		"vehicle_location_photo",
		"vehicle_damage_photo_1",
		"driving_license_other_party",
		"vehicle_damage_photo_2",
		"vehicle_registration",
		"driving_license_customer",
	}
	for _, cp := range []Counterpart{CounterpartYes, CounterpartNo} {
		uploaded := map[string]string{}
		prev := toSet(MissingDocs(TypeCD, cp, uploaded))
		for _, key := range sequence {
			uploaded[key] = key + ".jpg"
			cur := toSet(MissingDocs(TypeCD, cp, uploaded))
			for k := range cur {
				if !prev[k] {
					t.Fatalf("counterpart=%q: %s appeared after uploading %s", cp, k, key)
				}
			}
			prev = cur
		}
		if len(prev) != 0 {
			t.Errorf("counterpart=%q: expected complete, still missing %v", cp, prev)
		}
	}
}

func TestSlotKey(t *testing.T) {
	uploaded := map[string]string{}
	if got := SlotKey(CategoryDrivingLicense, uploaded); got != "driving_license_customer" {
		t.Errorf("license slot = %s", got)
	}
	if got := SlotKey(CategoryVehicleRegistration, uploaded); got != "vehicle_registration" {
		t.Errorf("registration slot = %s", got)
	}

	first := SlotKey(CategoryVehicleDamagePhoto, uploaded)
	if first != "vehicle_damage_photo_1" {
		t.Fatalf("first damage slot = %s", first)
	}
	uploaded[first] = "x.jpg"
	if got := SlotKey(CategoryVehicleDamagePhoto, uploaded); got != "vehicle_damage_photo_2" {
		t.Errorf("second damage slot = %s", got)
	}
	if got := SlotKey(CategoryReceipt, uploaded); got != "receipt_1" {
		t.Errorf("receipt count must be scoped to its category, got %s", got)
	}
}

func TestBaseKeyAndLabel(t *testing.T) {
	if got := BaseKey("receipt_12"); got != "receipt" {
		t.Errorf("BaseKey(receipt_12) = %s", got)
	}
	if got := BaseKey("driving_license_customer"); got != "driving_license_customer" {
		t.Errorf("BaseKey kept suffix wrong: %s", got)
	}
	if got := SlotLabel("vehicle_damage_photo_2"); got != "รูปความเสียหาย / Damage photo #2" {
		t.Errorf("SlotLabel = %q", got)
	}
	if got := SlotLabel("mystery"); got != "mystery" {
		t.Errorf("unknown slot label = %q", got)
	}
}

func TestCategoryValid(t *testing.T) {
	if len(Categories) != 9 {
		t.Fatalf("expected nine categories, got %d", len(Categories))
	}
	if CategoryUnknown.Valid() {
		t.Error("unknown must not be part of the closed set")
	}
	if !Category("itemised_bill").Valid() {
		t.Error("itemised_bill should be valid")
	}
}

func toSet(keys []string) map[string]bool {
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out
}
