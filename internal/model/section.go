package model

// Section classifications and their display labels.  The classification is
// opaque to scoring, which only compares values for equality.
var sectionLabels = map[string]string{
	"standard":          "Standard Seating",
	"student":           "Student Section",
	"premium":           "Premium Seating",
	"club":              "Club Level",
	"suite":             "Suite",
	"general_admission": "General Admission",
	"accessible":        "Accessible Seating",
}

// SectionLabel returns the human readable label of a classification.
// Unknown values are echoed back unchanged.
func SectionLabel(section string) string {
	if l, ok := sectionLabels[section]; ok {
		return l
	}
	return section
}

// KnownSection reports whether section is a configured classification.
func KnownSection(section string) bool {
	_, ok := sectionLabels[section]
	return ok
}
