// Package doctypes holds the fixed mapping between the legacy Frappe Desk
// doctypes and their Helpdesk replacements, plus the naming rules the
// framework uses to derive table and sequence names from a doctype.
package doctypes

import "strings"

// Pair maps a legacy doctype to the doctype that replaces it.
type Pair struct {
	Old string
	New string
}

// Mapping lists every legacy doctype in the order the migration visits them.
var Mapping = []Pair{
	{"Agent Group Item", "HD Team Item"},
	{"Agent Group", "HD Team"},
	{"Agent", "HD Agent"},
	{"Article Item", "HD Article Item"},
	{"Article", "HD Article"},
	{"Canned Response", "HD Canned Response"},
	{"Category", "HD Article Category"},
	{"Desk Account Request", "HD Desk Account Request"},
	{"FD Customer", "HD Customer"},
	{"FD Preset Filter Item", "HD Preset Filter Item"},
	{"FD Preset Filter", "HD Preset Filter"},
	{"Frappe Desk Comment", "HD Ticket Comment"},
	{"Frappe Desk Notification", "HD Notification"},
	{"Holiday", "HD Holiday"},
	{"Organization Contact Item", "HD Organization Contact Item"},
	{"Organization", "HD Organization"},
	{"Pause SLA On Status", "HD Pause Service Level Agreement On Status"},
	{"Portal Signup Request", "HD Portal Signup Request"},
	{"SLA Fulfilled On Status", "HD Service Level Agreement Fulfilled On Status"},
	{"SLA", "HD Service Level Agreement"},
	{"Service Day", "HD Service Day"},
	{"Service Holiday List", "HD Service Holiday List"},
	{"Service Level Priority", "HD Service Level Priority"},
	{"Sub Category Item", "HD Article Sub Category Item"},
	{"Support Search Source", "HD Support Search Source"},
	{"Teams User", "HD Team Member"},
	{"Ticket Activity", "HD Ticket Activity"},
	{"Ticket Custom Field Item", "HD Ticket Custom Field Item"},
	{"Ticket Custom Field", "HD Ticket Custom Field"},
	{"Ticket Custom Fields Config", "HD Ticket Custom Field Config"},
	{"Ticket Priority", "HD Ticket Priority"},
	{"Ticket Template DocField", "HD Ticket Template DocField"},
	{"Ticket Template", "HD Ticket Template"},
	{"Ticket Type", "HD Ticket Type"},
	{"Ticket", "HD Ticket"},
	{"User Article Feedback", "HD Article Feedback"},
}

// WithSequence lists the new doctypes named by an auto-increment sequence.
var WithSequence = []string{
	"HD Preset Filter Item",
	"HD Team Item",
	"HD Team Member",
	"HD Ticket Custom Field Item",
}

// Settings singletons and framework doctypes touched by the migration.
const (
	OldSettings    = "Frappe Desk Settings"
	NewSettings    = "HD Settings"
	SinglesDoctype = "Singles"
	FileDoctype    = "File"
)

// tablePrefix is prepended by the framework to every doctype table.
const tablePrefix = "tab"

// LegacyNames returns the legacy doctype names in mapping order.
func LegacyNames() []string {
	names := make([]string, 0, len(Mapping))
	for _, p := range Mapping {
		names = append(names, p.Old)
	}
	return names
}

// LegacyNamesString returns the legacy doctype names joined by commas.
func LegacyNamesString() string {
	return strings.Join(LegacyNames(), ",")
}

// Lookup returns the replacement for a legacy doctype.
func Lookup(old string) (string, bool) {
	for _, p := range Mapping {
		if p.Old == old {
			return p.New, true
		}
	}
	return "", false
}

// TableName returns the database table backing a doctype.
func TableName(doctype string) string {
	return tablePrefix + doctype
}

// Scrub converts a doctype name into a lower-case identifier the way the
// framework does: spaces and dashes become underscores.
func Scrub(s string) string {
	return strings.ToLower(strings.NewReplacer(" ", "_", "-", "_").Replace(s))
}

// SequenceName returns the name of the id sequence of a doctype.
func SequenceName(doctype string) string {
	return Scrub(doctype + "_id_seq")
}
