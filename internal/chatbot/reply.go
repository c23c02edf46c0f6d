// Package chatbot maps a visitor's message to one of the clinic's canned replies.
package chatbot

import "strings"

// DefaultReply is returned when no keyword matches.
const DefaultReply = "How can I help you with AyurSutra services?"

type rule struct {
	keyword string
	reply   string
}

// Checked in order; the first keyword contained in the message wins.
var rules = []rule{
	{"appointment", "You can schedule appointments in the Appointments section."},
	{"patient", "Patient records are available in the Patients section."},
	{"treatment", "We offer Abhyanga, Shirodhara, Virechana, and Nasya treatments."},
	{"edit", "To edit patient details, click the Edit button next to the patient in the Patients section."},
	{"delete", "To delete a patient record, click the Delete button next to the patient in the Patients section."},
	{"help", "I can help you with appointments, patient records, treatments, and navigation."},
}

// Reply returns the canned reply for msg. Matching is a case-insensitive
// substring test.
func Reply(msg string) string {
	lower := strings.ToLower(msg)
	for _, r := range rules {
		if strings.Contains(lower, r.keyword) {
			return r.reply
		}
	}
	return DefaultReply
}
