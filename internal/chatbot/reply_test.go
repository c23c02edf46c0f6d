package chatbot

import "testing"

func TestReply(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want string
	}{
		{name: "appointment", msg: "How do I book an Appointment?", want: "You can schedule appointments in the Appointments section."},
		{name: "treatment", msg: "Tell me about treatment", want: "We offer Abhyanga, Shirodhara, Virechana, and Nasya treatments."},
		{name: "first rule wins", msg: "edit patient", want: "Patient records are available in the Patients section."},
		{name: "edit", msg: "how to EDIT a record", want: "To edit patient details, click the Edit button next to the patient in the Patients section."},
		{name: "delete", msg: "delete please", want: "To delete a patient record, click the Delete button next to the patient in the Patients section."},
		{name: "help", msg: "help", want: "I can help you with appointments, patient records, treatments, and navigation."},
		{name: "fallback", msg: "namaste", want: DefaultReply},
		{name: "empty", msg: "", want: DefaultReply},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Reply(tc.msg); got != tc.want {
				t.Fatalf("Reply(%q) = %q, want %q", tc.msg, got, tc.want)
			}
		})
	}
}
