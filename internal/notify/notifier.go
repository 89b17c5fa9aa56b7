// Package notify is the outbound edge of the scheduler: delivery of approval
// and reminder messages. Sending is fire-and-forget; a failed delivery is
// logged and never surfaces to the operation that triggered it.
package notify

import (
	"fmt"
	"strings"

	"github.com/schedly/exam-scheduler/internal/model"
)

// Message is one outbound notification addressed to a single recipient.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers messages concurrently and best-effort. Implementations
// must isolate failures per message.
type Notifier interface {
	Send(messages ...*Message)
}

// ApprovalMessage builds the email sent to one student when their group's
// exam request has been approved.
func ApprovalMessage(to string, exam model.ExamSummary) *Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello,\n\n")
	fmt.Fprintf(&b, "An exam has been scheduled for your group:\n\n")
	fmt.Fprintf(&b, "  Subject:   %s\n", exam.Subject)
	fmt.Fprintf(&b, "  Date:      %s\n", exam.Day.Format("2006-01-02"))
	fmt.Fprintf(&b, "  Hour:      %s\n", exam.Hour)
	fmt.Fprintf(&b, "  Classroom: %s\n", exam.ClassroomName)
	fmt.Fprintf(&b, "  Professor: %s\n", exam.MainProfessor)
	fmt.Fprintf(&b, "  Faculty:   %s\n", exam.Faculty)
	fmt.Fprintf(&b, "\nGood luck!\n")

	return &Message{
		To:      to,
		Subject: "Exam approved: " + exam.Subject,
		Body:    b.String(),
	}
}

// UpcomingDigestMessage builds the reminder listing all of a student's exams
// starting within the notification window.
func UpcomingDigestMessage(to string, exams []model.ExamSummary) *Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello,\n\nYou have the following exams coming up:\n\n")
	for _, exam := range exams {
		fmt.Fprintf(&b, "- %s on %s at %s, classroom %s (professor: %s)\n",
			exam.Subject,
			exam.Day.Format("2006-01-02"),
			exam.Hour,
			exam.ClassroomName,
			exam.MainProfessor,
		)
	}
	fmt.Fprintf(&b, "\nGood luck!\n")

	return &Message{
		To:      to,
		Subject: "Upcoming exams reminder",
		Body:    b.String(),
	}
}

// AnnouncementText renders a short one-line announcement for broadcast
// channels that have no per-student addressing.
func AnnouncementText(exam model.ExamSummary) string {
	return fmt.Sprintf("Exam scheduled: %s on %s at %s, classroom %s",
		exam.Subject,
		exam.Day.Format("2006-01-02"),
		exam.Hour,
		exam.ClassroomName,
	)
}

// Multi fans messages out to several gateways.
type Multi []Notifier

func (m Multi) Send(messages ...*Message) {
	for _, n := range m {
		n.Send(messages...)
	}
}
