package reminder

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/BivasNandan/Law-Aid-sub001/internal/models"
)

const emailSubject = "Appointment Reminder - Tomorrow"

var emailTemplate = template.Must(template.New("reminder").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #4A5568;">Appointment Reminder</h2>
  <p>Dear {{.Name}},</p>
  <p>This is a reminder that you have an appointment scheduled for <strong>tomorrow</strong>:</p>
  <div style="background-color: #FFF5E1; border-left: 4px solid #F59E0B; padding: 15px; margin: 20px 0;">
    <p style="margin: 5px 0;"><strong>With:</strong> {{.With}}</p>
    <p style="margin: 5px 0;"><strong>Date &amp; Time:</strong> {{.When}}</p>
    {{- if .Rescheduled}}
    <p style="margin: 5px 0; color: #F59E0B;"><em>Note: This is a rescheduled time</em></p>
    {{- end}}
  </div>
  <p>Please be prepared and log in a few minutes before your appointment.</p>
  <p style="margin-top: 30px;">Regards,<br/><strong>Law-Aid Team</strong></p>
</div>`))

type emailData struct {
	Name        string
	With        string
	When        string
	Rescheduled bool
}

func renderEmail(p party, appt *models.Appointment, when time.Time) (string, error) {
	name := p.user.UserName
	if name == "" {
		name = "User"
	}

	var buf bytes.Buffer
	err := emailTemplate.Execute(&buf, emailData{
		Name:        name,
		With:        p.other.UserName,
		When:        when.Format("Monday, January 2, 2006 at 03:04 PM MST"),
		Rescheduled: appt.ProposedDateTime != nil,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func body(p party, when time.Time) string {
	at := when.Format("Jan 2, 03:04 PM")
	if p.role == "client" {
		return fmt.Sprintf("Reminder: You have an appointment with %s tomorrow at %s", p.other.UserName, at)
	}
	return fmt.Sprintf("Reminder: You have an appointment with your client %s tomorrow at %s", p.other.UserName, at)
}
