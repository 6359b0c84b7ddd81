package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

var templates = template.Must(template.New("mail").Parse(`
{{define "layout_start"}}<div style="font-family:Arial,sans-serif;max-width:560px;margin:0 auto;color:#1f2937">{{end}}
{{define "layout_end"}}<p style="font-size:12px;color:#6b7280">If you did not expect this email you can ignore it.</p></div>{{end}}

{{define "otp"}}{{template "layout_start"}}
<h2>{{.Title}}</h2>
<p>{{.Intro}}</p>
<p style="font-size:28px;font-weight:bold;letter-spacing:6px">{{.Code}}</p>
<p>The code expires in {{.Minutes}} minutes.</p>
{{template "layout_end"}}{{end}}

{{define "invite"}}{{template "layout_start"}}
<h2>You have been invited</h2>
<p>Hello {{.FirstName}},</p>
<p>You have been invited to join the admin portal as a <strong>{{.Role}}</strong>.
Your username will be <strong>{{.Username}}</strong>.</p>
<p><a href="{{.Link}}">Accept the invitation</a></p>
<p>The link expires in {{.Minutes}} minutes.</p>
{{template "layout_end"}}{{end}}

{{define "password_changed"}}{{template "layout_start"}}
<h2>Your password was changed</h2>
<p>The password for <strong>{{.Username}}</strong> was changed on {{.When}}.</p>
<p>If this was not you, contact an administrator immediately.</p>
{{template "layout_end"}}{{end}}

{{define "contact_inbox"}}{{template "layout_start"}}
<h2>New contact form submission</h2>
<p><strong>Name:</strong> {{.Name}}<br><strong>Email:</strong> {{.Email}}<br>
<strong>Phone:</strong> {{.Phone}}<br><strong>Organization:</strong> {{.Organization}}</p>
<p>{{.Message}}</p>
{{template "layout_end"}}{{end}}

{{define "contact_receipt"}}{{template "layout_start"}}
<h2>Thank you for contacting us</h2>
<p>Hello {{.Name}}, we received your message and will get back to you shortly.</p>
{{template "layout_end"}}{{end}}
`))

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("rendering %s email: %w", name, err)
	}
	return buf.String(), nil
}

func minutes(d time.Duration) int {
	m := int(d / time.Minute)
	if m < 1 {
		m = 1
	}
	return m
}

// OTPEmail renders a one-time code message.
func OTPEmail(to, title, intro, code string, ttl time.Duration) (Message, error) {
	html, err := render("otp", map[string]any{
		"Title": title, "Intro": intro, "Code": code, "Minutes": minutes(ttl),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: title, HTML: html}, nil
}

// InviteEmail renders the invitation link message.
func InviteEmail(to, firstName, role, username, link string, ttl time.Duration) (Message, error) {
	html, err := render("invite", map[string]any{
		"FirstName": firstName, "Role": role, "Username": username, "Link": link, "Minutes": minutes(ttl),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "You're invited to the admin portal", HTML: html}, nil
}

// PasswordChangedEmail renders the post-change notice.
func PasswordChangedEmail(to, username string, when time.Time) (Message, error) {
	html, err := render("password_changed", map[string]any{
		"Username": username, "When": when.UTC().Format("2006-01-02 15:04 MST"),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Your password was changed", HTML: html}, nil
}

// ContactDetails is the content of a contact form submission.
type ContactDetails struct {
	Name         string
	Email        string
	Phone        string
	Organization string
	Message      string
}

// ContactInboxEmail renders the staff notification for a submission.
func ContactInboxEmail(to string, d ContactDetails) (Message, error) {
	html, err := render("contact_inbox", d)
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "New contact form submission from " + d.Name, HTML: html}, nil
}

// ContactReceiptEmail renders the confirmation sent to the submitter.
func ContactReceiptEmail(d ContactDetails) (Message, error) {
	html, err := render("contact_receipt", d)
	if err != nil {
		return Message{}, err
	}
	return Message{To: d.Email, Subject: "We received your message", HTML: html}, nil
}
