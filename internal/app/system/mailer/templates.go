package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// VerificationEmailData holds data for the email verification message.
type VerificationEmailData struct {
	Name      string
	Code      string
	ExpiresIn string // e.g., "5 minutes"
}

// BuildVerificationEmail creates a verification email with both HTML and text bodies.
func BuildVerificationEmail(data VerificationEmailData) Email {
	if data.Name == "" {
		data.Name = "User"
	}
	var text bytes.Buffer
	fmt.Fprintf(&text, "Hello %s,\n\n", data.Name)
	fmt.Fprintf(&text, "Your MEWS email verification code is: %s\n\n", data.Code)
	fmt.Fprintf(&text, "This code will expire in %s.\n\n", data.ExpiresIn)
	text.WriteString("If you didn't request this code, please ignore this email.\n\nMEWS Team\n")
	return Email{
		Subject:  "Email Verification - MEWS Registration",
		TextBody: text.String(),
		HTMLBody: render(verificationTmpl, data),
	}
}

// WelcomeEmailData describes a newly registered member.
type WelcomeEmailData struct {
	Name        string
	Surname     string
	MewsID      string
	MemberID    string
	FrontendURL string
}

// BuildWelcomeEmail is sent after a member registers.
func BuildWelcomeEmail(data WelcomeEmailData) Email {
	base := strings.TrimRight(data.FrontendURL, "/")
	appForm := base + "/dashboard/member/application/" + data.MemberID
	idCard := base + "/dashboard/member/id-card/" + data.MemberID

	var text bytes.Buffer
	fmt.Fprintf(&text, "Dear %s %s,\n\n", data.Name, data.Surname)
	fmt.Fprintf(&text, "Thank you for registering with MEWS, Your Member ID: %s\n\n", data.MewsID)
	text.WriteString("You can access your details using the links below:\n\n")
	fmt.Fprintf(&text, "1. Application Form : %s\n2. Digital ID Card : %s\n\n", appForm, idCard)
	text.WriteString("We appreciate your registration with MEWS and welcome you to the community.\n\n- MEWS\n")

	return Email{
		Subject:  "Welcome to MEWS - Registration Successful",
		TextBody: text.String(),
		HTMLBody: render(welcomeTmpl, map[string]string{
			"Name": data.Name, "MewsID": data.MewsID, "AppForm": appForm, "IDCard": idCard,
		}),
	}
}

// PromotionEmailData describes a member appointed as an administrator.
type PromotionEmailData struct {
	Name         string
	Surname      string
	Role         string
	LocationName string
	MemberID     string
	Username     string
	FrontendURL  string
}

// BuildPromotionEmail is sent when a member becomes an admin.
func BuildPromotionEmail(data PromotionEmailData) Email {
	base := strings.TrimRight(data.FrontendURL, "/")
	login := base + "/login"
	idCard := base + "/dashboard/member/id-card/" + data.MemberID
	role := strings.Replace(data.Role, "_", " ", 1)
	where := ""
	if data.LocationName != "" {
		where = " for " + data.LocationName
	}

	var text bytes.Buffer
	fmt.Fprintf(&text, "Dear %s %s,\n\n", data.Name, data.Surname)
	fmt.Fprintf(&text, "Congratulations! You have been appointed as %s%s.\n\n", role, where)
	text.WriteString("You can now login using your registered credentials:\n")
	if data.Username != "" {
		fmt.Fprintf(&text, "Username: %s\n", data.Username)
	}
	fmt.Fprintf(&text, "Login: %s\nID Card: %s\n\nWelcome to the Admin Team!\n- MEWS\n", login, idCard)

	return Email{
		Subject:  "MEWS Admin Appointment",
		TextBody: text.String(),
		HTMLBody: render(promotionTmpl, map[string]string{
			"Name": data.Name, "Appointment": role + where, "Login": login, "IDCard": idCard,
		}),
	}
}

// StatusEmailData describes a verification status change.
type StatusEmailData struct {
	Name   string
	MewsID string
	Status string
	Notes  string
}

// BuildStatusEmail tells a member their application status changed.
func BuildStatusEmail(data StatusEmailData) Email {
	status := strings.ReplaceAll(data.Status, "_", " ")
	var text bytes.Buffer
	fmt.Fprintf(&text, "Dear %s,\n\n", data.Name)
	fmt.Fprintf(&text, "The status of your MEWS application (%s) is now: %s.\n", data.MewsID, status)
	if data.Notes != "" {
		fmt.Fprintf(&text, "\nNotes: %s\n", data.Notes)
	}
	text.WriteString("\n- MEWS\n")
	return Email{
		Subject:  "MEWS Application Status: " + status,
		TextBody: text.String(),
		HTMLBody: render(statusTmpl, map[string]string{
			"Name": data.Name, "MewsID": data.MewsID, "Status": status, "Notes": data.Notes,
		}),
	}
}

func render(t *template.Template, data any) string {
	var buf bytes.Buffer
	_ = t.Execute(&buf, data)
	return buf.String()
}

var (
	verificationTmpl = template.Must(template.New("verification").Parse(layoutOpen + `
              <p style="margin: 0 0 16px; font-size: 16px; color: #374151;">Hello {{.Name}},</p>
              <p style="margin: 0 0 24px; font-size: 16px; color: #374151; line-height: 1.5;">
                Thank you for registering with MEWS. Please use the verification code below to complete your registration:
              </p>
              <div style="background-color: #f3f4f6; border: 2px dashed #667eea; border-radius: 8px; padding: 24px; text-align: center; margin-bottom: 24px;">
                <span style="font-size: 32px; font-weight: 700; letter-spacing: 8px; color: #667eea; font-family: 'Courier New', monospace;">{{.Code}}</span>
              </div>
              <p style="margin: 0 0 16px; font-size: 14px; color: #374151;"><strong>This code will expire in {{.ExpiresIn}}.</strong></p>
              <p style="margin: 0; font-size: 13px; color: #6b7280;">Never share this code with anyone. MEWS staff will never ask for your verification code.</p>
` + layoutClose))

	welcomeTmpl = template.Must(template.New("welcome").Parse(layoutOpen + `
              <h3 style="margin: 0 0 16px; color: #1f2937;">Welcome to MEWS, {{.Name}}!</h3>
              <p style="color: #374151;">Thank you for registering. Your Member ID is <strong>{{.MewsID}}</strong>.</p>
              <p style="color: #374151;">You can access your documents here:</p>
              <ul>
                <li><a href="{{.AppForm}}">Application Form</a></li>
                <li><a href="{{.IDCard}}">Digital ID Card</a></li>
              </ul>
` + layoutClose))

	promotionTmpl = template.Must(template.New("promotion").Parse(layoutOpen + `
              <h3 style="margin: 0 0 16px; color: #1f2937;">Congratulations, {{.Name}}!</h3>
              <p style="color: #374151;">You have been appointed as <strong>{{.Appointment}}</strong>.</p>
              <ul>
                <li><a href="{{.Login}}">Admin Login</a></li>
                <li><a href="{{.IDCard}}">Digital ID Card</a></li>
              </ul>
` + layoutClose))

	statusTmpl = template.Must(template.New("status").Parse(layoutOpen + `
              <p style="color: #374151;">Dear {{.Name}},</p>
              <p style="color: #374151;">The status of your application <strong>{{.MewsID}}</strong> is now <strong>{{.Status}}</strong>.</p>
              {{if .Notes}}<p style="color: #6b7280;">Notes: {{.Notes}}</p>{{end}}
` + layoutClose))
)

const layoutOpen = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>MEWS</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 560px; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 24px 32px; text-align: center; background: #667eea; border-radius: 8px 8px 0 0;">
              <h1 style="margin: 0; font-size: 24px; font-weight: 600; color: #ffffff;">MEWS</h1>
            </td>
          </tr>
          <tr>
            <td style="padding: 32px;">`

const layoutClose = `
            </td>
          </tr>
          <tr>
            <td style="padding: 24px 32px; background-color: #f9fafb; border-top: 1px solid #e5e7eb; border-radius: 0 0 8px 8px;">
              <p style="margin: 0; font-size: 12px; color: #9ca3af; text-align: center;">MEWS Team</p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`
