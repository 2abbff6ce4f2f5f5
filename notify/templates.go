package notify

import (
	"bytes"
	"html/template"
	"time"
)

// Message is a rendered mail.
type Message struct {
	Subject string
	HTML    string
}

const layout = `{{define "layout"}}<!DOCTYPE html>
<html><body style="font-family:sans-serif">
<p>Hello {{.Name}},</p>
{{template "content" .}}
<p style="color:#777;font-size:12px">If you did not expect this message, secure your account by resetting your password.</p>
</body></html>{{end}}`

var bodies = map[string]string{
	"verify":     `{{define "content"}}<p>Confirm your email address to finish creating your account.</p><p><a href="{{.Link}}">Verify email</a></p><p>The link expires in {{.TTL}}.</p>{{end}}`,
	"reset":      `{{define "content"}}<p>We received a request to reset your password.</p><p><a href="{{.Link}}">Choose a new password</a></p><p>The link expires in {{.TTL}} and can be used once.</p>{{end}}`,
	"changed":    `{{define "content"}}<p>Your password was changed at {{.When}} from {{.IP}}. All other sessions were signed out.</p>{{end}}`,
	"locked":     `{{define "content"}}<p>Your account was temporarily locked after repeated failed sign-in attempts from {{.IP}}.</p>{{end}}`,
	"new_device": `{{define "content"}}<p>Your account was signed in from a new device at {{.When}}.</p><p>IP address: {{.IP}}<br>Browser: {{.UserAgent}}</p>{{end}}`,
	"suspicious": `{{define "content"}}<p>We noticed {{.Failures}} failed sign-in attempts before a successful sign-in from {{.IP}} at {{.When}}.</p>{{end}}`,
}

var templates = func() map[string]*template.Template {
	out := make(map[string]*template.Template, len(bodies))
	for name, body := range bodies {
		t := template.Must(template.New(name).Parse(layout))
		out[name] = template.Must(t.Parse(body))
	}
	return out
}()

type view struct {
	Name      string
	Link      string
	TTL       string
	IP        string
	UserAgent string
	When      string
	Failures  int
}

func render(name, subject string, v view) (Message, error) {
	if v.Name == "" {
		v.Name = "there"
	}
	var buf bytes.Buffer
	if err := templates[name].ExecuteTemplate(&buf, "layout", v); err != nil {
		return Message{}, err
	}
	return Message{Subject: subject, HTML: buf.String()}, nil
}

func stamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04 MST")
}

func VerificationEmail(name, link string, ttl time.Duration) (Message, error) {
	return render("verify", "Verify your email address", view{Name: name, Link: link, TTL: ttl.String()})
}

func PasswordResetEmail(name, link string, ttl time.Duration) (Message, error) {
	return render("reset", "Reset your password", view{Name: name, Link: link, TTL: ttl.String()})
}

func PasswordChangedEmail(name, ip string, at time.Time) (Message, error) {
	return render("changed", "Your password was changed", view{Name: name, IP: ip, When: stamp(at)})
}

// LockoutAlert deliberately omits the unlock time.
func LockoutAlert(name, ip string) (Message, error) {
	return render("locked", "Your account was temporarily locked", view{Name: name, IP: ip})
}

func NewDeviceAlert(name, ip, userAgent string, at time.Time) (Message, error) {
	return render("new_device", "New sign-in to your account", view{Name: name, IP: ip, UserAgent: userAgent, When: stamp(at)})
}

func SuspiciousActivityAlert(name, ip string, failures int, at time.Time) (Message, error) {
	return render("suspicious", "Unusual sign-in activity", view{Name: name, IP: ip, Failures: failures, When: stamp(at)})
}
