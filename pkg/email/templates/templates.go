package templates

import (
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

// Content is the rendered output for one email: subject line plus HTML and
// plain-text bodies.
type Content struct {
	Subject string
	HTML    string
	Text    string
}

// definition pairs the raw template sources for a single email type.
type definition struct {
	subject string
	html    string
	text    string
}

// compiled holds the parsed templates for a single email type.
type compiled struct {
	subject *texttemplate.Template
	html    *htmltemplate.Template
	text    *texttemplate.Template
}

// Template data keys are lower_snake_case to match scheduled-email payload
// fields, so payloads merge straight into rendering without remapping.
var definitions = map[string]definition{
	"welcome": {
		subject: `Welcome to Porchlist{{if .first_name}}, {{.first_name}}{{end}}!`,
		html: `<h1>Welcome{{if .first_name}}, {{.first_name}}{{end}}!</h1>
<p>Your neighborhood marketplace is ready. Post what you can offer, browse what others share, and say hello.</p>
<p><a href="https://porchlist.com/profile">Finish setting up your profile</a></p>`,
		text: `Welcome{{if .first_name}}, {{.first_name}}{{end}}!

Your neighborhood marketplace is ready. Post what you can offer, browse what others share, and say hello.

Finish setting up your profile: https://porchlist.com/profile`,
	},
	"community_growth_day135": {
		subject: `Your neighborhood on Porchlist has grown`,
		html: `<p>Hi{{if .first_name}} {{.first_name}}{{end}},</p>
<p>It's been a while since you joined, and your community has kept growing. New neighbors, new offers, new requests.</p>
<p><a href="https://porchlist.com/browse">See what's new near you</a></p>`,
		text: `Hi{{if .first_name}} {{.first_name}}{{end}},

It's been a while since you joined, and your community has kept growing. New neighbors, new offers, new requests.

See what's new near you: https://porchlist.com/browse`,
	},
	"re_engagement": {
		subject: `We miss you on Porchlist`,
		html: `<p>Hi{{if .first_name}} {{.first_name}}{{end}},</p>
<p>Your neighbors have been busy while you were away. Come see what's been posted near you.</p>
<p><a href="https://porchlist.com/browse">Catch up on your neighborhood</a></p>`,
		text: `Hi{{if .first_name}} {{.first_name}}{{end}},

Your neighbors have been busy while you were away. Come see what's been posted near you.

Catch up on your neighborhood: https://porchlist.com/browse`,
	},
	"meeting_reminder": {
		subject: `Reminder: your Porchlist meeting{{if .meeting_time}} on {{.meeting_time}}{{end}}`,
		html: `<p>Hi{{if .first_name}} {{.first_name}}{{end}},</p>
<p>This is a reminder about your upcoming meeting{{if .meeting_time}} on <strong>{{.meeting_time}}</strong>{{end}}.</p>
<p><a href="https://porchlist.com/meetings/{{.meeting_id}}">View meeting details</a></p>`,
		text: `Hi{{if .first_name}} {{.first_name}}{{end}},

This is a reminder about your upcoming meeting{{if .meeting_time}} on {{.meeting_time}}{{end}}.

View meeting details: https://porchlist.com/meetings/{{.meeting_id}}`,
	},
}

var registry = compileAll()

func compileAll() map[string]compiled {
	out := make(map[string]compiled, len(definitions))
	for tag, def := range definitions {
		out[tag] = compiled{
			subject: texttemplate.Must(texttemplate.New(tag + ":subject").Parse(def.subject)),
			html:    htmltemplate.Must(htmltemplate.New(tag + ":html").Parse(def.html)),
			text:    texttemplate.Must(texttemplate.New(tag + ":text").Parse(def.text)),
		}
	}
	return out
}

// Has reports whether a template is registered for the given email type tag.
func Has(emailType string) bool {
	_, ok := registry[emailType]
	return ok
}

// Render produces subject, HTML, and plain-text content for the given email
// type tag. Unknown types fail with ErrUnknownTemplate rather than emitting
// blank content.
func Render(emailType string, data map[string]string) (Content, error) {
	tpl, ok := registry[emailType]
	if !ok {
		return Content{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, emailType)
	}

	subject, err := renderText(tpl.subject, data)
	if err != nil {
		return Content{}, fmt.Errorf("%w: subject for %q: %v", ErrRenderFailed, emailType, err)
	}

	var htmlBuf strings.Builder
	if err := tpl.html.Execute(&htmlBuf, data); err != nil {
		return Content{}, fmt.Errorf("%w: html body for %q: %v", ErrRenderFailed, emailType, err)
	}

	text, err := renderText(tpl.text, data)
	if err != nil {
		return Content{}, fmt.Errorf("%w: text body for %q: %v", ErrRenderFailed, emailType, err)
	}

	return Content{
		Subject: strings.TrimSpace(subject),
		HTML:    htmlBuf.String(),
		Text:    text,
	}, nil
}

func renderText(tpl *texttemplate.Template, data map[string]string) (string, error) {
	var sb strings.Builder
	if err := tpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
