package email

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

//go:embed templates/*
var templateFS embed.FS

type TemplateName string

const (
	TemplateVerification  TemplateName = "verification"
	TemplatePasswordReset TemplateName = "password_reset"
	TemplateWelcome       TemplateName = "welcome"
)

var subjects = map[TemplateName]string{
	TemplateVerification:  "Verify your %s email address",
	TemplatePasswordReset: "Reset your %s password",
	TemplateWelcome:       "Welcome to %s",
}

// TemplateData feeds every template; unused fields are ignored.
type TemplateData struct {
	AppName   string
	Name      string
	Link      string
	ExpiresAt string
}

type Templates struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

func NewTemplates() (*Templates, error) {
	html, err := htmltemplate.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse html templates: %w", err)
	}
	text, err := texttemplate.ParseFS(templateFS, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("parse text templates: %w", err)
	}
	return &Templates{html: html, text: text}, nil
}

// Render builds the message addressed to to.
func (t *Templates) Render(name TemplateName, to string, data TemplateData) (Message, error) {
	subject, ok := subjects[name]
	if !ok {
		return Message{}, fmt.Errorf("unknown email template %q", name)
	}

	var html, text bytes.Buffer
	if err := t.html.ExecuteTemplate(&html, string(name)+".html", data); err != nil {
		return Message{}, err
	}
	if err := t.text.ExecuteTemplate(&text, string(name)+".txt", data); err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf(subject, data.AppName),
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}
