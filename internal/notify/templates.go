// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

package notify

import (
	"bytes"
	"text/template"

	"github.com/samber/oops"

	"github.com/authentic-auth/authentic/internal/auth"
)

// CompanyName is the sender organization shown in welcome emails.
const CompanyName = "Authentic Company"

type emailTemplate struct {
	subject string
	body    *template.Template
}

const verificationText = `
Hello,

Thank you for signing up. Your verification code is:

{{.code}}

Enter this code on the verification page to complete your registration.
This code will expire in 24 hours for security reasons.

If you didn't create an account with us, please ignore this email.
`

const welcomeText = `
Welcome to {{.company}}, {{.name}}!

Your email address has been verified and your account is ready to use.
`

const resetRequestText = `
Hello,

We received a request to reset your password. Click the link below to
choose a new password:

{{.resetURL}}

This link will expire in 1 hour for security reasons.

If you didn't request a password reset, please ignore this email.
`

const resetSuccessText = `
Hello,

Your password has been reset successfully.

If you did not initiate this password reset, please contact support
immediately.
`

func mustParse(name, text string) *template.Template {
	return template.Must(template.New(name).Option("missingkey=error").Parse(text))
}

var templates = map[auth.TemplateKind]emailTemplate{
	auth.TemplateVerification: {subject: "Verify your email", body: mustParse("verification", verificationText)},
	auth.TemplateWelcome:      {subject: "Welcome to " + CompanyName, body: mustParse("welcome", welcomeText)},
	auth.TemplateResetRequest: {subject: "Reset your password", body: mustParse("reset_request", resetRequestText)},
	auth.TemplateResetSuccess: {subject: "Password Reset Successful", body: mustParse("reset_success", resetSuccessText)},
}

// Render returns the subject and body of a notification. Every parameter
// referenced by the template must be present.
func Render(n auth.Notification) (subject, body string, err error) {
	tpl, ok := templates[n.Kind]
	if !ok {
		return "", "", oops.Code("NOTIFY_UNKNOWN_TEMPLATE").With("template", string(n.Kind)).Errorf("unknown template kind")
	}

	data := make(map[string]string, len(n.Params)+1)
	for k, v := range n.Params {
		data[k] = v
	}
	data["company"] = CompanyName

	var buf bytes.Buffer
	if err := tpl.body.Execute(&buf, data); err != nil {
		return "", "", oops.Code("NOTIFY_RENDER_FAILED").With("template", string(n.Kind)).Wrap(err)
	}
	return tpl.subject, buf.String(), nil
}
