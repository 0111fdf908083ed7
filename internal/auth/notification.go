// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

package auth

import "context"

// TemplateKind names an outbound email template.
type TemplateKind string

// Template kinds requested by the credential lifecycle.
const (
	TemplateVerification TemplateKind = "verification"
	TemplateWelcome      TemplateKind = "welcome"
	TemplateResetRequest TemplateKind = "reset_request"
	TemplateResetSuccess TemplateKind = "reset_success"
)

// Notification parameter keys.
const (
	ParamCode     = "code"
	ParamName     = "name"
	ParamResetURL = "resetURL"
)

// Notification is a request to deliver one templated email.
type Notification struct {
	To     string
	Kind   TemplateKind
	Params map[string]string
}

// Notifier delivers notifications. A nil error means the request was
// accepted for delivery.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
