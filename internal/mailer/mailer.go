package mailer

import (
	"context"
	"fmt"
)

// EmailType is the closed set of transactional emails this service sends.
// Dispatch is a single exhaustive switch in Render; adding a type without
// a template arm is a build-time-visible omission, not a silent fallthrough.
type EmailType string

const (
	TypeWelcome               EmailType = "welcome"
	TypeEmailVerification     EmailType = "email_verification"
	TypePasswordReset         EmailType = "password_reset"
	TypePasswordChanged       EmailType = "password_changed"
	TypeSubscriptionConfirmed EmailType = "subscription_confirmed"
	TypeUpgrade               EmailType = "upgrade"
	TypeDowngrade             EmailType = "downgrade"
	TypeRenewalReceipt        EmailType = "renewal_receipt"
	TypeExpirationWarning     EmailType = "expiration_warning"
	TypeSubscriptionCancelled EmailType = "subscription_cancelled"
)

// AllTypes lists every known email type, in dispatch order.
var AllTypes = []EmailType{
	TypeWelcome,
	TypeEmailVerification,
	TypePasswordReset,
	TypePasswordChanged,
	TypeSubscriptionConfirmed,
	TypeUpgrade,
	TypeDowngrade,
	TypeRenewalReceipt,
	TypeExpirationWarning,
	TypeSubscriptionCancelled,
}

// Valid reports whether t is a known email type.
func (t EmailType) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Message is one email to dispatch. Data supplies the interpolation
// fields each template expects (name, plan, date, link, amount).
type Message struct {
	To   string            `json:"to"`
	Type EmailType         `json:"type"`
	Data map[string]string `json:"data"`
}

// Mailer dispatches a rendered message to the email provider.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Render produces the subject and HTML body for a message. The switch is
// exhaustive over EmailType; unknown types error out so callers never
// dispatch an unrenderable message.
func Render(msg Message) (subject, html string, err error) {
	name := msg.Data["name"]
	if name == "" {
		name = "assinante"
	}
	plan := msg.Data["plan"]
	date := msg.Data["date"]
	link := msg.Data["link"]
	amount := msg.Data["amount"]

	switch msg.Type {
	case TypeWelcome:
		return "Bem-vindo à Comunidade DNB",
			fmt.Sprintf("<p>Olá %s, sua conta está pronta. Bons negócios!</p>", name), nil
	case TypeEmailVerification:
		return "Confirme seu e-mail",
			fmt.Sprintf("<p>Olá %s, confirme seu e-mail: <a href=%q>verificar</a></p>", name, link), nil
	case TypePasswordReset:
		return "Redefinição de senha",
			fmt.Sprintf("<p>Olá %s, redefina sua senha: <a href=%q>redefinir</a></p>", name, link), nil
	case TypePasswordChanged:
		return "Sua senha foi alterada",
			fmt.Sprintf("<p>Olá %s, sua senha foi alterada em %s.</p>", name, date), nil
	case TypeSubscriptionConfirmed:
		return "Assinatura confirmada",
			fmt.Sprintf("<p>Olá %s, sua assinatura %s está ativa até %s.</p>", name, plan, date), nil
	case TypeUpgrade:
		return "Upgrade de plano confirmado",
			fmt.Sprintf("<p>Olá %s, seu upgrade para %s foi confirmado.</p>", name, plan), nil
	case TypeDowngrade:
		return "Alteração de plano agendada",
			fmt.Sprintf("<p>Olá %s, sua mudança para %s entra em vigor em %s.</p>", name, plan, date), nil
	case TypeRenewalReceipt:
		return "Recibo de renovação",
			fmt.Sprintf("<p>Olá %s, recebemos %s pela renovação do plano %s.</p>", name, amount, plan), nil
	case TypeExpirationWarning:
		return "Sua assinatura está para vencer",
			fmt.Sprintf("<p>Olá %s, sua assinatura %s vence em %s.</p>", name, plan, date), nil
	case TypeSubscriptionCancelled:
		return "Assinatura cancelada",
			fmt.Sprintf("<p>Olá %s, sua assinatura %s foi cancelada.</p>", name, plan), nil
	default:
		return "", "", fmt.Errorf("unknown email type: %s", msg.Type)
	}
}
