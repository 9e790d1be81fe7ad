package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender_CoversEveryType(t *testing.T) {
	data := map[string]string{
		"name":   "Ana",
		"plan":   "Premium Anual",
		"date":   "2026-09-01",
		"link":   "https://example.com/x",
		"amount": "R$ 185,00",
	}

	for _, typ := range AllTypes {
		t.Run(string(typ), func(t *testing.T) {
			subject, html, err := Render(Message{To: "ana@example.com", Type: typ, Data: data})
			assert.NoError(t, err)
			assert.NotEmpty(t, subject)
			assert.Contains(t, html, "Ana")
		})
	}
}

func TestRender_UnknownTypeFails(t *testing.T) {
	_, _, err := Render(Message{To: "ana@example.com", Type: "marketing_blast"})
	assert.Error(t, err)
}

func TestEmailTypeValid(t *testing.T) {
	assert.True(t, TypeUpgrade.Valid())
	assert.True(t, TypeSubscriptionCancelled.Valid())
	assert.False(t, EmailType("marketing_blast").Valid())
}
