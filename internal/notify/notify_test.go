package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

func TestRenderer_BuiltInTemplate(t *testing.T) {
	r := NewRenderer()
	tpl := domain.EmailTicketAssigned
	msg, err := r.Render(tpl.DefaultSubject(), tpl.DefaultBody(), map[string]any{
		"ticket":    domain.Ticket{Number: "HD-1A2B3C4D", Subject: "Printer & scanner", Priority: domain.TicketPriorityHigh},
		"recipient": domain.User{Name: "Sam"},
	})
	require.NoError(t, err)
	assert.Equal(t, "[HD-1A2B3C4D] assigned to you", msg.Subject)
	assert.Contains(t, msg.Text, "Hi Sam,")
	assert.Contains(t, msg.HTML, "<strong>HD-1A2B3C4D</strong>")
	assert.Contains(t, msg.HTML, "HIGH")
}

func TestRenderer_SanitisesHTML(t *testing.T) {
	r := NewRenderer()
	msg, err := r.Render("hi", "Hello {{ name }} <script>alert(1)</script> [x](javascript:alert(1))", map[string]any{
		"name": "<img src=x onerror=alert(1)>",
	})
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<script")
	assert.NotContains(t, msg.HTML, "onerror")
	assert.NotContains(t, msg.HTML, "javascript:")
}

func TestRenderer_Validate(t *testing.T) {
	r := NewRenderer()
	assert.Empty(t, r.Validate("{{ a }}", "{% if a %}x{% endif %}"))

	fields := r.Validate("{{ a ", "{% if a %}x")
	assert.Contains(t, fields, "subject")
	assert.Contains(t, fields, "body")

	_, err := r.Render("{% for %}", "x", nil)
	assert.Error(t, err)
}

func TestRelative(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	future := Relative(now.Add(2*time.Hour), now)
	past := Relative(now.Add(-5*time.Minute), now)
	assert.Contains(t, future, "hour")
	assert.Contains(t, past, "minute")
	assert.NotEqual(t, future, past)
}

func TestNewSender_DisabledLogsOnly(t *testing.T) {
	s := NewSender(config.NotificationConfig{}, zap.NewNop())
	_, ok := s.(*LogSender)
	require.True(t, ok)
	assert.NoError(t, s.Send(context.Background(), Email{To: "a@example.com"}))

	_, ok = NewSender(config.NotificationConfig{SMTPHost: "smtp.example.com", SMTPPort: 25}, nil).(*SMTPSender)
	assert.True(t, ok)
}
