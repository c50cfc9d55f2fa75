package dispatch_test

import (
	"testing"

	"github.com/anjihan3601K/suraksha/alert"
	"github.com/anjihan3601K/suraksha/dispatch"
	"github.com/stretchr/testify/assert"
)

func TestRenderSMS(t *testing.T) {
	a := alert.Alert{Title: "Cyclone", Message: "Stay indoors", Severity: alert.Moderate}
	assert.Equal(t, "Suraksha Alert: Cyclone. Stay indoors. Severity: Moderate.", dispatch.RenderSMS(a, "Suraksha"))
	assert.Equal(t, "City Alert: Cyclone. Stay indoors. Severity: Moderate.", dispatch.RenderSMS(a, "City"))
}

func TestRenderSubject(t *testing.T) {
	assert.Equal(t, "🚨 Emergency Alert: Cyclone", dispatch.RenderSubject(alert.Alert{Title: "Cyclone"}))
}

func TestRenderEmail(t *testing.T) {
	a := alert.Alert{Title: "Flood Warning", Message: "Move to higher ground", Severity: alert.High}
	assert.Equal(t,
		"<h1>Flood Warning</h1>"+
			"<p><strong>Severity:</strong> High</p>"+
			"<p>Move to higher ground</p>"+
			"<p>Please stay safe and monitor official channels for updates.</p>",
		dispatch.RenderEmail(a),
	)
}

func TestRenderEmail_Escapes(t *testing.T) {
	a := alert.Alert{Title: "<script>x</script>", Message: "a & b"}
	body := dispatch.RenderEmail(a)
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")
	assert.Contains(t, body, "a &amp; b")
}
