package middleware

import (
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gatehouse-app/gatehouse/backend/internal/analytics"
	"github.com/gatehouse-app/gatehouse/backend/internal/gate"
	"github.com/gatehouse-app/gatehouse/backend/internal/metrics"
	"github.com/gatehouse-app/gatehouse/backend/internal/models"
	"github.com/gatehouse-app/gatehouse/backend/internal/services"
)

// GateDeps bundles what the gate middleware needs per request.
type GateDeps struct {
	Evaluator  *gate.Evaluator
	Preview    *gate.PreviewSigner
	Settings   *services.SettingsService
	Auth       *services.AuthService
	Aggregator *analytics.Aggregator
}

// Gate is the site-facing middleware: it loads the current settings, runs
// the bypass policy and either lets the request through, renders the gate
// page, or completes a private-access grant. A settings read failure fails
// open; the site must never go dark because of the gate's own storage.
func Gate(deps GateDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		settings, err := deps.Settings.Get()
		if err != nil {
			GetRequestLogger(c).WithField("error", err.Error()).Warn("gate settings unavailable, failing open")
			c.Next()
			return
		}

		previewValid := deps.Preview.Verify(c.Query(gate.PreviewParam))
		user := ResolveUser(c, deps.Auth)
		req := gate.FromGin(c, user, previewValid)

		// Preview always renders the gate page, regardless of active state,
		// and is never tallied.
		if previewValid {
			renderGatePage(c, deps, settings, req, http.StatusOK, "")
			c.Abort()
			return
		}

		if !deps.Evaluator.Active(settings) {
			c.Next()
			return
		}

		metrics.IncEvaluated()
		decision := deps.Evaluator.Evaluate(req, settings)

		if decision.Reason != gate.ReasonNone {
			deps.Aggregator.RecordBypass(c.Request.Context(), req, decision.Reason)
			if decision.IssueCookie {
				issueCookieAndStrip(c, deps, settings)
				return
			}
			c.Next()
			return
		}

		deps.Aggregator.RecordBlocked(c.Request.Context(), req)

		status := http.StatusOK
		if settings.Mode == models.ModeMaintenance {
			status = http.StatusServiceUnavailable
			c.Header("Retry-After", "3600")
		}
		renderGatePage(c, deps, settings, req, status, decision.AccessError)
		c.Abort()
	}
}

// timeNow is swapped out by tests.
var timeNow = time.Now

// issueCookieAndStrip installs the signed private-access cookie and
// redirects with the access parameters removed, so the token never leaks
// via referrer or browser history. Password submissions carry the original
// path in the gate_return field.
func issueCookieAndStrip(c *gin.Context, deps GateDeps, settings *models.GateSettings) {
	guard := deps.Evaluator.Guard()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(gate.CookieName, guard.CookieValue(settings), int(gate.CookieTTL.Seconds()), "/", "", c.Request.TLS != nil, true)

	location := ""
	if c.Request.Method == http.MethodPost {
		location = gate.SanitizeReturnPath(c.PostForm(gate.ReturnField))
	}
	if location == "" {
		target := *c.Request.URL
		query := target.Query()
		query.Del(gate.TokenParam)
		target.RawQuery = query.Encode()
		location = target.String()
	}

	c.Redirect(http.StatusFound, location)
	c.Abort()
}

var gatePageTmpl = template.Must(template.New("gate").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,sans-serif;display:flex;align-items:center;justify-content:center;min-height:100vh;margin:0;background:#f6f7f9;color:#1f2933}
main{max-width:28rem;padding:2rem;text-align:center}
h1{font-size:1.5rem}
form{margin-top:1.5rem}
input[type=password]{padding:.5rem;width:100%;box-sizing:border-box}
button{margin-top:.75rem;padding:.5rem 1.25rem}
.error{color:#b91c1c;margin-top:.75rem}
</style>
</head>
<body>
<main>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{if .ShowForm}}
<form method="post" action="/gate/access">
<input type="password" name="gate_password" placeholder="Access password" autocomplete="current-password">
<input type="hidden" name="gate_nonce" value="{{.Nonce}}">
<input type="hidden" name="gate_return" value="{{.ReturnPath}}">
<button type="submit">Enter</button>
</form>
{{end}}
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
</main>
</body>
</html>
`))

type gatePageData struct {
	Title      string
	Message    string
	ShowForm   bool
	Nonce      string
	ReturnPath string
	Error      string
}

func renderGatePage(c *gin.Context, deps GateDeps, settings *models.GateSettings, req gate.RequestInfo, status int, accessError string) {
	guard := deps.Evaluator.Guard()

	data := gatePageData{
		Title:      "We'll be back soon",
		Message:    "The site is undergoing scheduled maintenance. Please check back shortly.",
		ShowForm:   guard.Enabled() && settings.PrivatePasswordHash != "",
		ReturnPath: req.Path,
	}
	if settings.Mode == models.ModeComingSoon {
		data.Title = "Coming soon"
		data.Message = "Something new is on the way. Stay tuned."
	}
	if data.ShowForm {
		data.Nonce = guard.IssueNonce(timeNow())
	}

	switch accessError {
	case gate.AccessErrInvalidNonce:
		data.Error = "Your session expired. Please try again."
	case gate.AccessErrInvalidPassword:
		data.Error = "Incorrect password."
	}

	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := gatePageTmpl.Execute(c.Writer, data); err != nil {
		GetRequestLogger(c).WithField("error", err.Error()).Error("render gate page")
	}
}
