package gate

// Reason identifies why a request was allowed through an active gate.
// The empty reason means no bypass applied and the visitor is blocked.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonCLI             Reason = "cli"
	ReasonCron            Reason = "cron"
	ReasonAdmin           Reason = "admin"
	ReasonAdminAjax       Reason = "admin_ajax"
	ReasonLoginPage       Reason = "login_page"
	ReasonEditorPreview   Reason = "editor_preview"
	ReasonPrivateCookie   Reason = "private_cookie"
	ReasonPrivateToken    Reason = "private_token"
	ReasonPrivatePassword Reason = "private_password"
	ReasonRestLoggedIn    Reason = "rest_logged_in"
	ReasonRestAllowed     Reason = "rest_allowed"
	ReasonUserAllowed     Reason = "user_allowed"
	ReasonIPWhitelist     Reason = "ip_whitelist"
	ReasonPathWhitelist   Reason = "path_whitelist"
)

// Access-form failure codes surfaced back to the gate page. Deliberately
// coarse: the form never reveals which secret was wrong beyond nonce vs
// password.
const (
	AccessErrInvalidNonce    = "invalid_nonce"
	AccessErrInvalidPassword = "invalid_password"
)
