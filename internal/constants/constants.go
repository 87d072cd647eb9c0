package constants

const (
	LoopbackLogin = "loopback-login"

	QueryParamAuthorizationCode = "code"
	QueryParamError             = "error"
	QueryParamErrorDescription  = "error_description"
	QueryParamNonce             = "nonce"
	QueryParamState             = "state"

	AuthorizationServerResponseType = "code"
	DiscoveryPath                   = "/.well-known/openid-configuration"

	ClaimNonce   = "nonce"
	ClaimSubject = "sub"

	TokenExtraIDToken = "id_token"

	ScopeOpenID  = "openid"
	ScopeProfile = "profile"
	ScopeEmail   = "email"

	DefaultClientID = "Shell.Windows"

	LoopbackHost = "127.0.0.1"

	ContentTypeForm = "application/x-www-form-urlencoded"
	ContentTypeHTML = "text/html; charset=utf-8"
)
