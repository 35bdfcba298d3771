package common

// AuthorizationHeaderName carries the bearer access token on inbound requests.
const AuthorizationHeaderName = "Authorization"

// ReAuthHeaderName carries the short-lived step-up token on requests to
// high-risk endpoints. It is separate from the bearer header so a client can
// present both at once.
const ReAuthHeaderName = "X-Reauth-Token"
