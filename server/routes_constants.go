package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes - Sign in / out / up
	RouteSignIn  = "/auth/signin"
	RouteSignUp  = "/auth/signup"
	RouteSignOut = "/auth/signout"
	RouteSession = "/auth/session"

	// Auth Routes - Password Management
	RouteForgotPassword = "/auth/forgot-password"
	RouteResetPassword  = "/auth/reset-password"

	// Auth Routes - Federated / Phone
	RouteFederatedStart = "/auth/federated"
	RouteCallback       = "/auth/callback"
	RoutePhoneSendCode  = "/auth/phone/send-code"
	RoutePhoneVerify    = "/auth/phone/verify"

	// Protected API Routes
	RouteMe         = "/api/me"
	RouteAdminUsers = "/api/admin/users"

	// Server-side token verification (consumed by other backends)
	RouteVerifyToken = "/functions/verify-token"

	// Default authenticated landing page
	RouteLanding = "/"
)
