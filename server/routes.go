package server

import (
	"github.com/CSU-AIML/neuraverse/guard"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET /{$}", s.IndexHandler())

	// SIGN IN / OUT / UP
	s.RegisterRouteHandler("POST "+RouteSignIn, ChainMiddleware(s.SignInHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteSignUp, ChainMiddleware(s.SignUpHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteSignOut, ChainMiddleware(s.SignOutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteSession, ChainMiddleware(s.SessionHandler(), s.APIMiddleware()...))

	// Password management
	s.RegisterRouteHandler("POST "+RouteForgotPassword, ChainMiddleware(s.ForgotPasswordHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteResetPassword, ChainMiddleware(s.ResetPasswordGetHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteResetPassword, ChainMiddleware(s.ResetPasswordPostHandler(), s.APIMiddleware()...))

	// Federated sign-in
	s.RegisterRouteHandler("GET "+RouteFederatedStart, ChainMiddleware(s.FederatedStartHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteCallback, ChainMiddleware(s.FederatedCallbackHandler(), s.APIMiddleware()...))

	// Phone sign-in
	s.RegisterRouteHandler("POST "+RoutePhoneSendCode, ChainMiddleware(s.PhoneSendCodeHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RoutePhoneVerify, ChainMiddleware(s.PhoneVerifyHandler(), s.APIMiddleware()...))

	// Protected API routes
	s.RegisterRouteHandler("GET "+RouteMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware(s.Protect(guard.Route{}))...))
	s.RegisterRouteHandler("GET "+RouteAdminUsers, ChainMiddleware(s.AdminUsersHandler(), s.APIMiddleware(s.Protect(guard.Route{AdminOnly: true}))...))

	// Token verification carries its own CORS headers and must answer
	// OPTIONS itself, so it is registered without a method and outside
	// the standard middleware chain.
	s.RegisterRouteFunc(RouteVerifyToken, ChainMiddleware(s.VerifyTokenHandler(), s.LoggingMiddleware))
}
