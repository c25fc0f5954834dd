package server

func (s *Server) initRoutes() {
	guard := s.shell.Guard()

	// Discovery
	s.RegisterRouteHandler("GET "+RouteWellKnownRemotes, ChainMiddleware(s.RegistryDocumentHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+RouteWellKnownRemotes, ChainMiddleware(s.PreflightHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteModule, ChainMiddleware(s.ModuleHandler(), s.HTMLMiddleWare(guard.Middleware())...))

	// Navigation
	s.RegisterRouteHandler("GET "+RouteRedirect, ChainMiddleware(s.RedirectHandler(), s.HTMLMiddleWare()...))

	// API routes
	s.RegisterRouteHandler("GET "+RouteAPIRemotes, ChainMiddleware(s.RemotesHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPISession, ChainMiddleware(s.SessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPISessionActivity, ChainMiddleware(s.ActivityHandler(), s.APIMiddleware(guard.Middleware(), s.RateLimitMiddleware)...))
	s.RegisterRouteHandler("POST "+RouteAPISessionLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware(guard.Middleware())...))
	s.RegisterRouteHandler("POST "+RouteAPIEvents, ChainMiddleware(s.PublishEventHandler(), s.APIMiddleware(guard.Middleware(), s.RateLimitMiddleware)...))
	s.RegisterRouteHandler("OPTIONS /api/", ChainMiddleware(s.PreflightHandler(), s.APIMiddleware()...))

	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
}
