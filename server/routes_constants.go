package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Discovery
	RouteWellKnownRemotes = "/.well-known/remotes.json"
	RouteModule           = "/modules/{slug}"

	// Navigation
	RouteRedirect = "/go"

	// API Routes
	RouteAPIRemotes         = "/api/remotes"
	RouteAPISession         = "/api/session"
	RouteAPISessionActivity = "/api/session/activity"
	RouteAPISessionLogout   = "/api/session/logout"
	RouteAPIEvents          = "/api/events"

	RouteHealth = "/healthz"
)

// registryDocument is the registry file inside the data folder.
const registryDocument = "remotes.json"
