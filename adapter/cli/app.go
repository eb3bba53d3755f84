package cli

import (
	"github.com/axyra/membership/internal/membership/application"
	"github.com/axyra/membership/pkg/observability"
)

// App holds the CLI application dependencies.
type App struct {
	Membership *application.Service
	Health     *observability.HealthRegistry

	// CurrentUserID is the user commands act on when --user is not given.
	CurrentUserID string
}

// NewApp creates a new CLI application.
func NewApp(membership *application.Service, health *observability.HealthRegistry) *App {
	return &App{
		Membership: membership,
		Health:     health,
	}
}

// SetCurrentUserID updates the default user.
func (a *App) SetCurrentUserID(userID string) {
	a.CurrentUserID = userID
}

// UserOrDefault returns userID, or the current user when it is empty.
func (a *App) UserOrDefault(userID string) string {
	if userID != "" {
		return userID
	}
	return a.CurrentUserID
}

// app is the global CLI application instance
var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}
