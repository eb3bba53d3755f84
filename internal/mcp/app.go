package mcp

import (
	"github.com/axyra/membership/adapter/cli"
	"github.com/axyra/membership/internal/app"
)

// NewCLIApp creates a CLI application instance backed by the provided container.
func NewCLIApp(container *app.Container, currentUser string) *cli.App {
	cliApp := cli.NewApp(container.MembershipService, container.Health)
	cliApp.SetCurrentUserID(currentUser)
	return cliApp
}
