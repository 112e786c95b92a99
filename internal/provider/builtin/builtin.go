// Package builtin registers the bundled backends. It lives apart from
// package provider to avoid import cycles.
package builtin

import (
	"fmt"

	"github.com/Digital-Shane/marquee/internal/provider"
	"github.com/Digital-Shane/marquee/internal/provider/omdb"
	"github.com/Digital-Shane/marquee/internal/provider/tmdb"
	"github.com/Digital-Shane/marquee/internal/provider/tvdb"
)

// Register loads every built-in backend into registry.
func Register(registry *provider.Registry) error {
	if err := registry.Register("omdb", omdb.Factory, 100); err != nil {
		return fmt.Errorf("failed to register OMDb backend: %w", err)
	}
	if err := registry.Register("tmdb", tmdb.Factory, 90); err != nil {
		return fmt.Errorf("failed to register TMDB backend: %w", err)
	}
	if err := registry.Register("tvdb", tvdb.Factory, 80); err != nil {
		return fmt.Errorf("failed to register TVDB backend: %w", err)
	}
	return nil
}
