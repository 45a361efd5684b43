package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/avatar-api/internal/api"
	apiMiddleware "github.com/phrazzld/avatar-api/internal/api/middleware"
)

// setupRouter registers every route and the middleware chain.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	profileHandler := api.NewProfileHandler(
		app.profileService,
		app.jwtService,
		time.Duration(app.config.Auth.TokenLifetimeMinutes)*time.Minute,
		app.logger,
	)
	avatarHandler := api.NewAvatarHandler(
		app.avatarService,
		app.profileService,
		app.files,
		api.AvatarHandlerConfig{
			BaseURL:        app.config.Server.BaseURL,
			MaxUploadBytes: app.config.Avatar.MaxUploadBytes,
		},
		app.logger,
	)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		r.Post("/profiles", profileHandler.CreateProfile)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Get("/avatars", avatarHandler.ListAvatars)
			r.Get("/avatars/recommended", avatarHandler.Recommended)
			r.Post("/avatars/custom", avatarHandler.CreateCustom)
			r.Post("/avatars/social", avatarHandler.CreateFromSocial)
			r.Post("/avatars/github", avatarHandler.ImportGitHub)
			r.Post("/avatars/{id}/select", avatarHandler.SelectAvatar)
			r.Post("/avatars/{id}/activate", avatarHandler.ActivateAvatar)
		})
	})

	r.Get("/dynamic/avatar/{handle}", avatarHandler.DynamicAvatar)
	r.Get("/media/*", avatarHandler.Media)
	r.Get("/health", api.Health)

	return r
}
