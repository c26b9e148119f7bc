package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	sessionsHandler := handlers.NewSessionsHandler(s.services.Manager, s.config.Capture.SnapshotURL)
	attendanceHandler := handlers.NewAttendanceHandler(s.services.Recorder, s.services.History)
	facesHandler := handlers.NewFacesHandler(s.services.Registrar)
	configHandler := handlers.NewConfigHandler(s.config)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)

		// Streams are long-lived and must not be cut by the request timeout
		r.Get("/sessions/{id}/events", sessionsHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(5 * time.Minute))

			r.Get("/config", configHandler.Get)

			// Sessions
			r.Post("/sessions", sessionsHandler.Open)
			r.Get("/sessions", sessionsHandler.List)
			r.Get("/sessions/{id}", sessionsHandler.Get)
			r.Delete("/sessions/{id}", sessionsHandler.Cancel)
			r.Post("/sessions/{id}/live", sessionsHandler.StartLive)
			r.Delete("/sessions/{id}/live", sessionsHandler.StopLive)
			r.Post("/sessions/{id}/live/switch", sessionsHandler.SwitchDevice)
			r.Post("/sessions/{id}/frames", sessionsHandler.PushFrame)
			r.Post("/sessions/{id}/stills", sessionsHandler.Stills)
			r.Post("/sessions/{id}/students/{studentId}/toggle", sessionsHandler.Toggle)
			r.Post("/sessions/{id}/reset", sessionsHandler.Reset)
			r.Post("/sessions/{id}/submit", sessionsHandler.Submit)

			// Attendance records
			r.Post("/attendance", attendanceHandler.Submit)
			r.Get("/classes/{classId}/attendance", attendanceHandler.History)

			// Face registration
			r.Post("/students/{studentId}/face", facesHandler.Register)
		})
	})
}
