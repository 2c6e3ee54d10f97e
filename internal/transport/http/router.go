// Package http exposes the quiz over REST (gin) and a WebSocket state channel.
package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/auth"
	"timed-quiz-service/internal/metrics"
)

// Deps is everything the router wires into routes.
type Deps struct {
	Quiz    *app.QuizService
	Auth    *auth.Service
	WS      *WSHandler
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	// Presence reports live clients on /healthz when set.
	Presence LiveClients
	// UploadsDir is served at /uploads when images are stored on local disk.
	UploadsDir string
}

func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	h := &handlers{quiz: d.Quiz, auth: d.Auth, presence: d.Presence, logger: d.Logger}

	r := gin.New()
	r.Use(gin.Recovery(), d.Metrics.Middleware())

	r.GET("/healthz", h.healthz)
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	if d.WS != nil {
		r.GET("/ws", gin.WrapF(d.WS.ServeWS))
	}
	if d.UploadsDir != "" {
		r.Static("/uploads", d.UploadsDir)
	}

	api := r.Group("/api")
	api.POST("/auth/register", h.register)
	api.POST("/auth/login", h.login)
	api.GET("/quiz/settings", h.settings)

	authed := api.Group("", requireAuth(d.Auth.Tokens()))
	{
		authed.POST("/quiz/start", h.startQuiz)
		authed.POST("/quiz/finish", h.finishQuiz)
		authed.POST("/quiz/reset", h.resetQuiz)

		authed.GET("/questions", h.listQuestions)
		authed.POST("/questions", h.createQuestion)
		authed.PUT("/questions/:id", h.updateQuestion)
		authed.DELETE("/questions/:id", h.deleteQuestion)

		authed.POST("/answers", h.submitAnswer)
		authed.GET("/scores/:userId", h.scoreForUser)

		authed.POST("/results", h.saveResult)
		authed.GET("/results", h.leaderboard)
		authed.GET("/results/:userId", h.resultForUser)

		authed.GET("/users", h.listUsers)
		authed.POST("/users", h.createUser)
	}
	return r
}
