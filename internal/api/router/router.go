package router

import (
	"net/http"

	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/handler"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/auth"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/ws"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware(deps.Config.CORSAllowedOrigins(), deps.Config.Auth.CSRFHeaderName))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "voice-api-service",
		})
	})

	// Uploaded media is served straight off disk; upload URLs point here
	if deps.Config.App.MediaDir != "" {
		r.Static(deps.Config.App.MediaURLPath, deps.Config.App.MediaDir)
	}

	// Initialize handlers
	authHandler := handler.NewAuthHandler(deps)
	uploadHandler := handler.NewUploadHandler(deps)
	jobHandler := handler.NewJobHandler(deps)
	ttsHandler := handler.NewTTSHandler(deps)
	voiceHandler := handler.NewVoiceHandler(deps)
	sttHandler := handler.NewSTTHandler(deps)
	detectHandler := handler.NewDetectHandler(deps)
	wsHandler := ws.NewHandler(deps.Logger, deps.Auth, deps.Storage, deps.Config.WSAllowedOrigins())

	// Session resolution runs on every route; guards are per-group
	r.Use(auth.Middleware(deps.Auth, deps.Logger))

	// WebSocket handshake authenticates itself (no CSRF on GET upgrade)
	r.GET("/ws", wsHandler.Serve)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/token", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authHandler.Logout)
			authGroup.GET("/me", auth.RequireUser(), authHandler.Me)
		}

		protected := v1.Group("", auth.RequireUser())
		{
			uploads := protected.Group("/uploads")
			{
				uploads.POST("", uploadHandler.Create)
			}

			jobs := protected.Group("/jobs")
			{
				jobs.POST("/detect", jobHandler.SubmitDetect)
				jobs.POST("/voice-design", jobHandler.SubmitVoiceDesign)
				jobs.POST("/voice-clone", jobHandler.SubmitVoiceCloneCreate)
				jobs.POST("/voice-clone/build", jobHandler.SubmitVoiceCloneBuild)
				jobs.GET("", jobHandler.List)
				jobs.GET("/:job_id", jobHandler.Get)
			}

			tts := protected.Group("/tts")
			{
				tts.GET("/meta", ttsHandler.Meta)
				tts.POST("/stream", ttsHandler.Stream)
				tts.GET("/presets", ttsHandler.ListPresets)
				tts.POST("/presets", ttsHandler.CreatePreset)
				tts.GET("/presets/:uuid", ttsHandler.GetPreset)
				tts.PATCH("/presets/:uuid", ttsHandler.UpdatePreset)
				tts.DELETE("/presets/:uuid", ttsHandler.DeletePreset)
			}

			voices := protected.Group("/voices")
			{
				voices.GET("", voiceHandler.List)
				voices.GET("/mine", voiceHandler.MyVoices)
				voices.POST("", voiceHandler.Create)
				voices.POST("/rapid", voiceHandler.CreateRapidVoice)
				voices.GET("/:uuid", voiceHandler.Get)
				voices.POST("/:uuid/recordings", voiceHandler.UploadRecording)
			}

			stt := protected.Group("/stt/transcripts")
			{
				stt.GET("", sttHandler.ListTranscripts)
				stt.POST("", sttHandler.CreateTranscript)
				stt.GET("/:uuid", sttHandler.GetTranscript)
				stt.POST("/:uuid/ask", sttHandler.Ask)
				stt.GET("/:uuid/questions", sttHandler.ListQuestions)
				stt.GET("/:uuid/questions/:question_uuid", sttHandler.GetQuestion)
			}

			detect := protected.Group("/deepfake")
			{
				detect.GET("/meta", detectHandler.Meta)
				detect.GET("", detectHandler.List)
				detect.GET("/:uuid", detectHandler.Get)
			}
		}
	}

	return r
}
