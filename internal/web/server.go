package web

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mfields/taskhive/internal/core"
)

// Server is the JSON API over the consistency engine. The engine is the
// only writer; handlers never touch storage directly.
type Server struct {
	engine *core.Engine
	router *gin.Engine
	server *http.Server
}

func NewServer(engine *core.Engine) *Server {
	router := gin.Default()

	s := &Server{
		engine: engine,
		router: router,
	}

	api := router.Group("/api")
	{
		api.GET("/tasks", s.handleListTasks)
		api.POST("/tasks", s.handleCreateTask)
		api.GET("/tasks/:id", s.handleGetTask)
		api.PATCH("/tasks/:id", s.handleUpdateTask)
		api.DELETE("/tasks/:id", s.handleDeleteTask)
		api.PUT("/tasks/:id/status", s.handleUpdateStatus)
		api.GET("/tasks/:id/activity", s.handleTaskActivity)
		api.POST("/tasks/:id/comments", s.handleAddComment)

		api.POST("/bulk/tasks", s.handleBulkCreate)
		api.PATCH("/bulk/tasks", s.handleBulkUpdate)

		api.GET("/tags", s.handleListTags)
		api.POST("/tags", s.handleCreateTag)
		api.PATCH("/tags/:id", s.handleUpdateTag)
		api.DELETE("/tags/:id", s.handleDeleteTag)

		api.GET("/groups", s.handleListGroups)
		api.POST("/groups", s.handleCreateGroup)
		api.PATCH("/groups/:id", s.handleUpdateGroup)
		api.DELETE("/groups/:id", s.handleDeleteGroup)
		api.GET("/groups/:id/activity", s.handleGroupActivity)
	}

	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
