package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mfields/taskhive/internal/core"
	"github.com/mfields/taskhive/pkg/models"
)

func (s *Server) handleListTasks(c *gin.Context) {
	var status *models.TaskStatus
	if v := c.Query("status"); v != "" {
		st := models.TaskStatus(v)
		status = &st
	}
	var groupID *string
	if v := c.Query("group_id"); v != "" {
		groupID = &v
	}

	tasks, err := s.engine.ListTasks(c.Request.Context(), status, groupID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var in core.CreateTaskInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := s.engine.CreateTask(c.Request.Context(), in)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (s *Server) handleGetTask(c *gin.Context) {
	task, err := s.engine.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	var patch core.FieldPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := s.engine.UpdateTaskFields(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	result, err := s.engine.DeleteTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleUpdateStatus(c *gin.Context) {
	var body struct {
		Status models.TaskStatus `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.engine.UpdateTaskStatus(c.Request.Context(), c.Param("id"), body.Status)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleTaskActivity(c *gin.Context) {
	entries, err := s.engine.GetTaskActivity(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": entries})
}

func (s *Server) handleAddComment(c *gin.Context) {
	var body struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := s.engine.AddComment(c.Request.Context(), c.Param("id"), body.Text)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) handleBulkCreate(c *gin.Context) {
	var in core.BulkCreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := s.engine.BulkCreate(c.Request.Context(), in)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"created_tasks": created})
}

func (s *Server) handleBulkUpdate(c *gin.Context) {
	var body struct {
		TaskIDs []string            `json:"task_ids"`
		Spec    core.BulkUpdateSpec `json:"spec"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := s.engine.BulkUpdate(c.Request.Context(), body.TaskIDs, body.Spec)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated_tasks": updated})
}

func (s *Server) handleListTags(c *gin.Context) {
	tags, err := s.engine.ListTags(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

func (s *Server) handleCreateTag(c *gin.Context) {
	var body struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tag, err := s.engine.CreateTag(c.Request.Context(), body.Name, body.Color)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, tag)
}

func (s *Server) handleUpdateTag(c *gin.Context) {
	var body struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tag, err := s.engine.UpdateTag(c.Request.Context(), c.Param("id"), body.Name, body.Color)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, tag)
}

func (s *Server) handleDeleteTag(c *gin.Context) {
	if err := s.engine.DeleteTag(c.Request.Context(), c.Param("id")); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListGroups(c *gin.Context) {
	groups, err := s.engine.ListGroups(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

func (s *Server) handleCreateGroup(c *gin.Context) {
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Color       string `json:"color"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := s.engine.CreateGroup(c.Request.Context(), body.Name, body.Description, body.Color)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, group)
}

func (s *Server) handleUpdateGroup(c *gin.Context) {
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Color       string `json:"color"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := s.engine.UpdateGroup(c.Request.Context(), c.Param("id"), body.Name, body.Description, body.Color)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

func (s *Server) handleDeleteGroup(c *gin.Context) {
	if err := s.engine.DeleteGroup(c.Request.Context(), c.Param("id")); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGroupActivity(c *gin.Context) {
	entries, err := s.engine.GetGroupActivity(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": entries})
}

// respondErr maps the engine's error taxonomy onto HTTP statuses with
// enough structure for the UI to render an actionable message.
func respondErr(c *gin.Context, err error) {
	payload := gin.H{"error": err.Error()}

	var ve *core.ValidationError
	if errors.As(err, &ve) {
		if ve.TaskID != "" {
			payload["task_id"] = ve.TaskID
		}
		if ve.Field != "" {
			payload["field"] = ve.Field
		}
		c.JSON(http.StatusUnprocessableEntity, payload)
		return
	}

	var de *core.DepthLimitError
	if errors.As(err, &de) {
		payload["task_id"] = de.ParentID
		c.JSON(http.StatusUnprocessableEntity, payload)
		return
	}

	switch {
	case errors.Is(err, core.ErrNotFound):
		c.JSON(http.StatusNotFound, payload)
	case errors.Is(err, core.ErrConflict):
		c.JSON(http.StatusConflict, payload)
	case errors.Is(err, core.ErrStorage):
		payload["retryable"] = true
		c.JSON(http.StatusServiceUnavailable, payload)
	default:
		c.JSON(http.StatusInternalServerError, payload)
	}
}
