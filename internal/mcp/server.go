package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mfields/taskhive/internal/core"
	"github.com/mfields/taskhive/pkg/models"
)

// NewServer creates an MCP server exposing the task engine to agents.
// Every mutation goes through the engine so status propagation and
// activity logging behave exactly as they do over HTTP.
func NewServer(engine *core.Engine) *server.MCPServer {
	s := server.NewMCPServer("TaskHive", "0.1.0")

	s.AddTool(mcp.NewTool("create_task",
		mcp.WithDescription("Create a task, optionally as a subtask of an existing task. Subtasks of subtasks are not allowed."),
		mcp.WithString("title", mcp.Description("Task title (max 200 chars)"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Task description (max 1000 chars)")),
		mcp.WithString("priority", mcp.Description("Priority (LOW|MEDIUM|HIGH|URGENT)")),
		mcp.WithString("parent_id", mcp.Description("Parent task id, for creating a subtask")),
		mcp.WithString("group_id", mcp.Description("Group id")),
		mcp.WithString("due_date", mcp.Description("Due date (RFC 3339)")),
		mcp.WithNumber("estimated_hours", mcp.Description("Estimated hours (0-1000)")),
	), createTaskHandler(engine))

	s.AddTool(mcp.NewTool("update_task",
		mcp.WithDescription("Update a task's fields. Omitted fields are left unchanged."),
		mcp.WithString("id", mcp.Description("Task id"), mcp.Required()),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("priority", mcp.Description("New priority (LOW|MEDIUM|HIGH|URGENT)")),
		mcp.WithString("group_id", mcp.Description("New group id (empty string clears the group)")),
		mcp.WithString("due_date", mcp.Description("New due date (RFC 3339)")),
		mcp.WithNumber("estimated_hours", mcp.Description("New estimate (0-1000)")),
	), updateTaskHandler(engine))

	s.AddTool(mcp.NewTool("update_task_status",
		mcp.WithDescription("Change a task's status. Completing a task completes its subtasks; parent status is re-derived automatically."),
		mcp.WithString("id", mcp.Description("Task id"), mcp.Required()),
		mcp.WithString("status", mcp.Description("New status (pending|ongoing|completed)"), mcp.Required()),
	), updateTaskStatusHandler(engine))

	s.AddTool(mcp.NewTool("delete_task",
		mcp.WithDescription("Delete a task and its subtasks."),
		mcp.WithString("id", mcp.Description("Task id"), mcp.Required()),
	), deleteTaskHandler(engine))

	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List tasks with optional filters."),
		mcp.WithString("status", mcp.Description("Filter by status (pending|ongoing|completed)")),
		mcp.WithString("group_id", mcp.Description("Filter by group id")),
	), listTasksHandler(engine))

	s.AddTool(mcp.NewTool("get_task",
		mcp.WithDescription("Get a single task by id."),
		mcp.WithString("id", mcp.Description("Task id"), mcp.Required()),
	), getTaskHandler(engine))

	s.AddTool(mcp.NewTool("add_comment",
		mcp.WithDescription("Add a user comment to a task's activity log."),
		mcp.WithString("id", mcp.Description("Task id"), mcp.Required()),
		mcp.WithString("text", mcp.Description("Comment text"), mcp.Required()),
	), addCommentHandler(engine))

	s.AddTool(mcp.NewTool("get_activity",
		mcp.WithDescription("Get a task's activity log including its direct subtasks, newest first."),
		mcp.WithString("id", mcp.Description("Task id"), mcp.Required()),
	), getActivityHandler(engine))

	// Staged bulk creation
	s.AddTool(mcp.NewTool("stage_task",
		mcp.WithDescription("Stage a task for bulk creation. Staged tasks are created together by 'commit_staged_tasks'."),
		mcp.WithString("title", mcp.Description("Task title"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Task description")),
		mcp.WithString("priority", mcp.Description("Priority (LOW|MEDIUM|HIGH|URGENT)")),
		mcp.WithString("group_id", mcp.Description("Group id")),
		mcp.WithString("session_id", mcp.Description("Session ID for staging (defaults to 'default').")),
	), stageTaskHandler(engine))

	s.AddTool(mcp.NewTool("set_subtask_titles",
		mcp.WithDescription("Set subtask titles to stamp under every staged task at commit time."),
		mcp.WithString("titles", mcp.Description("Subtask titles as a JSON array of strings"), mcp.Required()),
		mcp.WithString("session_id", mcp.Description("Session ID for staging (defaults to 'default').")),
	), setSubtaskTitlesHandler(engine))

	s.AddTool(mcp.NewTool("commit_staged_tasks",
		mcp.WithDescription("Create all staged tasks for a session in one atomic batch. Duplicate titles reject the whole batch."),
		mcp.WithString("session_id", mcp.Description("Session ID (defaults to 'default').")),
	), commitStagedTasksHandler(engine))

	s.AddTool(mcp.NewTool("list_staged_tasks",
		mcp.WithDescription("List the staged tasks for a session. Use this to review the batch before committing."),
		mcp.WithString("session_id", mcp.Description("Session ID (defaults to 'default').")),
	), listStagedTasksHandler(engine))

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func createTaskHandler(engine *core.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		in := core.CreateTaskInput{
			Title:       mcp.ParseString(request, "title", ""),
			Description: mcp.ParseString(request, "description", ""),
			Priority:    models.Priority(mcp.ParseString(request, "priority", string(models.PriorityMedium))),
		}
		args, _ := request.Params.Arguments.(map[string]any)
		if pid, ok := args["parent_id"].(string); ok && pid != "" {
			in.ParentID = &pid
		}
		if gid, ok := args["group_id"].(string); ok && gid != "" {
			in.GroupID = &gid
		}
		if due, ok := args["due_date"].(string); ok && due != "" {
			ts, err := time.Parse(time.RFC3339, due)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid due_date: %v", err)), nil
			}
			in.DueDate = &ts
		}
		if hours, ok := args["estimated_hours"].(float64); ok {
			in.EstimatedHours = &hours
		}

		t, err := engine.CreateTask(ctx, in)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(t)
	}
}

func updateTaskHandler(engine *core.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")

		var patch core.FieldPatch
		args, _ := request.Params.Arguments.(map[string]any)
		if title, ok := args["title"].(string); ok {
			patch.Title = &title
		}
		if description, ok := args["description"].(string); ok {
			patch.Description = &description
		}
		if priority, ok := args["priority"].(string); ok {
			p := models.Priority(priority)
			patch.Priority = &p
		}
		if gid, ok := args["group_id"].(string); ok {
			patch.GroupID = &gid
		}
		if due, ok := args["due_date"].(string); ok && due != "" {
			ts, err := time.Parse(time.RFC3339, due)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid due_date: %v", err)), nil
			}
			patch.DueDate = &ts
		}
		if hours, ok := args["estimated_hours"].(float64); ok {
			patch.EstimatedHours = &hours
		}

		t, err := engine.UpdateTaskFields(ctx, id, patch)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(t)
	}
}

func updateTaskStatusHandler(engine *core.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")
		status := models.TaskStatus(mcp.ParseString(request, "status", ""))

		result, err := engine.UpdateTaskStatus(ctx, id, status)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(result)
	}
}

func deleteTaskHandler(engine *core.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")

		result, err := engine.DeleteTask(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(result)
	}
}

func listTasksHandler(engine *core.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]any)
		var status *models.TaskStatus
		if s, ok := args["status"].(string); ok && s != "" {
			ts := models.TaskStatus(s)
			status = &ts
		}
		var groupID *string
		if gid, ok := args["group_id"].(string); ok && gid != "" {
			groupID = &gid
		}

		tasks, err := engine.ListTasks(ctx, status, groupID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"tasks": tasks})
	}
}

func getTaskHandler(engine *core.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")

		t, err := engine.GetTask(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(t)
	}
}

func addCommentHandler(engine *core.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")
		text := mcp.ParseString(request, "text", "")

		entry, err := engine.AddComment(ctx, id, text)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(entry)
	}
}

func getActivityHandler(engine *core.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")

		entries, err := engine.GetTaskActivity(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"activity": entries})
	}
}

func stageTaskHandler(engine *core.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title := mcp.ParseString(request, "title", "")
		sessionID := mcp.ParseString(request, "session_id", "default")

		t := &models.Task{
			Title:       title,
			Description: mcp.ParseString(request, "description", ""),
			Priority:    models.Priority(mcp.ParseString(request, "priority", string(models.PriorityMedium))),
			Status:      models.TaskStatusPending,
		}
		args, _ := request.Params.Arguments.(map[string]any)
		if gid, ok := args["group_id"].(string); ok && gid != "" {
			t.GroupID = &gid
		}

		engine.Store().Sessions.AddTask(sessionID, t)
		return mcp.NewToolResultText(fmt.Sprintf("Task '%s' staged for session '%s'. Stage another or call 'commit_staged_tasks' to apply.", title, sessionID)), nil
	}
}

func setSubtaskTitlesHandler(engine *core.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw := mcp.ParseString(request, "titles", "")
		sessionID := mcp.ParseString(request, "session_id", "default")

		var titles []string
		if err := json.Unmarshal([]byte(raw), &titles); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("titles must be a JSON array of strings: %v", err)), nil
		}

		engine.Store().Sessions.SetSubtaskTitles(sessionID, titles)
		return mcp.NewToolResultText(fmt.Sprintf("%d subtask titles staged for session '%s'.", len(titles), sessionID)), nil
	}
}

func commitStagedTasksHandler(engine *core.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := mcp.ParseString(request, "session_id", "default")

		batch := engine.Store().Sessions.GetAndClear(sessionID)
		if len(batch.Tasks) == 0 {
			return mcp.NewToolResultError(fmt.Sprintf("no staged tasks for session '%s'", sessionID)), nil
		}

		in := core.BulkCreateInput{
			PerTitle:      make(map[string]core.FieldPatch, len(batch.Tasks)),
			SubtaskTitles: batch.SubtaskTitles,
		}
		for _, t := range batch.Tasks {
			in.Titles = append(in.Titles, t.Title)
			patch := core.FieldPatch{}
			if t.Description != "" {
				patch.Description = &t.Description
			}
			if t.Priority != "" {
				patch.Priority = &t.Priority
			}
			if t.GroupID != nil {
				patch.GroupID = t.GroupID
			}
			if !patch.IsEmpty() {
				in.PerTitle[t.Title] = patch
			}
		}

		created, err := engine.BulkCreate(ctx, in)
		if err != nil {
			// The staged batch is already consumed; re-stage so the caller
			// can fix the conflict and retry without re-entering everything.
			for _, t := range batch.Tasks {
				engine.Store().Sessions.AddTask(sessionID, t)
			}
			engine.Store().Sessions.SetSubtaskTitles(sessionID, batch.SubtaskTitles)
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"created_tasks": created})
	}
}

func listStagedTasksHandler(engine *core.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := mcp.ParseString(request, "session_id", "default")

		batch := engine.Store().Sessions.Peek(sessionID)
		return jsonResult(batch)
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
