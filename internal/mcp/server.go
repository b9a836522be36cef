package mcp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/mcp-pdf-formfill/internal/config"
	"github.com/a3tai/mcp-pdf-formfill/internal/descriptions"
	"github.com/a3tai/mcp-pdf-formfill/internal/form"
	"github.com/a3tai/mcp-pdf-formfill/internal/session"
)

const shutdownTimeout = 10 * time.Second

// Server exposes form sessions as MCP tools and over HTTP
type Server struct {
	config    *config.Config
	sessions  *session.Service
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, sessions *session.Service) (*Server, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session service cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		config:    cfg,
		sessions:  sessions,
		mcpServer: mcpServer,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	sessionArg := mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("Session id returned by form_open"),
	)

	s.mcpServer.AddTool(mcp.NewTool(
		"form_open",
		mcp.WithDescription(descriptions.FormOpenDescription),
		mcp.WithString("path",
			mcp.Description("PDF form inside the form directory (uses the default form if empty)"),
		),
	), s.handleFormOpen)

	s.mcpServer.AddTool(mcp.NewTool(
		"form_fields",
		mcp.WithDescription(descriptions.FormFieldsDescription),
		sessionArg,
	), s.handleFormFields)

	s.mcpServer.AddTool(mcp.NewTool(
		"form_submit",
		mcp.WithDescription(descriptions.FormSubmitDescription),
		sessionArg,
		mcp.WithString("value",
			mcp.Required(),
			mcp.Description("Answer to the current question"),
		),
	), s.handleFormSubmit)

	s.mcpServer.AddTool(mcp.NewTool(
		"form_status",
		mcp.WithDescription(descriptions.FormStatusDescription),
		sessionArg,
	), s.handleFormStatus)

	s.mcpServer.AddTool(mcp.NewTool(
		"form_write",
		mcp.WithDescription(descriptions.FormWriteDescription),
		sessionArg,
	), s.handleFormWrite)

	s.mcpServer.AddTool(mcp.NewTool(
		"form_close",
		mcp.WithDescription(descriptions.FormCloseDescription),
		sessionArg,
	), s.handleFormClose)
}

// Handler functions
func (s *Server) handleFormOpen(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetString("path", "")

	var (
		st  *session.Status
		err error
	)
	if path == "" {
		st, err = s.sessions.OpenDefault()
	} else {
		st, err = s.sessions.OpenFile(path)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	responseText := fmt.Sprintf("Opened %s\n", st.Source)
	responseText += fmt.Sprintf("Session: %s\n", st.ID)
	responseText += fmt.Sprintf("Questions: %d\n", st.Total)
	if st.EmptyForm {
		responseText += "\nThis document has no fillable text fields. Use form_write to get it back unchanged.\n"
		return mcp.NewToolResultText(responseText), nil
	}
	responseText += "\n" + formatQuestion(st)

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleFormFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	fields, err := s.sessions.Fields(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatFields(fields)), nil
}

func (s *Server) handleFormSubmit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	// A blank value is a normal turn, so only the key is required.
	value := request.GetString("value", "")

	result, err := s.sessions.Submit(id, value)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	responseText := fmt.Sprintf("Outcome: %s\n", result.Outcome)
	if result.Message != "" {
		responseText += result.Message + "\n"
	}
	responseText += "\n" + formatQuestion(&result.Status)

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleFormStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	st, err := s.sessions.Status(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	responseText := fmt.Sprintf("Form: %s\n", st.Source)
	responseText += fmt.Sprintf("Answered: %d of %d\n", st.Cursor, st.Total)
	responseText += "\n" + formatQuestion(st)

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleFormWrite(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	path, filled, err := s.sessions.Save(id, filledFileName(id))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resource := mcp.BlobResourceContents{
		URI:      "file://" + path,
		MIMEType: form.FilledMIMEType,
		Blob:     base64.StdEncoding.EncodeToString(filled),
	}
	responseText := fmt.Sprintf("Filled form saved to %s (%d bytes)", path, len(filled))

	return mcp.NewToolResultResource(responseText, resource), nil
}

func (s *Server) handleFormClose(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.sessions.Close(id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Session %s closed", id)), nil
}

// filledFileName keeps files of concurrent sessions apart
func filledFileName(id string) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return strings.TrimSuffix(form.FilledFileName, ".pdf") + "_" + short + ".pdf"
}

// formatQuestion renders the next question, or the answers once complete
func formatQuestion(st *session.Status) string {
	if !st.Completed {
		prompt := st.Prompt
		if prompt == "" {
			prompt = st.Field
		}
		return fmt.Sprintf("Question %d of %d (%s):\n%s\n", st.Cursor+1, st.Total, st.Field, prompt)
	}

	var b strings.Builder
	b.WriteString("Form completed!\n")
	for _, a := range st.Answers {
		fmt.Fprintf(&b, "  %s: %s\n", a.Name, a.Value)
	}
	b.WriteString("\nUse form_write to produce the filled document.\n")
	return b.String()
}

func formatFields(fields form.FieldList) string {
	if len(fields) == 0 {
		return "No fillable text fields"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d text field(s):\n", len(fields))
	for i, f := range fields {
		fmt.Fprintf(&b, "%d. %s", i+1, f.Name)
		if f.Prompt != "" {
			fmt.Fprintf(&b, " - %s", f.Prompt)
		}
		if len(f.Pages) > 0 {
			pages := make([]string, len(f.Pages))
			for j, p := range f.Pages {
				pages[j] = fmt.Sprint(p)
			}
			fmt.Fprintf(&b, " (page %s)", strings.Join(pages, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Run starts the server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode serves the MCP tools over standard I/O
func (s *Server) runStdioMode(_ context.Context) error {
	if s.config.IsDebug() {
		log.Printf("Starting form filler in stdio mode")
		log.Printf("Form directory: %s", s.config.FormDirectory)
	}

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves the HTTP API, the MCP tools over SSE and the metrics
// until ctx is cancelled
func (s *Server) runServerMode(ctx context.Context) error {
	addr := s.config.Address()
	httpServer := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
	}
	sse := server.NewSSEServer(s.mcpServer,
		server.WithBaseURL("http://"+addr),
		server.WithHTTPServer(httpServer),
		server.WithKeepAlive(true),
	)
	httpServer.Handler = s.router(sse)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Form filler listening on http://%s", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Closes open SSE streams before shutting the listener down.
	if err := sse.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
