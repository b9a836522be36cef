package mcp

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/a3tai/mcp-pdf-formfill/internal/config"
	"github.com/a3tai/mcp-pdf-formfill/internal/form"
	"github.com/a3tai/mcp-pdf-formfill/internal/form/formtest"
	"github.com/a3tai/mcp-pdf-formfill/internal/metrics"
	"github.com/a3tai/mcp-pdf-formfill/internal/session"
)

func newTestServer(t *testing.T) (*Server, *config.Config) {
	t.Helper()
	return newTestServerWith(t, func(*config.Config) {})
}

func newTestServerWith(t *testing.T, mutate func(cfg *config.Config)) (*Server, *config.Config) {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{
		Mode:            "stdio",
		Host:            "127.0.0.1",
		Port:            8080,
		FormDirectory:   dir,
		DefaultForm:     "ar-11.pdf",
		OutputDirectory: dir,
		Version:         "1.0.0",
		ServerName:      "test-server",
		LogLevel:        "info",
		MaxFileSize:     1024 * 1024,
	}
	mutate(cfg)

	sessions, err := session.NewService(cfg, metrics.NewRecorder())
	if err != nil {
		t.Fatalf("failed to create session service: %v", err)
	}
	server, err := NewServer(cfg, sessions)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return server, cfg
}

func writeForm(t *testing.T, cfg *config.Config, name string, data []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(cfg.FormDirectory, name), data, 0o600); err != nil {
		t.Fatalf("failed to write form: %v", err)
	}
}

func call(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// openSession opens path through form_open and returns the session id
func openSession(t *testing.T, server *Server, path string) string {
	t.Helper()
	result, err := server.handleFormOpen(context.Background(), call(map[string]interface{}{"path": path}))
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("form_open failed: %s", extractTextFromResult(result))
	}

	for _, line := range strings.Split(extractTextFromResult(result), "\n") {
		if id, ok := strings.CutPrefix(line, "Session: "); ok {
			return id
		}
	}
	t.Fatalf("no session id in: %s", extractTextFromResult(result))
	return ""
}

func TestNewServer(t *testing.T) {
	if _, err := NewServer(config.DefaultConfig(), nil); err == nil {
		t.Error("expected error for nil session service")
	}

	server, _ := newTestServer(t)
	if server.mcpServer == nil {
		t.Error("MCP server should be initialized")
	}
}

func TestServer_FormConversation(t *testing.T) {
	server, cfg := newTestServer(t)
	writeForm(t, cfg, "address.pdf", formtest.TextForm("street", "Street address", "city", "City"))
	ctx := context.Background()

	id := openSession(t, server, "address.pdf")

	result, err := server.handleFormFields(ctx, call(map[string]interface{}{"session_id": id}))
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	text := extractTextFromResult(result)
	if !strings.Contains(text, "1. street - Street address") || !strings.Contains(text, "2. city - City") {
		t.Errorf("unexpected field listing: %s", text)
	}

	result, _ = server.handleFormSubmit(ctx, call(map[string]interface{}{"session_id": id, "value": "  "}))
	text = extractTextFromResult(result)
	if !strings.Contains(text, "Outcome: rejected") || !strings.Contains(text, form.RejectionMessage) {
		t.Errorf("expected rejection, got: %s", text)
	}
	if !strings.Contains(text, "Question 1 of 2") {
		t.Errorf("expected the same question again, got: %s", text)
	}

	result, _ = server.handleFormSubmit(ctx, call(map[string]interface{}{"session_id": id, "value": "1 Main St"}))
	text = extractTextFromResult(result)
	if !strings.Contains(text, "Outcome: accepted") || !strings.Contains(text, "Question 2 of 2 (city)") {
		t.Errorf("expected the second question, got: %s", text)
	}

	result, _ = server.handleFormWrite(ctx, call(map[string]interface{}{"session_id": id}))
	if !result.IsError {
		t.Error("writing an incomplete form should fail")
	}

	result, _ = server.handleFormSubmit(ctx, call(map[string]interface{}{"session_id": id, "value": "Springfield"}))
	text = extractTextFromResult(result)
	if !strings.Contains(text, "Form completed!") || !strings.Contains(text, "city: Springfield") {
		t.Errorf("expected completion, got: %s", text)
	}

	result, _ = server.handleFormStatus(ctx, call(map[string]interface{}{"session_id": id}))
	if text := extractTextFromResult(result); !strings.Contains(text, "Answered: 2 of 2") {
		t.Errorf("unexpected status: %s", text)
	}

	result, err = server.handleFormWrite(ctx, call(map[string]interface{}{"session_id": id}))
	if err != nil || result.IsError {
		t.Fatalf("form_write failed: %v %s", err, extractTextFromResult(result))
	}
	if len(result.Content) != 2 {
		t.Fatalf("expected text and resource content, got %d items", len(result.Content))
	}
	embedded, ok := result.Content[1].(mcp.EmbeddedResource)
	if !ok {
		t.Fatalf("expected embedded resource, got %T", result.Content[1])
	}
	blob, ok := embedded.Resource.(mcp.BlobResourceContents)
	if !ok {
		t.Fatalf("expected blob resource, got %T", embedded.Resource)
	}
	if blob.MIMEType != form.FilledMIMEType {
		t.Errorf("MIME type = %s, want %s", blob.MIMEType, form.FilledMIMEType)
	}

	filled, err := base64.StdEncoding.DecodeString(blob.Blob)
	if err != nil {
		t.Fatalf("invalid base64: %v", err)
	}
	values, err := form.ReadValues(filled)
	if err != nil {
		t.Fatalf("failed to read back: %v", err)
	}
	if values["street"] != "1 Main St" || values["city"] != "Springfield" {
		t.Errorf("unexpected values: %v", values)
	}

	saved := filepath.Join(cfg.OutputDirectory, filledFileName(id))
	if _, err := os.Stat(saved); err != nil {
		t.Errorf("filled form not saved at %s: %v", saved, err)
	}

	result, _ = server.handleFormClose(ctx, call(map[string]interface{}{"session_id": id}))
	if result.IsError {
		t.Errorf("form_close failed: %s", extractTextFromResult(result))
	}
	result, _ = server.handleFormStatus(ctx, call(map[string]interface{}{"session_id": id}))
	if !result.IsError {
		t.Error("closed session should be gone")
	}
}

func TestServer_HandleFormOpen(t *testing.T) {
	server, cfg := newTestServer(t)
	writeForm(t, cfg, "blank.pdf", formtest.Blank(1))
	writeForm(t, cfg, "junk.pdf", []byte("not a pdf"))

	tests := []struct {
		name      string
		path      string
		wantError bool
		contains  string
	}{
		{name: "missing default form", path: "", wantError: true, contains: "form not found, upload a PDF instead"},
		{name: "document without fields", path: "blank.pdf", contains: "no fillable text fields"},
		{name: "not a pdf", path: "junk.pdf", wantError: true, contains: "[PARSE]"},
		{name: "outside form directory", path: "../etc/passwd", wantError: true, contains: "security validation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := server.handleFormOpen(context.Background(), call(map[string]interface{}{"path": tt.path}))
			if err != nil {
				t.Fatalf("handler failed: %v", err)
			}
			if result.IsError != tt.wantError {
				t.Errorf("IsError = %v, want %v", result.IsError, tt.wantError)
			}
			if text := extractTextFromResult(result); !strings.Contains(text, tt.contains) {
				t.Errorf("result %q does not contain %q", text, tt.contains)
			}
		})
	}
}

func TestServer_InvalidArguments(t *testing.T) {
	server, _ := newTestServer(t)
	ctx := context.Background()
	empty := call(map[string]interface{}{})
	unknown := call(map[string]interface{}{"session_id": "missing", "value": "x"})

	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"form_fields": server.handleFormFields,
		"form_submit": server.handleFormSubmit,
		"form_status": server.handleFormStatus,
		"form_write":  server.handleFormWrite,
		"form_close":  server.handleFormClose,
	}

	for name, handler := range handlers {
		t.Run(name, func(t *testing.T) {
			for _, req := range []mcp.CallToolRequest{empty, unknown} {
				result, err := handler(ctx, req)
				if err != nil {
					t.Fatalf("handler returned error instead of error result: %v", err)
				}
				if !result.IsError {
					t.Errorf("expected error result for %v", req.Params.Arguments)
				}
			}
		})
	}
}

func TestFilledFileName(t *testing.T) {
	if got := filledFileName("0123456789abcdef"); got != "filled_form_01234567.pdf" {
		t.Errorf("filledFileName() = %s", got)
	}
	if got := filledFileName("abc"); got != "filled_form_abc.pdf" {
		t.Errorf("filledFileName() = %s", got)
	}
}

func TestFormatFields(t *testing.T) {
	text := formatFields(form.FieldList{
		{Name: "a", Prompt: "First", Pages: []int{1, 2}},
		{Name: "b"},
	})
	if !strings.Contains(text, "2 text field(s)") {
		t.Errorf("missing count: %s", text)
	}
	if !strings.Contains(text, "1. a - First (page 1, 2)") {
		t.Errorf("missing first field: %s", text)
	}
	if !strings.Contains(text, "2. b\n") {
		t.Errorf("missing second field: %s", text)
	}
	if formatFields(nil) != "No fillable text fields" {
		t.Errorf("unexpected empty listing: %s", formatFields(nil))
	}
}

func TestServer_Run_ServerModeShutdown(t *testing.T) {
	server, cfg := newTestServer(t)
	cfg.Mode = "server"
	cfg.Port = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Run(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}

// Helper function to extract text from a CallToolResult
func extractTextFromResult(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}

	for _, content := range result.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			return textContent.Text
		}
		if textContentPtr, ok := content.(*mcp.TextContent); ok {
			return textContentPtr.Text
		}
	}

	return ""
}
