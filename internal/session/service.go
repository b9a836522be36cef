package session

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/a3tai/mcp-pdf-formfill/internal/config"
	"github.com/a3tai/mcp-pdf-formfill/internal/form"
	"github.com/a3tai/mcp-pdf-formfill/internal/metrics"
	"github.com/a3tai/mcp-pdf-formfill/internal/security"
)

var (
	// ErrFormNotFound is returned when the default form is missing
	ErrFormNotFound = errors.New("form not found, upload a PDF instead")
	// ErrTooLarge is returned for documents above the size limit
	ErrTooLarge = errors.New("document exceeds maximum file size")
	// ErrNotCompleted is returned when writing a session with open fields
	ErrNotCompleted = errors.New("form is not completed yet")
)

// Service opens sessions and drives them through the form pipeline
type Service struct {
	store       *Store
	extractor   *form.Extractor
	writer      *form.Writer
	forms       *security.FormDirectory
	recorder    *metrics.Recorder
	defaultForm string
	outputDir   string
	maxFileSize int64
	verify      bool
	debugMode   bool
}

// NewService creates a session service from the configuration
func NewService(cfg *config.Config, recorder *metrics.Recorder) (*Service, error) {
	forms, err := security.NewFormDirectory(cfg.FormDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to open form directory: %w", err)
	}
	if recorder == nil {
		recorder = metrics.NewRecorder()
	}

	return &Service{
		store:       NewStore(),
		extractor:   form.NewExtractor(cfg.IsDebug()),
		writer:      form.NewWriter(cfg.IsDebug()),
		forms:       forms,
		recorder:    recorder,
		defaultForm: cfg.DefaultFormPath(),
		outputDir:   cfg.OutputDirectory,
		maxFileSize: cfg.MaxFileSize,
		verify:      cfg.Verify,
		debugMode:   cfg.IsDebug(),
	}, nil
}

// Recorder returns the metrics recorder
func (s *Service) Recorder() *metrics.Recorder {
	return s.recorder
}

// Store returns the session store
func (s *Service) Store() *Store {
	return s.store
}

// OpenDefault starts a session on the configured default form
func (s *Service) OpenDefault() (*Status, error) {
	if s.defaultForm == "" {
		return nil, ErrFormNotFound
	}
	if _, err := os.Stat(s.defaultForm); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFormNotFound
		}
		return nil, fmt.Errorf("cannot access default form: %w", err)
	}

	data, err := s.readFile(s.defaultForm)
	if err != nil {
		return nil, err
	}
	return s.open(filepath.Base(s.defaultForm), data)
}

// OpenFile starts a session on a form inside the form directory
func (s *Service) OpenFile(path string) (*Status, error) {
	resolved, err := s.forms.Resolve(path)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}

	data, err := s.readFile(resolved)
	if err != nil {
		return nil, err
	}
	return s.open(filepath.Base(resolved), data)
}

// OpenUpload starts a session on an uploaded document
func (s *Service) OpenUpload(name string, r io.Reader) (*Status, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.maxFileSize {
		return nil, ErrTooLarge
	}
	if name == "" {
		name = "upload.pdf"
	}
	return s.open(filepath.Base(name), data)
}

func (s *Service) readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot access form: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory: %s", path)
	}
	if info.Size() > s.maxFileSize {
		return nil, ErrTooLarge
	}

	data, err := os.ReadFile(path) // #nosec G304 - path is confined or operator configured
	if err != nil {
		return nil, fmt.Errorf("failed to read form: %w", err)
	}
	return data, nil
}

// open extracts the fields of data and stores a new session. A document
// without text fields still opens, already completed.
func (s *Service) open(source string, data []byte) (*Status, error) {
	fields, err := s.extractor.ExtractBytes(data)
	emptyForm := false
	if err != nil {
		if !form.IsEmptyFormError(err) {
			s.recorder.SessionOpened("parse_error", 0)
			return nil, err
		}
		emptyForm = true
		log.Printf("No fillable text fields in %s", source)
	}

	sess := newSession(s.store.newID(), source, data, fields, emptyForm)
	s.store.Add(sess)

	result := "ok"
	if emptyForm {
		result = "empty_form"
	}
	s.recorder.SessionOpened(result, len(fields))

	if s.debugMode {
		log.Printf("Opened session %s on %s with %d field(s)", sess.ID, source, len(fields))
	}

	return sess.Status(), nil
}

// Status returns a snapshot of the session
func (s *Service) Status(id string) (*Status, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	return sess.Status(), nil
}

// Fields returns the ordered text fields of the session's document
func (s *Service) Fields(id string) (form.FieldList, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	return sess.Fields(), nil
}

// Submit offers value as the answer to the session's current field
func (s *Service) Submit(id, value string) (*SubmitResult, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	result := sess.submit(value)
	s.recorder.Submission(result.Outcome)

	if s.debugMode {
		log.Printf("Session %s: %s (%d/%d)", id, result.Outcome, result.Cursor, result.Total)
	}

	return result, nil
}

// Finish writes the answers of a completed session into its document
func (s *Service) Finish(id string) ([]byte, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	document, answers, completed := sess.snapshot()
	if !completed {
		return nil, ErrNotCompleted
	}

	filled, err := s.writer.WriteBytes(document, answers)
	s.recorder.DocumentWritten(err == nil)
	if err != nil {
		return nil, err
	}

	if s.verify && len(answers) > 0 {
		if err := form.Verify(filled, answers); err != nil {
			log.Printf("Warning: read-back of session %s: %v", id, err)
		}
	}

	return filled, nil
}

// Save writes the filled document of a completed session into the output
// directory under fileName and returns the path written
func (s *Service) Save(id, fileName string) (string, []byte, error) {
	filled, err := s.Finish(id)
	if err != nil {
		return "", nil, err
	}

	if fileName == "" {
		fileName = form.FilledFileName
	}
	path := filepath.Join(s.outputDir, filepath.Base(fileName))
	if err := os.WriteFile(path, filled, 0o600); err != nil {
		return "", nil, fmt.Errorf("failed to save filled form: %w", err)
	}

	log.Printf("Filled form saved to %s", path)
	return path, filled, nil
}

// Close drops a session
func (s *Service) Close(id string) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}
	s.recorder.SessionClosed()
	return nil
}
