// Package chat runs a form filling session as a conversation in the terminal.
package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/a3tai/mcp-pdf-formfill/internal/form"
	"github.com/a3tai/mcp-pdf-formfill/internal/session"
)

// CompletedMessage is printed once every field has an answer
const CompletedMessage = "Form completed!"

// ErrInputClosed is returned when input ends before the form is complete
var ErrInputClosed = errors.New("input closed before the form was completed")

// Shell asks for one field at a time on in and answers on out
type Shell struct {
	service     *session.Service
	in          *bufio.Scanner
	out         io.Writer
	interactive bool
	// readErr is set by the line reader before it closes its channel
	readErr error
}

// NewShell creates a shell reading from in and writing to out. The input
// marker is only printed when in is a terminal.
func NewShell(service *session.Service, in io.Reader, out io.Writer) *Shell {
	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	return &Shell{
		service:     service,
		in:          scanner,
		out:         out,
		interactive: interactive,
	}
}

// Run opens the default form and collects an answer for every field
func (sh *Shell) Run(ctx context.Context) error {
	st, err := sh.open()
	if err != nil {
		return err
	}
	defer sh.service.Close(st.ID) //nolint:errcheck

	if st.Completed {
		return sh.finish(st)
	}

	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()
	lines := sh.readLines(readCtx)

	for !st.Completed {
		if err := ctx.Err(); err != nil {
			return err
		}

		sh.say(st)
		if sh.interactive {
			fmt.Fprint(sh.out, "> ")
		}

		var line string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				if sh.readErr != nil {
					return fmt.Errorf("failed to read input: %w", sh.readErr)
				}
				return ErrInputClosed
			}
			line = l
		}

		res, err := sh.service.Submit(st.ID, line)
		if err != nil {
			return err
		}
		if res.Outcome == form.OutcomeRejected.String() {
			fmt.Fprintln(sh.out, res.Message)
		}
		st = &res.Status
	}

	return sh.finish(st)
}

// readLines scans input in the background so that a blocked read does not
// hold up cancellation
func (sh *Shell) readLines(ctx context.Context) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		for sh.in.Scan() {
			select {
			case lines <- sh.in.Text():
			case <-ctx.Done():
				return
			}
		}
		sh.readErr = sh.in.Err()
	}()
	return lines
}

// RunBatch opens the default form and answers every field from answers,
// in field order
func (sh *Shell) RunBatch(ctx context.Context, answers map[string]string) error {
	st, err := sh.open()
	if err != nil {
		return err
	}
	defer sh.service.Close(st.ID) //nolint:errcheck

	for !st.Completed {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := sh.service.Submit(st.ID, answers[st.Field])
		if err != nil {
			return err
		}
		if res.Outcome == form.OutcomeRejected.String() {
			return fmt.Errorf("no answer for field %q (%s)", st.Field, st.Prompt)
		}
		st = &res.Status
	}

	return sh.finish(st)
}

func (sh *Shell) open() (*session.Status, error) {
	st, err := sh.service.OpenDefault()
	if err != nil {
		fmt.Fprintf(sh.out, "Error: %v\n", err)
		return nil, err
	}
	if st.EmptyForm {
		fmt.Fprintf(sh.out, "%s has no fillable text fields.\n", st.Source)
	}
	return st, nil
}

// say prints the prompt of the current field
func (sh *Shell) say(st *session.Status) {
	prompt := st.Prompt
	if prompt == "" {
		prompt = st.Field
	}
	fmt.Fprintln(sh.out, prompt)
}

func (sh *Shell) finish(st *session.Status) error {
	fmt.Fprintln(sh.out, CompletedMessage)

	data, err := answersJSON(st.Answers)
	if err != nil {
		return fmt.Errorf("failed to encode answers: %w", err)
	}
	fmt.Fprintln(sh.out, string(data))

	path, _, err := sh.service.Save(st.ID, form.FilledFileName)
	if err != nil {
		fmt.Fprintf(sh.out, "Error: %v\n", err)
		return err
	}
	fmt.Fprintf(sh.out, "Filled form saved to %s\n", path)
	return nil
}

// answersJSON renders answers as an indented JSON object in field order
func answersJSON(answers []form.Answer) ([]byte, error) {
	if len(answers) == 0 {
		return []byte("{}"), nil
	}

	var b bytes.Buffer
	b.WriteString("{\n")
	for i, a := range answers {
		name, err := json.Marshal(a.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(a.Value)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&b, "  %s: %s", name, value)
		if i < len(answers)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}")
	return b.Bytes(), nil
}
