// Package channel holds the line-oriented terminal front end of an interview.
package channel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"interviewsim/internal/domain"
	"interviewsim/internal/interview"
)

// Interviewer is the part of *interview.Interviewer the REPL drives.
type Interviewer interface {
	Start(ctx context.Context, s *interview.Session) (string, error)
	Respond(ctx context.Context, s *interview.Session, answer string) (string, error)
	Feedback(ctx context.Context, s *interview.Session) (string, error)
	End(s *interview.Session)
}

// Transcriber turns a recorded answer into text.
type Transcriber interface {
	TranscribeAnswer(ctx context.Context, path string) (string, error)
}

// CLI runs an interview as a terminal REPL.
type CLI struct {
	interviewer Interviewer
	transcriber Transcriber
	logger      *slog.Logger
	in          io.Reader
	out         io.Writer
	spinner     bool

	thinkMu   sync.Mutex
	thinkStop chan struct{}
	thinkDone chan struct{}
}

type CLIConfig struct {
	Interviewer Interviewer
	Transcriber Transcriber // optional, enables /audio
	Logger      *slog.Logger
	In          io.Reader
	Out         io.Writer
	Spinner     bool
}

func NewCLI(cfg CLIConfig) *CLI {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CLI{
		interviewer: cfg.Interviewer,
		transcriber: cfg.Transcriber,
		logger:      cfg.Logger,
		in:          cfg.In,
		out:         cfg.Out,
		spinner:     cfg.Spinner,
	}
}

const helpText = `Commands:
  /feedback       assess the interview so far
  /audio <file>   answer with a recorded audio file
  /help           show this help
  /quit           end the interview`

// Run asks the opening question and then reads answers until EOF, /quit,
// the turn limit or ctx cancellation. A failed turn is reported and the
// candidate can answer again.
func (c *CLI) Run(ctx context.Context, s *interview.Session) error {
	c.printf("Interview %s. Type your answer and press Enter. Type /help for commands.\n", s.ID)

	c.startThinking()
	question, err := c.interviewer.Start(ctx, s)
	c.stopThinking()
	if err != nil {
		return err
	}
	defer c.interviewer.End(s)
	c.printReply("Interviewer", question)

	scanner := bufio.NewScanner(c.in)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		c.printf("You> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			return nil // EOF
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit" || line == "/exit" || line == "/q":
			c.logger.Info("user requested quit")
			return nil
		case line == "/help":
			c.printf("%s\n", helpText)
			continue
		case line == "/feedback":
			c.startThinking()
			fb, err := c.interviewer.Feedback(ctx, s)
			c.stopThinking()
			if err != nil {
				c.printf("Error: %v\n", err)
				continue
			}
			c.printReply("Feedback", fb)
			continue
		case strings.HasPrefix(line, "/audio"):
			text, err := c.transcribe(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/audio")))
			if err != nil {
				c.printf("Error: %v\n", err)
				continue
			}
			c.printf("(transcribed) %s\n", text)
			line = text
		case strings.HasPrefix(line, "/"):
			c.printf("Unknown command %s. Type /help.\n", line)
			continue
		}

		c.startThinking()
		reply, err := c.interviewer.Respond(ctx, s, line)
		c.stopThinking()
		if errors.Is(err, domain.ErrInterviewFinished) {
			c.printf("The interview reached its turn limit. Use /feedback for an assessment or /quit.\n")
			continue
		}
		if err != nil {
			c.logger.Warn("turn failed", "interview", s.ID, "err", err)
			c.printf("Error: %v\nYour answer was not recorded, please try again.\n", err)
			continue
		}
		c.printReply("Interviewer", reply)
	}
}

func (c *CLI) transcribe(ctx context.Context, path string) (string, error) {
	if c.transcriber == nil {
		return "", errors.New("speech input is not enabled")
	}
	if path == "" {
		return "", errors.New("usage: /audio <file>")
	}
	c.startThinking()
	defer c.stopThinking()
	return c.transcriber.TranscribeAnswer(ctx, path)
}

func (c *CLI) printReply(who, text string) {
	c.printf("--- %s ---\n%s\n----------------\n", who, text)
}

func (c *CLI) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

func (c *CLI) startThinking() {
	if !c.spinner {
		return
	}
	c.thinkMu.Lock()
	defer c.thinkMu.Unlock()
	if c.thinkStop != nil {
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	c.thinkStop, c.thinkDone = stop, done
	go func() {
		defer close(done)
		frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		i := 0
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				fmt.Fprint(c.out, "\r\033[K") // clear spinner line
				return
			case <-ticker.C:
				fmt.Fprintf(c.out, "\r%s Thinking...", frames[i%len(frames)])
				i++
			}
		}
	}()
}

func (c *CLI) stopThinking() {
	c.thinkMu.Lock()
	defer c.thinkMu.Unlock()
	if c.thinkStop == nil {
		return
	}
	close(c.thinkStop)
	<-c.thinkDone
	c.thinkStop, c.thinkDone = nil, nil
}
