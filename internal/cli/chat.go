package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/smalltalk-dojo/internal/app/conversation"
	"github.com/PabloGalante/smalltalk-dojo/internal/domain"
)

const chatHelp = `Commands:
  /personas          list personas
  /persona <id>      switch persona (loads that conversation)
  /history           show the current conversation
  /feedback [n]      show the last n critiques
  /voice <file>      send a recorded audio file as your turn
  /help              show this help
  /quit              leave`

type chatOptions struct {
	user    string
	persona string
}

func newChatCmd(st *rootState) *cobra.Command {
	var opts chatOptions

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Practise in an interactive terminal chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// the terminal is shared with the conversation
			st.v.SetDefault("log.format", "text")
			st.v.SetDefault("log.level", "warn")

			cfg, err := st.load()
			if err != nil {
				return err
			}

			a, err := wireApp(cmd.Context(), cfg, wireOptions{
				interactive: true,
				in:          cmd.InOrStdin(),
				out:         cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			defer a.Close()

			return runChat(cmd.Context(), a, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.user, "user", "u", "", "your user name (asked once when empty)")
	cmd.Flags().StringVarP(&opts.persona, "persona", "p", "", "persona id to start with")

	return cmd
}

type chat struct {
	a       *app
	s       styles
	out     io.Writer
	session *conversation.Session
	pending string
}

func runChat(ctx context.Context, a *app, opts chatOptions, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	user := strings.TrimSpace(opts.user)
	if user == "" {
		fmt.Fprint(out, "Your name: ")
		if scanner.Scan() {
			user = strings.TrimSpace(scanner.Text())
		}
		if user == "" {
			return errors.New("a user name is required")
		}
	}

	started, err := a.svc.StartSession(ctx, conversation.StartSessionInput{
		UserID:    domain.UserID(user),
		PersonaID: domain.PersonaID(opts.persona),
	})
	if err != nil {
		return err
	}

	c := &chat{a: a, s: newStyles(), out: out, session: started.Session}
	c.printWarnings(started.Warnings)
	c.printIntro()

	for {
		c.printPrompt()
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" && c.pending != "" {
			line = c.pending
		}
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := c.command(ctx, line); quit {
				return nil
			}
			continue
		}

		c.pending = ""
		ex, err := a.svc.SendMessage(ctx, c.session, line)
		if err != nil {
			c.printSendError(err)
			continue
		}
		c.printExchange(ex)
	}

	fmt.Fprintln(out)
	return scanner.Err()
}

// command handles a slash command and reports whether the chat should end.
func (c *chat) command(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true

	case "/help":
		fmt.Fprintln(c.out, chatHelp)

	case "/personas":
		catalog := c.a.svc.Personas()
		fmt.Fprintln(c.out, c.s.renderPersonas(catalog.List(), c.session.Persona().ID))

	case "/persona":
		if arg == "" {
			fmt.Fprintln(c.out, c.s.renderError("usage: /persona <id>"))
			return false
		}
		warnings, err := c.a.svc.SwitchPersona(ctx, c.session, domain.PersonaID(arg))
		if err != nil {
			fmt.Fprintln(c.out, c.s.renderError(err.Error()))
			return false
		}
		c.pending = ""
		c.printWarnings(warnings)
		c.printIntro()

	case "/history":
		c.printHistory()

	case "/feedback":
		limit := 0
		if arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil || n <= 0 {
				fmt.Fprintln(c.out, c.s.renderError("usage: /feedback [n]"))
				return false
			}
			limit = n
		}
		entries, err := c.a.feedback.Recent(ctx, c.session.UserID, c.session.Persona().ID, limit)
		if err != nil {
			fmt.Fprintln(c.out, c.s.renderError(err.Error()))
			return false
		}
		fmt.Fprintln(c.out, c.s.renderFeedback(entries))

	case "/voice":
		c.sendVoice(ctx, arg)

	default:
		fmt.Fprintln(c.out, c.s.renderError("unknown command "+name+", try /help"))
	}
	return false
}

func (c *chat) sendVoice(ctx context.Context, path string) {
	if path == "" {
		fmt.Fprintln(c.out, c.s.renderError("usage: /voice <file>"))
		return
	}
	if !c.a.svc.VoiceEnabled() {
		fmt.Fprintln(c.out, c.s.renderError("voice input is disabled (set speech.enabled)"))
		return
	}

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintln(c.out, c.s.renderError(err.Error()))
		return
	}
	defer f.Close()

	ex, err := c.a.svc.SendVoice(ctx, c.session, domain.AudioInput{
		Filename: filepath.Base(path),
		Data:     f,
	})
	if err != nil {
		if errors.Is(err, domain.ErrTranscriptionFailed) {
			c.printWarnings([]domain.Warning{domain.NewWarning(domain.WarnTranscription, err)})
			return
		}
		c.printSendError(err)
		return
	}

	fmt.Fprintln(c.out, c.s.header.Render("you said: "+ex.Transcript))
	c.printExchange(ex)
}

func (c *chat) printIntro() {
	p := c.session.Persona()
	fmt.Fprintln(c.out, c.s.title.Render("Talking to "+p.DisplayName))
	fmt.Fprintln(c.out, c.s.detail.Render(p.Style))
	fmt.Fprintln(c.out, c.s.header.Render("Goal: "+p.WinCondition))
	c.printHistory()
	fmt.Fprintln(c.out, c.s.empty.Render("Type /help for commands."))
}

func (c *chat) printHistory() {
	snap := c.session.Snapshot()
	for _, t := range snap.Turns {
		if t.Role == domain.RoleUser {
			fmt.Fprintln(c.out, c.s.header.Render("you: ")+t.Text)
		} else {
			fmt.Fprintln(c.out, c.s.renderReply(snap.Persona, t.Text))
		}
	}
}

func (c *chat) printPrompt() {
	if c.pending != "" {
		fmt.Fprintln(c.out, c.s.empty.Render(fmt.Sprintf("(press Enter to resend: %q)", c.pending)))
	}
	if hint := c.session.Persona().Placeholder; hint != "" && len(c.session.Snapshot().Turns) == 0 {
		fmt.Fprintln(c.out, c.s.empty.Render(hint))
	}
	fmt.Fprint(c.out, "> ")
}

func (c *chat) printExchange(ex *conversation.Exchange) {
	fmt.Fprintln(c.out, c.s.renderReply(c.session.Persona(), ex.AssistantTurn.Text))
	fmt.Fprintln(c.out, c.s.renderCritique(ex.Critique))
	c.printWarnings(ex.Warnings)

	if c.a.sink != nil && len(ex.Audio) > 0 {
		fmt.Fprintln(c.out, c.s.empty.Render("audio: "+c.a.sink.LastPath()))
	}
}

func (c *chat) printSendError(err error) {
	var ce *domain.CompletionError
	if errors.As(err, &ce) {
		c.pending = ce.Pending
		fmt.Fprintln(c.out, c.s.renderError("連線錯誤: "+ce.Err.Error()))
		return
	}
	fmt.Fprintln(c.out, c.s.renderError(err.Error()))
}

func (c *chat) printWarnings(warnings []domain.Warning) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintln(c.out, c.s.renderWarnings(warnings))
}
