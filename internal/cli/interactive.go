package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/sammcj/mcp-base64/internal/converter"
	"github.com/sammcj/mcp-base64/internal/session"
	"github.com/sammcj/mcp-base64/internal/tools"
)

const interactiveHelp = `Type text to convert it. Commands:
  :encode   switch to the encoder (clears input and output)
  :decode   switch to the decoder (clears input and output)
  :copy     copy the current output to the clipboard
  :state    show the current mode, input and output
  :help     show this help
  :quit     leave the session`

// Interactive runs a line based session over the session state machine.
// Each non-command line replaces the input and the output slot is printed.
func (r *Runner) Interactive(ctx context.Context, in io.Reader, clipboard session.Clipboard) error {
	s := session.New(converter.ModeEncode, r.logger)

	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	prompt := func() {
		fmt.Fprintf(r.stdout, "%s> ", s.State().Mode)
	}

	fmt.Fprintln(r.stdout, interactiveHelp)
	prompt()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Text()
		switch strings.TrimSpace(line) {
		case ":quit", ":q", ":exit":
			return nil
		case ":help":
			fmt.Fprintln(r.stdout, interactiveHelp)
		case ":encode":
			s.SwitchMode(converter.ModeEncode)
		case ":decode":
			s.SwitchMode(converter.ModeDecode)
		case ":copy":
			switch {
			case !s.CanCopy():
				fmt.Fprintln(r.stdout, yellow("Nothing to copy."))
			case s.Copy(ctx, clipboard):
				fmt.Fprintln(r.stdout, green("Copied!"))
			default:
				fmt.Fprintln(r.stdout, red("Copy failed."))
			}
		case ":state":
			st := s.State()
			fmt.Fprintf(r.stdout, "%s %s\n%s %q\n%s %q\n", bold("mode:"), st.Mode, bold("input:"), st.Input, bold("output:"), st.Display())
			if s.Copied() {
				fmt.Fprintln(r.stdout, green("Copied!"))
			}
		default:
			st := s.SetInput(line)
			switch {
			case st.Error != "":
				fmt.Fprintln(r.stdout, red(st.Error))
				tools.GetGlobalFailureLogger().LogFailure(ctx, "interactive",
					converter.Request{Mode: st.Mode, Text: st.Input},
					converter.Result{Outcome: converter.Failure, Category: st.Category, Message: st.Error})
			default:
				if st.Advisory != converter.NoAdvisory {
					fmt.Fprintln(r.stdout, yellow(st.Advisory.Message()))
				}
				fmt.Fprintln(r.stdout, st.Output)
			}
		}
		prompt()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	fmt.Fprintln(r.stdout)
	return nil
}
