package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"longrec/internal/session"
)

const navigateHelp = `commands:
  n [k]      step forward k frames (default 1)
  p [k]      step backward k frames (default 1)
  f <frame>  jump to a frame of the current segment
  s <index>  jump to a reference segment
  w <a> <b>  show frames [a, b)
  z <f>      zoom by factor f (>1 zooms in)
  src        list the files of the current segment
  q          quit`

func newNavigateCommand(ctx *commandContext) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "navigate",
		Short: "Walk through the recording interactively",
		Long:  "Reads navigation commands from stdin, one per line. Only warnings and errors\nare logged unless --verbose is set.\n\n" + navigateHelp,
		RunE: func(cmd *cobra.Command, args []string) error {
			minLevel := slog.LevelWarn
			if verbose {
				minLevel = slog.LevelDebug
			}
			sess, err := ctx.openSessionAt(cmd.Context(), minLevel)
			if err != nil {
				return err
			}
			defer sess.Close()

			out := cmd.OutOrStdout()
			printPosition(out, sess, false, "")
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				fields := strings.Fields(line)
				switch fields[0] {
				case "q", "quit", "exit":
					return nil
				case "h", "help", "?":
					fmt.Fprintln(out, navigateHelp)
					continue
				case "src", "sources":
					printSources(out, sess.View().Sources())
					continue
				}
				command, err := parseNavigation(fields)
				if err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
					continue
				}
				res, err := sess.Navigate(cmd.Context(), command)
				if err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
					continue
				}
				note := ""
				if res.Clamped {
					note = "clamped"
				}
				printPosition(out, sess, res.Reloaded, note)
			}
			return scanner.Err()
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Keep info and debug session logs")
	return cmd
}

func parseNavigation(fields []string) (session.Command, error) {
	ints := func(want int) ([]int, error) {
		if len(fields)-1 != want {
			return nil, fmt.Errorf("%s expects %d argument(s)", fields[0], want)
		}
		out := make([]int, want)
		for i := range out {
			v, err := strconv.Atoi(fields[i+1])
			if err != nil {
				return nil, fmt.Errorf("invalid number %q", fields[i+1])
			}
			out[i] = v
		}
		return out, nil
	}
	step := func(sign int) (session.Command, error) {
		k := 1
		if len(fields) > 1 {
			v, err := ints(1)
			if err != nil {
				return session.Command{}, err
			}
			k = v[0]
		}
		return session.Command{Kind: session.CommandStep, Value: sign * k}, nil
	}

	switch fields[0] {
	case "n", "next":
		return step(1)
	case "p", "prev":
		return step(-1)
	case "f", "frame":
		v, err := ints(1)
		if err != nil {
			return session.Command{}, err
		}
		return session.Command{Kind: session.CommandFrame, Value: v[0]}, nil
	case "s", "segment":
		v, err := ints(1)
		if err != nil {
			return session.Command{}, err
		}
		return session.Command{Kind: session.CommandSegment, Value: v[0]}, nil
	case "w", "window":
		v, err := ints(2)
		if err != nil {
			return session.Command{}, err
		}
		return session.Command{Kind: session.CommandWindow, Value: v[0], Last: v[1]}, nil
	case "z", "zoom":
		if len(fields) != 2 {
			return session.Command{}, fmt.Errorf("%s expects 1 argument(s)", fields[0])
		}
		f, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || f <= 0 {
			return session.Command{}, fmt.Errorf("invalid zoom factor %q", fields[1])
		}
		return session.Command{Kind: session.CommandZoom, Factor: f}, nil
	default:
		return session.Command{}, fmt.Errorf("unknown command %q (type h for help)", fields[0])
	}
}

func printPosition(out io.Writer, sess *session.Session, reloaded bool, note string) {
	v := sess.View()
	state, seg := v.State, v.Segment()
	line := fmt.Sprintf("segment %d frame %d window [%d,%d) begin %s",
		state.Segment, state.Frame, state.Window.First, state.Window.Last, formatTime(seg.Begin))
	if reloaded {
		line += " (reloaded)"
	}
	if note != "" {
		line += " (" + note + ")"
	}
	fmt.Fprintln(out, line)
}

func printSources(out io.Writer, sources map[string]string) {
	ids := make([]string, 0, len(sources))
	for id := range sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		path := sources[id]
		if path == "" {
			path = "-"
		} else {
			path = filepath.Base(path)
		}
		fmt.Fprintf(out, "  %s: %s\n", id, path)
	}
}
