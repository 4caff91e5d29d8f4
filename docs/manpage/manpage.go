// Package manpage generates a roff-formatted man page for stat-pulse.
//
// The page is built at runtime from the cobra command tree, the dashboard
// key bindings and the default configuration, so it always matches the
// binary it ships with.
//
// Usage:
//
//	stat-pulse man | man -l -
//	stat-pulse man > ~/.local/share/man/man1/stat-pulse.1
package manpage

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"gitlab.com/tinyland/lab/stat-pulse/config"
	"gitlab.com/tinyland/lab/stat-pulse/display/tui"
)

// Generate produces a complete man(1) page for root. The version, commit and
// date come from the build-time linker variables.
func Generate(root *cobra.Command, version, commit, date string) string {
	var b strings.Builder

	writeHeader(&b, root, version)
	writeName(&b, root)
	writeSynopsis(&b, root)
	writeDescription(&b, root)
	writeCommands(&b, root)
	writeOptions(&b, root)
	writeKeybindings(&b)
	writeConfiguration(&b)
	writeFiles(&b)
	writeEnvironment(&b)
	writeExitStatus(&b)
	writeSeeAlso(&b)
	writeFooter(&b, version, commit, date)

	return b.String()
}

// roffEscape escapes special roff characters in a string.
func roffEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `-`, `\-`)
	s = strings.ReplaceAll(s, `.`, `\&.`)
	return s
}

func writeHeader(b *strings.Builder, root *cobra.Command, version string) {
	month := time.Now().Format("January 2006")
	fmt.Fprintf(b, ".TH %s 1 \"%s\" \"%s %s\" \"User Commands\"\n",
		strings.ToUpper(root.Name()), month, root.Name(), version)
}

func writeName(b *strings.Builder, root *cobra.Command) {
	fmt.Fprintf(b, ".SH NAME\n%s \\- %s\n", roffEscape(root.Name()), roffEscape(strings.ToLower(root.Short)))
}

func writeSynopsis(b *strings.Builder, root *cobra.Command) {
	fmt.Fprintf(b, ".SH SYNOPSIS\n.B %s\n[\\fICOMMAND\\fR] [\\fIOPTIONS\\fR]\n", roffEscape(root.Name()))
}

func writeDescription(b *strings.Builder, root *cobra.Command) {
	b.WriteString(".SH DESCRIPTION\n")
	fmt.Fprintf(b, ".B %s\n%s\n", roffEscape(root.Name()), roffEscape(root.Long))
	b.WriteString(`.PP
A producer samples the host on a fixed interval and publishes each sample on
the \fBstatistics\fR channel. Dashboards keep the most recent samples and
chart one metric at a time. The producer runs either inside the dashboard
process or as a separate daemon that dashboards attach to over a websocket.
`)
}

func writeCommands(b *strings.Builder, root *cobra.Command) {
	b.WriteString(".SH COMMANDS\n")
	for _, c := range root.Commands() {
		if !c.IsAvailableCommand() {
			continue
		}
		b.WriteString(".TP\n")
		fmt.Fprintf(b, ".B %s\n", roffEscape(c.Use))
		b.WriteString(roffEscape(c.Short) + "\n")
		c.LocalFlags().VisitAll(func(f *pflag.Flag) {
			if f.Hidden {
				return
			}
			b.WriteString(".RS\n")
			writeFlag(b, f)
			b.WriteString(".RE\n")
		})
	}
}

func writeOptions(b *strings.Builder, root *cobra.Command) {
	b.WriteString(".SH OPTIONS\nThese options apply to every command.\n")
	root.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if !f.Hidden {
			writeFlag(b, f)
		}
	})
}

func writeFlag(b *strings.Builder, f *pflag.Flag) {
	b.WriteString(".TP\n")
	name := "\\-\\-" + roffEscape(f.Name)
	if f.Shorthand != "" {
		name = "\\-" + f.Shorthand + ", " + name
	}
	if f.Value.Type() == "bool" {
		fmt.Fprintf(b, ".B %s\n", name)
	} else {
		fmt.Fprintf(b, ".BR \"%s\" \" \\fI%s\\fR\"\n", name, strings.ToUpper(f.Value.Type()))
	}
	b.WriteString(roffEscape(f.Usage) + "\n")
}

func writeKeybindings(b *strings.Builder) {
	b.WriteString(`.SH KEYBINDINGS
The dashboard accepts the following keys. With mouse support enabled, clicking
a metric card also selects its view.
`)
	for _, kb := range tui.KeyBindings() {
		keys := make([]string, 0, len(kb.Keys()))
		for _, k := range kb.Keys() {
			keys = append(keys, "\\fB"+roffEscape(k)+"\\fR")
		}
		b.WriteString(".TP\n")
		b.WriteString(strings.Join(keys, ", ") + "\n")
		b.WriteString(roffEscape(kb.Help().Desc) + "\n")
	}
}

func writeConfiguration(b *strings.Builder) {
	b.WriteString(`.SH CONFIGURATION
The configuration file is YAML. Missing keys take the defaults shown below.
.PP
.nf
.RS
`)
	data, err := yaml.Marshal(config.DefaultConfig())
	if err != nil {
		fmt.Fprintf(b, "(defaults unavailable: %v)\n", err)
	} else {
		for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
			b.WriteString(roffEscape(line) + "\n")
		}
	}
	b.WriteString(".RE\n.fi\n")
}

func writeFiles(b *strings.Builder) {
	b.WriteString(`.SH FILES
.TP
.I ~/.config/stat\-pulse/config.yaml
Configuration file.
.TP
.I ~/.cache/stat\-pulse/latest.json
Latest sample written by the daemon, read by \fBstatus\fR.
.TP
.I ~/.cache/stat\-pulse/static.json
Static hardware capabilities written by the daemon.
.TP
.I ~/.cache/stat\-pulse/stat\-pulse.pid
PID of the running daemon.
.TP
.I ~/.local/log/stat\-pulse.log
Log file.
`)
}

func writeEnvironment(b *strings.Builder) {
	b.WriteString(`.SH ENVIRONMENT
.TP
.B NO_COLOR
When set, \fBstatus\fR prints without ANSI styling.
`)
}

func writeExitStatus(b *strings.Builder) {
	b.WriteString(".SH EXIT STATUS\n")
	b.WriteString(".TP\n.B 0\n")
	b.WriteString("Success.\n")
	b.WriteString(".TP\n.B 1\n")
	b.WriteString("Failure. For \\fBstatus\\fR, no snapshot was found.\n")
}

func writeSeeAlso(b *strings.Builder) {
	b.WriteString(`.SH SEE ALSO
.BR top (1),
.BR free (1),
.BR df (1),
.BR sensors (1)
`)
}

func writeFooter(b *strings.Builder, version, commit, date string) {
	fmt.Fprintf(b, ".SH VERSION\n%s (%s) built %s\n", version, commit, date)
}
