package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/zfogg/solfeed/pkg/config"
	"github.com/zfogg/solfeed/pkg/errors"
	"github.com/zfogg/solfeed/pkg/feed"
	"golang.org/x/term"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Format represents the output format type
type Format string

const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatText  Format = "text"
)

var (
	bold    = color.New(color.Bold)
	faint   = color.New(color.Faint)
	success = color.New(color.FgGreen)
	failure = color.New(color.FgRed)
	info    = color.New(color.FgCyan)
	warning = color.New(color.FgYellow)
	handle  = color.New(color.FgMagenta, color.Bold)
)

// GetFormat returns the configured output format
func GetFormat() Format {
	switch config.GetString("output.format") {
	case "json":
		return FormatJSON
	case "table":
		return FormatTable
	default:
		return FormatText
	}
}

// ValidateFormat checks if format is valid
func ValidateFormat(format string) bool {
	return format == "json" || format == "table" || format == "text"
}

// DetectColor turns color off when f is not a terminal
func DetectColor(f *os.File) {
	if f == nil || !term.IsTerminal(int(f.Fd())) {
		color.NoColor = true
	}
}

// PrintSuccess prints a success message
func PrintSuccess(msg string, args ...interface{}) {
	success.Fprintf(color.Output, msg+"\n", args...)
}

// PrintInfo prints an info message
func PrintInfo(msg string, args ...interface{}) {
	info.Fprintf(color.Output, msg+"\n", args...)
}

// PrintWarning prints a warning message
func PrintWarning(msg string, args ...interface{}) {
	warning.Fprintf(color.Output, "Warning: "+msg+"\n", args...)
}

// PrintError prints a classified error with its suggestion, if any
func PrintError(err error) {
	if err == nil {
		return
	}
	failure.Fprint(color.Error, errors.Format(err))
}

// PrintTable writes an aligned table with a bold header row
func PrintTable(w io.Writer, headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, h := range headers {
		bold.Fprint(tw, h)
		if i < len(headers)-1 {
			fmt.Fprint(tw, "\t")
		}
	}
	fmt.Fprintln(tw)

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
}

// PostPrinter renders posts in one of the output formats. JSON output is
// one object per line so watch output can be piped.
type PostPrinter struct {
	w      io.Writer
	format Format
	now    func() time.Time
}

func NewPostPrinter(w io.Writer, format Format) *PostPrinter {
	return &PostPrinter{w: w, format: format, now: time.Now}
}

// Posts prints a batch, newest first, under an optional heading
func (p *PostPrinter) Posts(title string, posts []feed.Post) error {
	switch p.format {
	case FormatJSON:
		enc := json.NewEncoder(p.w)
		for _, post := range posts {
			if err := enc.Encode(post); err != nil {
				return err
			}
		}
		return nil

	case FormatTable:
		rows := make([][]string, 0, len(posts))
		for _, post := range posts {
			rows = append(rows, []string{
				shortID(post.ID),
				post.Author.Handle(),
				fmt.Sprintf("%+d", post.Score()),
				ago(post.CreatedAt, p.now()),
				truncate(oneLine(post.Content), 60),
			})
		}
		if title != "" {
			bold.Fprintln(p.w, title)
		}
		PrintTable(p.w, []string{"ID", "AUTHOR", "SCORE", "AGE", "CONTENT"}, rows)
		return nil

	default:
		if title != "" {
			bold.Fprintln(p.w, title)
		}
		for _, post := range posts {
			p.text(post)
		}
		return nil
	}
}

func (p *PostPrinter) text(post feed.Post) {
	handle.Fprint(p.w, post.Author.Handle())
	faint.Fprintf(p.w, "  %s  %s\n", ago(post.CreatedAt, p.now()), shortID(post.ID))
	fmt.Fprintln(p.w, post.Content)

	stats := fmt.Sprintf("▲ %d  ▼ %d  ◎ %s", post.Upvotes, post.Downvotes, formatSOL(post.TipsReceived))
	if post.Reputation > 0 {
		stats += fmt.Sprintf("  ★ %.1f", post.Reputation)
	}
	if post.Receipted {
		stats += "  ✓ receipted"
	}
	faint.Fprintln(p.w, stats)
	fmt.Fprintln(p.w)
}

// Banner prints a one-line status, e.g. for a stopped loop
func (p *PostPrinter) Banner(err error) {
	if err == nil {
		return
	}
	if p.format == FormatJSON {
		_ = json.NewEncoder(p.w).Encode(map[string]string{"error": err.Error()})
		return
	}
	failure.Fprintf(p.w, "■ %s\n", err.Error())
	if e := errors.Classify(err); e.HasSuggestion() {
		faint.Fprintf(p.w, "  %s\n", e.Suggestion)
	}
}

const lamportsPerSOL = 1_000_000_000

func formatSOL(lamports int64) string {
	if lamports == 0 {
		return "0 SOL"
	}
	s := fmt.Sprintf("%.4f", float64(lamports)/lamportsPerSOL)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	return s + " SOL"
}

func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:6] + "…" + id[len(id)-4:]
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func ago(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
