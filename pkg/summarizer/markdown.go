package summarizer

import (
	"fmt"
	"strings"
	"time"
)

// MarkdownFormatter renders a Summary as a Markdown document.
type MarkdownFormatter struct {
	translate func(string) string
	version   string
}

// MarkdownOption configures a MarkdownFormatter.
type MarkdownOption func(*MarkdownFormatter)

// WithTranslator sets the function used to translate labels.
func WithTranslator(t func(string) string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.translate = t
	}
}

// WithVersion adds the tool version to the footer.
func WithVersion(version string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.version = version
	}
}

// NewMarkdownFormatter creates a MarkdownFormatter.
func NewMarkdownFormatter(opts ...MarkdownOption) *MarkdownFormatter {
	f := &MarkdownFormatter{
		translate: func(s string) string { return s },
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format implements Formatter.
func (f *MarkdownFormatter) Format(s *Summary) string {
	t := f.translate
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", t("Decode Summary"))
	fmt.Fprintf(&b, "%s: %s\n\n", t("Generated"), s.GeneratedAt.Format(time.RFC3339))

	fmt.Fprintf(&b, "## %s\n\n", t("Settings"))
	fmt.Fprintf(&b, "| %s | %s |\n|---|---|\n", t("Item"), t("Value"))
	fmt.Fprintf(&b, "| %s | %s |\n", t("Codec"), s.Settings.Codec)
	fmt.Fprintf(&b, "| %s | %s |\n", t("Backend"), s.Settings.Variant)
	if s.Settings.HardwareDevice != "" {
		fmt.Fprintf(&b, "| %s | %s |\n", t("Hardware Device"), s.Settings.HardwareDevice)
	}
	fmt.Fprintf(&b, "| %s | %s |\n", t("Complete Frames"), yesNo(t, s.Settings.CompleteFrames))
	if s.Settings.Output != "" {
		fmt.Fprintf(&b, "| %s | %s |\n", t("Output"), s.Settings.Output)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## %s\n\n", t("Streams"))
	if len(s.Streams) == 0 {
		fmt.Fprintf(&b, "%s\n\n", t("No streams were decoded."))
	} else {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s | %s |\n",
			t("Stream"), t("Destination"), t("Frames"), t("Pictures"), t("Data"),
			t("Rebuilds"), t("Errors"), t("Time"), t("Status"))
		b.WriteString("|---|---:|---:|---:|---:|---:|---:|---:|---|\n")
		for _, st := range s.Streams {
			f.writeStreamRow(&b, st)
		}
		b.WriteString("\n")

		total := s.Totals()
		fmt.Fprintf(&b, "## %s\n\n", t("Totals"))
		fmt.Fprintf(&b, "- %s: %d\n", t("Frames"), total.Frames)
		fmt.Fprintf(&b, "- %s: %d\n", t("Pictures"), total.Pictures)
		fmt.Fprintf(&b, "- %s: %s\n", t("Data"), formatBytes(total.Bytes))
		fmt.Fprintf(&b, "- %s: %d\n", t("Dropped Frames"), total.HardErrors)
		if total.ConfigFailures > 0 {
			fmt.Fprintf(&b, "- %s: %d\n", t("Configuration Failures"), total.ConfigFailures)
		}
		b.WriteString("\n")
	}

	if f.version != "" {
		fmt.Fprintf(&b, "---\n\nframedecode %s\n", f.version)
	}
	return b.String()
}

func (f *MarkdownFormatter) writeStreamRow(b *strings.Builder, st StreamInfo) {
	status := f.translate("OK")
	if st.Failed() {
		status = fmt.Sprintf("%s: %s", f.translate("Failed"), escapeCell(st.Error))
	}
	fmt.Fprintf(b, "| %s | %d | %d | %d | %s | %d | %d | %s | %s |\n",
		escapeCell(st.Name), st.Destination, st.Frames, st.Pictures, formatBytes(st.Bytes),
		st.Rebuilds, st.HardErrors+st.ConfigFailures, formatDuration(st.Elapsed), status)
}

func yesNo(t func(string) string, v bool) string {
	if v {
		return t("Yes")
	}
	return t("No")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%d ms", d.Milliseconds())
}

// formatBytes formats a byte count with binary units.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit && exp < 2; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMG"[exp])
}
