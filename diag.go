package cnms

import (
	"fmt"
	"strings"
)

// Severity classifies a Diagnostic as fatal to the compilation or merely
// informational.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Category buckets diagnostics the way the compiler's phases produce them:
// lexical, syntactic, type, semantic, and resource-exhaustion.
type Category int

const (
	CategoryLexical Category = iota
	CategorySyntax
	CategoryType
	CategorySemantic
	CategoryResource
)

// Note annotates a secondary span within a Diagnostic, e.g. "first
// declared here" pointing back at an earlier binding.
type Note struct {
	Area     SourceView
	Text     string
	Critical bool
}

// Diagnostic is one compiler message: a code, a human description, the
// primary span that triggered it, and zero or more secondary notes.
type Diagnostic struct {
	Severity Severity
	Category Category
	Code     int
	Message  string
	Primary  SourceView
	Notes    []Note
	Filename string
}

// Error implements the standard error interface so a Diagnostic can be
// returned directly from any API that reports a single failure (e.g.
// RegisterExternal), not just emitted through a DiagnosticSink.
func (d Diagnostic) Error() string {
	return d.Format()
}

// DiagnosticSink receives every Diagnostic the compiler produces, in the
// order they were raised. A nil sink silently drops diagnostics while
// error counting still proceeds.
type DiagnosticSink func(d Diagnostic)

// Format renders a Diagnostic as a headline, a `--> file:line:col`
// pointer, and one annotated source line per note.
func (d Diagnostic) Format() string {
	var b strings.Builder
	loc := locate(d.Primary.Src, d.Primary.Start)
	fmt.Fprintf(&b, "%s[%c%04d]: %s\n", d.Severity, severityLetter(d.Severity), d.Code, d.Message)
	fmt.Fprintf(&b, "  --> %s:%d:%d\n", d.Filename, loc.Line, loc.Col)

	areas := d.Notes
	if len(areas) == 0 {
		areas = []Note{{Area: d.Primary, Critical: true}}
	}
	prevLine := 0
	for _, n := range areas {
		nloc := locate(n.Area.Src, n.Area.Start)
		line := sourceLine(n.Area.Src, n.Area.Start)
		if prevLine != 0 && nloc.Line-prevLine > 1 {
			b.WriteString("   |\n...\n")
		}
		fmt.Fprintf(&b, "   |\n%-3d|%s\n", nloc.Line, line)

		width := n.Area.End - n.Area.Start
		if width < 1 {
			width = 1
		}
		marker := strings.Repeat("-", width)
		if n.Critical {
			marker = "^" + strings.Repeat("~", width-1)
		}
		b.WriteString("   |")
		b.WriteString(strings.Repeat(" ", nloc.Col-1))
		b.WriteString(marker)
		if n.Text != "" {
			b.WriteByte(' ')
			b.WriteString(n.Text)
		}
		b.WriteByte('\n')
		prevLine = nloc.Line
	}
	return b.String()
}

func severityLetter(s Severity) byte {
	if s == SeverityWarning {
		return 'W'
	}
	return 'E'
}

// sourceLine returns the full line of src containing offset, without the
// trailing newline.
func sourceLine(src []byte, offset int) string {
	if offset > len(src) {
		offset = len(src)
	}
	start := offset
	for start > 0 && src[start-1] != '\n' {
		start--
	}
	end := offset
	for end < len(src) && src[end] != '\n' {
		end++
	}
	return string(src[start:end])
}

// diagBag accumulates diagnostics for one compilation, forwarding each to
// an optional sink and keeping the error/warning counts the compiler
// reports through Result.
type diagBag struct {
	sink     DiagnosticSink
	filename string
	errors   int
	warnings int
}

func (b *diagBag) emit(sev Severity, cat Category, code int, area SourceView, msg string, notes ...Note) {
	if sev == SeverityError {
		b.errors++
	} else {
		b.warnings++
	}
	if b.sink == nil {
		return
	}
	b.sink(Diagnostic{
		Severity: sev,
		Category: cat,
		Code:     code,
		Message:  msg,
		Primary:  area,
		Notes:    notes,
		Filename: b.filename,
	})
}

func (b *diagBag) errorf(cat Category, code int, area SourceView, format string, args ...any) {
	b.emit(SeverityError, cat, code, area, fmt.Sprintf(format, args...))
}

func (b *diagBag) warnf(cat Category, code int, area SourceView, format string, args ...any) {
	b.emit(SeverityWarning, cat, code, area, fmt.Sprintf(format, args...))
}
