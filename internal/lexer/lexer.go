// Package lexer turns annotated SQL documents into a stream of tokens.
package lexer

import (
	"bufio"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/phobologic/sqlconv/internal/model"
	"github.com/phobologic/sqlconv/internal/report"
	"github.com/phobologic/sqlconv/internal/sqltext"
)

const (
	lineCommentStart  = "--"
	blockCommentStart = "/*"
	blockCommentEnd   = "*/"

	maxLineSize = 1 << 20
)

var (
	headerRe = regexp.MustCompile(`(?i)^\s*--\s*(` + strings.Join(model.HeaderFields, "|") + `)\s*:\s*(.*?)\s*$`)
	groupRe  = regexp.MustCompile(`(?i)^\s*/\*\s*(startgroup|endgroup)\s*:\s*(.*?)\s*(?::\s*OUTPUT\s*:\s*(.*?))?\s*\*/\s*$`)
	metaRe   = regexp.MustCompile(`(?i)\b(?:EXCLUDE|MULTILINE)\b|\bOUTPUT\s*:`)
)

// Starters are the first words that open an SQL statement.
var Starters = map[string]struct{}{
	"SELECT":  {},
	"PREPARE": {},
	"CREATE":  {},
	"DROP":    {},
	"WITH":    {},
	"EXECUTE": {},
	"RAISE":   {},
}

// Options controls lexing of lines that match no rule.
type Options struct {
	// Strict makes unrecognized lines fail with report.ErrUnrecognizedLine
	// instead of being dropped.
	Strict bool
	Logger *slog.Logger
}

// Lexer is a pull-based tokenizer over a line-oriented document.
type Lexer struct {
	file   string
	sc     *bufio.Scanner
	line   int
	strict bool
	log    *slog.Logger
}

// New creates a Lexer reading from r. file names the document in positions.
func New(file string, r io.Reader, opts Options) *Lexer {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Lexer{file: file, sc: sc, strict: opts.Strict, log: log}
}

func (l *Lexer) readLine() (string, bool) {
	if !l.sc.Scan() {
		return "", false
	}
	l.line++
	return l.sc.Text(), true
}

func (l *Lexer) pos(line string) model.Pos {
	return model.Pos{File: l.file, Line: l.line, Col: len(line) - len(strings.TrimLeft(line, " \t")) + 1}
}

// Next returns the next token, or io.EOF when the input is exhausted.
func (l *Lexer) Next() (model.Token, error) {
	for {
		line, ok := l.readLine()
		if !ok {
			if err := l.sc.Err(); err != nil {
				return model.Token{}, err
			}
			return model.Token{}, io.EOF
		}
		trimmed := strings.TrimSpace(line)
		pos := l.pos(line)

		switch {
		case trimmed == "":
			continue

		case strings.HasPrefix(trimmed, lineCommentStart):
			if m := headerRe.FindStringSubmatch(line); m != nil {
				return model.Token{
					Kind:  model.Header,
					Field: model.Field{Tag: strings.ToLower(m[1]), Value: m[2]},
					Pos:   pos,
					Line:  line,
				}, nil
			}
			text := strings.TrimSpace(strings.TrimPrefix(trimmed, lineCommentStart))
			return model.Token{Kind: model.LineComment, Text: text, Pos: pos, Line: line}, nil

		case strings.HasPrefix(trimmed, blockCommentStart):
			return l.block(line, pos)

		case isStarter(trimmed):
			return l.statement(line, pos)

		default:
			if l.strict {
				return model.Token{}, report.Errorf(pos, line, report.ErrUnrecognizedLine, "%q", trimmed)
			}
			l.log.Debug("dropping unrecognized line", "pos", pos.String(), "text", trimmed)
		}
	}
}

func (l *Lexer) block(first string, pos model.Pos) (model.Token, error) {
	trimmed := strings.TrimSpace(first)
	if closer := strings.Index(trimmed[len(blockCommentStart):], blockCommentEnd); closer >= 0 {
		if rest := strings.TrimSpace(trimmed[len(blockCommentStart)+closer+len(blockCommentEnd):]); rest != "" {
			if l.strict {
				return model.Token{}, report.Errorf(pos, first, report.ErrUnrecognizedLine, "text after block comment: %q", rest)
			}
			l.log.Debug("dropping text after block comment", "pos", pos.String(), "text", rest)
		}
		if m := groupRe.FindStringSubmatch(first); m != nil && m[2] != "" {
			return model.Token{
				Kind:  model.GroupTag,
				Group: model.Group{Op: model.GroupOp(strings.ToLower(m[1])), Name: m[2], Output: m[3]},
				Pos:   pos,
				Line:  first,
			}, nil
		}
		inner := strings.TrimSpace(trimmed[len(blockCommentStart) : len(blockCommentStart)+closer])
		return model.Token{Kind: commentKind(inner), Text: inner, Pos: pos, Line: first}, nil
	}

	lines := []string{first}
	for {
		line, ok := l.readLine()
		if !ok {
			if err := l.sc.Err(); err != nil {
				return model.Token{}, err
			}
			return model.Token{}, report.Errorf(pos, first, report.ErrUnterminatedBlock, "block comment opened here never closes")
		}
		lines = append(lines, line)
		if strings.HasSuffix(strings.TrimSpace(line), blockCommentEnd) {
			break
		}
	}

	lines[0] = strings.TrimPrefix(strings.TrimLeft(lines[0], " \t"), blockCommentStart)
	last := strings.TrimRight(lines[len(lines)-1], " \t\r")
	lines[len(lines)-1] = strings.TrimSuffix(last, blockCommentEnd)
	text := sqltext.Dedent(lines)
	return model.Token{Kind: commentKind(text), Text: text, Pos: pos, Line: first}, nil
}

func commentKind(text string) model.TokenKind {
	if metaRe.MatchString(text) {
		return model.MetaComment
	}
	return model.BlockComment
}

func (l *Lexer) statement(first string, pos model.Pos) (model.Token, error) {
	lines := []string{first}
	for !sqltext.EndsStatement(lines[len(lines)-1]) {
		line, ok := l.readLine()
		if !ok {
			if err := l.sc.Err(); err != nil {
				return model.Token{}, err
			}
			return model.Token{}, report.Errorf(pos, first, report.ErrUnterminatedBlock, "statement is missing its terminating %q", ";")
		}
		lines = append(lines, line)
	}
	return model.Token{Kind: model.SQL, Text: sqltext.Dedent(lines), Pos: pos, Line: first}, nil
}

func isStarter(trimmed string) bool {
	word := strings.Fields(trimmed)[0]
	word = strings.ToUpper(strings.TrimRight(word, ";("))
	_, ok := Starters[word]
	return ok
}
