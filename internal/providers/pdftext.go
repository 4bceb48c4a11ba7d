package providers

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFTextExtractor downloads a PDF attachment, pulls its page text with
// pdfcpu and hands the text to the wrapped Extractor.
type PDFTextExtractor struct {
	inner      Extractor
	httpClient *http.Client
}

// NewPDFTextExtractor wraps inner so it receives document text instead of a URL.
func NewPDFTextExtractor(inner Extractor, httpClient *http.Client) *PDFTextExtractor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &PDFTextExtractor{inner: inner, httpClient: httpClient}
}

// Name returns the wrapped extractor's name with a text-mode suffix.
func (p *PDFTextExtractor) Name() string {
	return p.inner.Name() + "+pdftext"
}

// Close closes the wrapped extractor when it holds resources.
func (p *PDFTextExtractor) Close() error {
	if c, ok := p.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Extract fetches the document, converts it to text, and delegates.
func (p *PDFTextExtractor) Extract(ctx context.Context, doc DocumentRef) (*ExtractionResult, error) {
	if doc.Text != "" {
		return p.inner.Extract(ctx, doc)
	}

	data, mimeType, err := fetchDocument(ctx, p.httpClient, doc.URL)
	if err != nil {
		return nil, err
	}
	if mimeType != "application/pdf" && !isPDF(data) {
		return nil, fmt.Errorf("text mode requires a PDF attachment, got %s", mimeType)
	}

	text, err := PDFText(data)
	if err != nil {
		return nil, err
	}

	return p.inner.Extract(ctx, DocumentRef{
		URL:      doc.URL,
		Text:     text,
		MIMEType: "text/plain",
	})
}

// PDFText returns the text of every page of a PDF, pages separated by a
// blank line.
func PDFText(data []byte) (string, error) {
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return "", fmt.Errorf("pdfcpu read: %w", err)
	}

	var pages []string
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
		if err != nil || r == nil {
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			continue
		}
		if text := contentStreamText(content); text != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return "", fmt.Errorf("no text content found in PDF")
	}
	return strings.Join(pages, "\n\n"), nil
}

type pdfTokenKind int

const (
	pdfOperator pdfTokenKind = iota
	pdfNumber
	pdfString
	pdfArray
	pdfOther
)

type pdfToken struct {
	kind  pdfTokenKind
	text  string  // operator name or decoded string
	num   float64 // numeric operand
	items []pdfToken
}

// contentStreamText collects shown strings from a page content stream.
// Operators that move to a new line start a new output line; small
// horizontal moves become a space.
func contentStreamText(data []byte) string {
	var (
		lines    []string
		cur      strings.Builder
		operands []pdfToken
		lastTmY  float64
		haveTm   bool
	)

	flush := func() {
		if s := strings.Join(strings.Fields(cur.String()), " "); s != "" {
			lines = append(lines, s)
		}
		cur.Reset()
	}
	number := func(i int) (float64, bool) {
		if i < 0 || i >= len(operands) || operands[i].kind != pdfNumber {
			return 0, false
		}
		return operands[i].num, true
	}
	show := func(tok pdfToken) {
		switch tok.kind {
		case pdfString:
			cur.WriteString(tok.text)
		case pdfArray:
			for _, item := range tok.items {
				switch item.kind {
				case pdfString:
					cur.WriteString(item.text)
				case pdfNumber:
					if item.num <= -250 {
						cur.WriteByte(' ')
					}
				}
			}
		}
	}
	last := func() pdfToken {
		if len(operands) == 0 {
			return pdfToken{kind: pdfOther}
		}
		return operands[len(operands)-1]
	}

	lx := &pdfLexer{data: data}
	for {
		tok, ok := lx.next()
		if !ok {
			break
		}
		if tok.kind != pdfOperator {
			operands = append(operands, tok)
			continue
		}

		switch tok.text {
		case "BT", "T*":
			flush()
		case "Td", "TD":
			tx, _ := number(len(operands) - 2)
			ty, _ := number(len(operands) - 1)
			switch {
			case ty < 0:
				flush()
			case tx != 0 || ty != 0:
				cur.WriteByte(' ')
			}
		case "Tm":
			y, _ := number(len(operands) - 1)
			if haveTm && y == lastTmY {
				cur.WriteByte(' ')
			} else {
				flush()
			}
			lastTmY, haveTm = y, true
		case "Tj", "TJ":
			show(last())
		case "'", "\"":
			flush()
			show(last())
		case "ID":
			lx.skipInlineImage()
		}
		operands = operands[:0]
	}
	flush()

	return strings.Join(lines, "\n")
}

// pdfLexer splits a content stream into operands and operators.
type pdfLexer struct {
	data []byte
	pos  int
}

func isPDFWhitespace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isPDFDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (l *pdfLexer) skipSpace() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch {
		case isPDFWhitespace(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *pdfLexer) next() (pdfToken, bool) {
	l.skipSpace()
	if l.pos >= len(l.data) {
		return pdfToken{}, false
	}

	c := l.data[l.pos]
	switch c {
	case '(':
		return pdfToken{kind: pdfString, text: unescapePDFString(l.literal())}, true
	case '<':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
			l.pos += 2
			return pdfToken{kind: pdfOther}, true
		}
		return pdfToken{kind: pdfString, text: l.hexString()}, true
	case '>':
		l.pos++
		if l.pos < len(l.data) && l.data[l.pos] == '>' {
			l.pos++
		}
		return pdfToken{kind: pdfOther}, true
	case '[':
		l.pos++
		arr := pdfToken{kind: pdfArray}
		for {
			l.skipSpace()
			if l.pos >= len(l.data) {
				return arr, true
			}
			if l.data[l.pos] == ']' {
				l.pos++
				return arr, true
			}
			item, ok := l.next()
			if !ok {
				return arr, true
			}
			arr.items = append(arr.items, item)
		}
	case ']', ')', '{', '}':
		l.pos++
		return pdfToken{kind: pdfOther}, true
	case '/':
		l.pos++
		l.regular()
		return pdfToken{kind: pdfOther}, true
	}

	word := l.regular()
	if n, err := strconv.ParseFloat(word, 64); err == nil {
		return pdfToken{kind: pdfNumber, num: n}, true
	}
	return pdfToken{kind: pdfOperator, text: word}, true
}

// regular consumes a run of regular characters.
func (l *pdfLexer) regular() string {
	start := l.pos
	for l.pos < len(l.data) && !isPDFWhitespace(l.data[l.pos]) && !isPDFDelimiter(l.data[l.pos]) {
		l.pos++
	}
	if l.pos == start {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

// literal consumes a balanced (string) and returns its raw body.
func (l *pdfLexer) literal() []byte {
	l.pos++
	start, depth := l.pos, 1
	for l.pos < len(l.data) {
		switch l.data[l.pos] {
		case '\\':
			l.pos++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				raw := l.data[start:l.pos]
				l.pos++
				return raw
			}
		}
		l.pos++
	}
	return l.data[start:]
}

func (l *pdfLexer) hexString() string {
	l.pos++
	var digits []byte
	for l.pos < len(l.data) && l.data[l.pos] != '>' {
		if c := l.data[l.pos]; !isPDFWhitespace(c) {
			digits = append(digits, c)
		}
		l.pos++
	}
	l.pos++
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, hex.DecodedLen(len(digits)))
	n, _ := hex.Decode(out, digits)
	return string(out[:n])
}

// skipInlineImage moves past inline image data up to its EI operator.
func (l *pdfLexer) skipInlineImage() {
	for l.pos+2 <= len(l.data) {
		if l.data[l.pos] == 'E' && l.data[l.pos+1] == 'I' &&
			isPDFWhitespace(l.data[l.pos-1]) &&
			(l.pos+2 == len(l.data) || isPDFWhitespace(l.data[l.pos+2])) {
			l.pos += 2
			return
		}
		l.pos++
	}
	l.pos = len(l.data)
}

func unescapePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'b', 'f':
		case '0', '1', '2', '3', '4', '5', '6', '7':
			val := 0
			j := i
			for ; j < len(raw) && j < i+3 && raw[j] >= '0' && raw[j] <= '7'; j++ {
				val = val*8 + int(raw[j]-'0')
			}
			sb.WriteByte(byte(val))
			i = j - 1
		default:
			sb.WriteByte(raw[i])
		}
	}
	return sb.String()
}
