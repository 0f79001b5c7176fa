package ogg

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// readerBufferSize is the size of the internal read buffer.
const readerBufferSize = 64 * 1024 // 64KB

// pageCapture is the capture pattern followed by the only supported stream
// structure version.
var pageCapture = []byte(oggMagic + "\x00")

// StreamReader reads the pages of an Ogg stream one at a time.
// It keeps track of the absolute offset of its read cursor so that callers
// can check page alignment in containers that embed the stream after a
// header.
type StreamReader struct {
	r      *bufio.Reader
	offset int64 // Absolute offset of the read cursor
}

// NewStreamReader creates a StreamReader reading from r. base is the absolute
// offset r is positioned at.
func NewStreamReader(r io.Reader, base int64) *StreamReader {
	return &StreamReader{
		r:      bufio.NewReaderSize(r, readerBufferSize),
		offset: base,
	}
}

// Offset returns the absolute offset of the read cursor.
func (sr *StreamReader) Offset() int64 {
	return sr.offset
}

// SeekNextPage skips forward to the next capture pattern. It returns false
// when the stream ends before one is found.
func (sr *StreamReader) SeekNextPage() (bool, error) {
	for {
		peek, err := sr.r.Peek(len(pageCapture))
		if bytes.Equal(peek, pageCapture) {
			return true, nil
		}
		if err != nil {
			if err == io.EOF {
				// Fewer bytes than a capture pattern remain.
				n, _ := sr.r.Discard(len(peek))
				sr.offset += int64(n)
				return false, nil
			}
			return false, err
		}

		// Skip to the next possible start of the pattern.
		skip := 1
		if i := bytes.IndexByte(peek[1:], pageCapture[0]); i >= 0 {
			skip += i
		} else {
			skip = len(peek)
		}
		n, err := sr.r.Discard(skip)
		sr.offset += int64(n)
		if err != nil {
			return false, err
		}
	}
}

// ReadPage parses the page at the read cursor. The cursor must be on a
// capture pattern.
func (sr *StreamReader) ReadPage() (*Page, error) {
	cr := &countingReader{r: sr.r}
	page, err := ParsePage(cr)
	sr.offset += cr.n
	if err != nil {
		return nil, err
	}
	return page, nil
}

// NextPage seeks to and reads the next page.
// Returns io.EOF when no page remains.
func (sr *StreamReader) NextPage() (*Page, error) {
	found, err := sr.SeekNextPage()
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, io.EOF
	}
	return sr.ReadPage()
}

// ReadAllRemaining reads every remaining page of the stream.
func (sr *StreamReader) ReadAllRemaining() ([]*Page, error) {
	var pages []*Page
	for {
		page, err := sr.NextPage()
		if err == io.EOF {
			return pages, nil
		}
		if err != nil {
			return pages, fmt.Errorf("page at offset %d: %w", sr.offset, err)
		}
		pages = append(pages, page)
	}
}

// ReadHeaders reads the identification and comment pages at the start of an
// Ogg Opus stream.
func (sr *StreamReader) ReadHeaders() (head *Page, tags *Page, err error) {
	head, err = sr.NextPage()
	if err != nil {
		return nil, nil, fmt.Errorf("identification page: %w", noEOF(err))
	}
	tags, err = sr.NextPage()
	if err != nil {
		return nil, nil, fmt.Errorf("comment page: %w", noEOF(err))
	}
	return head, tags, nil
}

// noEOF turns a premature io.EOF into ErrUnexpectedEOS.
func noEOF(err error) error {
	if err == io.EOF {
		return ErrUnexpectedEOS
	}
	return err
}

// countingReader counts the bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
