// Package bgv parses BGV compiler-graph dump files.
//
// The parser is a push-pull stream: the caller asks for the next thing in the
// file and either reads it into memory or skips over it. The expected call
// sequence is
//
//	ReadFileHeader
//	ReadDocumentProps | SkipDocumentProps
//	loop:
//	    ReadGraphPreheader          (stop when ok is false)
//	    ReadGraphHeader | SkipGraphHeader
//	    ReadGraph | SkipGraph
//
// Reading and skipping share a single grammar implementation, so both always
// consume the same bytes. A Parser owns its pool and group stack for the
// lifetime of one file and is not safe for concurrent use.
package bgv

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Benny93/bgv-go/internal/binary"
	"github.com/Benny93/bgv-go/internal/graph"
	"github.com/Benny93/bgv-go/internal/pool"
)

// PoolObserver is told about every pool insertion.
type PoolObserver func(id uint16, obj pool.Object)

// Option configures a Parser.
type Option func(*Parser)

// WithMaxDepth bounds nested subgraphs and nested pool entries.
func WithMaxDepth(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxDepth = n
		}
	}
}

// WithKeepBlocks makes ReadGraph materialize the legacy block table instead
// of discarding it.
func WithKeepBlocks() Option {
	return func(p *Parser) { p.keepBlocks = true }
}

// WithPoolObserver registers fn to be called on every pool insertion.
func WithPoolObserver(fn PoolObserver) Option {
	return func(p *Parser) { p.observer = fn }
}

// GroupFrame is one level of the group nesting (compilation unit, inlining
// context) active when a graph is emitted.
type GroupFrame struct {
	Name      pool.Object
	ShortName pool.Object
	Method    pool.Object
	BCI       int32
	Props     graph.Props
}

// GraphHeader is everything before a graph's body.
type GraphHeader struct {
	// Groups is a snapshot of the group stack, outermost first.
	Groups []GroupFrame

	// Format is the name format string; nil when the stream omits it.
	Format *string
	Args   []graph.Value
	Props  graph.Props
}

type state uint8

const (
	stateStart state = iota
	stateHeader
	stateFile
	stateGraphID
	stateGraphBody
)

// Parser decodes one BGV stream.
type Parser struct {
	d *binary.Decoder

	pool   map[uint16]pool.Object
	groups []GroupFrame
	index  int

	version    Version
	graphProps graph.Props
	state      state

	depth      int
	maxDepth   int
	keepBlocks bool
	observer   PoolObserver
}

// NewParser creates a parser reading from r.
func NewParser(r io.Reader, opts ...Option) *Parser {
	p := &Parser{
		d:        binary.NewDecoder(r),
		pool:     make(map[uint16]pool.Object),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Offset returns the number of bytes consumed so far.
func (p *Parser) Offset() int64 {
	return p.d.Offset()
}

// Version returns the version read by ReadFileHeader.
func (p *Parser) Version() Version {
	return p.version
}

func (p *Parser) expect(want ...state) error {
	for _, s := range want {
		if p.state == s {
			return nil
		}
	}
	return ErrCallOrder
}

// ReadFileHeader checks the magic and returns the format version. With
// versionCheck false any version is accepted and returned as-is.
func (p *Parser) ReadFileHeader(versionCheck bool) (Version, error) {
	if err := p.expect(stateStart); err != nil {
		return Version{}, err
	}
	magic, err := p.d.ReadBytes(int64(len(Magic)))
	if err != nil {
		if errors.Is(err, binary.ErrTruncated) {
			return Version{}, p.formatErr("does not appear to be a BGV file - missing header")
		}
		return Version{}, err
	}
	if string(magic) != Magic {
		return Version{}, p.formatErr("does not appear to be a BGV file - missing header")
	}

	major, err := p.d.ReadInt8()
	if err != nil {
		return Version{}, err
	}
	minor, err := p.d.ReadInt8()
	if err != nil {
		return Version{}, err
	}
	v := Version{Major: major, Minor: minor}
	if versionCheck && !v.Supported() {
		return v, &UnsupportedVersionError{Version: v}
	}
	p.version = v
	p.state = stateHeader
	return v, nil
}

// ReadDocumentProps returns the document properties, or nil if the file has
// none. Only version 7 and later can carry them.
func (p *Parser) ReadDocumentProps() (graph.Props, error) {
	return p.documentProps(materialize)
}

// SkipDocumentProps moves past the document properties, if any.
func (p *Parser) SkipDocumentProps() error {
	_, err := p.documentProps(skip)
	return err
}

func (p *Parser) documentProps(m mode) (graph.Props, error) {
	if err := p.expect(stateHeader); err != nil {
		return nil, err
	}
	p.state = stateFile
	if p.version.Major < 7 || p.d.EOF() {
		return nil, nil
	}
	token, err := p.d.PeekInt8()
	if err != nil {
		return nil, err
	}
	if token != BeginDocument {
		return nil, nil
	}
	if err := p.d.SkipInt8(1); err != nil {
		return nil, err
	}
	return p.props(m)
}

// ReadGraphPreheader moves to the next graph, consuming any group frames in
// the way. It returns the graph's 0-based sequence index and its declared id,
// or ok=false at end of file.
func (p *Parser) ReadGraphPreheader() (index int, id int32, ok bool, err error) {
	if err := p.expect(stateHeader, stateFile); err != nil {
		return 0, 0, false, err
	}
	p.state = stateFile
	found, err := p.readGroups()
	if err != nil || !found {
		return 0, 0, false, err
	}
	id, err = p.d.ReadInt32()
	if err != nil {
		return 0, 0, false, err
	}
	index = p.index
	p.index++
	p.state = stateGraphID
	return index, id, true, nil
}

// readGroups consumes group tokens up to and including the next BeginGraph.
func (p *Parser) readGroups() (bool, error) {
	for !p.d.EOF() {
		token, err := p.d.ReadInt8()
		if err != nil {
			return false, err
		}
		switch token {
		case BeginGroup:
			if err := p.readBeginGroup(); err != nil {
				return false, err
			}
		case BeginGraph:
			return true, nil
		case CloseGroup:
			// Popping an empty stack is a producer bug, not a format error.
			if n := len(p.groups); n > 0 {
				p.groups = p.groups[:n-1]
			}
		default:
			return false, p.formatErr("unknown token 0x%x beginning BGV object", uint8(token))
		}
	}
	return false, nil
}

func (p *Parser) readBeginGroup() error {
	name, err := p.poolObject(materialize)
	if err != nil {
		return err
	}
	shortName, err := p.poolObject(materialize)
	if err != nil {
		return err
	}
	method, err := p.poolObject(materialize)
	if err != nil {
		return err
	}
	bci, err := p.d.ReadInt32()
	if err != nil {
		return err
	}
	props, err := p.props(materialize)
	if err != nil {
		return err
	}
	p.groups = append(p.groups, GroupFrame{
		Name:      name,
		ShortName: shortName,
		Method:    method,
		BCI:       bci,
		Props:     props,
	})
	return nil
}

// ReadGraphHeader reads the header of the graph whose preheader was just read.
func (p *Parser) ReadGraphHeader() (*GraphHeader, error) {
	if err := p.expect(stateGraphID); err != nil {
		return nil, err
	}
	format, present, err := p.string(materialize)
	if err != nil {
		return nil, err
	}
	args, err := p.args(materialize)
	if err != nil {
		return nil, err
	}
	props, err := p.props(materialize)
	if err != nil {
		return nil, err
	}

	header := &GraphHeader{
		Groups: append([]GroupFrame(nil), p.groups...),
		Args:   args,
		Props:  props,
	}
	if present {
		header.Format = &format
	}
	p.graphProps = props
	p.state = stateGraphBody
	return header, nil
}

// SkipGraphHeader moves past the header. The graph properties are still
// decoded because ReadGraph attaches them to the graph.
func (p *Parser) SkipGraphHeader() error {
	if err := p.expect(stateGraphID); err != nil {
		return err
	}
	if _, _, err := p.string(skip); err != nil {
		return err
	}
	if _, err := p.args(skip); err != nil {
		return err
	}
	props, err := p.props(materialize)
	if err != nil {
		return err
	}
	p.graphProps = props
	p.state = stateGraphBody
	return nil
}

// ReadGraph decodes the body of the current graph.
func (p *Parser) ReadGraph() (*graph.Graph, error) {
	if err := p.expect(stateGraphBody); err != nil {
		return nil, err
	}
	g, _, err := p.graphBody(materialize, p.graphProps)
	p.graphProps = nil
	p.state = stateFile
	return g, err
}

// SkipGraph moves past the body of the current graph and returns how many
// nodes it declared.
func (p *Parser) SkipGraph() (int, error) {
	if err := p.expect(stateGraphBody); err != nil {
		return 0, err
	}
	_, n, err := p.graphBody(skip, nil)
	p.graphProps = nil
	p.state = stateFile
	return n, err
}

// GraphName renders a flat name for a graph: the short names of the
// enclosing groups followed by the format string with each %s replaced by
// the next argument, all joined with "/".
func GraphName(h *GraphHeader) string {
	components := make([]string, 0, len(h.Groups)+1)
	for _, g := range h.Groups {
		components = append(components, pool.NameOf(g.ShortName))
	}

	name := ""
	if h.Format != nil {
		var b strings.Builder
		rest := *h.Format
		arg := 0
		for {
			i := strings.Index(rest, "%s")
			if i < 0 {
				b.WriteString(rest)
				break
			}
			b.WriteString(rest[:i])
			if arg < len(h.Args) {
				b.WriteString(h.Args[arg].Text())
			}
			arg++
			rest = rest[i+2:]
		}
		name = b.String()
	}
	return strings.Join(append(components, name), "/")
}

// String renders the header for debugging.
func (h *GraphHeader) String() string {
	return fmt.Sprintf("GraphHeader{%q, %d args, %d props}", GraphName(h), len(h.Args), len(h.Props))
}
