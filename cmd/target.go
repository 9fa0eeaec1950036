package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Benny93/bgv-go/internal/bgv"
	"github.com/Benny93/bgv-go/internal/config"
	"github.com/Benny93/bgv-go/internal/graph"
)

// target is a FILE[:GRAPH[:NODE]] selector. Missing parts are -1.
type target struct {
	file  string
	graph int
	node  int
}

// parseTarget splits numeric suffixes off s. A colon followed by anything
// else stays part of the file name.
func parseTarget(s string) (target, error) {
	t := target{file: s, graph: -1, node: -1}

	var nums []int
	for len(nums) < 2 {
		i := strings.LastIndexByte(t.file, ':')
		if i < 0 {
			break
		}
		n, err := strconv.ParseInt(t.file[i+1:], 10, 32)
		if errors.Is(err, strconv.ErrRange) && n > 0 {
			return t, fmt.Errorf("index %s in %q is out of range", t.file[i+1:], s)
		}
		if err != nil || n < 0 {
			break
		}
		nums = append(nums, int(n))
		t.file = t.file[:i]
	}
	switch len(nums) {
	case 1:
		t.graph = nums[0]
	case 2:
		t.graph, t.node = nums[1], nums[0]
	}
	if t.file == "" {
		return t, fmt.Errorf("missing file in %q", s)
	}
	return t, nil
}

func openParser(path string, cfg config.Config) (*bgv.Parser, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	p := bgv.NewParser(f, cfg.ParserOptions()...)
	if _, err := p.ReadFileHeader(cfg.VersionCheck); err != nil {
		f.Close()
		return nil, nil, err
	}
	return p, f, nil
}

func readDocumentProps(path string, cfg config.Config) (graph.Props, error) {
	p, f, err := openParser(path, cfg)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return p.ReadDocumentProps()
}

// loadGraph reads the graph at position want. Earlier graphs are skipped,
// but the stream is still decoded from the start since pool entries are
// shared across graphs.
func loadGraph(path string, want int, cfg config.Config) (string, *graph.Graph, error) {
	p, f, err := openParser(path, cfg)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	if err := p.SkipDocumentProps(); err != nil {
		return "", nil, err
	}
	for seen := 0; ; seen++ {
		i, _, ok, err := p.ReadGraphPreheader()
		if err != nil {
			return "", nil, err
		}
		if !ok {
			return "", nil, fmt.Errorf("%s has %d graphs, no graph %d", path, seen, want)
		}
		if i < want {
			if err := p.SkipGraphHeader(); err != nil {
				return "", nil, err
			}
			if _, err := p.SkipGraph(); err != nil {
				return "", nil, err
			}
			continue
		}

		header, err := p.ReadGraphHeader()
		if err != nil {
			return "", nil, err
		}
		g, err := p.ReadGraph()
		if err != nil {
			return "", nil, err
		}
		return bgv.GraphName(header), g, nil
	}
}
