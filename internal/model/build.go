package model

import (
	"fmt"
	"math/bits"
	"strings"

	"gridweave.dev/internal/engine"
	"gridweave.dev/internal/field"
	"gridweave.dev/internal/grid"
	"gridweave.dev/internal/symmetry"
	"gridweave.dev/internal/wfc"
)

// Compile builds the grid and node tree of m. Every label, pattern and asset
// is checked here so that a compiled model never fails while stepping.
func Compile(m *Model) (*engine.Interpreter, error) {
	mx, my, mz, err := m.Dims()
	if err != nil {
		return nil, err
	}
	unions := make(map[byte]string, len(m.Unions))
	for k, v := range m.Unions {
		if len(k) != 1 {
			return nil, fmt.Errorf("union label %q must be one character", k)
		}
		unions[k[0]] = v
	}
	g, err := grid.New(mx, my, mz, m.Values, unions)
	if err != nil {
		return nil, err
	}
	b := &builder{symmetry: m.Symmetry}
	root, _, err := b.node(&m.Root, g, "root")
	if err != nil {
		return nil, err
	}
	if _, ok := root.(*engine.Branch); !ok {
		root = engine.NewMarkov(root)
	}
	return &engine.Interpreter{Root: root, Grid: g, Origin: m.Origin}, nil
}

type builder struct {
	symmetry string
}

// node compiles d against g. It also returns the grid in effect once the
// node has run, which differs from g for nodes that build their own grid.
func (b *builder) node(d *Node, g *grid.Grid, path string) (engine.Node, *grid.Grid, error) {
	path = path + "/" + d.Kind
	wrap := func(err error) error { return fmt.Errorf("%s: %w", path, err) }

	switch d.Kind {
	case "sequence", "markov":
		children, after, err := b.children(d, g, path)
		if err != nil {
			return nil, nil, err
		}
		if d.Kind == "markov" {
			return engine.NewMarkov(children...), after, nil
		}
		return engine.NewSequence(children...), after, nil

	case "one", "all", "parallel":
		cfg, err := b.ruleConfig(d, g)
		if err != nil {
			return nil, nil, wrap(err)
		}
		switch d.Kind {
		case "one":
			return engine.NewOne(cfg), g, nil
		case "all":
			return engine.NewAll(cfg), g, nil
		}
		if cfg.Fields != nil || cfg.Observations != nil {
			return nil, nil, wrap(fmt.Errorf("parallel nodes take no fields or observations"))
		}
		return engine.NewParallel(cfg), g, nil

	case "path":
		n, err := b.path(d, g)
		if err != nil {
			return nil, nil, wrap(err)
		}
		return n, g, nil

	case "convolution":
		n, err := b.convolution(d, g)
		if err != nil {
			return nil, nil, wrap(err)
		}
		return n, g, nil

	case "convchain":
		n, err := b.convchain(d, g)
		if err != nil {
			return nil, nil, wrap(err)
		}
		return n, g, nil

	case "map":
		return b.mapNode(d, g, path)

	case "wfc_overlap":
		return b.overlap(d, g, path)

	case "wfc_tile":
		return b.tile(d, g, path)
	}
	return nil, nil, fmt.Errorf("%s: %w %q", path, ErrUnknownNode, d.Kind)
}

func (b *builder) children(d *Node, g *grid.Grid, path string) ([]engine.Node, *grid.Grid, error) {
	out := make([]engine.Node, 0, len(d.Children))
	after := g
	for i := range d.Children {
		n, ag, err := b.node(&d.Children[i], after, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, nil, err
		}
		out = append(out, n)
		after = ag
	}
	return out, after, nil
}

// subgroup resolves the first non-empty of the given symmetry names, then
// the model default.
func (b *builder) subgroup(g *grid.Grid, names ...string) ([]bool, error) {
	name := b.symmetry
	for _, n := range names {
		if n != "" {
			name = n
			break
		}
	}
	return symmetry.Subgroup(name, g.MZ == 1)
}

func probability(p *float64) float64 {
	if p == nil {
		return 1
	}
	return *p
}

// rules compiles rule definitions from gin's alphabet to gout's and expands
// each over its symmetry subgroup.
func (b *builder) rules(d *Node, gin, gout *grid.Grid) ([]*grid.Rule, error) {
	var out []*grid.Rule
	for _, rd := range d.Rules {
		r, err := grid.ParseRule(gin, gout, rd.In, rd.Out, probability(rd.P))
		if err != nil {
			return nil, err
		}
		sg, err := b.subgroup(gin, rd.Symmetry, d.Symmetry)
		if err != nil {
			return nil, err
		}
		out = append(out, r.Symmetries(sg, gin.MZ == 1)...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no rules")
	}
	return out, nil
}

func (b *builder) ruleConfig(d *Node, g *grid.Grid) (engine.RuleConfig, error) {
	rules, err := b.rules(d, g, g)
	if err != nil {
		return engine.RuleConfig{}, err
	}
	cfg := engine.RuleConfig{
		Rules:            rules,
		Steps:            d.Steps,
		Temperature:      d.Temperature,
		Search:           d.Search,
		Limit:            d.Limit,
		DepthCoefficient: d.DepthCoefficient,
	}
	if cfg.DepthCoefficient == 0 {
		cfg.DepthCoefficient = 0.5
	}

	if len(d.Fields) > 0 {
		cfg.Fields = make([]*field.Field, g.C)
		for _, fd := range d.Fields {
			c, err := g.Value(label(fd.For))
			if err != nil {
				return cfg, fmt.Errorf("field: %w", err)
			}
			f := &field.Field{Recompute: fd.Recompute, Essential: fd.Essential}
			zero := fd.From
			if fd.To != "" {
				zero, f.Inversed = fd.To, true
			}
			if f.Zero, err = g.Wave(zero); err != nil {
				return cfg, fmt.Errorf("field: %w", err)
			}
			if f.Substrate, err = g.Wave(fd.On); err != nil {
				return cfg, fmt.Errorf("field: %w", err)
			}
			cfg.Fields[c] = f
		}
	}

	if len(d.Observe) > 0 {
		if len(d.Fields) > 0 {
			return cfg, fmt.Errorf("fields and observations cannot be combined")
		}
		cfg.Observations = make([]*field.Observation, g.C)
		for _, od := range d.Observe {
			c, err := g.Value(label(od.Value))
			if err != nil {
				return cfg, fmt.Errorf("observe: %w", err)
			}
			from := c
			if od.From != "" {
				if from, err = g.Value(label(od.From)); err != nil {
					return cfg, fmt.Errorf("observe: %w", err)
				}
			}
			to, err := g.Wave(od.To)
			if err != nil {
				return cfg, fmt.Errorf("observe: %w", err)
			}
			cfg.Observations[c] = &field.Observation{From: from, To: to}
		}
		if d.Search && g.MZ != 1 {
			return cfg, fmt.Errorf("search needs a 2-D grid")
		}
	} else if d.Search {
		return cfg, fmt.Errorf("search needs observations")
	}
	return cfg, nil
}

// label returns the single character of s, or 0 which no alphabet holds.
func label(s string) byte {
	if len(s) != 1 {
		return 0
	}
	return s[0]
}

func (b *builder) path(d *Node, g *grid.Grid) (*engine.Path, error) {
	p := &engine.Path{Inertia: d.Inertia, Longest: d.Longest, Edges: d.Edges, Vertices: d.Vertices}
	var err error
	if p.Start, err = g.Wave(d.From); err != nil {
		return nil, err
	}
	if p.Finish, err = g.Wave(d.To); err != nil {
		return nil, err
	}
	if p.Substrate, err = g.Wave(d.On); err != nil {
		return nil, err
	}
	if p.Color, err = g.Value(label(d.Color)); err != nil {
		return nil, err
	}
	return p, nil
}

func (b *builder) convolution(d *Node, g *grid.Grid) (*engine.Convolution, error) {
	rules := make([]engine.ConvolutionRule, 0, len(d.Rules))
	for _, rd := range d.Rules {
		in, err := g.Value(label(rd.In))
		if err != nil {
			return nil, err
		}
		out, err := g.Value(label(rd.Out))
		if err != nil {
			return nil, err
		}
		r := engine.ConvolutionRule{Input: in, Output: out, P: probability(rd.P)}
		if rd.Sum != "" {
			w, err := g.Wave(rd.Values)
			if err != nil {
				return nil, err
			}
			if w == 0 {
				return nil, fmt.Errorf("rule %s -> %s: sum without values", rd.In, rd.Out)
			}
			for ; w != 0; w &= w - 1 {
				r.Values = append(r.Values, byte(bits.TrailingZeros32(w)))
			}
			if r.Sums, err = engine.ParseSums(rd.Sum); err != nil {
				return nil, err
			}
		}
		rules = append(rules, r)
	}
	return engine.NewConvolution(rules, d.Neighborhood, g.MZ > 1, d.Periodic, d.Steps, g.C)
}

func (b *builder) convchain(d *Node, g *grid.Grid) (*engine.ConvChain, error) {
	if g.MZ != 1 {
		return nil, fmt.Errorf("convchain needs a 2-D grid")
	}
	n := &engine.ConvChain{N: d.N, Temperature: d.Temperature, Steps: d.Steps}
	if n.N == 0 {
		n.N = 3
	}
	if n.Temperature == 0 {
		n.Temperature = 1
	}
	var err error
	if n.C0, err = g.Value(label(d.Black)); err != nil {
		return nil, err
	}
	if n.C1, err = g.Value(label(d.White)); err != nil {
		return nil, err
	}
	if n.Substrate, err = g.Value(label(d.On)); err != nil {
		return nil, err
	}
	cells, smx, smy, smz, err := grid.ParsePattern(d.Sample)
	if err != nil {
		return nil, fmt.Errorf("sample: %w", err)
	}
	if smz != 1 {
		return nil, fmt.Errorf("sample must be 2-D")
	}
	sample := make([]bool, len(cells))
	for i, ch := range cells {
		if ch != d.Black[0] && ch != d.White[0] {
			return nil, fmt.Errorf("sample: %w %q", ErrUnknownLabel, ch)
		}
		sample[i] = ch == d.White[0]
	}
	sg, err := b.subgroup(g, d.Symmetry)
	if err != nil {
		return nil, err
	}
	if n.Weights, err = engine.LearnWeights(sample, smx, smy, n.N, sg); err != nil {
		return nil, err
	}
	return n, nil
}

// childGrid makes the grid a map or wfc node writes into: values gives its
// alphabet, empty to keep g's. It shares g's change log.
func childGrid(g *grid.Grid, values string, mx, my, mz int) (*grid.Grid, error) {
	if values == "" {
		return g.Resized(mx, my, mz), nil
	}
	ng, err := grid.New(mx, my, mz, values, nil)
	if err != nil {
		return nil, err
	}
	ng.Log = g.Log
	return ng, nil
}

func (b *builder) mapNode(d *Node, g *grid.Grid, path string) (engine.Node, *grid.Grid, error) {
	wrap := func(err error) error { return fmt.Errorf("%s: %w", path, err) }
	parts := strings.Fields(d.Scale)
	var scale [3]engine.Scale
	switch len(parts) {
	case 1:
		s, err := engine.ParseScale(parts[0])
		if err != nil {
			return nil, nil, wrap(err)
		}
		scale = [3]engine.Scale{s, s, s}
		if g.MZ == 1 {
			scale[2] = engine.Scale{Num: 1, Den: 1}
		}
	case 3:
		for i, p := range parts {
			s, err := engine.ParseScale(p)
			if err != nil {
				return nil, nil, wrap(err)
			}
			scale[i] = s
		}
	default:
		return nil, nil, wrap(fmt.Errorf("scale %q needs 1 or 3 factors", d.Scale))
	}
	nx, ny, nz := scale[0].Apply(g.MX), scale[1].Apply(g.MY), scale[2].Apply(g.MZ)
	if nx < 1 || ny < 1 || nz < 1 {
		return nil, nil, wrap(fmt.Errorf("scale %q shrinks the grid to nothing", d.Scale))
	}
	ng, err := childGrid(g, d.Values, nx, ny, nz)
	if err != nil {
		return nil, nil, wrap(err)
	}
	rules, err := b.rules(d, g, ng)
	if err != nil {
		return nil, nil, wrap(err)
	}
	children, after, err := b.children(d, ng, path)
	if err != nil {
		return nil, nil, err
	}
	return engine.NewMap(ng, rules, scale, children...), after, nil
}

func (b *builder) wfcOptions(d *Node) engine.WFCOptions {
	tries := d.Tries
	if tries == 0 {
		tries = 1000
	}
	return engine.WFCOptions{Periodic: d.Periodic, Shannon: d.Shannon, Tries: tries}
}

// inputValues lists the values of g matched by the label set in.
func inputValues(g *grid.Grid, in string) ([]byte, error) {
	w, err := g.Wave(in)
	if err != nil {
		return nil, err
	}
	var out []byte
	for ; w != 0; w &= w - 1 {
		out = append(out, byte(bits.TrailingZeros32(w)))
	}
	return out, nil
}

func (b *builder) overlap(d *Node, g *grid.Grid, path string) (engine.Node, *grid.Grid, error) {
	wrap := func(err error) error { return fmt.Errorf("%s: %w", path, err) }
	if g.MZ != 1 {
		return nil, nil, wrap(fmt.Errorf("overlap model needs a 2-D grid"))
	}
	ng, err := childGrid(g, d.Values, g.MX, g.MY, 1)
	if err != nil {
		return nil, nil, wrap(err)
	}
	cells, smx, smy, smz, err := grid.ParsePattern(d.Sample)
	if err != nil {
		return nil, nil, wrap(fmt.Errorf("sample: %w", err))
	}
	if smz != 1 {
		return nil, nil, wrap(fmt.Errorf("sample must be 2-D"))
	}
	sample := make([]byte, len(cells))
	for i, ch := range cells {
		if sample[i], err = ng.Value(ch); err != nil {
			return nil, nil, wrap(fmt.Errorf("sample: %w", err))
		}
	}
	n := d.N
	if n == 0 {
		n = 3
	}
	periodicInput := d.PeriodicInput == nil || *d.PeriodicInput
	sg, err := b.subgroup(ng, d.Symmetry)
	if err != nil {
		return nil, nil, wrap(err)
	}
	o, err := wfc.NewOverlap(sample, smx, smy, n, ng.C, periodicInput, sg)
	if err != nil {
		return nil, nil, wrap(err)
	}

	allowed := make(map[byte]uint32)
	for _, rd := range d.Rules {
		ins, err := inputValues(g, rd.In)
		if err != nil {
			return nil, nil, wrap(err)
		}
		out, err := ng.Wave(strings.ReplaceAll(rd.Out, "|", ""))
		if err != nil {
			return nil, nil, wrap(err)
		}
		for _, v := range ins {
			allowed[v] |= out
		}
	}
	children, after, err := b.children(d, ng, path)
	if err != nil {
		return nil, nil, err
	}
	return engine.NewOverlapWFC(o, o.Map(g.C, allowed), ng, b.wfcOptions(d), children...), after, nil
}

func (b *builder) tile(d *Node, g *grid.Grid, path string) (engine.Node, *grid.Grid, error) {
	wrap := func(err error) error { return fmt.Errorf("%s: %w", path, err) }
	alphabet, err := grid.New(1, 1, 1, d.Values, nil)
	if err != nil {
		return nil, nil, wrap(err)
	}
	ts := wfc.TileSet{FullSymmetry: d.FullSymmetry}
	for _, td := range d.Tiles {
		cells, tx, ty, tz, err := grid.ParsePattern(td.Layers)
		if err != nil {
			return nil, nil, wrap(fmt.Errorf("tile %q: %w", td.Name, err))
		}
		if tx != ty {
			return nil, nil, wrap(fmt.Errorf("tile %q is not square", td.Name))
		}
		if ts.S == 0 {
			ts.S, ts.SZ = tx, tz
		} else if tx != ts.S || tz != ts.SZ {
			return nil, nil, wrap(fmt.Errorf("tile %q is %dx%dx%d, others are %dx%dx%d", td.Name, tx, ty, tz, ts.S, ts.S, ts.SZ))
		}
		data := make([]byte, len(cells))
		for i, ch := range cells {
			if data[i], err = alphabet.Value(ch); err != nil {
				return nil, nil, wrap(fmt.Errorf("tile %q: %w", td.Name, err))
			}
		}
		ts.Tiles = append(ts.Tiles, wfc.Tile{Name: td.Name, Weight: td.Weight, Data: data})
	}
	for _, nd := range d.Neighbors {
		ts.Neighbors = append(ts.Neighbors, wfc.Neighbor{Left: nd.Left, Right: nd.Right, Top: nd.Top, Bottom: nd.Bottom})
	}
	tl, err := wfc.NewTiles(ts, alphabet.C)
	if err != nil {
		return nil, nil, wrap(err)
	}
	if d.Overlap >= ts.S || d.OverlapZ >= ts.SZ {
		return nil, nil, wrap(fmt.Errorf("overlap must be smaller than the tile"))
	}

	omx, omy, omz := tl.OutputSize(g.MX, g.MY, g.MZ, d.Overlap, d.OverlapZ)
	ng, err := childGrid(g, d.Values, omx, omy, omz)
	if err != nil {
		return nil, nil, wrap(err)
	}

	allowed := make(map[byte][]string)
	for _, rd := range d.Rules {
		ins, err := inputValues(g, rd.In)
		if err != nil {
			return nil, nil, wrap(err)
		}
		names := strings.Split(rd.Out, "|")
		for _, v := range ins {
			allowed[v] = append(allowed[v], names...)
		}
	}
	mapping, err := tl.Map(g.C, allowed)
	if err != nil {
		return nil, nil, wrap(err)
	}
	children, after, err := b.children(d, ng, path)
	if err != nil {
		return nil, nil, err
	}
	n := engine.NewTileWFC(tl, mapping, g.MX, g.MY, g.MZ, d.Overlap, d.OverlapZ, ng, b.wfcOptions(d), children...)
	return n, after, nil
}
