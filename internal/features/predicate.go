package features

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agentic-research/propfeat/api"
	"github.com/agentic-research/propfeat/internal/table"
)

const (
	PredicateDistanceColumn = "PRED_DIST"
	PredicateMarkerColumn   = "PRED_MARKER"
	PassiveVoiceColumn      = "PASSIVE_VOICE"
	predicateMorphPrefix    = "PREDMORPH"
)

// predicateDistance is the signed token distance to the predicate.
type predicateDistance struct{}

func (predicateDistance) Kind() Kind {
	return KindPredicateDistance
}

func (predicateDistance) Extract(v View, out *Block) error {
	out.Declare(PredicateDistanceColumn)
	p := v.Proposition
	if !p.HasPredicate() {
		return nil
	}
	for i := p.Lower; i < p.Upper; i++ {
		out.Set(PredicateDistanceColumn, i, Int(p.Predicate-i))
	}
	return nil
}

// predicateMarker is 0 before the predicate and 1 from the predicate on.
type predicateMarker struct{}

func (predicateMarker) Kind() Kind {
	return KindPredicateMarker
}

func (predicateMarker) Extract(v View, out *Block) error {
	out.Declare(PredicateMarkerColumn)
	p := v.Proposition
	if !p.HasPredicate() {
		return nil
	}
	for i := p.Lower; i < p.Upper; i++ {
		mark := 1
		if p.Predicate > i {
			mark = 0
		}
		out.Set(PredicateMarkerColumn, i, Int(mark))
	}
	return nil
}

// passiveVoice flags propositions whose predicate is the last participle and
// whose last auxiliary precedes it.
type passiveVoice struct {
	posColumn      string
	lemmaColumn    string
	participleTag  string
	auxiliaryLemma string
}

func newPassiveVoice(t *table.Table, spec api.Extractor) (*passiveVoice, error) {
	x := &passiveVoice{
		posColumn:      orDefault(spec.PosColumn, "GPOS"),
		lemmaColumn:    orDefault(spec.LemmaColumn, "LEMMA"),
		participleTag:  orDefault(spec.ParticipleTag, "V-PCP"),
		auxiliaryLemma: orDefault(spec.AuxiliaryLemma, "ser"),
	}
	if err := requireColumns(t, KindPassiveVoice, x.posColumn, x.lemmaColumn); err != nil {
		return nil, err
	}
	return x, nil
}

func (x *passiveVoice) Kind() Kind {
	return KindPassiveVoice
}

func (x *passiveVoice) Extract(v View, out *Block) error {
	out.Declare(PassiveVoiceColumn)
	p := v.Proposition
	if !p.HasPredicate() {
		return nil
	}
	pos, _ := v.Table.Column(x.posColumn)
	lemmas, _ := v.Table.Column(x.lemmaColumn)
	participle, auxiliary := -1, -1
	for i := p.Lower; i < p.Upper; i++ {
		if pos[i] == x.participleTag {
			participle = i
		}
		if lemmas[i] == x.auxiliaryLemma {
			auxiliary = i
		}
	}
	flag := 0
	if participle == p.Predicate && auxiliary >= 0 && auxiliary < p.Predicate {
		flag = 1
	}
	for i := p.Lower; i < p.Upper; i++ {
		out.Set(PassiveVoiceColumn, i, Int(flag))
	}
	return nil
}

// predicateMorph turns a multi-valued morphology column into one binary
// column per distinct flag found anywhere in the table: PREDMORPH_01 ...
type predicateMorph struct {
	column    string
	separator string
	flags     map[string]int
	names     []string
}

func newPredicateMorph(t *table.Table, spec api.Extractor) (*predicateMorph, error) {
	x := &predicateMorph{
		column:    orDefault(spec.MorphColumn, "MORF"),
		separator: orDefault(spec.Separator, "|"),
		flags:     make(map[string]int),
	}
	if err := requireColumns(t, KindPredicateMorph, x.column); err != nil {
		return nil, err
	}
	values, _ := t.Column(x.column)
	seen := make(map[string]struct{})
	for _, v := range values {
		for _, f := range x.split(v) {
			seen[f] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(seen))
	for f := range seen {
		sorted = append(sorted, f)
	}
	sort.Strings(sorted)
	for i, f := range sorted {
		x.flags[f] = i
		x.names = append(x.names, fmt.Sprintf("%s_%02d", predicateMorphPrefix, i+1))
	}
	return x, nil
}

// split drops the CoNLL "_" placeholder and empty parts.
func (x *predicateMorph) split(v string) []string {
	var out []string
	for _, f := range strings.Split(v, x.separator) {
		if f = strings.TrimSpace(f); f != "" && f != "_" {
			out = append(out, f)
		}
	}
	return out
}

func (x *predicateMorph) Kind() Kind {
	return KindPredicateMorph
}

func (x *predicateMorph) Extract(v View, out *Block) error {
	values, _ := v.Table.Column(x.column)
	p := v.Proposition
	for _, name := range x.names {
		col := out.Declare(name)
		for k := range col {
			col[k] = Int(0)
		}
	}
	for i := p.Lower; i < p.Upper; i++ {
		for _, f := range x.split(values[i]) {
			out.Set(x.names[x.flags[f]], i, Int(1))
		}
	}
	return nil
}
