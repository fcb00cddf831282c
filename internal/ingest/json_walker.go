package ingest

import (
	"fmt"
	"strconv"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// JsonWalker implements Walker for decoded JSON records. Parsed selectors
// are cached, so a walker must not be shared between goroutines.
type JsonWalker struct {
	exprs map[string]jp.Expr
}

func NewJsonWalker() *JsonWalker {
	return &JsonWalker{exprs: make(map[string]jp.Expr)}
}

func (w *JsonWalker) compile(selector string) (jp.Expr, error) {
	if x, ok := w.exprs[selector]; ok {
		return x, nil
	}
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
	}
	w.exprs[selector] = x
	return x, nil
}

// Query implements Walker.
func (w *JsonWalker) Query(root any, selector string) ([]Match, error) {
	x, err := w.compile(selector)
	if err != nil {
		return nil, err
	}
	results := x.Get(root)
	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = &jsonMatch{value: r}
	}
	return matches, nil
}

// firstText returns the text of the first match, or "" when nothing matched.
func firstText(w Walker, root any, selector string) (string, error) {
	matches, err := w.Query(root, selector)
	if err != nil || len(matches) == 0 {
		return "", err
	}
	return matches[0].Text(), nil
}

type jsonMatch struct {
	value any
}

// Text implements Match.
func (m *jsonMatch) Text() string {
	switch v := m.value.(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return oj.JSON(v, &oj.Options{Sort: true})
	}
}
