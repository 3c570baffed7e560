package changer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/mca-batch/mcab/common"

	"github.com/armon/go-radix"
)

// catalog maps lower-cased field names to kinds. The radix tree also serves
// prefix suggestions for the CLI.
var catalog = func() *radix.Tree {
	t := radix.New()
	for _, k := range Kinds() {
		t.Insert(strings.ToLower(k.String()), k)
	}
	return t
}()

// Lookup resolves a field name case-insensitively.
func Lookup(name string) (Kind, bool) {
	v, ok := catalog.Get(strings.ToLower(strings.TrimSpace(name)))
	if !ok {
		return 0, false
	}
	return v.(Kind), true
}

// Suggest lists the field names starting with prefix, sorted.
func Suggest(prefix string) []string {
	var out []string
	catalog.WalkPrefix(strings.ToLower(prefix), func(_ string, v interface{}) bool {
		out = append(out, v.(Kind).String())
		return false
	})
	sort.Strings(out)
	return out
}

// ParseFields parses a comma separated change list such as
// "Status = finalized, LightPopulated = 1". Every problem is reported as a
// parse error before any chunk is touched.
func ParseFields(text string) ([]*Field, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty field list", common.ErrParse)
	}
	var (
		fields []*Field
		seen   = map[Kind]bool{}
	)
	for _, part := range strings.Split(text, ",") {
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("%w: %q is not of the form name = value", common.ErrParse, strings.TrimSpace(part))
		}
		kind, ok := Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown field %q (known: %s)", common.ErrParse, strings.TrimSpace(name), strings.Join(Suggest(""), ", "))
		}
		if seen[kind] {
			return nil, fmt.Errorf("%w: field %s given twice", common.ErrParse, kind)
		}
		seen[kind] = true

		f := New(kind)
		if err := f.ParseText(strings.Trim(strings.TrimSpace(value), `"`)); err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}
