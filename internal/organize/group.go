package organize

import (
	"sort"
	"strings"

	"github.com/joseph-ayodele/photo-panels/constants"
	"github.com/joseph-ayodele/photo-panels/internal/llm"
)

// Activity is a group of analysed pages sharing a normalised activity name.
type Activity struct {
	Key        string
	Name       string // first-seen spelling, trimmed
	Code       string // catalogue code when recognised
	Recognized bool
	Pages      []int
	Records    []llm.AnalysisRecord
}

// NormalizeName is the grouping key: trimmed, whitespace collapsed, upper-cased.
func NormalizeName(name string) string {
	return strings.ToUpper(strings.Join(strings.Fields(name), " "))
}

// Group builds activities from successful results in page order. Activities come out in
// order of first appearance; failed pages are skipped.
func Group(results []PageResult) []Activity {
	ok := make([]PageResult, 0, len(results))
	for _, r := range results {
		if r.OK() {
			ok = append(ok, r)
		}
	}
	sort.SliceStable(ok, func(i, j int) bool { return ok[i].PageIndex < ok[j].PageIndex })

	var out []Activity
	index := map[string]int{}
	for _, r := range ok {
		key := NormalizeName(r.Record.Actividad)
		i, seen := index[key]
		if !seen {
			a := Activity{Key: key, Name: strings.Join(strings.Fields(r.Record.Actividad), " ")}
			if code, _, found := constants.LookupActivity(a.Name); found {
				a.Code = code
				a.Recognized = true
			}
			out = append(out, a)
			i = len(out) - 1
			index[key] = i
		}
		out[i].Pages = append(out[i].Pages, r.PageIndex)
		out[i].Records = append(out[i].Records, *r.Record)
	}
	return out
}
