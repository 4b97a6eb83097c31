package todos

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"

	"github.com/unkn0wn-root/querycache/errs"
)

type SeedResult struct {
	Created  int
	Failed   int
	FirstErr error
}

// Seed creates n todos one after another. A failed create is counted and the
// run continues, except that a missing session or a cancelled ctx stops it.
func (s *Service) Seed(ctx context.Context, n int, gen func(i int) Input) SeedResult {
	var res SeedResult
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			res.Failed += n - i
			if res.FirstErr == nil {
				res.FirstErr = ctx.Err()
			}
			return res
		}
		if _, err := s.Create(ctx, gen(i)); err != nil {
			res.Failed++
			if res.FirstErr == nil {
				res.FirstErr = err
			}
			if errors.Is(err, errs.ErrUnauthenticated) {
				res.Failed += n - i - 1
				return res
			}
			continue
		}
		res.Created++
	}
	return res
}

var words = strings.Fields(`alpha amber anchor april basil beacon birch bramble canvas cedar
cobalt copper delta drift ember falcon fennel fjord garnet glacier harbor hazel indigo
juniper kettle lantern linen maple marble meadow nectar oak orbit pebble quartz quill
raven ripple saffron sierra thistle timber umber velvet willow zephyr`)

// SampleInput returns a generator of filler todos: a five-word title and a
// two-sentence description.
func SampleInput(r *rand.Rand) func(int) Input {
	phrase := func(n int) string {
		out := make([]string, n)
		for i := range out {
			out[i] = words[r.IntN(len(words))]
		}
		return strings.Join(out, " ")
	}
	sentence := func() string {
		s := phrase(6 + r.IntN(6))
		return strings.ToUpper(s[:1]) + s[1:] + "."
	}
	return func(int) Input {
		return Input{Title: phrase(5), Description: sentence() + " " + sentence()}
	}
}
