// Package fixtures generates, stores and imports the sample hiring data the
// store is seeded with.
package fixtures

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/starford/talentflow/internal/models"
)

// Default fixture sizes.
const (
	DefaultJobs       = 25
	DefaultCandidates = 1000
)

// TagPool is the set job tags are drawn from.
var TagPool = []string{"Full-time", "Remote", "Contract"}

var (
	levels = []string{"Junior", "Senior", "Lead", "Principal", "Staff", "Associate", "Chief"}
	areas  = []string{"Data", "Platform", "Product", "Security", "Infrastructure", "Payments", "Growth", "Mobile"}
	roles  = []string{"Engineer", "Designer", "Analyst", "Manager", "Architect", "Consultant", "Specialist"}

	firstNames = []string{
		"Ada", "Alan", "Grace", "Linus", "Margaret", "Dennis", "Barbara", "Ken",
		"Radia", "Edsger", "Frances", "Donald", "Katherine", "John", "Hedy", "Tim",
		"Sophie", "Niklaus", "Anita", "Guido", "Shafi", "Leslie", "Joan", "Bjarne",
	}
	lastNames = []string{
		"Lovelace", "Turing", "Hopper", "Torvalds", "Hamilton", "Ritchie", "Liskov", "Thompson",
		"Perlman", "Dijkstra", "Allen", "Knuth", "Johnson", "McCarthy", "Lamarr", "Berners-Lee",
		"Wilson", "Wirth", "Borg", "Rossum", "Goldwasser", "Lamport", "Clarke", "Stroustrup",
	}
)

// Set is a complete fixture: every job and candidate to import.
type Set struct {
	Jobs       []models.Job       `json:"jobs"`
	Candidates []models.Candidate `json:"candidates"`
}

func pick[T any](rng *rand.Rand, items []T) T {
	return items[rng.IntN(len(items))]
}

// Generate builds jobs and candidates from rng. The same seed yields the same
// set. Jobs are 70% active on average with one to three tags; candidates are
// spread uniformly over stages and jobs.
func Generate(rng *rand.Rand, jobs, candidates int) Set {
	set := Set{Jobs: make([]models.Job, jobs), Candidates: make([]models.Candidate, 0, candidates)}
	for i := range set.Jobs {
		title := fmt.Sprintf("%s %s %s", pick(rng, levels), pick(rng, areas), pick(rng, roles))
		status := models.JobArchived
		if rng.Float64() > 0.3 {
			status = models.JobActive
		}
		n := 1 + rng.IntN(len(TagPool))
		tags := make([]string, n)
		for k, idx := range rng.Perm(len(TagPool))[:n] {
			tags[k] = TagPool[idx]
		}
		set.Jobs[i] = models.Job{
			ID:     int64(i + 1),
			Title:  title,
			Slug:   models.Slugify(title),
			Status: status,
			Tags:   tags,
			Order:  i + 1,
		}
	}
	if jobs == 0 {
		return set
	}
	for i := 0; i < candidates; i++ {
		first, last := pick(rng, firstNames), pick(rng, lastNames)
		set.Candidates = append(set.Candidates, models.Candidate{
			ID:    int64(i + 1),
			Name:  first + " " + last,
			Email: strings.ToLower(fmt.Sprintf("%s.%s%d@example.com", first, strings.ReplaceAll(last, "-", ""), rng.IntN(100))),
			Stage: pick(rng, models.Stages),
			JobID: pick(rng, set.Jobs).ID,
		})
	}
	return set
}
