package fixtures

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/starford/talentflow/internal/apperr"
	"github.com/starford/talentflow/internal/checksum"
	"github.com/starford/talentflow/internal/models"
	"github.com/starford/talentflow/internal/storage"
)

// Fixture file names, relative to the fixture directory.
const (
	JobsFile       = "jobs.json"
	CandidatesFile = "candidates.json"
)

// Importer is the part of the store fixtures are loaded into.
type Importer interface {
	CountJobs(ctx context.Context) (int, error)
	Import(ctx context.Context, jobs []models.Job, candidates []models.Candidate) error
}

// Write stores set as two indented JSON files.
func Write(p storage.Provider, set Set) error {
	jobs, err := json.MarshalIndent(set.Jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("fixtures: encode jobs: %w", err)
	}
	cands, err := json.MarshalIndent(set.Candidates, "", "  ")
	if err != nil {
		return fmt.Errorf("fixtures: encode candidates: %w", err)
	}
	if err := p.Write(JobsFile, jobs); err != nil {
		return fmt.Errorf("fixtures: %w", err)
	}
	if err := p.Write(CandidatesFile, cands); err != nil {
		return fmt.Errorf("fixtures: %w", err)
	}
	return nil
}

// Load reads and checks both fixture files.
func Load(p storage.Provider) (Set, error) {
	var set Set
	if err := readJSON(p, JobsFile, &set.Jobs); err != nil {
		return Set{}, err
	}
	if err := readJSON(p, CandidatesFile, &set.Candidates); err != nil {
		return Set{}, err
	}
	if err := set.Validate(); err != nil {
		return Set{}, err
	}
	return set, nil
}

func readJSON(p storage.Provider, name string, dst any) error {
	data, err := p.Read(name)
	if err != nil {
		return fmt.Errorf("fixtures: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("fixtures: decode %s: %v: %w", name, err, apperr.ErrValidation)
	}
	return nil
}

// Validate rejects duplicate ids, unknown statuses and stages, and candidates
// of jobs the set does not contain.
func (s Set) Validate() error {
	jobs := make(map[int64]struct{}, len(s.Jobs))
	for _, j := range s.Jobs {
		if j.ID < 1 {
			return fmt.Errorf("fixtures: job id %d: %w", j.ID, apperr.ErrValidation)
		}
		if _, dup := jobs[j.ID]; dup {
			return fmt.Errorf("fixtures: duplicate job id %d: %w", j.ID, apperr.ErrValidation)
		}
		jobs[j.ID] = struct{}{}
		if j.Status != "" {
			if _, err := models.ParseJobStatus(string(j.Status)); err != nil {
				return fmt.Errorf("fixtures: job %d: %v: %w", j.ID, err, apperr.ErrValidation)
			}
		}
	}
	cands := make(map[int64]struct{}, len(s.Candidates))
	for _, c := range s.Candidates {
		if _, dup := cands[c.ID]; dup || c.ID < 1 {
			return fmt.Errorf("fixtures: bad candidate id %d: %w", c.ID, apperr.ErrValidation)
		}
		cands[c.ID] = struct{}{}
		if _, err := models.ParseStage(string(c.Stage)); err != nil {
			return fmt.Errorf("fixtures: candidate %d: %v: %w", c.ID, err, apperr.ErrValidation)
		}
		if _, ok := jobs[c.JobID]; !ok {
			return fmt.Errorf("fixtures: candidate %d references unknown job %d: %w", c.ID, c.JobID, apperr.ErrValidation)
		}
	}
	return nil
}

// Digest returns a checksum over both fixture files, or "" when either is missing.
func Digest(p storage.Provider) string {
	var sums []byte
	for _, name := range []string{JobsFile, CandidatesFile} {
		meta, err := p.Stat(name)
		if err != nil {
			return ""
		}
		sums = append(sums, meta.Checksum...)
	}
	return checksum.Sum(sums)
}

// Seed imports set unless the store already holds jobs. force imports anyway.
// It reports whether an import happened.
func Seed(ctx context.Context, db Importer, set Set, force bool) (bool, error) {
	if !force {
		n, err := db.CountJobs(ctx)
		if err != nil {
			return false, fmt.Errorf("fixtures: count jobs: %w", err)
		}
		if n > 0 {
			return false, nil
		}
	}
	if err := db.Import(ctx, set.Jobs, set.Candidates); err != nil {
		return false, fmt.Errorf("fixtures: import: %w", err)
	}
	return true, nil
}
