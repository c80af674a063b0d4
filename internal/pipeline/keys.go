package pipeline

import (
	"github.com/starford/talentflow/internal/models"
	"github.com/starford/talentflow/internal/querycache"
)

// Cache key prefixes.
var (
	JobsPrefix        = querycache.Key{"jobs"}
	JobListPrefix     = querycache.Key{"jobs", "list"}
	JobDetailPrefix   = querycache.Key{"jobs", "detail"}
	CandidatesPrefix  = querycache.Key{"candidates"}
	CandidateListsKey = querycache.Key{"candidates", "list"}
)

// JobListKey identifies one page of the jobs board.
func JobListKey(q models.JobQuery) querycache.Key {
	q = q.Normalize()
	return querycache.Key{"jobs", "list", q.Page, q.PageSize, q.Search, q.Status}
}

// JobKey identifies one job.
func JobKey(id int64) querycache.Key {
	return querycache.Key{"jobs", "detail", id}
}

// CandidateListKey identifies the candidates of one stage; "" is every stage.
func CandidateListKey(stage string) querycache.Key {
	if stage == "all" {
		stage = ""
	}
	return querycache.Key{"candidates", "list", stage}
}

// CandidateKey identifies one candidate.
func CandidateKey(id int64) querycache.Key {
	return querycache.Key{"candidates", "detail", id}
}

// TimelineKey identifies a candidate's timeline.
func TimelineKey(id int64) querycache.Key {
	return querycache.Key{"candidates", "timeline", id}
}

// AssessmentKey identifies a job's assessment.
func AssessmentKey(jobID int64) querycache.Key {
	return querycache.Key{"assessments", jobID}
}

// SubmissionsKey identifies a job's submissions.
func SubmissionsKey(jobID int64) querycache.Key {
	return querycache.Key{"submissions", jobID}
}

// listQuery recovers the JobQuery of a key built by JobListKey.
func listQuery(k querycache.Key) (models.JobQuery, bool) {
	if len(k) != 6 {
		return models.JobQuery{}, false
	}
	page, ok1 := k[2].(int)
	size, ok2 := k[3].(int)
	search, ok3 := k[4].(string)
	status, ok4 := k[5].(string)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return models.JobQuery{}, false
	}
	return models.JobQuery{Page: page, PageSize: size, Search: search, Status: status}, true
}
