package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"study_sync/internal/common"
	"study_sync/internal/domain/model"
)

// memProblemRepo mirrors the upsert-by-slug semantics of the Postgres store.
type memProblemRepo struct {
	mu      sync.Mutex
	bySlug  map[string]*model.Problem
	upserts int
	failOn  map[string]error
}

func newMemProblemRepo() *memProblemRepo {
	return &memProblemRepo{bySlug: map[string]*model.Problem{}, failOn: map[string]error{}}
}

func (r *memProblemRepo) Exists(_ context.Context, id int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.bySlug {
		if p.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (r *memProblemRepo) Upsert(_ context.Context, _ *sql.Tx, p *model.Problem) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failOn[p.TitleSlug]; err != nil {
		return 0, err
	}
	r.upserts++
	cp := *p
	if existing, ok := r.bySlug[p.TitleSlug]; ok {
		cp.ID = existing.ID
		cp.FrontendID = existing.FrontendID
	} else {
		for _, other := range r.bySlug {
			if other.ID == p.ID {
				return 0, common.ErrConflict
			}
		}
	}
	r.bySlug[p.TitleSlug] = &cp
	return cp.ID, nil
}

func (r *memProblemRepo) FindBySlug(_ context.Context, slug string) (*model.Problem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.bySlug[slug]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memProblemRepo) ListProblems(_ context.Context, limit, offset int, difficulty model.ProblemDifficulty, topicSlug string) ([]model.Problem, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []model.Problem
	for _, p := range r.bySlug {
		if difficulty != "" && p.Difficulty != difficulty {
			continue
		}
		if topicSlug != "" && !containsString(p.TopicSlugs(), topicSlug) {
			continue
		}
		all = append(all, *p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *memProblemRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bySlug), nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type memSubmissionRepo struct {
	mu   sync.Mutex
	rows map[string]*model.Submission
	err  error
}

func newMemSubmissionRepo() *memSubmissionRepo {
	return &memSubmissionRepo{rows: map[string]*model.Submission{}}
}

func (r *memSubmissionRepo) Record(_ context.Context, _ *sql.Tx, s *model.Submission) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	if _, ok := r.rows[s.LeetcodeSubmissionID]; ok {
		return false, nil
	}
	cp := *s
	cp.CreatedAt = time.Now().UTC()
	r.rows[s.LeetcodeSubmissionID] = &cp
	return true, nil
}

func (r *memSubmissionRepo) CountByRemoteID(_ context.Context, remoteID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[remoteID]; ok {
		return 1, nil
	}
	return 0, nil
}

func (r *memSubmissionRepo) ListByUser(_ context.Context, userID string, limit, offset int) ([]model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.Submission{}
	for _, s := range r.rows {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	if offset > len(out) {
		offset = len(out)
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

// memUsers satisfies both UserDirectory and repository.UserRepository.
type memUsers struct {
	mu      sync.Mutex
	byName  map[string]*model.User
	creates int
	findErr error
	// conflictOnce simulates a concurrent creator winning the race.
	conflictOnce *model.User
}

func newMemUsers() *memUsers {
	return &memUsers{byName: map[string]*model.User{}}
}

func (u *memUsers) FindByUsername(_ context.Context, username string) (*model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.findErr != nil {
		return nil, u.findErr
	}
	user, ok := u.byName[username]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (u *memUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.byName {
		if user.ID == id {
			cp := *user
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (u *memUsers) Create(_ context.Context, user *model.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conflictOnce != nil {
		u.byName[u.conflictOnce.Username] = u.conflictOnce
		u.conflictOnce = nil
		return common.ErrConflict
	}
	if _, ok := u.byName[user.Username]; ok {
		return common.ErrConflict
	}
	u.creates++
	cp := *user
	u.byName[user.Username] = &cp
	return nil
}

type fakeCatalog struct {
	mu        sync.Mutex
	stubs     []model.CatalogStub
	rejected  int
	listErr   error
	details   map[string]*model.Problem
	failures  map[string][]error // consumed one per call before the detail succeeds
	calls     map[string]int
	callTimes []time.Time
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		details:  map[string]*model.Problem{},
		failures: map[string][]error{},
		calls:    map[string]int{},
	}
}

func (f *fakeCatalog) FetchCatalogList(context.Context) ([]model.CatalogStub, int, error) {
	return f.stubs, f.rejected, f.listErr
}

func (f *fakeCatalog) FetchDetail(_ context.Context, slug string) (*model.Problem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[slug]++
	f.callTimes = append(f.callTimes, time.Now())
	if errs := f.failures[slug]; len(errs) > 0 {
		f.failures[slug] = errs[1:]
		return nil, errs[0]
	}
	p, ok := f.details[slug]
	if !ok {
		return nil, common.ErrIncomplete
	}
	cp := *p
	return &cp, nil
}

type fakeSubmissionSource struct {
	subs      []model.RemoteSubmission
	err       error
	lastLimit int
}

func (f *fakeSubmissionSource) FetchRecentAccepted(_ context.Context, _ string, limit int) ([]model.RemoteSubmission, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && len(f.subs) > limit {
		return f.subs[:limit], nil
	}
	return f.subs, nil
}

// fakeRegistrar behaves like the study service: the first registration of an
// id succeeds, later ones come back as already registered.
type fakeRegistrar struct {
	mu        sync.Mutex
	seen      map[string]bool
	failIDs   map[string]error
	calls     int
	callTimes []time.Time
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{seen: map[string]bool{}, failIDs: map[string]error{}}
}

func (f *fakeRegistrar) Version() string { return "test" }

func (f *fakeRegistrar) Register(_ context.Context, userID string, sub model.RemoteSubmission) (*model.ScheduleReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.callTimes = append(f.callTimes, time.Now())
	if err := f.failIDs[sub.ID]; err != nil {
		return nil, err
	}
	id := model.LocalSubmissionID(sub.ID)
	if f.seen[sub.ID] {
		return &model.ScheduleReport{Outcome: model.OutcomeAlreadyRegistered, SubmissionID: id}, nil
	}
	f.seen[sub.ID] = true
	next := sub.SubmittedAt().Add(24 * time.Hour)
	days := 1
	return &model.ScheduleReport{Outcome: model.OutcomeRegistered, SubmissionID: id, NextReviewAt: &next, DaysUntilReview: &days}, nil
}

type memMarks struct {
	marks map[string]time.Time
}

func newMemMarks() *memMarks { return &memMarks{marks: map[string]time.Time{}} }

func (m *memMarks) HighWaterMark(_ context.Context, user string) (time.Time, error) {
	return m.marks[user], nil
}

func (m *memMarks) Advance(_ context.Context, user string, t time.Time) error {
	if t.After(m.marks[user]) {
		m.marks[user] = t
	}
	return nil
}
