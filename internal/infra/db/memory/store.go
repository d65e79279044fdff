// Package memory keeps every repository in process memory. It backs the
// "memory" database driver used for local runs and handler tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/bryanwahyu/codescan/internal/domain/analyses"
	"github.com/bryanwahyu/codescan/internal/domain/apperr"
	"github.com/bryanwahyu/codescan/internal/domain/projects"
	"github.com/bryanwahyu/codescan/internal/domain/scanerrors"
	"github.com/bryanwahyu/codescan/internal/domain/users"
)

// Store holds all tables behind one lock. Deleting a project cascades to its
// runs and scan errors, like the SQL schemas.
type Store struct {
	mu         sync.RWMutex
	users      map[string]users.User // by email
	projects   []projects.Project
	runs       []analyses.Run
	scanErrors []scanerrors.ScanError
	nextErrID  int64
}

func NewStore() *Store {
	return &Store{users: map[string]users.User{}}
}

func (s *Store) Users() *UserRepository           { return &UserRepository{s} }
func (s *Store) Projects() *ProjectRepository     { return &ProjectRepository{s} }
func (s *Store) Analyses() *AnalysisRepository    { return &AnalysisRepository{s} }
func (s *Store) ScanErrors() *ScanErrorRepository { return &ScanErrorRepository{s} }

type UserRepository struct{ s *Store }

var _ users.Repository = (*UserRepository)(nil)

func (r *UserRepository) Create(_ context.Context, u *users.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.Email]; ok {
		return apperr.Conflict("email already registered")
	}
	r.s.users[u.Email] = *u
	return nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*users.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[email]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

type ProjectRepository struct{ s *Store }

var _ projects.Repository = (*ProjectRepository)(nil)

func (r *ProjectRepository) Create(_ context.Context, p *projects.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.projects = append(r.s.projects, *p)
	return nil
}

func (r *ProjectRepository) ListByOwner(_ context.Context, owner users.UserID) ([]*projects.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*projects.Project{}
	for i := range r.s.projects {
		if r.s.projects[i].OwnerID == owner {
			p := r.s.projects[i]
			out = append(out, &p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *ProjectRepository) GetByKey(_ context.Context, owner users.UserID, key string) (*projects.Project, error) {
	return r.find(func(p projects.Project) bool { return p.OwnerID == owner && p.Key == key }), nil
}

func (r *ProjectRepository) FindByName(_ context.Context, owner users.UserID, name string) (*projects.Project, error) {
	return r.find(func(p projects.Project) bool { return p.OwnerID == owner && p.Name == name }), nil
}

// find returns the newest match.
func (r *ProjectRepository) find(match func(projects.Project) bool) *projects.Project {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var found *projects.Project
	for i := range r.s.projects {
		p := r.s.projects[i]
		if match(p) && (found == nil || p.CreatedAt.After(found.CreatedAt)) {
			found = &p
		}
	}
	return found
}

func (r *ProjectRepository) Delete(_ context.Context, owner users.UserID, key string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	removed := map[projects.ProjectID]bool{}
	kept := r.s.projects[:0]
	for _, p := range r.s.projects {
		if p.OwnerID == owner && p.Key == key {
			removed[p.ID] = true
			continue
		}
		kept = append(kept, p)
	}
	r.s.projects = kept
	if len(removed) == 0 {
		return false, nil
	}

	runs := r.s.runs[:0]
	for _, run := range r.s.runs {
		if !removed[run.ProjectID] {
			runs = append(runs, run)
		}
	}
	r.s.runs = runs
	errs := r.s.scanErrors[:0]
	for _, e := range r.s.scanErrors {
		if !removed[projects.ProjectID(e.ProjectID)] {
			errs = append(errs, e)
		}
	}
	r.s.scanErrors = errs
	return true, nil
}

type AnalysisRepository struct{ s *Store }

var _ analyses.Repository = (*AnalysisRepository)(nil)

func (r *AnalysisRepository) Save(_ context.Context, run *analyses.Run) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *run
	cp.Issues = append([]analyses.Issue(nil), run.Issues...)
	r.s.runs = append(r.s.runs, cp)
	return nil
}

func (r *AnalysisRepository) Latest(_ context.Context, project projects.ProjectID) (*analyses.Run, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var latest *analyses.Run
	for i := range r.s.runs {
		run := r.s.runs[i]
		if run.ProjectID == project && (latest == nil || !run.CreatedAt.Before(latest.CreatedAt)) {
			latest = &run
		}
	}
	return latest, nil
}

// Count reports how many runs are stored.
func (r *AnalysisRepository) Count() int {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.runs)
}

type ScanErrorRepository struct{ s *Store }

var _ scanerrors.Repository = (*ScanErrorRepository)(nil)

func (r *ScanErrorRepository) Save(_ context.Context, e *scanerrors.ScanError) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextErrID++
	e.ID = r.s.nextErrID
	r.s.scanErrors = append(r.s.scanErrors, *e)
	return nil
}

func (r *ScanErrorRepository) ListByProject(_ context.Context, projectID string, limit int) ([]*scanerrors.ScanError, error) {
	if limit <= 0 {
		limit = 20
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*scanerrors.ScanError{}
	for i := len(r.s.scanErrors) - 1; i >= 0 && len(out) < limit; i-- {
		if r.s.scanErrors[i].ProjectID == projectID {
			e := r.s.scanErrors[i]
			out = append(out, &e)
		}
	}
	return out, nil
}
