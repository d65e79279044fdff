package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/codescan/internal/application"
	projectsvc "github.com/bryanwahyu/codescan/internal/application/projects"
	"github.com/bryanwahyu/codescan/internal/domain/ai"
	"github.com/bryanwahyu/codescan/internal/domain/analyses"
	"github.com/bryanwahyu/codescan/internal/domain/apperr"
	"github.com/bryanwahyu/codescan/internal/domain/engine/enginetest"
	"github.com/bryanwahyu/codescan/internal/infra/db/memory"
)

type fakeClient struct {
	user string
	out  string
	err  error
}

func (f *fakeClient) Review(_ context.Context, _, user string) (string, error) {
	f.user = user
	return f.out, f.err
}

func newProjects() *projectsvc.Service {
	st := memory.NewStore()
	return &projectsvc.Service{
		Repo:       st.Projects(),
		Runs:       st.Analyses(),
		ScanErrors: st.ScanErrors(),
		Engine:     enginetest.NewStub(),
		Clock:      application.FixedClock{T: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
}

func seedRun(t *testing.T, projects *projectsvc.Service) string {
	t.Helper()
	ctx := context.Background()
	p, err := projects.Create(ctx, "u1", "Demo")
	require.NoError(t, err)
	_, err = projects.SaveResults(ctx, "u1", p.Key, []analyses.Issue{{
		Key: "I1", Rule: "javascript:S3504", Severity: analyses.SeverityMajor, Type: analyses.TypeCodeSmell,
		Component: p.Key + ":source_code.js", Line: 1, Message: "Unexpected var, use let or const instead.",
	}})
	require.NoError(t, err)
	return p.Key
}

func TestReviewNotConfigured(t *testing.T) {
	svc := NewService(newProjects(), nil, application.SystemClock{}, nil)

	_, err := svc.Review(context.Background(), "u1", "k")
	assert.Equal(t, apperr.KindNotImplemented, apperr.KindOf(err))
}

func TestReviewLatestRun(t *testing.T) {
	projects := newProjects()
	key := seedRun(t, projects)
	client := &fakeClient{out: "Replace var with const."}
	svc := NewService(projects, client, application.SystemClock{}, nil)

	got, err := svc.Review(context.Background(), "u1", key)
	require.NoError(t, err)

	assert.Equal(t, "Replace var with const.", got.Review)
	assert.Equal(t, key, got.ProjectKey)
	assert.Equal(t, 1, got.IssuesCount)
	assert.Contains(t, client.user, "Unexpected var")
}

func TestReviewWithoutRun(t *testing.T) {
	projects := newProjects()
	p, err := projects.Create(context.Background(), "u1", "Empty")
	require.NoError(t, err)
	svc := NewService(projects, &fakeClient{}, application.SystemClock{}, nil)

	_, err = svc.Review(context.Background(), "u1", p.Key)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestReviewClientErrors(t *testing.T) {
	cases := map[string]error{
		"quota":   fmt.Errorf("openai: %w", ai.ErrQuotaExceeded),
		"generic": errors.New("connection reset"),
	}
	for name, cerr := range cases {
		t.Run(name, func(t *testing.T) {
			projects := newProjects()
			key := seedRun(t, projects)
			svc := NewService(projects, &fakeClient{err: cerr}, application.SystemClock{}, nil)

			_, err := svc.Review(context.Background(), "u1", key)
			assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
			assert.ErrorIs(t, err, cerr)
		})
	}
}
