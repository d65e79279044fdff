// Package sonarqube talks to the SonarQube Web API on behalf of the service.
package sonarqube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bryanwahyu/codescan/internal/domain/analyses"
	"github.com/bryanwahyu/codescan/internal/domain/apperr"
	"github.com/bryanwahyu/codescan/internal/domain/engine"
)

const (
	maxErrorBody = 4 << 10
	// the engine refuses to page past 10k results
	maxSearchWindow = 10000
)

// Client implements engine.Engine. Requests carry no client-side timeout;
// cancellation comes from the caller's context.
type Client struct {
	baseURL  string
	token    string
	user     string
	password string
	pageSize int
	http     *http.Client
}

type Option func(*Client)

// WithHTTPClient swaps the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithBasicAuth authenticates as user:password instead of token:"".
func WithBasicAuth(user, password string) Option {
	return func(c *Client) { c.user, c.password = user, password }
}

// WithPageSize sets the issue search page size.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		pageSize: 500,
		http:     http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ engine.Engine = (*Client)(nil)

// ValidateCredential asks the engine whether the configured credential is valid.
func (c *Client) ValidateCredential(ctx context.Context) (bool, error) {
	var out struct {
		Valid bool `json:"valid"`
	}
	if err := c.get(ctx, "/api/authentication/validate", nil, true, &out); err != nil {
		return false, err
	}
	return out.Valid, nil
}

func (c *Client) CreateProject(ctx context.Context, key, name string) error {
	form := url.Values{"project": {key}, "name": {name}}
	return c.postForm(ctx, "/api/projects/create", form)
}

func (c *Client) DeleteProject(ctx context.Context, key string) error {
	return c.postForm(ctx, "/api/projects/delete", url.Values{"project": {key}})
}

func (c *Client) ComponentTasks(ctx context.Context, key string) (engine.TaskQueue, error) {
	var out engine.TaskQueue
	err := c.get(ctx, "/api/ce/component", url.Values{"component": {key}}, true, &out)
	return out, err
}

// SearchIssues pages through every issue visible to the credential.
func (c *Client) SearchIssues(ctx context.Context) ([]analyses.Issue, error) {
	var all []analyses.Issue
	for page := 1; ; page++ {
		var out struct {
			Total  int              `json:"total"`
			Issues []analyses.Issue `json:"issues"`
			Paging struct {
				Total int `json:"total"`
			} `json:"paging"`
		}
		q := url.Values{
			"ps": {strconv.Itoa(c.pageSize)},
			"p":  {strconv.Itoa(page)},
		}
		if err := c.get(ctx, "/api/issues/search", q, true, &out); err != nil {
			return nil, err
		}
		all = append(all, out.Issues...)

		total := out.Total
		if total == 0 {
			total = out.Paging.Total
		}
		if len(out.Issues) == 0 || len(all) >= total || page*c.pageSize >= maxSearchWindow {
			return all, nil
		}
	}
}

// RuleDescription returns the rule's HTML description. Newer engines split it
// into sections; the first non-empty section is used when htmlDesc is absent.
func (c *Client) RuleDescription(ctx context.Context, rule string) (string, error) {
	var out struct {
		Rule struct {
			HTMLDesc            string `json:"htmlDesc"`
			DescriptionSections []struct {
				Key     string `json:"key"`
				Content string `json:"content"`
			} `json:"descriptionSections"`
		} `json:"rule"`
	}
	if err := c.get(ctx, "/api/rules/show", url.Values{"key": {rule}}, true, &out); err != nil {
		return "", err
	}
	if out.Rule.HTMLDesc != "" {
		return out.Rule.HTMLDesc, nil
	}
	for _, s := range out.Rule.DescriptionSections {
		if strings.TrimSpace(s.Content) != "" {
			return s.Content, nil
		}
	}
	return "", nil
}

func (c *Client) SystemStatus(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.get(ctx, "/api/system/status", nil, false, &out)
	return out, err
}

func (c *Client) Languages(ctx context.Context) ([]engine.Language, error) {
	var out struct {
		Languages []engine.Language `json:"languages"`
	}
	if err := c.get(ctx, "/api/languages/list", nil, true, &out); err != nil {
		return nil, err
	}
	return out.Languages, nil
}

func (c *Client) Measures(ctx context.Context, key string, metricKeys []string) (map[string]any, error) {
	q := url.Values{
		"component":  {key},
		"metricKeys": {strings.Join(metricKeys, ",")},
	}
	var out map[string]any
	err := c.get(ctx, "/api/measures/component", q, true, &out)
	return out, err
}

func (c *Client) get(ctx context.Context, path string, q url.Values, auth bool, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, auth, out)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, true, nil)
}

func (c *Client) do(req *http.Request, auth bool, out any) error {
	if auth {
		if c.user != "" {
			req.SetBasicAuth(c.user, c.password)
		} else {
			req.SetBasicAuth(c.token, "")
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Upstream(fmt.Sprintf("sonarqube %s %s", req.Method, req.URL.Path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return apperr.Upstream(
			fmt.Sprintf("sonarqube %s %s returned %d", req.Method, req.URL.Path, resp.StatusCode), nil,
		).WithDetails(strings.TrimSpace(string(body)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Upstream(fmt.Sprintf("decode sonarqube %s", req.URL.Path), err)
	}
	return nil
}
