package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/schedly/exam-scheduler/internal/model"
)

// DirectoryClient resolves professors, groups and student membership owned by
// the external directory service. Lookups are read-only; a timeout is a
// lookup failure, never a conflict.
type DirectoryClient interface {
	GetProfessor(ctx context.Context, id uuid.UUID) (*model.Professor, error)
	GetGroup(ctx context.Context, id uuid.UUID) (*model.Group, error)
	// GetGroupStudents resolves the group's transitive student membership
	// across all of its subgroups.
	GetGroupStudents(ctx context.Context, groupID uuid.UUID) ([]*model.Student, error)
}

type DirectoryHTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ DirectoryClient = (*DirectoryHTTPClient)(nil)

func NewDirectoryHTTPClient(baseURL string, httpClient *http.Client) *DirectoryHTTPClient {
	return &DirectoryHTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// DefaultDirectoryHTTPClient returns the http.Client used when the caller has
// no special transport needs. The timeout bounds every directory lookup.
func DefaultDirectoryHTTPClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Second}
}

func (c *DirectoryHTTPClient) GetProfessor(ctx context.Context, id uuid.UUID) (*model.Professor, error) {
	var prof model.Professor
	if err := c.get(ctx, "/professors/"+id.String(), &prof); err != nil {
		return nil, err
	}
	return &prof, nil
}

func (c *DirectoryHTTPClient) GetGroup(ctx context.Context, id uuid.UUID) (*model.Group, error) {
	var group model.Group
	if err := c.get(ctx, "/groups/"+id.String(), &group); err != nil {
		return nil, err
	}
	return &group, nil
}

func (c *DirectoryHTTPClient) GetGroupStudents(ctx context.Context, groupID uuid.UUID) ([]*model.Student, error) {
	var body struct {
		Students []*model.Student `json:"students"`
	}
	if err := c.get(ctx, "/groups/"+groupID.String()+"/students", &body); err != nil {
		return nil, err
	}
	return body.Students, nil
}

func (c *DirectoryHTTPClient) get(ctx context.Context, path string, out any) error {
	if c.baseURL == "" {
		return ErrInvalidInput
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("directory lookup %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// continue
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("directory service unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode directory response: %w", err)
	}

	return nil
}
