package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/Ibeneme/kindred-app-sub000/internal/model"
)

// CreateFamily opens a new family circle; the server mints its join code.
func (c *Client) CreateFamily(ctx context.Context, name, description string) (model.Family, error) {
	var out model.Family
	body := map[string]string{"name": name, "description": description}
	err := c.do(ctx, http.MethodPost, "/families", body, &out)
	return out, err
}

// JoinFamily adds the signed-in user to the family behind a join code.
func (c *Client) JoinFamily(ctx context.Context, joinCode string) (model.Family, error) {
	var out model.Family
	body := map[string]string{"joinCode": joinCode}
	err := c.do(ctx, http.MethodPost, "/families/join", body, &out)
	return out, err
}

func (c *Client) ListFamilies(ctx context.Context) ([]model.Family, error) {
	var out []model.Family
	err := c.do(ctx, http.MethodGet, "/families", nil, &out)
	return out, err
}

func (c *Client) FamilyMembers(ctx context.Context, familyID string) ([]model.User, error) {
	var out []model.User
	err := c.do(ctx, http.MethodGet, "/families/"+url.PathEscape(familyID)+"/members", nil, &out)
	return out, err
}

// ResourceService is the CRUD surface shared by the family-scoped
// collections. All of them carry free-form JSON bodies.
type ResourceService struct {
	client *Client
	path   string
}

func (c *Client) News() *ResourceService          { return &ResourceService{client: c, path: "/news"} }
func (c *Client) Tasks() *ResourceService         { return &ResourceService{client: c, path: "/tasks"} }
func (c *Client) Polls() *ResourceService         { return &ResourceService{client: c, path: "/polls"} }
func (c *Client) Reports() *ResourceService       { return &ResourceService{client: c, path: "/reports"} }
func (c *Client) Suggestions() *ResourceService   { return &ResourceService{client: c, path: "/suggestions"} }
func (c *Client) Donations() *ResourceService     { return &ResourceService{client: c, path: "/donations"} }
func (c *Client) Notifications() *ResourceService { return &ResourceService{client: c, path: "/notifications"} }

func (s *ResourceService) List(ctx context.Context, familyID string) ([]model.Document, error) {
	path := s.path
	if familyID != "" {
		path += "?familyId=" + url.QueryEscape(familyID)
	}
	var out []model.Document
	err := s.client.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (s *ResourceService) Create(ctx context.Context, familyID string, body json.RawMessage) (model.Document, error) {
	var out model.Document
	req := map[string]any{"familyId": familyID, "body": body}
	err := s.client.do(ctx, http.MethodPost, s.path, req, &out)
	return out, err
}

func (s *ResourceService) Get(ctx context.Context, id string) (model.Document, error) {
	var out model.Document
	err := s.client.do(ctx, http.MethodGet, s.path+"/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (s *ResourceService) Update(ctx context.Context, id string, body json.RawMessage) (model.Document, error) {
	var out model.Document
	req := map[string]any{"body": body}
	err := s.client.do(ctx, http.MethodPut, s.path+"/"+url.PathEscape(id), req, &out)
	return out, err
}

func (s *ResourceService) Delete(ctx context.Context, id string) error {
	return s.client.do(ctx, http.MethodDelete, s.path+"/"+url.PathEscape(id), nil, nil)
}
