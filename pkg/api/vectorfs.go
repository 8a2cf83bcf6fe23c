package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
)

type DirectoryContent struct {
	Name          string             `json:"name"`
	Path          string             `json:"path"`
	IsDirectory   bool               `json:"is_directory"`
	HasEmbeddings bool               `json:"has_embeddings"`
	CreatedTime   string             `json:"created_time,omitempty"`
	ModifiedTime  string             `json:"modified_time,omitempty"`
	Children      []DirectoryContent `json:"children,omitempty"`
}

type ListDirectoryRequest struct {
	Path  string
	Depth int
}

func (c *Client) ListDirectoryContents(ctx context.Context, req ListDirectoryRequest) ([]DirectoryContent, error) {
	path := req.Path
	if path == "" {
		path = "/"
	}
	q := url.Values{}
	q.Set("path", path)
	if req.Depth > 0 {
		q.Set("depth", strconv.Itoa(req.Depth))
	}

	var ret []DirectoryContent
	if err := c.get(ctx, "/v2/list_directory_contents", q, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

type CreateFolderRequest struct {
	FolderName string `json:"folder_name"`
	Path       string `json:"path"`
}

func (c *Client) CreateFolder(ctx context.Context, req CreateFolderRequest) error {
	if req.FolderName == "" {
		return errors.New("folder name is required")
	}
	if req.Path == "" {
		req.Path = "/"
	}
	return c.post(ctx, "/v2/create_folder", nil, req, nil)
}

type MoveRequest struct {
	OriginPath      string `json:"origin_path"`
	DestinationPath string `json:"destination_path"`
}

func (r MoveRequest) validate() error {
	if r.OriginPath == "" || r.DestinationPath == "" {
		return errors.New("origin and destination paths are required")
	}
	if r.OriginPath == r.DestinationPath {
		return errors.Errorf("cannot move %s onto itself", r.OriginPath)
	}
	return nil
}

func (c *Client) MoveItem(ctx context.Context, req MoveRequest) error {
	if err := req.validate(); err != nil {
		return err
	}
	return c.post(ctx, "/v2/move_item", nil, req, nil)
}

func (c *Client) MoveFolder(ctx context.Context, req MoveRequest) error {
	if err := req.validate(); err != nil {
		return err
	}
	return c.post(ctx, "/v2/move_folder", nil, req, nil)
}

func (c *Client) RemoveItem(ctx context.Context, path string) error {
	if path == "" || path == "/" {
		return errors.Errorf("refusing to remove %q", path)
	}
	return c.post(ctx, "/v2/remove_item", nil, map[string]string{"path": path}, nil)
}
