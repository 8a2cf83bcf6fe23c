package viewstate

import (
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/go-go-golems/shinkai/pkg/api"
)

// HomePath is the root of the vector file system.
const HomePath = "/"

// Folder is the state of a destination folder picker: the folder whose
// children are listed, and the path chosen as destination, if any.
type Folder struct {
	Current     string
	Destination string
}

func (f Folder) HasDestination() bool {
	return f.Destination != ""
}

// Breadcrumb is one segment of the path of the chosen destination.
type Breadcrumb struct {
	Name string
	Path string
}

type FolderSelection struct {
	*Store[Folder]
}

// NewFolderSelection starts at the home folder with no destination.
func NewFolderSelection() *FolderSelection {
	return &FolderSelection{Store: NewStore(Folder{Current: HomePath})}
}

func (s *FolderSelection) Current() string {
	return s.Get().Current
}

func (s *FolderSelection) Destination() string {
	return s.Get().Destination
}

// Home lists the root and selects it as destination.
func (s *FolderSelection) Home() {
	s.Set(Folder{Current: HomePath, Destination: HomePath})
}

// Enter picks item as destination. A folder with children also becomes the
// folder being listed.
func (s *FolderSelection) Enter(item api.DirectoryContent) {
	p := normalize(item.Path)
	s.Update(func(f Folder) Folder {
		if len(item.Children) > 0 {
			f.Current = p
		}
		f.Destination = p
		return f
	})
}

// Select lists p and selects it as destination.
func (s *FolderSelection) Select(p string) {
	p = normalize(p)
	s.Set(Folder{Current: p, Destination: p})
}

// Breadcrumbs returns the segments of the destination path, from the
// outermost folder. The home folder is not part of the result.
func (s *FolderSelection) Breadcrumbs() []Breadcrumb {
	dest := s.Destination()
	var ret []Breadcrumb
	current := HomePath
	for _, part := range strings.Split(dest, "/") {
		if part == "" {
			continue
		}
		current = path.Join(current, part)
		ret = append(ret, Breadcrumb{Name: part, Path: current})
	}
	return ret
}

// ValidateMove checks that origin can be moved into the selected
// destination and returns the destination.
func (s *FolderSelection) ValidateMove(origin string) (string, error) {
	dest := s.Destination()
	if dest == "" {
		return "", errors.New("no destination folder selected")
	}
	origin = normalize(origin)
	if origin == HomePath {
		return "", errors.New("cannot move the home folder")
	}
	if dest == origin || strings.HasPrefix(dest, origin+"/") {
		return "", errors.Errorf("cannot move %s into itself", origin)
	}
	if path.Dir(origin) == dest {
		return "", errors.Errorf("%s is already in %s", origin, dest)
	}
	return dest, nil
}

func normalize(p string) string {
	if p == "" {
		return HomePath
	}
	return path.Clean("/" + p)
}
