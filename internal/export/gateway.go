package export

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/permit-dashboard-api/internal/apperr"
)

// Gateway resolves download requests to files inside the caller's own export directory
type Gateway struct {
	root string
}

// NewGateway creates a gateway over root
func NewGateway(root string) *Gateway {
	return &Gateway{root: root}
}

// Resolve maps a download of filename from pathUserID's directory to a file
// on disk. The caller must be the owner of that directory. Every refusal is
// reported as not found so the response never reveals whether a file exists.
func (g *Gateway) Resolve(callerID, pathUserID, filename string) (string, error) {
	notFound := apperr.NotFound("export file")

	if callerID == "" || callerID != pathUserID {
		return "", notFound
	}
	if Sanitize(pathUserID) != pathUserID {
		return "", notFound
	}

	name := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if name == "." || name == "/" || name == ".." || strings.HasPrefix(name, ".") {
		return "", notFound
	}

	root, err := filepath.Abs(g.root)
	if err != nil {
		return "", notFound
	}
	userDir, err := filepath.EvalSymlinks(filepath.Join(root, pathUserID))
	if err != nil {
		return "", notFound
	}
	resolved, err := filepath.EvalSymlinks(filepath.Join(userDir, name))
	if err != nil {
		return "", notFound
	}

	// Symlinks must not lead outside the user's directory
	if filepath.Dir(resolved) != userDir {
		return "", notFound
	}

	info, err := os.Stat(resolved)
	if err != nil || !info.Mode().IsRegular() {
		return "", notFound
	}
	return resolved, nil
}
