package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	extErrors "github.com/pkg/errors"

	"github.com/variousplug/vp/util"
)

const dockerfileTemplate = `FROM %s

WORKDIR /workspace

COPY requirements.txt* ./
RUN if [ -f requirements.txt ]; then pip install -r requirements.txt; fi

COPY . .

CMD ["python", "--version"]
`

// ScaffoldDockerfile writes a starter Dockerfile for the project unless one
// already exists.
func ScaffoldDockerfile(baseDir, baseImage string) (string, error) {
	path := filepath.Join(baseDir, "Dockerfile")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	content := fmt.Sprintf(dockerfileTemplate, baseImage)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", extErrors.Wrap(err, "Cannot write Dockerfile")
	}
	return path, nil
}

// ScaffoldIgnoreFile writes a starter ignore file with the given exclude
// patterns unless one already exists.
func ScaffoldIgnoreFile(baseDir string, excludePatterns []string) (string, error) {
	path := filepath.Join(baseDir, util.IgnoreFileName)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	content := "# File sync ignore patterns, one glob per line\n\n" + strings.Join(excludePatterns, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", extErrors.Wrap(err, "Cannot write ignore file")
	}
	return path, nil
}
