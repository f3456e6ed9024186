package abilities

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// Workspace is the file area the file abilities operate on.
type Workspace interface {
	Read(taskID, path string) ([]byte, error)
	Write(taskID, path string, data []byte) error
	List(taskID, path string) ([]string, error)
	Exists(taskID, path string) (bool, error)
}

// ArtifactRecorder records files the agent created so they can be downloaded.
type ArtifactRecorder interface {
	RecordArtifact(ctx context.Context, taskID, fileName, relativePath string) error
}

// defaultIgnore hides version-control and dependency directories from listings.
var defaultIgnore = []string{".git", "node_modules", "__pycache__", ".venv"}

// NewListFilesAbility lists a workspace directory.
func NewListFilesAbility(ws Workspace, ignorePatterns ...string) Ability {
	if len(ignorePatterns) == 0 {
		ignorePatterns = defaultIgnore
	}
	matcher := gitignore.CompileIgnoreLines(ignorePatterns...)

	return Ability{
		Name:        "list_files",
		Description: "List files in a directory",
		Parameters: []Parameter{
			{Name: "path", Description: "Path to the directory", Type: "string", Required: true},
		},
		OutputType: "list[str]",
		Category:   "file_system",
		Fn: func(ctx context.Context, taskID string, args map[string]any) (string, error) {
			entries, err := ws.List(taskID, stringArg(args, "path"))
			if err != nil {
				return "", err
			}
			files := make([]string, 0, len(entries))
			for _, e := range entries {
				if matcher.MatchesPath(strings.TrimSuffix(e, "/")) {
					continue
				}
				files = append(files, e)
			}
			out, err := json.Marshal(files)
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}

// NewWriteFileAbility writes a file and records it as an agent-created artifact.
func NewWriteFileAbility(ws Workspace, artifacts ArtifactRecorder) Ability {
	return Ability{
		Name:        "write_file",
		Description: "Write data to a file",
		Parameters: []Parameter{
			{Name: "file_path", Description: "Path to the file", Type: "string", Required: true},
			{Name: "data", Description: "Data to write to the file", Type: "bytes", Required: true},
		},
		OutputType: "None",
		Category:   "file_system",
		Fn: func(ctx context.Context, taskID string, args map[string]any) (string, error) {
			filePath := stringArg(args, "file_path")
			if strings.TrimSpace(filePath) == "" {
				return "", fmt.Errorf("file_path is empty")
			}
			if err := ws.Write(taskID, filePath, []byte(stringArg(args, "data"))); err != nil {
				return "", err
			}
			if artifacts != nil {
				rel := strings.TrimPrefix(path.Clean("/"+filePath), "/")
				if err := artifacts.RecordArtifact(ctx, taskID, path.Base(rel), rel); err != nil {
					return "", fmt.Errorf("record artifact: %w", err)
				}
			}
			return "", nil
		},
	}
}

// NewReadFileAbility returns a file's contents.
func NewReadFileAbility(ws Workspace) Ability {
	return Ability{
		Name:        "read_file",
		Description: "Read data from a file",
		Parameters: []Parameter{
			{Name: "file_path", Description: "Path to the file", Type: "string", Required: true},
		},
		OutputType: "bytes",
		Category:   "file_system",
		Fn: func(_ context.Context, taskID string, args map[string]any) (string, error) {
			data, err := ws.Read(taskID, stringArg(args, "file_path"))
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	}
}
