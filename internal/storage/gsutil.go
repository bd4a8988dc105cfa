package storage

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"stemworker/internal/fileutil"
)

// Gsutil serves gs:// locations by shelling out to the gsutil CLI.
type Gsutil struct {
	Binary string
}

func (g Gsutil) List(ctx context.Context, location string) ([]string, error) {
	loc, err := g.parse(location)
	if err != nil {
		return nil, err
	}
	out, err := g.run(ctx, "ls", loc.String()+"/")
	if err != nil {
		return nil, err
	}
	var names []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasSuffix(line, "/") || strings.HasSuffix(line, ":") {
			continue
		}
		names = append(names, path.Base(line))
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
	}
	sort.Strings(names)
	return names, nil
}

func (g Gsutil) Download(ctx context.Context, location, dstDir string) ([]string, error) {
	loc, err := g.parse(location)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return nil, fmt.Errorf("create destination dir: %w", err)
	}
	// A single * matches only the folder's top-level objects.
	if _, err := g.run(ctx, "-m", "cp", loc.String()+"/*", dstDir); err != nil {
		return nil, err
	}
	return fileutil.ListFiles(dstDir, "")
}

func (g Gsutil) Upload(ctx context.Context, localFile, location string) error {
	loc, err := g.parse(location)
	if err != nil {
		return err
	}
	target := loc.Join(filepath.Base(localFile)).String()
	_, err = g.run(ctx, "cp", localFile, target)
	return err
}

func (g Gsutil) parse(location string) (Location, error) {
	loc, err := Parse(location)
	if err != nil {
		return Location{}, err
	}
	if loc.Scheme != SchemeGS {
		return Location{}, fmt.Errorf("gsutil storage cannot serve %s", location)
	}
	return loc, nil
}

func (g Gsutil) run(ctx context.Context, args ...string) ([]byte, error) {
	binary := g.Binary
	if binary == "" {
		binary = "gsutil"
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if strings.Contains(detail, "matched no objects") {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, detail)
		}
		if detail == "" {
			return nil, fmt.Errorf("gsutil %s: %w", args[0], err)
		}
		return nil, fmt.Errorf("gsutil %s: %w: %s", args[0], err, detail)
	}
	return stdout.Bytes(), nil
}
