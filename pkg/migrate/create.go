package migrate

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
	"time"
)

const versionLayout = "20060102150405"

var (
	nameSanitizeRe = regexp.MustCompile(`[^a-z0-9_]+`)
	createTableRe  = regexp.MustCompile(`^create_([a-z0-9_]+?)_table$`)
	addColumnRe    = regexp.MustCompile(`^add_([a-z0-9_]+?)_to_([a-z0-9_]+)$`)
)

var migrationTemplate = template.Must(template.New("migration").Parse(`-- +goose Up
-- +goose StatementBegin
{{- if .Table}}
{{- if .Column}}
ALTER TABLE {{.Table}} ADD COLUMN IF NOT EXISTS {{.Column}} text;
{{- else}}
CREATE TABLE IF NOT EXISTS {{.Table}} (
    id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    created_at timestamptz NOT NULL DEFAULT now(),
    updated_at timestamptz NOT NULL DEFAULT now()
);
{{- end}}
{{- else}}
-- {{.Name}}
{{- end}}
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
{{- if .Table}}
{{- if .Column}}
ALTER TABLE {{.Table}} DROP COLUMN IF EXISTS {{.Column}};
{{- else}}
DROP TABLE IF EXISTS {{.Table}};
{{- end}}
{{- else}}
-- rollback {{.Name}}
{{- end}}
-- +goose StatementEnd
`))

type migrationScaffold struct {
	Name   string
	Table  string
	Column string
}

// CreateSQLMigration writes <dir>/<version>_<name>.sql. Names shaped like
// create_<table>_table or add_<column>_to_<table> get a matching skeleton.
func CreateSQLMigration(dir string, name string) (string, error) {
	return createSQLMigration(dir, name, time.Now)
}

func createSQLMigration(dir, name string, now func() time.Time) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	safe := sanitizeName(name)
	if safe == "" {
		return "", fmt.Errorf("name %q results in empty sanitized filename", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	version, err := nextVersion(dir, now().UTC())
	if err != nil {
		return "", err
	}
	fullpath := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", version, safe))

	var body bytes.Buffer
	if err := migrationTemplate.Execute(&body, scaffoldFor(safe)); err != nil {
		return "", fmt.Errorf("render migration: %w", err)
	}

	f, err := os.OpenFile(fullpath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration %q: %w", fullpath, err)
	}
	defer f.Close()
	if _, err := f.Write(body.Bytes()); err != nil {
		return "", fmt.Errorf("write migration %q: %w", fullpath, err)
	}
	return fullpath, nil
}

func sanitizeName(name string) string {
	safe := strings.ToLower(strings.TrimSpace(name))
	safe = nameSanitizeRe.ReplaceAllString(safe, "_")
	return strings.Trim(safe, "_")
}

func scaffoldFor(name string) migrationScaffold {
	if m := addColumnRe.FindStringSubmatch(name); m != nil {
		return migrationScaffold{Name: name, Table: m[2], Column: m[1]}
	}
	if m := createTableRe.FindStringSubmatch(name); m != nil {
		return migrationScaffold{Name: name, Table: m[1]}
	}
	return migrationScaffold{Name: name}
}

// nextVersion is now, or one second past the newest existing migration when
// the directory already holds a later version.
func nextVersion(dir string, now time.Time) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read dir %q: %w", dir, err)
	}
	next := now.Truncate(time.Second)
	for _, e := range entries {
		m := sqlFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		existing, err := time.Parse(versionLayout, m[1])
		if err != nil {
			continue
		}
		if !existing.Before(next) {
			next = existing.Add(time.Second)
		}
	}
	return next.Format(versionLayout), nil
}
