package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagewright/internal/config"
	"pagewright/internal/definitions"
)

const recipeDefs = `page_types:
  Recipe:
    type_label_key: page.type.recipe
    properties:
      kitchen:
        label: {en: Kitchen}
        fields:
          servings: {label: {en: Servings}, type: number, default_value: 2}
`

func TestOpenWiresEngine(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "defs.yml"), []byte(recipeDefs), 0o644))
	require.NoError(t, os.WriteFile(config.Path(dir), []byte("definitions:\n  file: defs.yml\nlog:\n  level: warn\n"), 0o644))

	rt, err := Open(context.Background(), dir)
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })

	assert.Contains(t, rt.Engine.Defs.Types(), "Recipe")
	assert.Contains(t, rt.Engine.Defs.Types(), "BlogPost")
	assert.NotNil(t, rt.Engine.Metrics)
	assert.Equal(t, "warn", rt.Config.Log.Level)
}

func TestRegistryRejectsRedefinedBuiltin(t *testing.T) {
	dir := t.TempDir()
	doc := "page_types:\n  BlogPost:\n    type_label_key: page.type.blogPost\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "defs.yml"), []byte(doc), 0o644))
	cfg := config.Default()
	cfg.Definitions.File = "defs.yml"

	_, err := Registry(cfg, dir)
	var dup definitions.DuplicateTypeError
	assert.True(t, errors.As(err, &dup))
}
