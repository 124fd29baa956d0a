package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"pagewright/internal/definitions"
	"pagewright/internal/domain"
	"pagewright/internal/repo"
)

var (
	slugPattern   = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	localePattern = regexp.MustCompile(`^[A-Za-z]{2,3}(?:-[A-Za-z0-9]+)*$`)
)

// validateLocale accepts an empty locale, which means the default one.
func validateLocale(locale string) error {
	if locale == "" || localePattern.MatchString(locale) {
		return nil
	}
	return ValidationError{Field: "locale", Reason: "must be a locale code such as en or pt-BR"}
}

func validateSlug(slug string) error {
	if slug == "" {
		return ValidationError{Field: "slug", Reason: "is required"}
	}
	if !slugPattern.MatchString(slug) {
		return ValidationError{Field: "slug", Reason: "must be lowercase letters, digits and single dashes"}
	}
	return nil
}

func validateTitle(title domain.Localized) error {
	for _, s := range title {
		if strings.TrimSpace(s) != "" {
			return nil
		}
	}
	return ValidationError{Field: "title", Reason: "needs at least one non-empty locale"}
}

// validateBlocks checks that every block in the tree has an id and a type
// and that ids are unique across the tree.
func validateBlocks(blocks []domain.Block) error {
	seen := make(map[string]struct{})
	var walk func(path string, items []domain.Block) error
	walk = func(path string, items []domain.Block) error {
		for i, b := range items {
			at := fmt.Sprintf("%s[%d]", path, i)
			if strings.TrimSpace(b.ID) == "" {
				return ValidationError{Field: at + ".id", Reason: "is required"}
			}
			if strings.TrimSpace(b.Type) == "" {
				return ValidationError{Field: at + ".type", Reason: "is required"}
			}
			if _, dup := seen[b.ID]; dup {
				return ValidationError{Field: at + ".id", Reason: fmt.Sprintf("duplicate block id %s", b.ID)}
			}
			seen[b.ID] = struct{}{}
			if err := walk(at+".children", b.Children); err != nil {
				return err
			}
		}
		return nil
	}
	return walk("content.blocks", blocks)
}

// validateContent checks blocks and properties against def, including that
// referenced pages exist with an allowed type.
func (e Engine) validateContent(ctx context.Context, tx *sql.Tx, content domain.Content, def definitions.PageDefinition) error {
	if err := validateBlocks(content.Blocks); err != nil {
		return err
	}
	if err := definitions.ValidateProperties(content.Properties, def); err != nil {
		var perr definitions.PropertyError
		if errors.As(err, &perr) {
			return ValidationError{Field: fmt.Sprintf("content.properties.%s.%s", perr.Group, perr.Field), Reason: perr.Reason}
		}
		return ValidationError{Field: "content.properties", Reason: err.Error()}
	}
	for _, ref := range definitions.PageRefs(content.Properties, def) {
		field := fmt.Sprintf("content.properties.%s.%s", ref.Group, ref.Field)
		target, err := e.Repo.GetPage(ctx, tx, ref.PageID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && target.DeletedAt != nil) {
			return ValidationError{Field: field, Reason: fmt.Sprintf("page %s does not exist", ref.PageID)}
		}
		if err != nil {
			return err
		}
		if len(ref.AllowedTypes) > 0 && !slices.Contains(ref.AllowedTypes, target.Type) {
			return ValidationError{Field: field, Reason: fmt.Sprintf("page %s has type %s, want one of %s", ref.PageID, target.Type, strings.Join(ref.AllowedTypes, ", "))}
		}
	}
	return nil
}

func (e Engine) checkSlugFree(ctx context.Context, tx *sql.Tx, slug, pageID string) error {
	taken, err := e.Repo.SlugTaken(ctx, tx, slug, pageID)
	if err != nil {
		return err
	}
	if taken {
		return ValidationError{Field: "slug", Reason: fmt.Sprintf("%s is already in use", slug)}
	}
	return nil
}
