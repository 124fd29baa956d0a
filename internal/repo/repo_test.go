package repo_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagewright/internal/db"
	"pagewright/internal/domain"
	"pagewright/internal/migrate"
	"pagewright/internal/repo"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) (repo.Repo, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	require.NoError(t, migrate.Migrate(ctx, conn))
	return repo.Repo{DB: conn}, ctx
}

func samplePage(id, slug, pageType, title string, created time.Time) domain.Page {
	return domain.Page{
		ID:        id,
		Slug:      slug,
		Type:      pageType,
		Title:     domain.Localized{"en": title},
		Tags:      []domain.Localized{{"en": "lore"}},
		AuthorIDs: []string{"u1"},
		Content: domain.Content{
			Blocks:     []domain.Block{{ID: "b1", Type: "TextBlock", Props: map[string]any{"text": "hi"}}},
			Properties: domain.Properties{"identity": {"name": map[string]any{"en": title}}},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestPageRoundTrip(t *testing.T) {
	r, ctx := newTestRepo(t)
	p := samplePage("p1", "aria", "Character", "Aria", t0)
	require.NoError(t, r.InsertPage(ctx, nil, p))

	got, err := r.GetPage(ctx, nil, "p1")
	require.NoError(t, err)
	assert.Equal(t, "aria", got.Slug)
	assert.Equal(t, domain.Localized{"en": "Aria"}, got.Title)
	assert.Nil(t, got.Description)
	assert.Equal(t, []string{"u1"}, got.AuthorIDs)
	assert.True(t, got.CreatedAt.Equal(t0))
	assert.Nil(t, got.PostedAt)
	require.Len(t, got.Content.Blocks, 1)
	assert.Equal(t, "hi", got.Content.Blocks[0].Props["text"])

	bySlug, err := r.GetPageBySlug(ctx, nil, "aria")
	require.NoError(t, err)
	assert.Equal(t, "p1", bySlug.ID)

	_, err = r.GetPage(ctx, nil, "missing")
	assert.ErrorIs(t, err, repo.ErrNotFound)

	err = r.InsertPage(ctx, nil, samplePage("p2", "aria", "Character", "Other", t0))
	assert.ErrorIs(t, err, repo.ErrSlugTaken)
}

func TestListPagesFiltersAndOrder(t *testing.T) {
	r, ctx := newTestRepo(t)
	require.NoError(t, r.InsertPage(ctx, nil, samplePage("p1", "bravo", "Character", "Bravo", t0)))
	require.NoError(t, r.InsertPage(ctx, nil, samplePage("p2", "alpha", "Character", "Alpha", t0.Add(time.Second))))
	require.NoError(t, r.InsertPage(ctx, nil, samplePage("p3", "loc", "Location", "Castle", t0.Add(2*time.Second))))
	require.NoError(t, r.SetPosted(ctx, nil, "p1", t0, t0, t0.Add(time.Minute)))
	require.NoError(t, r.SoftDeletePage(ctx, nil, "p3", t0.Add(time.Hour)))

	all, total, err := r.ListPages(ctx, repo.PageFilters{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, []string{"p1", "p2"}, pageIDs(all))

	byTitle, _, err := r.ListPages(ctx, repo.PageFilters{OrderBy: repo.OrderTitle, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, pageIDs(byTitle))

	published, total, err := r.ListPages(ctx, repo.PageFilters{Status: repo.PageStatusPublished, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, []string{"p1"}, pageIDs(published))

	drafts, _, err := r.ListPages(ctx, repo.PageFilters{Status: repo.PageStatusDraft, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, pageIDs(drafts))

	withDeleted, _, err := r.ListPages(ctx, repo.PageFilters{IncludeDeleted: true, Desc: true, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"p3", "p2", "p1"}, pageIDs(withDeleted))

	paged, total, err := r.ListPages(ctx, repo.PageFilters{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, []string{"p2"}, pageIDs(paged))

	slugs, err := r.ListSlugs(ctx, repo.PageFilters{Type: "Character"})
	require.NoError(t, err)
	require.Len(t, slugs, 2)
	assert.Equal(t, "alpha", slugs[0].Slug)
	assert.False(t, slugs[0].Published)
	assert.True(t, slugs[1].Published)
}

func TestApplyVersionOptimisticGuard(t *testing.T) {
	r, ctx := newTestRepo(t)
	require.NoError(t, r.InsertPage(ctx, nil, samplePage("p1", "aria", "Character", "Aria", t0)))
	v := domain.PageVersion{
		ID: "v1", PageID: "p1", Status: domain.VersionPending, Slug: "aria-2", Type: "Character",
		Title: domain.Localized{"en": "Aria II"}, CreatedBy: "u1", CreatedAt: t0,
	}
	later := t0.Add(time.Minute)
	require.ErrorIs(t, r.ApplyVersion(ctx, nil, v, t0.Add(time.Second), later), repo.ErrStale)
	require.NoError(t, r.ApplyVersion(ctx, nil, v, t0, later))

	got, err := r.GetPage(ctx, nil, "p1")
	require.NoError(t, err)
	assert.Equal(t, "aria-2", got.Slug)
	assert.Equal(t, domain.Localized{"en": "Aria II"}, got.Title)
	assert.True(t, got.UpdatedAt.Equal(later))

	require.ErrorIs(t, r.ApplyVersion(ctx, nil, v, t0, later), repo.ErrStale, "stale updated_at")
}

func TestVersionSequenceAndOrdering(t *testing.T) {
	r, ctx := newTestRepo(t)
	require.NoError(t, r.InsertPage(ctx, nil, samplePage("p1", "aria", "Character", "Aria", t0)))

	insert := func(tx *sql.Tx, id string, created time.Time) domain.PageVersion {
		v, err := r.InsertVersion(ctx, tx, domain.PageVersion{
			ID: id, PageID: "p1", Status: domain.VersionPending, Slug: "aria", Type: "Character",
			Title: domain.Localized{"en": id}, CreatedBy: "u1", CreatedAt: created,
		})
		require.NoError(t, err)
		return v
	}
	v1 := insert(nil, "v1", t0)
	v2 := insert(nil, "v2", t0)
	v3 := insert(nil, "v3", t0.Add(time.Second))
	assert.Equal(t, []int64{1, 2, 3}, []int64{v1.Seq, v2.Seq, v3.Seq})

	list, err := r.ListVersions(ctx, nil, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"v3", "v2", "v1"}, versionIDs(list))

	after, err := r.VersionsAfter(ctx, nil, "p1", v1.CreatedAt, v1.Seq)
	require.NoError(t, err)
	assert.Equal(t, []string{"v2", "v3"}, versionIDs(after), "equal timestamps tie-break on seq")

	require.NoError(t, r.SetVersionStatus(ctx, nil, "v3", domain.VersionRejected, nil, nil))
	after, err = r.VersionsAfter(ctx, nil, "p1", v1.CreatedAt, v1.Seq)
	require.NoError(t, err)
	assert.Equal(t, []string{"v2"}, versionIDs(after))

	approver := "admin-1"
	require.NoError(t, r.SetVersionStatus(ctx, nil, "v1", domain.VersionApproved, &approver, &t0))
	got, err := r.GetVersion(ctx, nil, "v1")
	require.NoError(t, err)
	assert.Equal(t, domain.VersionApproved, got.Status)
	require.NotNil(t, got.ApprovedBy)
	assert.Equal(t, approver, *got.ApprovedBy)

	require.NoError(t, r.DeletePage(ctx, nil, "p1"))
	_, err = r.GetVersion(ctx, nil, "v1")
	assert.ErrorIs(t, err, repo.ErrNotFound, "versions cascade with their page")
}

func TestActorsAndAPIKeys(t *testing.T) {
	r, ctx := newTestRepo(t)
	require.NoError(t, r.EnsureActor(ctx, nil, "u1", t0))
	a, err := r.GetActor(ctx, nil, "u1")
	require.NoError(t, err)
	assert.Equal(t, "user", a.Role)

	require.NoError(t, r.SetActorRole(ctx, nil, "u1", "admin", t0))
	require.NoError(t, r.EnsureActor(ctx, nil, "u1", t0))
	a, err = r.GetActor(ctx, nil, "u1")
	require.NoError(t, err)
	assert.Equal(t, "admin", a.Role)

	hash := repo.HashAPIKey("secret-key")
	require.NoError(t, r.InsertAPIKey(ctx, nil, domain.APIKey{ID: "k1", ActorID: "u1", Name: "ci", KeyHash: hash, CreatedAt: t0}))
	key, err := r.GetAPIKeyByHash(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, "u1", key.ActorID)
	assert.Equal(t, "ci", key.Name)

	keys, err := r.ListAPIKeys(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, keys, 1)
	require.NoError(t, r.DeleteAPIKey(ctx, "k1"))
	assert.ErrorIs(t, r.DeleteAPIKey(ctx, "k1"), repo.ErrNotFound)
}

func pageIDs(items []domain.Page) []string {
	out := make([]string, 0, len(items))
	for _, p := range items {
		out = append(out, p.ID)
	}
	return out
}

func versionIDs(items []domain.PageVersion) []string {
	out := make([]string, 0, len(items))
	for _, v := range items {
		out = append(out, v.ID)
	}
	return out
}
