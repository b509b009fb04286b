package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prismfx/internal/models"
	"prismfx/internal/repository"
)

func strptr(s string) *string { return &s }

type fakePostStore struct {
	posts    map[string]models.Post
	comments map[string]models.Comment
	created  []models.Comment
}

func newFakePostStore() *fakePostStore {
	return &fakePostStore{
		posts:    make(map[string]models.Post),
		comments: make(map[string]models.Comment),
	}
}

func (f *fakePostStore) List(ctx context.Context, viewerID string, limit, offset int) ([]models.Post, error) {
	out := make([]models.Post, 0, len(f.posts))
	for _, post := range f.posts {
		out = append(out, post)
	}
	return out, nil
}

func (f *fakePostStore) GetByID(ctx context.Context, viewerID, id string) (models.Post, error) {
	post, ok := f.posts[id]
	if !ok {
		return models.Post{}, repository.ErrPostNotFound
	}
	return post, nil
}

func (f *fakePostStore) ListComments(ctx context.Context, viewerID, postID string) ([]models.Comment, error) {
	var out []models.Comment
	for _, comment := range f.comments {
		if comment.PostID == postID {
			out = append(out, comment)
		}
	}
	return out, nil
}

func (f *fakePostStore) GetComment(ctx context.Context, id string) (models.Comment, error) {
	comment, ok := f.comments[id]
	if !ok {
		return models.Comment{}, repository.ErrCommentNotFound
	}
	return comment, nil
}

func (f *fakePostStore) CreateComment(ctx context.Context, comment models.Comment) error {
	f.comments[comment.ID] = comment
	f.created = append(f.created, comment)
	return nil
}

func (f *fakePostStore) TogglePostLike(ctx context.Context, userID, postID string) (bool, int, error) {
	return true, 1, nil
}

func (f *fakePostStore) ToggleCommentLike(ctx context.Context, userID, commentID string) (bool, int, error) {
	return true, 1, nil
}

func (f *fakePostStore) ToggleBookmark(ctx context.Context, userID, postID string) (bool, error) {
	return true, nil
}

func newPostService(store *fakePostStore) *PostService {
	return NewPostService(store, zerolog.Nop())
}

func TestAddCommentRejectsMissingPost(t *testing.T) {
	store := newFakePostStore()
	svc := newPostService(store)

	_, err := svc.AddComment(context.Background(), models.Author{ID: "u1"}, "no-such-post", "hello", nil)

	assert.ErrorIs(t, err, repository.ErrPostNotFound)
	assert.Empty(t, store.created)
}

func TestAddCommentTopLevel(t *testing.T) {
	store := newFakePostStore()
	store.posts["p1"] = models.Post{ID: "p1"}
	svc := newPostService(store)

	comment, err := svc.AddComment(context.Background(), models.Author{ID: "u1"}, "p1", "  hello  ", nil)

	require.NoError(t, err)
	assert.Equal(t, "p1", comment.PostID)
	assert.Nil(t, comment.ParentID)
	assert.Equal(t, "hello", comment.Content)
	require.Len(t, store.created, 1)
}

func TestAddCommentReplyToReplyAttachesToTopLevelParent(t *testing.T) {
	store := newFakePostStore()
	store.posts["p1"] = models.Post{ID: "p1"}
	store.comments["c1"] = models.Comment{ID: "c1", PostID: "p1"}
	store.comments["r1"] = models.Comment{ID: "r1", PostID: "p1", ParentID: strptr("c1")}
	svc := newPostService(store)

	comment, err := svc.AddComment(context.Background(), models.Author{ID: "u1"}, "p1", "deep reply", strptr("r1"))

	require.NoError(t, err)
	require.NotNil(t, comment.ParentID)
	assert.Equal(t, "c1", *comment.ParentID)
}

func TestAddCommentRejectsParentFromOtherPost(t *testing.T) {
	store := newFakePostStore()
	store.posts["p1"] = models.Post{ID: "p1"}
	store.posts["p2"] = models.Post{ID: "p2"}
	store.comments["c1"] = models.Comment{ID: "c1", PostID: "p2"}
	svc := newPostService(store)

	_, err := svc.AddComment(context.Background(), models.Author{ID: "u1"}, "p1", "hi", strptr("c1"))

	assert.ErrorIs(t, err, repository.ErrCommentNotFound)
	assert.Empty(t, store.created)
}

func TestAddCommentRejectsEmptyContent(t *testing.T) {
	store := newFakePostStore()
	store.posts["p1"] = models.Post{ID: "p1"}
	svc := newPostService(store)

	_, err := svc.AddComment(context.Background(), models.Author{ID: "u1"}, "p1", "   ", nil)

	assert.ErrorIs(t, err, ErrEmptyComment)
}

func TestAssembleCommentTreeNestsReplies(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	flat := []models.Comment{
		{ID: "c1", Content: "first", CreatedAt: base},
		{ID: "c2", Content: "second", CreatedAt: base.Add(time.Minute)},
		{ID: "r1", ParentID: strptr("c1"), Content: "reply to first", CreatedAt: base.Add(2 * time.Minute)},
		{ID: "r2", ParentID: strptr("c1"), Content: "another reply", CreatedAt: base.Add(3 * time.Minute)},
		{ID: "r3", ParentID: strptr("c2"), Content: "reply to second", CreatedAt: base.Add(4 * time.Minute)},
	}

	tree := assembleCommentTree(flat)

	require.Len(t, tree, 2)
	assert.Equal(t, "c1", tree[0].ID)
	assert.Equal(t, "c2", tree[1].ID)

	require.Len(t, tree[0].Replies, 2)
	assert.Equal(t, "r1", tree[0].Replies[0].ID)
	assert.Equal(t, "r2", tree[0].Replies[1].ID)

	require.Len(t, tree[1].Replies, 1)
	assert.Equal(t, "r3", tree[1].Replies[0].ID)
}

func TestAssembleCommentTreePromotesOrphans(t *testing.T) {
	flat := []models.Comment{
		{ID: "c1", Content: "root"},
		{ID: "r1", ParentID: strptr("gone"), Content: "orphan"},
	}

	tree := assembleCommentTree(flat)

	require.Len(t, tree, 2)
	assert.Equal(t, "c1", tree[0].ID)
	assert.Equal(t, "r1", tree[1].ID)
	assert.Nil(t, tree[1].ParentID)
}

func TestAssembleCommentTreeEmpty(t *testing.T) {
	assert.Empty(t, assembleCommentTree(nil))
}
