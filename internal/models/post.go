package models

import "time"

// Author is the public slice of a user attached to posts and comments.
type Author struct {
	ID          string
	DisplayName string
	AvatarURL   *string
}

// Post is a community-shared result with images, caption and a comment tree.
// IsLiked and IsBookmarked are resolved per requesting user.
type Post struct {
	ID            string
	Author        Author
	Images        []string
	Caption       string
	LikesCount    int
	IsLiked       bool
	IsBookmarked  bool
	CommentsCount int
	Comments      []Comment
	CreatedAt     time.Time
}

// Comment is a tree node; replies are children keyed by ParentID. The shape
// is recursive but writes accept exactly one nesting level: a reply to a
// reply attaches to the top-level parent.
type Comment struct {
	ID         string
	PostID     string
	ParentID   *string
	Author     Author
	Content    string
	LikesCount int
	IsLiked    bool
	Replies    []Comment
	CreatedAt  time.Time
}
