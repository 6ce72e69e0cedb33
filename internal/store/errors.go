package store

import "errors"

// One sentinel per failure kind. The dispatcher owns the mapping from
// these to user-facing wire strings; nothing else renders them.
var (
	ErrUsernameAlreadyExists  = errors.New("username already exists")
	ErrUsernameNotFound       = errors.New("username not found")
	ErrInvalidPassword        = errors.New("invalid password")
	ErrAlreadyFollowing       = errors.New("already following")
	ErrNotFollowing           = errors.New("not following")
	ErrFollowSelf             = errors.New("cannot follow yourself")
	ErrInvalidTitle           = errors.New("invalid title")
	ErrInvalidContent         = errors.New("invalid content")
	ErrTooManyTags            = errors.New("too many tags")
	ErrPostNotFound           = errors.New("post not found")
	ErrPostNotInBlog          = errors.New("post not in blog")
	ErrAlreadyInBlog          = errors.New("post already in blog")
	ErrAlreadyRated           = errors.New("already rated")
	ErrRatedByAuthor          = errors.New("author cannot rate own post")
	ErrCommentedByAuthor      = errors.New("author cannot comment own post")
	ErrDatabaseNotInitialized = errors.New("database not initialized")
	ErrPersistenceFailed      = errors.New("persistence failed")
)
