package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/unihubs/campushub/backend/internal/ids"
	"github.com/unihubs/campushub/backend/internal/profiles"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")

	// ErrPostNotFound indicates the post does not exist.
	ErrPostNotFound = errors.New("board: post not found")
	// ErrInvalidPostForm indicates a required post field was left blank.
	ErrInvalidPostForm = errors.New("board: title and content are required")
	// ErrInvalidComment indicates an empty comment body.
	ErrInvalidComment = errors.New("board: comment content is required")
)

const (
	opServiceNew    = "board.service.new"
	opCreatePost    = "board.post.create"
	opGetPost       = "board.post.get"
	opListPosts     = "board.post.list"
	opCreateComment = "board.comment.create"
	opListComments  = "board.comment.list"
)

// ServiceError carries a dotted operation.reason code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// ServiceConfig describes the dependencies of the board operations.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
	Logger     *zap.Logger
}

// Service implements post and comment operations. Comment inserts and the
// per-post counter move in one transaction so the count cannot drift from the
// comment rows.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider ids.Provider
	logger     *zap.Logger
}

// NewService constructs the board service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// CreatePost inserts a post authored by the given profile. Hub existence and
// membership are the caller's concern; the board trusts its gate.
func (s *Service) CreatePost(ctx context.Context, author profiles.UserProfile, hubID, title, content string) (Post, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" || content == "" {
		return Post{}, ErrInvalidPostForm
	}

	postID, err := s.idProvider.NewID()
	if err != nil {
		return Post{}, newServiceError(opCreatePost, "id_generation_failed", err)
	}

	post := Post{
		ID:         postID,
		HubID:      hubID,
		AuthorID:   author.UID,
		AuthorName: author.Nickname,
		Title:      title,
		Content:    content,
		CreatedAt:  s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		s.logError(opCreatePost, err, zap.String("hub_id", hubID), zap.String("author_id", author.UID))
		return Post{}, newServiceError(opCreatePost, "insert_failed", err)
	}
	return post, nil
}

// GetPost returns a single post or ErrPostNotFound.
func (s *Service) GetPost(ctx context.Context, postID string) (Post, error) {
	var post Post
	err := s.db.WithContext(ctx).Where("id = ?", postID).Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Post{}, ErrPostNotFound
	}
	if err != nil {
		s.logError(opGetPost, err, zap.String("post_id", postID))
		return Post{}, newServiceError(opGetPost, "query_failed", err)
	}
	return post, nil
}

// ListPosts returns the hub's posts, newest first.
func (s *Service) ListPosts(ctx context.Context, hubID string) ([]Post, error) {
	var posts []Post
	if err := s.db.WithContext(ctx).Where("hub_id = ?", hubID).
		Order("created_at DESC").Find(&posts).Error; err != nil {
		s.logError(opListPosts, err, zap.String("hub_id", hubID))
		return nil, newServiceError(opListPosts, "query_failed", err)
	}
	return posts, nil
}

// CreateComment appends a comment and increments the post's counter in one
// transaction.
func (s *Service) CreateComment(ctx context.Context, author profiles.UserProfile, postID, content string) (Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Comment{}, ErrInvalidComment
	}

	commentID, err := s.idProvider.NewID()
	if err != nil {
		return Comment{}, newServiceError(opCreateComment, "id_generation_failed", err)
	}

	comment := Comment{
		ID:         commentID,
		PostID:     postID,
		AuthorID:   author.UID,
		AuthorName: author.Nickname,
		Content:    content,
		CreatedAt:  s.clock().UTC(),
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post Post
		if err := tx.Where("id = ?", postID).Take(&post).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPostNotFound
			}
			return newServiceError(opCreateComment, "post_select_failed", err)
		}
		if err := tx.Create(&comment).Error; err != nil {
			return newServiceError(opCreateComment, "insert_failed", err)
		}
		if err := tx.Model(&Post{}).Where("id = ?", postID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + ?", 1)).Error; err != nil {
			return newServiceError(opCreateComment, "counter_increment_failed", err)
		}
		return nil
	})
	if txErr != nil {
		if !errors.Is(txErr, ErrPostNotFound) {
			s.logError(opCreateComment, txErr, zap.String("post_id", postID), zap.String("author_id", author.UID))
		}
		return Comment{}, txErr
	}
	return comment, nil
}

// ListComments returns the post's comments, oldest first.
func (s *Service) ListComments(ctx context.Context, postID string) ([]Comment, error) {
	var comments []Comment
	if err := s.db.WithContext(ctx).Where("post_id = ?", postID).
		Order("created_at ASC").Find(&comments).Error; err != nil {
		s.logError(opListComments, err, zap.String("post_id", postID))
		return nil, newServiceError(opListComments, "query_failed", err)
	}
	return comments, nil
}

func (s *Service) logError(operation string, err error, fields ...zap.Field) {
	attrs := append([]zap.Field{zap.String("operation", operation), zap.Error(err)}, fields...)
	s.logger.Error("board service error", attrs...)
}
