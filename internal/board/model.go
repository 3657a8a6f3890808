package board

import "time"

// Post is a board entry scoped to a single hub. The author nickname is
// snapshotted at write time so posts survive profile edits and deletions.
type Post struct {
	ID           string    `gorm:"column:id;primaryKey" json:"id"`
	HubID        string    `gorm:"column:hub_id;index" json:"hubId"`
	AuthorID     string    `gorm:"column:author_id" json:"authorId"`
	AuthorName   string    `gorm:"column:author_name" json:"authorName"`
	Title        string    `gorm:"column:title" json:"title"`
	Content      string    `gorm:"column:content" json:"content"`
	CommentCount int64     `gorm:"column:comment_count" json:"commentCount"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"createdAt"`
}

func (Post) TableName() string {
	return "posts"
}

// Comment is a flat reply to a post. Threading is not supported.
type Comment struct {
	ID         string    `gorm:"column:id;primaryKey" json:"id"`
	PostID     string    `gorm:"column:post_id;index" json:"postId"`
	AuthorID   string    `gorm:"column:author_id" json:"authorId"`
	AuthorName string    `gorm:"column:author_name" json:"authorName"`
	Content    string    `gorm:"column:content" json:"content"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"createdAt"`
}

func (Comment) TableName() string {
	return "comments"
}
