// Package postgres implements the blog Repository on PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-blog/pkg/simpleblog"
)

// DBTX is an interface that allows us to use either a connection pool or a
// transaction.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simpleblog.Repository using PostgreSQL.
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository.
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with a connection pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

const blogColumns = `id, title, tags, content_key, cover_key, read_time, views, likes, created_at, updated_at, deleted_at`

func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "title") {
				return simpleblog.ErrDuplicateTitle
			}
			return fmt.Errorf("duplicate entry")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return simpleblog.ErrBlogNotFound
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (r *Repository) CreateBlog(ctx context.Context, blog *simpleblog.Blog) error {
	query := `
		INSERT INTO blogs (title, tags, content_key, cover_key, read_time, views, likes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		blog.Title, blog.Tags, nullable(blog.ContentKey), nullable(blog.CoverKey),
		blog.ReadTime, blog.Views, blog.Likes, blog.CreatedAt, blog.UpdatedAt,
	).Scan(&blog.ID)

	if err != nil {
		return r.handlePostgresError("create blog", err)
	}

	return nil
}

func (r *Repository) GetBlog(ctx context.Context, id int64, includeDeleted bool) (*simpleblog.Blog, error) {
	query := `SELECT ` + blogColumns + ` FROM blogs WHERE id = $1`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}

	blog, err := scanBlog(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError("get blog", err)
	}
	return blog, nil
}

func (r *Repository) ListBlogs(ctx context.Context, filter simpleblog.BlogFilter) ([]*simpleblog.Blog, int, error) {
	where := []string{"TRUE"}
	args := []interface{}{}

	if !filter.IncludeDeleted {
		where = append(where, "deleted_at IS NULL")
	}
	if len(filter.Tags) > 0 {
		args = append(args, filter.Tags)
		where = append(where, fmt.Sprintf("tags @> $%d", len(args)))
	}
	if filter.Query != "" {
		args = append(args, "%"+filter.Query+"%")
		where = append(where, fmt.Sprintf("title ILIKE $%d", len(args)))
	}

	clause := strings.Join(where, " AND ")

	var total int
	countQuery := `SELECT count(*) FROM blogs WHERE ` + clause
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, r.handlePostgresError("count blogs", err)
	}

	orderBy := "created_at DESC, id DESC"
	if filter.SortBy == simpleblog.SortByViews {
		orderBy = "views DESC, id DESC"
	}

	args = append(args, filter.PageSize, filter.Offset())
	query := fmt.Sprintf(`SELECT %s FROM blogs WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		blogColumns, clause, orderBy, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, r.handlePostgresError("list blogs", err)
	}
	defer rows.Close()

	blogs := []*simpleblog.Blog{}
	for rows.Next() {
		blog, err := scanBlog(rows)
		if err != nil {
			return nil, 0, r.handlePostgresError("list blogs", err)
		}
		blogs = append(blogs, blog)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, r.handlePostgresError("list blogs", err)
	}

	return blogs, total, nil
}

func (r *Repository) UpdateBlog(ctx context.Context, blog *simpleblog.Blog) error {
	query := `
		UPDATE blogs SET
			title = $2, tags = $3, content_key = $4, cover_key = $5,
			read_time = $6, updated_at = $7
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		blog.ID, blog.Title, blog.Tags, nullable(blog.ContentKey),
		nullable(blog.CoverKey), blog.ReadTime, blog.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update blog", err)
	}
	if tag.RowsAffected() == 0 {
		return simpleblog.ErrBlogNotFound
	}
	return nil
}

// IncrementViews is a single atomic read-modify-write at the store level, so
// concurrent increments from parallel requests are never lost.
func (r *Repository) IncrementViews(ctx context.Context, id int64) (int64, error) {
	query := `
		UPDATE blogs SET views = views + 1
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING views`

	var views int64
	if err := r.db.QueryRow(ctx, query, id).Scan(&views); err != nil {
		return 0, r.handlePostgresError("increment views", err)
	}
	return views, nil
}

func (r *Repository) SoftDeleteBlog(ctx context.Context, id int64) (*simpleblog.Blog, error) {
	query := `
		UPDATE blogs SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + blogColumns

	blog, err := scanBlog(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError("soft delete blog", err)
	}
	return blog, nil
}

func (r *Repository) RestoreBlog(ctx context.Context, id int64) (*simpleblog.Blog, error) {
	query := `
		UPDATE blogs SET deleted_at = NULL, updated_at = now()
		WHERE id = $1
		RETURNING ` + blogColumns

	blog, err := scanBlog(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError("restore blog", err)
	}
	return blog, nil
}

func (r *Repository) HardDeleteBlog(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM blogs WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("hard delete blog", err)
	}
	if tag.RowsAffected() == 0 {
		return simpleblog.ErrBlogNotFound
	}
	return nil
}

func scanBlog(row pgx.Row) (*simpleblog.Blog, error) {
	var blog simpleblog.Blog
	var contentKey, coverKey *string

	err := row.Scan(
		&blog.ID, &blog.Title, &blog.Tags, &contentKey, &coverKey,
		&blog.ReadTime, &blog.Views, &blog.Likes,
		&blog.CreatedAt, &blog.UpdatedAt, &blog.DeletedAt)
	if err != nil {
		return nil, err
	}

	if contentKey != nil {
		blog.ContentKey = *contentKey
	}
	if coverKey != nil {
		blog.CoverKey = *coverKey
	}
	if blog.Tags == nil {
		blog.Tags = []string{}
	}
	return &blog, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
