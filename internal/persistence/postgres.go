package persistence

import (
	"context"
	"errors"
	"fmt"

	crdbpgx "github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgxv5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vidfriends/shorts/internal/db"
	"github.com/vidfriends/shorts/internal/models"
)

// Postgres provides PostgreSQL-backed persistence. Multi-statement writes run
// in a retried transaction so the like counter and the cascade stay atomic.
type Postgres struct {
	pool db.Pool
}

// NewPostgres constructs a backend over pool.
func NewPostgres(pool db.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// CreateUser persists a new user record.
func (p *Postgres) CreateUser(ctx context.Context, user models.User) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, pwd, email, display_name)
        VALUES ($1, $2, $3, $4)
    `, user.ID, user.Password, user.Email, user.DisplayName)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetUser fetches a user by id.
func (p *Postgres) GetUser(ctx context.Context, userID string) (models.User, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, pwd, email, display_name
        FROM users
        WHERE id = $1
    `, userID)

	var user models.User
	if err := row.Scan(&user.ID, &user.Password, &user.Email, &user.DisplayName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, models.ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user: %w", err)
	}

	return user, nil
}

// UpdateUser overwrites the mutable fields of a user.
func (p *Postgres) UpdateUser(ctx context.Context, user models.User) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET pwd = $2, email = $3, display_name = $4
        WHERE id = $1
    `, user.ID, user.Password, user.Email, user.DisplayName)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// DeleteUser removes the user record only. Owned data goes through DeleteUserData.
func (p *Postgres) DeleteUser(ctx context.Context, userID string) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// SearchUsers matches pattern against user ids, ignoring case.
func (p *Postgres) SearchUsers(ctx context.Context, pattern string) ([]models.User, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, pwd, email, display_name
        FROM users
        WHERE strpos(upper(id), upper($1)) > 0
        ORDER BY id
    `, pattern)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}

	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.User, error) {
		var user models.User
		err := row.Scan(&user.ID, &user.Password, &user.Email, &user.DisplayName)
		return user, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}

	return users, nil
}

// CreateShort persists a new short with a zero like counter.
func (p *Postgres) CreateShort(ctx context.Context, short models.Short) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO shorts (id, owner_id, blob_url, created_at, total_likes)
        VALUES ($1, $2, $3, $4, 0)
    `, short.ID, short.OwnerID, short.BlobURL, short.Timestamp)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrConflict
		}
		return fmt.Errorf("insert short: %w", err)
	}

	return nil
}

// GetShort fetches a short by id.
func (p *Postgres) GetShort(ctx context.Context, shortID string) (models.Short, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return models.Short{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, owner_id, blob_url, created_at, total_likes
        FROM shorts
        WHERE id = $1
    `, shortID)

	short, err := scanShort(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Short{}, models.ErrNotFound
		}
		return models.Short{}, fmt.Errorf("select short: %w", err)
	}

	return short, nil
}

// DeleteShort removes a short and its like edges in one transaction.
func (p *Postgres) DeleteShort(ctx context.Context, shortID string) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return crdbpgx.ExecuteTx(ctx, conn, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM likes WHERE short_id = $1`, shortID); err != nil {
			return fmt.Errorf("delete short likes: %w", err)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM shorts WHERE id = $1`, shortID)
		if err != nil {
			return fmt.Errorf("delete short: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrNotFound
		}
		return nil
	})
}

// ShortsByOwner lists the owner's shorts, newest first.
func (p *Postgres) ShortsByOwner(ctx context.Context, ownerID string) ([]models.Short, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, owner_id, blob_url, created_at, total_likes
        FROM shorts
        WHERE owner_id = $1
        ORDER BY created_at DESC, id
    `, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query shorts: %w", err)
	}

	shorts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Short, error) {
		return scanShort(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan shorts: %w", err)
	}

	return shorts, nil
}

// Follow inserts a follow edge if it is absent.
func (p *Postgres) Follow(ctx context.Context, follower, followee string) (bool, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	edge := models.NewFollowing(follower, followee)
	tag, err := conn.Exec(ctx, `
        INSERT INTO following (id, follower, followee)
        VALUES ($1, $2, $3)
        ON CONFLICT DO NOTHING
    `, edge.ID, edge.Follower, edge.Followee)
	if err != nil {
		return false, fmt.Errorf("insert following: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// Unfollow deletes a follow edge if it is present.
func (p *Postgres) Unfollow(ctx context.Context, follower, followee string) (bool, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM following WHERE follower = $1 AND followee = $2`, follower, followee)
	if err != nil {
		return false, fmt.Errorf("delete following: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// Followers lists the users following userID.
func (p *Postgres) Followers(ctx context.Context, userID string) ([]string, error) {
	return p.queryStrings(ctx, "followers", `SELECT follower FROM following WHERE followee = $1 ORDER BY follower`, userID)
}

// Followees lists the users userID follows.
func (p *Postgres) Followees(ctx context.Context, userID string) ([]string, error) {
	return p.queryStrings(ctx, "followees", `SELECT followee FROM following WHERE follower = $1 ORDER BY followee`, userID)
}

// Like inserts the edge and increments the counter in the same transaction.
func (p *Postgres) Like(ctx context.Context, like models.Like) (bool, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var inserted bool
	err = crdbpgx.ExecuteTx(ctx, conn, pgx.TxOptions{}, func(tx pgx.Tx) error {
		inserted = false
		tag, err := tx.Exec(ctx, `
            INSERT INTO likes (user_id, short_id, owner_id)
            VALUES ($1, $2, $3)
            ON CONFLICT DO NOTHING
        `, like.UserID, like.ShortID, like.OwnerID)
		if err != nil {
			return fmt.Errorf("insert like: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		tag, err = tx.Exec(ctx, `UPDATE shorts SET total_likes = total_likes + 1 WHERE id = $1`, like.ShortID)
		if err != nil {
			return fmt.Errorf("increment likes: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrNotFound
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return inserted, nil
}

// Unlike deletes the edge and decrements the counter in the same transaction.
func (p *Postgres) Unlike(ctx context.Context, userID, shortID string) (bool, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var removed bool
	err = crdbpgx.ExecuteTx(ctx, conn, pgx.TxOptions{}, func(tx pgx.Tx) error {
		removed = false
		tag, err := tx.Exec(ctx, `DELETE FROM likes WHERE user_id = $1 AND short_id = $2`, userID, shortID)
		if err != nil {
			return fmt.Errorf("delete like: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		if _, err := tx.Exec(ctx, `UPDATE shorts SET total_likes = total_likes - 1 WHERE id = $1`, shortID); err != nil {
			return fmt.Errorf("decrement likes: %w", err)
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return removed, nil
}

// Likes lists the users who liked shortID.
func (p *Postgres) Likes(ctx context.Context, shortID string) ([]string, error) {
	return p.queryStrings(ctx, "likes", `SELECT user_id FROM likes WHERE short_id = $1 ORDER BY user_id`, shortID)
}

// DeleteUserData removes everything owned by or referencing userID in one
// transaction and reports what was touched.
func (p *Postgres) DeleteUserData(ctx context.Context, userID string) (Cascade, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return Cascade{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var out Cascade
	err = crdbpgx.ExecuteTx(ctx, conn, pgx.TxOptions{}, func(tx pgx.Tx) error {
		out = Cascade{}
		var err error

		if out.Shorts, err = collectStrings(ctx, tx, `
            DELETE FROM shorts WHERE owner_id = $1 RETURNING id
        `, userID); err != nil {
			return fmt.Errorf("delete shorts: %w", err)
		}

		if _, err := tx.Exec(ctx, `
            DELETE FROM likes WHERE owner_id = $1 OR short_id = ANY($2)
        `, userID, out.Shorts); err != nil {
			return fmt.Errorf("delete received likes: %w", err)
		}

		if out.Unliked, err = collectStrings(ctx, tx, `
            DELETE FROM likes WHERE user_id = $1 RETURNING short_id
        `, userID); err != nil {
			return fmt.Errorf("delete given likes: %w", err)
		}

		if len(out.Unliked) > 0 {
			if _, err := tx.Exec(ctx, `
                UPDATE shorts SET total_likes = total_likes - 1 WHERE id = ANY($1)
            `, out.Unliked); err != nil {
				return fmt.Errorf("decrement likes: %w", err)
			}
		}

		if out.Followers, err = collectStrings(ctx, tx, `
            DELETE FROM following WHERE followee = $1 RETURNING follower
        `, userID); err != nil {
			return fmt.Errorf("delete followers: %w", err)
		}

		if out.Followees, err = collectStrings(ctx, tx, `
            DELETE FROM following WHERE follower = $1 RETURNING followee
        `, userID); err != nil {
			return fmt.Errorf("delete followees: %w", err)
		}

		return nil
	})
	if err != nil {
		return Cascade{}, err
	}

	return out, nil
}

// Close releases the pool.
func (p *Postgres) Close(context.Context) error {
	p.pool.Close()
	return nil
}

func (p *Postgres) queryStrings(ctx context.Context, what, sql string, arg string) ([]string, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	ids, err := collectStrings(ctx, conn, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", what, err)
	}
	return ids, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func collectStrings(ctx context.Context, q querier, sql string, args ...any) ([]string, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func scanShort(row pgx.Row) (models.Short, error) {
	var short models.Short
	err := row.Scan(&short.ID, &short.OwnerID, &short.BlobURL, &short.Timestamp, &short.TotalLikes)
	return short, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ Backend = (*Postgres)(nil)
