package db

import (
	"context"
	"errors"
	"fmt"

	"ato_site/internal/metrics"
	"ato_site/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoSuchMember возвращается, если обновление по должности не затронуло ни одной строки.
var ErrNoSuchMember = errors.New("no exec board row for position")

// BatchError сообщает, на какой должности оборвалось пакетное сохранение состава.
// Транзакция при этом откатывается целиком.
type BatchError struct {
	Position string
	Index    int
	Err      error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("save exec board: member %d (%q): %v", e.Index, e.Position, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Database инкапсулирует пул соединений к PostgreSQL проекта Supabase.
type Database struct {
	Pool *pgxpool.Pool
}

// NewDB создаёт новый пул соединений по connString и возвращает Database.
func NewDB(ctx context.Context, connString string) (*Database, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %v", err)
	}
	return &Database{Pool: pool}, nil
}

// Close закрывает пул соединений.
func (db *Database) Close() {
	db.Pool.Close()
}

// Ping проверяет доступность базы.
func (db *Database) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// ListCarousel возвращает изображения карусели, пропуская пустые URL.
func (db *Database) ListCarousel(ctx context.Context) (images []models.CarouselImage, err error) {
	defer func() { metrics.Observe("db.list_carousel", err) }()

	rows, err := db.Pool.Query(ctx, `SELECT COALESCE(img_src, '') FROM "HomePage" ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list carousel: %w", err)
	}
	defer rows.Close()

	images = []models.CarouselImage{}
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, fmt.Errorf("scan carousel: %w", err)
		}
		if src == "" {
			continue
		}
		images = append(images, models.CarouselImage{URL: src})
	}
	return images, rows.Err()
}

// InsertCarousel добавляет строку с публичным URL загруженного изображения.
func (db *Database) InsertCarousel(ctx context.Context, url string) (err error) {
	defer func() { metrics.Observe("db.insert_carousel", err) }()

	if _, err = db.Pool.Exec(ctx, `INSERT INTO "HomePage" (img_src) VALUES ($1)`, url); err != nil {
		return fmt.Errorf("insert carousel image: %w", err)
	}
	return nil
}

// DeleteCarousel удаляет строку с точным совпадением URL. removeFile вызывается
// внутри транзакции после удаления строки: если он вернул ошибку, удаление строки
// откатывается. Если строки нет, removeFile не вызывается и возвращается nil.
func (db *Database) DeleteCarousel(ctx context.Context, url string, removeFile func(context.Context) error) (err error) {
	defer func() { metrics.Observe("db.delete_carousel", err) }()

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete carousel: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM "HomePage" WHERE img_src = $1`, url)
	if err != nil {
		return fmt.Errorf("delete carousel row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	if removeFile != nil {
		if err := removeFile(ctx); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete carousel: %w", err)
	}
	return nil
}

// ListExec возвращает весь состав совета, отсортированный по id.
func (db *Database) ListExec(ctx context.Context) (members []models.ExecMember, err error) {
	defer func() { metrics.Observe("db.list_exec", err) }()

	rows, err := db.Pool.Query(ctx, `
        SELECT COALESCE(id, 0), position, COALESCE(name, ''), COALESCE(grade, ''),
               COALESCE(major, ''), COALESCE(email, ''), COALESCE(picture, '')
        FROM "ExecBoard"
    `)
	if err != nil {
		return nil, fmt.Errorf("list exec board: %w", err)
	}
	defer rows.Close()

	members = []models.ExecMember{}
	for rows.Next() {
		var m models.ExecMember
		var position *string
		if err := rows.Scan(&m.ID, &position, &m.Name, &m.Grade, &m.Major, &m.Email, &m.PictureURL); err != nil {
			return nil, fmt.Errorf("scan exec member: %w", err)
		}
		if position != nil {
			m.Position = *position
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list exec board: %w", err)
	}

	models.SortRoster(members)
	return members, nil
}

// SaveExec обновляет изменяемые поля всех членов совета по должности в одной
// транзакции: либо сохраняются все, либо ни один.
func (db *Database) SaveExec(ctx context.Context, members []models.ExecMember) (err error) {
	defer func() { metrics.Observe("db.save_exec", err) }()

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save exec board: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for i, m := range members {
		if err := m.Validate(); err != nil {
			return &BatchError{Position: m.Position, Index: i, Err: err}
		}
		batch.Queue(`
            UPDATE "ExecBoard"
            SET name = $1, grade = $2, major = $3, email = $4, picture = $5
            WHERE position = $6
        `, m.Name, m.Grade, m.Major, m.Email, m.PictureURL, m.Position)
	}

	results := tx.SendBatch(ctx, batch)
	for i, m := range members {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return &BatchError{Position: m.Position, Index: i, Err: err}
		}
		if tag.RowsAffected() == 0 {
			results.Close()
			return &BatchError{Position: m.Position, Index: i, Err: ErrNoSuchMember}
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("save exec board: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save exec board: %w", err)
	}
	return nil
}
