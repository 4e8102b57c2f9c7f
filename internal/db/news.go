package db

import (
	"context"
	"fmt"

	"ato_site/internal/metrics"
	"ato_site/internal/models"
)

// ListNews возвращает новости, отсортированные по дате по убыванию.
func (db *Database) ListNews(ctx context.Context) (posts []models.NewsPost, err error) {
	defer func() { metrics.Observe("db.list_news", err) }()

	rows, err := db.Pool.Query(ctx, `
        SELECT id, title, date, COALESCE(brief_description, ''),
               COALESCE(description, ''), COALESCE(image, '')
        FROM "RecentNews"
        ORDER BY date DESC
    `)
	if err != nil {
		return nil, fmt.Errorf("list news: %w", err)
	}
	defer rows.Close()

	posts = []models.NewsPost{}
	for rows.Next() {
		var p models.NewsPost
		if err := rows.Scan(&p.ID, &p.Title, &p.Date, &p.BriefDescription, &p.Description, &p.ImageURL); err != nil {
			return nil, fmt.Errorf("scan news post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// CreateNews добавляет новость и возвращает её id.
func (db *Database) CreateNews(ctx context.Context, p models.NewsPost) (id int, err error) {
	defer func() { metrics.Observe("db.create_news", err) }()

	if err := p.Validate(); err != nil {
		return 0, err
	}
	err = db.Pool.QueryRow(ctx, `
        INSERT INTO "RecentNews" (title, date, brief_description, description, image)
        VALUES ($1, $2, $3, $4, NULLIF($5, ''))
        RETURNING id
    `, p.Title, p.Date, p.BriefDescription, p.Description, p.ImageURL).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create news: %w", err)
	}
	return id, nil
}

// UpdateNews перезаписывает поля новости с id p.ID.
func (db *Database) UpdateNews(ctx context.Context, p models.NewsPost) (err error) {
	defer func() { metrics.Observe("db.update_news", err) }()

	if err := p.Validate(); err != nil {
		return err
	}
	tag, err := db.Pool.Exec(ctx, `
        UPDATE "RecentNews"
        SET title = $1, date = $2, brief_description = $3, description = $4, image = NULLIF($5, '')
        WHERE id = $6
    `, p.Title, p.Date, p.BriefDescription, p.Description, p.ImageURL, p.ID)
	if err != nil {
		return fmt.Errorf("update news %d: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update news %d: %w", p.ID, models.ErrInvalidRecord)
	}
	return nil
}

// DeleteNews удаляет все новости с id из ids одним запросом.
func (db *Database) DeleteNews(ctx context.Context, ids []int) (err error) {
	defer func() { metrics.Observe("db.delete_news", err) }()

	if len(ids) == 0 {
		return nil
	}
	if _, err = db.Pool.Exec(ctx, `DELETE FROM "RecentNews" WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("delete news: %w", err)
	}
	return nil
}

// GetInterestLink читает ссылку на форму для кандидатов из строки id = 1.
func (db *Database) GetInterestLink(ctx context.Context) (link models.InterestFormLink, err error) {
	defer func() { metrics.Observe("db.get_interest_link", err) }()

	err = db.Pool.QueryRow(ctx, `
        SELECT id, COALESCE(link, '') FROM "RushLink" WHERE id = $1
    `, models.InterestFormLinkID).Scan(&link.ID, &link.Link)
	if err != nil {
		return models.InterestFormLink{}, fmt.Errorf("get interest form link: %w", err)
	}
	return link, nil
}

// UpdateInterestLink обновляет ссылку в строке id = 1.
func (db *Database) UpdateInterestLink(ctx context.Context, link string) (err error) {
	defer func() { metrics.Observe("db.update_interest_link", err) }()

	tag, err := db.Pool.Exec(ctx, `UPDATE "RushLink" SET link = $1 WHERE id = $2`, link, models.InterestFormLinkID)
	if err != nil {
		return fmt.Errorf("update interest form link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update interest form link: %w", models.ErrInvalidRecord)
	}
	return nil
}
