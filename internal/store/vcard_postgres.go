package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mightymop/avatarbridge/internal/xmpp"
)

// PostgresVCard keeps the vCard photo slice in postgres, one row per bare
// JID. A cleared photo is stored as an empty row rather than deleted, which
// mirrors how the XMPP server keeps the PHOTO element with empty children.
type PostgresVCard struct {
	pool *pgxpool.Pool
}

func NewPostgresVCard(pool *pgxpool.Pool) *PostgresVCard {
	return &PostgresVCard{pool: pool}
}

func (s *PostgresVCard) Photo(ctx context.Context, user xmpp.JID) (Photo, error) {
	const query = `
		SELECT photo, mime_type FROM vcard_photos WHERE bare_jid = $1
	`
	var photo Photo
	row := s.pool.QueryRow(ctx, query, user.Bare())
	if err := row.Scan(&photo.Data, &photo.MimeType); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Photo{}, ErrNoPhoto
		}
		return Photo{}, fmt.Errorf("read vcard photo: %w", err)
	}
	if len(photo.Data) == 0 {
		return Photo{}, ErrNoPhoto
	}
	return photo, nil
}

func (s *PostgresVCard) SetPhoto(ctx context.Context, user xmpp.JID, data []byte, mimeType string) error {
	const query = `
		INSERT INTO vcard_photos (bare_jid, photo, mime_type, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (bare_jid)
		DO UPDATE SET photo = $2, mime_type = $3, updated_at = NOW()
	`
	if _, err := s.pool.Exec(ctx, query, user.Bare(), data, mimeType); err != nil {
		return fmt.Errorf("write vcard photo: %w", err)
	}
	return nil
}

func (s *PostgresVCard) ClearPhoto(ctx context.Context, user xmpp.JID) error {
	return s.SetPhoto(ctx, user, nil, "")
}
