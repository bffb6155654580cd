// internal/database/game.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/game"
)

// ErrNotConnected is returned when persistence is attempted without a pool.
var ErrNotConnected = errors.New("database not connected")

// RecordGameResult persists the final outcome of a game: the games row is marked completed
// and every seat gets a game_results row.
func RecordGameResult(ctx context.Context, pool *pgxpool.Pool, result game.Result) error {
	if pool == nil {
		return ErrNotConnected
	}
	err := pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		upsertGame := `
			INSERT INTO games (id, status, winner_id, end_time)
			VALUES ($1, 'completed', $2, NOW())
			ON CONFLICT (id)
			DO UPDATE SET status = 'completed', winner_id = $2, end_time = NOW()
		`
		if _, e := tx.Exec(ctx, upsertGame, result.GameID, result.Winner); e != nil {
			return e
		}

		batch := &pgx.Batch{}
		for _, row := range resultRows(result) {
			batch.Queue(`
				INSERT INTO game_results (game_id, player_id, name, turn_index, cards_left, score, did_win)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (game_id, player_id)
				DO UPDATE SET cards_left = $5, score = $6, did_win = $7
			`, row...)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("tx upsert game or results: %w", err)
	}
	return nil
}

// resultRows flattens result into game_results column values.
func resultRows(result game.Result) [][]any {
	rows := make([][]any, 0, len(result.Players))
	for _, p := range result.Players {
		rows = append(rows, []any{
			result.GameID, p.PlayerID, p.Name, p.TurnIndex, p.CardsLeft, p.Score, p.PlayerID == result.Winner,
		})
	}
	return rows
}

// InsertActions writes a batch of action records in one transaction. The games row is created
// on first sight, and a game_end action completes it.
func InsertActions(ctx context.Context, pool *pgxpool.Pool, records []cache.GameActionRecord) error {
	if pool == nil {
		return ErrNotConnected
	}
	if len(records) == 0 {
		return nil
	}
	return pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range records {
			if err := insertGameActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insertGameActionTx: %w", err)
			}
		}
		return nil
	})
}

// insertGameActionTx inserts a single action record into the game_actions table and
// upserts the game row if necessary.
func insertGameActionTx(ctx context.Context, tx pgx.Tx, rec cache.GameActionRecord) error {
	upsertGameQ := `
		INSERT INTO games (id, status, start_time)
		VALUES ($1, 'in_progress', NOW())
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, upsertGameQ, rec.GameID); err != nil {
		return err
	}

	jsonPayload, err := json.Marshal(rec.ActionPayload)
	if err != nil {
		return err
	}
	actionInsertQ := `
		INSERT INTO game_actions (
			game_id, action_index, actor_user_id, action_type, action_payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (game_id, action_index) DO NOTHING
	`
	_, err = tx.Exec(ctx, actionInsertQ,
		rec.GameID, rec.ActionIndex, rec.ActorUserID, rec.ActionType, jsonPayload, actionTime(rec),
	)
	if err != nil {
		return err
	}

	if rec.ActionType == game.ActionGameEnd {
		finalizeQ := `
			UPDATE games
			SET status = 'completed', winner_id = $2, end_time = $3
			WHERE id = $1 AND status = 'in_progress'
		`
		if _, err := tx.Exec(ctx, finalizeQ, rec.GameID, rec.ActorUserID, actionTime(rec)); err != nil {
			return err
		}
	}
	return nil
}

// MarkAbandoned flags games that saw no action since cutoff and never completed.
func MarkAbandoned(ctx context.Context, pool *pgxpool.Pool, cutoff time.Time) (int64, error) {
	if pool == nil {
		return 0, ErrNotConnected
	}
	tag, err := pool.Exec(ctx, `
		UPDATE games g
		SET status = 'abandoned', end_time = NOW()
		WHERE g.status = 'in_progress'
		AND NOT EXISTS (
			SELECT 1 FROM game_actions a WHERE a.game_id = g.id AND a.created_at >= $1
		)
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("marking games abandoned: %w", err)
	}
	return tag.RowsAffected(), nil
}

// actionTime is the record's timestamp, falling back to now for records without one.
func actionTime(rec cache.GameActionRecord) time.Time {
	if rec.Timestamp <= 0 {
		return time.Now()
	}
	return time.UnixMilli(rec.Timestamp)
}

// ActionStore binds the action log persistence to one pool.
type ActionStore struct {
	Pool *pgxpool.Pool
}

func (s ActionStore) InsertActions(ctx context.Context, records []cache.GameActionRecord) error {
	return InsertActions(ctx, s.Pool, records)
}

func (s ActionStore) MarkAbandoned(ctx context.Context, cutoff time.Time) (int64, error) {
	return MarkAbandoned(ctx, s.Pool, cutoff)
}
