package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
	"quizhost-service/internal/app"
	"quizhost-service/internal/domain"
)

const pgUniqueViolation = "23505"

// Aggregates are stored one row each: id, JSONB snapshot, version. Saves are
// compare-and-swap on the version column; a lost race surfaces as
// app.ErrVersionConflict and the caller replays its pure transition.

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes"`
	ID            string          `bun:"id,pk"`
	Data          json.RawMessage `bun:"data,type:jsonb"`
	Version       int64           `bun:"version,notnull"`
}

type teamRow struct {
	bun.BaseModel `bun:"table:teams"`
	QuizID        string          `bun:"quiz_id,pk"`
	TeamID        string          `bun:"team_id,pk"`
	Name          string          `bun:"name,notnull"`
	Data          json.RawMessage `bun:"data,type:jsonb"`
	Version       int64           `bun:"version,notnull"`
}

type packRow struct {
	bun.BaseModel `bun:"table:packs"`
	ID            string          `bun:"id,pk"`
	Data          json.RawMessage `bun:"data,type:jsonb"`
	Version       int64           `bun:"version,notnull"`
}

type expertRow struct {
	bun.BaseModel `bun:"table:experts"`
	ID            string          `bun:"id,pk"`
	Data          json.RawMessage `bun:"data,type:jsonb"`
	Version       int64           `bun:"version,notnull"`
}

// QuizStore is the Postgres app.QuizRepository.
type QuizStore struct {
	db *bun.DB
}

func NewQuizStore(db *bun.DB) *QuizStore {
	return &QuizStore{db: db}
}

func (s *QuizStore) Load(ctx context.Context, quizID string) (domain.Quiz, error) {
	var row quizRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", quizID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quiz{}, app.ErrNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(row.Data, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	quiz.Version = row.Version
	return quiz, nil
}

func (s *QuizStore) Save(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	prev := quiz.Version
	quiz.Version++
	data, err := json.Marshal(quiz)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("marshal quiz: %w", err)
	}
	row := quizRow{ID: quiz.Descriptor.ID, Data: data, Version: quiz.Version}
	if err := casSave(ctx, s.db, &row, prev, "id = ?", row.ID); err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

// TeamStore is the Postgres app.TeamRepository. The team name is lifted into
// its own column so registration collision checks stay a plain SELECT.
type TeamStore struct {
	db *bun.DB
}

func NewTeamStore(db *bun.DB) *TeamStore {
	return &TeamStore{db: db}
}

func (s *TeamStore) Load(ctx context.Context, quizID, teamID string) (domain.Team, error) {
	var row teamRow
	err := s.db.NewSelect().Model(&row).
		Where("quiz_id = ?", quizID).Where("team_id = ?", teamID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Team{}, app.ErrNotFound
	}
	if err != nil {
		return domain.Team{}, fmt.Errorf("load team: %w", err)
	}
	var team domain.Team
	if err := json.Unmarshal(row.Data, &team); err != nil {
		return domain.Team{}, fmt.Errorf("unmarshal team: %w", err)
	}
	team.Version = row.Version
	return team, nil
}

func (s *TeamStore) Save(ctx context.Context, team domain.Team) (domain.Team, error) {
	prev := team.Version
	team.Version++
	data, err := json.Marshal(team)
	if err != nil {
		return domain.Team{}, fmt.Errorf("marshal team: %w", err)
	}
	row := teamRow{
		QuizID:  team.Descriptor.QuizID,
		TeamID:  team.Descriptor.TeamID,
		Name:    team.Descriptor.Name,
		Data:    data,
		Version: team.Version,
	}
	if err := casSave(ctx, s.db, &row, prev, "quiz_id = ? AND team_id = ?", row.QuizID, row.TeamID); err != nil {
		return domain.Team{}, err
	}
	return team, nil
}

func (s *TeamStore) ListIDs(ctx context.Context, quizID string) ([]string, error) {
	var ids []string
	err := s.db.NewSelect().Model((*teamRow)(nil)).Column("team_id").
		Where("quiz_id = ?", quizID).Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("list team ids: %w", err)
	}
	return ids, nil
}

func (s *TeamStore) ListNames(ctx context.Context, quizID string) ([]string, error) {
	var names []string
	err := s.db.NewSelect().Model((*teamRow)(nil)).Column("name").
		Where("quiz_id = ?", quizID).Scan(ctx, &names)
	if err != nil {
		return nil, fmt.Errorf("list team names: %w", err)
	}
	return names, nil
}

// PackStore is the Postgres app.PackRepository. Writes go through bun with
// the same CAS discipline; the hot read path (tour materialization) goes
// through the pgx pool.
type PackStore struct {
	db   *bun.DB
	pool *pgxpool.Pool
}

func NewPackStore(db *bun.DB, pool *pgxpool.Pool) *PackStore {
	return &PackStore{db: db, pool: pool}
}

func (s *PackStore) Load(ctx context.Context, packID string) (domain.Pack, error) {
	var raw []byte
	var version int64
	err := s.pool.QueryRow(ctx, `SELECT data, version FROM packs WHERE id=$1`, packID).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Pack{}, app.ErrNotFound
	}
	if err != nil {
		return domain.Pack{}, fmt.Errorf("load pack: %w", err)
	}
	var pack domain.Pack
	if err := json.Unmarshal(raw, &pack); err != nil {
		return domain.Pack{}, fmt.Errorf("unmarshal pack: %w", err)
	}
	pack.Version = version
	return pack, nil
}

func (s *PackStore) Save(ctx context.Context, pack domain.Pack) (domain.Pack, error) {
	prev := pack.Version
	pack.Version++
	data, err := json.Marshal(pack)
	if err != nil {
		return domain.Pack{}, fmt.Errorf("marshal pack: %w", err)
	}
	row := packRow{ID: pack.ID, Data: data, Version: pack.Version}
	if err := casSave(ctx, s.db, &row, prev, "id = ?", row.ID); err != nil {
		return domain.Pack{}, err
	}
	return pack, nil
}

// ExpertStore is the Postgres app.ExpertRepository.
type ExpertStore struct {
	db *bun.DB
}

func NewExpertStore(db *bun.DB) *ExpertStore {
	return &ExpertStore{db: db}
}

func (s *ExpertStore) Load(ctx context.Context, expertID string) (domain.Expert, error) {
	var row expertRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", expertID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Expert{}, app.ErrNotFound
	}
	if err != nil {
		return domain.Expert{}, fmt.Errorf("load expert: %w", err)
	}
	var expert domain.Expert
	if err := json.Unmarshal(row.Data, &expert); err != nil {
		return domain.Expert{}, fmt.Errorf("unmarshal expert: %w", err)
	}
	expert.Version = row.Version
	return expert, nil
}

func (s *ExpertStore) Save(ctx context.Context, expert domain.Expert) (domain.Expert, error) {
	prev := expert.Version
	expert.Version++
	data, err := json.Marshal(expert)
	if err != nil {
		return domain.Expert{}, fmt.Errorf("marshal expert: %w", err)
	}
	row := expertRow{ID: expert.ID, Data: data, Version: expert.Version}
	if err := casSave(ctx, s.db, &row, prev, "id = ?", row.ID); err != nil {
		return domain.Expert{}, err
	}
	return expert, nil
}

// casSave inserts a first snapshot or updates an existing row only when the
// stored version still matches the one the transition started from.
func casSave(ctx context.Context, db *bun.DB, model interface{}, prevVersion int64, where string, args ...interface{}) error {
	if prevVersion == 0 {
		_, err := db.NewInsert().Model(model).Exec(ctx)
		if err != nil {
			var pgErr pgdriver.Error
			if errors.As(err, &pgErr) && pgErr.Field('C') == pgUniqueViolation {
				return app.ErrVersionConflict
			}
			return fmt.Errorf("insert: %w", err)
		}
		return nil
	}
	res, err := db.NewUpdate().Model(model).
		Where(where, args...).Where("version = ?", prevVersion).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return app.ErrVersionConflict
	}
	return nil
}
