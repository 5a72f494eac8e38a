package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"serp-go/pkg/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One connection serializes writers and keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	id                     TEXT PRIMARY KEY,
	user_id                TEXT NOT NULL DEFAULT '',
	target_domain          TEXT NOT NULL,
	keywords               TEXT NOT NULL DEFAULT '[]',
	additional_competitors TEXT NOT NULL DEFAULT '[]',
	status                 TEXT NOT NULL DEFAULT 'pending',
	total_keywords         INTEGER NOT NULL DEFAULT 0,
	total_competitors      INTEGER NOT NULL DEFAULT 0,
	overall_score          INTEGER,
	progress               TEXT NOT NULL DEFAULT '{}',
	created_at             TEXT NOT NULL,
	updated_at             TEXT NOT NULL,
	completed_at           TEXT
);

CREATE TABLE IF NOT EXISTS keyword_analyses (
	analysis_id          TEXT NOT NULL REFERENCES analyses(id),
	keyword              TEXT NOT NULL,
	target_position      INTEGER,
	competitor_positions TEXT NOT NULL DEFAULT '[]',
	competition_level    TEXT NOT NULL,
	search_volume        INTEGER,
	checked_at           TEXT NOT NULL,
	PRIMARY KEY (analysis_id, keyword)
);

CREATE TABLE IF NOT EXISTS competitor_domains (
	analysis_id          TEXT NOT NULL REFERENCES analyses(id),
	ordinal              INTEGER NOT NULL,
	domain               TEXT NOT NULL,
	total_keywords_found INTEGER NOT NULL,
	average_position     REAL NOT NULL,
	share_of_voice       REAL NOT NULL,
	relevance_score      REAL NOT NULL,
	is_auto_discovered   INTEGER NOT NULL,
	PRIMARY KEY (analysis_id, domain)
);

CREATE TABLE IF NOT EXISTS opportunities (
	analysis_id              TEXT NOT NULL REFERENCES analyses(id),
	ordinal                  INTEGER NOT NULL,
	keyword                  TEXT NOT NULL,
	opportunity_type         TEXT NOT NULL,
	target_position          INTEGER,
	best_competitor_position INTEGER NOT NULL,
	best_competitor_domain   TEXT NOT NULL,
	priority_score           INTEGER NOT NULL,
	gap_size                 INTEGER NOT NULL,
	recommended_action       TEXT NOT NULL,
	PRIMARY KEY (analysis_id, ordinal)
);

CREATE TABLE IF NOT EXISTS unresolved_keywords (
	analysis_id TEXT NOT NULL REFERENCES analyses(id),
	keyword     TEXT NOT NULL,
	attempts    INTEGER NOT NULL,
	last_error  TEXT NOT NULL,
	failed_at   TEXT NOT NULL,
	PRIMARY KEY (analysis_id, keyword)
);

CREATE INDEX IF NOT EXISTS idx_analyses_status ON analyses(status);
CREATE INDEX IF NOT EXISTS idx_analyses_user_id ON analyses(user_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "sqlite: parse time %q", value)
	}
	return t, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	return model.IntPtr(int(v.Int64))
}

func marshalJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal")
	}
	return string(data), nil
}

func (s *SQLiteStore) CreateAnalysis(ctx context.Context, analysis *model.Analysis) error {
	keywords, err := marshalJSON(nonNil(analysis.Keywords))
	if err != nil {
		return err
	}
	competitors, err := marshalJSON(nonNil(analysis.AdditionalCompetitors))
	if err != nil {
		return err
	}
	progress, err := marshalJSON(analysis.Progress)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analyses (id, user_id, target_domain, keywords, additional_competitors, status, progress, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		analysis.ID, analysis.UserID, analysis.TargetDomain, keywords, competitors,
		string(analysis.Status), progress, formatTime(analysis.CreatedAt), formatTime(analysis.UpdatedAt),
	)
	return eris.Wrapf(err, "sqlite: insert analysis %s", analysis.ID)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func (s *SQLiteStore) GetAnalysis(ctx context.Context, id string) (*model.Analysis, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, target_domain, keywords, additional_competitors, status, total_keywords,
		        total_competitors, overall_score, progress, created_at, updated_at, completed_at
		 FROM analyses WHERE id = ?`,
		id,
	)

	var a model.Analysis
	var status, keywords, competitors, prog, createdAt, updatedAt string
	var score sql.NullInt64
	var completedAt sql.NullString
	err := row.Scan(&a.ID, &a.UserID, &a.TargetDomain, &keywords, &competitors, &status,
		&a.TotalKeywords, &a.TotalCompetitors, &score, &prog, &createdAt, &updatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("analysis %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get analysis %s", id)
	}

	a.Status = model.Status(status)
	a.OverallScore = intPtr(score)
	if err := json.Unmarshal([]byte(keywords), &a.Keywords); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal keywords")
	}
	if err := json.Unmarshal([]byte(competitors), &a.AdditionalCompetitors); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal additional competitors")
	}
	if err := json.Unmarshal([]byte(prog), &a.Progress); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal progress")
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return nil, err
		}
		a.CompletedAt = &t
	}
	return &a, nil
}

func (s *SQLiteStore) UpdateProgress(ctx context.Context, id string, progress model.Progress) error {
	prog, err := marshalJSON(progress)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE analyses SET progress = ?, updated_at = ? WHERE id = ? AND status NOT IN (?, ?)`,
		prog, formatTime(time.Now()), id, string(model.StatusCompleted), string(model.StatusFailed),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update progress %s", id)
	}
	return s.checkConditionalUpdate(ctx, res, id)
}

func (s *SQLiteStore) TransitionStatus(ctx context.Context, id string, from, to model.Status, progress model.Progress) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	prog, err := marshalJSON(progress)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE analyses SET status = ?, progress = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), prog, formatTime(time.Now()), id, string(from),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: transition analysis %s", id)
	}
	return s.checkConditionalUpdate(ctx, res, id)
}

func (s *SQLiteStore) CompleteAnalysis(ctx context.Context, id string, completion model.Completion, progress model.Progress) error {
	prog, err := marshalJSON(progress)
	if err != nil {
		return err
	}
	now := formatTime(time.Now())

	res, err := s.db.ExecContext(ctx,
		`UPDATE analyses
		 SET status = ?, total_keywords = ?, total_competitors = ?, overall_score = ?,
		     progress = ?, completed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(model.StatusCompleted), completion.TotalKeywords, completion.TotalCompetitors,
		completion.OverallScore, prog, now, now, id, string(model.StatusAnalyzing),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete analysis %s", id)
	}
	return s.checkConditionalUpdate(ctx, res, id)
}

// checkConditionalUpdate distinguishes a missing analysis from one whose
// status did not match the update's precondition
func (s *SQLiteStore) checkConditionalUpdate(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n > 0 {
		return nil
	}

	exists, err := analysisExists(ctx, s.db, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("analysis %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("%w: analysis %s is not in the expected status", ErrInvalidTransition, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func analysisExists(ctx context.Context, q queryer, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM analyses WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: lookup analysis %s", id)
	}
	return true, nil
}

// inTx runs fn in a transaction scoped to an existing analysis
func (s *SQLiteStore) inTx(ctx context.Context, analysisID string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	exists, err := analysisExists(ctx, tx, analysisID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("analysis %s: %w", analysisID, ErrNotFound)
	}

	if err := fn(tx); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

const upsertKeywordSQL = `
INSERT INTO keyword_analyses (analysis_id, keyword, target_position, competitor_positions, competition_level, search_volume, checked_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (analysis_id, keyword) DO UPDATE SET
	target_position = excluded.target_position,
	competitor_positions = excluded.competitor_positions,
	competition_level = excluded.competition_level,
	search_volume = excluded.search_volume,
	checked_at = excluded.checked_at`

func upsertKeyword(ctx context.Context, tx *sql.Tx, analysisID string, kw *model.KeywordAnalysis) error {
	positions := kw.CompetitorPositions
	if positions == nil {
		positions = []model.CompetitorPosition{}
	}
	positionsJSON, err := marshalJSON(positions)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, upsertKeywordSQL,
		analysisID, kw.Keyword, nullInt(kw.TargetPosition), positionsJSON,
		string(kw.CompetitionLevel), nullInt(kw.SearchVolume), formatTime(kw.CheckedAt),
	)
	return eris.Wrapf(err, "sqlite: upsert keyword %q", kw.Keyword)
}

func (s *SQLiteStore) SaveKeywordAnalyses(ctx context.Context, analysisID string, keywords []*model.KeywordAnalysis) error {
	return s.inTx(ctx, analysisID, func(tx *sql.Tx) error {
		for _, kw := range keywords {
			if err := upsertKeyword(ctx, tx, analysisID, kw); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) UpsertKeywordAnalysis(ctx context.Context, analysisID string, kw *model.KeywordAnalysis) (*model.KeywordAnalysis, error) {
	var previous *model.KeywordAnalysis
	err := s.inTx(ctx, analysisID, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, selectKeywordSQL+` WHERE analysis_id = ? AND keyword = ?`, analysisID, kw.Keyword)
		existing, err := scanKeyword(row)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		previous = existing
		return upsertKeyword(ctx, tx, analysisID, kw)
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}

const selectKeywordSQL = `
SELECT keyword, target_position, competitor_positions, competition_level, search_volume, checked_at
FROM keyword_analyses`

type scannable interface {
	Scan(dest ...any) error
}

// scanKeyword returns sql.ErrNoRows unwrapped so callers can test for it
func scanKeyword(row scannable) (*model.KeywordAnalysis, error) {
	var kw model.KeywordAnalysis
	var target, volume sql.NullInt64
	var positions, level, checked string
	err := row.Scan(&kw.Keyword, &target, &positions, &level, &volume, &checked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan keyword")
	}

	kw.TargetPosition = intPtr(target)
	kw.SearchVolume = intPtr(volume)
	kw.CompetitionLevel = model.CompetitionLevel(level)
	if err := json.Unmarshal([]byte(positions), &kw.CompetitorPositions); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal competitor positions")
	}
	if kw.CheckedAt, err = parseTime(checked); err != nil {
		return nil, err
	}
	return &kw, nil
}

func (s *SQLiteStore) GetKeywordAnalysis(ctx context.Context, analysisID, keyword string) (*model.KeywordAnalysis, error) {
	row := s.db.QueryRowContext(ctx, selectKeywordSQL+` WHERE analysis_id = ? AND keyword = ?`, analysisID, keyword)
	kw, err := scanKeyword(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("keyword %q in analysis %s: %w", keyword, analysisID, ErrNotFound)
	}
	return kw, err
}

func (s *SQLiteStore) ListKeywordAnalyses(ctx context.Context, analysisID string) ([]*model.KeywordAnalysis, error) {
	rows, err := s.db.QueryContext(ctx, selectKeywordSQL+` WHERE analysis_id = ? ORDER BY rowid`, analysisID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list keywords %s", analysisID)
	}
	defer rows.Close()

	keywords := make([]*model.KeywordAnalysis, 0)
	for rows.Next() {
		kw, err := scanKeyword(rows)
		if err != nil {
			return nil, err
		}
		keywords = append(keywords, kw)
	}
	return keywords, eris.Wrap(rows.Err(), "sqlite: iterate keywords")
}

func (s *SQLiteStore) SaveCompetitorDomains(ctx context.Context, analysisID string, competitors []model.CompetitorDomain) error {
	return s.inTx(ctx, analysisID, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM competitor_domains WHERE analysis_id = ?`, analysisID); err != nil {
			return eris.Wrap(err, "sqlite: clear competitor domains")
		}
		for i, c := range competitors {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO competitor_domains (analysis_id, ordinal, domain, total_keywords_found, average_position, share_of_voice, relevance_score, is_auto_discovered)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				analysisID, i, c.Domain, c.TotalKeywordsFound, c.AveragePosition, c.ShareOfVoice, c.RelevanceScore, c.IsAutoDiscovered,
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: insert competitor %s", c.Domain)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ListCompetitorDomains(ctx context.Context, analysisID string) ([]model.CompetitorDomain, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT domain, total_keywords_found, average_position, share_of_voice, relevance_score, is_auto_discovered
		 FROM competitor_domains WHERE analysis_id = ? ORDER BY ordinal`,
		analysisID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list competitors %s", analysisID)
	}
	defer rows.Close()

	competitors := make([]model.CompetitorDomain, 0)
	for rows.Next() {
		var c model.CompetitorDomain
		if err := rows.Scan(&c.Domain, &c.TotalKeywordsFound, &c.AveragePosition, &c.ShareOfVoice, &c.RelevanceScore, &c.IsAutoDiscovered); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan competitor")
		}
		competitors = append(competitors, c)
	}
	return competitors, eris.Wrap(rows.Err(), "sqlite: iterate competitors")
}

func (s *SQLiteStore) SaveOpportunities(ctx context.Context, analysisID string, opportunities []model.Opportunity) error {
	return s.inTx(ctx, analysisID, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM opportunities WHERE analysis_id = ?`, analysisID); err != nil {
			return eris.Wrap(err, "sqlite: clear opportunities")
		}
		for i, o := range opportunities {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO opportunities (analysis_id, ordinal, keyword, opportunity_type, target_position, best_competitor_position,
				                            best_competitor_domain, priority_score, gap_size, recommended_action)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				analysisID, i, o.Keyword, string(o.Type), nullInt(o.TargetPosition), o.BestCompetitorPosition,
				o.BestCompetitorDomain, o.PriorityScore, o.GapSize, o.RecommendedAction,
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: insert opportunity %q", o.Keyword)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ListOpportunities(ctx context.Context, analysisID string) ([]model.Opportunity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT keyword, opportunity_type, target_position, best_competitor_position, best_competitor_domain,
		        priority_score, gap_size, recommended_action
		 FROM opportunities WHERE analysis_id = ? ORDER BY ordinal`,
		analysisID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list opportunities %s", analysisID)
	}
	defer rows.Close()

	opportunities := make([]model.Opportunity, 0)
	for rows.Next() {
		var (
			o      model.Opportunity
			typ    string
			target sql.NullInt64
		)
		if err := rows.Scan(&o.Keyword, &typ, &target, &o.BestCompetitorPosition, &o.BestCompetitorDomain,
			&o.PriorityScore, &o.GapSize, &o.RecommendedAction); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan opportunity")
		}
		o.Type = model.OpportunityType(typ)
		o.TargetPosition = intPtr(target)
		opportunities = append(opportunities, o)
	}
	return opportunities, eris.Wrap(rows.Err(), "sqlite: iterate opportunities")
}

func (s *SQLiteStore) SaveUnresolvedKeywords(ctx context.Context, analysisID string, keywords []model.UnresolvedKeyword) error {
	return s.inTx(ctx, analysisID, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM unresolved_keywords WHERE analysis_id = ?`, analysisID); err != nil {
			return eris.Wrap(err, "sqlite: clear unresolved keywords")
		}
		for _, u := range keywords {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO unresolved_keywords (analysis_id, keyword, attempts, last_error, failed_at) VALUES (?, ?, ?, ?, ?)`,
				analysisID, u.Keyword, u.Attempts, u.LastError, formatTime(u.FailedAt),
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: insert unresolved keyword %q", u.Keyword)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ListUnresolvedKeywords(ctx context.Context, analysisID string) ([]model.UnresolvedKeyword, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT keyword, attempts, last_error, failed_at FROM unresolved_keywords WHERE analysis_id = ? ORDER BY rowid`,
		analysisID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list unresolved keywords %s", analysisID)
	}
	defer rows.Close()

	keywords := make([]model.UnresolvedKeyword, 0)
	for rows.Next() {
		var (
			u        model.UnresolvedKeyword
			failedAt string
		)
		if err := rows.Scan(&u.Keyword, &u.Attempts, &u.LastError, &failedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan unresolved keyword")
		}
		if u.FailedAt, err = parseTime(failedAt); err != nil {
			return nil, err
		}
		keywords = append(keywords, u)
	}
	return keywords, eris.Wrap(rows.Err(), "sqlite: iterate unresolved keywords")
}
