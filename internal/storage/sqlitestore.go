package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/valter-silva-au/jizoni-schedule/internal/core"
	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339Nano
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// SQLiteStore is a core.TxStore backed by a SQLite database. Task,
// relationship and assignment IDs are keyed per project. Deleting a project
// or task cascades to everything that references it.
type SQLiteStore struct {
	db *sql.DB
	q  execer
	tx bool
}

// NewSQLiteStore opens (and migrates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps writers from tripping over SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	s := &SQLiteStore{db: conn, q: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.tx {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		project_type TEXT NOT NULL DEFAULT '',
		anchor_date TEXT NOT NULL,
		calendar_id TEXT NOT NULL,
		max_float_paths INTEGER NOT NULL DEFAULT 0,
		schedule_version INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		wbs_code TEXT NOT NULL,
		parent_task_id TEXT NOT NULL DEFAULT '',
		level INTEGER NOT NULL,
		duration_days INTEGER NOT NULL,
		start_date TEXT,
		end_date TEXT,
		status TEXT NOT NULL,
		priority TEXT NOT NULL,
		calendar_id TEXT NOT NULL DEFAULT '',
		assigned_to TEXT NOT NULL DEFAULT '',
		early_start TEXT,
		early_finish TEXT,
		late_start TEXT,
		late_finish TEXT,
		total_float INTEGER,
		free_float INTEGER,
		is_critical INTEGER,
		schedule_version INTEGER,
		PRIMARY KEY (project_id, id),
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE,
		UNIQUE (project_id, wbs_code)
	);

	CREATE TABLE IF NOT EXISTS task_relationships (
		id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		predecessor_id TEXT NOT NULL,
		successor_id TEXT NOT NULL,
		type TEXT NOT NULL,
		lag_days INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (project_id, id),
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE,
		FOREIGN KEY (project_id, predecessor_id) REFERENCES tasks(project_id, id) ON DELETE CASCADE,
		FOREIGN KEY (project_id, successor_id) REFERENCES tasks(project_id, id) ON DELETE CASCADE,
		UNIQUE (project_id, predecessor_id, successor_id)
	);

	CREATE TABLE IF NOT EXISTS calendars (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		work_week TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS calendar_exceptions (
		calendar_id TEXT NOT NULL,
		date TEXT NOT NULL,
		working INTEGER NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (calendar_id, date),
		FOREIGN KEY (calendar_id) REFERENCES calendars(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS baselines (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		name TEXT NOT NULL,
		captured_at TEXT NOT NULL,
		schedule_version INTEGER NOT NULL,
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE,
		UNIQUE (project_id, name COLLATE NOCASE)
	);

	CREATE TABLE IF NOT EXISTS baseline_entries (
		baseline_id TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		task_id TEXT NOT NULL,
		wbs_code TEXT NOT NULL,
		name TEXT NOT NULL,
		start_date TEXT,
		end_date TEXT,
		duration_days INTEGER NOT NULL,
		PRIMARY KEY (baseline_id, ordinal),
		FOREIGN KEY (baseline_id) REFERENCES baselines(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS float_paths (
		project_id TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		total_float INTEGER NOT NULL,
		task_ids TEXT NOT NULL,
		schedule_version INTEGER NOT NULL,
		PRIMARY KEY (project_id, ordinal),
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS schedule_loops (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		task_ids TEXT NOT NULL,
		rejected_predecessor_id TEXT NOT NULL,
		rejected_successor_id TEXT NOT NULL,
		detected_at TEXT NOT NULL,
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS resources (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS resource_assignments (
		id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		resource_id TEXT NOT NULL,
		allocation REAL NOT NULL,
		PRIMARY KEY (project_id, id),
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE,
		FOREIGN KEY (project_id, task_id) REFERENCES tasks(project_id, id) ON DELETE CASCADE
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// inTx runs fn in the current transaction, or in a new one when the store
// is not already inside Atomically.
func (s *SQLiteStore) inTx(fn func(q execer) error) error {
	if s.tx {
		return fn(s.q)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Atomically runs fn inside one SQL transaction.
func (s *SQLiteStore) Atomically(fn func(tx core.ScheduleStore) error) error {
	return s.inTx(func(q execer) error {
		return fn(&SQLiteStore{db: s.db, q: q, tx: true})
	})
}

func formatDate(t time.Time) string { return t.UTC().Format(dateLayout) }

func formatDatePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatDate(*t)
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

func parseNullDate(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatTimestamp(t time.Time) string { return t.UTC().Format(timestampLayout) }

func parseTimestamp(s string) (time.Time, error) { return time.Parse(timestampLayout, s) }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func sortTasksByWBS(tasks []models.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return core.CompareWBSCodes(tasks[i].WBSCode, tasks[j].WBSCode) < 0
	})
}

func requireProject(q execer, projectID string) error {
	var one int
	err := q.QueryRow("SELECT 1 FROM projects WHERE id = ?", projectID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("project %s: %w", projectID, core.ErrNotFound)
	}
	return err
}

// --- projects ---

func (s *SQLiteStore) LoadProject(id string) (*models.Project, error) {
	var (
		p                    models.Project
		anchor, created, upd string
	)
	err := s.q.QueryRow(`
		SELECT id, name, description, project_type, anchor_date, calendar_id, max_float_paths, schedule_version, created_at, updated_at
		FROM projects WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.ProjectType, &anchor, &p.Settings.CalendarID,
		&p.Settings.MaxFloatPaths, &p.ScheduleVersion, &created, &upd)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading project %s: %w", id, err)
	}
	if err := fillProject(&p, anchor, created, upd); err != nil {
		return nil, fmt.Errorf("loading project %s: %w", id, err)
	}
	return &p, nil
}

func fillProject(p *models.Project, anchor, created, updated string) error {
	var err error
	p.Settings.ProjectID = p.ID
	if p.Settings.AnchorDate, err = parseDate(anchor); err != nil {
		return err
	}
	if p.CreatedAt, err = parseTimestamp(created); err != nil {
		return err
	}
	p.UpdatedAt, err = parseTimestamp(updated)
	return err
}

func (s *SQLiteStore) SaveProject(p models.Project) error {
	_, err := s.q.Exec(`
		INSERT INTO projects (id, name, description, project_type, anchor_date, calendar_id, max_float_paths, schedule_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			project_type = excluded.project_type,
			anchor_date = excluded.anchor_date,
			calendar_id = excluded.calendar_id,
			max_float_paths = excluded.max_float_paths,
			schedule_version = excluded.schedule_version,
			updated_at = excluded.updated_at
	`, p.ID, p.Name, p.Description, p.ProjectType, formatDate(p.Settings.AnchorDate), p.Settings.CalendarID,
		p.Settings.MaxFloatPaths, p.ScheduleVersion, formatTimestamp(p.CreatedAt), formatTimestamp(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving project %s: %w", p.ID, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteProject(id string) error {
	res, err := s.q.Exec("DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting project %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting project %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("project %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) ListProjects() ([]models.Project, error) {
	rows, err := s.q.Query(`
		SELECT id, name, description, project_type, anchor_date, calendar_id, max_float_paths, schedule_version, created_at, updated_at
		FROM projects ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var out []models.Project
	for rows.Next() {
		var (
			p                    models.Project
			anchor, created, upd string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.ProjectType, &anchor, &p.Settings.CalendarID,
			&p.Settings.MaxFloatPaths, &p.ScheduleVersion, &created, &upd); err != nil {
			return nil, fmt.Errorf("listing projects: %w", err)
		}
		if err := fillProject(&p, anchor, created, upd); err != nil {
			return nil, fmt.Errorf("listing projects: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- tasks ---

func (s *SQLiteStore) LoadTasks(projectID string) ([]models.Task, error) {
	if err := requireProject(s.q, projectID); err != nil {
		return nil, err
	}
	rows, err := s.q.Query(`
		SELECT id, project_id, name, description, wbs_code, parent_task_id, level, duration_days,
			start_date, end_date, status, priority, calendar_id, assigned_to,
			early_start, early_finish, late_start, late_finish, total_float, free_float, is_critical, schedule_version
		FROM tasks WHERE project_id = ?
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}
	defer rows.Close()

	var out []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("loading tasks: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}
	sortTasksByWBS(out)
	return out, nil
}

func scanTask(rows *sql.Rows) (models.Task, error) {
	var (
		t                  models.Task
		start, end         sql.NullString
		es, ef, ls, lf     sql.NullString
		tf, ff, crit, sver sql.NullInt64
	)
	if err := rows.Scan(&t.ID, &t.ProjectID, &t.Name, &t.Description, &t.WBSCode, &t.ParentTaskID, &t.Level,
		&t.DurationDays, &start, &end, &t.Status, &t.Priority, &t.CalendarID, &t.AssignedTo,
		&es, &ef, &ls, &lf, &tf, &ff, &crit, &sver); err != nil {
		return t, err
	}
	var err error
	if t.StartDate, err = parseNullDate(start); err != nil {
		return t, err
	}
	if t.EndDate, err = parseNullDate(end); err != nil {
		return t, err
	}
	if !es.Valid {
		return t, nil
	}
	sched := &models.TaskSchedule{
		TotalFloat: int(tf.Int64),
		FreeFloat:  int(ff.Int64),
		IsCritical: crit.Int64 != 0,
		Version:    uint64(sver.Int64),
	}
	for _, f := range []struct {
		dst *time.Time
		src sql.NullString
	}{{&sched.EarlyStart, es}, {&sched.EarlyFinish, ef}, {&sched.LateStart, ls}, {&sched.LateFinish, lf}} {
		if *f.dst, err = parseDate(f.src.String); err != nil {
			return t, err
		}
	}
	t.Schedule = sched
	return t, nil
}

// SaveTasks upserts the given tasks and deletes the project's other tasks.
// Deleted tasks take their relationships and assignments with them.
func (s *SQLiteStore) SaveTasks(projectID string, tasks []models.Task) error {
	return s.inTx(func(q execer) error {
		if err := requireProject(q, projectID); err != nil {
			return err
		}
		existing, err := taskIDs(q, projectID)
		if err != nil {
			return err
		}
		keep := make(map[string]bool, len(tasks))
		for _, t := range tasks {
			keep[t.ID] = true
		}
		for _, id := range existing {
			if !keep[id] {
				if _, err := q.Exec("DELETE FROM tasks WHERE project_id = ? AND id = ?", projectID, id); err != nil {
					return fmt.Errorf("saving tasks: deleting %s: %w", id, err)
				}
			}
		}
		// Codes move around on renumbering; clear them first so the unique
		// index does not trip over a swap.
		if _, err := q.Exec("UPDATE tasks SET wbs_code = '~' || id WHERE project_id = ?", projectID); err != nil {
			return fmt.Errorf("saving tasks: %w", err)
		}
		for _, t := range tasks {
			if err := upsertTask(q, projectID, t); err != nil {
				return fmt.Errorf("saving tasks: %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

func taskIDs(q execer, projectID string) ([]string, error) {
	rows, err := q.Query("SELECT id FROM tasks WHERE project_id = ?", projectID)
	if err != nil {
		return nil, fmt.Errorf("listing task IDs: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func upsertTask(q execer, projectID string, t models.Task) error {
	var es, ef, ls, lf, tf, ff, crit, sver any
	if sc := t.Schedule; sc != nil {
		es, ef, ls, lf = formatDate(sc.EarlyStart), formatDate(sc.EarlyFinish), formatDate(sc.LateStart), formatDate(sc.LateFinish)
		tf, ff, crit, sver = sc.TotalFloat, sc.FreeFloat, boolInt(sc.IsCritical), int64(sc.Version)
	}
	_, err := q.Exec(`
		INSERT INTO tasks (id, project_id, name, description, wbs_code, parent_task_id, level, duration_days,
			start_date, end_date, status, priority, calendar_id, assigned_to,
			early_start, early_finish, late_start, late_finish, total_float, free_float, is_critical, schedule_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, id) DO UPDATE SET
			name = excluded.name, description = excluded.description, wbs_code = excluded.wbs_code,
			parent_task_id = excluded.parent_task_id, level = excluded.level, duration_days = excluded.duration_days,
			start_date = excluded.start_date, end_date = excluded.end_date, status = excluded.status,
			priority = excluded.priority, calendar_id = excluded.calendar_id, assigned_to = excluded.assigned_to,
			early_start = excluded.early_start, early_finish = excluded.early_finish,
			late_start = excluded.late_start, late_finish = excluded.late_finish,
			total_float = excluded.total_float, free_float = excluded.free_float,
			is_critical = excluded.is_critical, schedule_version = excluded.schedule_version
	`, t.ID, projectID, t.Name, t.Description, t.WBSCode, t.ParentTaskID, t.Level, t.DurationDays,
		formatDatePtr(t.StartDate), formatDatePtr(t.EndDate), string(t.Status), string(t.Priority), t.CalendarID, t.AssignedTo,
		es, ef, ls, lf, tf, ff, crit, sver)
	return err
}

// --- relationships ---

func (s *SQLiteStore) LoadRelationships(projectID string) ([]models.TaskRelationship, error) {
	if err := requireProject(s.q, projectID); err != nil {
		return nil, err
	}
	rows, err := s.q.Query(`
		SELECT id, project_id, predecessor_id, successor_id, type, lag_days
		FROM task_relationships WHERE project_id = ? ORDER BY predecessor_id, successor_id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading relationships: %w", err)
	}
	defer rows.Close()
	var out []models.TaskRelationship
	for rows.Next() {
		var r models.TaskRelationship
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.PredecessorID, &r.SuccessorID, &r.Type, &r.LagDays); err != nil {
			return nil, fmt.Errorf("loading relationships: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveRelationships(projectID string, rels []models.TaskRelationship) error {
	return s.inTx(func(q execer) error {
		if err := requireProject(q, projectID); err != nil {
			return err
		}
		if _, err := q.Exec("DELETE FROM task_relationships WHERE project_id = ?", projectID); err != nil {
			return fmt.Errorf("saving relationships: %w", err)
		}
		for _, r := range rels {
			if _, err := q.Exec(`
				INSERT INTO task_relationships (id, project_id, predecessor_id, successor_id, type, lag_days)
				VALUES (?, ?, ?, ?, ?, ?)
			`, r.ID, projectID, r.PredecessorID, r.SuccessorID, string(r.Type), r.LagDays); err != nil {
				return fmt.Errorf("saving relationships: %s->%s: %w", r.PredecessorID, r.SuccessorID, err)
			}
		}
		return nil
	})
}

// --- calendars ---

func encodeWeek(w [7]bool) string {
	b := make([]byte, 7)
	for i, on := range w {
		b[i] = '0'
		if on {
			b[i] = '1'
		}
	}
	return string(b)
}

func decodeWeek(s string) [7]bool {
	var w [7]bool
	for i := 0; i < len(s) && i < 7; i++ {
		w[i] = s[i] == '1'
	}
	return w
}

func (s *SQLiteStore) LoadCalendar(id string) (*models.Calendar, error) {
	var (
		c    models.Calendar
		week string
	)
	err := s.q.QueryRow("SELECT id, name, work_week FROM calendars WHERE id = ?", id).Scan(&c.ID, &c.Name, &week)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("calendar %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading calendar %s: %w", id, err)
	}
	c.WorkWeek = decodeWeek(week)
	if c.Exceptions, err = s.loadExceptions(id); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) loadExceptions(calendarID string) ([]models.CalendarException, error) {
	rows, err := s.q.Query(`
		SELECT date, working, name FROM calendar_exceptions WHERE calendar_id = ? ORDER BY date
	`, calendarID)
	if err != nil {
		return nil, fmt.Errorf("loading calendar exceptions: %w", err)
	}
	defer rows.Close()
	var out []models.CalendarException
	for rows.Next() {
		var (
			e       models.CalendarException
			date    string
			working int
		)
		if err := rows.Scan(&date, &working, &e.Name); err != nil {
			return nil, fmt.Errorf("loading calendar exceptions: %w", err)
		}
		if e.Date, err = parseDate(date); err != nil {
			return nil, fmt.Errorf("loading calendar exceptions: %w", err)
		}
		e.Working = working != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveCalendar(c models.Calendar) error {
	return s.inTx(func(q execer) error {
		if _, err := q.Exec(`
			INSERT INTO calendars (id, name, work_week) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, work_week = excluded.work_week
		`, c.ID, c.Name, encodeWeek(c.WorkWeek)); err != nil {
			return fmt.Errorf("saving calendar %s: %w", c.ID, err)
		}
		if _, err := q.Exec("DELETE FROM calendar_exceptions WHERE calendar_id = ?", c.ID); err != nil {
			return fmt.Errorf("saving calendar %s: %w", c.ID, err)
		}
		for _, e := range c.Exceptions {
			if _, err := q.Exec(`
				INSERT INTO calendar_exceptions (calendar_id, date, working, name) VALUES (?, ?, ?, ?)
			`, c.ID, formatDate(e.Date), boolInt(e.Working), e.Name); err != nil {
				return fmt.Errorf("saving calendar %s: exception %s: %w", c.ID, formatDate(e.Date), err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ListCalendars() ([]models.Calendar, error) {
	rows, err := s.q.Query("SELECT id FROM calendars ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing calendars: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("listing calendars: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing calendars: %w", err)
	}

	out := make([]models.Calendar, 0, len(ids))
	for _, id := range ids {
		c, err := s.LoadCalendar(id)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

// --- baselines ---

func (s *SQLiteStore) SaveBaseline(b models.Baseline) error {
	return s.inTx(func(q execer) error {
		if _, err := q.Exec(`
			INSERT INTO baselines (id, project_id, name, captured_at, schedule_version) VALUES (?, ?, ?, ?, ?)
		`, b.ID, b.ProjectID, b.Name, formatTimestamp(b.CapturedAt), int64(b.ScheduleVersion)); err != nil {
			return fmt.Errorf("saving baseline %s: %w", b.ID, err)
		}
		for i, e := range b.Entries {
			if _, err := q.Exec(`
				INSERT INTO baseline_entries (baseline_id, ordinal, task_id, wbs_code, name, start_date, end_date, duration_days)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, b.ID, i, e.TaskID, e.WBSCode, e.Name, formatDatePtr(e.StartDate), formatDatePtr(e.EndDate), e.DurationDays); err != nil {
				return fmt.Errorf("saving baseline %s: entry %s: %w", b.ID, e.TaskID, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) LoadBaselines(projectID string) ([]models.Baseline, error) {
	if err := requireProject(s.q, projectID); err != nil {
		return nil, err
	}
	rows, err := s.q.Query(`
		SELECT id, project_id, name, captured_at, schedule_version
		FROM baselines WHERE project_id = ? ORDER BY captured_at, id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading baselines: %w", err)
	}
	var out []models.Baseline
	for rows.Next() {
		var (
			b        models.Baseline
			captured string
		)
		if err := rows.Scan(&b.ID, &b.ProjectID, &b.Name, &captured, &b.ScheduleVersion); err != nil {
			rows.Close()
			return nil, fmt.Errorf("loading baselines: %w", err)
		}
		if b.CapturedAt, err = parseTimestamp(captured); err != nil {
			rows.Close()
			return nil, fmt.Errorf("loading baselines: %w", err)
		}
		out = append(out, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading baselines: %w", err)
	}

	for i := range out {
		if out[i].Entries, err = s.loadBaselineEntries(out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLiteStore) loadBaselineEntries(baselineID string) ([]models.BaselineEntry, error) {
	rows, err := s.q.Query(`
		SELECT task_id, wbs_code, name, start_date, end_date, duration_days
		FROM baseline_entries WHERE baseline_id = ? ORDER BY ordinal
	`, baselineID)
	if err != nil {
		return nil, fmt.Errorf("loading baseline entries: %w", err)
	}
	defer rows.Close()
	var out []models.BaselineEntry
	for rows.Next() {
		var (
			e          models.BaselineEntry
			start, end sql.NullString
		)
		if err := rows.Scan(&e.TaskID, &e.WBSCode, &e.Name, &start, &end, &e.DurationDays); err != nil {
			return nil, fmt.Errorf("loading baseline entries: %w", err)
		}
		if e.StartDate, err = parseNullDate(start); err != nil {
			return nil, err
		}
		if e.EndDate, err = parseNullDate(end); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- float paths and loops ---

func (s *SQLiteStore) SaveFloatPaths(projectID string, paths []models.FloatPath) error {
	return s.inTx(func(q execer) error {
		if _, err := q.Exec("DELETE FROM float_paths WHERE project_id = ?", projectID); err != nil {
			return fmt.Errorf("saving float paths: %w", err)
		}
		for _, fp := range paths {
			ids, err := json.Marshal(fp.TaskIDs)
			if err != nil {
				return fmt.Errorf("saving float paths: %w", err)
			}
			if _, err := q.Exec(`
				INSERT INTO float_paths (project_id, ordinal, total_float, task_ids, schedule_version) VALUES (?, ?, ?, ?, ?)
			`, projectID, fp.Ordinal, fp.TotalFloat, string(ids), int64(fp.ScheduleVersion)); err != nil {
				return fmt.Errorf("saving float paths: %w", err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) LoadFloatPaths(projectID string) ([]models.FloatPath, error) {
	if err := requireProject(s.q, projectID); err != nil {
		return nil, err
	}
	rows, err := s.q.Query(`
		SELECT ordinal, total_float, task_ids, schedule_version FROM float_paths WHERE project_id = ? ORDER BY ordinal
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading float paths: %w", err)
	}
	defer rows.Close()
	var out []models.FloatPath
	for rows.Next() {
		fp := models.FloatPath{ProjectID: projectID}
		var ids string
		if err := rows.Scan(&fp.Ordinal, &fp.TotalFloat, &ids, &fp.ScheduleVersion); err != nil {
			return nil, fmt.Errorf("loading float paths: %w", err)
		}
		if err := json.Unmarshal([]byte(ids), &fp.TaskIDs); err != nil {
			return nil, fmt.Errorf("loading float paths: %w", err)
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveScheduleLoop(l models.ScheduleLoop) error {
	ids, err := json.Marshal(l.TaskIDs)
	if err != nil {
		return fmt.Errorf("saving schedule loop: %w", err)
	}
	if _, err := s.q.Exec(`
		INSERT INTO schedule_loops (id, project_id, task_ids, rejected_predecessor_id, rejected_successor_id, detected_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, l.ID, l.ProjectID, string(ids), l.RejectedPredecessorID, l.RejectedSuccessorID, formatTimestamp(l.DetectedAt)); err != nil {
		return fmt.Errorf("saving schedule loop: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadScheduleLoops(projectID string) ([]models.ScheduleLoop, error) {
	if err := requireProject(s.q, projectID); err != nil {
		return nil, err
	}
	rows, err := s.q.Query(`
		SELECT id, project_id, task_ids, rejected_predecessor_id, rejected_successor_id, detected_at
		FROM schedule_loops WHERE project_id = ? ORDER BY detected_at, id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading schedule loops: %w", err)
	}
	defer rows.Close()
	var out []models.ScheduleLoop
	for rows.Next() {
		var (
			l             models.ScheduleLoop
			ids, detected string
		)
		if err := rows.Scan(&l.ID, &l.ProjectID, &ids, &l.RejectedPredecessorID, &l.RejectedSuccessorID, &detected); err != nil {
			return nil, fmt.Errorf("loading schedule loops: %w", err)
		}
		if err := json.Unmarshal([]byte(ids), &l.TaskIDs); err != nil {
			return nil, fmt.Errorf("loading schedule loops: %w", err)
		}
		if l.DetectedAt, err = parseTimestamp(detected); err != nil {
			return nil, fmt.Errorf("loading schedule loops: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// --- resources ---

func (s *SQLiteStore) LoadAssignments(projectID string) ([]models.ResourceAssignment, error) {
	if err := requireProject(s.q, projectID); err != nil {
		return nil, err
	}
	rows, err := s.q.Query(`
		SELECT id, project_id, task_id, resource_id, allocation
		FROM resource_assignments WHERE project_id = ? ORDER BY task_id, resource_id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading assignments: %w", err)
	}
	defer rows.Close()
	var out []models.ResourceAssignment
	for rows.Next() {
		var a models.ResourceAssignment
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.TaskID, &a.ResourceID, &a.Allocation); err != nil {
			return nil, fmt.Errorf("loading assignments: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveAssignments(projectID string, as []models.ResourceAssignment) error {
	return s.inTx(func(q execer) error {
		if _, err := q.Exec("DELETE FROM resource_assignments WHERE project_id = ?", projectID); err != nil {
			return fmt.Errorf("saving assignments: %w", err)
		}
		for _, a := range as {
			if _, err := q.Exec(`
				INSERT INTO resource_assignments (id, project_id, task_id, resource_id, allocation) VALUES (?, ?, ?, ?, ?)
			`, a.ID, projectID, a.TaskID, a.ResourceID, a.Allocation); err != nil {
				return fmt.Errorf("saving assignments: %s: %w", a.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) SaveResource(r models.Resource) error {
	if r.ID == "" {
		return fmt.Errorf("saving resource: ID must not be empty")
	}
	if _, err := s.q.Exec(`
		INSERT INTO resources (id, name, kind) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, kind = excluded.kind
	`, r.ID, r.Name, r.Kind); err != nil {
		return fmt.Errorf("saving resource %s: %w", r.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListResources() ([]models.Resource, error) {
	rows, err := s.q.Query("SELECT id, name, kind FROM resources ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing resources: %w", err)
	}
	defer rows.Close()
	var out []models.Resource
	for rows.Next() {
		var r models.Resource
		if err := rows.Scan(&r.ID, &r.Name, &r.Kind); err != nil {
			return nil, fmt.Errorf("listing resources: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
